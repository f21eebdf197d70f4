package x402x

import "testing"

func TestCanonicalNetworkAliases(t *testing.T) {
	cases := []struct {
		input string
		key   string
	}{
		{"base", "base"},
		{"eip155:8453", "base"},
		{"EIP155:8453", "base"},
		{"Base-Sepolia", "base-sepolia"},
		{"  avalanche  ", "avalanche"},
		{"eip155:43113", "avalanche-fuji"},
		{"POLYGON", "polygon"},
		{"eip155:1329", "sei"},
	}
	for _, tc := range cases {
		key, ok := CanonicalNetwork(tc.input)
		if !ok {
			t.Errorf("CanonicalNetwork(%q): expected hit", tc.input)
			continue
		}
		if key != tc.key {
			t.Errorf("CanonicalNetwork(%q): expected %s, got %s", tc.input, tc.key, key)
		}
	}
}

func TestCanonicalNetworkUnknown(t *testing.T) {
	if _, ok := CanonicalNetwork("eip155:1"); ok {
		t.Fatal("Expected mainnet to be unsupported")
	}
	if _, ok := CanonicalNetwork(""); ok {
		t.Fatal("Expected empty string to be unsupported")
	}
}

func TestGetNetworkInfo(t *testing.T) {
	info, err := GetNetworkInfo("eip155:84532")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if info.Key != "base-sepolia" {
		t.Fatalf("Expected base-sepolia, got %s", info.Key)
	}
	if info.ChainID.Int64() != 84532 {
		t.Fatalf("Expected chain id 84532, got %s", info.ChainID)
	}
	if info.DefaultAsset.Decimals != 6 {
		t.Fatalf("Expected 6 decimals, got %d", info.DefaultAsset.Decimals)
	}
	if info.PriceFeedID != "ethereum" {
		t.Fatalf("Expected ethereum feed id, got %s", info.PriceFeedID)
	}
}

func TestNetworkInfoAsset(t *testing.T) {
	info, err := GetNetworkInfo("base")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	asset, ok := info.Asset("")
	if !ok || asset.Symbol != "USDC" {
		t.Fatal("Expected the empty address to select the default asset")
	}

	asset, ok = info.Asset("0x833589fcd6edb6e08f4c7c32d4f71b54bda02913")
	if !ok || asset.Decimals != 6 {
		t.Fatal("Expected a case-insensitive match on the default asset address")
	}

	if _, ok := info.Asset("0x9999999999999999999999999999999999999999"); ok {
		t.Fatal("Expected unknown asset addresses to be refused")
	}
}

func TestGetNetworkInfoUnsupported(t *testing.T) {
	_, err := GetNetworkInfo("eip155:999999")
	if err == nil {
		t.Fatal("Expected error for unsupported network")
	}
	classified := Classify(err)
	if classified.Code != ErrCodeUnsupportedNetwork {
		t.Fatalf("Expected unsupported_network, got %s", classified.Code)
	}
}

func TestSupportedNetworksCoverAliases(t *testing.T) {
	for _, key := range SupportedNetworks() {
		canonical, ok := CanonicalNetwork(key)
		if !ok || canonical != key {
			t.Errorf("Canonical key %s must map to itself", key)
		}
		info, err := GetNetworkInfo(key)
		if err != nil {
			t.Errorf("GetNetworkInfo(%s): %v", key, err)
			continue
		}
		if caip, ok := CanonicalNetwork(string(info.CAIP2)); !ok || caip != key {
			t.Errorf("CAIP-2 id %s must map back to %s", info.CAIP2, key)
		}
	}
}

func TestNetworkParse(t *testing.T) {
	namespace, reference, err := Network("eip155:8453").Parse()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if namespace != "eip155" || reference != "8453" {
		t.Fatalf("Unexpected parse result: %s %s", namespace, reference)
	}
	if _, _, err := Network("base").Parse(); err == nil {
		t.Fatal("Expected error for non-CAIP-2 value")
	}
}
