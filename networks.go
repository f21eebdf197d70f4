package x402x

import (
	"math/big"
	"strings"
)

// AssetInfo describes a settlement asset deployment on a network.
type AssetInfo struct {
	Address  string
	Symbol   string
	Decimals int
}

// NetworkInfo is the per-network table entry. PriceFeedID identifies the
// network's native gas token on the external price feed; FallbackTokenPrice
// is the static USD price used whenever dynamic pricing is off or failing.
type NetworkInfo struct {
	Key                string
	CAIP2              Network
	ChainID            *big.Int
	Name               string
	PriceFeedID        string
	FallbackTokenPrice float64
	DefaultAsset       AssetInfo
}

var networkInfos = map[string]NetworkInfo{
	"base": {
		Key:                "base",
		CAIP2:              "eip155:8453",
		ChainID:            big.NewInt(8453),
		Name:               "Base",
		PriceFeedID:        "ethereum",
		FallbackTokenPrice: 3000,
		DefaultAsset: AssetInfo{
			Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	"base-sepolia": {
		Key:                "base-sepolia",
		CAIP2:              "eip155:84532",
		ChainID:            big.NewInt(84532),
		Name:               "Base Sepolia",
		PriceFeedID:        "ethereum",
		FallbackTokenPrice: 3000,
		DefaultAsset: AssetInfo{
			Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	"avalanche": {
		Key:                "avalanche",
		CAIP2:              "eip155:43114",
		ChainID:            big.NewInt(43114),
		Name:               "Avalanche C-Chain",
		PriceFeedID:        "avalanche-2",
		FallbackTokenPrice: 30,
		DefaultAsset: AssetInfo{
			Address:  "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	"avalanche-fuji": {
		Key:                "avalanche-fuji",
		CAIP2:              "eip155:43113",
		ChainID:            big.NewInt(43113),
		Name:               "Avalanche Fuji",
		PriceFeedID:        "avalanche-2",
		FallbackTokenPrice: 30,
		DefaultAsset: AssetInfo{
			Address:  "0x5425890298aed601595a70AB815c96711a31Bc65",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	"polygon": {
		Key:                "polygon",
		CAIP2:              "eip155:137",
		ChainID:            big.NewInt(137),
		Name:               "Polygon",
		PriceFeedID:        "matic-network",
		FallbackTokenPrice: 0.5,
		DefaultAsset: AssetInfo{
			Address:  "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	"polygon-amoy": {
		Key:                "polygon-amoy",
		CAIP2:              "eip155:80002",
		ChainID:            big.NewInt(80002),
		Name:               "Polygon Amoy",
		PriceFeedID:        "matic-network",
		FallbackTokenPrice: 0.5,
		DefaultAsset: AssetInfo{
			Address:  "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	"sei": {
		Key:                "sei",
		CAIP2:              "eip155:1329",
		ChainID:            big.NewInt(1329),
		Name:               "Sei",
		PriceFeedID:        "sei-network",
		FallbackTokenPrice: 0.3,
		DefaultAsset: AssetInfo{
			Address:  "0xe15fC38F6D8c56aF07bbCBe3BAf5708A2Bf42392",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	"sei-testnet": {
		Key:                "sei-testnet",
		CAIP2:              "eip155:1328",
		ChainID:            big.NewInt(1328),
		Name:               "Sei Testnet",
		PriceFeedID:        "sei-network",
		FallbackTokenPrice: 0.3,
		DefaultAsset: AssetInfo{
			Address:  "0x4fCF1784B31630811181f670Aea7A7bEF803eaED",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
}

// networkAliases maps every accepted input form (CAIP-2 id or human alias)
// to one canonical key. Adding a network is a table change only.
var networkAliases = map[string]string{
	"eip155:8453":    "base",
	"base":           "base",
	"eip155:84532":   "base-sepolia",
	"base-sepolia":   "base-sepolia",
	"eip155:43114":   "avalanche",
	"avalanche":      "avalanche",
	"eip155:43113":   "avalanche-fuji",
	"avalanche-fuji": "avalanche-fuji",
	"eip155:137":     "polygon",
	"polygon":        "polygon",
	"eip155:80002":   "polygon-amoy",
	"polygon-amoy":   "polygon-amoy",
	"eip155:1329":    "sei",
	"sei":            "sei",
	"eip155:1328":    "sei-testnet",
	"sei-testnet":    "sei-testnet",
}

// CanonicalNetwork maps a CAIP-2 id or human-readable alias to the internal
// network key. Matching is case-insensitive.
func CanonicalNetwork(network string) (string, bool) {
	key, ok := networkAliases[strings.ToLower(strings.TrimSpace(network))]
	return key, ok
}

// Asset resolves a settlement asset address to its table entry. An empty
// address selects the network's default asset; unknown addresses are refused
// rather than priced with guessed decimals.
func (n NetworkInfo) Asset(address string) (AssetInfo, bool) {
	if address == "" || strings.EqualFold(address, n.DefaultAsset.Address) {
		return n.DefaultAsset, true
	}
	return AssetInfo{}, false
}

// GetNetworkInfo resolves any accepted network identifier to its table entry.
func GetNetworkInfo(network string) (NetworkInfo, error) {
	key, ok := CanonicalNetwork(network)
	if !ok {
		return NetworkInfo{}, NewValidationError(ErrCodeUnsupportedNetwork, "unsupported network: "+network)
	}
	return networkInfos[key], nil
}

// SupportedNetworks returns the canonical keys of every configured network.
func SupportedNetworks() []string {
	keys := make([]string, 0, len(networkInfos))
	for key := range networkInfos {
		keys = append(keys, key)
	}
	return keys
}
