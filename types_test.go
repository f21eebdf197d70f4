package x402x

import "testing"

func TestSettlementExtraDetection(t *testing.T) {
	requirements := PaymentRequirements{
		Network: "eip155:84532",
		Extra: map[string]interface{}{
			"settlementRouter": "0x1111111111111111111111111111111111111111",
			"facilitatorFee":   "1200000",
			"hook":             "0x2222222222222222222222222222222222222222",
		},
	}

	extra, ok := requirements.SettlementExtra()
	if !ok {
		t.Fatal("Expected settlement mode")
	}
	if extra.SettlementRouter != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("Unexpected router: %s", extra.SettlementRouter)
	}
	if extra.FacilitatorFee != "1200000" {
		t.Fatalf("Unexpected fee: %s", extra.FacilitatorFee)
	}
}

func TestSettlementExtraAbsent(t *testing.T) {
	cases := []map[string]interface{}{
		nil,
		{},
		{"facilitatorFee": "100"},
		{"settlementRouter": ""},
	}
	for i, extra := range cases {
		requirements := PaymentRequirements{Network: "base", Extra: extra}
		if _, ok := requirements.SettlementExtra(); ok {
			t.Errorf("case %d: expected non-settlement mode", i)
		}
	}
}

func TestExactPayloadDecoding(t *testing.T) {
	payload := PaymentPayload{
		X402Version: 1,
		Payload: map[string]interface{}{
			"signature": "0xabcd",
			"authorization": map[string]interface{}{
				"from":        "0x1111111111111111111111111111111111111111",
				"to":          "0x2222222222222222222222222222222222222222",
				"value":       "5000000",
				"validAfter":  "0",
				"validBefore": "99999999999",
				"nonce":       "0x0000000000000000000000000000000000000000000000000000000000000001",
			},
		},
	}

	exact, err := payload.ExactPayload()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if exact.Authorization.From != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("Unexpected from: %s", exact.Authorization.From)
	}
	if exact.Authorization.Value != "5000000" {
		t.Fatalf("Unexpected value: %s", exact.Authorization.Value)
	}
	if payload.Payer() != exact.Authorization.From {
		t.Fatal("Payer must match the authorization's from address")
	}
}

func TestPayerOnMalformedPayload(t *testing.T) {
	payload := PaymentPayload{
		X402Version: 1,
		Payload: map[string]interface{}{
			"authorization": "not an object",
		},
	}
	if payer := payload.Payer(); payer != "" {
		t.Fatalf("Expected empty payer, got %q", payer)
	}
}

func TestParseAtomicAmount(t *testing.T) {
	cases := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"1200000", "1200000", false},
		{"0", "0", false},
		{"0x10", "16", false},
		{"0X10", "16", false},
		{"", "", true},
		{"-5", "", true},
		{"12.5", "", true},
		{"abc", "", true},
		{"0x", "", true},
	}
	for _, tc := range cases {
		v, err := ParseAtomicAmount(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseAtomicAmount(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAtomicAmount(%q): unexpected error %v", tc.input, err)
			continue
		}
		if v.String() != tc.expected {
			t.Errorf("ParseAtomicAmount(%q): expected %s, got %s", tc.input, tc.expected, v)
		}
	}
}
