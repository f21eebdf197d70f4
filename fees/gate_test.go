package fees

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402x "github.com/x402x/facilitator"
)

func testGate(t *testing.T, cfg GasConfig) *Gate {
	t.Helper()
	calc, err := NewCalculator(cfg, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	return NewGate(calc, zerolog.Nop())
}

func settlementRequirements(fee string) *x402x.PaymentRequirements {
	return &x402x.PaymentRequirements{
		Scheme:  "exact",
		Network: "eip155:8453",
		Asset:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Amount:  "10000000",
		PayTo:   "0x2222222222222222222222222222222222222222",
		Extra: map[string]interface{}{
			"settlementRouter": "0x1111111111111111111111111111111111111111",
			"facilitatorFee":   fee,
		},
	}
}

func TestGateAcceptsNonSettlementRequests(t *testing.T) {
	gate := testGate(t, testGasConfig())

	outcome := gate.Validate(context.Background(), &x402x.PaymentRequirements{
		Scheme:  "exact",
		Network: "eip155:8453",
		Asset:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Amount:  "10000000",
	})
	assert.True(t, outcome.Accepted)
	assert.Nil(t, outcome.Rejection)
	assert.Nil(t, outcome.Calculation, "non-settlement requests skip fee calculation")
}

func TestGateRejectsNilRequirements(t *testing.T) {
	gate := testGate(t, testGasConfig())

	outcome := gate.Validate(context.Background(), nil)
	assert.False(t, outcome.Accepted)
	require.NotNil(t, outcome.Rejection)

	outcome = gate.Validate(context.Background(), &x402x.PaymentRequirements{})
	assert.False(t, outcome.Accepted)
}

func TestGateBoundaryInclusive(t *testing.T) {
	// Min fee is 1200000; at 10% tolerance the threshold is exactly 1080000.
	gate := testGate(t, testGasConfig())

	outcome := gate.Validate(context.Background(), settlementRequirements("1080000"))
	assert.True(t, outcome.Accepted, "fee equal to the threshold must pass")
	require.NotNil(t, outcome.Calculation)
	assert.Equal(t, "1200000", outcome.Calculation.MinFeeAtomic)

	outcome = gate.Validate(context.Background(), settlementRequirements("1079999"))
	assert.False(t, outcome.Accepted, "one unit below the threshold must fail")
}

func TestGateRejectionFields(t *testing.T) {
	gate := testGate(t, testGasConfig())

	outcome := gate.Validate(context.Background(), settlementRequirements("500000"))
	require.False(t, outcome.Accepted)
	r := outcome.Rejection
	require.NotNil(t, r)

	assert.Equal(t, "facilitator fee too low", r.Error)
	assert.Equal(t, "500000", r.ProvidedFee)
	assert.Equal(t, "1200000", r.MinFacilitatorFee)
	assert.Equal(t, "1080000", r.Threshold)
	assert.Equal(t, 0.1, r.ValidationTolerance)
}

func TestGateZeroTolerance(t *testing.T) {
	cfg := testGasConfig()
	cfg.ValidationTolerance = 0
	gate := testGate(t, cfg)

	outcome := gate.Validate(context.Background(), settlementRequirements("1200000"))
	assert.True(t, outcome.Accepted)

	outcome = gate.Validate(context.Background(), settlementRequirements("1199999"))
	assert.False(t, outcome.Accepted, "zero tolerance means the full minimum is required")

	// The zero tolerance still serializes; every rejection carries the full
	// field set on the wire.
	body, err := json.Marshal(outcome.Rejection)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"validationTolerance":0`)
	assert.Contains(t, string(body), `"threshold":"1200000"`)
}

func TestGateInvalidFee(t *testing.T) {
	gate := testGate(t, testGasConfig())

	for _, fee := range []string{"", "-5", "abc"} {
		outcome := gate.Validate(context.Background(), settlementRequirements(fee))
		assert.False(t, outcome.Accepted, "fee %q must be rejected", fee)
		require.NotNil(t, outcome.Rejection)
		assert.Contains(t, outcome.Rejection.Error, "invalid payment requirements")
	}
}

func TestGateUnsupportedNetwork(t *testing.T) {
	gate := testGate(t, testGasConfig())

	requirements := settlementRequirements("1200000")
	requirements.Network = "eip155:1"
	outcome := gate.Validate(context.Background(), requirements)
	assert.False(t, outcome.Accepted)
	assert.Contains(t, outcome.Rejection.Error, "unsupported network")
}

func TestGateUnknownAsset(t *testing.T) {
	gate := testGate(t, testGasConfig())

	requirements := settlementRequirements("1200000")
	requirements.Asset = "0x9999999999999999999999999999999999999999"
	outcome := gate.Validate(context.Background(), requirements)
	assert.False(t, outcome.Accepted)
	assert.Contains(t, outcome.Rejection.Error, "unsupported settlement asset")
}

func TestGateHookAllowlistRejection(t *testing.T) {
	cfg := testGasConfig()
	cfg.HookAllowlist = map[string][]string{
		"base": {"0x3333333333333333333333333333333333333333"},
	}
	gate := testGate(t, cfg)

	requirements := settlementRequirements("9999999999")
	requirements.Extra["hook"] = "0x4444444444444444444444444444444444444444"
	outcome := gate.Validate(context.Background(), requirements)
	assert.False(t, outcome.Accepted)
	assert.Contains(t, outcome.Rejection.Error, "hook not in allowlist")
}

func TestFeeThreshold(t *testing.T) {
	cases := []struct {
		minFee    int64
		tolerance float64
		expected  int64
	}{
		{1_200_000, 0.1, 1_080_000},
		{1_200_000, 0, 1_200_000},
		{1_000_000, 0.05, 950_000},
		{999, 0.1, 899},
		{1, 0.1, 0},
		{0, 0.1, 0},
	}
	for _, tc := range cases {
		got := feeThreshold(big.NewInt(tc.minFee), tc.tolerance)
		assert.Equal(t, tc.expected, got.Int64(), "feeThreshold(%d, %v)", tc.minFee, tc.tolerance)
	}
}
