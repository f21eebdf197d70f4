package fees

import (
	"context"
	"math"
	"math/big"

	"github.com/rs/zerolog"

	x402x "github.com/x402x/facilitator"
)

// Rejection is the structured fee-validation failure body. The field set is
// part of the wire contract; clients use it to self-diagnose and re-quote.
// ValidationTolerance must serialize even at zero, since strict deployments
// run with tolerance 0.
type Rejection struct {
	Error               string  `json:"error"`
	ProvidedFee         string  `json:"providedFee,omitempty"`
	MinFacilitatorFee   string  `json:"minFacilitatorFee,omitempty"`
	Threshold           string  `json:"threshold,omitempty"`
	ValidationTolerance float64 `json:"validationTolerance"`
}

// Outcome is the tagged result of fee validation: accepted (possibly as a
// non-settlement pass-through) or rejected with a structured reason.
// Expected rejections are values, not errors.
type Outcome struct {
	Accepted    bool
	Rejection   *Rejection
	Calculation *Calculation
}

func accepted(calc *Calculation) Outcome {
	return Outcome{Accepted: true, Calculation: calc}
}

func rejected(r Rejection) Outcome {
	return Outcome{Rejection: &r}
}

// Gate validates client-declared facilitator fees for settlement-mode
// requests against the live-computed minimum.
type Gate struct {
	calc *Calculator
	log  zerolog.Logger
}

// NewGate builds a fee validation gate around a calculator.
func NewGate(calc *Calculator, log zerolog.Logger) *Gate {
	return &Gate{
		calc: calc,
		log:  log.With().Str("component", "fee-gate").Logger(),
	}
}

// Validate accepts or rejects the declared facilitator fee. Non-settlement
// requests pass through untouched. Internal calculation failures become
// rejections carrying the failure message; validation never silently passes
// on error.
func (g *Gate) Validate(ctx context.Context, requirements *x402x.PaymentRequirements) Outcome {
	if requirements == nil || requirements.Network == "" {
		return rejected(Rejection{Error: "invalid payment requirements"})
	}

	extra, settlementMode := requirements.SettlementExtra()
	if !settlementMode {
		return accepted(nil)
	}

	declaredFee, err := x402x.ParseAtomicAmount(extra.FacilitatorFee)
	if err != nil {
		return rejected(Rejection{Error: "invalid payment requirements: facilitatorFee: " + err.Error()})
	}

	calc, err := g.calc.MinFacilitatorFee(ctx, string(requirements.Network), requirements.Asset, extra.Hook)
	if err != nil {
		return rejected(Rejection{Error: err.Error()})
	}

	if !calc.HookAllowed {
		return rejected(Rejection{Error: "hook not in allowlist: " + extra.Hook})
	}

	tolerance := g.calc.Config().ValidationTolerance
	threshold := feeThreshold(calc.MinFee, tolerance)

	if declaredFee.Cmp(threshold) < 0 {
		g.log.Info().
			Str("network", string(requirements.Network)).
			Str("providedFee", declaredFee.String()).
			Str("minFee", calc.MinFee.String()).
			Str("threshold", threshold.String()).
			Msg("facilitator fee below threshold")
		return rejected(Rejection{
			Error:               "facilitator fee too low",
			ProvidedFee:         declaredFee.String(),
			MinFacilitatorFee:   calc.MinFee.String(),
			Threshold:           threshold.String(),
			ValidationTolerance: tolerance,
		})
	}

	return accepted(calc)
}

// feeThreshold computes minFee * (1 - tolerance) in integer basis-point
// arithmetic. Amounts are atomic-unit integers; no float rounding may leak
// into the comparison.
func feeThreshold(minFee *big.Int, tolerance float64) *big.Int {
	bps := int64(math.Round(tolerance * 10_000))
	if bps <= 0 {
		return new(big.Int).Set(minFee)
	}
	threshold := new(big.Int).Mul(minFee, big.NewInt(10_000-bps))
	return threshold.Quo(threshold, big.NewInt(10_000))
}
