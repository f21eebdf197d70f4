package settlement

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	x402x "github.com/x402x/facilitator"
)

// Orchestrator validates settlement preconditions and submits the router
// settle call. Settle always returns a structured result; no submission
// error ever escapes as a Go error.
type Orchestrator struct {
	signers  map[string]Signer
	balances BalanceChecker
	routers  map[string][]string
	retry    x402x.RetryConfig
	log      zerolog.Logger
}

// NewOrchestrator builds an orchestrator. Both the signers and routers maps
// are keyed by canonical network key; balances may be nil to skip the
// balance precheck (tests only, production wiring always injects one).
func NewOrchestrator(signers map[string]Signer, balances BalanceChecker, routers map[string][]string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		signers:  signers,
		balances: balances,
		routers:  routers,
		retry:    x402x.DefaultRetryConfig,
		log:      log.With().Str("component", "settlement").Logger(),
	}
}

// WithRetryConfig overrides the submission retry profile.
func (o *Orchestrator) WithRetryConfig(cfg x402x.RetryConfig) *Orchestrator {
	o.retry = cfg
	return o
}

// Settle performs one settlement attempt sequence. The result's ErrorReason
// is drawn from a fixed vocabulary; callers decide whether to retry the
// settlement as a whole.
func (o *Orchestrator) Settle(ctx context.Context, req x402x.SettleRequest) x402x.SettleResponse {
	network := req.PaymentRequirements.Network

	fail := func(reason, payer, tx string) x402x.SettleResponse {
		return x402x.SettleResponse{
			Success:     false,
			ErrorReason: reason,
			Payer:       payer,
			Transaction: tx,
			Network:     network,
		}
	}

	extra, settlementMode := req.PaymentRequirements.SettlementExtra()
	if !settlementMode {
		o.log.Warn().Str("network", string(network)).Msg("settle called without settlement router")
		return fail(x402x.ReasonValidationFailed, req.PaymentPayload.Payer(), "")
	}

	exact, err := req.PaymentPayload.ExactPayload()
	if err != nil {
		return fail(x402x.ReasonValidationFailed, "", "")
	}
	payer := exact.Authorization.From

	if err := ValidateSettlementRouter(string(network), extra.SettlementRouter, o.routers); err != nil {
		o.log.Warn().
			Err(err).
			Str("network", string(network)).
			Str("router", extra.SettlementRouter).
			Msg("settlement router rejected")
		return fail(x402x.ReasonValidationFailed, payer, "")
	}

	value, err := x402x.ParseAtomicAmount(exact.Authorization.Value)
	if err != nil {
		return fail(x402x.ReasonValidationFailed, payer, "")
	}

	fee := big.NewInt(0)
	if extra.FacilitatorFee != "" {
		fee, err = x402x.ParseAtomicAmount(extra.FacilitatorFee)
		if err != nil {
			return fail(x402x.ReasonValidationFailed, payer, "")
		}
	}

	// The fee may never eat into (or exceed) the authorized value.
	if fee.Cmp(value) > 0 || (value.Sign() == 0 && fee.Sign() > 0) {
		o.log.Warn().
			Str("fee", fee.String()).
			Str("value", value.String()).
			Str("payer", payer).
			Msg("facilitator fee exceeds payment value")
		return fail(x402x.ReasonFeeExceedsValue, payer, "")
	}

	// Operational signal only: a fee ratio above 50% is suspicious but legal.
	if value.Sign() > 0 && new(big.Int).Mul(fee, big.NewInt(2)).Cmp(value) > 0 {
		o.log.Warn().
			Str("fee", fee.String()).
			Str("value", value.String()).
			Msg("facilitator fee above 50% of payment value")
	}

	if o.balances != nil {
		if err := o.balances.CheckBalance(ctx, string(network), payer, req.PaymentRequirements.Asset, value); err != nil {
			classified := x402x.Classify(err)
			o.log.Warn().
				Err(classified).
				Str("payer", payer).
				Str("code", classified.Code).
				Msg("payer balance check failed")
			return fail(x402x.ReasonValidationFailed, payer, "")
		}
	}

	key, _ := x402x.CanonicalNetwork(string(network))
	evmSigner, ok := o.signers[key].(EvmSigner)
	if !ok {
		o.log.Error().
			Str("network", string(network)).
			Msg("no EVM signer available for network")
		return fail(x402x.ReasonUnexpectedSettleError, payer, "")
	}

	validAfter, err1 := x402x.ParseAtomicAmount(exact.Authorization.ValidAfter)
	validBefore, err2 := x402x.ParseAtomicAmount(exact.Authorization.ValidBefore)
	if err1 != nil || err2 != nil {
		return fail(x402x.ReasonValidationFailed, payer, "")
	}
	nonce, err := decodeHex32(exact.Authorization.Nonce)
	if err != nil {
		return fail(x402x.ReasonValidationFailed, payer, "")
	}
	salt, err := decodeHex32(extra.Salt)
	if err != nil {
		return fail(x402x.ReasonValidationFailed, payer, "")
	}
	signature, err := decodeHexBytes(exact.Signature)
	if err != nil {
		return fail(x402x.ReasonValidationFailed, payer, "")
	}
	hookData, err := decodeHexBytes(extra.HookData)
	if err != nil {
		return fail(x402x.ReasonValidationFailed, payer, "")
	}

	hook := extra.Hook
	if hook == "" {
		hook = ZeroAddress
	}
	payTo := extra.PayTo
	if payTo == "" {
		payTo = req.PaymentRequirements.PayTo
	}

	txHash, err := x402x.WithRetry(ctx, o.log, o.retry, "settle", func(ctx context.Context) (string, error) {
		return evmSigner.WriteContract(
			ctx,
			extra.SettlementRouter,
			SettlementRouterABI,
			FunctionSettle,
			req.PaymentRequirements.Asset,
			exact.Authorization.From,
			value,
			validAfter,
			validBefore,
			nonce,
			signature,
			salt,
			payTo,
			fee,
			hook,
			hookData,
		)
	})
	if err != nil {
		classified := x402x.Classify(err)
		o.log.Error().
			Err(classified).
			Str("payer", payer).
			Str("code", classified.Code).
			Msg("settlement submission failed")
		return fail(x402x.ReasonUnexpectedSettleError, payer, "")
	}

	receipt, err := evmSigner.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		classified := x402x.Classify(err)
		o.log.Error().
			Err(classified).
			Str("txHash", txHash).
			Str("code", classified.Code).
			Msg("settlement confirmation failed")
		return fail(x402x.ReasonUnexpectedSettleError, payer, txHash)
	}
	if receipt.Status != TxStatusSuccess {
		o.log.Error().
			Str("txHash", txHash).
			Uint64("block", receipt.BlockNumber).
			Msg("settlement transaction reverted")
		return fail(x402x.ReasonUnexpectedSettleError, payer, txHash)
	}

	o.log.Info().
		Str("txHash", txHash).
		Str("payer", payer).
		Str("network", string(network)).
		Msg("settlement confirmed")

	return x402x.SettleResponse{
		Success:     true,
		Payer:       payer,
		Transaction: txHash,
		Network:     network,
	}
}
