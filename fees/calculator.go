// Package fees computes the minimum facilitator fee for settlement-mode
// payments and validates client-declared fees against it.
package fees

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	x402x "github.com/x402x/facilitator"
	"github.com/x402x/facilitator/pricing"
)

// GasConfig holds the gas-cost tunables for fee calculation.
type GasConfig struct {
	MinGasLimit uint64
	MaxGasLimit uint64

	// TransferGas is the base overhead of a plain router transfer; HookGas
	// covers settlements invoking a custom hook contract.
	TransferGas uint64
	HookGas     uint64

	SafetyMultiplier    float64
	ValidationTolerance float64

	// HookAllowlist maps canonical network keys to permitted hook addresses.
	// A nil map disables allow-listing.
	HookAllowlist map[string][]string

	// FallbackGasPriceWei is used when the live gas price source fails.
	FallbackGasPriceWei *big.Int
}

// DefaultGasConfig returns the stock tunables.
func DefaultGasConfig() GasConfig {
	return GasConfig{
		MinGasLimit:         100_000,
		MaxGasLimit:         500_000,
		TransferGas:         120_000,
		HookGas:             250_000,
		SafetyMultiplier:    1.5,
		ValidationTolerance: 0.1,
		FallbackGasPriceWei: big.NewInt(100_000_000), // 0.1 gwei
	}
}

// Validate reports the first malformed tunable, if any.
func (c GasConfig) Validate() error {
	if c.MinGasLimit == 0 || c.MaxGasLimit < c.MinGasLimit {
		return x402x.NewConfigError("invalid gas limit bounds: min=%d max=%d", c.MinGasLimit, c.MaxGasLimit)
	}
	if c.SafetyMultiplier < 1 {
		return x402x.NewConfigError("safety multiplier must be >= 1, got %v", c.SafetyMultiplier)
	}
	if c.ValidationTolerance < 0 || c.ValidationTolerance >= 1 {
		return x402x.NewConfigError("validation tolerance must be in [0,1), got %v", c.ValidationTolerance)
	}
	if c.FallbackGasPriceWei == nil || c.FallbackGasPriceWei.Sign() <= 0 {
		return x402x.NewConfigError("fallback gas price must be positive")
	}
	return nil
}

// GasPriceSource supplies a live gas price per network. Implementations are
// expected to hit the RPC endpoint; failures degrade to the configured
// fallback.
type GasPriceSource interface {
	GasPrice(ctx context.Context, network string) (*big.Int, error)
}

// StaticGasPrice is a GasPriceSource pinned to one value, used when no RPC
// connection is configured.
type StaticGasPrice struct {
	Wei *big.Int
}

func (s StaticGasPrice) GasPrice(ctx context.Context, network string) (*big.Int, error) {
	return new(big.Int).Set(s.Wei), nil
}

// Calculation is the per-request fee derivation. Ephemeral: computed per
// request and never persisted.
type Calculation struct {
	MinFee           *big.Int `json:"-"`
	MinFeeAtomic     string   `json:"minFacilitatorFee"`
	MinFeeUSD        string   `json:"minFacilitatorFeeUsd"`
	GasLimit         uint64   `json:"gasLimit"`
	GasPriceWei      string   `json:"gasPrice"`
	GasCostNative    string   `json:"gasCostNative"`
	GasCostUSD       string   `json:"gasCostUsd"`
	SafetyMultiplier float64  `json:"safetyMultiplier"`
	FinalUSD         string   `json:"finalCostUsd"`
	HookAllowed      bool     `json:"hookAllowed"`
}

// Calculator derives minimum facilitator fees from gas and price inputs.
type Calculator struct {
	cfg    GasConfig
	oracle *pricing.Oracle
	gas    GasPriceSource
	log    zerolog.Logger
}

// NewCalculator validates the config and builds a calculator.
func NewCalculator(cfg GasConfig, oracle *pricing.Oracle, gas GasPriceSource, log zerolog.Logger) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gas == nil {
		gas = StaticGasPrice{Wei: cfg.FallbackGasPriceWei}
	}
	return &Calculator{
		cfg:    cfg,
		oracle: oracle,
		gas:    gas,
		log:    log.With().Str("component", "fee-calculator").Logger(),
	}, nil
}

// Config returns the calculator's tunables.
func (c *Calculator) Config() GasConfig {
	return c.cfg
}

// isPlainTransfer reports whether the hook denotes a plain router transfer
// rather than a custom hook contract.
func isPlainTransfer(hook string) bool {
	if hook == "" {
		return true
	}
	trimmed := strings.TrimPrefix(strings.ToLower(hook), "0x")
	return strings.Trim(trimmed, "0") == ""
}

// MinFacilitatorFee computes the minimum acceptable fee, in the settlement
// asset's atomic units, for one settlement on the given network, asset and
// hook. An empty asset selects the network default; unknown assets fail
// rather than assume decimals. Price-source failures degrade to static
// fallbacks; only malformed configuration is fatal.
func (c *Calculator) MinFacilitatorFee(ctx context.Context, network, asset, hook string) (*Calculation, error) {
	info, err := x402x.GetNetworkInfo(network)
	if err != nil {
		return nil, err
	}

	assetInfo, ok := info.Asset(asset)
	if !ok {
		return nil, x402x.NewValidationError(x402x.ErrCodeInvalidAddress,
			"unsupported settlement asset "+asset+" on network "+info.Key)
	}

	base := c.cfg.TransferGas
	if !isPlainTransfer(hook) {
		base = c.cfg.HookGas
	}
	gasLimit := base
	if gasLimit < c.cfg.MinGasLimit {
		gasLimit = c.cfg.MinGasLimit
	}
	if gasLimit > c.cfg.MaxGasLimit {
		gasLimit = c.cfg.MaxGasLimit
	}

	gasPrice, err := c.gas.GasPrice(ctx, info.Key)
	if err != nil || gasPrice == nil || gasPrice.Sign() <= 0 {
		c.log.Warn().
			Err(err).
			Str("network", info.Key).
			Str("fallbackWei", c.cfg.FallbackGasPriceWei.String()).
			Msg("gas price fetch failed, using fallback")
		gasPrice = c.cfg.FallbackGasPriceWei
	}

	tokenPrice := info.FallbackTokenPrice
	if c.oracle != nil {
		tokenPrice = c.oracle.TokenPrice(ctx, info.Key, info.FallbackTokenPrice)
	}
	if tokenPrice <= 0 {
		return nil, x402x.NewConfigError("no usable token price for network %s", info.Key)
	}

	// gas cost with margin, in wei
	costWei := new(big.Float).SetInt(new(big.Int).Mul(
		new(big.Int).SetUint64(gasLimit),
		gasPrice,
	))
	costWei.Mul(costWei, big.NewFloat(c.cfg.SafetyMultiplier))

	// native token units
	costNative := new(big.Float).Quo(costWei, big.NewFloat(1e18))
	// USD
	costUSD := new(big.Float).Mul(costNative, big.NewFloat(tokenPrice))

	// settlement asset atomic units, rounded up
	atomic := new(big.Float).Mul(costUSD, pow10(assetInfo.Decimals))
	minFee := ceilToInt(atomic)

	nativeF, _ := costNative.Float64()
	usdF, _ := costUSD.Float64()

	return &Calculation{
		MinFee:           minFee,
		MinFeeAtomic:     minFee.String(),
		MinFeeUSD:        strconv.FormatFloat(usdF, 'f', -1, 64),
		GasLimit:         gasLimit,
		GasPriceWei:      gasPrice.String(),
		GasCostNative:    strconv.FormatFloat(nativeF, 'f', -1, 64),
		GasCostUSD:       strconv.FormatFloat(usdF, 'f', -1, 64),
		SafetyMultiplier: c.cfg.SafetyMultiplier,
		FinalUSD:         strconv.FormatFloat(usdF, 'f', -1, 64),
		HookAllowed:      c.hookAllowed(info.Key, hook),
	}, nil
}

// hookAllowed checks the declared hook against the per-network allow-list.
// Plain transfers and disabled allow-listing always pass; the caller turns a
// false result into a rejection.
func (c *Calculator) hookAllowed(networkKey, hook string) bool {
	if c.cfg.HookAllowlist == nil || isPlainTransfer(hook) {
		return true
	}
	for _, allowed := range c.cfg.HookAllowlist[networkKey] {
		if strings.EqualFold(allowed, hook) {
			return true
		}
	}
	return false
}

func pow10(decimals int) *big.Float {
	return new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

func ceilToInt(f *big.Float) *big.Int {
	i, acc := f.Int(nil)
	if acc == big.Below {
		i.Add(i, big.NewInt(1))
	}
	return i
}
