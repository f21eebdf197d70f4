// Package config loads the facilitator's environment-style configuration.
package config

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	x402x "github.com/x402x/facilitator"
	"github.com/x402x/facilitator/fees"
)

// Config holds the application configuration.
type Config struct {
	Host string
	Port string

	EVMPrivateKey string
	SVMPrivateKey string

	// RPCURLs maps canonical network keys to endpoint overrides.
	RPCURLs map[string]string

	Gas fees.GasConfig

	DynamicPricing      bool
	PriceUpdateInterval time.Duration
	PriceTTL            time.Duration
	PriceFeedAPIKey     string

	// SettlementRouters maps canonical network keys to router allow-lists.
	SettlementRouters map[string][]string
}

// Load reads configuration from the environment, with a .env file as
// optional source.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:              getEnvOrDefault("HOST", "0.0.0.0"),
		Port:              getEnvOrDefault("PORT", "8080"),
		EVMPrivateKey:     os.Getenv("EVM_PRIVATE_KEY"),
		SVMPrivateKey:     os.Getenv("SVM_PRIVATE_KEY"),
		RPCURLs:           make(map[string]string),
		SettlementRouters: make(map[string][]string),
		Gas:               fees.DefaultGasConfig(),
	}

	for _, network := range x402x.SupportedNetworks() {
		suffix := envSuffix(network)
		if url := os.Getenv("RPC_URL_" + suffix); url != "" {
			cfg.RPCURLs[network] = url
		}
		if routers := os.Getenv("SETTLEMENT_ROUTERS_" + suffix); routers != "" {
			cfg.SettlementRouters[network] = splitList(routers)
		}
		if hooks := os.Getenv("HOOK_ALLOWLIST_" + suffix); hooks != "" {
			if cfg.Gas.HookAllowlist == nil {
				cfg.Gas.HookAllowlist = make(map[string][]string)
			}
			cfg.Gas.HookAllowlist[network] = splitList(hooks)
		}
	}

	var err error
	if cfg.Gas.MinGasLimit, err = envUint("MIN_GAS_LIMIT", cfg.Gas.MinGasLimit); err != nil {
		return nil, err
	}
	if cfg.Gas.MaxGasLimit, err = envUint("MAX_GAS_LIMIT", cfg.Gas.MaxGasLimit); err != nil {
		return nil, err
	}
	if cfg.Gas.TransferGas, err = envUint("TRANSFER_GAS", cfg.Gas.TransferGas); err != nil {
		return nil, err
	}
	if cfg.Gas.HookGas, err = envUint("HOOK_GAS", cfg.Gas.HookGas); err != nil {
		return nil, err
	}
	if cfg.Gas.SafetyMultiplier, err = envFloat("SAFETY_MULTIPLIER", cfg.Gas.SafetyMultiplier); err != nil {
		return nil, err
	}
	if cfg.Gas.ValidationTolerance, err = envFloat("FEE_VALIDATION_TOLERANCE", cfg.Gas.ValidationTolerance); err != nil {
		return nil, err
	}
	if raw := os.Getenv("FALLBACK_GAS_PRICE_WEI"); raw != "" {
		wei, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, x402x.NewConfigError("invalid FALLBACK_GAS_PRICE_WEI: %s", raw)
		}
		cfg.Gas.FallbackGasPriceWei = wei
	}
	if err := cfg.Gas.Validate(); err != nil {
		return nil, err
	}

	cfg.DynamicPricing = envBool("DYNAMIC_PRICING", false)
	cfg.PriceFeedAPIKey = os.Getenv("PRICE_FEED_API_KEY")
	if cfg.PriceUpdateInterval, err = envDuration("PRICE_UPDATE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.PriceTTL, err = envDuration("PRICE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envSuffix(network string) string {
	return strings.ToUpper(strings.ReplaceAll(network, "-", "_"))
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envUint(key string, fallback uint64) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, x402x.NewConfigError("invalid %s: %s", key, raw)
	}
	return v, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, x402x.NewConfigError("invalid %s: %s", key, raw)
	}
	return v, nil
}

func envBool(key string, fallback bool) bool {
	raw := strings.ToLower(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return raw == "1" || raw == "true" || raw == "yes"
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, x402x.NewConfigError("invalid %s: %s", key, raw)
	}
	return d, nil
}
