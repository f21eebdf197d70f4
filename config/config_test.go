package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, uint64(100_000), cfg.Gas.MinGasLimit)
	assert.Equal(t, 0.1, cfg.Gas.ValidationTolerance)
	assert.False(t, cfg.DynamicPricing)
	assert.Equal(t, time.Minute, cfg.PriceUpdateInterval)
	assert.Equal(t, 5*time.Minute, cfg.PriceTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_GAS_LIMIT", "600000")
	t.Setenv("FEE_VALIDATION_TOLERANCE", "0.05")
	t.Setenv("DYNAMIC_PRICING", "true")
	t.Setenv("PRICE_UPDATE_INTERVAL", "30s")
	t.Setenv("FALLBACK_GAS_PRICE_WEI", "2000000000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, uint64(600_000), cfg.Gas.MaxGasLimit)
	assert.Equal(t, 0.05, cfg.Gas.ValidationTolerance)
	assert.True(t, cfg.DynamicPricing)
	assert.Equal(t, 30*time.Second, cfg.PriceUpdateInterval)
	assert.Equal(t, "2000000000", cfg.Gas.FallbackGasPriceWei.String())
}

func TestLoadPerNetworkLists(t *testing.T) {
	t.Setenv("RPC_URL_BASE_SEPOLIA", "https://sepolia.base.org")
	t.Setenv("SETTLEMENT_ROUTERS_BASE_SEPOLIA", "0xaaa, 0xbbb ,")
	t.Setenv("HOOK_ALLOWLIST_BASE", "0xccc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://sepolia.base.org", cfg.RPCURLs["base-sepolia"])
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, cfg.SettlementRouters["base-sepolia"])
	assert.Equal(t, []string{"0xccc"}, cfg.Gas.HookAllowlist["base"])
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("MIN_GAS_LIMIT", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidTolerance(t *testing.T) {
	t.Setenv("FEE_VALIDATION_TOLERANCE", "1.5")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadFallbackGasPrice(t *testing.T) {
	t.Setenv("FALLBACK_GAS_PRICE_WEI", "abc")
	_, err := Load()
	assert.Error(t, err)
}
