package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	x402x "github.com/x402x/facilitator"
)

// Oracle resolves the USD price of a network's native gas token. Lookups hit
// the cache first, then the feed; any feed failure degrades to the caller's
// static fallback rather than failing the calculation.
type Oracle struct {
	cache   *Cache
	feed    *FeedClient
	enabled bool
	log     zerolog.Logger
}

// NewOracle creates an oracle around an injected cache and feed client.
// When enabled is false every lookup returns the fallback unchanged.
func NewOracle(cache *Cache, feed *FeedClient, enabled bool, log zerolog.Logger) *Oracle {
	return &Oracle{
		cache:   cache,
		feed:    feed,
		enabled: enabled,
		log:     log.With().Str("component", "price-oracle").Logger(),
	}
}

// TokenPrice returns the native token USD price for a network. The network
// may be given in CAIP-2 or alias form; unknown networks, disabled dynamic
// pricing, and fetch failures all yield fallback.
func (o *Oracle) TokenPrice(ctx context.Context, network string, fallback float64) float64 {
	if !o.enabled {
		return fallback
	}

	info, err := x402x.GetNetworkInfo(network)
	if err != nil || info.PriceFeedID == "" {
		o.log.Debug().Str("network", network).Msg("no price feed id for network, using fallback")
		return fallback
	}

	if price, ok := o.cache.Get(info.Key); ok {
		return price
	}

	price, err := o.feed.FetchUSDPrice(ctx, info.PriceFeedID)
	if err != nil {
		o.log.Warn().
			Err(err).
			Str("network", info.Key).
			Str("feedId", info.PriceFeedID).
			Float64("fallback", fallback).
			Msg("price fetch failed, using fallback")
		return fallback
	}

	o.cache.Set(info.Key, price)
	return price
}

// ClearCache drops one network's cached price, or all of them.
func (o *Oracle) ClearCache(networks ...string) {
	canonical := make([]string, 0, len(networks))
	for _, network := range networks {
		if key, ok := x402x.CanonicalNetwork(network); ok {
			canonical = append(canonical, key)
		}
	}
	if len(networks) > 0 && len(canonical) == 0 {
		return
	}
	o.cache.Clear(canonical...)
}

// CacheStats exposes the cache's observability snapshot.
func (o *Oracle) CacheStats() map[string]CacheStat {
	return o.cache.Stats()
}

// StartUpdater launches a background refresher for the given networks: one
// immediate fetch per network, then one per interval. Fetch errors are
// logged and swallowed; they never stop the updater or crash the process.
// The returned function cancels the updater.
func (o *Oracle) StartUpdater(networks []string, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	refresh := func() {
		for _, network := range networks {
			info, err := x402x.GetNetworkInfo(network)
			if err != nil || info.PriceFeedID == "" {
				continue
			}
			price, err := o.feed.FetchUSDPrice(ctx, info.PriceFeedID)
			if err != nil {
				o.log.Warn().
					Err(err).
					Str("network", info.Key).
					Msg("background price update failed")
				continue
			}
			o.cache.Set(info.Key, price)
			o.log.Debug().
				Str("network", info.Key).
				Float64("price", price).
				Msg("background price update")
		}
	}

	go func() {
		refresh()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				refresh()
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel
}
