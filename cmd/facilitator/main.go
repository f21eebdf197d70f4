// Command facilitator runs the x402 settlement facilitator: fee validation,
// payment verification and router settlement over HTTP.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	x402x "github.com/x402x/facilitator"
	"github.com/x402x/facilitator/config"
	"github.com/x402x/facilitator/fees"
	httpx "github.com/x402x/facilitator/http"
	"github.com/x402x/facilitator/pricing"
	"github.com/x402x/facilitator/settlement"
	"github.com/x402x/facilitator/signers/evm"
	"github.com/x402x/facilitator/signers/svm"
)

// gasPriceRouter dispatches live gas price queries to the signer connected to
// the requested network. Networks without a configured RPC endpoint fall back
// to the calculator's static gas price.
type gasPriceRouter struct {
	signers map[string]*evm.Signer
}

func (g gasPriceRouter) GasPrice(ctx context.Context, network string) (*big.Int, error) {
	key, ok := x402x.CanonicalNetwork(network)
	if !ok {
		return nil, fmt.Errorf("unsupported network %s", network)
	}
	signer, ok := g.signers[key]
	if !ok {
		return nil, fmt.Errorf("no rpc endpoint configured for network %s", network)
	}
	return signer.GasPrice(ctx, network)
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	evmSigners := make(map[string]*evm.Signer)
	if cfg.EVMPrivateKey != "" {
		for network, rpcURL := range cfg.RPCURLs {
			signer, err := evm.NewSigner(cfg.EVMPrivateKey, rpcURL, log)
			if err != nil {
				log.Fatal().Err(err).Str("network", network).Msg("failed to create EVM signer")
			}
			evmSigners[network] = signer
			log.Info().
				Str("network", network).
				Str("address", signer.Address()).
				Str("chainId", signer.ChainID().String()).
				Msg("EVM signer connected")
		}
	}
	if len(evmSigners) == 0 {
		log.Warn().Msg("no EVM signers configured, settlement is disabled")
	}

	var svmSigner *svm.Signer
	if cfg.SVMPrivateKey != "" {
		svmSigner, err = svm.NewSigner(cfg.SVMPrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create SVM signer")
		}
		log.Info().Str("address", svmSigner.Address()).Msg("SVM fee payer configured")
	}

	cache := pricing.NewCache(cfg.PriceTTL)
	feed := pricing.NewFeedClient(pricing.WithAPIKey(cfg.PriceFeedAPIKey))
	oracle := pricing.NewOracle(cache, feed, cfg.DynamicPricing, log)

	if cfg.DynamicPricing {
		stop := oracle.StartUpdater(x402x.SupportedNetworks(), cfg.PriceUpdateInterval)
		defer stop()
	}

	calculator, err := fees.NewCalculator(cfg.Gas, oracle, gasPriceRouter{signers: evmSigners}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid fee configuration")
	}
	gate := fees.NewGate(calculator, log)

	settleSigners := make(map[string]settlement.Signer, len(evmSigners))
	balanceSigners := make(map[string]settlement.EvmSigner, len(evmSigners))
	for network, signer := range evmSigners {
		settleSigners[network] = signer
		balanceSigners[network] = signer
	}
	balances := settlement.SignerBalanceChecker{Signers: balanceSigners}
	orchestrator := settlement.NewOrchestrator(settleSigners, balances, cfg.SettlementRouters, log)

	server := httpx.NewServer(gate, orchestrator, balances, oracle, supportedKinds(cfg, svmSigner), log)

	addr := cfg.Host + ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		log.Info().Str("addr", addr).Msg("facilitator listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

// supportedKinds advertises one exact-scheme kind per network that has both
// an RPC endpoint and a settlement router allow-list, plus the SVM fee payer
// when a Solana key is configured.
func supportedKinds(cfg *config.Config, svmSigner *svm.Signer) []x402x.SupportedKind {
	var kinds []x402x.SupportedKind
	for _, network := range x402x.SupportedNetworks() {
		if _, ok := cfg.RPCURLs[network]; !ok {
			continue
		}
		info, err := x402x.GetNetworkInfo(network)
		if err != nil {
			continue
		}
		extra := map[string]interface{}{
			"defaultAsset": info.DefaultAsset.Address,
		}
		if routers := cfg.SettlementRouters[network]; len(routers) > 0 {
			extra["settlementRouters"] = routers
		}
		kinds = append(kinds, x402x.SupportedKind{
			X402Version: 1,
			Scheme:      "exact",
			Network:     info.CAIP2,
			Extra:       extra,
		})
	}
	if svmSigner != nil {
		kinds = append(kinds, x402x.SupportedKind{
			X402Version: 1,
			Scheme:      "exact",
			Network:     "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
			Extra: map[string]interface{}{
				"feePayer": svmSigner.Address(),
			},
		})
	}
	return kinds
}
