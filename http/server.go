// Package http exposes the facilitator over HTTP: payment verification,
// settlement, supported kinds and health.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	x402x "github.com/x402x/facilitator"
	"github.com/x402x/facilitator/fees"
	"github.com/x402x/facilitator/pricing"
	"github.com/x402x/facilitator/settlement"
)

// Server wires the fee gate and settlement orchestrator behind a gin router.
type Server struct {
	gate         *fees.Gate
	orchestrator *settlement.Orchestrator
	balances     settlement.BalanceChecker
	oracle       *pricing.Oracle
	supported    []x402x.SupportedKind
	log          zerolog.Logger
}

// NewServer builds the HTTP surface. balances and oracle may be nil when the
// corresponding checks are not wired (tests).
func NewServer(
	gate *fees.Gate,
	orchestrator *settlement.Orchestrator,
	balances settlement.BalanceChecker,
	oracle *pricing.Oracle,
	supported []x402x.SupportedKind,
	log zerolog.Logger,
) *Server {
	return &Server{
		gate:         gate,
		orchestrator: orchestrator,
		balances:     balances,
		oracle:       oracle,
		supported:    supported,
		log:          log.With().Str("component", "http").Logger(),
	}
}

// Router assembles the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(s.log))

	router.POST("/verify", s.handleVerify)
	router.POST("/settle", s.handleSettle)
	router.GET("/supported", s.handleSupported)
	router.GET("/health", s.handleHealth)

	return router
}

func (s *Server) readPaymentRequest(c *gin.Context, out interface{}) bool {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return false
	}
	if err := validatePaymentRequest(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleVerify(c *gin.Context) {
	var req x402x.VerifyRequest
	if !s.readPaymentRequest(c, &req) {
		return
	}

	outcome := s.gate.Validate(c.Request.Context(), &req.PaymentRequirements)
	if !outcome.Accepted {
		c.JSON(http.StatusPaymentRequired, outcome.Rejection)
		return
	}

	exact, err := req.PaymentPayload.ExactPayload()
	if err != nil {
		c.JSON(http.StatusOK, x402x.VerifyResponse{IsValid: false, InvalidReason: x402x.ErrCodeDecoding})
		return
	}
	payer := exact.Authorization.From

	value, err := x402x.ParseAtomicAmount(exact.Authorization.Value)
	if err != nil {
		c.JSON(http.StatusOK, x402x.VerifyResponse{IsValid: false, InvalidReason: x402x.ErrCodeInsufficientValue, Payer: payer})
		return
	}

	required, err := x402x.ParseAtomicAmount(req.PaymentRequirements.Amount)
	if err != nil || value.Cmp(required) < 0 {
		c.JSON(http.StatusOK, x402x.VerifyResponse{IsValid: false, InvalidReason: x402x.ErrCodeInsufficientValue, Payer: payer})
		return
	}

	now := time.Now().Unix()
	validAfter, err1 := x402x.ParseAtomicAmount(exact.Authorization.ValidAfter)
	validBefore, err2 := x402x.ParseAtomicAmount(exact.Authorization.ValidBefore)
	// Bounds past int64 range are valid on-chain: an oversized validAfter is
	// a window that never opens, an oversized validBefore never expires.
	// Int64() would silently truncate either one.
	notYetValid := err1 == nil && (!validAfter.IsInt64() || validAfter.Int64() > now)
	expired := err2 == nil && validBefore.IsInt64() && validBefore.Int64() <= now
	if err1 != nil || err2 != nil || notYetValid || expired {
		c.JSON(http.StatusOK, x402x.VerifyResponse{IsValid: false, InvalidReason: x402x.ErrCodeInvalidTiming, Payer: payer})
		return
	}

	if s.balances != nil {
		if err := s.balances.CheckBalance(c.Request.Context(), string(req.PaymentRequirements.Network), payer, req.PaymentRequirements.Asset, value); err != nil {
			classified := x402x.Classify(err)
			s.log.Warn().
				Err(classified).
				Str("payer", payer).
				Msg("verify balance check failed")
			c.JSON(http.StatusOK, x402x.VerifyResponse{IsValid: false, InvalidReason: classified.Code, Payer: payer})
			return
		}
	}

	c.JSON(http.StatusOK, x402x.VerifyResponse{IsValid: true, Payer: payer})
}

func (s *Server) handleSettle(c *gin.Context) {
	var req x402x.SettleRequest
	if !s.readPaymentRequest(c, &req) {
		return
	}

	outcome := s.gate.Validate(c.Request.Context(), &req.PaymentRequirements)
	if !outcome.Accepted {
		c.JSON(http.StatusPaymentRequired, outcome.Rejection)
		return
	}

	// The orchestrator never returns an error; failures arrive as a
	// structured result.
	result := s.orchestrator.Settle(c.Request.Context(), req)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, x402x.SupportedResponse{Kinds: s.supported})
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{"status": "ok"}
	if s.oracle != nil {
		health["priceCache"] = s.oracle.CacheStats()
	}
	c.JSON(http.StatusOK, health)
}
