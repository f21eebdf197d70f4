package x402x

import (
	"errors"
	"fmt"
	"strings"
)

// Severity ranks how serious a facilitator error is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Stable error codes. Validation codes mark malformed or non-conforming
// requests and are never retried; settlement codes carry a per-code
// recoverability default.
const (
	ErrCodeConfig = "config_error"

	ErrCodeNetworkMismatch    = "network_mismatch"
	ErrCodeUnsupportedNetwork = "unsupported_network"
	ErrCodeSchemeMismatch     = "scheme_mismatch"
	ErrCodeReceiverMismatch   = "receiver_mismatch"
	ErrCodeInvalidSignature   = "invalid_signature"
	ErrCodeInvalidTiming      = "invalid_timing"
	ErrCodeInsufficientValue  = "insufficient_value"
	ErrCodeInsufficientFunds  = "insufficient_funds"
	ErrCodeInvalidAddress     = "invalid_address"

	ErrCodeTransactionFailed  = "transaction_failed"
	ErrCodeTransactionTimeout = "transaction_timeout"
	ErrCodeRPC                = "rpc_error"
	ErrCodeNonce              = "nonce_error"
	ErrCodeGasEstimation      = "gas_estimation_error"
	ErrCodeContractCall       = "contract_call_error"
	ErrCodeDecoding           = "decoding_error"
)

// Error is a typed facilitator error. Every instance carries a stable code,
// a severity tier and a recoverability flag; contextual fields are optional
// and filled at the point of failure.
type Error struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Severity    Severity               `json:"severity"`
	Recoverable bool                   `json:"recoverable"`
	Details     map[string]interface{} `json:"details,omitempty"`

	Payer    string `json:"payer,omitempty"`
	TxHash   string `json:"txHash,omitempty"`
	RPCURL   string `json:"rpcUrl,omitempty"`
	Contract string `json:"contract,omitempty"`
	Function string `json:"function,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches the underlying error for errors.Is/As chains.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// NewConfigError reports a fatal configuration problem.
func NewConfigError(format string, args ...interface{}) *Error {
	return &Error{
		Code:     ErrCodeConfig,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityCritical,
	}
}

// NewValidationError reports a malformed or non-conforming request.
// Validation errors are surfaced immediately and never retried.
func NewValidationError(code, message string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Severity: SeverityWarning,
	}
}

func NewTransactionFailedError(message string, recoverable bool) *Error {
	return &Error{
		Code:        ErrCodeTransactionFailed,
		Message:     message,
		Severity:    SeverityError,
		Recoverable: recoverable,
	}
}

func NewTransactionTimeoutError(message string) *Error {
	return &Error{
		Code:        ErrCodeTransactionTimeout,
		Message:     message,
		Severity:    SeverityError,
		Recoverable: true,
	}
}

func NewRPCError(message string) *Error {
	return &Error{
		Code:        ErrCodeRPC,
		Message:     message,
		Severity:    SeverityError,
		Recoverable: true,
	}
}

func NewNonceError(message string) *Error {
	return &Error{
		Code:        ErrCodeNonce,
		Message:     message,
		Severity:    SeverityError,
		Recoverable: true,
	}
}

func NewGasEstimationError(message string) *Error {
	return &Error{
		Code:     ErrCodeGasEstimation,
		Message:  message,
		Severity: SeverityError,
	}
}

func NewContractCallError(message string, recoverable bool) *Error {
	return &Error{
		Code:        ErrCodeContractCall,
		Message:     message,
		Severity:    SeverityError,
		Recoverable: recoverable,
	}
}

func NewDecodingError(message string) *Error {
	return &Error{
		Code:     ErrCodeDecoding,
		Message:  message,
		Severity: SeverityError,
	}
}

// Substring tables for Classify, checked in priority order.
var (
	timeoutPhrases = []string{"timeout", "timed out", "deadline exceeded"}
	noncePhrases   = []string{"nonce too low", "already known", "replacement transaction underpriced"}
	fundsPhrases   = []string{"insufficient funds"}
	gasPhrases     = []string{"gas required exceeds", "cannot estimate gas", "gas estimation failed", "intrinsic gas too low"}
	rpcPhrases     = []string{"connection refused", "connection reset", "no such host", "network is unreachable", "broken pipe", "unexpected eof", "bad gateway", "service unavailable"}
)

// Classify turns an arbitrary error into a typed facilitator error. Typed
// errors pass through unchanged; everything else is matched on message text,
// and anything unmatched (including nil) becomes a non-recoverable
// transaction_failed error.
func Classify(err error) *Error {
	if err == nil {
		return NewTransactionFailedError("unknown error", false)
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, timeoutPhrases):
		return NewTransactionTimeoutError(msg).WithCause(err)
	case containsAny(lower, noncePhrases):
		return NewNonceError(msg).WithCause(err)
	case containsAny(lower, fundsPhrases):
		return &Error{
			Code:     ErrCodeInsufficientFunds,
			Message:  msg,
			Severity: SeverityWarning,
			cause:    err,
		}
	case containsAny(lower, gasPhrases):
		return NewGasEstimationError(msg).WithCause(err)
	// "EOF" is matched case-sensitively: io.EOF surfaces as a bare upper-case
	// token, while words like "proof" must not classify as transport errors.
	case containsAny(lower, rpcPhrases) || strings.Contains(msg, "EOF"):
		return NewRPCError(msg).WithCause(err)
	default:
		return NewTransactionFailedError(msg, false).WithCause(err)
	}
}

// ShouldRetry reports whether an error is worth another attempt.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Recoverable
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
