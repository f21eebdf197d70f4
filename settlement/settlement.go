// Package settlement validates preconditions for router/hook settlements and
// submits the final on-chain call.
package settlement

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"

	x402x "github.com/x402x/facilitator"
)

// FunctionSettle is the router entrypoint invoked for every settlement.
const FunctionSettle = "settle"

// SettlementRouterABI covers the router settle call: authorized transfer
// parameters plus the hook dispatch and fee split.
var SettlementRouterABI = []byte(`[
	{
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "from", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "validAfter", "type": "uint256"},
			{"name": "validBefore", "type": "uint256"},
			{"name": "nonce", "type": "bytes32"},
			{"name": "signature", "type": "bytes"},
			{"name": "salt", "type": "bytes32"},
			{"name": "payTo", "type": "address"},
			{"name": "facilitatorFee", "type": "uint256"},
			{"name": "hook", "type": "address"},
			{"name": "hookData", "type": "bytes"}
		],
		"name": "settle",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

// ZeroAddress is the hook value for plain transfers.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// TxStatusSuccess is the receipt status of a mined, non-reverted transaction.
const TxStatusSuccess = 1

// Receipt is the minimal transaction receipt the orchestrator needs.
type Receipt struct {
	Status      uint64
	BlockNumber uint64
	TxHash      string
}

// Signer is any chain signer owned by the facilitator. Concrete signers are
// chain-family specific; the orchestrator type-checks for the family it
// needs at submission time.
type Signer interface {
	Address() string
}

// EvmSigner submits settlement transactions against an EVM RPC endpoint.
type EvmSigner interface {
	Signer
	GetBalance(ctx context.Context, holder, asset string) (*big.Int, error)
	WriteContract(ctx context.Context, contract string, abiJSON []byte, method string, args ...interface{}) (string, error)
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
}

// BalanceChecker verifies the payer can cover the authorized value before
// any transaction is submitted.
type BalanceChecker interface {
	CheckBalance(ctx context.Context, network, payer, asset string, required *big.Int) error
}

// SignerBalanceChecker implements BalanceChecker on top of per-network EVM
// signers, keyed by canonical network key.
type SignerBalanceChecker struct {
	Signers map[string]EvmSigner
}

func (c SignerBalanceChecker) CheckBalance(ctx context.Context, network, payer, asset string, required *big.Int) error {
	key, ok := x402x.CanonicalNetwork(network)
	if !ok {
		return x402x.NewValidationError(x402x.ErrCodeUnsupportedNetwork, "unsupported network: "+network)
	}
	signer, ok := c.Signers[key]
	if !ok {
		return x402x.NewValidationError(x402x.ErrCodeUnsupportedNetwork, "no signer configured for network "+network)
	}
	balance, err := signer.GetBalance(ctx, payer, asset)
	if err != nil {
		return err
	}
	if balance.Cmp(required) < 0 {
		return x402x.NewValidationError(x402x.ErrCodeInsufficientFunds,
			"payer balance "+balance.String()+" below authorized value "+required.String())
	}
	return nil
}

// ValidateSettlementRouter checks a settlement router address against the
// per-network allow-list. It fails when no list is configured for the
// network, or the address is not a case-insensitive member.
func ValidateSettlementRouter(network, router string, allowed map[string][]string) error {
	key, ok := x402x.CanonicalNetwork(network)
	if !ok {
		key = strings.ToLower(network)
	}
	list := allowed[key]
	if len(list) == 0 {
		return x402x.NewValidationError(x402x.ErrCodeUnsupportedNetwork,
			"no settlement routers configured for network "+network)
	}
	for _, candidate := range list {
		if strings.EqualFold(candidate, router) {
			return nil
		}
	}
	return x402x.NewValidationError(x402x.ErrCodeInvalidAddress,
		"settlement router "+router+" not in allowlist for network "+network)
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, x402x.NewDecodingError("invalid 32-byte hex: " + err.Error())
	}
	if len(raw) != 32 {
		return out, x402x.NewDecodingError("expected 32 bytes of hex")
	}
	copy(out[:], raw)
	return out, nil
}

func decodeHexBytes(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, x402x.NewDecodingError("invalid hex: " + err.Error())
	}
	return raw, nil
}
