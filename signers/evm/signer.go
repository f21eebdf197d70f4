// Package evm provides the facilitator-side EVM signer: balance reads, gas
// price queries and settlement transaction submission over an RPC endpoint.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	x402x "github.com/x402x/facilitator"
	"github.com/x402x/facilitator/settlement"
)

// DefaultSettleGasLimit caps the settle call when gas estimation fails soft
// (estimation errors are otherwise fatal; this applies only when estimation
// is disabled).
const DefaultSettleGasLimit = 300_000

// ERC20BalanceOfABI is the minimal ABI for token balance reads.
var ERC20BalanceOfABI = []byte(`[
	{
		"inputs": [
			{"name": "account", "type": "address"}
		],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`)

// Signer submits facilitator transactions on one EVM chain. RPC reads go
// through the RPC retry profile; receipt polling uses the confirmation
// profile with its wall-clock ceiling.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	client     *ethclient.Client
	chainID    *big.Int
	rpcURL     string
	log        zerolog.Logger
}

// NewSigner connects to the RPC endpoint and derives the facilitator
// address from the hex-encoded private key.
func NewSigner(privateKeyHex, rpcURL string, log zerolog.Logger) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, x402x.NewConfigError("invalid private key: %v", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, x402x.NewRPCError(fmt.Sprintf("failed to connect to RPC %s: %v", rpcURL, err)).WithCause(err)
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, x402x.NewRPCError(fmt.Sprintf("failed to get chain id from %s: %v", rpcURL, err)).WithCause(err)
	}

	return &Signer{
		privateKey: privateKey,
		address:    address,
		client:     client,
		chainID:    chainID,
		rpcURL:     rpcURL,
		log:        log.With().Str("component", "evm-signer").Str("chainId", chainID.String()).Logger(),
	}, nil
}

// Address returns the facilitator's address.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// ChainID returns the connected chain's id.
func (s *Signer) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// GasPrice implements fees.GasPriceSource. The signer is bound to one chain,
// so the network argument is informational only.
func (s *Signer) GasPrice(ctx context.Context, network string) (*big.Int, error) {
	return x402x.WithRetry(ctx, s.log, x402x.RPCRetryConfig, "eth_gasPrice", func(ctx context.Context) (*big.Int, error) {
		return s.client.SuggestGasPrice(ctx)
	})
}

// GetBalance returns the holder's balance: native when asset is empty or the
// zero address, ERC-20 balanceOf otherwise.
func (s *Signer) GetBalance(ctx context.Context, holder, asset string) (*big.Int, error) {
	if asset == "" || strings.EqualFold(asset, settlement.ZeroAddress) {
		return x402x.WithRetry(ctx, s.log, x402x.RPCRetryConfig, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
			return s.client.BalanceAt(ctx, common.HexToAddress(holder), nil)
		})
	}

	result, err := s.ReadContract(ctx, asset, ERC20BalanceOfABI, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	balance, ok := result.(*big.Int)
	if !ok {
		return nil, x402x.NewDecodingError(fmt.Sprintf("unexpected balanceOf result type %T", result))
	}
	return balance, nil
}

// ReadContract performs a read-only contract call, retried under the RPC
// profile. String arguments that look like addresses are converted.
func (s *Signer) ReadContract(ctx context.Context, contract string, abiJSON []byte, method string, args ...interface{}) (interface{}, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, x402x.NewDecodingError("failed to parse ABI: " + err.Error())
	}

	data, err := contractABI.Pack(method, convertArgs(args)...)
	if err != nil {
		return nil, x402x.NewContractCallError("failed to pack "+method+": "+err.Error(), false)
	}

	to := common.HexToAddress(contract)
	result, err := x402x.WithRetry(ctx, s.log, x402x.RPCRetryConfig, "eth_call:"+method, func(ctx context.Context) ([]byte, error) {
		return s.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	if err != nil {
		classified := x402x.Classify(err)
		classified.Contract = contract
		classified.Function = method
		classified.RPCURL = s.rpcURL
		return nil, classified
	}

	methodDef, exists := contractABI.Methods[method]
	if !exists {
		return nil, x402x.NewContractCallError("method "+method+" not in ABI", false)
	}
	output, err := methodDef.Outputs.Unpack(result)
	if err != nil {
		return nil, x402x.NewDecodingError("failed to unpack " + method + " result: " + err.Error())
	}
	if len(output) == 0 {
		return nil, nil
	}
	return output[0], nil
}

// WriteContract packs, signs and submits a state-changing call, returning
// the transaction hash. Gas is estimated per call; estimation failures are
// surfaced as non-recoverable gas estimation errors.
func (s *Signer) WriteContract(ctx context.Context, contract string, abiJSON []byte, method string, args ...interface{}) (string, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return "", x402x.NewDecodingError("failed to parse ABI: " + err.Error())
	}

	data, err := contractABI.Pack(method, convertArgs(args)...)
	if err != nil {
		return "", x402x.NewContractCallError("failed to pack "+method+": "+err.Error(), false)
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return "", x402x.Classify(err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", x402x.Classify(err)
	}

	to := common.HexToAddress(contract)
	gasLimit, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From: s.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		gasErr := x402x.NewGasEstimationError(fmt.Sprintf("gas estimation failed for %s: %v", method, err)).WithCause(err)
		gasErr.Contract = contract
		gasErr.Function = method
		return "", gasErr
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return "", x402x.NewTransactionFailedError("failed to sign transaction: "+err.Error(), false).WithCause(err)
	}

	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		classified := x402x.Classify(err)
		classified.Contract = contract
		classified.Function = method
		classified.RPCURL = s.rpcURL
		return "", classified
	}

	hash := signedTx.Hash().Hex()
	s.log.Info().
		Str("txHash", hash).
		Str("contract", contract).
		Str("method", method).
		Uint64("gasLimit", gasLimit).
		Msg("transaction submitted")
	return hash, nil
}

// WaitForTransactionReceipt polls until the transaction is mined, bounded by
// the confirmation retry profile's attempt cap and wall-clock ceiling.
func (s *Signer) WaitForTransactionReceipt(ctx context.Context, txHash string) (*settlement.Receipt, error) {
	hash := common.HexToHash(txHash)

	cfg := x402x.TxConfirmationRetryConfig
	// A pending transaction reads as "not found"; keep polling until the
	// profile's bounds cut us off.
	cfg.ShouldRetry = func(*x402x.Error) bool { return true }

	receipt, err := x402x.WithRetry(ctx, s.log, cfg, "eth_getTransactionReceipt", func(ctx context.Context) (*types.Receipt, error) {
		return s.client.TransactionReceipt(ctx, hash)
	})
	if err != nil {
		classified := x402x.Classify(err)
		classified.TxHash = txHash
		return nil, classified
	}

	return &settlement.Receipt{
		Status:      receipt.Status,
		BlockNumber: receipt.BlockNumber.Uint64(),
		TxHash:      receipt.TxHash.Hex(),
	}, nil
}

// convertArgs maps wire-level argument representations onto go-ethereum ABI
// types: hex address strings become common.Address, everything else passes
// through untouched.
func convertArgs(args []interface{}) []interface{} {
	converted := make([]interface{}, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok && common.IsHexAddress(s) {
			converted[i] = common.HexToAddress(s)
			continue
		}
		converted[i] = arg
	}
	return converted
}

var _ settlement.EvmSigner = (*Signer)(nil)
