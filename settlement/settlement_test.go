package settlement

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402x "github.com/x402x/facilitator"
)

const testRouter = "0xAAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"

func TestValidateSettlementRouter(t *testing.T) {
	allowed := map[string][]string{
		"base-sepolia": {testRouter},
	}

	assert.NoError(t, ValidateSettlementRouter("base-sepolia", testRouter, allowed))

	// CAIP-2 form resolves to the same allow-list, and matching ignores case.
	assert.NoError(t, ValidateSettlementRouter("eip155:84532", testRouter, allowed))
	assert.NoError(t, ValidateSettlementRouter("base-sepolia", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", allowed))
}

func TestValidateSettlementRouterNoListConfigured(t *testing.T) {
	err := ValidateSettlementRouter("base", testRouter, map[string][]string{})
	require.Error(t, err)
	assert.Equal(t, x402x.ErrCodeUnsupportedNetwork, x402x.Classify(err).Code)

	err = ValidateSettlementRouter("base", testRouter, nil)
	require.Error(t, err)
}

func TestValidateSettlementRouterNotInList(t *testing.T) {
	allowed := map[string][]string{
		"base": {testRouter},
	}
	err := ValidateSettlementRouter("base", "0xBBbBBbbBBbbBbbBbBBBBBBBBbbbBbBbBbbBbbBbB", allowed)
	require.Error(t, err)
	assert.Equal(t, x402x.ErrCodeInvalidAddress, x402x.Classify(err).Code)
}

type balanceOnlySigner struct {
	balance *big.Int
	err     error
}

func (s *balanceOnlySigner) Address() string { return "0xfacilitator" }
func (s *balanceOnlySigner) GetBalance(ctx context.Context, holder, asset string) (*big.Int, error) {
	return s.balance, s.err
}
func (s *balanceOnlySigner) WriteContract(ctx context.Context, contract string, abiJSON []byte, method string, args ...interface{}) (string, error) {
	return "", errors.New("not implemented")
}
func (s *balanceOnlySigner) WaitForTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	return nil, errors.New("not implemented")
}

func TestSignerBalanceChecker(t *testing.T) {
	checker := SignerBalanceChecker{
		Signers: map[string]EvmSigner{
			"base": &balanceOnlySigner{balance: big.NewInt(1_000_000)},
		},
	}

	err := checker.CheckBalance(context.Background(), "eip155:8453", "0xpayer", "0xasset", big.NewInt(500_000))
	assert.NoError(t, err)

	err = checker.CheckBalance(context.Background(), "base", "0xpayer", "0xasset", big.NewInt(2_000_000))
	require.Error(t, err)
	assert.Equal(t, x402x.ErrCodeInsufficientFunds, x402x.Classify(err).Code)
}

func TestSignerBalanceCheckerNoSigner(t *testing.T) {
	checker := SignerBalanceChecker{Signers: map[string]EvmSigner{}}

	err := checker.CheckBalance(context.Background(), "base", "0xpayer", "0xasset", big.NewInt(1))
	require.Error(t, err)
	assert.Equal(t, x402x.ErrCodeUnsupportedNetwork, x402x.Classify(err).Code)

	err = checker.CheckBalance(context.Background(), "eip155:1", "0xpayer", "0xasset", big.NewInt(1))
	require.Error(t, err)
}

func TestSignerBalanceCheckerPropagatesErrors(t *testing.T) {
	checker := SignerBalanceChecker{
		Signers: map[string]EvmSigner{
			"base": &balanceOnlySigner{err: errors.New("connection refused")},
		},
	}
	err := checker.CheckBalance(context.Background(), "base", "0xpayer", "0xasset", big.NewInt(1))
	require.Error(t, err)
	assert.Equal(t, x402x.ErrCodeRPC, x402x.Classify(err).Code)
}

func TestDecodeHex32(t *testing.T) {
	nonce := "0x0000000000000000000000000000000000000000000000000000000000000001"
	out, err := decodeHex32(nonce)
	require.NoError(t, err)
	assert.Equal(t, byte(1), out[31])

	// Without the prefix.
	_, err = decodeHex32("0000000000000000000000000000000000000000000000000000000000000001")
	assert.NoError(t, err)

	_, err = decodeHex32("0x01")
	assert.Error(t, err, "short values must fail")
	_, err = decodeHex32("0xzz")
	assert.Error(t, err)
}

func TestDecodeHexBytes(t *testing.T) {
	out, err := decodeHexBytes("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, out)

	out, err = decodeHexBytes("")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = decodeHexBytes("0xzz")
	assert.Error(t, err)
}
