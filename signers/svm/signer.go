// Package svm provides the facilitator's Solana fee-payer identity. SVM
// networks have no settlement-router mechanism; the signer exists so the
// supported-kinds surface can advertise the fee payer and so an SVM signer
// handed to an EVM settlement fails as a structured result rather than a
// type panic.
package svm

import (
	"github.com/gagliardetto/solana-go"

	x402x "github.com/x402x/facilitator"
)

// Signer wraps a Solana keypair acting as transaction fee payer.
type Signer struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewSigner parses a base58-encoded private key.
func NewSigner(privateKeyBase58 string) (*Signer, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, x402x.NewConfigError("invalid solana private key: %v", err)
	}
	return &Signer{
		privateKey: key,
		publicKey:  key.PublicKey(),
	}, nil
}

// Address returns the base58 fee-payer address.
func (s *Signer) Address() string {
	return s.publicKey.String()
}

// FeePayer returns the typed public key.
func (s *Signer) FeePayer() solana.PublicKey {
	return s.publicKey
}
