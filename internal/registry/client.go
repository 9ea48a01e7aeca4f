// Package registry talks to the on-chain credential status registry. The
// core only ever asks two questions: is this proof token revoked, and
// submit a revocation for it. Transaction fee markets, receipts, and reorg
// handling stay on the other side of this seam.
package registry

import (
	"context"
	"errors"
)

// LegacyPublicKey is the key-descriptor shape the registry tooling still
// expects: a publicKey entry with an ethereumAddress, not a DID-core
// verification method.
type LegacyPublicKey struct {
	ID              string `json:"id"`
	Controller      string `json:"controller"`
	Type            string `json:"type"`
	EthereumAddress string `json:"ethereumAddress"`
}

// LegacyDIDDocument is the reshaped DID document handed to CheckStatus.
type LegacyDIDDocument struct {
	ID        string            `json:"id"`
	PublicKey []LegacyPublicKey `json:"publicKey"`
}

// TxOptions bound the revocation transaction.
type TxOptions struct {
	GasLimit uint64
}

// Client is the chain registry seam used by the revocation engine.
type Client interface {
	// CheckStatus reports whether the credential behind proofToken is
	// revoked for the account in doc. Read-only and idempotent.
	CheckStatus(ctx context.Context, proofToken string, doc LegacyDIDDocument) (bool, error)
	// Revoke submits a revocation transaction signed with signerKeyHex
	// and returns the transaction hash. Confirmation happens out of band.
	Revoke(ctx context.Context, proofToken string, signerKeyHex string, opts TxOptions) (string, error)
}

// Unconfigured stands in when no chain RPC endpoint is configured. Every
// call fails with an explicit error so callers surface it as data.
type Unconfigured struct{}

func (Unconfigured) CheckStatus(ctx context.Context, proofToken string, doc LegacyDIDDocument) (bool, error) {
	return false, errors.New("status registry not configured")
}

func (Unconfigured) Revoke(ctx context.Context, proofToken string, signerKeyHex string, opts TxOptions) (string, error) {
	return "", errors.New("status registry not configured")
}
