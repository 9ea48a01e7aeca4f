package proof

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethodES256K implements secp256k1 ECDSA over SHA-256 for compact
// JWTs, the algorithm did:ethr proofs are issued with. golang-jwt has no
// built-in support for it, so it is registered here once.
type SigningMethodES256K struct{}

// ES256K is the signing method instance used by all signers and verifiers.
var ES256K = &SigningMethodES256K{}

func init() {
	jwt.RegisterSigningMethod(ES256K.Alg(), func() jwt.SigningMethod { return ES256K })
}

func (m *SigningMethodES256K) Alg() string { return "ES256K" }

// Sign expects key to be the signer's private key as a hex string and
// returns the 64-byte R||S signature.
func (m *SigningMethodES256K) Sign(signingString string, key interface{}) ([]byte, error) {
	privKeyHex, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("ES256K sign: key must be a private key hex string")
	}

	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(privKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ES256K sign: invalid private key: %w", err)
	}

	hash := sha256.Sum256([]byte(signingString))
	sig, err := crypto.Sign(hash[:], privKey)
	if err != nil {
		return nil, fmt.Errorf("ES256K sign: %w", err)
	}

	// Drop the recovery ID; JWS carries R||S only.
	return sig[:64], nil
}

// Verify expects key to be an *ecdsa.PublicKey.
func (m *SigningMethodES256K) Verify(signingString string, signature []byte, key interface{}) error {
	pubKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("ES256K verify: key must be *ecdsa.PublicKey")
	}
	if len(signature) != 64 {
		return fmt.Errorf("ES256K verify: signature must be 64 bytes, got %d", len(signature))
	}

	hash := sha256.Sum256([]byte(signingString))
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	if !ecdsa.Verify(pubKey, hash[:], r, s) {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

// ParsePublicKeyHex decodes a compressed (33 byte) or uncompressed (65
// byte) secp256k1 public key from its hex encoding.
func ParsePublicKeyHex(publicKeyHex string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode public key hex: %w", err)
	}
	switch {
	case len(raw) == 33 && (raw[0] == 0x02 || raw[0] == 0x03):
		return crypto.DecompressPubkey(raw)
	case len(raw) == 65 && raw[0] == 0x04:
		return crypto.UnmarshalPubkey(raw)
	default:
		return nil, fmt.Errorf("unsupported public key encoding (%d bytes)", len(raw))
	}
}
