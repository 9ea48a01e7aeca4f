// Package proof adapts the identity directory and DID resolver into proof
// production and verification for credentials and presentations. The proof
// format is fixed: compact ES256K JWTs carrying the document under a "vc"
// or "vp" claim.
package proof

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/identity"
)

// Signer produces and verifies JWT proofs on behalf of directory DIDs.
type Signer struct {
	directory identity.Directory
	resolver  identity.Resolver
	now       func() time.Time
}

func NewSigner(directory identity.Directory, resolver identity.Resolver) *Signer {
	return &Signer{
		directory: directory,
		resolver:  resolver,
		now:       time.Now,
	}
}

// SignCredential signs the credential payload with the issuer's controller
// key and returns the compact token. The credential itself is not mutated.
func (s *Signer) SignCredential(ctx context.Context, cred models.Credential) (string, error) {
	issuerDID := cred.Issuer.ID
	if issuerDID == "" {
		return "", fmt.Errorf("credential issuer is required")
	}

	claims := jwt.MapClaims{}
	payload, err := documentClaim(cred)
	if err != nil {
		return "", err
	}
	claims["vc"] = payload
	claims["iss"] = issuerDID
	if sub := cred.Subject.ID(); sub != "" {
		claims["sub"] = sub
	}
	if cred.ID != "" {
		claims["jti"] = cred.ID
	}
	if cred.IssuanceDate != "" {
		issued, err := models.ParseTime(cred.IssuanceDate)
		if err != nil {
			return "", fmt.Errorf("parse issuanceDate: %w", err)
		}
		claims["nbf"] = issued.Unix()
		claims["iat"] = issued.Unix()
	}
	if cred.ExpirationDate != "" {
		expires, err := models.ParseTime(cred.ExpirationDate)
		if err != nil {
			return "", fmt.Errorf("parse expirationDate: %w", err)
		}
		claims["exp"] = expires.Unix()
	}

	return s.sign(ctx, issuerDID, claims)
}

// SignPresentation signs the presentation payload with the holder's
// controller key.
func (s *Signer) SignPresentation(ctx context.Context, vp models.Presentation) (string, error) {
	if vp.Holder == "" {
		return "", fmt.Errorf("presentation holder is required")
	}

	claims := jwt.MapClaims{}
	payload, err := documentClaim(vp)
	if err != nil {
		return "", err
	}
	claims["vp"] = payload
	claims["iss"] = vp.Holder
	claims["nbf"] = s.now().Unix()
	if len(vp.Verifier) > 0 {
		claims["aud"] = vp.Verifier
	}

	return s.sign(ctx, vp.Holder, claims)
}

func (s *Signer) sign(ctx context.Context, did string, claims jwt.MapClaims) (string, error) {
	id, err := s.directory.GetDID(ctx, did)
	if err != nil {
		return "", fmt.Errorf("signer identity: %w", err)
	}
	key, err := s.directory.GetKey(ctx, id.ControllerKeyID)
	if err != nil {
		return "", fmt.Errorf("signer key: %w", err)
	}

	token := jwt.NewWithClaims(ES256K, claims)
	token.Header["typ"] = "JWT"
	token.Header["kid"] = id.ControllerKeyID

	signed, err := token.SignedString(key.PrivateKeyHex)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks a compact token's signature against the key material
// in the signer DID's resolved document, plus its time claims. It never
// panics on malformed input.
func (s *Signer) VerifyToken(ctx context.Context, token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("proof token is not a compact JWT")
	}

	headerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return fmt.Errorf("decode token header: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return fmt.Errorf("parse token header: %w", err)
	}
	if header.Alg != ES256K.Alg() {
		return fmt.Errorf("unsupported proof algorithm %q", header.Alg)
	}
	if header.Kid == "" {
		return fmt.Errorf("token header carries no kid")
	}

	doc, err := s.resolver.Resolve(ctx, header.Kid)
	if err != nil {
		return fmt.Errorf("resolve signer DID: %w", err)
	}
	pubKey, err := verificationKey(doc, header.Kid)
	if err != nil {
		return err
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("decode token signature: %w", err)
	}
	if err := ES256K.Verify(parts[0]+"."+parts[1], signature, pubKey); err != nil {
		return err
	}

	return s.verifyTimeClaims(parts[1])
}

func (s *Signer) verifyTimeClaims(payloadPart string) error {
	payloadRaw, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return fmt.Errorf("decode token payload: %w", err)
	}
	var claims struct {
		Exp *int64 `json:"exp"`
		Nbf *int64 `json:"nbf"`
	}
	if err := json.Unmarshal(payloadRaw, &claims); err != nil {
		return fmt.Errorf("parse token payload: %w", err)
	}

	now := s.now().Unix()
	if claims.Exp != nil && now > *claims.Exp {
		return fmt.Errorf("proof token expired")
	}
	if claims.Nbf != nil && now < *claims.Nbf {
		return fmt.Errorf("proof token not yet valid")
	}
	return nil
}

func verificationKey(doc identity.DIDDocument, kid string) (key any, err error) {
	for _, vm := range doc.VerificationMethod {
		if vm.ID == kid && vm.PublicKeyHex != "" {
			return ParsePublicKeyHex(vm.PublicKeyHex)
		}
	}
	// Fall back to the first usable key when the exact kid is absent.
	for _, vm := range doc.VerificationMethod {
		if vm.PublicKeyHex != "" {
			return ParsePublicKeyHex(vm.PublicKeyHex)
		}
	}
	return nil, fmt.Errorf("DID document for %q carries no usable verification key", doc.ID)
}

// documentClaim turns a document struct into the generic map embedded in
// the token payload, dropping any proof field on the way.
func documentClaim(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("remarshal document: %w", err)
	}
	delete(m, "proof")
	return m, nil
}
