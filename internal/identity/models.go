// Package identity exposes the agent's view of DIDs: the directory that
// owns local identities and their key material, and the resolver that turns
// any DID into its document. Both are narrow seams so the rest of the core
// never touches key storage or DID method details directly.
package identity

// Identity is a DID managed by the local directory together with its keys.
type Identity struct {
	DID             string    `json:"did"`
	ControllerKeyID string    `json:"controllerKeyId"`
	Keys            []Key     `json:"keys"`
	Services        []Service `json:"services,omitempty"`
}

// Key is the directory's key material record. PrivateKeyHex never leaves
// the process; it is handed to signers and the chain registry client only.
type Key struct {
	KID           string `json:"kid"`
	Type          string `json:"type"`
	PublicKeyHex  string `json:"publicKeyHex"`
	PrivateKeyHex string `json:"-"`
}

// Service is a DID document service endpoint entry.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// VerificationMethod is a single verification method in a DID document.
type VerificationMethod struct {
	ID                  string `json:"id"`
	Type                string `json:"type"`
	Controller          string `json:"controller"`
	PublicKeyHex        string `json:"publicKeyHex,omitempty"`
	BlockchainAccountID string `json:"blockchainAccountId,omitempty"`
}

// DIDDocument is a resolved DID document, trimmed to the fields this agent
// consumes: keys for proof verification and service endpoints for dispatch.
type DIDDocument struct {
	Context            []string             `json:"@context"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication,omitempty"`
	AssertionMethod    []string             `json:"assertionMethod,omitempty"`
	Service            []Service            `json:"service,omitempty"`
}

// KeyTypeSecp256k1 is the only key type the directory mints today.
const KeyTypeSecp256k1 = "Secp256k1"
