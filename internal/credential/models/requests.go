package models

// GenericResult is the tagged success/failure shape every externally exposed
// operation resolves to. Callers branch on Success instead of inspecting
// error values smuggled through success channels.
type GenericResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// VerificationResult reports a credential or presentation check. Verify
// never fails with a transport error; malformed input lands here too.
type VerificationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// IssueOptions mirror the wire-level issuance options. ToWallet asks the
// issuer to deliver the fresh credential to the subject's wallet agent.
type IssueOptions struct {
	Save     bool `json:"save"`
	ToWallet bool `json:"toWallet,omitempty"`
}

// IssueRequest asks the issuer to sign (and optionally persist) a template.
type IssueRequest struct {
	Credential Credential   `json:"credential"`
	Options    IssueOptions `json:"options"`
}

// IssueResult returns the signed credential. Warning captures secondary
// failures (persistence, wallet delivery) that do not void the credential.
type IssueResult struct {
	Credential Credential `json:"credential"`
	Sent       bool       `json:"sent,omitempty"`
	Warning    string     `json:"warning,omitempty"`
}

// RevocationStatus is the registry-facing credential state.
type RevocationStatus string

const (
	StatusNotRevoked RevocationStatus = "NOT_REVOKED"
	StatusPending    RevocationStatus = "PENDING"
	StatusRevoked    RevocationStatus = "REVOKED"
)

// StatusEntry is one entry of a revocation request's credentialStatus list;
// the engine's policy gate inspects the first entry only.
type StatusEntry struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// RevocationRequest identifies the credential by content hash.
type RevocationRequest struct {
	CredentialID     string        `json:"credentialId"`
	CredentialStatus []StatusEntry `json:"credentialStatus"`
}

// RevocationResult reports the outcome of a revocation submission. Message
// holds the transaction hash on acceptance and the error text otherwise.
type RevocationResult struct {
	Status  RevocationStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// StatusResult answers a read-only revocation status check.
type StatusResult struct {
	Revoked bool `json:"revoked"`
}

// TransferBody carries the credential being delegated.
type TransferBody struct {
	Credential Credential `json:"credential"`
}

// TransferRequest asks the transfer protocol to delegate the credential in
// Body from one agent to another.
type TransferRequest struct {
	From string       `json:"from"`
	To   string       `json:"to"`
	Type string       `json:"type,omitempty"`
	Body TransferBody `json:"body"`
}

// CredentialRecord is the store's listing row, mirroring the credential
// table of the original agent database.
type CredentialRecord struct {
	Hash           string `json:"hash"`
	Raw            string `json:"raw"`
	ID             string `json:"id"`
	IssuanceDate   string `json:"issuanceDate"`
	ExpirationDate string `json:"expirationDate,omitempty"`
	Context        string `json:"context"`
	Type           string `json:"type"`
	IssuerDID      string `json:"issuerDid"`
	SubjectDID     string `json:"subjectDid"`
}
