package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tientaidev/veramo-agent/internal/audit"
	"github.com/tientaidev/veramo-agent/internal/credential/issuer"
	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/credential/proof"
	"github.com/tientaidev/veramo-agent/internal/credential/store"
	"github.com/tientaidev/veramo-agent/internal/credential/verifier"
	"github.com/tientaidev/veramo-agent/internal/identity"
	"github.com/tientaidev/veramo-agent/internal/messaging"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
	"github.com/tientaidev/veramo-agent/internal/registry"
	"github.com/tientaidev/veramo-agent/internal/revocation"
	"github.com/tientaidev/veramo-agent/internal/transfer"
)

type stubChain struct {
	revoked bool
	txHash  string
	calls   int
}

func (s *stubChain) CheckStatus(ctx context.Context, proofToken string, doc registry.LegacyDIDDocument) (bool, error) {
	s.calls++
	return s.revoked, nil
}

func (s *stubChain) Revoke(ctx context.Context, proofToken, signerKeyHex string, opts registry.TxOptions) (string, error) {
	s.calls++
	return s.txHash, nil
}

type apiFixture struct {
	server    *httptest.Server
	directory *identity.MemoryDirectory
	store     store.Store
	chain     *stubChain
	agentDID  string
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	ctx := context.Background()

	directory := identity.NewMemoryDirectory()
	resolver := identity.NewDirectoryResolver(directory, 1)
	agent, err := directory.CreateDID(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	signer := proof.NewSigner(directory, resolver)
	credStore := store.NewMemory()
	auditor := audit.NewMemoryPublisher()
	dispatcher := messaging.New(directory, resolver, logger, m)
	chain := &stubChain{txHash: "0xfeed"}

	deps := Deps{
		Logger:    logger,
		Metrics:   m,
		Gatherer:  reg,
		Directory: directory,
		Resolver:  resolver,
		Issuer:    issuer.New(signer, credStore, dispatcher, auditor, logger, m),
		Verifier:  verifier.New(signer, logger, m, auditor),
		Transfer:  transfer.New(signer, dispatcher, auditor, logger, m),
		Revocation: revocation.NewEngine(credStore, revocation.NewMemoryRecordStore(time.Minute),
			resolver, directory, chain, 1_000_000, logger, m, auditor),
		Store:      credStore,
		Dispatcher: dispatcher,
	}

	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)

	return apiFixture{server: server, directory: directory, store: credStore, chain: chain, agentDID: agent.DID}
}

func (fx apiFixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(fx.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestIdentityEndpoints(t *testing.T) {
	fx := newAPIFixture(t)

	resp, err := http.Get(fx.server.URL + "/dids/create")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	created := decodeBody[map[string]identity.Identity](t, resp)
	did := created["identifier"].DID
	require.NotEmpty(t, did)

	resp, err = http.Get(fx.server.URL + "/dids")
	require.NoError(t, err)
	listed := decodeBody[map[string][]identity.Identity](t, resp)
	assert.Len(t, listed["identifiers"], 2)

	resp, err = http.Get(fx.server.URL + "/dids/resolve?did=" + did)
	require.NoError(t, err)
	doc := decodeBody[identity.DIDDocument](t, resp)
	assert.Equal(t, did, doc.ID)
	assert.NotEmpty(t, doc.VerificationMethod)

	resp = fx.postJSON(t, "/dids/add-service", map[string]any{
		"did": did,
		"service": identity.Service{
			ID: did + "#messaging", Type: "Messaging", ServiceEndpoint: "https://wallet.example/inbox",
		},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, fx.server.URL+"/dids/delete?did="+did, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	deleted := decodeBody[map[string]bool](t, resp)
	assert.True(t, deleted["result"])
}

func TestIssueAndVerifyEndpoints(t *testing.T) {
	fx := newAPIFixture(t)

	resp := fx.postJSON(t, "/credentials/issue", models.IssueRequest{
		Credential: models.Credential{
			Issuer:  models.Issuer{ID: fx.agentDID},
			Subject: models.Subject{"id": "did:example:alice", "role": "operator"},
		},
		Options: models.IssueOptions{Save: true},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	issued := decodeBody[models.IssueResult](t, resp)
	require.True(t, issued.Credential.Signed())

	resp = fx.postJSON(t, "/credentials/verify", map[string]any{
		"verifiableCredential": issued.Credential,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	verified := decodeBody[models.VerificationResult](t, resp)
	assert.True(t, verified.Valid, verified.Error)

	resp, err := http.Get(fx.server.URL + "/credentials/")
	require.NoError(t, err)
	records := decodeBody[[]models.CredentialRecord](t, resp)
	require.Len(t, records, 1)

	req, err := http.NewRequest(http.MethodDelete, fx.server.URL+"/credentials/delete?hash="+records[0].Hash, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.True(t, decodeBody[bool](t, resp))
}

func TestIssueEndpointRejectsMalformedBody(t *testing.T) {
	fx := newAPIFixture(t)

	resp, err := http.Post(fx.server.URL+"/credentials/issue", "application/json",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTransferEndpointFailureIsTagged(t *testing.T) {
	fx := newAPIFixture(t)

	// Target has no messaging endpoint, so dispatch must fail.
	resp := fx.postJSON(t, "/credentials/transfer", models.TransferRequest{
		From: fx.agentDID,
		To:   "did:ethr:0xtarget",
		Body: models.TransferBody{Credential: models.Credential{
			Subject: models.Subject{"id": fx.agentDID},
			Proof:   &models.Proof{Type: models.ProofTypeJWT, JWT: "a.b.c"},
		}},
	})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	result := decodeBody[models.GenericResult](t, resp)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestRevocationEndpoints(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()

	hash, err := fx.store.Save(ctx, models.Credential{
		Issuer:  models.Issuer{ID: fx.agentDID},
		Subject: models.Subject{"id": fx.agentDID},
		Proof:   &models.Proof{Type: models.ProofTypeJWT, JWT: "a.b.c"},
	})
	require.NoError(t, err)

	resp := fx.postJSON(t, "/credentials/revoke", models.RevocationRequest{
		CredentialID:     hash,
		CredentialStatus: []models.StatusEntry{{Type: "Other", Status: "1"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rejected := decodeBody[models.RevocationResult](t, resp)
	assert.Equal(t, models.StatusNotRevoked, rejected.Status)
	assert.Equal(t, "Unsupported type or status.", rejected.Message)
	assert.Zero(t, fx.chain.calls)

	resp = fx.postJSON(t, "/credentials/revoke", models.RevocationRequest{
		CredentialID:     hash,
		CredentialStatus: []models.StatusEntry{{Type: revocation.RegistryType, Status: "1"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	accepted := decodeBody[models.RevocationResult](t, resp)
	assert.Equal(t, models.StatusPending, accepted.Status)
	assert.Equal(t, "0xfeed", accepted.Message)

	resp = fx.postJSON(t, "/credentials/is-revoked", map[string]string{"credentialId": hash})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decodeBody[models.StatusResult](t, resp)
	assert.False(t, status.Revoked)
}

func TestMessagingEndpoint(t *testing.T) {
	fx := newAPIFixture(t)
	ctx := context.Background()

	directoryResolver := identity.NewDirectoryResolver(fx.directory, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := messaging.New(fx.directory, directoryResolver, logger, metrics.New(prometheus.NewRegistry()))

	packed, err := dispatcher.Pack(ctx, messaging.Message{
		Type: "veramo.io-chat-v1",
		From: fx.agentDID,
		To:   fx.agentDID,
		Body: "hello",
	})
	require.NoError(t, err)

	resp, err := http.Post(fx.server.URL+"/messaging", "text/plain", bytes.NewReader([]byte(packed)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, true, body["success"])

	resp, err = http.Post(fx.server.URL+"/messaging", "text/plain", bytes.NewReader([]byte("garbage")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	fx := newAPIFixture(t)

	resp, err := http.Get(fx.server.URL + "/healthz")
	require.NoError(t, err)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}
