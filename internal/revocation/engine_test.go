package revocation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tientaidev/veramo-agent/internal/audit"
	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/credential/store"
	"github.com/tientaidev/veramo-agent/internal/identity"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
	"github.com/tientaidev/veramo-agent/internal/registry"
)

type fakeChain struct {
	checkCalls  int
	revokeCalls int
	revoked     bool
	txHash      string
	err         error
}

func (f *fakeChain) CheckStatus(ctx context.Context, proofToken string, doc registry.LegacyDIDDocument) (bool, error) {
	f.checkCalls++
	return f.revoked, f.err
}

func (f *fakeChain) Revoke(ctx context.Context, proofToken, signerKeyHex string, opts registry.TxOptions) (string, error) {
	f.revokeCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.txHash, nil
}

type engineFixture struct {
	engine  *Engine
	chain   *fakeChain
	records *MemoryRecordStore
	trail   *audit.MemoryPublisher
	hash    string
}

func eligibleStatus() []models.StatusEntry {
	return []models.StatusEntry{{Type: RegistryType, Status: "1"}}
}

func newEngineFixture(t *testing.T, chain *fakeChain) engineFixture {
	t.Helper()
	ctx := context.Background()

	directory := identity.NewMemoryDirectory()
	resolver := identity.NewDirectoryResolver(directory, 1)
	subject, err := directory.CreateDID(ctx)
	require.NoError(t, err)

	credentials := store.NewMemory()
	hash, err := credentials.Save(ctx, models.Credential{
		Context: []string{models.ContextCredentialsV1},
		Type:    []string{models.TypeVerifiableCredential},
		Issuer:  models.Issuer{ID: subject.DID},
		Subject: models.Subject{"id": subject.DID},
		Proof:   &models.Proof{Type: models.ProofTypeJWT, JWT: "header.payload.signature"},
	})
	require.NoError(t, err)

	records := NewMemoryRecordStore(time.Minute)
	trail := audit.NewMemoryPublisher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(credentials, records, resolver, directory, chain, 1_000_000,
		logger, metrics.New(prometheus.NewRegistry()), trail)

	return engineFixture{engine: engine, chain: chain, records: records, trail: trail, hash: hash}
}

func TestRevokeAcceptedRequest(t *testing.T) {
	chain := &fakeChain{txHash: "0xdeadbeef"}
	fx := newEngineFixture(t, chain)
	ctx := context.Background()

	res := fx.engine.Revoke(ctx, models.RevocationRequest{
		CredentialID:     fx.hash,
		CredentialStatus: eligibleStatus(),
	})

	assert.Equal(t, models.StatusPending, res.Status)
	assert.Equal(t, "0xdeadbeef", res.Message)
	assert.Equal(t, 1, chain.revokeCalls)

	rec, err := fx.records.GetRecord(ctx, fx.hash)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Equal(t, "0xdeadbeef", rec.Message)

	events := fx.trail.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionRevocationRequest, events[0].Action)
	assert.Equal(t, fx.hash, events[0].Subject)
	assert.Equal(t, string(models.StatusPending), events[0].Detail["status"])
}

func TestRevokeRejectsUnsupportedStatus(t *testing.T) {
	chain := &fakeChain{txHash: "0xdeadbeef"}
	fx := newEngineFixture(t, chain)
	ctx := context.Background()

	for _, entries := range [][]models.StatusEntry{
		nil,
		{{Type: "Other", Status: "1"}},
		{{Type: RegistryType, Status: "0"}},
	} {
		res := fx.engine.Revoke(ctx, models.RevocationRequest{
			CredentialID:     fx.hash,
			CredentialStatus: entries,
		})
		assert.Equal(t, models.StatusNotRevoked, res.Status)
		assert.Equal(t, RejectMessage, res.Message)
	}

	assert.Zero(t, chain.revokeCalls)
	_, err := fx.records.GetRecord(ctx, fx.hash)
	assert.True(t, IsNotFound(err))
	assert.Empty(t, fx.trail.Events())
}

func TestRevokeChainFailureStaysNotRevoked(t *testing.T) {
	chain := &fakeChain{err: errors.New("nonce too low")}
	fx := newEngineFixture(t, chain)
	ctx := context.Background()

	res := fx.engine.Revoke(ctx, models.RevocationRequest{
		CredentialID:     fx.hash,
		CredentialStatus: eligibleStatus(),
	})

	assert.Equal(t, models.StatusNotRevoked, res.Status)
	assert.Contains(t, res.Message, "nonce too low")

	rec, err := fx.records.GetRecord(ctx, fx.hash)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotRevoked, rec.Status)
}

func TestRevokeUnknownCredential(t *testing.T) {
	chain := &fakeChain{txHash: "0xdeadbeef"}
	fx := newEngineFixture(t, chain)

	res := fx.engine.Revoke(context.Background(), models.RevocationRequest{
		CredentialID:     "missing",
		CredentialStatus: eligibleStatus(),
	})

	assert.Equal(t, models.StatusNotRevoked, res.Status)
	assert.Contains(t, res.Message, "load credential")
	assert.Zero(t, chain.revokeCalls)
}

func TestCheckStatusCachesResult(t *testing.T) {
	chain := &fakeChain{revoked: true}
	fx := newEngineFixture(t, chain)
	ctx := context.Background()

	first, err := fx.engine.CheckStatus(ctx, fx.hash)
	require.NoError(t, err)
	assert.True(t, first.Revoked)

	second, err := fx.engine.CheckStatus(ctx, fx.hash)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, chain.checkCalls)
}

func TestCheckStatusUnknownCredential(t *testing.T) {
	fx := newEngineFixture(t, &fakeChain{})

	_, err := fx.engine.CheckStatus(context.Background(), "missing")
	assert.ErrorContains(t, err, "load credential")
}
