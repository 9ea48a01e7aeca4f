package issuer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tientaidev/veramo-agent/internal/audit"
	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/internal/credential/proof"
	"github.com/tientaidev/veramo-agent/internal/credential/store"
	"github.com/tientaidev/veramo-agent/internal/identity"
	"github.com/tientaidev/veramo-agent/internal/messaging"
	"github.com/tientaidev/veramo-agent/internal/platform/metrics"
	dErrors "github.com/tientaidev/veramo-agent/pkg/domain-errors"
)

type issuerFixture struct {
	service   *Service
	signer    *proof.Signer
	directory *identity.MemoryDirectory
	store     *store.MemoryStore
	audit     *audit.MemoryPublisher
	issuerDID string
}

func newIssuerFixture(t *testing.T) issuerFixture {
	t.Helper()
	ctx := context.Background()

	directory := identity.NewMemoryDirectory()
	resolver := identity.NewDirectoryResolver(directory, 1)
	issuerID, err := directory.CreateDID(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	signer := proof.NewSigner(directory, resolver)
	credStore := store.NewMemory()
	auditor := audit.NewMemoryPublisher()
	dispatcher := messaging.New(directory, resolver, logger, m)

	return issuerFixture{
		service:   New(signer, credStore, dispatcher, auditor, logger, m),
		signer:    signer,
		directory: directory,
		store:     credStore,
		audit:     auditor,
		issuerDID: issuerID.DID,
	}
}

func template(issuerDID, subjectDID string) models.Credential {
	return models.Credential{
		Context: []string{"https://example.org/contexts/access"},
		Type:    []string{"AccessCredential"},
		Issuer:  models.Issuer{ID: issuerDID},
		Subject: models.Subject{"id": subjectDID, "role": "operator"},
	}
}

func TestIssueProducesSignedCredential(t *testing.T) {
	fx := newIssuerFixture(t)
	ctx := context.Background()

	res, err := fx.service.Issue(ctx, models.IssueRequest{
		Credential: template(fx.issuerDID, "did:example:alice"),
	})
	require.NoError(t, err)

	cred := res.Credential
	assert.True(t, cred.Signed())
	assert.Equal(t, models.ProofTypeJWT, cred.Proof.Type)
	assert.Equal(t, "did:example:alice", cred.Subject.ID())
	assert.Equal(t, "operator", cred.Subject["role"])
	assert.Contains(t, cred.Context, models.ContextCredentialsV1)
	assert.Contains(t, cred.Type, models.TypeVerifiableCredential)
	assert.NotEmpty(t, cred.IssuanceDate)
	assert.Empty(t, res.Warning)

	require.NoError(t, fx.signer.VerifyToken(ctx, cred.Proof.JWT))

	events := fx.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionCredentialIssued, events[0].Action)
}

func TestIssuePersistsWhenRequested(t *testing.T) {
	fx := newIssuerFixture(t)
	ctx := context.Background()

	res, err := fx.service.Issue(ctx, models.IssueRequest{
		Credential: template(fx.issuerDID, "did:example:alice"),
		Options:    models.IssueOptions{Save: true},
	})
	require.NoError(t, err)

	hash, err := res.Credential.Hash()
	require.NoError(t, err)
	stored, err := fx.store.GetByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, res.Credential.Proof.JWT, stored.Proof.JWT)
}

func TestIssueRejectsIncompleteTemplate(t *testing.T) {
	fx := newIssuerFixture(t)
	ctx := context.Background()

	_, err := fx.service.Issue(ctx, models.IssueRequest{
		Credential: models.Credential{Subject: models.Subject{"id": "did:example:alice"}},
	})
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))

	_, err = fx.service.Issue(ctx, models.IssueRequest{
		Credential: models.Credential{Issuer: models.Issuer{ID: fx.issuerDID}},
	})
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
}

func TestIssueRejectsSubjectWithoutID(t *testing.T) {
	fx := newIssuerFixture(t)
	ctx := context.Background()

	for _, subject := range []models.Subject{
		{"role": "operator"},
		{"id": ""},
		{"id": "not a uri"},
	} {
		_, err := fx.service.Issue(ctx, models.IssueRequest{
			Credential: models.Credential{
				Issuer:  models.Issuer{ID: fx.issuerDID},
				Subject: subject,
			},
		})
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation), "subject %v", subject)
	}
}

type failingStore struct{}

func (failingStore) Save(ctx context.Context, cred models.Credential) (string, error) {
	return "", errors.New("connection refused")
}

func (failingStore) GetByHash(ctx context.Context, hash string) (models.Credential, error) {
	return models.Credential{}, errors.New("connection refused")
}

func (failingStore) ListAll(ctx context.Context) ([]models.CredentialRecord, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestIssuePersistenceFailureBecomesWarning(t *testing.T) {
	ctx := context.Background()

	directory := identity.NewMemoryDirectory()
	resolver := identity.NewDirectoryResolver(directory, 1)
	issuerID, err := directory.CreateDID(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	signer := proof.NewSigner(directory, resolver)
	dispatcher := messaging.New(directory, resolver, logger, m)
	service := New(signer, failingStore{}, dispatcher, audit.NewMemoryPublisher(), logger, m)

	res, err := service.Issue(ctx, models.IssueRequest{
		Credential: template(issuerID.DID, "did:example:alice"),
		Options:    models.IssueOptions{Save: true},
	})
	require.NoError(t, err)

	assert.True(t, res.Credential.Signed())
	assert.Contains(t, res.Warning, "credential not persisted")
	require.NoError(t, signer.VerifyToken(ctx, res.Credential.Proof.JWT))
}

func TestIssueUnknownIssuerFails(t *testing.T) {
	fx := newIssuerFixture(t)

	_, err := fx.service.Issue(context.Background(), models.IssueRequest{
		Credential: template("did:ethr:0xunknown", "did:example:alice"),
	})
	assert.Error(t, err)
}

func TestIssueDeliversToWallet(t *testing.T) {
	fx := newIssuerFixture(t)
	ctx := context.Background()

	delivered := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		delivered <- string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	subject, err := fx.directory.CreateDID(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.directory.AddService(ctx, subject.DID, identity.Service{
		ID:              subject.DID + "#messaging",
		Type:            "DIDCommMessaging",
		ServiceEndpoint: srv.URL,
	}))

	res, err := fx.service.Issue(ctx, models.IssueRequest{
		Credential: template(fx.issuerDID, subject.DID),
		Options:    models.IssueOptions{ToWallet: true},
	})
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Empty(t, res.Warning)
	assert.NotEmpty(t, <-delivered)
}

func TestIssueWalletFailureBecomesWarning(t *testing.T) {
	fx := newIssuerFixture(t)
	ctx := context.Background()

	subject, err := fx.directory.CreateDID(ctx)
	require.NoError(t, err)
	// No messaging service registered, so delivery cannot succeed.

	res, err := fx.service.Issue(ctx, models.IssueRequest{
		Credential: template(fx.issuerDID, subject.DID),
		Options:    models.IssueOptions{ToWallet: true},
	})
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Contains(t, res.Warning, "wallet delivery failed")
	assert.True(t, res.Credential.Signed())
}
