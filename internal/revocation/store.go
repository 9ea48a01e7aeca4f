package revocation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/pkg/sentinel"
)

// Record is the engine's per-credential revocation state, keyed by the
// credential content hash. Records exist only for gate-accepted attempts;
// gate rejections leave no trace.
type Record struct {
	CredentialHash string                  `json:"credentialHash"`
	Status         models.RevocationStatus `json:"status"`
	Message        string                  `json:"message,omitempty"`
	SubmittedAt    time.Time               `json:"submittedAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

// RecordStore persists revocation records and caches read-only status
// lookups. Implementations must be safe for concurrent use.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec Record) error
	GetRecord(ctx context.Context, credentialHash string) (Record, error)
	// Status cache entries expire on their own; a miss is not an error
	// condition beyond sentinel.ErrNotFound.
	GetCachedStatus(ctx context.Context, credentialHash string) (bool, error)
	CacheStatus(ctx context.Context, credentialHash string, revoked bool) error
}

// MemoryRecordStore keeps records and status cache entries in process.
type MemoryRecordStore struct {
	mu       sync.RWMutex
	records  map[string]Record
	statuses map[string]cachedStatus
	ttl      time.Duration
	now      func() time.Time
}

type cachedStatus struct {
	revoked   bool
	expiresAt time.Time
}

func NewMemoryRecordStore(statusTTL time.Duration) *MemoryRecordStore {
	return &MemoryRecordStore{
		records:  make(map[string]Record),
		statuses: make(map[string]cachedStatus),
		ttl:      statusTTL,
		now:      time.Now,
	}
}

func (s *MemoryRecordStore) SaveRecord(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.CredentialHash] = rec
	return nil
}

func (s *MemoryRecordStore) GetRecord(ctx context.Context, credentialHash string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[credentialHash]
	if !ok {
		return Record{}, sentinel.ErrNotFound
	}
	return rec, nil
}

func (s *MemoryRecordStore) GetCachedStatus(ctx context.Context, credentialHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.statuses[credentialHash]
	if !ok || s.now().After(entry.expiresAt) {
		return false, sentinel.ErrNotFound
	}
	return entry.revoked, nil
}

func (s *MemoryRecordStore) CacheStatus(ctx context.Context, credentialHash string, revoked bool) error {
	if s.ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[credentialHash] = cachedStatus{revoked: revoked, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// IsNotFound reports whether err is the store's missing-record signal.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
