package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tientaidev/veramo-agent/internal/credential/models"
	"github.com/tientaidev/veramo-agent/pkg/sentinel"
)

// MemoryStore keeps credentials in process memory. Used in dev mode and by
// unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.CredentialRecord
}

func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.CredentialRecord)}
}

func (s *MemoryStore) Save(ctx context.Context, cred models.Credential) (string, error) {
	record, err := newRecord(cred)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Hash] = record
	return record.Hash, nil
}

func (s *MemoryStore) GetByHash(ctx context.Context, hash string) (models.Credential, error) {
	s.mu.RLock()
	record, ok := s.records[hash]
	s.mu.RUnlock()
	if !ok {
		return models.Credential{}, fmt.Errorf("credential %q: %w", hash, sentinel.ErrNotFound)
	}
	var cred models.Credential
	if err := json.Unmarshal([]byte(record.Raw), &cred); err != nil {
		return models.Credential{}, fmt.Errorf("decode stored credential: %w", err)
	}
	return cred, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]models.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CredentialRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}

func (s *MemoryStore) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[hash]; !ok {
		return false, nil
	}
	delete(s.records, hash)
	return true, nil
}
