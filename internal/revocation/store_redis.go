package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tientaidev/veramo-agent/pkg/sentinel"
)

const (
	recordKeyPrefix = "revocation:record:"
	statusKeyPrefix = "revocation:status:"
)

// RedisRecordStore shares revocation records and status-cache entries
// across agent instances. Records never expire; status entries carry a TTL
// so confirmed on-chain revocations are picked up without restarts.
type RedisRecordStore struct {
	client    *redis.Client
	statusTTL time.Duration
}

func NewRedisRecordStore(client *redis.Client, statusTTL time.Duration) *RedisRecordStore {
	return &RedisRecordStore{client: client, statusTTL: statusTTL}
}

func (s *RedisRecordStore) SaveRecord(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal revocation record: %w", err)
	}
	if err := s.client.Set(ctx, recordKeyPrefix+rec.CredentialHash, payload, 0).Err(); err != nil {
		return fmt.Errorf("save revocation record: %w", err)
	}
	return nil
}

func (s *RedisRecordStore) GetRecord(ctx context.Context, credentialHash string) (Record, error) {
	payload, err := s.client.Get(ctx, recordKeyPrefix+credentialHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load revocation record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("decode revocation record: %w", err)
	}
	return rec, nil
}

func (s *RedisRecordStore) GetCachedStatus(ctx context.Context, credentialHash string) (bool, error) {
	val, err := s.client.Get(ctx, statusKeyPrefix+credentialHash).Result()
	if errors.Is(err, redis.Nil) {
		return false, sentinel.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load cached status: %w", err)
	}
	return val == "1", nil
}

func (s *RedisRecordStore) CacheStatus(ctx context.Context, credentialHash string, revoked bool) error {
	if s.statusTTL <= 0 {
		return nil
	}
	val := "0"
	if revoked {
		val = "1"
	}
	if err := s.client.Set(ctx, statusKeyPrefix+credentialHash, val, s.statusTTL).Err(); err != nil {
		return fmt.Errorf("cache status: %w", err)
	}
	return nil
}
