package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
)

// Detection is a cached single-host result.
type Detection struct {
	Record domain.ServiceRecord `json:"record"`
	State  domain.State         `json:"state"`
}

// CacheRecord stores the last detection result of a host for ttl.
func (s *Store) CacheRecord(ctx context.Context, record domain.ServiceRecord, state domain.State, ttl time.Duration) error {
	data, err := json.Marshal(Detection{Record: record, State: state})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	key := RecordKey(domain.EncodeHost(record.Server))
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache record: %w", err)
	}
	return nil
}

// CachedRecord returns the cached result of host, or nil on a miss.
func (s *Store) CachedRecord(ctx context.Context, host string) (*Detection, error) {
	data, err := s.client.Get(ctx, RecordKey(domain.EncodeHost(host))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get cached record: %w", err)
	}

	var det Detection
	if err := json.Unmarshal(data, &det); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &det, nil
}
