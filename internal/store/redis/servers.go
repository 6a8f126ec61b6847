package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
)

// Store keeps the durable set of valid hosts. Members are stored
// URL-encoded, so "http://a:1" is kept as "http%3A%2F%2Fa%3A1".
type Store struct {
	client *redis.Client
	key    string
}

// NewStore creates a store on key, falling back to DefaultServersKey.
func NewStore(client *redis.Client, key string) *Store {
	if key == "" {
		key = DefaultServersKey
	}
	return &Store{client: client, key: key}
}

func (s *Store) Key() string { return s.key }

// Members returns the decoded hosts of the set. Members that cannot be
// decoded are returned as stored.
func (s *Store) Members(ctx context.Context) ([]string, error) {
	raw, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get server members: %w", err)
	}

	hosts := make([]string, 0, len(raw))
	for _, m := range raw {
		host, err := domain.DecodeHost(m)
		if err != nil {
			host = m
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// Replace swaps the whole set for hosts in one MULTI/EXEC, so readers see
// either the old set or the new one. An empty hosts list clears the set.
func (s *Store) Replace(ctx context.Context, hosts []string) error {
	members := make([]interface{}, 0, len(hosts))
	for _, h := range hosts {
		members = append(members, domain.EncodeHost(h))
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(members) > 0 {
			pipe.SAdd(ctx, s.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace servers: %w", err)
	}
	return nil
}

// Contains reports whether host is in the set.
func (s *Store) Contains(ctx context.Context, host string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, domain.EncodeHost(host)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check server: %w", err)
	}
	return ok, nil
}

// Register adds host to the set. exists is true when it was already there.
func (s *Store) Register(ctx context.Context, host string) (exists bool, err error) {
	added, err := s.client.SAdd(ctx, s.key, domain.EncodeHost(host)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to register server: %w", err)
	}
	return added == 0, nil
}

// Count returns the cardinality of the set.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count servers: %w", err)
	}
	return n, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
