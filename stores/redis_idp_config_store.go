package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdPConfigKey = "tugraz:idp:configs"

// RedisIdPConfigStore shares the generated IdP configuration between
// instances as one JSON document.
type RedisIdPConfigStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisIdPConfigStore returns a store writing to key. A zero ttl keeps
// the document until it is replaced.
func NewRedisIdPConfigStore(client redis.UniversalClient, key string, ttl time.Duration) *RedisIdPConfigStore {
	if key == "" {
		key = defaultIdPConfigKey
	}
	return &RedisIdPConfigStore{client: client, key: key, ttl: ttl}
}

func (s *RedisIdPConfigStore) SaveIdPConfigs(ctx context.Context, configs map[string]any) error {
	payload, err := json.Marshal(configs)
	if err != nil {
		return fmt.Errorf("encode idp configs: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save idp configs: %w", err)
	}
	return nil
}

func (s *RedisIdPConfigStore) LoadIdPConfigs(ctx context.Context) (map[string]any, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoIdPConfigs
	}
	if err != nil {
		return nil, fmt.Errorf("load idp configs: %w", err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode idp configs: %w", err)
	}
	return out, nil
}
