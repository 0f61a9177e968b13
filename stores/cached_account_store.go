package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	tugraz "github.com/tu-graz-library/invenio-config-tugraz"
)

// CacheConfig sizes a CachedAccountStore.
type CacheConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{NumCounters: 10_000, MaxCost: 1_000, BufferItems: 64, TTL: time.Minute}
}

// CachedAccountStore fronts an AccountStore with a ristretto cache. Curator
// rules resolve the same owners over and over; misses and errors are not
// cached.
type CachedAccountStore struct {
	next  tugraz.AccountStore
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedAccountStore(next tugraz.AccountStore, cfg CacheConfig) (*CachedAccountStore, error) {
	def := DefaultCacheConfig()
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = def.NumCounters
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = def.MaxCost
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = def.BufferItems
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("create account cache: %w", err)
	}
	return &CachedAccountStore{next: next, cache: cache, ttl: cfg.TTL}, nil
}

func (s *CachedAccountStore) GetAccount(ctx context.Context, id string) (*tugraz.Account, error) {
	return s.lookup(ctx, "id:"+id, func() (*tugraz.Account, error) { return s.next.GetAccount(ctx, id) })
}

func (s *CachedAccountStore) GetAccountByEmail(ctx context.Context, email string) (*tugraz.Account, error) {
	return s.lookup(ctx, "email:"+normalizeEmail(email), func() (*tugraz.Account, error) {
		return s.next.GetAccountByEmail(ctx, email)
	})
}

func (s *CachedAccountStore) lookup(_ context.Context, key string, load func() (*tugraz.Account, error)) (*tugraz.Account, error) {
	if v, ok := s.cache.Get(key); ok {
		dup := *v.(*tugraz.Account)
		return &dup, nil
	}
	a, err := load()
	if err != nil {
		return nil, err
	}
	dup := *a
	s.cache.SetWithTTL(key, &dup, 1, s.ttl)
	return a, nil
}

// Invalidate drops the cached entries of an account.
func (s *CachedAccountStore) Invalidate(a *tugraz.Account) {
	s.cache.Del("id:" + a.ID)
	s.cache.Del("email:" + normalizeEmail(a.Email))
}

// Wait blocks until pending cache writes are applied.
func (s *CachedAccountStore) Wait() { s.cache.Wait() }

func (s *CachedAccountStore) Close() { s.cache.Close() }
