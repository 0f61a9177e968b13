package stores

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	tugraz "github.com/tu-graz-library/invenio-config-tugraz"
)

type countingAccountStore struct {
	tugraz.AccountStore
	calls atomic.Int32
}

func (c *countingAccountStore) GetAccount(ctx context.Context, id string) (*tugraz.Account, error) {
	c.calls.Add(1)
	return c.AccountStore.GetAccount(ctx, id)
}

func (c *countingAccountStore) GetAccountByEmail(ctx context.Context, email string) (*tugraz.Account, error) {
	c.calls.Add(1)
	return c.AccountStore.GetAccountByEmail(ctx, email)
}

func TestCachedAccountStoreHits(t *testing.T) {
	ctx := context.Background()
	backing := &countingAccountStore{AccountStore: NewMemoryAccountStore(&tugraz.Account{ID: "1", Email: "a@tugraz.at"})}
	store, err := NewCachedAccountStore(backing, CacheConfig{})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer store.Close()

	if _, err := store.GetAccount(ctx, "1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	store.Wait()
	for i := 0; i < 5; i++ {
		if _, err := store.GetAccount(ctx, "1"); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if n := backing.calls.Load(); n != 1 {
		t.Fatalf("expected 1 backing call, got %d", n)
	}

	acc, _ := store.GetAccount(ctx, "1")
	store.Invalidate(acc)
	if _, err := store.GetAccount(ctx, "1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if n := backing.calls.Load(); n != 2 {
		t.Fatalf("expected a reload after invalidation, got %d calls", n)
	}
}

func TestCachedAccountStoreDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	backing := &countingAccountStore{AccountStore: NewMemoryAccountStore()}
	store, err := NewCachedAccountStore(backing, DefaultCacheConfig())
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer store.Close()

	for i := 0; i < 3; i++ {
		if _, err := store.GetAccountByEmail(ctx, "ghost@tugraz.at"); !errors.Is(err, tugraz.ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
		store.Wait()
	}
	if n := backing.calls.Load(); n != 3 {
		t.Fatalf("misses must reach the backing store, got %d calls", n)
	}
}
