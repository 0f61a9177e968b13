package idp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	configs map[string]any
	saves   int
	failErr error
}

func (s *memoryStore) SaveIdPConfigs(_ context.Context, configs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.configs = configs
	s.saves++
	return nil
}

func (s *memoryStore) LoadIdPConfigs(context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configs == nil {
		return nil, errors.New("nothing stored")
	}
	return s.configs, nil
}

func TestRefreshOnceSavesAndNotifies(t *testing.T) {
	data := loadFederation(t)
	store := &memoryStore{}
	r, err := NewRefresher("https://md.example.org/federation.xml", store,
		WithFetchFunc(func(context.Context, string) ([]byte, error) { return data, nil }))
	require.NoError(t, err)

	var notified map[string]any
	r.Subscribe(SubscriberFunc(func(_ context.Context, configs map[string]any) error {
		notified = configs
		return nil
	}))

	require.NoError(t, r.RefreshOnce(context.Background()))
	assert.Equal(t, 1, store.saves)
	assert.Len(t, notified, 2)

	cur, err := r.Current(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cur, tugrazIdP)
}

func TestRefreshFailureKeepsLastKnownConfig(t *testing.T) {
	data := loadFederation(t)
	fail := atomic.Bool{}
	store := &memoryStore{}
	r, err := NewRefresher("https://md.example.org/federation.xml", store,
		WithFetchFunc(func(context.Context, string) ([]byte, error) {
			if fail.Load() {
				return []byte("<broken"), nil
			}
			return data, nil
		}))
	require.NoError(t, err)
	require.NoError(t, r.RefreshOnce(context.Background()))

	fail.Store(true)
	assert.Error(t, r.RefreshOnce(context.Background()))
	assert.Equal(t, 1, store.saves)

	cur, err := r.Current(context.Background())
	require.NoError(t, err)
	assert.Len(t, cur, 2)

	fail.Store(false)
	store.failErr = errors.New("store down")
	assert.ErrorContains(t, r.RefreshOnce(context.Background()), "store down")
	cur, _ = r.Current(context.Background())
	assert.Len(t, cur, 2)
}

func TestCurrentFallsBackToStore(t *testing.T) {
	store := &memoryStore{configs: map[string]any{"stored": true}}
	r, err := NewRefresher("https://md.example.org", store)
	require.NoError(t, err)
	cur, err := r.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"stored": true}, cur)
}

func TestNewRefresherValidates(t *testing.T) {
	_, err := NewRefresher("", &memoryStore{})
	assert.Error(t, err)
	_, err = NewRefresher("https://md.example.org", nil)
	assert.Error(t, err)
}

func TestRefresherStartTriggerStop(t *testing.T) {
	data := loadFederation(t)
	var fetches atomic.Int32
	store := &memoryStore{}
	r, err := NewRefresher("https://md.example.org", store,
		WithInterval(time.Hour),
		WithFetchFunc(func(context.Context, string) ([]byte, error) {
			fetches.Add(1)
			return data, nil
		}))
	require.NoError(t, err)

	refreshed := make(chan struct{}, 4)
	r.Subscribe(SubscriberFunc(func(context.Context, map[string]any) error {
		refreshed <- struct{}{}
		return nil
	}))

	r.Start(context.Background())
	r.Start(context.Background())
	waitRefresh(t, refreshed)
	r.Trigger()
	waitRefresh(t, refreshed)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	require.NoError(t, r.Stop(ctx))
	assert.Equal(t, int32(2), fetches.Load())
}

func TestRefresherRestartsAfterContextEnds(t *testing.T) {
	data := loadFederation(t)
	var fetches atomic.Int32
	r, err := NewRefresher("https://md.example.org", &memoryStore{},
		WithInterval(time.Hour),
		WithFetchFunc(func(context.Context, string) ([]byte, error) {
			fetches.Add(1)
			return data, nil
		}))
	require.NoError(t, err)

	first, cancel := context.WithCancel(context.Background())
	r.Start(first)
	require.Eventually(t, func() bool { return fetches.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	second, cancelSecond := context.WithCancel(context.Background())
	defer cancelSecond()
	require.Eventually(t, func() bool {
		r.Start(second)
		return fetches.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	require.NoError(t, r.Stop(ctx))
}

func waitRefresh(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}
}

func TestFetch(t *testing.T) {
	data := loadFederation(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	got, err := Fetch(context.Background(), srv.Client(), srv.URL+"/federation.xml")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = Fetch(context.Background(), srv.Client(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "unexpected status")

	r, err := NewRefresher(srv.URL+"/federation.xml", &memoryStore{}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	require.NoError(t, r.RefreshOnce(context.Background()))
}
