package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tu-graz-library/invenio-config-tugraz/logger"
)

// ConfigStore persists the generated IdP configuration set.
type ConfigStore interface {
	SaveIdPConfigs(ctx context.Context, configs map[string]any) error
	LoadIdPConfigs(ctx context.Context) (map[string]any, error)
}

// Subscriber is notified after every successful refresh.
type Subscriber interface {
	OnConfigs(ctx context.Context, configs map[string]any) error
}

type SubscriberFunc func(ctx context.Context, configs map[string]any) error

func (f SubscriberFunc) OnConfigs(ctx context.Context, configs map[string]any) error {
	return f(ctx, configs)
}

// FetchFunc downloads the metadata document at url.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Refresher periodically rebuilds the IdP configuration from a federation
// metadata URL. A failed refresh keeps the last-known configuration.
type Refresher struct {
	url      string
	store    ConfigStore
	fetch    FetchFunc
	interval time.Duration
	lang     string
	log      logger.Logger

	notifyCh    chan struct{}
	stopCh      chan struct{}
	subscribers []Subscriber
	current     map[string]any
	mu          sync.RWMutex
	started     bool
	wg          sync.WaitGroup
}

type RefresherOption func(*Refresher)

func WithInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithHTTPClient(c *http.Client) RefresherOption {
	return func(r *Refresher) {
		r.fetch = func(ctx context.Context, url string) ([]byte, error) { return Fetch(ctx, c, url) }
	}
}

func WithFetchFunc(f FetchFunc) RefresherOption {
	return func(r *Refresher) {
		if f != nil {
			r.fetch = f
		}
	}
}

func WithLanguage(lang string) RefresherOption {
	return func(r *Refresher) { r.lang = lang }
}

func WithLogger(l logger.Logger) RefresherOption {
	return func(r *Refresher) { r.log = logger.OrNull(l) }
}

func NewRefresher(url string, store ConfigStore, opts ...RefresherOption) (*Refresher, error) {
	if url == "" {
		return nil, errors.New("metadata url is required")
	}
	if store == nil {
		return nil, errors.New("idp config store is required")
	}
	r := &Refresher{
		url:      url,
		store:    store,
		interval: 24 * time.Hour,
		lang:     DefaultLanguage,
		log:      logger.NewNullLogger(),
		notifyCh: make(chan struct{}, 1),
	}
	r.fetch = func(ctx context.Context, url string) ([]byte, error) { return Fetch(ctx, nil, url) }
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RefreshOnce fetches, converts and saves the configuration. On error the
// store is left untouched.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	data, err := r.fetch(ctx, r.url)
	if err != nil {
		return r.fail(err)
	}
	entities, err := ParseMetadata(data)
	if err != nil {
		return r.fail(err)
	}
	configs, err := BuildConfigs(entities, r.lang)
	if err != nil {
		return r.fail(err)
	}
	if err := r.store.SaveIdPConfigs(ctx, configs); err != nil {
		return r.fail(fmt.Errorf("save idp configs: %w", err))
	}
	r.mu.Lock()
	r.current = configs
	subs := append([]Subscriber(nil), r.subscribers...)
	r.mu.Unlock()

	r.log.Info("idp configuration refreshed", "url", r.url, "idps", len(configs))
	for _, sub := range subs {
		if err := sub.OnConfigs(ctx, configs); err != nil {
			r.log.Error("idp config subscriber failed", "error", err)
		}
	}
	return nil
}

func (r *Refresher) fail(err error) error {
	r.log.Error("idp configuration refresh failed, keeping last-known configuration", "url", r.url, "error", err)
	return err
}

// Current returns the last successfully refreshed configuration, falling
// back to what the store holds.
func (r *Refresher) Current(ctx context.Context) (map[string]any, error) {
	r.mu.RLock()
	cur := r.current
	r.mu.RUnlock()
	if cur != nil {
		return cur, nil
	}
	return r.store.LoadIdPConfigs(ctx)
}

func (r *Refresher) Subscribe(sub Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, sub)
}

// Trigger requests a refresh outside the schedule. Requests made while one
// is pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.notifyCh <- struct{}{}:
	default:
	}
}

// Start refreshes once right away and then every interval until Stop is
// called or ctx ends. Once ctx has ended the refresher may be started again.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		_ = r.RefreshOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				r.mu.Lock()
				if r.stopCh == stopCh {
					r.started = false
				}
				r.mu.Unlock()
				return
			case <-stopCh:
				return
			case <-r.notifyCh:
				_ = r.RefreshOnce(ctx)
			case <-ticker.C:
				_ = r.RefreshOnce(ctx)
			}
		}
	}()
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	close(r.stopCh)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
