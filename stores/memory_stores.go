package stores

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	tugraz "github.com/tu-graz-library/invenio-config-tugraz"
)

// ErrNoIdPConfigs is returned by IdP config stores before the first save.
var ErrNoIdPConfigs = errors.New("no idp configs stored")

// MemoryAccountStore keeps accounts in memory for tests and tooling.
type MemoryAccountStore struct {
	mu      sync.RWMutex
	byID    map[string]*tugraz.Account
	byEmail map[string]string
}

func NewMemoryAccountStore(accounts ...*tugraz.Account) *MemoryAccountStore {
	s := &MemoryAccountStore{byID: make(map[string]*tugraz.Account), byEmail: make(map[string]string)}
	for _, a := range accounts {
		_ = s.CreateAccount(context.Background(), a)
	}
	return s
}

func (s *MemoryAccountStore) CreateAccount(_ context.Context, a *tugraz.Account) error {
	email := normalizeEmail(a.Email)
	if email == "" {
		return tugraz.ErrEmailRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAccount, a.ID)
	}
	dup := *a
	if dup.CreatedAt.IsZero() {
		dup.CreatedAt = time.Now()
	}
	s.byID[a.ID] = &dup
	s.byEmail[email] = a.ID
	return nil
}

func (s *MemoryAccountStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		delete(s.byEmail, normalizeEmail(a.Email))
		delete(s.byID, id)
	}
	return nil
}

func (s *MemoryAccountStore) GetAccount(_ context.Context, id string) (*tugraz.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tugraz.ErrAccountNotFound, id)
	}
	dup := *a
	return &dup, nil
}

func (s *MemoryAccountStore) GetAccountByEmail(ctx context.Context, email string) (*tugraz.Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, tugraz.ErrEmailRequired
	}
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", tugraz.ErrAccountNotFound, email)
	}
	return s.GetAccount(ctx, id)
}

// MemoryRoleMembershipStore keeps role assignments in memory.
type MemoryRoleMembershipStore struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
}

func NewMemoryRoleMembershipStore() *MemoryRoleMembershipStore {
	return &MemoryRoleMembershipStore{members: make(map[string]map[string]struct{})}
}

func (s *MemoryRoleMembershipStore) AssignRole(_ context.Context, subjectID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles, ok := s.members[subjectID]
	if !ok {
		roles = make(map[string]struct{})
		s.members[subjectID] = roles
	}
	roles[roleID] = struct{}{}
	return nil
}

func (s *MemoryRoleMembershipStore) RevokeRole(_ context.Context, subjectID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[subjectID], roleID)
	return nil
}

func (s *MemoryRoleMembershipStore) ListRoles(_ context.Context, subjectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.members[subjectID]))
	for r := range s.members[subjectID] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

// MemoryIdPConfigStore holds the last saved IdP configuration set.
type MemoryIdPConfigStore struct {
	mu      sync.RWMutex
	configs map[string]any
}

func NewMemoryIdPConfigStore() *MemoryIdPConfigStore {
	return &MemoryIdPConfigStore{}
}

func (s *MemoryIdPConfigStore) SaveIdPConfigs(_ context.Context, configs map[string]any) error {
	dup := make(map[string]any, len(configs))
	for k, v := range configs {
		dup[k] = v
	}
	s.mu.Lock()
	s.configs = dup
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdPConfigStore) LoadIdPConfigs(context.Context) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.configs == nil {
		return nil, ErrNoIdPConfigs
	}
	dup := make(map[string]any, len(s.configs))
	for k, v := range s.configs {
		dup[k] = v
	}
	return dup, nil
}

func sortedNames(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
