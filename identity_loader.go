package tugraz

import (
	"context"
	"fmt"
	"strings"
)

// IdentityLoader builds the identity of an account from the account and
// role stores, for jobs and tools that act on behalf of a user.
type IdentityLoader struct {
	accounts AccountStore
	roles    RoleMembershipStore
}

// NewIdentityLoader returns a loader. roles may be nil when role
// memberships are not tracked.
func NewIdentityLoader(accounts AccountStore, roles RoleMembershipStore) *IdentityLoader {
	return &IdentityLoader{accounts: accounts, roles: roles}
}

// IdentityForEmail loads the identity of the account registered for email.
func (l *IdentityLoader) IdentityForEmail(ctx context.Context, email string) (*Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	acc, err := l.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load identity for %s: %w", email, err)
	}
	return l.identityFor(ctx, acc)
}

// IdentityForID loads the identity of account id.
func (l *IdentityLoader) IdentityForID(ctx context.Context, id string) (*Identity, error) {
	acc, err := l.accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load identity %s: %w", id, err)
	}
	return l.identityFor(ctx, acc)
}

func (l *IdentityLoader) identityFor(ctx context.Context, acc *Account) (*Identity, error) {
	needs := []Need{AnyUserNeed, AuthenticatedUserNeed}
	if l.roles != nil {
		roles, err := l.roles.ListRoles(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("list roles of %s: %w", acc.ID, err)
		}
		for _, r := range roles {
			needs = append(needs, RoleNeed(r))
		}
	}
	id := NewIdentity(acc.ID, needs...)
	id.SuperUser = acc.SuperUser
	return id, nil
}
