package tugraz

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailRequired   = errors.New("email is required to load an identity")
)

// Account is the subset of a host account the rules need.
type Account struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Active      bool      `json:"active"`
	SuperUser   bool      `json:"superuser"`
	CreatedAt   time.Time `json:"created_at"`
	ConfirmedAt time.Time `json:"confirmed_at,omitempty"`
}

// AccountStore resolves owner references and curator addresses. Lookups
// of unknown accounts return an error wrapping ErrAccountNotFound.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
}

// RoleMembershipStore keeps the roles assigned to an account.
type RoleMembershipStore interface {
	AssignRole(ctx context.Context, subjectID, roleID string) error
	RevokeRole(ctx context.Context, subjectID, roleID string) error
	ListRoles(ctx context.Context, subjectID string) ([]string, error)
}
