package tugraz

import (
	"context"
	"strings"
	"time"

	"github.com/tu-graz-library/invenio-config-tugraz/logger"
)

// DefaultAuthenticatedRole is the role that makes an account count as
// authenticated at TU Graz.
const DefaultAuthenticatedRole = "tugraz_authenticated"

// RoleRule grants holders of a single role, independent of the record. It
// redefines "authenticated" as "holds this role" instead of "has an
// account".
type RoleRule struct {
	noExcludes
	Role string
}

func NewRoleRule(role string) *RoleRule {
	if role == "" {
		role = DefaultAuthenticatedRole
	}
	return &RoleRule{Role: role}
}

func (r *RoleRule) Needs(context.Context, *Record, *Identity) []Need {
	return []Need{RoleNeed(r.Role)}
}

func (r *RoleRule) QueryFilter(_ context.Context, id *Identity) Query {
	if id.Has(RoleNeed(r.Role)) {
		return MatchAll
	}
	return nil
}

// CuratorEntry is one configured curator account.
type CuratorEntry struct {
	Email string `json:"email" yaml:"email" mapstructure:"email"`
	Role  string `json:"role" yaml:"role" mapstructure:"role"`
}

const defaultCuratorLookupTimeout = 2 * time.Second

// CuratorRule grants the curator role to records owned by a configured
// curator account. Once such a record is published the owner's own user
// need is revoked, so edits have to go through the curator role.
type CuratorRule struct {
	curators map[string]CuratorEntry
	accounts AccountStore
	timeout  time.Duration
	log      logger.Logger
}

type CuratorOption func(*CuratorRule)

// WithCuratorLookupTimeout bounds every account store call.
func WithCuratorLookupTimeout(d time.Duration) CuratorOption {
	return func(r *CuratorRule) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithCuratorLogger(l logger.Logger) CuratorOption {
	return func(r *CuratorRule) { r.log = logger.OrNull(l) }
}

func NewCuratorRule(curators map[string]CuratorEntry, accounts AccountStore, opts ...CuratorOption) *CuratorRule {
	r := &CuratorRule{
		curators: make(map[string]CuratorEntry, len(curators)),
		accounts: accounts,
		timeout:  defaultCuratorLookupTimeout,
		log:      logger.NewNullLogger(),
	}
	for k, c := range curators {
		r.curators[k] = c
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// curatorOwner resolves the first owner of rec and returns it together with
// the matching curator entry.
func (r *CuratorRule) curatorOwner(ctx context.Context, rec *Record) (*Account, CuratorEntry, bool) {
	owner, ok := rec.FirstOwner()
	if !ok || r.accounts == nil || len(r.curators) == 0 {
		return nil, CuratorEntry{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	acc, err := r.accounts.GetAccount(ctx, owner.User)
	if err != nil {
		r.log.Error("owner lookup failed", "record", rec.ID, "owner", owner.User, "error", err)
		return nil, CuratorEntry{}, false
	}
	for _, key := range sortedKeys(r.curators) {
		c := r.curators[key]
		if strings.EqualFold(c.Email, acc.Email) {
			return acc, c, true
		}
	}
	return nil, CuratorEntry{}, false
}

func (r *CuratorRule) Needs(ctx context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil {
		return nil
	}
	if _, c, ok := r.curatorOwner(ctx, rec); ok {
		return []Need{RoleNeed(c.Role)}
	}
	return nil
}

func (r *CuratorRule) Excludes(ctx context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil || !rec.IsPublished {
		return nil
	}
	if acc, _, ok := r.curatorOwner(ctx, rec); ok {
		return []Need{UserNeed(acc.ID)}
	}
	return nil
}

// QueryFilter matches records owned by curator accounts whose role the
// identity holds.
func (r *CuratorRule) QueryFilter(ctx context.Context, id *Identity) Query {
	roles := id.Roles()
	if len(roles) == 0 || r.accounts == nil {
		return nil
	}
	var ids []string
	for _, key := range sortedKeys(r.curators) {
		c := r.curators[key]
		if !contains(roles, c.Role) {
			continue
		}
		lctx, cancel := context.WithTimeout(ctx, r.timeout)
		acc, err := r.accounts.GetAccountByEmail(lctx, c.Email)
		cancel()
		if err != nil {
			r.log.Error("curator lookup failed", "curator", key, "error", err)
			continue
		}
		ids = append(ids, acc.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	return Terms("parent.access.owned_by.user", ids...)
}
