package tugraz

import (
	"context"
	"sort"
)

// Identity is the set of claims an actor presents for one request, plus the
// ambient caller address. It is built once by the authentication layer and
// only read afterwards.
type Identity struct {
	ID         string `json:"id,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	SuperUser  bool   `json:"superuser,omitempty"`

	provides map[Need]struct{}
}

// NewIdentity returns an identity for account id holding needs. An empty id
// denotes an anonymous actor; a non-empty id adds the matching UserNeed.
func NewIdentity(id string, needs ...Need) *Identity {
	i := &Identity{ID: id, provides: make(map[Need]struct{}, len(needs)+1)}
	if id != "" {
		i.provides[UserNeed(id)] = struct{}{}
	}
	for _, n := range needs {
		i.provides[n] = struct{}{}
	}
	return i
}

// AnonymousIdentity is an identity without account and claims.
func AnonymousIdentity(remoteAddr string) *Identity {
	i := NewIdentity("")
	i.RemoteAddr = remoteAddr
	return i
}

// Has reports whether the identity provides n. Every identity provides
// AnyUserNeed.
func (i *Identity) Has(n Need) bool {
	if n == AnyUserNeed {
		return true
	}
	if i == nil {
		return false
	}
	_, ok := i.provides[n]
	return ok
}

// HasAny returns the first of needs the identity provides.
func (i *Identity) HasAny(needs []Need) (Need, bool) {
	for _, n := range needs {
		if i.Has(n) {
			return n, true
		}
	}
	return Need{}, false
}

// Needs returns all claims sorted by method and value.
func (i *Identity) Needs() []Need {
	out := []Need{AnyUserNeed}
	if i != nil {
		for n := range i.provides {
			if n != AnyUserNeed {
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Method != out[b].Method {
			return out[a].Method < out[b].Method
		}
		return out[a].Value < out[b].Value
	})
	return out
}

// Roles returns the values of all role needs.
func (i *Identity) Roles() []string {
	return i.valuesOf(methodRole)
}

// Links returns the ids of all secret-link needs.
func (i *Identity) Links() []string {
	return i.valuesOf(methodLink)
}

func (i *Identity) valuesOf(method string) []string {
	var out []string
	for _, n := range i.Needs() {
		if n.Method == method {
			out = append(out, n.Value)
		}
	}
	return out
}

// communityRoles maps community id to the roles the identity holds there.
func (i *Identity) communityRoles() map[string][]string {
	out := map[string][]string{}
	for _, n := range i.Needs() {
		if cid, role, ok := n.communityRole(); ok {
			out[cid] = append(out[cid], role)
		}
	}
	return out
}

func (i *Identity) IsSuperUser() bool {
	if i == nil {
		return false
	}
	return i.SuperUser || i.Has(SuperUserNeed)
}

func (i *Identity) IsAnonymous() bool {
	return i == nil || i.ID == ""
}

// WithRemoteAddr returns a copy of the identity bound to addr.
func (i *Identity) WithRemoteAddr(addr string) *Identity {
	if i == nil {
		return AnonymousIdentity(addr)
	}
	dup := &Identity{ID: i.ID, RemoteAddr: addr, SuperUser: i.SuperUser, provides: make(map[Need]struct{}, len(i.provides))}
	for n := range i.provides {
		dup.provides[n] = struct{}{}
	}
	return dup
}

type identityCtxKey struct{}

// ContextWithIdentity stores id in ctx.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the identity stored by ContextWithIdentity or
// an anonymous identity when there is none.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityCtxKey{}).(*Identity); ok && id != nil {
		return id
	}
	return AnonymousIdentity("")
}
