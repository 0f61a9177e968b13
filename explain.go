package tugraz

import (
	"context"
	"fmt"
)

// ExplainRequest is the serializable form of an Explain call used by the
// command line and admin tooling.
type ExplainRequest struct {
	Action     string   `json:"action" yaml:"action"`
	UserID     string   `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Roles      []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Needs      []string `json:"needs,omitempty" yaml:"needs,omitempty"` // "method:value" or a shorthand
	RemoteAddr string   `json:"remote_addr,omitempty" yaml:"remote_addr,omitempty"`
	SuperUser  bool     `json:"superuser,omitempty" yaml:"superuser,omitempty"`
	Record     *Record  `json:"record,omitempty" yaml:"record,omitempty"`
}

// Identity builds the identity described by the request. A user ID implies
// the authenticated_user claim.
func (r *ExplainRequest) Identity() (*Identity, error) {
	needs := make([]Need, 0, len(r.Roles)+len(r.Needs)+1)
	if r.UserID != "" {
		needs = append(needs, AuthenticatedUserNeed)
	}
	for _, role := range r.Roles {
		needs = append(needs, RoleNeed(role))
	}
	for _, raw := range r.Needs {
		n, ok := ParseNeed(raw)
		if !ok {
			return nil, fmt.Errorf("explain request: malformed need %q", raw)
		}
		needs = append(needs, n)
	}
	id := NewIdentity(r.UserID, needs...)
	id.RemoteAddr = r.RemoteAddr
	id.SuperUser = r.SuperUser
	return id, nil
}

func (e *Engine) ExplainRequest(ctx context.Context, req *ExplainRequest) (*Decision, error) {
	if req == nil || req.Action == "" {
		return nil, fmt.Errorf("explain request: %w", ErrInvalidAction)
	}
	id, err := req.Identity()
	if err != nil {
		return nil, err
	}
	return e.Explain(ctx, req.Action, req.Record, id), nil
}
