package tugraz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/tu-graz-library/invenio-config-tugraz/logger"
)

// Decision is the outcome of one authorization check. Decisions are never
// persisted.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	MatchedBy Need      `json:"matched_by"`
	Trace     []string  `json:"trace,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	reasonSuperUser     = "superuser"
	reasonUnknownAction = "unknown action"
	reasonRevoked       = "revoked"
	reasonGranted       = "granted"
	reasonNoGrant       = "no matching grant"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine) error

// Engine evaluates a policy table.
type Engine struct {
	table       atomic.Pointer[PolicyTable]
	logger      logger.Logger
	traceIDFunc logger.TraceIDFunc
	metrics     *decisionMetrics
	now         func() time.Time
}

func NewEngine(table *PolicyTable, opts ...EngineOption) (*Engine, error) {
	if table == nil {
		return nil, errors.New("engine: policy table is required")
	}
	e := &Engine{
		logger: logger.NewNullLogger(),
		now:    time.Now,
	}
	e.table.Store(table)
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("engine option: %w", err)
		}
	}
	return e, nil
}

// Table returns the table currently evaluated.
func (e *Engine) Table() *PolicyTable { return e.table.Load() }

// ReloadTable swaps the evaluated table. Checks already running finish
// against the table they started with.
func (e *Engine) ReloadTable(table *PolicyTable) error {
	if table == nil {
		return errors.New("engine: policy table is required")
	}
	e.table.Store(table)
	e.logger.Info("policy table reloaded", "table", table.Name(), "actions", len(table.Actions()))
	return nil
}

// Authorize decides whether id may perform action on rec. rec may be nil for
// checks without a concrete record, id nil is treated as anonymous.
func (e *Engine) Authorize(ctx context.Context, action string, rec *Record, id *Identity) *Decision {
	return e.authorize(ctx, action, rec, id, false)
}

// Explain is Authorize with a step-by-step trace.
func (e *Engine) Explain(ctx context.Context, action string, rec *Record, id *Identity) *Decision {
	return e.authorize(ctx, action, rec, id, true)
}

// Can is Authorize reduced to its verdict.
func (e *Engine) Can(ctx context.Context, action string, rec *Record, id *Identity) bool {
	return e.Authorize(ctx, action, rec, id).Allowed
}

func (e *Engine) authorize(ctx context.Context, action string, rec *Record, id *Identity, trace bool) *Decision {
	if id == nil {
		id = AnonymousIdentity("")
	}
	d := &Decision{Action: action, Timestamp: e.now()}
	if e.traceIDFunc != nil {
		d.TraceID = e.traceIDFunc()
	}
	step := func(format string, args ...any) {
		if trace {
			d.Trace = append(d.Trace, fmt.Sprintf("%d. ", len(d.Trace)+1)+fmt.Sprintf(format, args...))
		}
	}
	defer e.observe(d, rec, id)

	if id.IsSuperUser() {
		step("identity is a super user")
		d.Allowed, d.Reason, d.MatchedBy = true, reasonSuperUser, SuperUserNeed
		return d
	}

	table := e.table.Load()
	gens, ok := table.Generators(action)
	if !ok {
		step("action %q is not in table %q", action, table.Name())
		d.Reason = reasonUnknownAction
		return d
	}
	if table.Disabled(action) {
		step("action %q is disabled", action)
	}

	var grants, revokes []Need
	for i, g := range gens {
		n := g.Needs(ctx, rec, id)
		x := g.Excludes(ctx, rec, id)
		step("rule %d %s grants %s revokes %s", i+1, RuleKind(g), formatNeeds(n), formatNeeds(x))
		grants = append(grants, n...)
		revokes = append(revokes, x...)
	}

	if n, held := id.HasAny(revokes); held {
		step("identity holds revoked need %s", n)
		d.Reason, d.MatchedBy = reasonRevoked, n
		return d
	}
	if n, held := id.HasAny(grants); held {
		step("identity holds granted need %s", n)
		d.Allowed, d.Reason, d.MatchedBy = true, reasonGranted, n
		return d
	}
	step("identity holds none of %s", formatNeeds(grants))
	d.Reason = reasonNoGrant
	return d
}

func (e *Engine) observe(d *Decision, rec *Record, id *Identity) {
	recID := ""
	if rec != nil {
		recID = rec.ID
	}
	e.logger.Debug("authorization decision",
		"trace_id", d.TraceID,
		"action", d.Action,
		"record", recID,
		"identity", id.ID,
		"remote_addr", id.RemoteAddr,
		"allowed", d.Allowed,
		"reason", d.Reason,
		"matched_by", d.MatchedBy.String(),
	)
	e.metrics.observe(d)
}

// FilterFor returns the search predicate equivalent to Authorize for
// listings: the OR of every rule filter of action. Unknown actions match
// nothing, super users match everything.
func (e *Engine) FilterFor(ctx context.Context, action string, id *Identity) Query {
	if id == nil {
		id = AnonymousIdentity("")
	}
	if id.IsSuperUser() {
		return MatchAll
	}
	gens, ok := e.table.Load().Generators(action)
	if !ok {
		return MatchNone
	}
	filters := make([]Query, 0, len(gens))
	for _, g := range gens {
		filters = append(filters, g.QueryFilter(ctx, id))
	}
	return Or(filters...)
}

// AuthRequest is one entry of a BatchAuthorize call.
type AuthRequest struct {
	Action   string
	Record   *Record
	Identity *Identity
}

// BatchAuthorize evaluates requests in order.
func (e *Engine) BatchAuthorize(ctx context.Context, requests []AuthRequest) []*Decision {
	decisions := make([]*Decision, len(requests))
	for i, req := range requests {
		decisions[i] = e.Authorize(ctx, req.Action, req.Record, req.Identity)
	}
	return decisions
}

// EffectiveActions lists the actions of the table id may perform on rec.
func (e *Engine) EffectiveActions(ctx context.Context, rec *Record, id *Identity) []string {
	var out []string
	for _, action := range e.table.Load().Actions() {
		if e.Authorize(ctx, action, rec, id).Allowed {
			out = append(out, action)
		}
	}
	return out
}

func formatNeeds(needs []Need) string {
	if len(needs) == 0 {
		return "[]"
	}
	seen := make(map[Need]struct{}, len(needs))
	strs := make([]string, 0, len(needs))
	for _, n := range needs {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		strs = append(strs, n.String())
	}
	sort.Strings(strs)
	return fmt.Sprint(strs)
}
