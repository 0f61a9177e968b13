package tugraz

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrActionDisabled = errors.New("action is disabled")
	ErrInvalidAction  = errors.New("invalid action name")
)

// PolicyTable maps action names to the generators that decide them. Tables
// are immutable once built; use a PolicyBuilder to derive a new one.
type PolicyTable struct {
	name       string
	actions    map[string][]Generator
	disabled   map[string]bool
	needLabels map[string]string
}

func (t *PolicyTable) Name() string { return t.name }

// Actions returns every action name of the table, sorted.
func (t *PolicyTable) Actions() []string {
	return sortedKeys(t.actions)
}

// Generators returns a copy of the rule list of action.
func (t *PolicyTable) Generators(action string) ([]Generator, bool) {
	gens, ok := t.actions[action]
	if !ok {
		return nil, false
	}
	return append([]Generator(nil), gens...), true
}

func (t *PolicyTable) Has(action string) bool {
	_, ok := t.actions[action]
	return ok
}

func (t *PolicyTable) Disabled(action string) bool { return t.disabled[action] }

// NeedLabels returns a copy of the label to canonical action mapping.
func (t *PolicyTable) NeedLabels() map[string]string {
	out := make(map[string]string, len(t.needLabels))
	for k, v := range t.needLabels {
		out[k] = v
	}
	return out
}

// ActionForNeedLabel resolves an alternate spelling such as "bucket-read"
// to the action it stands for.
func (t *PolicyTable) ActionForNeedLabel(label string) (string, bool) {
	a, ok := t.needLabels[label]
	return a, ok
}

// PolicyBuilder derives policy tables. Errors are collected and reported by
// Build.
type PolicyBuilder struct {
	t    *PolicyTable
	errs []error
}

func NewPolicyBuilder(name string) *PolicyBuilder {
	return &PolicyBuilder{t: &PolicyTable{
		name:       name,
		actions:    map[string][]Generator{},
		disabled:   map[string]bool{},
		needLabels: map[string]string{},
	}}
}

// From copies every action, disable marker and need label of base. Entries
// already present in the builder are overwritten.
func (b *PolicyBuilder) From(base *PolicyTable) *PolicyBuilder {
	if base == nil {
		return b
	}
	for a, gens := range base.actions {
		b.t.actions[a] = append([]Generator(nil), gens...)
		if base.disabled[a] {
			b.t.disabled[a] = true
		} else {
			delete(b.t.disabled, a)
		}
	}
	for k, v := range base.needLabels {
		b.t.needLabels[k] = v
	}
	return b
}

func (b *PolicyBuilder) check(op, action string) bool {
	if action == "" {
		b.errs = append(b.errs, fmt.Errorf("%s: %w", op, ErrInvalidAction))
		return false
	}
	if b.t.disabled[action] {
		b.errs = append(b.errs, fmt.Errorf("%s %s: %w", op, action, ErrActionDisabled))
		return false
	}
	return true
}

// Set replaces the rule list of action.
func (b *PolicyBuilder) Set(action string, gens ...Generator) *PolicyBuilder {
	if b.check("set", action) {
		b.t.actions[action] = append([]Generator(nil), gens...)
	}
	return b
}

// Extend appends gens to the current rule list of action, creating it when
// absent.
func (b *PolicyBuilder) Extend(action string, gens ...Generator) *PolicyBuilder {
	if b.check("extend", action) {
		b.t.actions[action] = append(append([]Generator(nil), b.t.actions[action]...), gens...)
	}
	return b
}

// Disable replaces the rule list of action with a single Disable rule. A
// disabled action rejects later Set and Extend calls; it can only be
// dropped with Remove.
func (b *PolicyBuilder) Disable(action string) *PolicyBuilder {
	if action == "" {
		b.errs = append(b.errs, fmt.Errorf("disable: %w", ErrInvalidAction))
		return b
	}
	b.t.actions[action] = []Generator{Disable{}}
	b.t.disabled[action] = true
	return b
}

// Remove drops action from the table.
func (b *PolicyBuilder) Remove(action string) *PolicyBuilder {
	delete(b.t.actions, action)
	delete(b.t.disabled, action)
	return b
}

// NeedLabel maps an alternate label to a canonical action.
func (b *PolicyBuilder) NeedLabel(label, action string) *PolicyBuilder {
	if label == "" || action == "" {
		b.errs = append(b.errs, fmt.Errorf("need label %q -> %q: %w", label, action, ErrInvalidAction))
		return b
	}
	b.t.needLabels[label] = action
	return b
}

// Build returns the finished table. The builder must not be reused.
func (b *PolicyBuilder) Build() (*PolicyTable, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("build policy %s: %w", b.t.name, errors.Join(b.errs...))
	}
	for label, action := range b.t.needLabels {
		if _, ok := b.t.actions[action]; !ok {
			return nil, fmt.Errorf("build policy %s: need label %s points to unknown action %s", b.t.name, label, action)
		}
	}
	t := b.t
	b.t = nil
	return t, nil
}

// MustBuild is Build for tables defined in code.
func (b *PolicyBuilder) MustBuild() *PolicyTable {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
