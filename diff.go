package tugraz

import (
	"fmt"
	"sort"

	"github.com/tu-graz-library/invenio-config-tugraz/utils"
)

// DivergenceKind classifies a difference between two policy tables.
type DivergenceKind string

const (
	OnlyInDerived     DivergenceKind = "only_in_derived"
	OnlyInBase        DivergenceKind = "only_in_base"
	RuleKindsDiffer   DivergenceKind = "rule_kinds_differ"
	NeedLabelDiffers  DivergenceKind = "need_label_differs"
	NeedLabelsMissing DivergenceKind = "need_labels_missing"
)

// Divergence is one unexpected difference found by DiffPolicies.
type Divergence struct {
	Kind    DivergenceKind `json:"kind"`
	Action  string         `json:"action,omitempty"`
	Label   string         `json:"label,omitempty"`
	Derived []string       `json:"derived,omitempty"`
	Base    []string       `json:"base,omitempty"`
}

func (d Divergence) String() string {
	switch d.Kind {
	case NeedLabelDiffers, NeedLabelsMissing:
		return fmt.Sprintf("%s: label %q derived=%v base=%v", d.Kind, d.Label, d.Derived, d.Base)
	case RuleKindsDiffer:
		return fmt.Sprintf("%s: %s derived=%v base=%v", d.Kind, d.Action, d.Derived, d.Base)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Action)
}

// DiffPolicies reports every action that differs between derived and base
// except the allowed ones. allowed entries may be '*' patterns. Rule lists
// are compared by the set of rule types, not by configuration. The result is
// sorted by action, then by label.
func DiffPolicies(derived, base *PolicyTable, allowed ...string) []Divergence {
	var out []Divergence
	for _, action := range unionKeys(derived.actions, base.actions) {
		if utils.MatchAnyAction(action, allowed) {
			continue
		}
		dg, inDerived := derived.actions[action]
		bg, inBase := base.actions[action]
		switch {
		case !inBase:
			out = append(out, Divergence{Kind: OnlyInDerived, Action: action})
		case !inDerived:
			out = append(out, Divergence{Kind: OnlyInBase, Action: action})
		default:
			dk, bk := ruleKinds(dg), ruleKinds(bg)
			if !equalStrings(dk, bk) {
				out = append(out, Divergence{Kind: RuleKindsDiffer, Action: action, Derived: dk, Base: bk})
			}
		}
	}
	out = append(out, diffNeedLabels(derived.needLabels, base.needLabels)...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func diffNeedLabels(derived, base map[string]string) []Divergence {
	var out []Divergence
	var missing []string
	for _, label := range unionKeys(derived, base) {
		d, inDerived := derived[label]
		b, inBase := base[label]
		switch {
		case !inDerived:
			missing = append(missing, label)
		case !inBase:
			out = append(out, Divergence{Kind: NeedLabelDiffers, Label: label, Derived: []string{d}})
		case d != b:
			out = append(out, Divergence{Kind: NeedLabelDiffers, Label: label, Derived: []string{d}, Base: []string{b}})
		}
	}
	if len(missing) > 0 {
		out = append(out, Divergence{Kind: NeedLabelsMissing, Base: missing})
	}
	return out
}

// ruleKinds returns the distinct rule type names of gens, sorted.
func ruleKinds(gens []Generator) []string {
	set := make(map[string]struct{}, len(gens))
	for _, g := range gens {
		set[RuleKind(g)] = struct{}{}
	}
	return sortedKeys(set)
}

func unionKeys[V any](a, b map[string]V) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		set[k] = struct{}{}
	}
	for k := range b {
		set[k] = struct{}{}
	}
	return sortedKeys(set)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
