package tugraz

import (
	"reflect"
	"testing"
)

func TestOrSimplification(t *testing.T) {
	a := Term("access.record", "public")
	if got := Or(); got != MatchNone {
		t.Fatalf("empty Or should match nothing, got %v", got)
	}
	if got := Or(nil, MatchNone, a); got != a {
		t.Fatalf("Or should drop nil and match_none, got %v", got)
	}
	if got := Or(a, MatchAll); got != MatchAll {
		t.Fatalf("match_all should absorb Or, got %v", got)
	}
	b := Term("is_deleted", true)
	nested := Or(a, Or(b, Term("id", "x")))
	if or, ok := nested.(*OrQuery); !ok || len(or.Queries) != 3 {
		t.Fatalf("nested Or should flatten, got %v", nested)
	}
}

func TestAndNotSimplification(t *testing.T) {
	a := Term("access.record", "public")
	if got := And(); got != MatchAll {
		t.Fatalf("empty And should match everything, got %v", got)
	}
	if got := And(a, MatchNone); got != MatchNone {
		t.Fatalf("match_none should absorb And, got %v", got)
	}
	if got := And(MatchAll, a); got != a {
		t.Fatalf("And should drop match_all, got %v", got)
	}
	if Not(MatchAll) != MatchNone || Not(MatchNone) != MatchAll {
		t.Fatalf("Not should invert constants")
	}
	if got := Not(Not(a)); got != a {
		t.Fatalf("double negation should cancel, got %v", got)
	}
	if Not(nil) != nil {
		t.Fatalf("Not(nil) should stay nil")
	}
}

func TestQueryMatchesRecord(t *testing.T) {
	rec := &Record{
		ID:           "r1",
		Access:       Access{Record: AccessRestricted, Files: AccessPublic},
		Parent:       Parent{Access: ParentAccess{Grants: []Grant{{SubjectType: "user", SubjectID: "5", Permission: "edit"}}}},
		CustomFields: map[string]any{FieldSingleIP: true},
	}
	q := And(Term("access.record", AccessRestricted), Terms("parent.access.grant_tokens", "user.5.view"))
	if !q.Matches(rec) {
		t.Fatalf("edit grant implies view token, %s should match", q)
	}
	if Term("custom_fields."+FieldIPNetwork, true).Matches(rec) {
		t.Fatalf("absent custom field must not match")
	}
	if !Term("custom_fields."+FieldSingleIP, true).Matches(rec) {
		t.Fatalf("custom field should match")
	}
	if Terms("id") != MatchNone {
		t.Fatalf("Terms without values should match nothing")
	}
}

func TestQueryMap(t *testing.T) {
	q := Or(Term("id", "a"), Not(Term("is_deleted", true)))
	want := map[string]any{"bool": map[string]any{
		"should": []any{
			map[string]any{"term": map[string]any{"id": "a"}},
			map[string]any{"bool": map[string]any{"must_not": []any{
				map[string]any{"term": map[string]any{"is_deleted": true}},
			}}},
		},
		"minimum_should_match": 1,
	}}
	if got := q.Map(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected map %v", got)
	}
	if s := q.String(); s != "(id == a OR NOT(is_deleted == true))" {
		t.Fatalf("unexpected string %q", s)
	}
}
