package tugraz

import (
	"fmt"
	"reflect"
	"strings"
)

// Query is a search predicate over records. Map renders the search engine
// DSL; Matches evaluates the same predicate against a single document so the
// filter of a rule can be checked against its decisions.
type Query interface {
	Matches(doc Document) bool
	Map() map[string]any
	String() string
}

type MatchAllQuery struct{}

func (MatchAllQuery) Matches(Document) bool { return true }
func (MatchAllQuery) Map() map[string]any   { return map[string]any{"match_all": map[string]any{}} }
func (MatchAllQuery) String() string        { return "match_all" }

type MatchNoneQuery struct{}

func (MatchNoneQuery) Matches(Document) bool { return false }
func (MatchNoneQuery) Map() map[string]any   { return map[string]any{"match_none": map[string]any{}} }
func (MatchNoneQuery) String() string        { return "match_none" }

var (
	MatchAll  Query = MatchAllQuery{}
	MatchNone Query = MatchNoneQuery{}
)

// TermQuery matches documents where Field holds Value.
type TermQuery struct {
	Field string
	Value any
}

func Term(field string, value any) *TermQuery { return &TermQuery{Field: field, Value: value} }

func (q *TermQuery) Matches(doc Document) bool {
	for _, v := range doc.Values(q.Field) {
		if equalValues(v, q.Value) {
			return true
		}
	}
	return false
}

func (q *TermQuery) Map() map[string]any {
	return map[string]any{"term": map[string]any{q.Field: q.Value}}
}

func (q *TermQuery) String() string { return fmt.Sprintf("%s == %v", q.Field, q.Value) }

// TermsQuery matches documents where Field holds any of Values.
type TermsQuery struct {
	Field  string
	Values []any
}

// Terms builds a TermsQuery from strings. An empty value list matches
// nothing.
func Terms(field string, values ...string) Query {
	if len(values) == 0 {
		return MatchNone
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return &TermsQuery{Field: field, Values: vals}
}

func (q *TermsQuery) Matches(doc Document) bool {
	for _, v := range doc.Values(q.Field) {
		for _, want := range q.Values {
			if equalValues(v, want) {
				return true
			}
		}
	}
	return false
}

func (q *TermsQuery) Map() map[string]any {
	return map[string]any{"terms": map[string]any{q.Field: q.Values}}
}

func (q *TermsQuery) String() string {
	parts := make([]string, len(q.Values))
	for i, v := range q.Values {
		parts[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("%s in [%s]", q.Field, strings.Join(parts, ","))
}

type NotQuery struct {
	Q Query
}

func (q *NotQuery) Matches(doc Document) bool { return !q.Q.Matches(doc) }

func (q *NotQuery) Map() map[string]any {
	return map[string]any{"bool": map[string]any{"must_not": []any{q.Q.Map()}}}
}

func (q *NotQuery) String() string { return "NOT(" + q.Q.String() + ")" }

type OrQuery struct {
	Queries []Query
}

func (q *OrQuery) Matches(doc Document) bool {
	for _, sub := range q.Queries {
		if sub.Matches(doc) {
			return true
		}
	}
	return false
}

func (q *OrQuery) Map() map[string]any {
	should := make([]any, len(q.Queries))
	for i, sub := range q.Queries {
		should[i] = sub.Map()
	}
	return map[string]any{"bool": map[string]any{"should": should, "minimum_should_match": 1}}
}

func (q *OrQuery) String() string { return joinQueries("OR", q.Queries) }

type AndQuery struct {
	Queries []Query
}

func (q *AndQuery) Matches(doc Document) bool {
	for _, sub := range q.Queries {
		if !sub.Matches(doc) {
			return false
		}
	}
	return true
}

func (q *AndQuery) Map() map[string]any {
	must := make([]any, len(q.Queries))
	for i, sub := range q.Queries {
		must[i] = sub.Map()
	}
	return map[string]any{"bool": map[string]any{"must": must}}
}

func (q *AndQuery) String() string { return joinQueries("AND", q.Queries) }

func joinQueries(op string, qs []Query) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = q.String()
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}

// Or combines queries with a logical OR. Nil queries contribute nothing,
// match_all absorbs the rest and an empty result matches nothing.
func Or(qs ...Query) Query {
	out := make([]Query, 0, len(qs))
	for _, q := range qs {
		switch q.(type) {
		case nil, MatchNoneQuery:
			continue
		case MatchAllQuery:
			return MatchAll
		case *OrQuery:
			out = append(out, q.(*OrQuery).Queries...)
		default:
			out = append(out, q)
		}
	}
	switch len(out) {
	case 0:
		return MatchNone
	case 1:
		return out[0]
	}
	return &OrQuery{Queries: out}
}

// And combines queries with a logical AND. Nil queries are ignored,
// match_none absorbs the rest and an empty result matches everything.
func And(qs ...Query) Query {
	out := make([]Query, 0, len(qs))
	for _, q := range qs {
		switch q.(type) {
		case nil, MatchAllQuery:
			continue
		case MatchNoneQuery:
			return MatchNone
		case *AndQuery:
			out = append(out, q.(*AndQuery).Queries...)
		default:
			out = append(out, q)
		}
	}
	switch len(out) {
	case 0:
		return MatchAll
	case 1:
		return out[0]
	}
	return &AndQuery{Queries: out}
}

// Not negates q.
func Not(q Query) Query {
	switch v := q.(type) {
	case nil:
		return nil
	case MatchAllQuery:
		return MatchNone
	case MatchNoneQuery:
		return MatchAll
	case *NotQuery:
		return v.Q
	}
	return &NotQuery{Q: q}
}

func equalValues(a, b any) bool {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as == bs
		}
	}
	return reflect.DeepEqual(a, b)
}
