package tugraz

import (
	"context"
	"strings"
	"sync"
	"testing"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}
func (l *recordingLogger) Error(msg string, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func flagged(field string) *Record {
	return &Record{ID: "r", IsPublished: true, Access: Access{Record: AccessPublic, Files: AccessPublic}, CustomFields: map[string]any{field: true}}
}

func grantsAnyUser(needs []Need) bool {
	for _, n := range needs {
		if n == AnyUserNeed {
			return true
		}
	}
	return false
}

func TestSingleIPRule(t *testing.T) {
	ctx := context.Background()
	log := &recordingLogger{}
	rule := NewSingleIPRule([]string{"127.0.0.1", "bogus", "2001:db8::1"}, log)
	if log.count() != 1 {
		t.Fatalf("expected one malformed entry to be logged, got %d", log.count())
	}
	rec := flagged(FieldSingleIP)

	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1", true},
		{"127.0.0.1:5000", true},
		{"[2001:db8::1]:443", true},
		{"127.0.0.2", false},
		{"10.0.0.5", false},
		{"", false},
	}
	for _, c := range cases {
		id := AnonymousIdentity(c.addr)
		if got := grantsAnyUser(rule.Needs(ctx, rec, id)); got != c.want {
			t.Fatalf("single ip %q: got %v, expected %v", c.addr, got, c.want)
		}
	}
	if !grantsAnyUser(rule.Needs(ctx, &Record{}, AnonymousIdentity("10.0.0.5"))) {
		t.Fatalf("unflagged records are not restricted")
	}
	if !grantsAnyUser(rule.Needs(ctx, nil, AnonymousIdentity(""))) {
		t.Fatalf("nil record is not restricted")
	}
}

func TestSingleIPRuleLogsMalformedRequester(t *testing.T) {
	log := &recordingLogger{}
	rule := NewSingleIPRule([]string{"127.0.0.1"}, log)
	if grantsAnyUser(rule.Needs(context.Background(), flagged(FieldSingleIP), AnonymousIdentity("not-an-ip"))) {
		t.Fatalf("malformed requester must not match")
	}
	if log.count() != 1 {
		t.Fatalf("malformed requester should be logged once, got %d", log.count())
	}
	// a missing address is a silent no-match
	rule.Needs(context.Background(), flagged(FieldSingleIP), AnonymousIdentity(""))
	if log.count() != 1 {
		t.Fatalf("missing address must not be logged")
	}
}

func TestIPNetworkRuleBoundaries(t *testing.T) {
	ctx := context.Background()
	rule := NewIPNetworkRule("192.168.10.0/24", nil)
	rec := flagged(FieldIPNetwork)
	cases := []struct {
		addr string
		want bool
	}{
		{"192.168.10.0", true},
		{"192.168.10.255", true},
		{"192.168.10.77", true},
		{"192.168.11.0", false},
		{"192.168.9.255", false},
		{"::ffff:192.168.10.4", true},
		{"", false},
	}
	for _, c := range cases {
		if got := grantsAnyUser(rule.Needs(ctx, rec, AnonymousIdentity(c.addr))); got != c.want {
			t.Fatalf("network %q: got %v, expected %v", c.addr, got, c.want)
		}
	}
}

func TestIPNetworkRuleFailsClosed(t *testing.T) {
	ctx := context.Background()
	log := &recordingLogger{}
	rec := flagged(FieldIPNetwork)
	for _, cidr := range []string{"", "10.0.0.0/33", "garbage"} {
		rule := NewIPNetworkRule(cidr, log)
		if grantsAnyUser(rule.Needs(ctx, rec, AnonymousIdentity("10.0.0.1"))) {
			t.Fatalf("network %q should never match", cidr)
		}
		if !grantsAnyUser(rule.Needs(ctx, &Record{}, AnonymousIdentity("10.0.0.1"))) {
			t.Fatalf("network %q must not restrict unflagged records", cidr)
		}
	}
	if log.count() != 2 {
		t.Fatalf("expected two malformed networks to be logged, got %d", log.count())
	}
}

func TestIPRuleFilters(t *testing.T) {
	ctx := context.Background()
	single := NewSingleIPRule([]string{"127.0.0.1"}, nil)
	if q := single.QueryFilter(ctx, AnonymousIdentity("127.0.0.1")); q != MatchAll {
		t.Fatalf("allowed requester should see everything, got %v", q)
	}
	q := single.QueryFilter(ctx, AnonymousIdentity("10.0.0.5"))
	if q.Matches(flagged(FieldSingleIP)) || !q.Matches(&Record{}) {
		t.Fatalf("outside requester filter %s is wrong", q)
	}
	network := NewIPNetworkRule("10.0.0.0/8", nil)
	if !strings.Contains(network.QueryFilter(ctx, AnonymousIdentity("192.0.2.1")).String(), FieldIPNetwork) {
		t.Fatalf("outside requester should filter on %s", FieldIPNetwork)
	}
}

func TestIPConditionals(t *testing.T) {
	ctx := context.Background()
	c := NewIfSingleIPRestricted(gens(NewSystemProcess()), gens(NewAnyUser()))
	if needs := c.Needs(ctx, flagged(FieldSingleIP), nil); len(needs) != 1 || needs[0] != SystemProcessNeed {
		t.Fatalf("flagged record should take the then branch, got %v", needs)
	}
	if needs := c.Needs(ctx, &Record{}, nil); len(needs) != 1 || needs[0] != AnyUserNeed {
		t.Fatalf("unflagged record should take the else branch, got %v", needs)
	}
	n := NewIfIPNetworkRestricted(gens(NewSystemProcess()), nil)
	if needs := n.Needs(ctx, &Record{}, nil); len(needs) != 0 {
		t.Fatalf("empty else branch grants nothing, got %v", needs)
	}
	either := NewIfIPRestricted(gens(NewSystemProcess()), gens(NewAnyUser()))
	for _, rec := range []*Record{flagged(FieldSingleIP), flagged(FieldIPNetwork)} {
		if needs := either.Needs(ctx, rec, nil); len(needs) != 1 || needs[0] != SystemProcessNeed {
			t.Fatalf("either flag should take the then branch, got %v", needs)
		}
		if !either.query.Matches(rec) {
			t.Fatalf("indexed query must match a flagged record")
		}
	}
	if needs := either.Needs(ctx, nil, nil); len(needs) != 1 || needs[0] != AnyUserNeed {
		t.Fatalf("nil record should take the else branch, got %v", needs)
	}
	if either.query.Matches(&Record{}) {
		t.Fatalf("indexed query must not match an unflagged record")
	}
}

func TestSingleIPRuleRejectsLiteralWithPort(t *testing.T) {
	log := &recordingLogger{}
	rule := NewSingleIPRule([]string{"127.0.0.1:8080"}, log)
	if log.count() != 1 {
		t.Fatalf("literal with port should be logged as malformed, got %d", log.count())
	}
	if grantsAnyUser(rule.Needs(context.Background(), flagged(FieldSingleIP), AnonymousIdentity("127.0.0.1"))) {
		t.Fatalf("literal with port must not admit its host")
	}
}
