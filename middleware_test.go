package tugraz

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

// httptest requests arrive from 192.0.2.1
var testProxies = []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")}

func TestRequestIdentityBindsRealIP(t *testing.T) {
	var seen *Identity
	h := RequestIdentity(RequestIdentityOptions{
		Resolve: func(r *http.Request) (*Identity, error) {
			if r.Header.Get("X-User") == "" {
				return nil, nil
			}
			return NewIdentity(r.Header.Get("X-User"), AuthenticatedUserNeed), nil
		},
		TrustedProxies: testProxies,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/records/1", nil)
	req.Header.Set("X-Real-IP", "127.0.0.1")
	req.Header.Set("X-User", "7")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == nil || seen.ID != "7" || seen.RemoteAddr != "127.0.0.1" {
		t.Fatalf("unexpected identity %+v", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/records/1", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !seen.IsAnonymous() || seen.RemoteAddr != req.RemoteAddr {
		t.Fatalf("anonymous requests keep the socket address, got %+v", seen)
	}
}

func TestRequestIdentityResolveError(t *testing.T) {
	h := RequestIdentity(RequestIdentityOptions{
		Resolve: func(*http.Request) (*Identity, error) { return nil, errors.New("session store down") },
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestRequireActionSingleIP(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SingleIP = []string{"127.0.0.1"}
	e := tugrazEngine(t, cfg)
	rec := flagged(FieldSingleIP)

	chain := func(next http.Handler) http.Handler {
		return RequestIdentity(RequestIdentityOptions{TrustedProxies: testProxies})(RequireAction(RequireActionOptions{
			Engine: e,
			Action: "read",
			Record: func(*http.Request) (*Record, error) { return rec, nil },
		})(next))
	}
	ok := chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := map[string]int{
		"127.0.0.1": http.StatusOK,
		"10.0.0.5":  http.StatusForbidden,
	}
	for ip, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/records/r", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rr := httptest.NewRecorder()
		ok.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("%s: expected %d, got %d", ip, want, rr.Code)
		}
	}
}

func TestRequestIdentityIgnoresUntrustedForwardingHeaders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SingleIP = []string{"127.0.0.1"}
	e := tugrazEngine(t, cfg)
	rec := flagged(FieldSingleIP)

	var seen *Identity
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	guard := RequireAction(RequireActionOptions{
		Engine: e,
		Action: "read",
		Record: func(*http.Request) (*Record, error) { return rec, nil },
	})

	for name, opts := range map[string]RequestIdentityOptions{
		"no proxies":    {},
		"other proxies": {TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}},
	} {
		h := RequestIdentity(opts)(guard(ok))
		for _, header := range []string{"X-Real-IP", "X-Forwarded-For", "True-Client-IP"} {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/records/r", nil)
			req.RemoteAddr = "203.0.113.9:4711"
			req.Header.Set(header, "127.0.0.1")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusForbidden {
				t.Fatalf("%s %s: expected 403, got %d", name, header, rr.Code)
			}
		}
	}

	h := RequestIdentity(RequestIdentityOptions{})(ok)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4711"
	req.Header.Set("X-Real-IP", "127.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == nil || seen.RemoteAddr != "203.0.113.9:4711" {
		t.Fatalf("untrusted peer must keep its socket address, got %+v", seen)
	}
}

func TestRequireActionErrors(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { t.Fatalf("handler must not run") })

	rr := httptest.NewRecorder()
	RequireAction(RequireActionOptions{Action: "read"})(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("missing engine: expected 500, got %d", rr.Code)
	}

	e := newTestEngine(t, testTable())
	var denied *Decision
	rr = httptest.NewRecorder()
	RequireAction(RequireActionOptions{
		Engine: e,
		Action: "write",
		OnDenied: func(w http.ResponseWriter, _ *http.Request, d *Decision) {
			denied = d
			w.WriteHeader(http.StatusUnauthorized)
		},
	})(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized || denied == nil || denied.Reason != reasonNoGrant {
		t.Fatalf("custom deny handler not used: %d %+v", rr.Code, denied)
	}

	rr = httptest.NewRecorder()
	RequireAction(RequireActionOptions{
		Engine: e,
		Action: "read",
		Record: func(*http.Request) (*Record, error) { return nil, errors.New("no such record") },
	})(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("record lookup error: expected 500, got %d", rr.Code)
	}
}
