package tugraz

import (
	"fmt"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/tu-graz-library/invenio-config-tugraz/utils"
)

// IdentityResolver extracts the authenticated identity of a request. It
// returns nil for anonymous requests.
type IdentityResolver func(r *http.Request) (*Identity, error)

// RequestIdentityOptions configures RequestIdentity.
type RequestIdentityOptions struct {
	Resolve IdentityResolver
	OnError func(w http.ResponseWriter, r *http.Request, err error)
	// TrustedProxies lists the peers whose True-Client-IP, X-Real-IP and
	// X-Forwarded-For headers are honoured. Empty means the socket address
	// is always used.
	TrustedProxies []netip.Prefix
}

func (o RequestIdentityOptions) trusts(remoteAddr string) bool {
	if len(o.TrustedProxies) == 0 {
		return false
	}
	peer, ok := utils.ParseRemoteAddr(remoteAddr)
	if !ok {
		return false
	}
	for _, p := range o.TrustedProxies {
		if p.Contains(peer) {
			return true
		}
	}
	return false
}

// RequestIdentity resolves the identity of every request, binds it to the
// client address and stores it in the request context. Forwarding headers
// replace the socket address only when the peer is a trusted proxy.
func RequestIdentity(opts RequestIdentityOptions) func(http.Handler) http.Handler {
	onError := opts.OnError
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
	return func(next http.Handler) http.Handler {
		bind := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id *Identity
			if opts.Resolve != nil {
				resolved, err := opts.Resolve(r)
				if err != nil {
					onError(w, r, fmt.Errorf("resolve identity: %w", err))
					return
				}
				id = resolved
			}
			id = id.WithRemoteAddr(r.RemoteAddr)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
		realIP := middleware.RealIP(bind)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.trusts(r.RemoteAddr) {
				realIP.ServeHTTP(w, r)
				return
			}
			bind.ServeHTTP(w, r)
		})
	}
}

// RequireActionOptions configures RequireAction.
type RequireActionOptions struct {
	Engine   *Engine
	Action   string
	Record   func(r *http.Request) (*Record, error) // nil for record-less actions
	OnDenied func(w http.ResponseWriter, r *http.Request, d *Decision)
	OnError  func(w http.ResponseWriter, r *http.Request, err error)
}

// RequireAction denies requests whose context identity may not perform the
// configured action. It expects RequestIdentity earlier in the chain.
func RequireAction(opts RequireActionOptions) func(http.Handler) http.Handler {
	onDenied := opts.OnDenied
	if onDenied == nil {
		onDenied = func(w http.ResponseWriter, _ *http.Request, _ *Decision) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Engine == nil {
				onError(w, r, fmt.Errorf("middleware misconfigured: engine is required"))
				return
			}
			var rec *Record
			if opts.Record != nil {
				var err error
				if rec, err = opts.Record(r); err != nil {
					onError(w, r, err)
					return
				}
			}
			d := opts.Engine.Authorize(r.Context(), opts.Action, rec, IdentityFromContext(r.Context()))
			if !d.Allowed {
				onDenied(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
