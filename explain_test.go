package tugraz

import (
	"context"
	"errors"
	"testing"
)

func TestExplainRequestIdentity(t *testing.T) {
	req := &ExplainRequest{Action: "read", UserID: "5", Roles: []string{"librarian"}, Needs: []string{"community:c1:curator"}, RemoteAddr: "10.0.0.1"}
	id, err := req.Identity()
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	for _, n := range []Need{UserNeed("5"), AuthenticatedUserNeed, RoleNeed("librarian"), CommunityRoleNeed("c1", "curator")} {
		if !id.Has(n) {
			t.Fatalf("expected %s in %v", n, id.Needs())
		}
	}
	if id.RemoteAddr != "10.0.0.1" {
		t.Fatalf("remote address not set")
	}
	if anon, _ := (&ExplainRequest{Action: "read"}).Identity(); anon.Has(AuthenticatedUserNeed) {
		t.Fatalf("request without user is anonymous")
	}
	if _, err := (&ExplainRequest{Action: "read", Needs: []string{"broken"}}).Identity(); err == nil {
		t.Fatalf("expected malformed need error")
	}
}

func TestEngineExplainRequest(t *testing.T) {
	ctx := context.Background()
	e := tugrazEngine(t, ipConfig())
	if _, err := e.ExplainRequest(ctx, &ExplainRequest{}); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	if _, err := e.ExplainRequest(ctx, nil); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction for nil request, got %v", err)
	}
	d, err := e.ExplainRequest(ctx, &ExplainRequest{Action: "read", RemoteAddr: "127.0.0.1", Record: flagged(FieldSingleIP)})
	if err != nil || !d.Allowed || len(d.Trace) == 0 {
		t.Fatalf("unexpected decision %+v %v", d, err)
	}
	d, _ = e.ExplainRequest(ctx, &ExplainRequest{Action: "create", SuperUser: true})
	if !d.Allowed || d.Reason != reasonSuperUser {
		t.Fatalf("super user request should be allowed, got %+v", d)
	}
}
