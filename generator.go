package tugraz

import (
	"context"
	"reflect"
)

// Generator is one rule of a policy. Needs are the claims that grant access,
// Excludes the claims that revoke it and QueryFilter the search predicate
// approximating the same decision without a concrete record. rec may be nil.
// A nil filter contributes nothing to a search.
type Generator interface {
	Needs(ctx context.Context, rec *Record, id *Identity) []Need
	Excludes(ctx context.Context, rec *Record, id *Identity) []Need
	QueryFilter(ctx context.Context, id *Identity) Query
}

// RuleKind names the concrete type of a generator. Policy tables are
// compared by kind only.
func RuleKind(g Generator) string {
	t := reflect.TypeOf(g)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// noExcludes is embedded by generators that never revoke.
type noExcludes struct{}

func (noExcludes) Excludes(context.Context, *Record, *Identity) []Need { return nil }

// systemRole grants a fixed need regardless of the record. Its filter lets
// holders see everything.
type systemRole struct {
	noExcludes
	need Need
}

func (g systemRole) Needs(context.Context, *Record, *Identity) []Need { return []Need{g.need} }

func (g systemRole) QueryFilter(_ context.Context, id *Identity) Query {
	if id.Has(g.need) {
		return MatchAll
	}
	return nil
}

// AnyUser grants everybody, anonymous actors included.
type AnyUser struct{ systemRole }

func NewAnyUser() *AnyUser { return &AnyUser{systemRole{need: AnyUserNeed}} }

// AuthenticatedUser grants every logged-in account.
type AuthenticatedUser struct{ systemRole }

func NewAuthenticatedUser() *AuthenticatedUser {
	return &AuthenticatedUser{systemRole{need: AuthenticatedUserNeed}}
}

// SystemProcess grants internal jobs.
type SystemProcess struct{ systemRole }

func NewSystemProcess() *SystemProcess { return &SystemProcess{systemRole{need: SystemProcessNeed}} }

// Administration grants holders of the administration action.
type Administration struct{ systemRole }

func NewAdministration() *Administration {
	return &Administration{systemRole{need: AdministrationNeed}}
}

// UserManager grants holders of the moderation action.
type UserManager struct{ systemRole }

func NewUserManager() *UserManager { return &UserManager{systemRole{need: ModerationNeed}} }

// Disable marks an action nobody may perform. It grants nothing, filters
// nothing and revokes AnyUser so that rules appended next to it stay inert.
type Disable struct{}

func (Disable) Needs(context.Context, *Record, *Identity) []Need { return nil }

func (Disable) Excludes(context.Context, *Record, *Identity) []Need {
	return []Need{AnyUserNeed}
}

func (Disable) QueryFilter(context.Context, *Identity) Query { return nil }

// RecordOwners grants the owners of the record.
type RecordOwners struct{ noExcludes }

func (RecordOwners) Needs(_ context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil {
		return nil
	}
	out := make([]Need, 0, len(rec.Parent.Access.OwnedBy))
	for _, o := range rec.Parent.Access.OwnedBy {
		out = append(out, UserNeed(o.User))
	}
	return out
}

func (RecordOwners) QueryFilter(_ context.Context, id *Identity) Query {
	if id.IsAnonymous() {
		return nil
	}
	return Term("parent.access.owned_by.user", id.ID)
}

// community roles allowed to perform a community action on a record
var communityActionRoles = map[string][]string{
	"curate": {"owner", "manager", "curator"},
	"view":   {"owner", "manager", "curator", "reader"},
}

var reviewerRoles = []string{"owner", "manager", "curator"}

// RecordCommunitiesAction grants members of the record's communities whose
// role allows Action.
type RecordCommunitiesAction struct {
	noExcludes
	Action string
}

func (g RecordCommunitiesAction) Needs(_ context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil {
		return nil
	}
	roles := communityActionRoles[g.Action]
	var out []Need
	for _, cid := range rec.Parent.Communities.IDs {
		for _, role := range roles {
			out = append(out, CommunityRoleNeed(cid, role))
		}
	}
	return out
}

func (g RecordCommunitiesAction) QueryFilter(_ context.Context, id *Identity) Query {
	allowed := communityActionRoles[g.Action]
	var cids []string
	for cid, roles := range id.communityRoles() {
		if intersects(roles, allowed) {
			cids = append(cids, cid)
		}
	}
	if len(cids) == 0 {
		return nil
	}
	return Terms("parent.communities.ids", sortedStrings(cids)...)
}

// SubmissionReviewer grants curators of the community an open review
// request is addressed to.
type SubmissionReviewer struct{ noExcludes }

func (SubmissionReviewer) Needs(_ context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil || rec.Parent.Review == nil || rec.Parent.Review.Receiver == "" {
		return nil
	}
	if s := rec.Parent.Review.Status; s != "" && s != "submitted" {
		return nil
	}
	out := make([]Need, 0, len(reviewerRoles))
	for _, role := range reviewerRoles {
		out = append(out, CommunityRoleNeed(rec.Parent.Review.Receiver, role))
	}
	return out
}

func (SubmissionReviewer) QueryFilter(context.Context, *Identity) Query { return nil }

// CommunityInclusionReviewers grants curators of communities with a pending
// inclusion request for the record.
type CommunityInclusionReviewers struct{ noExcludes }

func (CommunityInclusionReviewers) Needs(_ context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil {
		return nil
	}
	var out []Need
	for _, cid := range rec.Parent.PendingCommunities {
		for _, role := range reviewerRoles {
			out = append(out, CommunityRoleNeed(cid, role))
		}
	}
	return out
}

func (CommunityInclusionReviewers) QueryFilter(context.Context, *Identity) Query { return nil }

// permission levels of grants and secret links, weakest first
var permissionLevels = []string{"view", "preview", "edit", "manage"}

func permissionRank(p string) int {
	for i, l := range permissionLevels {
		if l == p {
			return i
		}
	}
	return -1
}

// permissionsAtOrBelow lists the levels implied by p.
func permissionsAtOrBelow(p string) []string {
	r := permissionRank(p)
	if r < 0 {
		return nil
	}
	return permissionLevels[:r+1]
}

// AccessGrant grants users and roles that were given at least Permission on
// the record.
type AccessGrant struct {
	noExcludes
	Permission string
}

func (g AccessGrant) Needs(_ context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil {
		return nil
	}
	want := permissionRank(g.Permission)
	var out []Need
	for _, gr := range rec.Parent.Access.Grants {
		if permissionRank(gr.Permission) < want || want < 0 {
			continue
		}
		switch gr.SubjectType {
		case "user":
			out = append(out, UserNeed(gr.SubjectID))
		case "role":
			out = append(out, RoleNeed(gr.SubjectID))
		}
	}
	return out
}

func (g AccessGrant) QueryFilter(_ context.Context, id *Identity) Query {
	var tokens []string
	if !id.IsAnonymous() {
		tokens = append(tokens, grantToken("user", id.ID, g.Permission))
	}
	for _, role := range id.Roles() {
		tokens = append(tokens, grantToken("role", role, g.Permission))
	}
	if len(tokens) == 0 {
		return nil
	}
	return Terms("parent.access.grant_tokens", tokens...)
}

// SecretLinks grants holders of a secret link with at least Permission.
type SecretLinks struct {
	noExcludes
	Permission string
}

func (g SecretLinks) Needs(_ context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil {
		return nil
	}
	want := permissionRank(g.Permission)
	var out []Need
	for _, l := range rec.Parent.Access.Links {
		if want >= 0 && permissionRank(l.Permission) >= want {
			out = append(out, LinkNeed(l.ID))
		}
	}
	return out
}

func (g SecretLinks) QueryFilter(_ context.Context, id *Identity) Query {
	links := id.Links()
	if len(links) == 0 {
		return nil
	}
	return Terms("parent.access.links.id", links...)
}

// ResourceAccessToken grants requests carrying a validated access token for
// the record with the given permission.
type ResourceAccessToken struct {
	noExcludes
	Permission string
}

func (g ResourceAccessToken) Needs(_ context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil {
		return nil
	}
	return []Need{AccessTokenNeed(rec.ID, g.Permission)}
}

func (ResourceAccessToken) QueryFilter(context.Context, *Identity) Query { return nil }

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// CommunityCurators grants curators of every community the record belongs
// to. It is used for removing records from communities.
type CommunityCurators struct{ noExcludes }

func (CommunityCurators) Needs(_ context.Context, rec *Record, _ *Identity) []Need {
	if rec == nil {
		return nil
	}
	var out []Need
	for _, cid := range rec.Parent.Communities.IDs {
		for _, role := range reviewerRoles {
			out = append(out, CommunityRoleNeed(cid, role))
		}
	}
	return out
}

func (CommunityCurators) QueryFilter(context.Context, *Identity) Query { return nil }
