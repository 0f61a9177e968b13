package tugraz

import "strings"

// Need is a single claim an identity can provide. Two needs are equal when
// both method and value are equal.
type Need struct {
	Method string `json:"method" yaml:"method"`
	Value  string `json:"value" yaml:"value"`
}

func (n Need) String() string {
	return n.Method + ":" + n.Value
}

// IsZero reports whether n is the empty need.
func (n Need) IsZero() bool { return n.Method == "" && n.Value == "" }

const (
	methodUser       = "id"
	methodRole       = "role"
	methodSystemRole = "system_role"
	methodAction     = "action"
	methodLink       = "link"
	methodCommunity  = "community"
	methodToken      = "resource_token"
)

func UserNeed(id string) Need         { return Need{Method: methodUser, Value: id} }
func RoleNeed(name string) Need       { return Need{Method: methodRole, Value: name} }
func SystemRoleNeed(name string) Need { return Need{Method: methodSystemRole, Value: name} }
func ActionNeed(name string) Need     { return Need{Method: methodAction, Value: name} }
func LinkNeed(id string) Need         { return Need{Method: methodLink, Value: id} }

// CommunityRoleNeed is held by members of a community with the given role.
func CommunityRoleNeed(communityID, role string) Need {
	return Need{Method: methodCommunity, Value: communityID + ":" + role}
}

// AccessTokenNeed is provided after a resource access token for recordID
// with the given permission has been validated.
func AccessTokenNeed(recordID, permission string) Need {
	return Need{Method: methodToken, Value: recordID + ":" + permission}
}

var (
	AnyUserNeed           = SystemRoleNeed("any_user")
	AuthenticatedUserNeed = SystemRoleNeed("authenticated_user")
	SystemProcessNeed     = SystemRoleNeed("system_process")
	SuperUserNeed         = ActionNeed("superuser-access")
	AdministrationNeed    = ActionNeed("administration-access")
	ModerationNeed        = ActionNeed("administration-moderation")
)

// ParseNeed turns "method:value" back into a Need. Shorthands "any_user",
// "authenticated_user", "system_process" and "superuser" are accepted.
func ParseNeed(s string) (Need, bool) {
	switch s {
	case "any_user":
		return AnyUserNeed, true
	case "authenticated_user":
		return AuthenticatedUserNeed, true
	case "system_process":
		return SystemProcessNeed, true
	case "superuser":
		return SuperUserNeed, true
	}
	method, value, ok := strings.Cut(s, ":")
	if !ok || method == "" || value == "" {
		return Need{}, false
	}
	return Need{Method: method, Value: value}, true
}

// communityRole splits the value of a community need.
func (n Need) communityRole() (communityID, role string, ok bool) {
	if n.Method != methodCommunity {
		return "", "", false
	}
	return strings.Cut(n.Value, ":")
}
