package tugraz

import "fmt"

const (
	AccessPublic     = "public"
	AccessRestricted = "restricted"

	// custom fields carrying the TU Graz IP restrictions
	FieldSingleIP  = "single_ip"
	FieldIPNetwork = "ip_network"
)

// Record is the read-only view of a repository record the rules work on.
type Record struct {
	ID           string         `json:"id"`
	IsPublished  bool           `json:"is_published"`
	Deleted      bool           `json:"deleted"`
	Access       Access         `json:"access"`
	Parent       Parent         `json:"parent"`
	PIDs         map[string]PID `json:"pids,omitempty"`
	TransferType string         `json:"transfer_type,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

type Access struct {
	Record string `json:"record"`
	Files  string `json:"files"`
}

type Parent struct {
	ID                 string       `json:"id"`
	Access             ParentAccess `json:"access"`
	Communities        Communities  `json:"communities"`
	Review             *Review      `json:"review,omitempty"`
	PendingCommunities []string     `json:"pending_communities,omitempty"`
}

type ParentAccess struct {
	OwnedBy []Owner      `json:"owned_by"`
	Grants  []Grant      `json:"grants,omitempty"`
	Links   []SecretLink `json:"links,omitempty"`
}

// Owner references an account by id.
type Owner struct {
	User string `json:"user"`
}

// Grant gives a user or role a permission level on the record.
type Grant struct {
	SubjectType string `json:"subject_type"` // user or role
	SubjectID   string `json:"subject_id"`
	Permission  string `json:"permission"`
}

type SecretLink struct {
	ID         string `json:"id"`
	Permission string `json:"permission"`
}

type Communities struct {
	IDs     []string `json:"ids,omitempty"`
	Default string   `json:"default,omitempty"`
}

// Review is an open submission request towards a community.
type Review struct {
	Receiver string `json:"receiver"`
	Status   string `json:"status"`
}

type PID struct {
	Identifier string `json:"identifier"`
	Provider   string `json:"provider"`
}

// flag reads a boolean custom field. Absent or non-boolean values are false.
func (r *Record) flag(name string) bool {
	if r == nil || r.CustomFields == nil {
		return false
	}
	v, _ := r.CustomFields[name].(bool)
	return v
}

// RequiresSingleIP reports whether the record may only be read from an
// allow-listed IP literal.
func (r *Record) RequiresSingleIP() bool { return r.flag(FieldSingleIP) }

// RequiresIPNetwork reports whether the record may only be read from inside
// the configured network.
func (r *Record) RequiresIPNetwork() bool { return r.flag(FieldIPNetwork) }

// FirstOwner returns the first owner of the record.
func (r *Record) FirstOwner() (Owner, bool) {
	if r == nil || len(r.Parent.Access.OwnedBy) == 0 {
		return Owner{}, false
	}
	return r.Parent.Access.OwnedBy[0], true
}

// Document is what search predicates are evaluated against.
type Document interface {
	Values(field string) []any
}

// grantToken is the indexed form of a grant: "<type>.<id>.<permission>".
func grantToken(subjectType, subjectID, permission string) string {
	return fmt.Sprintf("%s.%s.%s", subjectType, subjectID, permission)
}

// Values exposes the indexed fields of the record.
func (r *Record) Values(field string) []any {
	if r == nil {
		return nil
	}
	switch field {
	case "id":
		return []any{r.ID}
	case "is_published":
		return []any{r.IsPublished}
	case "is_deleted":
		return []any{r.Deleted}
	case "access.record":
		return []any{r.Access.Record}
	case "access.files":
		return []any{r.Access.Files}
	case "parent.id":
		return []any{r.Parent.ID}
	case "parent.access.owned_by.user":
		out := make([]any, 0, len(r.Parent.Access.OwnedBy))
		for _, o := range r.Parent.Access.OwnedBy {
			out = append(out, o.User)
		}
		return out
	case "parent.access.grant_tokens":
		out := make([]any, 0, len(r.Parent.Access.Grants))
		for _, g := range r.Parent.Access.Grants {
			for _, p := range permissionsAtOrBelow(g.Permission) {
				out = append(out, grantToken(g.SubjectType, g.SubjectID, p))
			}
		}
		return out
	case "parent.access.links.id":
		out := make([]any, 0, len(r.Parent.Access.Links))
		for _, l := range r.Parent.Access.Links {
			out = append(out, l.ID)
		}
		return out
	case "parent.communities.ids":
		out := make([]any, 0, len(r.Parent.Communities.IDs))
		for _, id := range r.Parent.Communities.IDs {
			out = append(out, id)
		}
		return out
	case "pids.doi.provider":
		if pid, ok := r.PIDs["doi"]; ok {
			return []any{pid.Provider}
		}
		return nil
	}
	const prefix = "custom_fields."
	if len(field) > len(prefix) && field[:len(prefix)] == prefix {
		if v, ok := r.CustomFields[field[len(prefix):]]; ok {
			return []any{v}
		}
	}
	return nil
}
