package stores

import (
	"context"
	"fmt"
	"sort"

	"github.com/oarkflow/squealx"
)

// SQLRoleMembershipStore keeps account role assignments in SQL (squealx).
type SQLRoleMembershipStore struct {
	db *squealx.DB
}

func NewSQLRoleMembershipStore(db *squealx.DB) *SQLRoleMembershipStore {
	return &SQLRoleMembershipStore{db: db}
}

func (s *SQLRoleMembershipStore) AssignRole(ctx context.Context, subjectID, roleID string) error {
	q := `INSERT OR IGNORE INTO role_members(subject_id, role_id) VALUES(:subject_id, :role_id)`
	if _, err := s.db.NamedExecContext(ctx, q, map[string]any{"subject_id": subjectID, "role_id": roleID}); err != nil {
		return fmt.Errorf("assign role %s to %s: %w", roleID, subjectID, err)
	}
	return nil
}

func (s *SQLRoleMembershipStore) RevokeRole(ctx context.Context, subjectID, roleID string) error {
	q := `DELETE FROM role_members WHERE subject_id = :subject_id AND role_id = :role_id`
	if _, err := s.db.NamedExecContext(ctx, q, map[string]any{"subject_id": subjectID, "role_id": roleID}); err != nil {
		return fmt.Errorf("revoke role %s from %s: %w", roleID, subjectID, err)
	}
	return nil
}

// ListRoles returns the roles of subjectID sorted by name.
func (s *SQLRoleMembershipStore) ListRoles(ctx context.Context, subjectID string) ([]string, error) {
	return s.list(ctx, `SELECT role_id FROM role_members WHERE subject_id = :key`, subjectID)
}

// ListMembers returns the accounts holding roleID.
func (s *SQLRoleMembershipStore) ListMembers(ctx context.Context, roleID string) ([]string, error) {
	return s.list(ctx, `SELECT subject_id FROM role_members WHERE role_id = :key`, roleID)
}

func (s *SQLRoleMembershipStore) list(ctx context.Context, q, key string) ([]string, error) {
	out := make([]string, 0)
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"key": key})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	for r.Next() {
		var v string
		if err := r.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
