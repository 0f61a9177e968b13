package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"
)

// SQLIdPConfigStore keeps the generated IdP configurations, one row per
// IdP key.
type SQLIdPConfigStore struct {
	db *squealx.DB
}

func NewSQLIdPConfigStore(db *squealx.DB) *SQLIdPConfigStore {
	return &SQLIdPConfigStore{db: db}
}

// SaveIdPConfigs replaces the stored set with configs in one transaction.
func (s *SQLIdPConfigStore) SaveIdPConfigs(ctx context.Context, configs map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin idp config save: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM idp_configs`); err != nil {
		return fmt.Errorf("clear idp configs: %w", err)
	}
	now := formatTime(time.Now())
	for _, name := range sortedNames(configs) {
		payload, err := json.Marshal(configs[name])
		if err != nil {
			return fmt.Errorf("encode idp config %s: %w", name, err)
		}
		q := `INSERT INTO idp_configs(name, payload, updated_at) VALUES(?, ?, ?)`
		if _, err := tx.ExecContext(ctx, q, name, string(payload), now); err != nil {
			return fmt.Errorf("insert idp config %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// LoadIdPConfigs returns ErrNoIdPConfigs when nothing was saved yet.
func (s *SQLIdPConfigStore) LoadIdPConfigs(ctx context.Context) (map[string]any, error) {
	r, err := s.db.QueryContext(ctx, `SELECT name, payload FROM idp_configs`)
	if err != nil {
		return nil, fmt.Errorf("query idp configs: %w", err)
	}
	defer r.Close()
	out := make(map[string]any)
	for r.Next() {
		var name, payload string
		if err := r.Scan(&name, &payload); err != nil {
			return nil, err
		}
		var cfg any
		if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
			return nil, fmt.Errorf("decode idp config %s: %w", name, err)
		}
		out[name] = cfg
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoIdPConfigs
	}
	return out, nil
}
