package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	tugraz "github.com/tu-graz-library/invenio-config-tugraz"
)

// OpenSQLite opens the account database and sizes its pool from the
// engine options. An in-memory database is limited to one connection since
// every connection would see its own empty database.
func OpenSQLite(ctx context.Context, dsn string, pool tugraz.DBEngineOptions) (*squealx.DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	} else if pool.PoolSize > 0 {
		sqlDB.SetMaxOpenConns(pool.PoolSize + pool.MaxOverflow)
		sqlDB.SetMaxIdleConns(pool.PoolSize)
	}
	if pool.PoolRecycle > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(pool.PoolRecycle) * time.Second)
	}
	if pool.PoolPrePing {
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
	}
	return squealx.NewDb(sqlDB, "sqlite", "tugraz"), nil
}
