package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	tugraz "github.com/tu-graz-library/invenio-config-tugraz"
)

var ErrDuplicateAccount = errors.New("account already exists")

// SQLAccountStore persists accounts in SQL (squealx).
type SQLAccountStore struct {
	db *squealx.DB
}

func NewSQLAccountStore(db *squealx.DB) *SQLAccountStore {
	return &SQLAccountStore{db: db}
}

func (s *SQLAccountStore) CreateAccount(ctx context.Context, a *tugraz.Account) error {
	if a.ID == "" {
		return errors.New("account id is required")
	}
	if normalizeEmail(a.Email) == "" {
		return tugraz.ErrEmailRequired
	}
	if _, err := s.GetAccount(ctx, a.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateAccount, a.ID)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	q := `INSERT INTO accounts(id, email, active, superuser, created_at, confirmed_at) VALUES(:id, :email, :active, :superuser, :created_at, :confirmed_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":           a.ID,
		"email":        normalizeEmail(a.Email),
		"active":       boolToInt(a.Active),
		"superuser":    boolToInt(a.SuperUser),
		"created_at":   formatTime(a.CreatedAt),
		"confirmed_at": sqlNullTimeOrNil(a.ConfirmedAt),
	})
	if err != nil {
		return fmt.Errorf("insert account %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLAccountStore) UpdateAccount(ctx context.Context, a *tugraz.Account) error {
	q := `UPDATE accounts SET email=:email, active=:active, superuser=:superuser, confirmed_at=:confirmed_at WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":           a.ID,
		"email":        normalizeEmail(a.Email),
		"active":       boolToInt(a.Active),
		"superuser":    boolToInt(a.SuperUser),
		"confirmed_at": sqlNullTimeOrNil(a.ConfirmedAt),
	})
	if err != nil {
		return fmt.Errorf("update account %s: %w", a.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", tugraz.ErrAccountNotFound, a.ID)
	}
	return nil
}

func (s *SQLAccountStore) DeleteAccount(ctx context.Context, id string) error {
	q := `DELETE FROM accounts WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

func (s *SQLAccountStore) GetAccount(ctx context.Context, id string) (*tugraz.Account, error) {
	return s.getOne(ctx, `SELECT id, email, active, superuser, created_at, confirmed_at FROM accounts WHERE id = :key`, id)
}

// GetAccountByEmail matches the address case-insensitively.
func (s *SQLAccountStore) GetAccountByEmail(ctx context.Context, email string) (*tugraz.Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, tugraz.ErrEmailRequired
	}
	return s.getOne(ctx, `SELECT id, email, active, superuser, created_at, confirmed_at FROM accounts WHERE email = :key`, email)
}

func (s *SQLAccountStore) getOne(ctx context.Context, q, key string) (*tugraz.Account, error) {
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"key": key})
	if err != nil {
		return nil, fmt.Errorf("query account %s: %w", key, err)
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: %s", tugraz.ErrAccountNotFound, key)
	}
	var (
		a                     tugraz.Account
		active, superuser     int
		createdRaw, confirmed any
	)
	if err := r.Scan(&a.ID, &a.Email, &active, &superuser, &createdRaw, &confirmed); err != nil {
		return nil, fmt.Errorf("scan account %s: %w", key, err)
	}
	a.Active = active != 0
	a.SuperUser = superuser != 0
	a.CreatedAt = scanTime(createdRaw)
	a.ConfirmedAt = scanTime(confirmed)
	return &a, nil
}
