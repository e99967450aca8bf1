package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"clickup_collector/internal/domain"
)

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// Get returns nil without error when the user is unknown.
func (s *UserStore) Get(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	query := `SELECT user_id, username, email, role, is_active FROM users WHERE user_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) Upsert(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (user_id, username, email, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Role,
		user.IsActive,
	)
	return err
}

// EnsureExist inserts an inactive placeholder for every id that has no user row,
// so assignments can reference users the workspace listing did not return.
func (s *UserStore) EnsureExist(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		INSERT INTO users (user_id, username, is_active)
		SELECT id, 'UnknownUser_' || id, FALSE FROM unnest($1::bigint[]) AS id
		ON CONFLICT (user_id) DO NOTHING`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, pq.Array(ids))
	return err
}
