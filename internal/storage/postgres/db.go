package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"clickup_collector/internal/domain"
)

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to database: %w", domain.ErrPersistence, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", domain.ErrPersistence, err)
	}
	return db, nil
}

// Migrate applies every *.up.sql file of migrations in name order, in one transaction.
// The scripts are written to be re-runnable.
func Migrate(ctx context.Context, db *sqlx.DB, migrations fs.FS) ([]string, error) {
	names, err := fs.Glob(migrations, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	tm := NewTransactionManager(db)
	err = tm.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, db)
		for _, name := range names {
			script, err := fs.ReadFile(migrations, name)
			if err != nil {
				return fmt.Errorf("read migration %s: %w", name, err)
			}
			if strings.TrimSpace(string(script)) == "" {
				continue
			}
			if _, err := exec.ExecContext(ctx, string(script)); err != nil {
				return fmt.Errorf("%w: apply migration %s: %w", domain.ErrPersistence, name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
