// Package migrate applies the schema embedded in the binary using golang-migrate.
package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Manager runs the embedded migrations against one database.
type Manager struct {
	m *migrate.Migrate
}

// Status is the schema version recorded by golang-migrate.
type Status struct {
	Version uint
	Dirty   bool
	// Applied is false when no migration ever ran.
	Applied bool
}

// NewManager opens a migration session for dsn (postgres:// or postgresql:// URL).
func NewManager(dsn string, logger *slog.Logger) (*Manager, error) {
	url, err := migrationURL(dsn)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	if logger != nil {
		m.Log = slogAdapter{logger: logger}
	}
	return &Manager{m: m}, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (mg *Manager) Up(ctx context.Context) error {
	return mg.run(ctx, func() error {
		if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		return nil
	})
}

// Down rolls back the most recent migration.
func (mg *Manager) Down(ctx context.Context) error {
	return mg.run(ctx, func() error {
		if err := mg.m.Steps(-1); err != nil {
			return fmt.Errorf("rollback migration: %w", err)
		}
		return nil
	})
}

// Status reports the current schema version.
func (mg *Manager) Status() (Status, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{Version: v, Dirty: dirty, Applied: true}, nil
}

func (mg *Manager) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// run executes fn and asks golang-migrate to stop between migrations when ctx ends.
func (mg *Manager) run(ctx context.Context, fn func() error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case mg.m.GracefulStop <- true:
			default:
			}
		case <-done:
		}
	}()
	return fn()
}

// migrationURL rewrites a PostgreSQL URL to the pgx5 scheme registered by the pgx/v5 driver.
func migrationURL(dsn string) (string, error) {
	dsn = strings.TrimSpace(dsn)
	for _, scheme := range []string{"postgres://", "postgresql://", "pgx5://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme), nil
		}
	}
	return "", fmt.Errorf("migrate: unsupported dsn, expected a postgres:// URL")
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, v ...any) {
	a.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (a slogAdapter) Verbose() bool { return false }
