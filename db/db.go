// Package db provides database connectivity and migration functionality for
// the chatbot service. It centralizes the pgx connection pool, the small
// query interface the services are written against, and the golang-migrate
// runner that keeps the two-table schema current.
package db

import (
	"context"
	"time"

	"github.com/golang-migrate/migrate/v4"
	// File source driver for golang-migrate, imported for its side effect of
	// registering the "file://" scheme.
	_ "github.com/golang-migrate/migrate/v4/source/file"
	// golang-migrate's postgres database driver drives database/sql with
	// lib/pq under the hood, hence the blank import.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/user/chatbot-go/apperror"
	"github.com/user/chatbot-go/config"
)

// Querier is the minimal query surface the services depend on. It is
// implemented by *pgxpool.Pool in production and by pgxmock's pool in tests.
type Querier interface {
	// Exec executes a SQL command and returns the command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// Query executes a SELECT and returns a rows iterator.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool establishes a connection pool against the configured store.
// The pool is verified with a ping before being handed to the application,
// so a bad connection string fails at boot rather than on the first request.
func NewPool(cfg *config.DBConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, apperror.NewDatabaseError("error parsing DATABASE_URL", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.MaxConnLifetime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperror.NewDatabaseError("error creating connection pool", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, apperror.NewDatabaseError("error connecting to the database", err)
	}

	return pool, nil
}

// RunMigrations applies any pending migrations from the given directory.
// golang-migrate opens its own database/sql connection from the URL; the pgx
// pool is not involved here.
func RunMigrations(databaseURL, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return apperror.NewMigrationError("failed to create migrator", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).
				Msg("closing migrator reported errors")
		}
	}()

	// ErrNoChange simply means the schema is already current.
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return apperror.NewMigrationError("failed to run migrations", err)
	}

	return nil
}
