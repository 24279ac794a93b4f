package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const migrationSuffix = ".up.sql"

// transientMarkers are fragments of driver messages that mean the server was
// unreachable rather than that the statement was wrong.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"EOF",
	"server closed the connection unexpectedly",
	"could not connect",
}

// isConnectionError reports whether err is a transient connection problem.
// Postgres errors (syntax, constraints) are never transient.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return true
	}
	msg := err.Error()
	return slices.ContainsFunc(transientMarkers, func(m string) bool {
		return strings.Contains(msg, m)
	})
}

// RunMigrations applies the *.up.sql files at the root of migrations in
// lexical order and records each version in schema_migrations. Every file
// runs in its own transaction. Connection errors are retried; SQL errors are
// not.
func RunMigrations(ctx context.Context, db TxStarter, migrations fs.FS, logger *slog.Logger) error {
	return retry(ctx, logger, "run migrations", isConnectionError, func() error {
		return migrate(ctx, db, migrations, logger)
	})
}

func migrate(ctx context.Context, db TxStarter, migrations fs.FS, logger *slog.Logger) error {
	const ledger = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := db.Exec(ctx, ledger); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	versions, err := upMigrations(migrations)
	if err != nil {
		return err
	}

	applied := 0
	for _, version := range versions {
		var done bool
		if err := db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
		).Scan(&done); err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if done {
			continue
		}

		script, err := fs.ReadFile(migrations, version)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}
		err = WithTx(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(script)); err != nil {
				return fmt.Errorf("execute migration %s: %w", version, err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
				return fmt.Errorf("record migration %s: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		applied++
		logger.Info("migration applied", slog.String("version", version))
	}

	logger.Debug("migrations up to date",
		slog.Int("known", len(versions)),
		slog.Int("applied", applied),
	)
	return nil
}

// upMigrations lists the forward migration files at the root of fsys, sorted.
func upMigrations(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var versions []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), migrationSuffix) {
			versions = append(versions, e.Name())
		}
	}
	slices.Sort(versions)
	return versions, nil
}
