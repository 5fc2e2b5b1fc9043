package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/itsneelabh/storefront/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements core.Memory on a local SQLite file, so the user id
// and carts survive between CLI runs.
type SQLiteStore struct {
	db     *sqlx.DB
	path   string
	logger core.Logger
	now    func() time.Time
}

type kvRow struct {
	Key       string        `db:"name"`
	Value     string        `db:"value"`
	ExpiresAt sql.NullInt64 `db:"expires_at"`
	UpdatedAt int64         `db:"updated_at"`
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, logger core.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = "file::memory:?_busy_timeout=5000"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %v: %w", path, err, core.ErrStorageUnavailable)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" stable.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %v: %w", path, err, core.ErrStorageUnavailable)
	}

	if err := migrateUp(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("SQLite storage opened", map[string]interface{}{
		"path": path,
	})

	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
		now:    time.Now,
	}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	defer src.Close()

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	// m.Close would close db through the driver, so it is not called here.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Get returns the value for key, or "" when it is missing or expired.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var row kvRow
	err := s.db.GetContext(ctx, &row, `SELECT name, value, expires_at, updated_at FROM kv WHERE name = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite get %s: %v: %w", key, err, core.ErrStorageUnavailable)
	}

	if row.ExpiresAt.Valid && s.now().UnixMilli() >= row.ExpiresAt.Int64 {
		s.logger.Debug("Storage entry expired", map[string]interface{}{
			"operation": "storage_get",
			"key":       key,
		})
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE name = ?`, key); err != nil {
			s.logger.Warn("Failed to delete expired entry", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return "", nil
	}

	return row.Value, nil
}

// Set upserts key; a zero ttl never expires.
func (s *SQLiteStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	now := s.now()
	row := kvRow{
		Key:       key,
		Value:     value,
		UpdatedAt: now.UnixMilli(),
	}
	if ttl > 0 {
		row.ExpiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO kv (name, value, expires_at, updated_at)
		VALUES (:name, :value, :expires_at, :updated_at)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("sqlite set %s: %v: %w", key, err, core.ErrStorageUnavailable)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE name = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete %s: %v: %w", key, err, core.ErrStorageUnavailable)
	}
	return nil
}

// Exists reports whether a live entry exists for key.
func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(1) FROM kv WHERE name = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("sqlite exists %s: %v: %w", key, err, core.ErrStorageUnavailable)
	}
	return n > 0, nil
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %v: %w", err, core.ErrStorageUnavailable)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.logger.Debug("Closing SQLite storage", map[string]interface{}{
		"path": s.path,
	})
	return s.db.Close()
}
