package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"folio/internal/apperr"
	"folio/internal/logging"
	"folio/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the catalog. It is safe for concurrent use.
type Database struct {
	db     *sql.DB
	dbPath string
	// mu serializes writers; SQLite allows a single writer at a time and
	// taking the lock here avoids busy retries inside the driver.
	mu  sync.RWMutex
	now func() time.Time
}

// New opens (creating if needed) the catalog at dbPath. The parent directory
// must exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=1", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS folders (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	parent_id TEXT REFERENCES folders(id),
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_folders_parent ON folders(parent_id);
CREATE INDEX IF NOT EXISTS idx_folders_deleted ON folders(deleted_at);

CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	thumbnail_path TEXT NOT NULL,
	original_name TEXT NOT NULL,
	source_path TEXT NOT NULL DEFAULT '',
	folder_id TEXT REFERENCES folders(id),
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	size INTEGER NOT NULL DEFAULT 0,
	rotation INTEGER NOT NULL DEFAULT 0 CHECK (rotation IN (0, 90, 180, 270)),
	crop_data TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	deleted_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_images_folder ON images(folder_id);
CREATE INDEX IF NOT EXISTS idx_images_deleted ON images(deleted_at);
CREATE INDEX IF NOT EXISTS idx_images_created ON images(created_at);

-- Ids purged from this catalog. Edits addressed to them are rejected
-- rather than reported as unknown.
CREATE TABLE IF NOT EXISTS purged_images (
	id TEXT PRIMARY KEY,
	purged_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS image_tags (
	image_id TEXT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (image_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_image_tags_tag ON image_tags(tag_id);

CREATE TABLE IF NOT EXISTS notes (
	image_id TEXT PRIMARY KEY REFERENCES images(id) ON DELETE CASCADE,
	markdown TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	_, err := d.db.ExecContext(ctx, schema)
	recordQuery("initialize_schema", start, err)
	if err != nil {
		return err
	}
	return d.runMigrations(ctx)
}

// runMigrations upgrades catalogs created by earlier releases.
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: mirroring became part of the persisted edit state.
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('images')
		WHERE name='flip_h'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for flip_h column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding flip_h column to images table")
		if _, err := d.db.ExecContext(ctx, `ALTER TABLE images ADD COLUMN flip_h INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add flip_h column: %w", err)
		}
		logging.Info("Migration complete: flip_h column added")
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// SetClock replaces the time source used for every timestamp the catalog
// writes. Intended for tests.
func (d *Database) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// BeginBatch starts a write transaction. The caller must hand it to EndBatch.
// The catalog write lock is held until EndBatch returns.
func (d *Database) BeginBatch(ctx context.Context) (*sql.Tx, error) {
	d.mu.Lock()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	return tx, nil
}

// EndBatch commits tx, or rolls it back when err is non-nil, and releases
// the write lock. start is the time BeginBatch was called.
func (d *Database) EndBatch(tx *sql.Tx, start time.Time, err error) error {
	defer d.mu.Unlock()

	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// WithTx runs fn inside a write transaction. fn's error rolls the
// transaction back and is returned unchanged.
func (d *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	tx, err := d.BeginBatch(ctx)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	if err := d.EndBatch(tx, start, fn(tx)); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		return storageErr("transaction", err)
	}
	return nil
}

// UpdateDBMetrics refreshes the connection gauge.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	metrics.DBQueryTotal.WithLabelValues(operation, metrics.Status(err)).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// observeQuery returns a function that records the query when called.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) { recordQuery(operation, start, err) }
}

func storageErr(op string, err error) error {
	return apperr.Wrap(apperr.StorageFailure, op, err, "catalog")
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only (mode %v), writes will fail", filepath.Base(path), info.Mode())
			if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix permissions on %s: %v", path, chmodErr)
			} else {
				logging.Info("Fixed permissions on %s", path)
			}
		}
	}

	return nil
}

func (d *Database) timestamp() int64 {
	return d.now().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n)
}

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}
