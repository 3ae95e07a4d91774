package sim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sekia-ai/edbridge/internal/sim/migrations"
)

// Store errors.
var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrAssetExists   = errors.New("asset already exists")
)

// Record is one package row in the store.
type Record struct {
	Path      string
	Class     string
	Data      []byte
	UpdatedAt time.Time
}

// Store persists editor packages (levels, meshes, blueprints) in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens the package store at path and applies migrations.
// An empty path or ":memory:" keeps the store in memory.
func OpenStore(path string) (*Store, error) {
	dsn := ":memory:"
	if p := strings.TrimSpace(path); p != "" && p != ":memory:" {
		dsn = filepath.Clean(p) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NormalizeAssetPath strips the object name from an object path, so
// "/Game/Maps/Foo.Foo" and "/Game/Maps/Foo" address the same package.
func NormalizeAssetPath(path string) string {
	path = strings.TrimSpace(path)
	slash := strings.LastIndex(path, "/")
	if dot := strings.LastIndex(path, "."); dot > slash {
		path = path[:dot]
	}
	return path
}

// Exists reports whether a package is stored at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets WHERE path = ?`, NormalizeAssetPath(path)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query asset: %w", err)
	}
	return n > 0, nil
}

// Get loads one package.
func (s *Store) Get(ctx context.Context, path string) (Record, error) {
	path = NormalizeAssetPath(path)
	var (
		rec     Record
		updated int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT path, class, data, updated_at
FROM assets
WHERE path = ?
`, path).Scan(&rec.Path, &rec.Class, &rec.Data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get asset %s: %w", path, err)
	}
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return rec, nil
}

// Put inserts or replaces a package.
func (s *Store) Put(ctx context.Context, rec Record) error {
	rec.Path = NormalizeAssetPath(rec.Path)
	if rec.Path == "" || rec.Class == "" {
		return fmt.Errorf("asset path and class are required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO assets (path, class, data, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
	class = excluded.class,
	data = excluded.data,
	updated_at = excluded.updated_at
`, rec.Path, rec.Class, rec.Data, rec.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put asset %s: %w", rec.Path, err)
	}
	return nil
}

// Duplicate copies src to dst in one transaction. It fails with
// ErrAssetExists when dst is taken and ErrAssetNotFound when src is missing.
func (s *Store) Duplicate(ctx context.Context, src, dst string) error {
	src, dst = NormalizeAssetPath(src), NormalizeAssetPath(dst)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin duplicate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets WHERE path = ?`, dst).Scan(&n); err != nil {
		return fmt.Errorf("query destination: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", ErrAssetExists, dst)
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO assets (path, class, data, updated_at)
SELECT ?, class, data, ?
FROM assets
WHERE path = ?
`, dst, time.Now().UTC().UnixMilli(), src)
	if err != nil {
		return fmt.Errorf("copy asset: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, src)
	}
	return tx.Commit()
}

// List returns packages whose path starts with prefix, sorted by path.
func (s *Store) List(ctx context.Context, prefix string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT path, class, data, updated_at
FROM assets
WHERE substr(path, 1, ?) = ?
ORDER BY path
`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			updated int64
		)
		if err := rows.Scan(&rec.Path, &rec.Class, &rec.Data, &updated); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		rec.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// seed inserts recs that are not stored yet.
func (s *Store) seed(ctx context.Context, recs []Record) error {
	now := time.Now().UTC().UnixMilli()
	for _, rec := range recs {
		_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO assets (path, class, data, updated_at)
VALUES (?, ?, ?, ?)
`, rec.Path, rec.Class, rec.Data, now)
		if err != nil {
			return fmt.Errorf("seed %s: %w", rec.Path, err)
		}
	}
	return nil
}

const migrationTable = "schema_migrations"

// applyMigrations runs each embedded .sql file at most once, in name order.
func applyMigrations(db *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var n int
		if err := db.QueryRow(`SELECT COUNT(1) FROM `+migrationTable+` WHERE name = ?`, file).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if n > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upMigration(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upMigration returns the SQL between the Up and Down markers.
func upMigration(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	if i := strings.Index(content, up); i >= 0 {
		content = content[i+len(up):]
	}
	if i := strings.Index(content, down); i >= 0 {
		content = content[:i]
	}
	return content
}
