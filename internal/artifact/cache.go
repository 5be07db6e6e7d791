package artifact

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added created_at index
const currentSchemaVersion = 1

// Cache is the on-disk artifact cache: key-hash-named files in one
// directory plus a SQLite index.
//
// Get/Put are safe to call from one compilation run; multiple concurrent
// compilations writing the same key resolve as last-write-wins, which is
// sound because content is reproducible per key.
type Cache struct {
	dir    string
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens an artifact cache rooted at dir. The directory
// and the SQLite index are created if missing; pragmas and migrations are
// applied automatically. Idempotent.
func Open(dir string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to cache index: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Cache{dir: dir, db: db, logger: logger}, nil
}

// Close closes the index database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Get returns the cached artifact for the key, or ok=false on a miss.
// A corrupt entry (index row without a readable artifact file, or a size
// mismatch) is logged, evicted, and reported as a miss so the caller
// recompiles instead of failing.
func (c *Cache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	hash, err := key.Hash()
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var artifactBytes int64
	row := c.db.QueryRowContext(ctx,
		`SELECT artifact_bytes FROM artifacts WHERE key_hash = ?`, hash)
	if err := row.Scan(&artifactBytes); err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	blob, err := os.ReadFile(c.artifactPath(hash))
	if err != nil || int64(len(blob)) != artifactBytes {
		// Stored artifact unreadable or mismatched: treat as a miss.
		c.logger.Warn("artifact cache corruption, evicting entry",
			"key_hash", hash, "err", err,
			"want_bytes", artifactBytes, "got_bytes", len(blob))
		if err := c.evict(ctx, hash); err != nil {
			return nil, false, fmt.Errorf("cache evict: %w", err)
		}
		return nil, false, nil
	}

	return blob, true, nil
}

// Put stores the artifact under the key. Existing entries for the same
// key are overwritten (last write wins).
func (c *Cache) Put(ctx context.Context, key Key, blob []byte) error {
	hash, err := key.Hash()
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	doc, err := key.fingerprintDoc()
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	if err := writeFileAtomic(c.fingerprintPath(hash), doc); err != nil {
		return fmt.Errorf("cache put fingerprint: %w", err)
	}
	if err := writeFileAtomic(c.artifactPath(hash), blob); err != nil {
		return fmt.Errorf("cache put artifact: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO artifacts (key_hash, source_bytes, artifact_bytes)
		VALUES (?, ?, ?)
		ON CONFLICT(key_hash) DO UPDATE SET
			source_bytes = excluded.source_bytes,
			artifact_bytes = excluded.artifact_bytes
	`, hash, int64(len(key.Source)), int64(len(blob)))
	if err != nil {
		return fmt.Errorf("cache put index: %w", err)
	}

	c.logger.Debug("artifact cached", "key_hash", hash, "bytes", len(blob))
	return nil
}

// Entry is one index row, exposed for the CLI cache surface.
type Entry struct {
	KeyHash       string `json:"key_hash"`
	SourceBytes   int64  `json:"source_bytes"`
	ArtifactBytes int64  `json:"artifact_bytes"`
	CreatedAt     string `json:"created_at"`
}

// Entries lists every index row, newest first.
func (c *Cache) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT key_hash, source_bytes, artifact_bytes, created_at
		FROM artifacts ORDER BY created_at DESC, key_hash
	`)
	if err != nil {
		return nil, fmt.Errorf("cache entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.KeyHash, &e.SourceBytes, &e.ArtifactBytes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("cache entries: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove evicts one entry by key hash. Missing entries are not an error.
func (c *Cache) Remove(ctx context.Context, keyHash string) error {
	return c.evict(ctx, keyHash)
}

// evict removes the index row and both on-disk files for a key hash.
func (c *Cache) evict(ctx context.Context, hash string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM artifacts WHERE key_hash = ?`, hash); err != nil {
		return err
	}
	// File removal is best-effort; a vanished file is the desired state.
	os.Remove(c.artifactPath(hash))
	os.Remove(c.fingerprintPath(hash))
	return nil
}

func (c *Cache) artifactPath(hash string) string {
	return filepath.Join(c.dir, hash+".bin")
}

func (c *Cache) fingerprintPath(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}

// writeFileAtomic writes via a temp file and rename so a concurrent
// reader never observes a partial artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// v1 adds the created_at index; CREATE INDEX IF NOT EXISTS in the
	// schema covers fresh and existing databases alike.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}
