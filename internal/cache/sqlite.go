package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hession/webrag/internal/logger"
)

// SQLiteStore SQLite content cache implementation
type SQLiteStore struct {
	db   *sql.DB
	opts Options
	log  *logger.Logger
}

// NewSQLiteStore creates a new SQLite-backed cache
func NewSQLiteStore(dbPath string, opts Options, log *logger.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// Fetch workers share one connection so writes never contend
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, opts: opts, log: log.With("cache")}

	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache tables: %w", err)
	}

	return store, nil
}

// initTables initializes database tables
func (s *SQLiteStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS content_cache (
			key TEXT PRIMARY KEY,
			body BLOB NOT NULL,
			stored_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_cache_stored_at ON content_cache(stored_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", query, err)
		}
	}
	return nil
}

// Get returns cached text. Unreadable rows are deleted and reported as a miss.
func (s *SQLiteStore) Get(key Key) (string, bool, error) {
	var body []byte
	err := s.db.QueryRow("SELECT body FROM content_cache WHERE key = ?", string(key)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry, err := Decode(body)
	if err != nil {
		s.log.Warn("Dropping unreadable cache entry %s: %v", key, err)
		if _, delErr := s.db.Exec("DELETE FROM content_cache WHERE key = ?", string(key)); delErr != nil {
			s.log.Warn("Failed to delete cache entry %s: %v", key, delErr)
		}
		return "", false, nil
	}
	if s.opts.expired(entry.StoredAt) {
		return "", false, nil
	}
	return entry.Text, true, nil
}

// Put stores text under key, replacing only an expired entry
func (s *SQLiteStore) Put(key Key, text string) error {
	now := s.opts.now()
	body, err := Encode(Entry{Text: text, StoredAt: now})
	if err != nil {
		return err
	}

	cutoff := int64(math.MinInt64)
	if s.opts.MaxAge > 0 {
		cutoff = now.Add(-s.opts.MaxAge).Unix()
	}

	_, err = s.db.Exec(
		`INSERT INTO content_cache (key, body, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, stored_at = excluded.stored_at
		 WHERE content_cache.stored_at < ?`,
		string(key), body, now.Unix(), cutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Len returns the number of stored entries
func (s *SQLiteStore) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM content_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Clear removes every entry
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM content_cache"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
