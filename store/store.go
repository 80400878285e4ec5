// Package store caches compiled programs in SQLite, keyed by a hash of the
// source text and optimization level.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"

	"github.com/chazu/mlbf/pkg/bytecode"
	"github.com/chazu/mlbf/pkg/image"
)

var log = commonlog.GetLogger("mlbf.store")

// ErrNotFound indicates no cached program exists for a key.
var ErrNotFound = errors.New("program not found")

// Store is a SQLite-backed compile cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Stats summarizes cache contents.
type Stats struct {
	Entries int
	Hits    int
}

// Key returns the cache key for src compiled at level. The image format
// version is part of the key so a format change never serves stale bytes.
func Key(src string, level int) string {
	prefix := strconv.Itoa(int(image.Version)) + ":" + strconv.Itoa(level) + ":"
	sum := xxh3.HashString128(prefix + src)
	return fmt.Sprintf("%016x%016x", sum.Hi, sum.Lo)
}

// DefaultPath returns the cache database location under the user cache dir.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("getting cache dir: %w", err)
	}
	return filepath.Join(dir, "mlbf", "cache.db"), nil
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		key TEXT PRIMARY KEY,
		level INTEGER NOT NULL,
		image BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		hits INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the image bytes stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow("SELECT image FROM programs WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debugf("miss %s", key)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}

	if _, err := s.db.Exec("UPDATE programs SET hits = hits + 1 WHERE key = ?", key); err != nil {
		return nil, fmt.Errorf("counting hit: %w", err)
	}
	log.Debugf("hit %s", key)
	return data, nil
}

// Put stores image bytes under key, replacing any previous entry.
func (s *Store) Put(key string, level int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO programs (key, level, image, created_at) VALUES (?, ?, ?, ?)",
		key, level, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving program: %w", err)
	}
	return nil
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM programs WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting program: %w", err)
	}
	return nil
}

// Stats returns the number of entries and the total hit count.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	err := s.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM programs").Scan(&st.Entries, &st.Hits)
	if err != nil {
		return Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return st, nil
}

// LoadProgram decodes the program cached under key.
func (s *Store) LoadProgram(key string) (*bytecode.Program, *image.Image, error) {
	data, err := s.Get(key)
	if err != nil {
		return nil, nil, err
	}
	return image.Decode(data)
}

// SaveProgram encodes p and caches it under key.
func (s *Store) SaveProgram(key string, p *bytecode.Program, meta image.Meta) error {
	data, err := image.Encode(p, meta)
	if err != nil {
		return err
	}
	return s.Put(key, meta.Level, data)
}
