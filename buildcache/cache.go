// Package buildcache stores compiled artifacts in SQLite, keyed by a
// digest of the source they were compiled from.
package buildcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/oxido/pkg/bytecode"
)

var log = commonlog.GetLogger("oxido.buildcache")

// Cache is an artifact cache backed by a SQLite file.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Entry describes one cached artifact.
type Entry struct {
	Sum     string
	File    string
	BuildID string
	Created time.Time
	Size    int
}

// Open opens or creates the cache at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent builds
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		sum TEXT PRIMARY KEY,
		file TEXT NOT NULL,
		build_id TEXT NOT NULL,
		created INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the database file of the cache.
func (c *Cache) Path() string {
	return c.path
}

// Sum returns the cache key for source compiled as file. The artifact
// format version is part of the key, so a format change misses.
func Sum(file, source string) string {
	h := sha256.New()
	var v [2]byte
	binary.BigEndian.PutUint16(v[:], bytecode.BytecodeVersion)
	h.Write(v[:])
	h.Write([]byte(file))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the artifact stored under sum; ok is false on a miss.
// A stored entry that no longer decodes is dropped and reported as a miss.
func (c *Cache) Get(sum string) (art *bytecode.Artifact, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	err = c.db.QueryRow("SELECT data FROM artifacts WHERE sum = ?", sum).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying artifact: %w", err)
	}

	art, err = bytecode.Deserialize(data)
	if err != nil {
		log.Warningf("dropping undecodable cache entry %s: %s", sum, err)
		if _, err := c.db.Exec("DELETE FROM artifacts WHERE sum = ?", sum); err != nil {
			return nil, false, fmt.Errorf("deleting artifact: %w", err)
		}
		return nil, false, nil
	}
	log.Debugf("cache hit %s", sum)
	return art, true, nil
}

// Put stores art under sum and returns the build ID assigned to it.
func (c *Cache) Put(sum string, art *bytecode.Artifact) (string, error) {
	data, err := art.Serialize()
	if err != nil {
		return "", fmt.Errorf("serializing artifact: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New().String()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO artifacts (sum, file, build_id, created, data) VALUES (?, ?, ?, ?, ?)",
		sum, art.File, id, time.Now().Unix(), data,
	)
	if err != nil {
		return "", fmt.Errorf("saving artifact: %w", err)
	}
	log.Debugf("cached %s as %s (build %s)", art.File, sum, id)
	return id, nil
}

// Entries lists the cache contents, newest first.
func (c *Cache) Entries() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query("SELECT sum, file, build_id, created, length(data) FROM artifacts ORDER BY created DESC, sum")
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.Sum, &e.File, &e.BuildID, &created, &e.Size); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		e.Created = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM artifacts"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}
