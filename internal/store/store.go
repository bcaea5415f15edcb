package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	clierr "github.com/stakeops/stakectl/internal/errors"
)

// Store is a per-account, per-chain field store: each row holds one
// JSON value under an (account, chain, field) key. Writes are
// serialized across processes with a file lock and within the process
// with a mutex, since flock only guards against other processes.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	mu   sync.Mutex
	now  func() time.Time
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, clierr.Wrap(clierr.CodePersist, "create store directory", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, clierr.Wrap(clierr.CodePersist, "create lock directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodePersist, "open sqlite", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS fields (
			account TEXT NOT NULL,
			chain TEXT NOT NULL,
			field TEXT NOT NULL,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (account, chain, field)
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, clierr.Wrap(clierr.CodePersist, "init store schema", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath), now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts one field value under the store lock.
func (s *Store) Save(account, chain, field string, value any) error {
	if strings.TrimSpace(field) == "" {
		return clierr.New(clierr.CodePersist, "save field: missing field name")
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return clierr.Wrap(clierr.CodePersist, "encode field value", err)
	}

	unlock, err := s.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	return s.upsert(account, chain, field, payload)
}

// Update performs a locked read-modify-write of one field: fn receives
// the current raw value (exists is false when the field was never
// written) and returns the replacement. The lock is held across the
// whole cycle so concurrent updaters cannot lose each other's writes.
func (s *Store) Update(account, chain, field string, fn func(current []byte, exists bool) (any, error)) error {
	if strings.TrimSpace(field) == "" {
		return clierr.New(clierr.CodePersist, "update field: missing field name")
	}

	unlock, err := s.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	var current []byte
	exists := true
	err = s.db.QueryRow(
		"SELECT value FROM fields WHERE account = ? AND chain = ? AND field = ?",
		account, chain, field,
	).Scan(&current)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return clierr.Wrap(clierr.CodePersist, "read field", err)
		}
		current, exists = nil, false
	}

	next, err := fn(current, exists)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		return clierr.Wrap(clierr.CodePersist, "encode field value", err)
	}
	return s.upsert(account, chain, field, payload)
}

// acquire takes the in-process mutex and the cross-process file lock,
// in that order. The returned func releases both.
func (s *Store) acquire() (func(), error) {
	s.mu.Lock()
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		s.mu.Unlock()
		return nil, clierr.Wrap(clierr.CodePersist, "lock store", err)
	}
	if !locked {
		s.mu.Unlock()
		return nil, clierr.New(clierr.CodePersist, "lock store: timeout acquiring lock")
	}
	return func() {
		_ = s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}

func (s *Store) upsert(account, chain, field string, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO fields (account, chain, field, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account, chain, field) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`, account, chain, field, payload, s.now().UTC().Unix())
	if err != nil {
		return clierr.Wrap(clierr.CodePersist, "save field", err)
	}
	return nil
}

// Load decodes one field value into target. ok is false when the field
// was never written.
func (s *Store) Load(account, chain, field string, target any) (bool, error) {
	var payload []byte
	err := s.db.QueryRow(
		"SELECT value FROM fields WHERE account = ? AND chain = ? AND field = ?",
		account, chain, field,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, clierr.Wrap(clierr.CodePersist, "read field", err)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return false, clierr.Wrap(clierr.CodePersist, fmt.Sprintf("decode field %s", field), err)
	}
	return true, nil
}

// LoadFresh is Load plus a staleness check: ok is false when the value
// is older than ttl. Used for cached chain snapshots.
func (s *Store) LoadFresh(account, chain, field string, ttl time.Duration, target any) (bool, error) {
	var (
		payload   []byte
		updatedAt int64
	)
	err := s.db.QueryRow(
		"SELECT value, updated_at FROM fields WHERE account = ? AND chain = ? AND field = ?",
		account, chain, field,
	).Scan(&payload, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, clierr.Wrap(clierr.CodePersist, "read field", err)
	}
	if ttl > 0 && s.now().UTC().Sub(time.Unix(updatedAt, 0)) > ttl {
		return false, nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return false, clierr.Wrap(clierr.CodePersist, fmt.Sprintf("decode field %s", field), err)
	}
	return true, nil
}
