// Package sqlite implements core.CheckpointStore on modernc.org/sqlite, a
// cgo free SQLite driver. Each (owner, thread) pair maps to one row holding
// the JSON encoded message log.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/recallmesh/core"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Compile-time assertion
var _ core.CheckpointStore = (*Store)(nil)

// Store is a durable checkpoint store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database at path and runs migrations.
// ":memory:" opens a private in-memory database.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %v", core.ErrStorageUnavailable, err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", core.ErrStorageUnavailable, err)
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: pragma %q: %v", core.ErrStorageUnavailable, p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migration: %v", core.ErrStorageUnavailable, err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			owner_id   TEXT NOT NULL,
			thread_id  TEXT NOT NULL,
			state      TEXT NOT NULL,
			messages   INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (owner_id, thread_id)
		);
	`)

	return err
}

// Load reads the state saved under key.
func (s *Store) Load(ctx context.Context, key core.CheckpointKey) (*core.ConversationState, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	var raw string

	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE owner_id = ? AND thread_id = ?`,
		key.OwnerID, key.ThreadID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load checkpoint %s: %v", core.ErrStorageUnavailable, key, err)
	}

	state := core.NewConversationState()
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return nil, false, fmt.Errorf("decode checkpoint %s: %w", key, err)
	}

	if state.Messages == nil {
		state.Messages = []core.Content{}
	}

	return state, true, nil
}

// Save upserts the state under key in a single statement.
func (s *Store) Save(ctx context.Context, key core.CheckpointKey, state *core.ConversationState) error {
	if err := key.Validate(); err != nil {
		return err
	}

	if state == nil {
		state = core.NewConversationState()
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (owner_id, thread_id, state, messages, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, thread_id) DO UPDATE SET
			state      = excluded.state,
			messages   = excluded.messages,
			updated_at = excluded.updated_at`,
		key.OwnerID, key.ThreadID, string(raw), state.Len(), s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: save checkpoint %s: %v", core.ErrStorageUnavailable, key, err)
	}

	return nil
}

// Threads lists the thread ids stored for ownerID, most recently updated first.
func (s *Store) Threads(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id FROM checkpoints WHERE owner_id = ? ORDER BY updated_at DESC, thread_id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list threads: %v", core.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	threads := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan thread: %v", core.ErrStorageUnavailable, err)
		}
		threads = append(threads, id)
	}

	return threads, rows.Err()
}
