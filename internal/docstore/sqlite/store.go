// Package sqlite stores collections in a local SQLite file. Changes made by
// other processes sharing the file are picked up by polling PRAGMA
// data_version on a dedicated connection per watch.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/five82/songbook/internal/docstore"

	_ "modernc.org/sqlite"
)

// DefaultPollInterval is how often a watch checks for foreign writes.
const DefaultPollInterval = 2 * time.Second

// Store is a docstore backed by database/sql on the modernc driver.
type Store struct {
	db           *sql.DB
	pollInterval time.Duration
	now          func() time.Time

	// mu serialises write, reload and publish so watchers never observe
	// snapshots out of order.
	mu  sync.Mutex
	hub docstore.Hub
}

var _ docstore.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, pollInterval time.Duration) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db, pollInterval: pollInterval, now: time.Now}, nil
}

// dsn applies the pragmas on every pooled connection. WAL allows one writer
// alongside many readers; busy_timeout absorbs short lock contention.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			key TEXT NOT NULL,
			fields_json TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			PRIMARY KEY(collection, key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at_unixms);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// Close stops every watch and closes the database.
func (s *Store) Close() error {
	s.hub.CloseAll()
	return s.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func load(ctx context.Context, q queryer, collection string) ([]docstore.Document, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT key, fields_json FROM documents WHERE collection = ? ORDER BY created_at_unixms, rowid`,
		collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		fields := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", key, err)
		}
		docs = append(docs, docstore.Document{Key: key, Fields: fields})
	}
	return docs, rows.Err()
}

// publish must be called with s.mu held.
func (s *Store) publish(ctx context.Context, collection string) {
	if !s.hub.Watching(collection) {
		return
	}
	docs, err := load(ctx, s.db, collection)
	if err != nil {
		// The per-watch poller will retry the read on its next tick.
		return
	}
	s.hub.Publish(collection, docs)
}

// Add inserts a document under a fresh key.
func (s *Store) Add(ctx context.Context, collection string, fields map[string]string) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docstore.NewKey()
	ts := s.now().UnixMilli()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(collection, key, fields_json, created_at_unixms, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		collection, key, string(raw), ts, ts); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	s.publish(ctx, collection)
	return key, nil
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, collection, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT fields_json FROM documents WHERE collection = ? AND key = ?`, collection, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	current := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return fmt.Errorf("decode document %s: %w", key, err)
	}
	merged, err := json.Marshal(docstore.MergeFields(current, fields))
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET fields_json = ?, updated_at_unixms = ? WHERE collection = ? AND key = ?`,
		string(merged), s.now().UnixMilli(), collection, key); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	s.publish(ctx, collection)
	return nil
}

// Delete removes a document; a missing key is not an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.publish(ctx, collection)
	}
	return nil
}

// Watch sends the current contents, then a fresh snapshot after every local
// write and whenever another connection commits to the file.
func (s *Store) Watch(ctx context.Context, collection string) (<-chan docstore.Event, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch connection: %w", err)
	}
	version, err := dataVersion(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read data_version: %w", err)
	}

	s.mu.Lock()
	docs, err := load(ctx, s.db, collection)
	if err != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	w := s.hub.Subscribe(collection)
	w.Send(docstore.Event{Documents: docs})
	s.mu.Unlock()

	go s.poll(ctx, conn, collection, w, version)
	return w.C(), nil
}

func (s *Store) poll(ctx context.Context, conn *sql.Conn, collection string, w *docstore.Watcher, version int64) {
	defer func() { _ = conn.Close() }()
	defer s.hub.Unsubscribe(collection, w)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		v, err := dataVersion(ctx, conn)
		if err != nil {
			if ctx.Err() == nil {
				w.Fail(fmt.Errorf("poll %s: %w", collection, err))
			}
			return
		}
		if v == version {
			continue
		}
		version = v

		s.mu.Lock()
		docs, err := load(ctx, s.db, collection)
		s.mu.Unlock()
		if err != nil {
			if ctx.Err() == nil {
				w.Fail(fmt.Errorf("load %s: %w", collection, err))
			}
			return
		}
		if !w.Send(docstore.Event{Documents: docs}) {
			return
		}
	}
}

func dataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v)
	return v, err
}
