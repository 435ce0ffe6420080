// Package postgres stores collections in a Postgres table. A trigger announces
// every change with pg_notify, and each watch holds a pooled connection that
// LISTENs for it, so writers in other processes are seen without polling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/five82/songbook/internal/docstore"
)

// Channel is the notification channel. The payload is the collection name.
const Channel = "songbook_documents"

const defaultDSN = "postgres://localhost/songbook?sslmode=disable"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS songbook_documents (
		seq BIGINT GENERATED ALWAYS AS IDENTITY,
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		fields JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, key)
	)`,
	`CREATE OR REPLACE FUNCTION songbook_documents_notify() RETURNS trigger AS $$
	BEGIN
		IF TG_OP = 'DELETE' THEN
			PERFORM pg_notify('` + Channel + `', OLD.collection);
		ELSE
			PERFORM pg_notify('` + Channel + `', NEW.collection);
		END IF;
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS songbook_documents_changed ON songbook_documents`,
	`CREATE TRIGGER songbook_documents_changed
		AFTER INSERT OR UPDATE OR DELETE ON songbook_documents
		FOR EACH ROW EXECUTE FUNCTION songbook_documents_notify()`,
}

// Store is a docstore backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	hub  docstore.Hub
}

var _ docstore.Store = (*Store)(nil)

// Open connects to dsn (falling back to a local default), verifies the
// connection, and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("execute ddl: %w", err)
		}
	}
	return &Store{pool: pool}, nil
}

// Close ends every watch and closes the pool.
func (s *Store) Close() error {
	s.hub.CloseAll()
	s.pool.Close()
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func load(ctx context.Context, q querier, collection string) ([]docstore.Document, error) {
	rows, err := q.Query(ctx,
		`SELECT key, fields FROM songbook_documents WHERE collection = $1 ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (docstore.Document, error) {
		var d docstore.Document
		err := row.Scan(&d.Key, &d.Fields)
		if d.Fields == nil {
			d.Fields = map[string]string{}
		}
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	return docs, nil
}

// Add inserts a document under a fresh key.
func (s *Store) Add(ctx context.Context, collection string, fields map[string]string) (string, error) {
	key := docstore.NewKey()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO songbook_documents (collection, key, fields) VALUES ($1, $2, $3)`,
		collection, key, fields); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return key, nil
}

// Update merges fields into the stored JSON object.
func (s *Store) Update(ctx context.Context, collection, key string, fields map[string]string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE songbook_documents SET fields = fields || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND key = $2`,
		collection, key, fields)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Delete removes a document; a missing key is not an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM songbook_documents WHERE collection = $1 AND key = $2`, collection, key); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Watch LISTENs before reading the initial snapshot so no change between the
// two is missed.
func (s *Store) Watch(ctx context.Context, collection string) (<-chan docstore.Event, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}
	docs, err := load(ctx, conn, collection)
	if err != nil {
		release(conn)
		return nil, err
	}

	w := s.hub.Subscribe(collection)
	w.Send(docstore.Event{Documents: docs})
	go s.listen(ctx, conn, collection, w)
	return w.C(), nil
}

func (s *Store) listen(ctx context.Context, conn *pgxpool.Conn, collection string, w *docstore.Watcher) {
	defer release(conn)
	defer s.hub.Unsubscribe(collection, w)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				w.Fail(fmt.Errorf("wait for notification: %w", err))
			}
			return
		}
		if n.Payload != collection {
			continue
		}
		docs, err := load(ctx, conn, collection)
		if err != nil {
			if ctx.Err() == nil {
				w.Fail(err)
			}
			return
		}
		if !w.Send(docstore.Event{Documents: docs}) {
			return
		}
	}
}

// release returns a listening connection to the pool without its
// subscriptions. A connection broken by cancellation is discarded by the pool.
func release(conn *pgxpool.Conn) {
	if !conn.Conn().IsClosed() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, _ = conn.Exec(ctx, "UNLISTEN *")
		cancel()
	}
	conn.Release()
}
