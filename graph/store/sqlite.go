package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store. A single-file database with zero
// setup, designed for development, testing, and single-process workflows
// that need durable checkpoints and sessions.
//
// WAL mode is enabled. The store uses a single pooled connection, so its
// own reads and writes run one at a time.
//
// Example:
//
//	st, err := store.NewSQLiteStore("./dev.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and runs
// migrations. Use ":memory:" for an in-memory database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: err}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: err}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS items (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		);
		CREATE INDEX IF NOT EXISTS idx_items_namespace ON items(namespace);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &Error{Op: "migrate", Err: err}
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, namespace []string, key string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT value, created_at, updated_at
		FROM items
		WHERE namespace = ? AND key = ?
	`, JoinNamespace(namespace), key)

	var valueJSON, createdAt, updatedAt string
	if err := row.Scan(&valueJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &Error{Op: "get", Err: err}
	}
	return buildItem(namespace, key, valueJSON, createdAt, updatedAt)
}

// Put implements Store. Updates preserve created_at and refresh
// updated_at via the upsert clause.
func (s *SQLiteStore) Put(ctx context.Context, namespace []string, key string, value interface{}) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return &Error{Op: "put", Err: err}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (namespace, key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, JoinNamespace(namespace), key, string(valueJSON), now, now)
	if err != nil {
		return &Error{Op: "put", Err: err}
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, namespace []string, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM items WHERE namespace = ? AND key = ?
	`, JoinNamespace(namespace), key); err != nil {
		return &Error{Op: "delete", Err: err}
	}
	return nil
}

// Search implements Store with substring matching over key and value.
func (s *SQLiteStore) Search(ctx context.Context, namespace []string, query string, limit int) ([]Item, error) {
	var rows *sql.Rows
	var err error
	if query == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT key, value, created_at, updated_at
			FROM items
			WHERE namespace = ?
			ORDER BY key
			LIMIT ?
		`, JoinNamespace(namespace), limit)
	} else {
		pattern := "%" + query + "%"
		rows, err = s.db.QueryContext(ctx, `
			SELECT key, value, created_at, updated_at
			FROM items
			WHERE namespace = ? AND (key LIKE ? OR value LIKE ?)
			ORDER BY key
			LIMIT ?
		`, JoinNamespace(namespace), pattern, pattern, limit)
	}
	if err != nil {
		return nil, &Error{Op: "search", Err: err}
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var key, valueJSON, createdAt, updatedAt string
		if err := rows.Scan(&key, &valueJSON, &createdAt, &updatedAt); err != nil {
			return nil, &Error{Op: "search", Err: err}
		}
		item, err := buildItem(namespace, key, valueJSON, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "search", Err: err}
	}
	return items, nil
}

// ListNamespaces implements Store.
func (s *SQLiteStore) ListNamespaces(ctx context.Context, prefix []string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT namespace FROM items ORDER BY namespace
	`)
	if err != nil {
		return nil, &Error{Op: "list_namespaces", Err: err}
	}
	defer rows.Close()

	var namespaces [][]string
	for rows.Next() {
		var flat string
		if err := rows.Scan(&flat); err != nil {
			return nil, &Error{Op: "list_namespaces", Err: err}
		}
		ns := SplitNamespace(flat)
		if HasPrefix(ns, prefix) {
			namespaces = append(namespaces, ns)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Op: "list_namespaces", Err: err}
	}
	return namespaces, nil
}

// buildItem decodes a stored row into an Item.
func buildItem(namespace []string, key, valueJSON, createdAt, updatedAt string) (*Item, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
		return nil, &Error{Op: "decode", Err: fmt.Errorf("item %q: %w", key, err)}
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, &Error{Op: "decode", Err: fmt.Errorf("item %q created_at: %w", key, err)}
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, &Error{Op: "decode", Err: fmt.Errorf("item %q updated_at: %w", key, err)}
	}
	return &Item{
		Namespace: append([]string(nil), namespace...),
		Key:       key,
		Value:     value,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
