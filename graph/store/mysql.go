package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL-backed Store for multi-process deployments that
// share one durable namespace space.
//
// The DSN must enable parseTime, e.g.
//
//	user:pass@tcp(localhost:3306)/agentgraph?parseTime=true
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects to MySQL with the given DSN, verifies the
// connection, and runs migrations.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Err: err}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS items (
			namespace  VARCHAR(512) NOT NULL,
			item_key   VARCHAR(255) NOT NULL,
			value      JSON NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			PRIMARY KEY (namespace, item_key),
			INDEX idx_items_namespace (namespace)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &Error{Op: "migrate", Err: err}
	}

	return &MySQLStore{db: db}, nil
}

// Close releases the connection pool.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Get implements Store.
func (s *MySQLStore) Get(ctx context.Context, namespace []string, key string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT value, created_at, updated_at
		FROM items
		WHERE namespace = ? AND item_key = ?
	`, JoinNamespace(namespace), key)

	var valueJSON string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&valueJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &Error{Op: "get", Err: err}
	}
	return decodeRow(namespace, key, valueJSON, createdAt, updatedAt)
}

// Put implements Store. The duplicate-key clause preserves created_at and
// refreshes updated_at.
func (s *MySQLStore) Put(ctx context.Context, namespace []string, key string, value interface{}) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return &Error{Op: "put", Err: err}
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (namespace, item_key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			value = VALUES(value),
			updated_at = VALUES(updated_at)
	`, JoinNamespace(namespace), key, string(valueJSON), now, now)
	if err != nil {
		return &Error{Op: "put", Err: err}
	}
	return nil
}

// Delete implements Store.
func (s *MySQLStore) Delete(ctx context.Context, namespace []string, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM items WHERE namespace = ? AND item_key = ?
	`, JoinNamespace(namespace), key); err != nil {
		return &Error{Op: "delete", Err: err}
	}
	return nil
}

// Search implements Store with substring matching over key and value.
func (s *MySQLStore) Search(ctx context.Context, namespace []string, query string, limit int) ([]Item, error) {
	var rows *sql.Rows
	var err error
	if query == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT item_key, value, created_at, updated_at
			FROM items
			WHERE namespace = ?
			ORDER BY item_key
			LIMIT ?
		`, JoinNamespace(namespace), limit)
	} else {
		pattern := "%" + query + "%"
		rows, err = s.db.QueryContext(ctx, `
			SELECT item_key, value, created_at, updated_at
			FROM items
			WHERE namespace = ? AND (item_key LIKE ? OR value LIKE ?)
			ORDER BY item_key
			LIMIT ?
		`, JoinNamespace(namespace), pattern, pattern, limit)
	}
	if err != nil {
		return nil, &Error{Op: "search", Err: err}
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var key, valueJSON string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&key, &valueJSON, &createdAt, &updatedAt); err != nil {
			return nil, &Error{Op: "search", Err: err}
		}
		item, err := decodeRow(namespace, key, valueJSON, createdAt, updatedAt)
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
func (s *MySQLStore) ListNamespaces(ctx context.Context, prefix []string) ([][]string, error) {
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

func decodeRow(namespace []string, key, valueJSON string, createdAt, updatedAt time.Time) (*Item, error) {
	var value interface{}
	if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
		return nil, &Error{Op: "decode", Err: err}
	}
	return &Item{
		Namespace: append([]string(nil), namespace...),
		Key:       key,
		Value:     value,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
