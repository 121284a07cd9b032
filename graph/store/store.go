// Package store provides the namespaced key/value capability that backs
// checkpoints, sessions, and chat history. A namespace is an ordered list
// of path segments; items are JSON values addressed by (namespace, key).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Item is a stored value with its address and timestamps.
type Item struct {
	// Namespace is the ordered path this item lives under.
	Namespace []string `json:"namespace"`

	// Key addresses the item within its namespace.
	Key string `json:"key"`

	// Value is the stored JSON value.
	Value interface{} `json:"value"`

	// CreatedAt is set on first insert and preserved across updates.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt refreshes on every Put.
	UpdatedAt time.Time `json:"updated_at"`

	// Score carries the relevance score for ranked search results, when
	// the backend ranks (e.g. embedding similarity). Nil otherwise.
	Score *float64 `json:"score,omitempty"`
}

// Store is the namespaced key/value capability.
//
// All methods return an *Error on backend failure. A missing key is not an
// error: Get returns (nil, nil).
type Store interface {
	// Get returns the item at (namespace, key), or nil when absent.
	Get(ctx context.Context, namespace []string, key string) (*Item, error)

	// Put upserts a value. Updates preserve CreatedAt and refresh
	// UpdatedAt.
	Put(ctx context.Context, namespace []string, key string, value interface{}) error

	// Delete removes the item. Deleting a missing key is a no-op.
	Delete(ctx context.Context, namespace []string, key string) error

	// Search returns up to limit items from the namespace. An empty query
	// returns any items; a non-empty query returns matches ranked by
	// relevance. Backends may match by substring, full text, or embedding
	// similarity; callers must not assume a specific ranking.
	Search(ctx context.Context, namespace []string, query string, limit int) ([]Item, error)

	// ListNamespaces returns every namespace whose segments start with
	// prefix. An empty prefix lists all namespaces.
	ListNamespaces(ctx context.Context, prefix []string) ([][]string, error)
}

// Error wraps a backend failure with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s failed", e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// nsSeparator joins namespace segments for flat-keyed backends. Segments
// never contain it by contract.
const nsSeparator = "::"

// JoinNamespace flattens a namespace to its storage form.
func JoinNamespace(namespace []string) string {
	return strings.Join(namespace, nsSeparator)
}

// SplitNamespace restores a namespace from its storage form.
func SplitNamespace(flat string) []string {
	if flat == "" {
		return nil
	}
	return strings.Split(flat, nsSeparator)
}

// valueText renders a stored value as searchable, embeddable text. Plain
// strings pass through; everything else takes its JSON form.
func valueText(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// HasPrefix reports whether namespace starts with the given prefix
// segments.
func HasPrefix(namespace, prefix []string) bool {
	if len(prefix) > len(namespace) {
		return false
	}
	for i, seg := range prefix {
		if namespace[i] != seg {
			return false
		}
	}
	return true
}
