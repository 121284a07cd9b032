// Package session manages conversation sessions on top of the store:
// session metadata, per-session chat history, and rolling summaries, with
// deletion cascading into the session's checkpoint history.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/flowmind-ai/agentgraph/graph"
	"github.com/flowmind-ai/agentgraph/graph/model"
	"github.com/flowmind-ai/agentgraph/graph/store"
)

// Persisted layout: session metadata lives under ["sessions"] keyed by
// session ID; chat history under ["memory", session_id] with the fixed
// keys "messages" and "summary"; checkpoints under
// ["checkpoints", session_id] (written by the checkpointer).
const (
	sessionsNamespace = "sessions"
	memoryNamespace   = "memory"
	messagesKey       = "messages"
	summaryKey        = "summary"
)

// Session is the metadata record for one conversation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager provides session CRUD and chat-history persistence over a Store.
type Manager struct {
	store store.Store
}

// NewManager wraps a store.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// Create starts a new session with a generated ID.
func (m *Manager) Create(ctx context.Context) (Session, error) {
	s := Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if err := m.store.Put(ctx, []string{sessionsNamespace}, s.ID, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Get loads a session's metadata, or nil when unknown.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	item, err := m.store.Get(ctx, []string{sessionsNamespace}, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	var s Session
	if err := decodeInto(item.Value, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns up to limit sessions.
func (m *Manager) List(ctx context.Context, limit int) ([]Session, error) {
	items, err := m.store.Search(ctx, []string{sessionsNamespace}, "", limit)
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(items))
	for _, item := range items {
		var s Session
		if err := decodeInto(item.Value, &s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Delete removes a session: its metadata, chat history, and checkpoint
// history. Deleting an unknown session is a no-op.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, []string{sessionsNamespace}, id); err != nil {
		return err
	}
	for _, key := range []string{messagesKey, summaryKey} {
		if err := m.store.Delete(ctx, []string{memoryNamespace, id}, key); err != nil {
			return err
		}
	}
	// Checkpoints share the session's lifetime.
	ckptNS := []string{"checkpoints", id}
	items, err := m.store.Search(ctx, ckptNS, "", 10000)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := m.store.Delete(ctx, ckptNS, item.Key); err != nil {
			return err
		}
	}
	return nil
}

// SaveMessages persists a session's conversation.
func (m *Manager) SaveMessages(ctx context.Context, id string, messages []model.Message) error {
	return m.store.Put(ctx, []string{memoryNamespace, id}, messagesKey, messages)
}

// LoadMessages restores a session's conversation. An unknown session
// yields an empty slice.
func (m *Manager) LoadMessages(ctx context.Context, id string) ([]model.Message, error) {
	item, err := m.store.Get(ctx, []string{memoryNamespace, id}, messagesKey)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	var messages []model.Message
	if err := decodeInto(item.Value, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SaveSummary persists the session's rolling summary.
func (m *Manager) SaveSummary(ctx context.Context, id, summary string) error {
	return m.store.Put(ctx, []string{memoryNamespace, id}, summaryKey, summary)
}

// LoadSummary restores the rolling summary, or "" when absent.
func (m *Manager) LoadSummary(ctx context.Context, id string) (string, error) {
	item, err := m.store.Get(ctx, []string{memoryNamespace, id}, summaryKey)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", nil
	}
	s, ok := item.Value.(string)
	if !ok {
		if err := decodeInto(item.Value, &s); err != nil {
			return "", err
		}
	}
	return s, nil
}

// decodeInto normalizes a stored value (struct or decoded JSON map) into
// the target type through a JSON round trip.
func decodeInto(value interface{}, target interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return graph.NewError(graph.KindMemory, "failed to decode session record", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return graph.NewError(graph.KindMemory, "failed to decode session record", err)
	}
	return nil
}
