package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowmind-ai/agentgraph/graph/store"
)

// CheckpointConfig identifies a checkpoint thread (conversation).
type CheckpointConfig struct {
	// ThreadID isolates checkpoint histories from one another.
	ThreadID string `json:"thread_id"`
	// CheckpointID optionally targets a specific snapshot for time-travel.
	// Empty targets the latest.
	CheckpointID string `json:"checkpoint_id,omitempty"`
}

// NewCheckpointConfig targets the latest checkpoint of a thread.
func NewCheckpointConfig(threadID string) CheckpointConfig {
	return CheckpointConfig{ThreadID: threadID}
}

// WithCheckpointID targets a specific checkpoint for time-travel.
func (c CheckpointConfig) WithCheckpointID(id string) CheckpointConfig {
	c.CheckpointID = id
	return c
}

// Checkpoint is an immutable snapshot of graph state plus the name of the
// next node to execute. IDs sort lexicographically in creation order, so
// the latest snapshot for a thread is the one with the maximal ID.
type Checkpoint struct {
	ID       string          `json:"id"`
	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node,omitempty"`
	ParentID string          `json:"parent_id,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// NewCheckpoint builds a checkpoint with a freshly generated ID.
func NewCheckpoint(state json.RawMessage, nextNode string) Checkpoint {
	return Checkpoint{
		ID:       newCheckpointID(),
		State:    state,
		NextNode: nextNode,
		Metadata: make(map[string]any),
	}
}

// WithParent records the previous checkpoint's ID for history traversal.
func (c Checkpoint) WithParent(parentID string) Checkpoint {
	c.ParentID = parentID
	return c
}

// WithMetadata attaches a metadata entry.
func (c Checkpoint) WithMetadata(key string, value any) Checkpoint {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
	return c
}

// checkpointSeq is the process-wide sequence disambiguating checkpoints
// created within the same nanosecond. Initialized on first use; safe under
// concurrent access.
var checkpointSeq atomic.Uint64

// newCheckpointID returns an ID that sorts lexicographically by creation
// time: a zero-padded hex nanosecond timestamp plus a monotonic sequence.
func newCheckpointID() string {
	ts := time.Now().UnixNano()
	seq := checkpointSeq.Add(1)
	return fmt.Sprintf("%016x-%08x", ts, seq)
}

// Checkpointer persists checkpoint history per thread.
type Checkpointer interface {
	// Put appends a checkpoint to the thread's history. Histories are
	// append-only; Put never updates in place.
	Put(ctx context.Context, cfg CheckpointConfig, ckpt Checkpoint) error

	// Get returns the checkpoint named by cfg.CheckpointID, or the latest
	// for the thread when unset. A missing checkpoint is (nil, nil).
	Get(ctx context.Context, cfg CheckpointConfig) (*Checkpoint, error)

	// List returns the thread's full history, oldest first.
	List(ctx context.Context, cfg CheckpointConfig) ([]Checkpoint, error)
}

// MemorySaver is an in-memory Checkpointer for development and tests.
type MemorySaver struct {
	mu      sync.RWMutex
	threads map[string][]Checkpoint
}

// NewMemorySaver creates an empty MemorySaver.
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{threads: make(map[string][]Checkpoint)}
}

// Put implements Checkpointer.
func (m *MemorySaver) Put(_ context.Context, cfg CheckpointConfig, ckpt Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[cfg.ThreadID] = append(m.threads[cfg.ThreadID], ckpt)
	return nil
}

// Get implements Checkpointer.
func (m *MemorySaver) Get(_ context.Context, cfg CheckpointConfig) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.threads[cfg.ThreadID]
	if len(history) == 0 {
		return nil, nil
	}
	if cfg.CheckpointID != "" {
		for i := range history {
			if history[i].ID == cfg.CheckpointID {
				ckpt := history[i]
				return &ckpt, nil
			}
		}
		return nil, nil
	}
	ckpt := history[len(history)-1]
	return &ckpt, nil
}

// List implements Checkpointer.
func (m *MemorySaver) List(_ context.Context, cfg CheckpointConfig) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.threads[cfg.ThreadID]
	out := make([]Checkpoint, len(history))
	copy(out, history)
	return out, nil
}

// StoreCheckpointer persists checkpoints through any store.Store under
// namespace ["checkpoints", thread_id] with the checkpoint ID as key.
// Because IDs sort chronologically, the latest snapshot is the maximal key
// and history is the full listing.
type StoreCheckpointer struct {
	store store.Store
}

// NewStoreCheckpointer wraps a store as a Checkpointer.
func NewStoreCheckpointer(st store.Store) *StoreCheckpointer {
	return &StoreCheckpointer{store: st}
}

func checkpointNamespace(threadID string) []string {
	return []string{"checkpoints", threadID}
}

// Put implements Checkpointer.
func (s *StoreCheckpointer) Put(ctx context.Context, cfg CheckpointConfig, ckpt Checkpoint) error {
	return s.store.Put(ctx, checkpointNamespace(cfg.ThreadID), ckpt.ID, ckpt)
}

// Get implements Checkpointer.
func (s *StoreCheckpointer) Get(ctx context.Context, cfg CheckpointConfig) (*Checkpoint, error) {
	ns := checkpointNamespace(cfg.ThreadID)
	if cfg.CheckpointID != "" {
		item, err := s.store.Get(ctx, ns, cfg.CheckpointID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, nil
		}
		ckpt, err := decodeCheckpoint(item.Value)
		if err != nil {
			return nil, err
		}
		return &ckpt, nil
	}

	items, err := s.store.Search(ctx, ns, "", 10000)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	latest := items[0]
	for _, item := range items[1:] {
		if item.Key > latest.Key {
			latest = item
		}
	}
	ckpt, err := decodeCheckpoint(latest.Value)
	if err != nil {
		return nil, err
	}
	return &ckpt, nil
}

// List implements Checkpointer.
func (s *StoreCheckpointer) List(ctx context.Context, cfg CheckpointConfig) ([]Checkpoint, error) {
	items, err := s.store.Search(ctx, checkpointNamespace(cfg.ThreadID), "", 10000)
	if err != nil {
		return nil, err
	}
	checkpoints := make([]Checkpoint, 0, len(items))
	for _, item := range items {
		ckpt, err := decodeCheckpoint(item.Value)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, ckpt)
	}
	sort.Slice(checkpoints, func(i, j int) bool { return checkpoints[i].ID < checkpoints[j].ID })
	return checkpoints, nil
}

// decodeCheckpoint normalizes a stored value back into a Checkpoint. Store
// backends may hand back the original struct or a decoded JSON map; a
// round trip through encoding/json covers both.
func decodeCheckpoint(value any) (Checkpoint, error) {
	if ckpt, ok := value.(Checkpoint); ok {
		return ckpt, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return Checkpoint{}, NewError(KindStore, "failed to decode checkpoint", err)
	}
	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return Checkpoint{}, NewError(KindStore, "failed to decode checkpoint", err)
	}
	return ckpt, nil
}
