package emit

import (
	"context"
	"sync"
)

// BufferedEmitter implements Emitter by retaining every event in memory,
// keyed by run (thread) ID. It is the in-process history surface behind
// tests, debugging sessions, and post-execution analysis: after an
// invocation, the full node/interrupt/cache traffic can be queried and
// filtered.
//
// Warning: nothing is evicted. For long-running deployments prefer a
// persistent sink and call Clear between runs.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	g, _ := sg.Compile(graph.WithEmitter(emitter))
//
//	g.InvokeWithConfig(ctx, initial, &cfg)
//
//	starts := emitter.History(cfg.ThreadID, emit.HistoryFilter{Msg: emit.MsgNodeStart})
//	pauses := emitter.Interrupts(cfg.ThreadID)
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// HistoryFilter selects events from a run's history. Zero-value fields do
// not filter; set fields combine with AND.
type HistoryFilter struct {
	// NodeID keeps only events from one node.
	NodeID string

	// Msg keeps only one event kind (MsgNodeStart, MsgInterrupt, ...).
	Msg string

	// Mode keeps only events mirrored from one stream mode
	// ("values", "updates", "debug").
	Mode string

	// InterruptsOnly keeps only events carrying an interrupt value.
	InterruptsOnly bool

	// MinStep and MaxStep bound the step range inclusively.
	MinStep *int
	MaxStep *int
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit implements Emitter.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// EmitBatch implements Emitter.
func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, event := range events {
		b.events[event.RunID] = append(b.events[event.RunID], event)
	}
	return nil
}

// Flush implements Emitter. The buffer is the backend, so there is
// nothing to flush.
func (b *BufferedEmitter) Flush(_ context.Context) error {
	return nil
}

// History returns a run's events matching the filter, in emission order.
// A zero filter returns everything. The result is a copy; callers may
// mutate it freely.
func (b *BufferedEmitter) History(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if matchesFilter(event, filter) {
			result = append(result, event)
		}
	}
	return result
}

// Interrupts returns every interrupt a run raised, in order. Equivalent to
// History with InterruptsOnly set.
func (b *BufferedEmitter) Interrupts(runID string) []Event {
	return b.History(runID, HistoryFilter{InterruptsOnly: true})
}

// Len reports how many events a run has accumulated.
func (b *BufferedEmitter) Len(runID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events[runID])
}

// Clear removes a run's events, or every run's when runID is empty.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}

func matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.NodeID != "" && event.NodeID != filter.NodeID {
		return false
	}
	if filter.Msg != "" && event.Msg != filter.Msg {
		return false
	}
	if filter.Mode != "" && event.Mode != filter.Mode {
		return false
	}
	if filter.InterruptsOnly && event.Interrupt == nil {
		return false
	}
	if filter.MinStep != nil && event.Step < *filter.MinStep {
		return false
	}
	if filter.MaxStep != nil && event.Step > *filter.MaxStep {
		return false
	}
	return true
}
