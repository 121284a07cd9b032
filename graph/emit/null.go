package emit

import "context"

// NullEmitter implements Emitter by discarding everything. It is the
// unchanged ambient sink for runs that want zero observability overhead:
// wire it (or simply compile without WithEmitter) and every event is
// dropped without processing.
//
// Example usage:
//
//	g, err := sg.Compile(graph.WithEmitter(emit.NewNullEmitter()))
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter. Safe for concurrent use.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit implements Emitter by discarding the event.
func (n *NullEmitter) Emit(Event) {}

// EmitBatch implements Emitter by discarding the batch.
func (n *NullEmitter) EmitBatch(context.Context, []Event) error {
	return nil
}

// Flush implements Emitter; there is never anything to flush.
func (n *NullEmitter) Flush(context.Context) error {
	return nil
}
