package graph

import "context"

// StreamMode selects which events a stream emits per node transition.
type StreamMode int

const (
	// StreamValues emits after each node completes, carrying the
	// post-node state.
	StreamValues StreamMode = iota
	// StreamUpdates emits before each node executes, carrying the
	// pre-node state.
	StreamUpdates
	// StreamDebug emits both: the pre-node event, then the post-node
	// event.
	StreamDebug
)

// String returns the mode's wire name.
func (m StreamMode) String() string {
	switch m {
	case StreamValues:
		return "values"
	case StreamUpdates:
		return "updates"
	case StreamDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// GraphEvent is one streamed observation of a node transition. For
// StreamValues events State is the post-node state; for StreamUpdates it is
// the pre-node state. StreamDebug produces one event of each.
type GraphEvent[S State[S]] struct {
	Node  string
	Mode  StreamMode
	State S
}

// MultiGraphEvent tags a GraphEvent with the requested mode that produced
// it, for StreamModes consumers multiplexing several modes.
type MultiGraphEvent[S State[S]] struct {
	Mode  StreamMode
	Event GraphEvent[S]
}

// EventStream is a pull iterator over graph events. The graph advances
// lazily as the caller pulls: no background producer exists, and dropping
// the stream abandons the execution.
//
//	stream := g.Stream(initial, graph.StreamValues)
//	for stream.Next(ctx) {
//	    ev := stream.Event()
//	    fmt.Println(ev.Node, ev.State)
//	}
//	if err := stream.Err(); err != nil { ... }
//	result, _ := stream.Result()
type EventStream[S State[S]] struct {
	exec  *execution[S]
	queue []GraphEvent[S]
	cur   GraphEvent[S]
	err   error
}

// Next advances the stream, executing graph steps as needed to produce the
// next event. It returns false when the graph has finished (or failed);
// check Err and Result afterwards.
func (s *EventStream[S]) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	for len(s.queue) == 0 {
		if s.exec.done {
			return false
		}
		events, err := s.exec.step(ctx)
		if err != nil {
			s.err = err
			return false
		}
		s.queue = append(s.queue, events...)
	}
	s.cur = s.queue[0]
	s.queue = s.queue[1:]
	return true
}

// Event returns the event produced by the last successful Next.
func (s *EventStream[S]) Event() GraphEvent[S] {
	return s.cur
}

// Err returns the error that terminated the stream, if any.
func (s *EventStream[S]) Err() error {
	return s.err
}

// Result returns the invocation's outcome once the stream is exhausted.
// ok is false while events remain or after a failure.
func (s *EventStream[S]) Result() (GraphResult[S], bool) {
	if s.err != nil || s.exec.result == nil {
		var zero GraphResult[S]
		return zero, false
	}
	return *s.exec.result, true
}

// MultiEventStream is a pull iterator over multiplexed events from several
// requested modes. Per node transition it yields one event per requested
// mode (two for StreamDebug), ordered values, updates, debug.
type MultiEventStream[S State[S]] struct {
	inner EventStream[S]
}

// Next advances the stream. See EventStream.Next.
func (s *MultiEventStream[S]) Next(ctx context.Context) bool {
	return s.inner.Next(ctx)
}

// Event returns the current multiplexed event.
func (s *MultiEventStream[S]) Event() MultiGraphEvent[S] {
	ev := s.inner.Event()
	return MultiGraphEvent[S]{Mode: ev.Mode, Event: ev}
}

// Err returns the error that terminated the stream, if any.
func (s *MultiEventStream[S]) Err() error {
	return s.inner.Err()
}

// Result returns the invocation's outcome once the stream is exhausted.
func (s *MultiEventStream[S]) Result() (GraphResult[S], bool) {
	return s.inner.Result()
}

// streamEvents builds the event batch for one node transition, honoring
// the requested modes in the fixed order values, updates, debug.
func streamEvents[S State[S]](modes []StreamMode, node string, pre, post S) []GraphEvent[S] {
	var events []GraphEvent[S]
	for _, mode := range orderedModes(modes) {
		switch mode {
		case StreamValues:
			events = append(events, GraphEvent[S]{Node: node, Mode: StreamValues, State: post})
		case StreamUpdates:
			events = append(events, GraphEvent[S]{Node: node, Mode: StreamUpdates, State: pre})
		case StreamDebug:
			events = append(events,
				GraphEvent[S]{Node: node, Mode: StreamDebug, State: pre},
				GraphEvent[S]{Node: node, Mode: StreamDebug, State: post})
		}
	}
	return events
}

// orderedModes deduplicates and sorts requested modes into the canonical
// emission order.
func orderedModes(modes []StreamMode) []StreamMode {
	var out []StreamMode
	for _, want := range []StreamMode{StreamValues, StreamUpdates, StreamDebug} {
		for _, m := range modes {
			if m == want {
				out = append(out, want)
				break
			}
		}
	}
	return out
}
