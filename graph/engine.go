package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/flowmind-ai/agentgraph/graph/emit"
)

// CompiledGraph is the executable form of a StateGraph. It owns the node
// table, the edge tables, the interrupt sets, and the shared node cache. A
// CompiledGraph is safe for concurrent use: each invocation runs on the
// caller's goroutine with exclusive ownership of its state, and the only
// shared mutable structure is the node cache behind its own guard.
//
// The runtime imposes no internal timeouts; wrap the context with
// context.WithTimeout to bound an invocation.
type CompiledGraph[S State[S]] struct {
	nodes            map[string]Node[S]
	edges            []Edge
	conditionalEdges []ConditionalEdge[S]
	entryPoint       string
	interruptBefore  map[string]struct{}
	interruptAfter   map[string]struct{}
	cachePolicies    map[string]CachePolicy
	deferred         map[string]struct{}
	cache            *nodeCache
	checkpointer     Checkpointer
	emitter          emit.Emitter
	metrics          *PrometheusMetrics
	costTracker      *CostTracker
	recursionLimit   int
}

// EntryPoint returns the name of the graph's entry node.
func (g *CompiledGraph[S]) EntryPoint() string {
	return g.entryPoint
}

// IsDeferred reports whether the named node is a fan-in barrier.
func (g *CompiledGraph[S]) IsDeferred(name string) bool {
	_, ok := g.deferred[name]
	return ok
}

// Checkpointer returns the configured checkpointer, or nil.
func (g *CompiledGraph[S]) Checkpointer() Checkpointer {
	return g.checkpointer
}

// CostTracker returns the configured cost tracker, or nil.
func (g *CompiledGraph[S]) CostTracker() *CostTracker {
	return g.costTracker
}

// Invoke executes the graph from the entry point with the given state and
// runs until END, an interrupt, or an error.
func (g *CompiledGraph[S]) Invoke(ctx context.Context, state S) (GraphResult[S], error) {
	return g.InvokeWithConfig(ctx, state, nil)
}

// InvokeWithConfig executes the graph under a checkpoint thread. When the
// thread already has a checkpoint, execution resumes from it: the
// checkpoint's state replaces the given one and its next_node becomes the
// starting node.
func (g *CompiledGraph[S]) InvokeWithConfig(ctx context.Context, state S, cfg *CheckpointConfig) (GraphResult[S], error) {
	exec, err := g.newExecution(ctx, state, cfg, nil, nil)
	if err != nil {
		var zero GraphResult[S]
		return zero, err
	}
	return exec.run(ctx)
}

// InvokeCommand executes the graph driven by a command instead of an
// initial state. A ResumeCommand resumes the thread's latest checkpoint,
// delivering the resume value to the node that interrupted (available via
// ResumeValue on its context). A command Update is merged into the
// checkpoint state before execution.
func (g *CompiledGraph[S]) InvokeCommand(ctx context.Context, cmd Command[S], cfg *CheckpointConfig) (GraphResult[S], error) {
	var zero GraphResult[S]
	if cmd.Resume == nil {
		return zero, NewError(KindGraph, "InvokeCommand requires a resume command", nil)
	}
	if g.checkpointer == nil || cfg == nil {
		return zero, NewError(KindGraph, ErrNoCheckpoint.Error(), ErrNoCheckpoint)
	}
	ckpt, err := g.checkpointer.Get(ctx, *cfg)
	if err != nil {
		return zero, err
	}
	if ckpt == nil {
		return zero, NewError(KindGraph, ErrNoCheckpoint.Error(), ErrNoCheckpoint)
	}
	state, err := deserializeState[S](ckpt.State)
	if err != nil {
		return zero, err
	}
	if cmd.Update != nil {
		state = state.Merge(*cmd.Update)
	}
	exec, err := g.newExecution(ctx, state, cfg, ckpt, cmd.Resume)
	if err != nil {
		return zero, err
	}
	return exec.run(ctx)
}

// Stream executes the graph lazily, yielding one event per node transition
// in the requested mode. The graph only advances as the caller pulls.
func (g *CompiledGraph[S]) Stream(state S, mode StreamMode) *EventStream[S] {
	return g.StreamWithConfig(state, mode, nil)
}

// StreamWithConfig is Stream under a checkpoint thread.
func (g *CompiledGraph[S]) StreamWithConfig(state S, mode StreamMode, cfg *CheckpointConfig) *EventStream[S] {
	exec := g.deferredExecution(state, cfg, []StreamMode{mode})
	return &EventStream[S]{exec: exec}
}

// StreamModes executes the graph lazily, multiplexing several requested
// modes. An empty mode list yields no events but still runs the graph to
// completion as the caller pulls Next.
func (g *CompiledGraph[S]) StreamModes(state S, modes []StreamMode) *MultiEventStream[S] {
	exec := g.deferredExecution(state, nil, modes)
	return &MultiEventStream[S]{inner: EventStream[S]{exec: exec}}
}

// GetState loads the latest (or targeted) checkpointed state for a thread.
// Returns nil when the thread has no checkpoints.
func (g *CompiledGraph[S]) GetState(ctx context.Context, cfg CheckpointConfig) (*S, error) {
	if g.checkpointer == nil {
		return nil, NewError(KindGraph, ErrNoCheckpointer.Error(), ErrNoCheckpointer)
	}
	ckpt, err := g.checkpointer.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if ckpt == nil {
		return nil, nil
	}
	state, err := deserializeState[S](ckpt.State)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// UpdateState merges delta into the thread's latest checkpointed state and
// writes a new checkpoint preserving the pending next node. This is the
// human-in-the-loop edit surface for interrupted graphs.
func (g *CompiledGraph[S]) UpdateState(ctx context.Context, cfg CheckpointConfig, delta S) error {
	if g.checkpointer == nil {
		return NewError(KindGraph, ErrNoCheckpointer.Error(), ErrNoCheckpointer)
	}
	ckpt, err := g.checkpointer.Get(ctx, cfg)
	if err != nil {
		return err
	}
	if ckpt == nil {
		return NewError(KindGraph, ErrNoCheckpoint.Error(), ErrNoCheckpoint)
	}
	state, err := deserializeState[S](ckpt.State)
	if err != nil {
		return err
	}
	state = state.Merge(delta)
	data, err := serializeState(state)
	if err != nil {
		return err
	}
	next := NewCheckpoint(data, ckpt.NextNode).
		WithParent(ckpt.ID).
		WithMetadata("source", "update_state")
	return g.checkpointer.Put(ctx, cfg, next)
}

// History lists a thread's checkpoints, oldest first.
func (g *CompiledGraph[S]) History(ctx context.Context, cfg CheckpointConfig) ([]Checkpoint, error) {
	if g.checkpointer == nil {
		return nil, NewError(KindGraph, ErrNoCheckpointer.Error(), ErrNoCheckpointer)
	}
	return g.checkpointer.List(ctx, cfg)
}

// execution is one in-flight invocation: the cursor of the main loop. It
// advances one node transition per step call, which lets Invoke loop it to
// completion and the event streams pull it lazily.
type execution[S State[S]] struct {
	g             *CompiledGraph[S]
	cfg           *CheckpointConfig
	state         S
	current       string
	steps         int
	parentCkptID  string
	resume        any
	skipInterrupt bool
	modes         []StreamMode
	done          bool
	result        *GraphResult[S]

	// resolveStart defers checkpoint lookup until the first step, so
	// Stream construction stays non-blocking.
	resolveStart bool
}

// newExecution prepares an execution, resuming from the thread's latest
// checkpoint when one exists. resumeCkpt short-circuits the lookup when the
// caller (InvokeCommand) already loaded it.
func (g *CompiledGraph[S]) newExecution(ctx context.Context, state S, cfg *CheckpointConfig, resumeCkpt *Checkpoint, resume any) (*execution[S], error) {
	exec := &execution[S]{
		g:       g,
		cfg:     cfg,
		state:   state,
		current: g.entryPoint,
		resume:  resume,
	}
	if resumeCkpt != nil {
		if resumeCkpt.NextNode != "" {
			exec.current = resumeCkpt.NextNode
		}
		exec.parentCkptID = resumeCkpt.ID
		exec.skipInterrupt = true
		return exec, nil
	}
	if g.checkpointer != nil && cfg != nil {
		ckpt, err := g.checkpointer.Get(ctx, *cfg)
		if err != nil {
			return nil, err
		}
		if ckpt != nil {
			restored, err := deserializeState[S](ckpt.State)
			if err != nil {
				return nil, err
			}
			exec.state = restored
			if ckpt.NextNode != "" {
				exec.current = ckpt.NextNode
			}
			exec.parentCkptID = ckpt.ID
		}
	}
	return exec, nil
}

// deferredExecution builds an execution whose checkpoint lookup happens on
// the first step, for the lazy stream constructors.
func (g *CompiledGraph[S]) deferredExecution(state S, cfg *CheckpointConfig, modes []StreamMode) *execution[S] {
	return &execution[S]{
		g:            g,
		cfg:          cfg,
		state:        state,
		current:      g.entryPoint,
		modes:        modes,
		resolveStart: cfg != nil && g.checkpointer != nil,
	}
}

// run drives the execution to completion.
func (x *execution[S]) run(ctx context.Context) (GraphResult[S], error) {
	for !x.done {
		if _, err := x.step(ctx); err != nil {
			var zero GraphResult[S]
			return zero, err
		}
	}
	return *x.result, nil
}

// step executes one node transition and returns its stream events.
func (x *execution[S]) step(ctx context.Context) ([]GraphEvent[S], error) {
	g := x.g

	if x.resolveStart {
		x.resolveStart = false
		ckpt, err := g.checkpointer.Get(ctx, *x.cfg)
		if err != nil {
			return nil, err
		}
		if ckpt != nil {
			restored, err := deserializeState[S](ckpt.State)
			if err != nil {
				return nil, err
			}
			x.state = restored
			if ckpt.NextNode != "" {
				x.current = ckpt.NextNode
			}
			x.parentCkptID = ckpt.ID
		}
	}

	if x.current == END {
		x.finish(Complete(x.state))
		return nil, nil
	}

	x.steps++
	if x.steps > g.recursionLimit {
		return nil, NewError(KindGraph,
			fmt.Sprintf("max iterations (%d) exceeded: possible infinite loop", g.recursionLimit),
			ErrMaxIterations)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// interrupt_before pauses without executing the node. A resume entry
	// step skips the check so the resumed node can actually run.
	if _, ok := g.interruptBefore[x.current]; ok && !x.skipInterrupt {
		value := map[string]any{"interrupt": "before", "node": x.current}
		if err := x.saveCheckpoint(ctx, x.current, "interrupt_before"); err != nil {
			return nil, err
		}
		if !x.canCheckpoint() {
			return nil, NewError(KindGraph, fmt.Sprintf("interrupted before node '%s'", x.current), nil)
		}
		x.emitInterrupt(x.current, value)
		x.finish(Interrupted(x.state, value))
		return nil, nil
	}

	node, ok := g.nodes[x.current]
	if !ok {
		return nil, NewError(KindGraph, fmt.Sprintf("node '%s' not found", x.current), nil)
	}

	name := x.current
	pre := x.state
	x.emitNodeStart(name)
	start := time.Now()

	output, cached, err := x.executeNode(ctx, name, node, pre)
	if err != nil {
		x.emitError(name, err)
		return nil, err
	}
	x.skipInterrupt = false

	// Interpret the output.
	var route CommandGoto[S]
	if output.IsCommand() {
		cmd := output.Command()
		if cmd.Interrupt != nil {
			// The node's update is not merged: the interrupt is raised
			// before the transition completes, so the state accumulated up
			// to this node is preserved exactly.
			if err := x.saveCheckpoint(ctx, name, "interrupt"); err != nil {
				return nil, err
			}
			x.emitInterrupt(name, cmd.Interrupt)
			x.finish(Interrupted(pre, cmd.Interrupt))
			return nil, nil
		}
		if cmd.Update != nil {
			x.state = x.state.Merge(*cmd.Update)
		}
		route = cmd.Goto
	} else {
		x.state = output.State()
	}

	// Fan-out: dispatch every Send concurrently and merge the branch
	// results into the pending state before the deferred fan-in node runs.
	// The merged state never enters the node cache: it includes branch
	// work beyond this node's own transition.
	if route.kind == gotoMany {
		merged, join, err := x.runFanOut(ctx, route.sends)
		if err != nil {
			return nil, err
		}
		x.state = merged
		x.emitNodeEnd(name, start)
		events := streamEvents(x.modes, name, pre, x.state)
		x.emitStream(events)
		if err := x.advance(ctx, name, join); err != nil {
			return nil, err
		}
		return events, nil
	}

	x.storeCache(name, pre, cached)
	x.emitNodeEnd(name, start)
	events := streamEvents(x.modes, name, pre, x.state)
	x.emitStream(events)

	// interrupt_after pauses once the node's result is merged. The
	// checkpoint records the routed next node so resume continues past it.
	if _, ok := g.interruptAfter[name]; ok {
		next := x.routeFrom(name, route)
		value := map[string]any{"interrupt": "after", "node": name}
		if err := x.saveCheckpoint(ctx, next, "interrupt_after"); err != nil {
			return nil, err
		}
		if !x.canCheckpoint() {
			return nil, NewError(KindGraph, fmt.Sprintf("interrupted after node '%s'", name), nil)
		}
		x.emitInterrupt(name, value)
		x.finish(Interrupted(x.state, value))
		return events, nil
	}

	next := x.routeFrom(name, route)
	if err := x.advance(ctx, name, next); err != nil {
		return nil, err
	}
	return events, nil
}

// executeNode runs the node's process, or serves its output from the cache
// when a policy is configured and the fingerprint matches. The returned
// flag reports whether the output should be written back to the cache.
func (x *execution[S]) executeNode(ctx context.Context, name string, node Node[S], pre S) (NodeOutput[S], bool, error) {
	var zero NodeOutput[S]
	_, cacheable := x.g.cachePolicies[name]
	if cacheable {
		fp, err := Fingerprint(pre)
		if err != nil {
			return zero, false, err
		}
		if data, ok := x.g.cache.get(cacheKey(name, fp), time.Now()); ok {
			post, err := deserializeState[S](data)
			if err != nil {
				return zero, false, NewError(KindCache, "failed to decode cached state", err)
			}
			x.emitCacheHit(name)
			if x.g.metrics != nil {
				x.g.metrics.RecordCacheHit(name)
			}
			out, _ := StateOutput(post)
			return out, false, nil
		}
	}

	nodeCtx := withNodeMetadata(ctx, x.threadID(), name, x.steps)
	if x.resume != nil {
		nodeCtx = withResumeValue(nodeCtx, x.resume)
		x.resume = nil
	}
	output, err := node.Process(nodeCtx, pre)
	if err != nil {
		return zero, false, err
	}
	return output, cacheable, nil
}

// storeCache writes the post-execution state back to the node cache.
func (x *execution[S]) storeCache(name string, pre S, cacheable bool) {
	if !cacheable {
		return
	}
	policy := x.g.cachePolicies[name]
	fp, err := Fingerprint(pre)
	if err != nil {
		return
	}
	data, err := serializeState(x.state)
	if err != nil {
		return
	}
	x.g.cache.put(cacheKey(name, fp), data, time.Now().Add(policy.TTL))
}

// routeFrom resolves the next node, in precedence order: the command's
// goto, then conditional edges, then static edges, then END.
func (x *execution[S]) routeFrom(current string, route CommandGoto[S]) string {
	if route.kind == gotoOne {
		return route.one
	}
	for _, ce := range x.g.conditionalEdges {
		if ce.Source == current {
			return ce.resolve(x.state)
		}
	}
	for _, edge := range x.g.edges {
		if edge.Source == current {
			return edge.Target
		}
	}
	return END
}

// advance saves the post-step checkpoint and moves the cursor.
func (x *execution[S]) advance(ctx context.Context, from, next string) error {
	if err := x.saveCheckpoint(ctx, next, from); err != nil {
		return err
	}
	if x.g.metrics != nil {
		x.g.metrics.RecordNodeExecution(from)
	}
	x.current = next
	return nil
}

func (x *execution[S]) finish(result GraphResult[S]) {
	x.done = true
	x.result = &result
}

func (x *execution[S]) canCheckpoint() bool {
	return x.g.checkpointer != nil && x.cfg != nil
}

// saveCheckpoint persists the current state with the given next node.
// Serialization failures are fatal to the invocation.
func (x *execution[S]) saveCheckpoint(ctx context.Context, nextNode, sourceNode string) error {
	if !x.canCheckpoint() {
		return nil
	}
	data, err := serializeState(x.state)
	if err != nil {
		return err
	}
	ckpt := NewCheckpoint(data, nextNode).WithMetadata("node", sourceNode).WithMetadata("step", x.steps)
	if x.parentCkptID != "" {
		ckpt = ckpt.WithParent(x.parentCkptID)
	}
	if err := x.g.checkpointer.Put(ctx, *x.cfg, ckpt); err != nil {
		return err
	}
	x.parentCkptID = ckpt.ID
	if x.g.metrics != nil {
		x.g.metrics.RecordCheckpointWrite(x.threadID())
	}
	return nil
}

func (x *execution[S]) threadID() string {
	if x.cfg == nil {
		return ""
	}
	return x.cfg.ThreadID
}

func (x *execution[S]) emitNodeStart(node string) {
	if x.g.emitter == nil {
		return
	}
	x.g.emitter.Emit(emit.Event{
		RunID:  x.threadID(),
		Step:   x.steps,
		NodeID: node,
		Msg:    emit.MsgNodeStart,
	})
}

func (x *execution[S]) emitNodeEnd(node string, start time.Time) {
	if x.g.metrics != nil {
		x.g.metrics.RecordNodeLatency(node, time.Since(start))
	}
	if x.g.emitter == nil {
		return
	}
	x.g.emitter.Emit(emit.Event{
		RunID:  x.threadID(),
		Step:   x.steps,
		NodeID: node,
		Msg:    emit.MsgNodeEnd,
		Meta:   map[string]any{"duration_ms": time.Since(start).Milliseconds()},
	})
}

func (x *execution[S]) emitError(node string, err error) {
	if x.g.emitter == nil {
		return
	}
	x.g.emitter.Emit(emit.Event{
		RunID:  x.threadID(),
		Step:   x.steps,
		NodeID: node,
		Msg:    emit.MsgError,
		Meta:   map[string]any{"error": err.Error()},
	})
}

func (x *execution[S]) emitInterrupt(node string, value any) {
	if x.g.metrics != nil {
		x.g.metrics.RecordInterrupt(node)
	}
	if x.g.emitter == nil {
		return
	}
	x.g.emitter.Emit(emit.Event{
		RunID:     x.threadID(),
		Step:      x.steps,
		NodeID:    node,
		Msg:       emit.MsgInterrupt,
		Interrupt: value,
	})
}

// emitStream mirrors streamed events to the emitter with their mode, so
// history sinks can reconstruct what a streaming caller observed.
func (x *execution[S]) emitStream(events []GraphEvent[S]) {
	if x.g.emitter == nil || len(events) == 0 {
		return
	}
	for _, ev := range events {
		x.g.emitter.Emit(emit.Event{
			RunID:  x.threadID(),
			Step:   x.steps,
			NodeID: ev.Node,
			Msg:    emit.MsgStream,
			Mode:   ev.Mode.String(),
		})
	}
}

func (x *execution[S]) emitCacheHit(node string) {
	if x.g.emitter == nil {
		return
	}
	x.g.emitter.Emit(emit.Event{
		RunID:  x.threadID(),
		Step:   x.steps,
		NodeID: node,
		Msg:    emit.MsgCacheHit,
	})
}
