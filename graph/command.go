package graph

// Send is one target of a fan-out: the named node is scheduled with the
// carried state rather than the parent's.
type Send[S State[S]] struct {
	// Node is the target node name.
	Node string
	// State is the branch's input state.
	State S
}

// gotoKind distinguishes the two routing-override shapes.
type gotoKind int

const (
	gotoNone gotoKind = iota
	gotoOne
	gotoMany
)

// CommandGoto is the routing override carried by a Command: a single target
// node, or a fan-out to several Sends.
type CommandGoto[S State[S]] struct {
	kind  gotoKind
	one   string
	sends []Send[S]
}

// GotoOne routes to a single node (or END).
func GotoOne[S State[S]](node string) CommandGoto[S] {
	return CommandGoto[S]{kind: gotoOne, one: node}
}

// GotoMany fans out to the given sends, executed concurrently and joined at
// the deferred fan-in node.
func GotoMany[S State[S]](sends []Send[S]) CommandGoto[S] {
	return CommandGoto[S]{kind: gotoMany, sends: sends}
}

// Command is a node output that controls graph flow. It can update state,
// override routing, fan out, or signal an interrupt.
type Command[S State[S]] struct {
	// Update is an optional state delta merged before routing.
	Update *S
	// Goto overrides edge-based routing when set.
	Goto CommandGoto[S]
	// Interrupt pauses the graph and returns this value to the caller.
	Interrupt any
	// Resume carries a caller-provided value when resuming from an
	// interrupt. Set by ResumeCommand, consumed by the executor.
	Resume any
}

// GotoCommand routes to a specific node, skipping edge evaluation.
func GotoCommand[S State[S]](node string) Command[S] {
	return Command[S]{Goto: GotoOne[S](node)}
}

// GotoWithUpdate merges update into the state, then routes to node.
func GotoWithUpdate[S State[S]](node string, update S) Command[S] {
	return Command[S]{Update: &update, Goto: GotoOne[S](node)}
}

// SendCommand fans out to the given sends (map-reduce).
func SendCommand[S State[S]](sends ...Send[S]) Command[S] {
	return Command[S]{Goto: GotoMany(sends)}
}

// UpdateCommand merges update into the state without overriding routing.
func UpdateCommand[S State[S]](update S) Command[S] {
	return Command[S]{Update: &update}
}

// EndCommand terminates the graph immediately.
func EndCommand[S State[S]]() Command[S] {
	return Command[S]{Goto: GotoOne[S](END)}
}

// ResumeCommand resumes a previously interrupted graph. Pass the result to
// CompiledGraph.InvokeCommand with the thread's CheckpointConfig; the value
// is delivered to the interrupting node via ResumeValue on its context.
func ResumeCommand[S State[S]](value any) Command[S] {
	return Command[S]{Resume: value}
}

// Interrupt pauses graph execution and returns value to the caller as
// GraphResult.InterruptValue. The interrupting node's state update is not
// applied; a checkpoint records the node as next to run, so a subsequent
// resume re-executes it from the start with the resume value available.
//
// Example:
//
//	func approve(ctx context.Context, s MyState) (graph.NodeOutput[MyState], error) {
//	    if answer, ok := graph.ResumeValue(ctx); ok {
//	        s.Approved = answer == "yes"
//	        return graph.StateOutput(s)
//	    }
//	    return graph.Interrupt[MyState](map[string]any{"question": "Approve?"})
//	}
func Interrupt[S State[S]](value any) (NodeOutput[S], error) {
	return CommandOutput(Command[S]{Interrupt: value})
}

// GraphResult is the outcome of a graph invocation: either a completed
// final state or an interrupted execution awaiting a resume value.
type GraphResult[S State[S]] struct {
	state          S
	interrupted    bool
	interruptValue any
}

// Complete builds a completed result.
func Complete[S State[S]](state S) GraphResult[S] {
	return GraphResult[S]{state: state}
}

// Interrupted builds an interrupted result carrying the interrupt value.
func Interrupted[S State[S]](state S, value any) GraphResult[S] {
	return GraphResult[S]{state: state, interrupted: true, interruptValue: value}
}

// State returns the state regardless of completion status. For interrupted
// results this is the state accumulated up to the interrupt point.
func (r GraphResult[S]) State() S {
	return r.state
}

// IntoState returns the state, mirroring State for call-chaining symmetry.
func (r GraphResult[S]) IntoState() S {
	return r.state
}

// IsComplete reports whether the graph ran to END.
func (r GraphResult[S]) IsComplete() bool {
	return !r.interrupted
}

// IsInterrupted reports whether the graph paused at an interrupt.
func (r GraphResult[S]) IsInterrupted() bool {
	return r.interrupted
}

// InterruptValue returns the value passed to Interrupt, or nil for
// completed results.
func (r GraphResult[S]) InterruptValue() any {
	return r.interruptValue
}
