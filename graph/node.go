package graph

import "context"

// Node is a processing step in the graph. It receives the current state,
// performs its work (call a model, execute a tool, run custom logic), and
// returns either a replacement state or a Command controlling flow.
//
// Type parameter S is the state type shared across the workflow.
type Node[S State[S]] interface {
	// Process executes the node against the given state. The returned
	// NodeOutput is either a full replacement state or a Command carrying
	// an optional delta, a routing override, or an interrupt.
	Process(ctx context.Context, state S) (NodeOutput[S], error)
}

// NodeFunc adapts a plain function to the Node interface.
//
// Example:
//
//	classify := graph.NodeFunc[MyState](func(ctx context.Context, s MyState) (graph.NodeOutput[MyState], error) {
//	    s.Label = "hot"
//	    return graph.StateOutput(s), nil
//	})
type NodeFunc[S State[S]] func(ctx context.Context, state S) (NodeOutput[S], error)

// Process implements Node.
func (f NodeFunc[S]) Process(ctx context.Context, state S) (NodeOutput[S], error) {
	return f(ctx, state)
}

// NodeOutput is what a node returns: exactly one of a replacement state or
// a command. Use StateOutput and CommandOutput to construct values.
type NodeOutput[S State[S]] struct {
	state   *S
	command *Command[S]
}

// StateOutput wraps a full replacement state.
func StateOutput[S State[S]](state S) (NodeOutput[S], error) {
	return NodeOutput[S]{state: &state}, nil
}

// CommandOutput wraps a Command for dynamic control flow.
func CommandOutput[S State[S]](cmd Command[S]) (NodeOutput[S], error) {
	return NodeOutput[S]{command: &cmd}, nil
}

// IsCommand reports whether the output carries a Command.
func (o NodeOutput[S]) IsCommand() bool {
	return o.command != nil
}

// Command returns the carried Command, or nil for state outputs.
func (o NodeOutput[S]) Command() *Command[S] {
	return o.command
}

// State returns the carried replacement state. Only valid when IsCommand
// reports false.
func (o NodeOutput[S]) State() S {
	if o.state == nil {
		var zero S
		return zero
	}
	return *o.state
}
