package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Fan-out scheduling. A SendCommand dispatches every Send as an independent
// branch on its own goroutine; branches run until they reach END or a
// deferred node, and their final states merge back into the parent pending
// state in completion order. The deferred node is the join barrier: it only
// runs after every branch has landed.

// branchResult carries one branch's final state and where it stopped.
type branchResult[S State[S]] struct {
	state  S
	stopAt string
}

// runFanOut executes the sends concurrently against the graph and merges
// each branch's output into the execution's pending state. It returns the
// merged state and the join node (the shared deferred target, or END when
// every branch terminated).
func (x *execution[S]) runFanOut(ctx context.Context, sends []Send[S]) (S, string, error) {
	return fanOut(ctx, x.g, x.state, sends)
}

func fanOut[S State[S]](ctx context.Context, g *CompiledGraph[S], pending S, sends []Send[S]) (S, string, error) {
	// An empty fan-out is equivalent to routing to END.
	if len(sends) == 0 {
		return pending, END, nil
	}

	results := make(chan branchResult[S], len(sends))
	grp, grpCtx := errgroup.WithContext(ctx)
	for _, send := range sends {
		grp.Go(func() error {
			res, err := runBranch(grpCtx, g, send)
			if err != nil {
				return err
			}
			results <- res
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		var zero S
		return zero, "", err
	}
	close(results)

	// Merge in completion order; the state's Merge must be commutative
	// across fan-out deltas.
	join := ""
	merged := pending
	for res := range results {
		merged = merged.Merge(res.state)
		if res.stopAt == END {
			continue
		}
		if join != "" && join != res.stopAt {
			var zero S
			return zero, "", NewError(KindGraph,
				fmt.Sprintf("fan-out branches join at different nodes: '%s' and '%s'", join, res.stopAt), nil)
		}
		join = res.stopAt
	}

	if join == "" {
		join = END
	}
	return merged, join, nil
}

// runBranch executes one fan-out branch from its Send target with its
// carried state, following normal routing until it reaches END or stops at
// a deferred node (which the parent executes after the join).
func runBranch[S State[S]](ctx context.Context, g *CompiledGraph[S], send Send[S]) (branchResult[S], error) {
	var zero branchResult[S]
	current := send.Node
	state := send.State

	for steps := 0; ; steps++ {
		if steps >= g.recursionLimit {
			return zero, NewError(KindGraph,
				fmt.Sprintf("max iterations (%d) exceeded: possible infinite loop", g.recursionLimit),
				ErrMaxIterations)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
		if current == END {
			return branchResult[S]{state: state, stopAt: END}, nil
		}
		if g.IsDeferred(current) {
			return branchResult[S]{state: state, stopAt: current}, nil
		}

		node, ok := g.nodes[current]
		if !ok {
			return zero, NewError(KindGraph, fmt.Sprintf("node '%s' not found", current), nil)
		}

		output, err := node.Process(withNodeMetadata(ctx, "", current, steps), state)
		if err != nil {
			return zero, err
		}

		var route CommandGoto[S]
		if output.IsCommand() {
			cmd := output.Command()
			if cmd.Interrupt != nil {
				return zero, NewError(KindGraph,
					fmt.Sprintf("interrupt raised inside fan-out branch at node '%s'", current), nil)
			}
			if cmd.Update != nil {
				state = state.Merge(*cmd.Update)
			}
			route = cmd.Goto
		} else {
			state = output.State()
		}

		// Nested fan-out runs to its own join before the branch continues.
		if route.kind == gotoMany {
			merged, join, err := fanOut(ctx, g, state, route.sends)
			if err != nil {
				return zero, err
			}
			state = merged
			current = join
			continue
		}

		current = routeBranch(g, current, state, route)
	}
}

// routeBranch resolves a branch's next node with the same precedence as
// the main loop: command goto, conditional edges, static edges, END.
func routeBranch[S State[S]](g *CompiledGraph[S], current string, state S, route CommandGoto[S]) string {
	if route.kind == gotoOne {
		return route.one
	}
	for _, ce := range g.conditionalEdges {
		if ce.Source == current {
			return ce.resolve(state)
		}
	}
	for _, edge := range g.edges {
		if edge.Source == current {
			return edge.Target
		}
	}
	return END
}
