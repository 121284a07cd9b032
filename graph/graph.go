package graph

import "fmt"

// StateGraph is the builder for a compiled graph. Methods return the
// builder for chaining; Compile validates the topology and produces the
// executable CompiledGraph.
//
// Example:
//
//	g, err := graph.NewStateGraph[MyState]().
//	    AddNode("classify", classifyNode).
//	    AddNode("hot", hotNode).
//	    AddNode("cold", coldNode).
//	    AddConditionalEdges("classify", func(s MyState) string {
//	        if s.Temp > 50 {
//	            return "hot"
//	        }
//	        return "cold"
//	    }).
//	    AddEdge("hot", graph.END).
//	    AddEdge("cold", graph.END).
//	    SetEntryPoint("classify").
//	    Compile()
type StateGraph[S State[S]] struct {
	nodes            map[string]Node[S]
	edges            []Edge
	conditionalEdges []ConditionalEdge[S]
	entryPoint       string
	interruptBefore  map[string]struct{}
	interruptAfter   map[string]struct{}
	cachePolicies    map[string]CachePolicy
	deferred         map[string]struct{}
}

// NewStateGraph creates an empty builder.
func NewStateGraph[S State[S]]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:           make(map[string]Node[S]),
		interruptBefore: make(map[string]struct{}),
		interruptAfter:  make(map[string]struct{}),
		cachePolicies:   make(map[string]CachePolicy),
		deferred:        make(map[string]struct{}),
	}
}

// AddNode registers a named node. Re-registering a name replaces the
// previous node.
func (g *StateGraph[S]) AddNode(name string, node Node[S]) *StateGraph[S] {
	g.nodes[name] = node
	return g
}

// AddNodeFunc registers a plain function as a node.
func (g *StateGraph[S]) AddNodeFunc(name string, fn NodeFunc[S]) *StateGraph[S] {
	return g.AddNode(name, fn)
}

// AddDeferredNode registers a node that does not execute until every
// fan-out branch that can reach it has completed and merged its result.
// This is the fan-in barrier for SendCommand.
func (g *StateGraph[S]) AddDeferredNode(name string, node Node[S]) *StateGraph[S] {
	g.nodes[name] = node
	g.deferred[name] = struct{}{}
	return g
}

// AddNodeWithCache registers a node whose output is cached by a fingerprint
// of its input state for the policy's TTL.
func (g *StateGraph[S]) AddNodeWithCache(name string, node Node[S], policy CachePolicy) *StateGraph[S] {
	g.nodes[name] = node
	g.cachePolicies[name] = policy
	return g
}

// AddEdge declares an unconditional transition from source to target.
func (g *StateGraph[S]) AddEdge(source, target string) *StateGraph[S] {
	g.edges = append(g.edges, Edge{Source: source, Target: target})
	return g
}

// AddConditionalEdges declares a router on source. The router's return
// value is the next node name (or END).
func (g *StateGraph[S]) AddConditionalEdges(source string, router Router[S]) *StateGraph[S] {
	g.conditionalEdges = append(g.conditionalEdges, ConditionalEdge[S]{Source: source, Router: router})
	return g
}

// AddConditionalEdgesWithPathMap declares a router whose return values are
// labels resolved through pathMap. The map's targets are validated at
// compile time.
func (g *StateGraph[S]) AddConditionalEdgesWithPathMap(source string, router Router[S], pathMap map[string]string) *StateGraph[S] {
	g.conditionalEdges = append(g.conditionalEdges, ConditionalEdge[S]{Source: source, Router: router, PathMap: pathMap})
	return g
}

// SetEntryPoint names the node execution starts at.
func (g *StateGraph[S]) SetEntryPoint(name string) *StateGraph[S] {
	g.entryPoint = name
	return g
}

// InterruptBefore marks nodes that pause the graph before executing
// (human-in-the-loop).
func (g *StateGraph[S]) InterruptBefore(names ...string) *StateGraph[S] {
	for _, n := range names {
		g.interruptBefore[n] = struct{}{}
	}
	return g
}

// InterruptAfter marks nodes that pause the graph after executing.
func (g *StateGraph[S]) InterruptAfter(names ...string) *StateGraph[S] {
	for _, n := range names {
		g.interruptAfter[n] = struct{}{}
	}
	return g
}

// Compile validates the graph and returns the executable form.
//
// Validation rules:
//   - the entry point is set and names a declared node
//   - no node uses a reserved name (START, END)
//   - every edge source is START or a declared node
//   - every edge target is END or a declared node
//   - every conditional edge source is START or a declared node
//   - every path_map target is END or a declared node
//
// All failures surface here with the Graph kind; none are deferred to
// runtime.
func (g *StateGraph[S]) Compile(opts ...Option) (*CompiledGraph[S], error) {
	if g.entryPoint == "" {
		return nil, NewError(KindGraph, "no entry point set", nil)
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, NewError(KindGraph, fmt.Sprintf("entry point node '%s' not found", g.entryPoint), nil)
	}

	for name := range g.nodes {
		if name == START || name == END {
			return nil, NewError(KindGraph, fmt.Sprintf("node name '%s' is reserved", name), nil)
		}
	}

	for _, edge := range g.edges {
		if edge.Source != START {
			if _, ok := g.nodes[edge.Source]; !ok {
				return nil, NewError(KindGraph, fmt.Sprintf("edge source '%s' not found", edge.Source), nil)
			}
		}
		if edge.Target != END {
			if _, ok := g.nodes[edge.Target]; !ok {
				return nil, NewError(KindGraph, fmt.Sprintf("edge target '%s' not found", edge.Target), nil)
			}
		}
	}

	for _, ce := range g.conditionalEdges {
		if ce.Source != START {
			if _, ok := g.nodes[ce.Source]; !ok {
				return nil, NewError(KindGraph, fmt.Sprintf("conditional edge source '%s' not found", ce.Source), nil)
			}
		}
		for label, target := range ce.PathMap {
			if target == END {
				continue
			}
			if _, ok := g.nodes[target]; !ok {
				return nil, NewError(KindGraph,
					fmt.Sprintf("conditional edge path_map target '%s' (label '%s') not found", target, label), nil)
			}
		}
	}

	cfg := newGraphConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return &CompiledGraph[S]{
		nodes:            g.nodes,
		edges:            g.edges,
		conditionalEdges: g.conditionalEdges,
		entryPoint:       g.entryPoint,
		interruptBefore:  g.interruptBefore,
		interruptAfter:   g.interruptAfter,
		cachePolicies:    g.cachePolicies,
		deferred:         g.deferred,
		cache:            newNodeCache(),
		checkpointer:     cfg.checkpointer,
		emitter:          cfg.emitter,
		metrics:          cfg.metrics,
		costTracker:      cfg.costTracker,
		recursionLimit:   cfg.recursionLimit,
	}, nil
}
