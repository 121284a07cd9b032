package graph

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestInvokeStaticChain(t *testing.T) {
	g, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddNode("b", incrementNode("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	result, err := g.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !result.IsComplete() {
		t.Fatal("result not complete")
	}
	state := result.IntoState()
	if state.Counter != 2 {
		t.Errorf("Counter = %d, want 2", state.Counter)
	}
	if !reflect.DeepEqual(state.Visited, []string{"a", "b"}) {
		t.Errorf("Visited = %v", state.Visited)
	}
}

func TestInvokeConditionalBranch(t *testing.T) {
	g, err := NewStateGraph[testState]().
		AddNode("classify", incrementNode("classify")).
		AddNode("hot", incrementNode("hot")).
		AddNode("cold", incrementNode("cold")).
		AddConditionalEdges("classify", func(s testState) string {
			if s.Temp > 50 {
				return "hot"
			}
			return "cold"
		}).
		AddEdge("hot", END).
		AddEdge("cold", END).
		SetEntryPoint("classify").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	hot, err := g.Invoke(context.Background(), testState{Temp: 80})
	if err != nil {
		t.Fatalf("Invoke(hot) error = %v", err)
	}
	if got := hot.State().Visited; !reflect.DeepEqual(got, []string{"classify", "hot"}) {
		t.Errorf("hot path visited %v", got)
	}

	cold, err := g.Invoke(context.Background(), testState{Temp: 10})
	if err != nil {
		t.Fatalf("Invoke(cold) error = %v", err)
	}
	if got := cold.State().Visited; !reflect.DeepEqual(got, []string{"classify", "cold"}) {
		t.Errorf("cold path visited %v", got)
	}
}

func TestEntryWithNoEdgesEndsAfterOneNode(t *testing.T) {
	g, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	result, err := g.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := result.State().Counter; got != 1 {
		t.Errorf("Counter = %d, want 1", got)
	}
}

func TestGotoCommandSkipsNode(t *testing.T) {
	skipper := NodeFunc[testState](func(_ context.Context, s testState) (NodeOutput[testState], error) {
		delta := testState{Counter: 1, Visited: []string{"a"}}
		return CommandOutput(GotoWithUpdate("c", delta))
	})
	g, err := NewStateGraph[testState]().
		AddNode("a", skipper).
		AddNode("b", incrementNode("b")).
		AddNode("c", incrementNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	result, err := g.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	state := result.IntoState()
	if !reflect.DeepEqual(state.Visited, []string{"a", "c"}) {
		t.Errorf("Visited = %v, want [a c]", state.Visited)
	}
	if state.Counter != 2 {
		t.Errorf("Counter = %d, want 2", state.Counter)
	}
}

func TestEndCommandStopsExecution(t *testing.T) {
	ender := NodeFunc[testState](func(_ context.Context, s testState) (NodeOutput[testState], error) {
		delta := testState{Counter: 1, Visited: []string{"a"}}
		return CommandOutput(Command[testState]{Update: &delta, Goto: GotoOne[testState](END)})
	})
	g, err := NewStateGraph[testState]().
		AddNode("a", ender).
		AddNode("b", incrementNode("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	result, err := g.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	state := result.IntoState()
	if !reflect.DeepEqual(state.Visited, []string{"a"}) {
		t.Errorf("Visited = %v, want [a]", state.Visited)
	}
}

func TestUpdateCommandKeepsNormalRouting(t *testing.T) {
	updater := NodeFunc[testState](func(_ context.Context, _ testState) (NodeOutput[testState], error) {
		delta := testState{Counter: 10, Visited: []string{"update"}}
		return CommandOutput(UpdateCommand(delta))
	})
	g, err := NewStateGraph[testState]().
		AddNode("a", updater).
		AddNode("b", incrementNode("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	result, err := g.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	state := result.IntoState()
	if state.Counter != 11 {
		t.Errorf("Counter = %d, want 11", state.Counter)
	}
	if !reflect.DeepEqual(state.Visited, []string{"update", "b"}) {
		t.Errorf("Visited = %v", state.Visited)
	}
}

func TestGotoLoopsBackToEarlierNode(t *testing.T) {
	loop := NodeFunc[testState](func(_ context.Context, s testState) (NodeOutput[testState], error) {
		s.Counter++
		s.Visited = append(s.Visited, "loop")
		delta := testState{Counter: 1, Visited: []string{"loop"}}
		if s.Counter < 4 {
			return CommandOutput(GotoWithUpdate("a", delta))
		}
		return CommandOutput(GotoWithUpdate(END, delta))
	})
	g, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddNode("loop", loop).
		AddEdge("a", "loop").
		AddEdge("loop", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	result, err := g.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	state := result.IntoState()
	if state.Counter != 4 {
		t.Errorf("Counter = %d, want 4", state.Counter)
	}
	if !reflect.DeepEqual(state.Visited, []string{"a", "loop", "a", "loop"}) {
		t.Errorf("Visited = %v", state.Visited)
	}
}

func TestConditionalOverridesStaticEdge(t *testing.T) {
	g, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddNode("b", incrementNode("b")).
		AddNode("c", incrementNode("c")).
		AddConditionalEdges("a", func(testState) string { return "c" }).
		AddEdge("a", "b").
		AddEdge("b", END).
		AddEdge("c", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	result, err := g.Invoke(context.Background(), testState{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := result.State().Visited; !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Visited = %v, want conditional to win over static edge", got)
	}
}

func TestSelfLoopHitsRecursionLimit(t *testing.T) {
	g, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddEdge("a", "a").
		SetEntryPoint("a").
		Compile(WithRecursionLimit(10))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	_, err = g.Invoke(context.Background(), testState{})
	if err == nil {
		t.Fatal("Invoke() succeeded on an infinite loop")
	}
	if !errors.Is(err, ErrMaxIterations) {
		t.Errorf("err = %v, want ErrMaxIterations", err)
	}
	if !IsKind(err, KindGraph) {
		t.Errorf("err kind = %v, want Graph", err)
	}
}

func TestNodeErrorPropagates(t *testing.T) {
	boom := errors.New("node exploded")
	failing := NodeFunc[testState](func(_ context.Context, _ testState) (NodeOutput[testState], error) {
		return NodeOutput[testState]{}, boom
	})
	g, err := NewStateGraph[testState]().
		AddNode("a", failing).
		AddEdge("a", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	_, err = g.Invoke(context.Background(), testState{})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want the node's error unchanged", err)
	}
}

func TestInvokeRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddEdge("a", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	_, err = g.Invoke(ctx, testState{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestConcurrentInvocations(t *testing.T) {
	g, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddNode("b", incrementNode("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	const n = 16
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			result, err := g.Invoke(context.Background(), testState{})
			if err == nil && result.State().Counter != 2 {
				err = errors.New("wrong counter")
			}
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent invoke %d: %v", i, err)
		}
	}
}
