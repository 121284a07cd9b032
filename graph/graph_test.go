package graph

import (
	"strings"
	"testing"
)

func TestCompileRequiresEntryPoint(t *testing.T) {
	_, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		Compile()
	if err == nil {
		t.Fatal("Compile() succeeded without an entry point")
	}
	if !IsKind(err, KindGraph) {
		t.Errorf("error kind = %v, want Graph", err)
	}
}

func TestCompileRejectsUnknownEntryPoint(t *testing.T) {
	_, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		SetEntryPoint("missing").
		Compile()
	if err == nil || !strings.Contains(err.Error(), "entry point node 'missing' not found") {
		t.Errorf("err = %v, want entry point not found", err)
	}
}

func TestCompileRejectsUnknownEdgeTarget(t *testing.T) {
	_, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddEdge("a", "ghost").
		SetEntryPoint("a").
		Compile()
	if err == nil || !strings.Contains(err.Error(), "edge target 'ghost' not found") {
		t.Errorf("err = %v, want edge target not found", err)
	}
}

func TestCompileRejectsUnknownEdgeSource(t *testing.T) {
	_, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddEdge("ghost", "a").
		SetEntryPoint("a").
		Compile()
	if err == nil || !strings.Contains(err.Error(), "edge source 'ghost' not found") {
		t.Errorf("err = %v, want edge source not found", err)
	}
}

func TestCompileAllowsStartAndEndSentinels(t *testing.T) {
	_, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddEdge(START, "a").
		AddEdge("a", END).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
}

func TestCompileRejectsReservedNodeName(t *testing.T) {
	_, err := NewStateGraph[testState]().
		AddNode(END, incrementNode("end")).
		AddNode("a", incrementNode("a")).
		SetEntryPoint("a").
		Compile()
	if err == nil || !strings.Contains(err.Error(), "reserved") {
		t.Errorf("err = %v, want reserved name rejection", err)
	}
}

func TestCompileValidatesPathMapTargets(t *testing.T) {
	_, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddConditionalEdgesWithPathMap("a",
			func(testState) string { return "hot" },
			map[string]string{"hot": "ghost"}).
		SetEntryPoint("a").
		Compile()
	if err == nil || !strings.Contains(err.Error(), "path_map target 'ghost'") {
		t.Errorf("err = %v, want path_map target not found", err)
	}
}

func TestCompileAcceptsPathMapToEnd(t *testing.T) {
	_, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		AddConditionalEdgesWithPathMap("a",
			func(testState) string { return "stop" },
			map[string]string{"stop": END}).
		SetEntryPoint("a").
		Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
}

func TestRecursionLimitOptionRejectsZero(t *testing.T) {
	_, err := NewStateGraph[testState]().
		AddNode("a", incrementNode("a")).
		SetEntryPoint("a").
		Compile(WithRecursionLimit(0))
	if err == nil || !IsKind(err, KindConfig) {
		t.Errorf("err = %v, want Config kind", err)
	}
}
