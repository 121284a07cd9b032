package graph

import (
	"context"
	"testing"
)

// testState is the shared fixture state: a counter that accumulates and a
// visit log that appends.
type testState struct {
	Counter int      `json:"counter"`
	Visited []string `json:"visited"`
	Temp    int      `json:"temp,omitempty"`
}

func (s testState) Merge(other testState) testState {
	s.Counter += other.Counter
	s.Visited = append(append([]string(nil), s.Visited...), other.Visited...)
	if other.Temp != 0 {
		s.Temp = other.Temp
	}
	return s
}

// incrementNode increments the counter and records its name.
func incrementNode(name string) NodeFunc[testState] {
	return func(_ context.Context, s testState) (NodeOutput[testState], error) {
		s.Counter++
		s.Visited = append(s.Visited, name)
		return StateOutput(s)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	s := testState{Counter: 3, Visited: []string{"a", "b"}}
	fp1, err := Fingerprint(s)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	fp2, err := Fingerprint(s)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if fp1 != fp2 {
		t.Errorf("fingerprints differ: %s vs %s", fp1, fp2)
	}
}

func TestFingerprintDistinguishesStates(t *testing.T) {
	fp1, _ := Fingerprint(testState{Counter: 1})
	fp2, _ := Fingerprint(testState{Counter: 2})
	if fp1 == fp2 {
		t.Error("different states produced identical fingerprints")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	s := testState{Counter: 7, Visited: []string{"x", "y"}}
	data, err := serializeState(s)
	if err != nil {
		t.Fatalf("serializeState() error = %v", err)
	}
	restored, err := deserializeState[testState](data)
	if err != nil {
		t.Fatalf("deserializeState() error = %v", err)
	}
	if restored.Counter != 7 || len(restored.Visited) != 2 || restored.Visited[1] != "y" {
		t.Errorf("round trip mismatch: %+v", restored)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	s := testState{Counter: 1, Visited: []string{"a"}}
	d1, _ := serializeState(s)
	d2, _ := serializeState(s)
	if string(d1) != string(d2) {
		t.Errorf("serialization not byte-stable: %s vs %s", d1, d2)
	}
}

func TestDeserializedStateIsIndependent(t *testing.T) {
	// Cache hits hand out states decoded from the stored bytes; mutating
	// one must never reach back into the cache.
	s := testState{Counter: 1, Visited: []string{"a"}}
	data, err := serializeState(s)
	if err != nil {
		t.Fatalf("serializeState() error = %v", err)
	}
	restored, err := deserializeState[testState](data)
	if err != nil {
		t.Fatalf("deserializeState() error = %v", err)
	}
	restored.Visited[0] = "mutated"
	if s.Visited[0] != "a" {
		t.Error("restored state aliases the original")
	}
}

func TestMergeAccumulates(t *testing.T) {
	a := testState{Counter: 1, Visited: []string{"a"}}
	b := testState{Counter: 2, Visited: []string{"b"}}
	merged := a.Merge(b)
	if merged.Counter != 3 {
		t.Errorf("Counter = %d, want 3", merged.Counter)
	}
	if len(merged.Visited) != 2 || merged.Visited[0] != "a" || merged.Visited[1] != "b" {
		t.Errorf("Visited = %v", merged.Visited)
	}
	// Merge must not mutate its receiver's backing array.
	if len(a.Visited) != 1 {
		t.Error("Merge mutated the receiver")
	}
}
