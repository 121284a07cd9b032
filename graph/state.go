// Package graph provides a compiled-graph execution engine for stateful
// agent workflows: named nodes reading and writing a shared mergeable state,
// static and conditional edges, command-driven routing overrides, fan-out
// with deferred fan-in, per-node caching, interrupts, and durable
// checkpoints.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// State is the constraint every graph state type must satisfy.
//
// Merge combines a delta produced by a node into the accumulated state and
// returns the result. It is the operation that defines how state evolves:
//   - Deterministic: same (prev, delta) always produces the same result
//   - Commutative on fan-out deltas: branches merge in completion order
//
// Common patterns:
//   - Accumulate: add counters, append message slices
//   - Replace: non-zero delta fields overwrite previous values
//
// Example:
//
//	type MyState struct {
//	    Counter int      `json:"counter"`
//	    Visited []string `json:"visited"`
//	}
//
//	func (s MyState) Merge(other MyState) MyState {
//	    s.Counter += other.Counter
//	    s.Visited = append(append([]string(nil), s.Visited...), other.Visited...)
//	    return s
//	}
//
// State values must round-trip through encoding/json: the executor
// serializes them for checkpoints, cache entries, and fingerprints.
type State[S any] interface {
	Merge(other S) S
}

// Fingerprint returns a stable content hash of a state value.
//
// The fingerprint is the sha256 of the state's canonical JSON form.
// encoding/json writes map keys in sorted order and struct fields in
// declaration order, so two semantically equal states always hash
// identically. Fingerprints key the per-node cache (see CachePolicy).
func Fingerprint[S State[S]](state S) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", NewError(KindCache, "failed to fingerprint state", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// serializeState produces the canonical JSON form used for checkpoints.
func serializeState[S State[S]](state S) (json.RawMessage, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, NewError(KindGraph, "failed to serialize state", err)
	}
	return data, nil
}

// deserializeState restores a state from its canonical JSON form.
func deserializeState[S State[S]](data json.RawMessage) (S, error) {
	var state S
	if err := json.Unmarshal(data, &state); err != nil {
		return state, NewError(KindGraph, "failed to deserialize checkpoint state", err)
	}
	return state, nil
}
