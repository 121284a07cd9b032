package graph

import "errors"

// ErrNoCheckpoint is returned when a resume or state operation targets a
// thread that has no saved checkpoints.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// ErrNoCheckpointer is returned when a checkpoint-dependent operation runs
// on a graph compiled without WithCheckpointer.
var ErrNoCheckpointer = errors.New("no checkpointer configured")

// ErrMaxIterations is returned when an invocation exceeds the recursion
// limit without reaching END.
var ErrMaxIterations = errors.New("max iterations exceeded: possible infinite loop")
