package graph

import "context"

// contextKey is a private type for context value keys so keys from this
// package never collide with other packages'.
type contextKey string

const (
	// threadIDKey carries the invocation's thread ID, when configured.
	threadIDKey contextKey = "agentgraph.thread_id"

	// nodeNameKey carries the currently executing node's name.
	nodeNameKey contextKey = "agentgraph.node"

	// stepKey carries the current transition count.
	stepKey contextKey = "agentgraph.step"

	// resumeValueKey carries the caller's resume value into the node that
	// previously interrupted.
	resumeValueKey contextKey = "agentgraph.resume_value"
)

// ThreadID returns the thread ID of the current invocation, when one was
// configured via CheckpointConfig.
func ThreadID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(threadIDKey).(string)
	return v, ok
}

// NodeName returns the name of the node the context was built for.
func NodeName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(nodeNameKey).(string)
	return v, ok
}

// Step returns the current transition count within the invocation.
func Step(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(stepKey).(int)
	return v, ok
}

// ResumeValue returns the value passed to ResumeCommand when the current
// node is being re-executed after an interrupt. ok is false on the node's
// first (non-resumed) execution.
func ResumeValue(ctx context.Context) (any, bool) {
	v := ctx.Value(resumeValueKey)
	return v, v != nil
}

func withResumeValue(ctx context.Context, v any) context.Context {
	if v == nil {
		return ctx
	}
	return context.WithValue(ctx, resumeValueKey, v)
}

func withNodeMetadata(ctx context.Context, threadID, node string, step int) context.Context {
	if threadID != "" {
		ctx = context.WithValue(ctx, threadIDKey, threadID)
	}
	ctx = context.WithValue(ctx, nodeNameKey, node)
	return context.WithValue(ctx, stepKey, step)
}
