package graph

import (
	"errors"
	"fmt"

	"github.com/flowmind-ai/agentgraph/graph/store"
)

// Kind classifies an Error by the subsystem that produced it. Callers
// switch on Kind rather than comparing against sentinel values; the
// exported Err* sentinels remain for errors.Is checks on the common cases.
type Kind int

const (
	// KindGraph covers topology and execution failures: bad routing,
	// missing nodes, exceeded recursion limits, interrupts raised without
	// a configured checkpointer.
	KindGraph Kind = iota
	// KindModel covers chat-model provider failures.
	KindModel
	// KindTool covers tool execution failures, including rejection by a
	// HumanInTheLoop or Security middleware.
	KindTool
	// KindParsing covers malformed tool arguments or model output.
	KindParsing
	// KindStore covers store/checkpointer backend failures.
	KindStore
	// KindCache covers node-cache failures (fingerprinting, serialization).
	KindCache
	// KindEmbedding covers embedding-provider failures.
	KindEmbedding
	// KindVectorStore covers vector-store backend failures.
	KindVectorStore
	// KindMemory covers chat-history/session-memory failures.
	KindMemory
	// KindLoader covers document-loader failures.
	KindLoader
	// KindConfig covers configuration/validation failures.
	KindConfig
	// KindTimeout covers context-deadline and explicit timeout failures.
	KindTimeout
	// KindMaxStepsExceeded covers middleware step/tool-call limiters.
	KindMaxStepsExceeded
)

func (k Kind) String() string {
	switch k {
	case KindGraph:
		return "Graph"
	case KindModel:
		return "Model"
	case KindTool:
		return "Tool"
	case KindParsing:
		return "Parsing"
	case KindStore:
		return "Store"
	case KindCache:
		return "Cache"
	case KindEmbedding:
		return "Embedding"
	case KindVectorStore:
		return "VectorStore"
	case KindMemory:
		return "Memory"
	case KindLoader:
		return "Loader"
	case KindConfig:
		return "Config"
	case KindTimeout:
		return "Timeout"
	case KindMaxStepsExceeded:
		return "MaxStepsExceeded"
	default:
		return "Unknown"
	}
}

// Error is the single structured error type returned across the executor,
// middleware chain, and collaborator capabilities. It wraps an underlying
// cause (if any) under a Kind, so callers can both switch on Kind and
// errors.Unwrap through to provider-specific errors.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// MaxSteps is populated for KindMaxStepsExceeded, the limit that was hit.
	MaxSteps int
}

func (e *Error) Error() string {
	if e.Kind == KindMaxStepsExceeded {
		return fmt.Sprintf("MaxStepsExceeded: limit %d exceeded", e.MaxSteps)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError constructs an *Error of the given Kind wrapping cause (which may
// be nil).
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewMaxStepsExceeded builds the MaxStepsExceeded{limit} error middleware
// limiters (ModelCallLimit, ToolCallLimit) raise.
func NewMaxStepsExceeded(limit int) *Error {
	return &Error{Kind: KindMaxStepsExceeded, MaxSteps: limit}
}

// IsKind reports whether err (or anything it wraps) is a *Error of kind k.
// Backend failures surfacing as *store.Error classify as KindStore.
func IsKind(err error, k Kind) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind == k
	}
	var se *store.Error
	if errors.As(err, &se) {
		return k == KindStore
	}
	return false
}
