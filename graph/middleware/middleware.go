// Package middleware implements the reentrant before/after/wrap pipeline
// that sits around every model call and every tool call in the agent loop
// (graph/agent). A chain is an ordered slice of hook implementations, and
// the order is the contract: before/after hooks run forward/reverse,
// wrap_* hooks nest Russian-doll style with the first-registered outermost.
package middleware

import (
	"context"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

// ModelRequest is the mutable request a wrap_model_call/before_model hook
// may edit before it reaches the base ChatModel.
type ModelRequest struct {
	Messages   []model.Message
	Tools      []model.ToolSpec
	ToolChoice string

	// SystemPrompt is prepended as a system message when the request is
	// rendered for the ChatModel. Kept separate so context-editing hooks
	// can trim Messages without touching it.
	SystemPrompt string
}

// Render flattens the request into the message list sent to a ChatModel,
// prepending the system prompt when present.
func (r ModelRequest) Render() []model.Message {
	if r.SystemPrompt == "" {
		return r.Messages
	}
	out := make([]model.Message, 0, len(r.Messages)+1)
	out = append(out, model.SystemMessage(r.SystemPrompt))
	return append(out, r.Messages...)
}

// ModelResponse is the mutable response an after_model/wrap_model_call hook
// may edit before the agent node appends it to state.
type ModelResponse struct {
	Message model.Message
	Usage   *model.Usage
}

// ToolCallRequest is the request a wrap_tool_call hook sees for a single
// tool invocation. State and Store are passed as `any` to keep the
// middleware package state-type-agnostic; a runtime-aware Tool
// implementation type-asserts them back.
type ToolCallRequest struct {
	ToolName   string
	ToolCallID string
	Input      map[string]interface{}
	State      any
	Store      any
	Config     map[string]interface{}
}

// ModelNext invokes the next inner wrap_model_call middleware, or the base
// ChatModel when there are no more layers.
type ModelNext func(ctx context.Context, req ModelRequest) (ModelResponse, error)

// ToolNext invokes the next inner wrap_tool_call middleware, or the base
// Tool.Call when there are no more layers.
type ToolNext func(ctx context.Context, req ToolCallRequest) (map[string]interface{}, error)

// Middleware exposes up to six optional lifecycle hooks around a model or
// tool invocation. Every method has a no-op default via Base, which
// concrete middlewares embed, overriding only the hooks they need.
type Middleware interface {
	// BeforeAgent runs once at invocation start, in forward declaration
	// order across the chain. It may edit messages in place (e.g. inject a
	// system prompt addendum).
	BeforeAgent(ctx context.Context, messages *[]model.Message)

	// AfterAgent runs once at invocation end, in reverse declaration order.
	AfterAgent(ctx context.Context, messages *[]model.Message)

	// BeforeModel runs before each model call, forward order.
	BeforeModel(ctx context.Context, req *ModelRequest)

	// AfterModel runs after each model call, reverse order.
	AfterModel(ctx context.Context, req *ModelRequest, resp *ModelResponse)

	// WrapModelCall decorates a single model call. next invokes the next
	// inner middleware or the base model caller. The first-registered
	// middleware is outermost.
	WrapModelCall(ctx context.Context, req ModelRequest, next ModelNext) (ModelResponse, error)

	// WrapToolCall decorates a single tool invocation, same nesting rule.
	WrapToolCall(ctx context.Context, req ToolCallRequest, next ToolNext) (map[string]interface{}, error)

	// Name identifies the middleware for diagnostics and metadata
	// (e.g. ContextEditing reports which strategy fired, Security reports
	// which tool it bypassed).
	Name() string
}

// Base implements Middleware with every hook a no-op and WrapModelCall /
// WrapToolCall delegating straight to next. Concrete middlewares embed
// Base and override only the hooks they need, so e.g. ModelCallLimit only
// writes WrapModelCall and inherits everything else.
type Base struct {
	MiddlewareName string
}

func (Base) BeforeAgent(context.Context, *[]model.Message) {}
func (Base) AfterAgent(context.Context, *[]model.Message)  {}
func (Base) BeforeModel(context.Context, *ModelRequest)    {}
func (Base) AfterModel(context.Context, *ModelRequest, *ModelResponse) {
}

func (Base) WrapModelCall(ctx context.Context, req ModelRequest, next ModelNext) (ModelResponse, error) {
	return next(ctx, req)
}

func (Base) WrapToolCall(ctx context.Context, req ToolCallRequest, next ToolNext) (map[string]interface{}, error) {
	return next(ctx, req)
}

func (b Base) Name() string {
	if b.MiddlewareName == "" {
		return "base"
	}
	return b.MiddlewareName
}

// BaseModelCaller is the innermost ModelNext: it has no further middleware
// to delegate to and must be supplied by the caller of Chain.CallModel.
type BaseModelCaller func(ctx context.Context, req ModelRequest) (ModelResponse, error)

// BaseToolCaller is the innermost ToolNext.
type BaseToolCaller func(ctx context.Context, req ToolCallRequest) (map[string]interface{}, error)

// Chain is an ordered stack of Middleware. It is stateless beyond the
// slice itself: individual middlewares own whatever counters or caches
// they need (ModelCallLimit keeps its own counter, for instance), since the
// chain may be shared across concurrent invocations of the same compiled
// graph.
type Chain struct {
	stack []Middleware
}

// NewChain builds a Chain in the given declaration order. before_* hooks
// run in this order; after_* hooks run in reverse; wrap_* hooks nest with
// stack[0] outermost.
func NewChain(mws ...Middleware) *Chain {
	return &Chain{stack: mws}
}

// Len reports how many middlewares are registered.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.stack)
}

// RunBeforeAgent runs every middleware's BeforeAgent hook, forward order.
func (c *Chain) RunBeforeAgent(ctx context.Context, messages *[]model.Message) {
	if c == nil {
		return
	}
	for _, mw := range c.stack {
		mw.BeforeAgent(ctx, messages)
	}
}

// RunAfterAgent runs every middleware's AfterAgent hook, reverse order.
func (c *Chain) RunAfterAgent(ctx context.Context, messages *[]model.Message) {
	if c == nil {
		return
	}
	for i := len(c.stack) - 1; i >= 0; i-- {
		c.stack[i].AfterAgent(ctx, messages)
	}
}

// RunBeforeModel runs every middleware's BeforeModel hook, forward order.
func (c *Chain) RunBeforeModel(ctx context.Context, req *ModelRequest) {
	if c == nil {
		return
	}
	for _, mw := range c.stack {
		mw.BeforeModel(ctx, req)
	}
}

// RunAfterModel runs every middleware's AfterModel hook, reverse order.
func (c *Chain) RunAfterModel(ctx context.Context, req *ModelRequest, resp *ModelResponse) {
	if c == nil {
		return
	}
	for i := len(c.stack) - 1; i >= 0; i-- {
		c.stack[i].AfterModel(ctx, req, resp)
	}
}

// CallModel threads req through BeforeModel, the nested WrapModelCall
// stack (first-registered outermost), base, then AfterModel.
func (c *Chain) CallModel(ctx context.Context, req ModelRequest, base BaseModelCaller) (ModelResponse, error) {
	c.RunBeforeModel(ctx, &req)

	next := ModelNext(base)
	if c != nil {
		for i := len(c.stack) - 1; i >= 0; i-- {
			mw := c.stack[i]
			inner := next
			next = func(ctx context.Context, req ModelRequest) (ModelResponse, error) {
				return mw.WrapModelCall(ctx, req, inner)
			}
		}
	}

	resp, err := next(ctx, req)
	if err != nil {
		return resp, err
	}
	c.RunAfterModel(ctx, &req, &resp)
	return resp, nil
}

// CallTool threads req through the nested WrapToolCall stack, first-
// registered outermost, base innermost.
func (c *Chain) CallTool(ctx context.Context, req ToolCallRequest, base BaseToolCaller) (map[string]interface{}, error) {
	next := ToolNext(base)
	if c != nil {
		for i := len(c.stack) - 1; i >= 0; i-- {
			mw := c.stack[i]
			inner := next
			next = func(ctx context.Context, req ToolCallRequest) (map[string]interface{}, error) {
				return mw.WrapToolCall(ctx, req, inner)
			}
		}
	}
	return next(ctx, req)
}
