package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

// recorder logs hook invocations in order for chain-ordering assertions.
type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, entry)
}

func (r *recorder) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

// tracingMiddleware records every hook it sees, tagged with its name.
type tracingMiddleware struct {
	Base
	rec *recorder
}

func newTracing(name string, rec *recorder) *tracingMiddleware {
	return &tracingMiddleware{Base: Base{MiddlewareName: name}, rec: rec}
}

func (m *tracingMiddleware) BeforeAgent(_ context.Context, _ *[]model.Message) {
	m.rec.add(m.Name() + ".before_agent")
}

func (m *tracingMiddleware) AfterAgent(_ context.Context, _ *[]model.Message) {
	m.rec.add(m.Name() + ".after_agent")
}

func (m *tracingMiddleware) BeforeModel(_ context.Context, _ *ModelRequest) {
	m.rec.add(m.Name() + ".before_model")
}

func (m *tracingMiddleware) AfterModel(_ context.Context, _ *ModelRequest, _ *ModelResponse) {
	m.rec.add(m.Name() + ".after_model")
}

func (m *tracingMiddleware) WrapModelCall(ctx context.Context, req ModelRequest, next ModelNext) (ModelResponse, error) {
	m.rec.add(m.Name() + ".wrap_enter")
	resp, err := next(ctx, req)
	m.rec.add(m.Name() + ".wrap_exit")
	return resp, err
}

func (m *tracingMiddleware) WrapToolCall(ctx context.Context, req ToolCallRequest, next ToolNext) (map[string]interface{}, error) {
	m.rec.add(m.Name() + ".tool_enter")
	out, err := next(ctx, req)
	m.rec.add(m.Name() + ".tool_exit")
	return out, err
}

func scriptedBase(rec *recorder) BaseModelCaller {
	return func(_ context.Context, _ ModelRequest) (ModelResponse, error) {
		rec.add("base")
		return ModelResponse{Message: model.AIMessage("ok")}, nil
	}
}

func TestChainHookOrdering(t *testing.T) {
	rec := &recorder{}
	chain := NewChain(newTracing("first", rec), newTracing("second", rec))

	resp, err := chain.CallModel(context.Background(), ModelRequest{}, scriptedBase(rec))
	if err != nil {
		t.Fatalf("CallModel() error = %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("response = %+v", resp.Message)
	}

	want := []string{
		"first.before_model",
		"second.before_model",
		"first.wrap_enter",
		"second.wrap_enter",
		"base",
		"second.wrap_exit",
		"first.wrap_exit",
		"second.after_model",
		"first.after_model",
	}
	got := rec.entries()
	if len(got) != len(want) {
		t.Fatalf("log = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("log[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestChainAgentHookOrdering(t *testing.T) {
	rec := &recorder{}
	chain := NewChain(newTracing("first", rec), newTracing("second", rec))

	msgs := []model.Message{model.HumanMessage("hi")}
	chain.RunBeforeAgent(context.Background(), &msgs)
	chain.RunAfterAgent(context.Background(), &msgs)

	want := []string{
		"first.before_agent",
		"second.before_agent",
		"second.after_agent",
		"first.after_agent",
	}
	got := rec.entries()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log = %v, want %v", got, want)
		}
	}
}

func TestChainToolCallNesting(t *testing.T) {
	rec := &recorder{}
	chain := NewChain(newTracing("outer", rec), newTracing("inner", rec))

	out, err := chain.CallTool(context.Background(), ToolCallRequest{ToolName: "echo"},
		func(_ context.Context, req ToolCallRequest) (map[string]interface{}, error) {
			rec.add("base")
			return map[string]interface{}{"tool": req.ToolName}, nil
		})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if out["tool"] != "echo" {
		t.Errorf("out = %v", out)
	}

	want := []string{"outer.tool_enter", "inner.tool_enter", "base", "inner.tool_exit", "outer.tool_exit"}
	got := rec.entries()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log = %v, want %v", got, want)
		}
	}
}

func TestEmptyChainDelegatesToBase(t *testing.T) {
	chain := NewChain()
	resp, err := chain.CallModel(context.Background(), ModelRequest{},
		func(_ context.Context, _ ModelRequest) (ModelResponse, error) {
			return ModelResponse{Message: model.AIMessage("direct")}, nil
		})
	if err != nil {
		t.Fatalf("CallModel() error = %v", err)
	}
	if resp.Message.Content != "direct" {
		t.Errorf("response = %+v", resp.Message)
	}
	if chain.Len() != 0 {
		t.Errorf("Len() = %d", chain.Len())
	}
}

func TestWrapErrorShortCircuitsAfterHooks(t *testing.T) {
	rec := &recorder{}
	chain := NewChain(newTracing("only", rec))
	boom := errors.New("model down")

	_, err := chain.CallModel(context.Background(), ModelRequest{},
		func(_ context.Context, _ ModelRequest) (ModelResponse, error) {
			return ModelResponse{}, boom
		})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	for _, entry := range rec.entries() {
		if entry == "only.after_model" {
			t.Error("after_model ran despite the call failing")
		}
	}
}

func TestRenderPrependsSystemPrompt(t *testing.T) {
	req := ModelRequest{
		Messages:     []model.Message{model.HumanMessage("hi")},
		SystemPrompt: "You are helpful.",
	}
	rendered := req.Render()
	if len(rendered) != 2 || !rendered[0].IsSystem() || !rendered[1].IsHuman() {
		t.Errorf("rendered = %+v", rendered)
	}

	bare := ModelRequest{Messages: []model.Message{model.HumanMessage("hi")}}
	if got := bare.Render(); len(got) != 1 {
		t.Errorf("rendered without prompt = %+v", got)
	}
}
