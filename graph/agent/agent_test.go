package agent

import (
	"context"
	"testing"

	"github.com/flowmind-ai/agentgraph/graph"
	"github.com/flowmind-ai/agentgraph/graph/middleware"
	"github.com/flowmind-ai/agentgraph/graph/model"
	"github.com/flowmind-ai/agentgraph/graph/store"
	"github.com/flowmind-ai/agentgraph/graph/tool"
)

func echoTool() tool.Tool {
	return tool.NewFuncTool("echo", "echoes its input", nil,
		func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			return input, nil
		})
}

func TestAgentDirectAnswer(t *testing.T) {
	m := &model.MockChatModel{Responses: []model.ChatOut{{Text: "I am a helpful assistant."}}}
	g, err := New(m, []tool.Tool{echoTool()}, WithSystemPrompt("You are a helpful assistant."))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := g.Invoke(context.Background(), NewMessageState(model.HumanMessage("hi")))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	state := result.IntoState()
	if len(state.Messages) != 2 {
		t.Fatalf("messages = %+v", state.Messages)
	}
	if !state.Messages[0].IsHuman() || !state.Messages[1].IsAI() {
		t.Errorf("roles = %s,%s", state.Messages[0].Role, state.Messages[1].Role)
	}
	if state.Messages[1].Content != "I am a helpful assistant." {
		t.Errorf("content = %q", state.Messages[1].Content)
	}

	// The system prompt reaches the model but never lands in state.
	if len(m.Calls) != 1 {
		t.Fatalf("model calls = %d", len(m.Calls))
	}
	if !m.Calls[0].Messages[0].IsSystem() {
		t.Error("system prompt not rendered to the model")
	}
}

func TestAgentLoopWithOneToolCall(t *testing.T) {
	m := &model.MockChatModel{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{{ID: "call-1", Name: "echo", Input: map[string]interface{}{"text": "hello"}}}},
		{Text: "The echo returned hello."},
	}}
	g, err := New(m, []tool.Tool{echoTool()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := g.Invoke(context.Background(), NewMessageState(model.HumanMessage("echo hello")))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	state := result.IntoState()

	// human, ai(tool_call), tool(result), ai(final)
	if len(state.Messages) != 4 {
		t.Fatalf("messages = %d, want 4: %+v", len(state.Messages), state.Messages)
	}
	if !state.Messages[1].HasToolCalls() {
		t.Error("tool-call message missing")
	}
	toolMsg := state.Messages[2]
	if !toolMsg.IsTool() || toolMsg.ToolCallID != "call-1" {
		t.Errorf("tool message = %+v", toolMsg)
	}
	final := state.Messages[3]
	if !final.IsAI() || final.Content != "The echo returned hello." {
		t.Errorf("final = %+v", final)
	}
	if m.CallCount() != 2 {
		t.Errorf("model calls = %d, want 2", m.CallCount())
	}
}

func TestAgentToolsAdvertisedToModel(t *testing.T) {
	m := &model.MockChatModel{Responses: []model.ChatOut{{Text: "done"}}}
	g, err := New(m, []tool.Tool{echoTool()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := g.Invoke(context.Background(), NewMessageState(model.HumanMessage("hi"))); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if len(m.Calls[0].Tools) != 1 || m.Calls[0].Tools[0].Name != "echo" {
		t.Errorf("advertised tools = %+v", m.Calls[0].Tools)
	}
}

func TestAgentToolFilterRewritesTools(t *testing.T) {
	m := &model.MockChatModel{Responses: []model.ChatOut{{Text: "done"}}}
	g, err := New(m,
		[]tool.Tool{echoTool(), tool.NewFuncTool("hidden", "never offered", nil,
			func(_ context.Context, in map[string]interface{}) (map[string]interface{}, error) { return in, nil })},
		WithToolFilter(NewAllowListFilter("echo")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := g.Invoke(context.Background(), NewMessageState(model.HumanMessage("hi"))); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if len(m.Calls[0].Tools) != 1 || m.Calls[0].Tools[0].Name != "echo" {
		t.Errorf("filtered tools = %+v", m.Calls[0].Tools)
	}
}

func TestAgentWithCheckpointer(t *testing.T) {
	saver := graph.NewStoreCheckpointer(store.NewMemoryStore())
	m := &model.MockChatModel{Responses: []model.ChatOut{{Text: "Persisted response"}}}
	g, err := New(m, []tool.Tool{echoTool()}, WithCheckpointer(saver))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	cfg := graph.NewCheckpointConfig("agent-thread")
	result, err := g.InvokeWithConfig(ctx, NewMessageState(model.HumanMessage("hi")), &cfg)
	if err != nil {
		t.Fatalf("InvokeWithConfig() error = %v", err)
	}
	if len(result.State().Messages) != 2 {
		t.Fatalf("messages = %+v", result.State().Messages)
	}

	saved, err := g.GetState(ctx, cfg)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if saved == nil || len(saved.Messages) != 2 {
		t.Errorf("saved state = %+v", saved)
	}
}

func TestAgentInterruptBeforeTools(t *testing.T) {
	saver := graph.NewMemorySaver()
	m := &model.MockChatModel{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{{ID: "call-1", Name: "echo", Input: map[string]interface{}{"x": 1.0}}}},
		{Text: "done"},
	}}
	g, err := New(m, []tool.Tool{echoTool()},
		WithCheckpointer(saver),
		WithInterruptBeforeTools())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	cfg := graph.NewCheckpointConfig("approve-thread")
	result, err := g.InvokeWithConfig(ctx, NewMessageState(model.HumanMessage("run it")), &cfg)
	if err != nil {
		t.Fatalf("InvokeWithConfig() error = %v", err)
	}
	if !result.IsInterrupted() {
		t.Fatal("graph did not pause before tools")
	}
	// The pending tool call is visible in the interrupted state.
	last, _ := result.State().LastMessage()
	if !last.HasToolCalls() {
		t.Errorf("interrupted state = %+v", result.State().Messages)
	}

	resumed, err := g.InvokeCommand(ctx, graph.ResumeCommand[MessageState]("approved"), &cfg)
	if err != nil {
		t.Fatalf("resume error = %v", err)
	}
	if !resumed.IsComplete() {
		t.Fatal("resume did not complete")
	}
	final, _ := resumed.State().LastMessage()
	if final.Content != "done" {
		t.Errorf("final = %+v", final)
	}
}

func TestAgentMiddlewareLimitsModelCalls(t *testing.T) {
	// The model always asks for another tool call; the limiter must stop
	// the loop.
	m := &model.MockChatModel{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{{ID: "c1", Name: "echo", Input: map[string]interface{}{}}}},
	}}
	g, err := New(m, []tool.Tool{echoTool()},
		WithMiddleware(middleware.NewModelCallLimit(2)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = g.Invoke(context.Background(), NewMessageState(model.HumanMessage("loop")))
	if err == nil {
		t.Fatal("unbounded loop completed")
	}
	if !graph.IsKind(err, graph.KindMaxStepsExceeded) {
		t.Errorf("err = %v, want MaxStepsExceeded", err)
	}
}

func TestAgentCostTracking(t *testing.T) {
	tracker := graph.NewCostTracker()
	m := &model.MockChatModel{Responses: []model.ChatOut{
		{Text: "done", Usage: &model.Usage{InputTokens: 1000, OutputTokens: 500}},
	}}
	g, err := New(m, nil, WithCostTracker(tracker, "gpt-4o"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := g.Invoke(context.Background(), NewMessageState(model.HumanMessage("hi"))); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	in, out := tracker.TokenUsage()
	if in != 1000 || out != 500 {
		t.Errorf("usage = %d,%d", in, out)
	}
	if tracker.Total() <= 0 {
		t.Error("cost not recorded")
	}
	if byNode := tracker.ByNode(); byNode[NodeAgent] <= 0 {
		t.Errorf("ByNode() = %v, want cost attributed to the agent node", byNode)
	}
}

func TestAgentSynthesizesToolCallIDs(t *testing.T) {
	m := &model.MockChatModel{Responses: []model.ChatOut{
		{ToolCalls: []model.ToolCall{{Name: "echo", Input: map[string]interface{}{}}}},
		{Text: "done"},
	}}
	g, err := New(m, []tool.Tool{echoTool()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := g.Invoke(context.Background(), NewMessageState(model.HumanMessage("go")))
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	state := result.IntoState()
	aiMsg := state.Messages[1]
	if aiMsg.ToolCalls[0].ID == "" {
		t.Fatal("tool call left without an ID")
	}
	if state.Messages[2].ToolCallID != aiMsg.ToolCalls[0].ID {
		t.Error("tool result not linked to the synthesized ID")
	}
}
