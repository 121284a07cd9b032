package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowmind-ai/agentgraph/graph"
	"github.com/flowmind-ai/agentgraph/graph/middleware"
	"github.com/flowmind-ai/agentgraph/graph/model"
	"github.com/flowmind-ai/agentgraph/graph/store"
	"github.com/flowmind-ai/agentgraph/graph/tool"
)

// Node names of the agent loop.
const (
	NodeAgent = "agent"
	NodeTools = "tools"
)

type loopConfig struct {
	systemPrompt         string
	middlewares          []middleware.Middleware
	checkpointer         graph.Checkpointer
	interruptBeforeTools bool
	interruptAfterAgent  bool
	filter               ToolFilter
	store                store.Store
	toolConfig           map[string]interface{}
	costTracker          *graph.CostTracker
	modelName            string
	graphOpts            []graph.Option
}

// Option configures the agent loop.
type Option func(*loopConfig)

// WithSystemPrompt sets the system prompt prepended to every model call.
func WithSystemPrompt(prompt string) Option {
	return func(c *loopConfig) { c.systemPrompt = prompt }
}

// WithMiddleware appends middlewares to the chain in declaration order.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *loopConfig) { c.middlewares = append(c.middlewares, mws...) }
}

// WithCheckpointer enables checkpoint persistence for the loop.
func WithCheckpointer(cp graph.Checkpointer) Option {
	return func(c *loopConfig) { c.checkpointer = cp }
}

// WithInterruptBeforeTools pauses the graph before every tool execution,
// for human approval of pending tool calls.
func WithInterruptBeforeTools() Option {
	return func(c *loopConfig) { c.interruptBeforeTools = true }
}

// WithInterruptAfterAgent pauses the graph after every model turn.
func WithInterruptAfterAgent() Option {
	return func(c *loopConfig) { c.interruptAfterAgent = true }
}

// WithToolFilter rewrites the tools offered to the model each turn.
func WithToolFilter(f ToolFilter) Option {
	return func(c *loopConfig) { c.filter = f }
}

// WithStore hands runtime-aware tools a store.
func WithStore(st store.Store) Option {
	return func(c *loopConfig) { c.store = st }
}

// WithToolConfig passes arbitrary configuration to runtime-aware tools.
func WithToolConfig(cfg map[string]interface{}) Option {
	return func(c *loopConfig) { c.toolConfig = cfg }
}

// WithCostTracker records token usage after every model call. modelName
// selects the pricing table entry.
func WithCostTracker(t *graph.CostTracker, modelName string) Option {
	return func(c *loopConfig) {
		c.costTracker = t
		c.modelName = modelName
	}
}

// WithGraphOptions forwards compile options (emitter, metrics, recursion
// limit) to the underlying graph.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(c *loopConfig) { c.graphOpts = append(c.graphOpts, opts...) }
}

// New builds the agent loop: an "agent" node invoking the model through
// the middleware chain, a "tools" node executing every requested tool call
// concurrently, and a conditional edge iterating between them until the
// model answers without tool calls.
//
//	g, err := agent.New(chatModel, []tool.Tool{searchTool},
//	    agent.WithSystemPrompt("You are a helpful assistant."),
//	    agent.WithMiddleware(middleware.NewModelCallLimit(10)),
//	)
//	result, err := g.Invoke(ctx, agent.NewMessageState(model.HumanMessage("hi")))
func New(m model.ChatModel, tools []tool.Tool, opts ...Option) (*graph.CompiledGraph[MessageState], error) {
	cfg := &loopConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	chain := middleware.NewChain(cfg.middlewares...)
	rt := &toolRuntime{
		tools:  make(map[string]tool.Tool, len(tools)),
		chain:  chain,
		store:  cfg.store,
		config: cfg.toolConfig,
	}
	specs := make([]model.ToolSpec, 0, len(tools))
	for _, t := range tools {
		rt.tools[t.Name()] = t
		specs = append(specs, toolSpec(t))
	}

	sg := graph.NewStateGraph[MessageState]().
		AddNode(NodeAgent, modelNode(m, specs, chain, cfg)).
		AddNode(NodeTools, rt.toolsNode()).
		AddConditionalEdgesWithPathMap(NodeAgent, routeAfterModel, map[string]string{
			"tools": NodeTools,
			"end":   graph.END,
		}).
		AddEdge(NodeTools, NodeAgent).
		SetEntryPoint(NodeAgent)

	if cfg.interruptBeforeTools {
		sg.InterruptBefore(NodeTools)
	}
	if cfg.interruptAfterAgent {
		sg.InterruptAfter(NodeAgent)
	}

	compileOpts := cfg.graphOpts
	if cfg.checkpointer != nil {
		compileOpts = append(compileOpts, graph.WithCheckpointer(cfg.checkpointer))
	}
	if cfg.costTracker != nil {
		compileOpts = append(compileOpts, graph.WithCostTracker(cfg.costTracker))
	}
	return sg.Compile(compileOpts...)
}

// routeAfterModel sends the loop to the tool node while the last message
// requests tools, and to END once the model answers directly.
func routeAfterModel(state MessageState) string {
	if last, ok := state.LastMessage(); ok && last.HasToolCalls() {
		return "tools"
	}
	return "end"
}

// modelNode invokes the model through the middleware chain and appends the
// response. BeforeAgent hooks run on the conversation's first model turn,
// AfterAgent hooks on the turn that produces a final (tool-free) answer.
func modelNode(m model.ChatModel, specs []model.ToolSpec, chain *middleware.Chain, cfg *loopConfig) graph.NodeFunc[MessageState] {
	return func(ctx context.Context, state MessageState) (graph.NodeOutput[MessageState], error) {
		messages := state.Messages
		turns := countModelTurns(messages)
		if turns == 0 {
			chain.RunBeforeAgent(ctx, &messages)
		}

		available := specs
		if cfg.filter != nil {
			available = cfg.filter.Filter(available, FilterContext{
				TurnCount: turns,
				LastTool:  lastToolCalled(messages),
				Metadata:  cfg.toolConfig,
			})
		}

		req := middleware.ModelRequest{
			Messages:     messages,
			Tools:        available,
			SystemPrompt: cfg.systemPrompt,
		}
		resp, err := chain.CallModel(ctx, req, func(ctx context.Context, req middleware.ModelRequest) (middleware.ModelResponse, error) {
			out, err := m.Chat(ctx, req.Render(), req.Tools)
			if err != nil {
				return middleware.ModelResponse{}, err
			}
			return middleware.ModelResponse{Message: out.Message(), Usage: out.Usage}, nil
		})
		if err != nil {
			var ge *graph.Error
			if errors.As(err, &ge) {
				return graph.NodeOutput[MessageState]{}, err
			}
			return graph.NodeOutput[MessageState]{}, graph.NewError(graph.KindModel, "model call failed", err)
		}

		if cfg.costTracker != nil && resp.Usage != nil {
			cfg.costTracker.Record(cfg.modelName, *resp.Usage, NodeAgent)
		}

		response := resp.Message
		ensureToolCallIDs(&response)
		messages = append(messages, response)

		if !response.HasToolCalls() {
			chain.RunAfterAgent(ctx, &messages)
		}
		return graph.StateOutput(MessageState{Messages: messages})
	}
}

// toolSpec renders a tool's metadata for the model.
func toolSpec(t tool.Tool) model.ToolSpec {
	return model.ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Schema:      t.Schema(),
	}
}

// countModelTurns counts completed assistant turns.
func countModelTurns(messages []model.Message) int {
	n := 0
	for _, m := range messages {
		if m.IsAI() {
			n++
		}
	}
	return n
}

// lastToolCalled names the tool behind the most recent tool-result
// message, resolving the call ID against its originating AI message.
func lastToolCalled(messages []model.Message) string {
	callNames := make(map[string]string)
	last := ""
	for _, m := range messages {
		for _, call := range m.ToolCalls {
			callNames[call.ID] = call.Name
		}
		if m.IsTool() {
			if name, ok := callNames[m.ToolCallID]; ok {
				last = name
			}
		}
	}
	return last
}

// ensureToolCallIDs assigns synthetic IDs to tool calls from providers
// that do not supply them, so results can be matched back.
func ensureToolCallIDs(m *model.Message) {
	for i := range m.ToolCalls {
		if m.ToolCalls[i].ID == "" {
			m.ToolCalls[i].ID = fmt.Sprintf("call_%s", uuid.NewString()[:8])
		}
	}
}
