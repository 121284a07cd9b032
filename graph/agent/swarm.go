package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flowmind-ai/agentgraph/graph"
	"github.com/flowmind-ai/agentgraph/graph/middleware"
	"github.com/flowmind-ai/agentgraph/graph/model"
	"github.com/flowmind-ai/agentgraph/graph/store"
	"github.com/flowmind-ai/agentgraph/graph/tool"
)

// handoffPrefix names the synthetic tools that transfer the conversation
// between swarm agents.
const handoffPrefix = "transfer_to_"

// SwarmAgent is one named member of a swarm: its own model, tools, and
// system prompt.
type SwarmAgent struct {
	Name         string
	Model        model.ChatModel
	Tools        []tool.Tool
	SystemPrompt string
}

// SwarmOptions configures a swarm.
type SwarmOptions struct {
	// Middlewares wrap every agent's model and tool calls.
	Middlewares []middleware.Middleware

	// Checkpointer enables checkpoint persistence across handoffs.
	Checkpointer graph.Checkpointer

	// Store is handed to runtime-aware tools.
	Store store.Store

	// GraphOptions forwards compile options to the underlying graph.
	GraphOptions []graph.Option
}

// NewSwarm builds a multi-agent graph. Each agent is a node; every agent
// additionally sees one handoff tool per peer (transfer_to_<name>) whose
// invocation routes the conversation to that peer. An agent answering
// without tool calls ends the swarm. Entry is the first declared agent.
func NewSwarm(agents []SwarmAgent, opts SwarmOptions) (*graph.CompiledGraph[MessageState], error) {
	if len(agents) == 0 {
		return nil, graph.NewError(graph.KindGraph, "swarm requires at least one agent", nil)
	}
	names := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		if a.Name == "" {
			return nil, graph.NewError(graph.KindGraph, "swarm agent name cannot be empty", nil)
		}
		if _, dup := names[a.Name]; dup {
			return nil, graph.NewError(graph.KindGraph, fmt.Sprintf("duplicate swarm agent '%s'", a.Name), nil)
		}
		names[a.Name] = struct{}{}
	}

	chain := middleware.NewChain(opts.Middlewares...)
	sg := graph.NewStateGraph[MessageState]()

	for _, a := range agents {
		rt := &toolRuntime{
			tools: make(map[string]tool.Tool, len(a.Tools)),
			chain: chain,
			store: opts.Store,
		}
		specs := make([]model.ToolSpec, 0, len(a.Tools)+len(agents)-1)
		for _, t := range a.Tools {
			rt.tools[t.Name()] = t
			specs = append(specs, toolSpec(t))
		}
		for _, peer := range agents {
			if peer.Name == a.Name {
				continue
			}
			specs = append(specs, model.ToolSpec{
				Name:        handoffPrefix + peer.Name,
				Description: fmt.Sprintf("Transfer the conversation to the %s agent.", peer.Name),
			})
		}

		toolsNode := a.Name + "_tools"
		sg.AddNode(a.Name, swarmAgentNode(a, specs, chain, toolsNode)).
			AddNode(toolsNode, rt.toolsNode()).
			AddEdge(toolsNode, a.Name)
	}

	sg.SetEntryPoint(agents[0].Name)

	compileOpts := opts.GraphOptions
	if opts.Checkpointer != nil {
		compileOpts = append(compileOpts, graph.WithCheckpointer(opts.Checkpointer))
	}
	return sg.Compile(compileOpts...)
}

// swarmAgentNode invokes one agent's model and routes on the response: a
// handoff call jumps to the named peer, regular tool calls go to the
// agent's tool node, and a direct answer ends the swarm.
func swarmAgentNode(a SwarmAgent, specs []model.ToolSpec, chain *middleware.Chain, toolsNode string) graph.NodeFunc[MessageState] {
	return func(ctx context.Context, state MessageState) (graph.NodeOutput[MessageState], error) {
		req := middleware.ModelRequest{
			Messages:     state.Messages,
			Tools:        specs,
			SystemPrompt: a.SystemPrompt,
		}
		resp, err := chain.CallModel(ctx, req, func(ctx context.Context, req middleware.ModelRequest) (middleware.ModelResponse, error) {
			out, err := a.Model.Chat(ctx, req.Render(), req.Tools)
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
			return graph.NodeOutput[MessageState]{}, graph.NewError(graph.KindModel,
				fmt.Sprintf("model call failed for agent '%s'", a.Name), err)
		}

		response := resp.Message
		ensureToolCallIDs(&response)

		// A handoff pre-empts everything else: record the transfer as a
		// completed tool round and jump to the target agent.
		if target, call, ok := handoffTarget(response); ok {
			delta := MessageState{Messages: []model.Message{
				response,
				model.ToolMessage(fmt.Sprintf(`{"transferred_to": %q}`, target), call.ID),
			}}
			return graph.CommandOutput(graph.Command[MessageState]{
				Update: &delta,
				Goto:   graph.GotoOne[MessageState](target),
			})
		}

		delta := MessageState{Messages: []model.Message{response}}
		next := graph.END
		if response.HasToolCalls() {
			next = toolsNode
		}
		return graph.CommandOutput(graph.Command[MessageState]{
			Update: &delta,
			Goto:   graph.GotoOne[MessageState](next),
		})
	}
}

// handoffTarget returns the peer named by the response's first handoff
// call, when one is present.
func handoffTarget(m model.Message) (string, model.ToolCall, bool) {
	for _, call := range m.ToolCalls {
		if strings.HasPrefix(call.Name, handoffPrefix) {
			return strings.TrimPrefix(call.Name, handoffPrefix), call, true
		}
	}
	return "", model.ToolCall{}, false
}
