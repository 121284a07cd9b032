// Package agent builds the agent-loop graph topology on top of the graph
// executor: a model node and a tool node iterating until the model stops
// requesting tools, with the middleware chain around every model and tool
// call. It also provides the multi-agent swarm variant.
package agent

import "github.com/flowmind-ai/agentgraph/graph/model"

// MessageState is the standard state for agent loops: an ordered
// conversation. Merge appends the delta's messages, so nodes return only
// the messages they produced.
type MessageState struct {
	Messages []model.Message `json:"messages"`
}

// NewMessageState builds a state from initial messages.
func NewMessageState(messages ...model.Message) MessageState {
	return MessageState{Messages: messages}
}

// Merge implements graph.State by concatenation. The receiver's slice is
// never mutated in place, so fan-out branches can merge safely.
func (s MessageState) Merge(other MessageState) MessageState {
	merged := make([]model.Message, 0, len(s.Messages)+len(other.Messages))
	merged = append(merged, s.Messages...)
	merged = append(merged, other.Messages...)
	return MessageState{Messages: merged}
}

// LastMessage returns the final message, or false when empty.
func (s MessageState) LastMessage() (model.Message, bool) {
	return model.LastMessage(s.Messages)
}
