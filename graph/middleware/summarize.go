package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowmind-ai/agentgraph/graph"
	"github.com/flowmind-ai/agentgraph/graph/model"
)

// Summarization replaces older conversation history with an LLM-written
// summary once the estimated token count exceeds MaxTokens. The most
// recent messages that fit in half the budget are kept verbatim; everything
// before them is condensed into a single system message.
type Summarization struct {
	Base

	// Model writes the summaries.
	Model model.ChatModel

	// MaxTokens is the budget that triggers summarization.
	MaxTokens int

	// Counter estimates message sizes. Defaults to the heuristic counter.
	Counter model.TokenCounter
}

// NewSummarization builds the middleware with the heuristic token counter.
func NewSummarization(m model.ChatModel, maxTokens int) *Summarization {
	return &Summarization{
		Base:      Base{MiddlewareName: "summarization"},
		Model:     m,
		MaxTokens: maxTokens,
		Counter:   model.HeuristicTokenCounter{},
	}
}

// WrapModelCall implements Middleware. Summarization wraps rather than
// using BeforeModel because it makes its own model call and must surface
// that call's failure as the request's failure.
func (s *Summarization) WrapModelCall(ctx context.Context, req ModelRequest, next ModelNext) (ModelResponse, error) {
	counter := s.Counter
	if counter == nil {
		counter = model.HeuristicTokenCounter{}
	}
	total := counter.CountMessages(req.Messages)
	if total <= s.MaxTokens {
		return next(ctx, req)
	}

	// Keep the most recent messages that fit in half the budget.
	halfBudget := s.MaxTokens / 2
	keepFrom := len(req.Messages)
	keptTokens := 0
	for i := len(req.Messages) - 1; i >= 0; i-- {
		t := counter.CountMessages(req.Messages[i : i+1])
		if keptTokens+t > halfBudget {
			break
		}
		keptTokens += t
		keepFrom = i
	}
	if keepFrom == 0 {
		return next(ctx, req)
	}

	var transcript strings.Builder
	for _, m := range req.Messages[:keepFrom] {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	out, err := s.Model.Chat(ctx, []model.Message{
		model.SystemMessage("You are a conversation summarizer. Output a brief summary."),
		model.HumanMessage("Summarize the following conversation concisely, preserving key facts and context:\n\n" + transcript.String()),
	}, nil)
	if err != nil {
		return ModelResponse{}, graph.NewError(graph.KindModel, "summarization call failed", err)
	}

	condensed := make([]model.Message, 0, len(req.Messages)-keepFrom+1)
	condensed = append(condensed, model.SystemMessage("[Previous conversation summary]: "+out.Text))
	condensed = append(condensed, req.Messages[keepFrom:]...)
	req.Messages = condensed
	return next(ctx, req)
}
