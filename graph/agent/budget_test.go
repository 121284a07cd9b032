package agent

import (
	"testing"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

func TestHeuristicCounter(t *testing.T) {
	c := model.HeuristicTokenCounter{}
	if got := c.CountText(""); got != 0 {
		t.Errorf("empty = %d", got)
	}
	if got := c.CountText("hello world!"); got != 3 {
		t.Errorf("12 chars = %d, want 3", got)
	}
	if got := c.CountText("hi"); got != 1 {
		t.Errorf("short = %d, want minimum 1", got)
	}
	msgs := []model.Message{model.HumanMessage("hello"), model.AIMessage("world")}
	if got := c.CountMessages(msgs); got != 10 {
		t.Errorf("messages = %d, want 2*(1+4)", got)
	}
}

func TestBudgetWithinLimitKeepsEverything(t *testing.T) {
	budget := NewContextBudget(1000, model.HeuristicTokenCounter{})
	out := budget.Assemble([]ContextSlot{
		{Name: "system", Priority: PriorityCritical, Messages: []model.Message{model.SystemMessage("You are helpful")}},
		{Name: "history", Priority: PriorityNormal, Messages: []model.Message{model.HumanMessage("Hi"), model.AIMessage("Hello!")}},
	})
	if len(out) != 3 {
		t.Errorf("assembled %d messages, want 3", len(out))
	}
}

func TestBudgetPriorityOrdering(t *testing.T) {
	budget := NewContextBudget(10, model.HeuristicTokenCounter{})
	out := budget.Assemble([]ContextSlot{
		{Name: "low", Priority: PriorityLow, Messages: []model.Message{model.HumanMessage("low priority message here")}},
		{Name: "critical", Priority: PriorityCritical, Messages: []model.Message{model.SystemMessage("hi")}},
	})
	if len(out) == 0 || !out[0].IsSystem() {
		t.Errorf("assembled = %+v, want critical first", out)
	}
}

func TestBudgetDropsLowPriorityWhenTight(t *testing.T) {
	budget := NewContextBudget(12, model.HeuristicTokenCounter{})
	out := budget.Assemble([]ContextSlot{
		{Name: "system", Priority: PriorityCritical, Messages: []model.Message{model.SystemMessage("You are helpful")}},
		{Name: "extra", Priority: PriorityLow, Messages: []model.Message{
			model.HumanMessage("a very long message that should exceed budget limits easily"),
		}},
	})
	if len(out) != 1 || !out[0].IsSystem() {
		t.Errorf("assembled = %+v, want only the critical slot", out)
	}
}

func TestBudgetTiesPreserveCallerOrder(t *testing.T) {
	budget := NewContextBudget(1000, model.HeuristicTokenCounter{})
	out := budget.Assemble([]ContextSlot{
		{Name: "first", Priority: PriorityNormal, Messages: []model.Message{model.HumanMessage("first")}},
		{Name: "second", Priority: PriorityNormal, Messages: []model.Message{model.HumanMessage("second")}},
	})
	if len(out) != 2 || out[0].Content != "first" || out[1].Content != "second" {
		t.Errorf("assembled = %+v", out)
	}
}

func TestBudgetReservedTokensGuaranteeSlot(t *testing.T) {
	counter := model.HeuristicTokenCounter{}
	// "keep me" costs 5 tokens; a higher-priority slot would
	// otherwise drain the whole pool.
	budget := NewContextBudget(20, counter)
	out := budget.Assemble([]ContextSlot{
		{Name: "bulk", Priority: PriorityHigh, Messages: []model.Message{
			model.HumanMessage("this message is long enough to consume the whole pool on its own"),
		}},
		{Name: "guaranteed", Priority: PriorityLow, ReservedTokens: 10, Messages: []model.Message{
			model.HumanMessage("keep me"),
		}},
	})
	found := false
	for _, m := range out {
		if m.Content == "keep me" {
			found = true
		}
	}
	if !found {
		t.Errorf("reserved slot dropped: %+v", out)
	}
}
