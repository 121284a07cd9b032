package agent

import (
	"sort"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

// Priority orders context slots when the token budget is tight. Higher
// priorities win; ties preserve caller order.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// ContextSlot is one prioritized group of messages competing for the
// budget.
type ContextSlot struct {
	// Name labels the slot for diagnostics.
	Name string

	// Priority decides who wins when the budget is exceeded.
	Priority Priority

	// Messages are included whole, in order, as budget allows.
	Messages []model.Message

	// ReservedTokens are set aside for this slot before the shared pool
	// is handed out, guaranteeing the slot a minimum allowance.
	ReservedTokens int
}

// ContextBudget assembles a bounded message window from prioritized slots.
//
//	budget := agent.NewContextBudget(4000, model.HeuristicTokenCounter{})
//	window := budget.Assemble([]agent.ContextSlot{
//	    {Name: "system", Priority: agent.PriorityCritical, Messages: sys},
//	    {Name: "history", Priority: agent.PriorityNormal, Messages: history},
//	})
type ContextBudget struct {
	maxTokens int
	counter   model.TokenCounter
}

// NewContextBudget builds a budget with the given token limit and counter.
func NewContextBudget(maxTokens int, counter model.TokenCounter) *ContextBudget {
	return &ContextBudget{maxTokens: maxTokens, counter: counter}
}

// Assemble returns the messages that fit, ordered by slot priority
// (highest first) with caller order preserved among equal priorities.
// Reserved tokens are honored first: each slot draws from its reserve
// before touching the shared pool, and unused reserve returns to the pool
// once the slot is placed.
func (b *ContextBudget) Assemble(slots []ContextSlot) []model.Message {
	ordered := make([]ContextSlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	// Set reserves aside up front so low-priority bulk cannot starve a
	// reserved slot that happens to sort later.
	pool := b.maxTokens
	reserves := make([]int, len(ordered))
	for i, slot := range ordered {
		r := slot.ReservedTokens
		if r > pool {
			r = pool
		}
		reserves[i] = r
		pool -= r
	}

	var out []model.Message
	for i, slot := range ordered {
		reserve := reserves[i]
		for _, msg := range slot.Messages {
			cost := b.counter.CountMessages([]model.Message{msg})
			if cost <= reserve {
				reserve -= cost
			} else if cost-reserve <= pool {
				pool -= cost - reserve
				reserve = 0
			} else {
				continue
			}
			out = append(out, msg)
		}
		// Unused reserve returns to the shared pool.
		pool += reserve
	}
	return out
}
