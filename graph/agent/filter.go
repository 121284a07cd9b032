package agent

import (
	"github.com/flowmind-ai/agentgraph/graph/model"
)

// FilterContext is what a ToolFilter sees when deciding which tools the
// model may use this turn.
type FilterContext struct {
	// TurnCount is how many model turns have completed so far.
	TurnCount int

	// LastTool names the most recently executed tool, if any.
	LastTool string

	// Metadata carries arbitrary values for custom filter logic.
	Metadata map[string]interface{}
}

// ToolFilter rewrites the set of tool definitions offered to the model on
// each turn.
type ToolFilter interface {
	Filter(tools []model.ToolSpec, fc FilterContext) []model.ToolSpec
}

// ToolFilterFunc adapts a function to ToolFilter.
type ToolFilterFunc func(tools []model.ToolSpec, fc FilterContext) []model.ToolSpec

// Filter implements ToolFilter.
func (f ToolFilterFunc) Filter(tools []model.ToolSpec, fc FilterContext) []model.ToolSpec {
	return f(tools, fc)
}

// AllowListFilter keeps only tools whose names are listed.
type AllowListFilter struct {
	allowed map[string]struct{}
}

// NewAllowListFilter builds the filter.
func NewAllowListFilter(names ...string) *AllowListFilter {
	f := &AllowListFilter{allowed: make(map[string]struct{}, len(names))}
	for _, n := range names {
		f.allowed[n] = struct{}{}
	}
	return f
}

// Filter implements ToolFilter.
func (f *AllowListFilter) Filter(tools []model.ToolSpec, _ FilterContext) []model.ToolSpec {
	out := make([]model.ToolSpec, 0, len(tools))
	for _, t := range tools {
		if _, ok := f.allowed[t.Name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// DenyListFilter removes tools whose names are listed.
type DenyListFilter struct {
	denied map[string]struct{}
}

// NewDenyListFilter builds the filter.
func NewDenyListFilter(names ...string) *DenyListFilter {
	f := &DenyListFilter{denied: make(map[string]struct{}, len(names))}
	for _, n := range names {
		f.denied[n] = struct{}{}
	}
	return f
}

// Filter implements ToolFilter.
func (f *DenyListFilter) Filter(tools []model.ToolSpec, _ FilterContext) []model.ToolSpec {
	out := make([]model.ToolSpec, 0, len(tools))
	for _, t := range tools {
		if _, ok := f.denied[t.Name]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// StateMachineFilter gates tools behind workflow rules: which tools may
// follow a given tool, and which tools unlock after N turns.
type StateMachineFilter struct {
	afterToolRules map[string]map[string]struct{}
	turnThresholds []turnThreshold
}

type turnThreshold struct {
	minTurns int
	tools    map[string]struct{}
}

// NewStateMachineFilter builds an empty rule set.
func NewStateMachineFilter() *StateMachineFilter {
	return &StateMachineFilter{afterToolRules: make(map[string]map[string]struct{})}
}

// AfterTool restricts the tools available after toolName was last called.
func (f *StateMachineFilter) AfterTool(toolName string, allowedNext ...string) *StateMachineFilter {
	set := make(map[string]struct{}, len(allowedNext))
	for _, n := range allowedNext {
		set[n] = struct{}{}
	}
	f.afterToolRules[toolName] = set
	return f
}

// TurnThreshold hides the listed tools until minTurns turns have passed.
func (f *StateMachineFilter) TurnThreshold(minTurns int, tools ...string) *StateMachineFilter {
	set := make(map[string]struct{}, len(tools))
	for _, n := range tools {
		set[n] = struct{}{}
	}
	f.turnThresholds = append(f.turnThresholds, turnThreshold{minTurns: minTurns, tools: set})
	return f
}

// Filter implements ToolFilter.
func (f *StateMachineFilter) Filter(tools []model.ToolSpec, fc FilterContext) []model.ToolSpec {
	gated := make(map[string]struct{})
	for _, th := range f.turnThresholds {
		if fc.TurnCount < th.minTurns {
			for name := range th.tools {
				gated[name] = struct{}{}
			}
		}
	}

	var allowed map[string]struct{}
	if fc.LastTool != "" {
		if rule, ok := f.afterToolRules[fc.LastTool]; ok {
			allowed = rule
		}
	}

	out := make([]model.ToolSpec, 0, len(tools))
	for _, t := range tools {
		if _, hidden := gated[t.Name]; hidden {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[t.Name]; !ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
