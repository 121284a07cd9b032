package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/flowmind-ai/agentgraph/graph"
)

// RiskLevel grades how dangerous a tool call looks.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the level's display name.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// SecurityAnalyzer assesses the risk of a tool call.
type SecurityAnalyzer interface {
	Assess(ctx context.Context, toolName string, args map[string]interface{}) (RiskLevel, error)
}

// ConfirmationPolicy decides whether a risk level requires confirmation.
type ConfirmationPolicy interface {
	ShouldConfirm(ctx context.Context, toolName string, risk RiskLevel) (bool, error)
}

// ConfirmationCallback obtains the confirmation for a risky call.
type ConfirmationCallback func(ctx context.Context, toolName string, args map[string]interface{}, risk RiskLevel) (bool, error)

// argPattern elevates risk when the value at a dotted argument path
// contains a substring.
type argPattern struct {
	path    string
	pattern string
	risk    RiskLevel
}

// RuleBasedAnalyzer maps tool names to baseline risks and elevates them
// when argument patterns match. Argument paths use gjson syntax, so nested
// fields ("command.args.0") work without manual traversal.
type RuleBasedAnalyzer struct {
	toolRisks   map[string]RiskLevel
	argPatterns []argPattern
	defaultRisk RiskLevel
}

// NewRuleBasedAnalyzer builds an analyzer with RiskLow as the default.
func NewRuleBasedAnalyzer() *RuleBasedAnalyzer {
	return &RuleBasedAnalyzer{
		toolRisks:   make(map[string]RiskLevel),
		defaultRisk: RiskLow,
	}
}

// WithDefaultRisk sets the risk for tools with no explicit rule.
func (a *RuleBasedAnalyzer) WithDefaultRisk(risk RiskLevel) *RuleBasedAnalyzer {
	a.defaultRisk = risk
	return a
}

// WithToolRisk sets the baseline risk for a tool.
func (a *RuleBasedAnalyzer) WithToolRisk(toolName string, risk RiskLevel) *RuleBasedAnalyzer {
	a.toolRisks[toolName] = risk
	return a
}

// WithArgPattern elevates risk to at least the given level when the value
// at path contains pattern.
func (a *RuleBasedAnalyzer) WithArgPattern(path, pattern string, risk RiskLevel) *RuleBasedAnalyzer {
	a.argPatterns = append(a.argPatterns, argPattern{path: path, pattern: pattern, risk: risk})
	return a
}

// Assess implements SecurityAnalyzer.
func (a *RuleBasedAnalyzer) Assess(_ context.Context, toolName string, args map[string]interface{}) (RiskLevel, error) {
	risk, ok := a.toolRisks[toolName]
	if !ok {
		risk = a.defaultRisk
	}
	if len(a.argPatterns) == 0 || len(args) == 0 {
		return risk, nil
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return risk, graph.NewError(graph.KindParsing, "failed to inspect tool arguments", err)
	}
	for _, p := range a.argPatterns {
		if p.risk <= risk {
			continue
		}
		val := gjson.GetBytes(argsJSON, p.path)
		if !val.Exists() {
			continue
		}
		if strings.Contains(val.String(), p.pattern) {
			risk = p.risk
		}
	}
	return risk, nil
}

// ThresholdPolicy confirms every call at or above a risk threshold.
type ThresholdPolicy struct {
	Threshold RiskLevel
}

// ShouldConfirm implements ConfirmationPolicy.
func (p ThresholdPolicy) ShouldConfirm(_ context.Context, _ string, risk RiskLevel) (bool, error) {
	return risk >= p.Threshold, nil
}

// Security assesses every tool call's risk and requires confirmation above
// the policy's threshold. Tools on the bypass list skip assessment.
type Security struct {
	Base
	Analyzer SecurityAnalyzer
	Policy   ConfirmationPolicy
	Confirm  ConfirmationCallback
	bypass   map[string]struct{}
}

// NewSecurity builds the middleware.
func NewSecurity(analyzer SecurityAnalyzer, policy ConfirmationPolicy, confirm ConfirmationCallback) *Security {
	return &Security{
		Base:     Base{MiddlewareName: "security"},
		Analyzer: analyzer,
		Policy:   policy,
		Confirm:  confirm,
		bypass:   make(map[string]struct{}),
	}
}

// WithBypass exempts tools from security checks entirely.
func (s *Security) WithBypass(tools ...string) *Security {
	for _, t := range tools {
		s.bypass[t] = struct{}{}
	}
	return s
}

// WrapToolCall implements Middleware.
func (s *Security) WrapToolCall(ctx context.Context, req ToolCallRequest, next ToolNext) (map[string]interface{}, error) {
	if _, ok := s.bypass[req.ToolName]; ok {
		return next(ctx, req)
	}

	risk, err := s.Analyzer.Assess(ctx, req.ToolName, req.Input)
	if err != nil {
		return nil, err
	}
	needsConfirm, err := s.Policy.ShouldConfirm(ctx, req.ToolName, risk)
	if err != nil {
		return nil, err
	}
	if needsConfirm {
		confirmed, err := s.Confirm(ctx, req.ToolName, req.Input, risk)
		if err != nil {
			return nil, err
		}
		if !confirmed {
			return nil, graph.NewError(graph.KindTool,
				fmt.Sprintf("tool call '%s' rejected by security policy (risk: %s)", req.ToolName, risk), nil)
		}
	}
	return next(ctx, req)
}
