package middleware

import (
	"context"
	"encoding/json"

	"github.com/tidwall/sjson"

	"github.com/flowmind-ai/agentgraph/graph"
)

// ToolCallPatch rewrites one argument of a named tool's calls. Paths use
// sjson syntax, so nested fields ("config.timeout") and array elements
// ("files.0") can be set directly.
type ToolCallPatch struct {
	// Tool names the tool whose calls are patched.
	Tool string
	// Path is the argument location to set.
	Path string
	// Value is the replacement value.
	Value interface{}
}

// PatchToolCalls rewrites tool-call arguments in every model response
// before they reach execution. Typical uses: pinning a working directory,
// forcing safe flags, or injecting credentials the model never sees.
type PatchToolCalls struct {
	Base
	Patches []ToolCallPatch
}

// NewPatchToolCalls builds the middleware.
func NewPatchToolCalls(patches ...ToolCallPatch) *PatchToolCalls {
	return &PatchToolCalls{Base: Base{MiddlewareName: "patch_tool_calls"}, Patches: patches}
}

// AfterModel implements Middleware.
func (p *PatchToolCalls) AfterModel(_ context.Context, _ *ModelRequest, resp *ModelResponse) {
	if !resp.Message.HasToolCalls() || len(p.Patches) == 0 {
		return
	}
	for i := range resp.Message.ToolCalls {
		call := &resp.Message.ToolCalls[i]
		for _, patch := range p.Patches {
			if patch.Tool != call.Name {
				continue
			}
			patched, err := applyPatch(call.Input, patch)
			if err != nil {
				continue
			}
			call.Input = patched
		}
	}
}

// applyPatch sets the patch path in the call's argument JSON.
func applyPatch(input map[string]interface{}, patch ToolCallPatch) (map[string]interface{}, error) {
	argsJSON, err := json.Marshal(input)
	if err != nil {
		return nil, graph.NewError(graph.KindParsing, "failed to encode tool arguments", err)
	}
	patchedJSON, err := sjson.SetBytes(argsJSON, patch.Path, patch.Value)
	if err != nil {
		return nil, graph.NewError(graph.KindParsing, "failed to patch tool arguments", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(patchedJSON, &out); err != nil {
		return nil, graph.NewError(graph.KindParsing, "failed to decode patched arguments", err)
	}
	return out, nil
}
