package middleware

import (
	"context"
	"errors"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

// ModelFallback retries a failed model call against each fallback model in
// order, returning the first success. The primary model stays whatever the
// base caller was built with; fallbacks only run on its failure.
type ModelFallback struct {
	Base
	// Fallbacks are tried in declaration order after the primary fails.
	Fallbacks []model.ChatModel
}

// NewModelFallback builds the middleware.
func NewModelFallback(fallbacks ...model.ChatModel) *ModelFallback {
	return &ModelFallback{Base: Base{MiddlewareName: "model_fallback"}, Fallbacks: fallbacks}
}

// WrapModelCall implements Middleware.
func (f *ModelFallback) WrapModelCall(ctx context.Context, req ModelRequest, next ModelNext) (ModelResponse, error) {
	resp, err := next(ctx, req)
	if err == nil {
		return resp, nil
	}

	errs := []error{err}
	for _, fb := range f.Fallbacks {
		out, ferr := fb.Chat(ctx, req.Render(), req.Tools)
		if ferr == nil {
			return ModelResponse{Message: out.Message(), Usage: out.Usage}, nil
		}
		errs = append(errs, ferr)
	}
	return ModelResponse{}, errors.Join(errs...)
}
