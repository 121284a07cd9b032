package model

import "context"

// Embeddings is the capability for turning text into dense vectors, used
// by stores that rank search results by semantic similarity.
type Embeddings interface {
	// EmbedDocuments embeds a batch of documents, one vector per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
