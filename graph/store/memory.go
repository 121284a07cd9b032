package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowmind-ai/agentgraph/graph/model"
)

// MemoryStore is a thread-safe in-memory Store for development, testing,
// and single-process workflows. Data is lost when the process exits.
//
// Search is substring-based by default. With WithEmbeddings configured,
// queries rank items by cosine similarity instead and populate Item.Score.
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string]map[string]Item
	embeddings model.Embeddings
	vectors    map[string][]float32
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:    make(map[string]map[string]Item),
		vectors: make(map[string][]float32),
	}
}

// WithEmbeddings enables embedding-based semantic search. Every Put embeds
// the value's text form; Search with a query ranks by cosine similarity.
func (s *MemoryStore) WithEmbeddings(e model.Embeddings) *MemoryStore {
	s.embeddings = e
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, namespace []string, key string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.data[JoinNamespace(namespace)]
	if !ok {
		return nil, nil
	}
	item, ok := ns[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, namespace []string, key string, value interface{}) error {
	// Embed outside the lock; the provider call may suspend.
	var vector []float32
	if s.embeddings != nil {
		text := valueText(value)
		vectors, err := s.embeddings.EmbedDocuments(ctx, []string{text})
		if err != nil {
			return &Error{Op: "put", Err: err}
		}
		if len(vectors) > 0 {
			vector = vectors[0]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	nsKey := JoinNamespace(namespace)
	ns, ok := s.data[nsKey]
	if !ok {
		ns = make(map[string]Item)
		s.data[nsKey] = ns
	}

	now := time.Now()
	item := Item{
		Namespace: append([]string(nil), namespace...),
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, ok := ns[key]; ok {
		item.CreatedAt = existing.CreatedAt
	}
	ns[key] = item

	if vector != nil {
		s.vectors[nsKey+nsSeparator+key] = vector
	}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, namespace []string, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nsKey := JoinNamespace(namespace)
	if ns, ok := s.data[nsKey]; ok {
		delete(ns, key)
	}
	delete(s.vectors, nsKey+nsSeparator+key)
	return nil
}

// Search implements Store.
func (s *MemoryStore) Search(ctx context.Context, namespace []string, query string, limit int) ([]Item, error) {
	if s.embeddings != nil && query != "" {
		return s.semanticSearch(ctx, namespace, query, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.data[JoinNamespace(namespace)]
	if !ok {
		return nil, nil
	}

	keys := sortedKeys(ns)
	items := make([]Item, 0, limit)
	for _, key := range keys {
		if len(items) >= limit {
			break
		}
		item := ns[key]
		if query == "" || strings.Contains(item.Key, query) || strings.Contains(valueText(item.Value), query) {
			items = append(items, item)
		}
	}
	return items, nil
}

// semanticSearch ranks the namespace's items by cosine similarity against
// the embedded query.
func (s *MemoryStore) semanticSearch(ctx context.Context, namespace []string, query string, limit int) ([]Item, error) {
	queryVec, err := s.embeddings.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &Error{Op: "search", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	nsKey := JoinNamespace(namespace)
	ns, ok := s.data[nsKey]
	if !ok {
		return nil, nil
	}

	scored := make([]Item, 0, len(ns))
	for key, item := range ns {
		score := 0.0
		if vec, ok := s.vectors[nsKey+nsSeparator+key]; ok {
			score = cosineSimilarity(vec, queryVec)
		}
		item.Score = &score
		scored = append(scored, item)
	}
	sort.Slice(scored, func(i, j int) bool {
		if *scored[i].Score == *scored[j].Score {
			return scored[i].Key < scored[j].Key
		}
		return *scored[i].Score > *scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// ListNamespaces implements Store.
func (s *MemoryStore) ListNamespaces(_ context.Context, prefix []string) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var namespaces [][]string
	for nsKey := range s.data {
		ns := SplitNamespace(nsKey)
		if HasPrefix(ns, prefix) {
			namespaces = append(namespaces, ns)
		}
	}
	sort.Slice(namespaces, func(i, j int) bool {
		return JoinNamespace(namespaces[i]) < JoinNamespace(namespaces[j])
	})
	return namespaces, nil
}

func sortedKeys(ns map[string]Item) []string {
	keys := make([]string, 0, len(ns))
	for k := range ns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cosineSimilarity compares two vectors; mismatched or empty vectors score
// zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
