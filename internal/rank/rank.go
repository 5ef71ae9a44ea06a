// Package rank scores extracted text blocks against a query using vector
// embeddings and in-memory cosine similarity.
package rank

import (
	"context"
	"fmt"
	"math"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/websift/websift/internal/extract"
	"github.com/websift/websift/internal/search"
)

// DefaultRelevanceThreshold is the minimum score for a finding to surface.
const DefaultRelevanceThreshold = 0.60

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = string(openai.LargeEmbedding3)

// embedBatchSize bounds inputs per embeddings request.
const embedBatchSize = 100

// Embedder turns text into vectors. The production implementation calls the
// OpenAI embeddings API; tests substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder builds an embedder for the given API key and model name.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

// Embed returns one vector per input, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: inputs,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(inputs))
	}
	vecs := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("create embeddings: vector index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// Store holds embedded documents for similarity search. Build once per run
// with NewStore, then query any number of times.
type Store struct {
	embedder Embedder
	docs     []extract.WebDoc
	vecs     [][]float32
}

// NewStore embeds every doc and retains the vectors in memory.
func NewStore(ctx context.Context, embedder Embedder, docs []extract.WebDoc) (*Store, error) {
	s := &Store{embedder: embedder, docs: docs, vecs: make([][]float32, 0, len(docs))}
	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		inputs := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			inputs = append(inputs, doc.Text)
		}
		vecs, err := embedder.Embed(ctx, inputs)
		if err != nil {
			return nil, fmt.Errorf("embed documents [%d:%d]: %w", start, end, err)
		}
		s.vecs = append(s.vecs, vecs...)
	}
	return s, nil
}

// Len returns the number of embedded documents.
func (s *Store) Len() int {
	return len(s.docs)
}

// Search embeds the query and returns findings at or above threshold, most
// relevant first. A threshold <= 0 falls back to the default.
func (s *Store) Search(ctx context.Context, query string, threshold float64) ([]search.Finding, error) {
	if threshold <= 0 {
		threshold = DefaultRelevanceThreshold
	}
	qvecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(qvecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(qvecs))
	}
	qvec := qvecs[0]

	var findings []search.Finding
	for i, doc := range s.docs {
		score := cosine(qvec, s.vecs[i])
		if score < threshold {
			continue
		}
		findings = append(findings, search.Finding{Query: query, Relevance: score, Doc: doc})
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Relevance > findings[j].Relevance
	})
	return findings, nil
}

// cosine returns the cosine similarity of a and b, or 0 when either has zero
// magnitude or the dimensions disagree.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
