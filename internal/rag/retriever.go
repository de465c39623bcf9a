package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/54b3r/studykit-go/internal/logging"
)

const (
	// DefaultTopK is the number of passages returned by a search when the
	// caller passes 0.
	DefaultTopK = 3

	// DefaultBatchSize is the number of passages embedded per provider call.
	DefaultBatchSize = 64
)

// IndexConfig holds the tunables of an Index.
type IndexConfig struct {
	// BatchSize is the number of passages embedded per provider call.
	// Zero selects DefaultBatchSize.
	BatchSize int

	// DefaultTopK is the result count used when Retrieve is called with 0.
	// Zero selects DefaultTopK.
	DefaultTopK int
}

// Index combines an Embedder and a VectorStore into the namespaced
// embedding index. It is safe for concurrent use when both collaborators are.
type Index struct {
	// embedder converts passage and query text to dense vectors.
	embedder Embedder

	// store holds the vectors partitioned by namespace.
	store VectorStore

	// batchSize bounds the texts sent per Embed call.
	batchSize int

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewIndex constructs an Index from the given Embedder and VectorStore.
func NewIndex(embedder Embedder, store VectorStore, cfg IndexConfig) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultTopK
	}
	return &Index{
		embedder:    embedder,
		store:       store,
		batchSize:   cfg.BatchSize,
		defaultTopK: cfg.DefaultTopK,
	}, nil
}

// Add embeds docs in batches and writes them into ns, creating the
// namespace on first use. Re-indexing the same namespace appends new
// records; nothing is deduplicated. Documents without an ID get a random
// UUID. Returns the number of records written.
func (x *Index) Add(ctx context.Context, ns string, docs []Document) (int, error) {
	log := logging.FromContext(ctx)
	written := 0
	for start := 0; start < len(docs); start += x.batchSize {
		end := min(start+x.batchSize, len(docs))
		batch := make([]Document, end-start)
		copy(batch, docs[start:end])

		texts := make([]string, len(batch))
		for i := range batch {
			if batch[i].ID == "" {
				batch[i].ID = uuid.NewString()
			}
			texts[i] = batch[i].Content
		}

		embeddings, err := x.embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("rag: embedding batch %d-%d failed: %w", start, end, err)
		}
		if len(embeddings) != len(batch) {
			return written, fmt.Errorf("rag: embedder returned %d vectors for %d texts", len(embeddings), len(batch))
		}

		if start == 0 {
			if err := x.store.EnsureNamespace(ctx, ns, len(embeddings[0])); err != nil {
				return written, fmt.Errorf("rag: ensure namespace %q: %w", ns, err)
			}
		}
		if err := x.store.Upsert(ctx, ns, batch, embeddings); err != nil {
			return written, fmt.Errorf("rag: upsert into %q: %w", ns, err)
		}
		written += len(batch)
		log.Debug("rag: indexed batch",
			slog.String("namespace", ns),
			slog.Int("batch_start", start),
			slog.Int("batch_size", len(batch)),
		)
	}
	return written, nil
}

// Retrieve embeds the query and returns the top-k most relevant documents
// of ns. If topK is 0 the configured default is used.
func (x *Index) Retrieve(ctx context.Context, ns, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = x.defaultTopK
	}

	embeddings, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	docs, err := x.store.Search(ctx, ns, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return docs, nil
}

// Ping reports whether the underlying vector store is reachable.
func (x *Index) Ping(ctx context.Context) error {
	return x.store.Ping(ctx)
}
