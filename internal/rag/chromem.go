package rag

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
)

// errNoEmbeddingFunc guards against chromem embedding text on its own.
// Every vector is computed by the configured Embedder before it gets here.
var errNoEmbeddingFunc = errors.New("rag: chromem must receive precomputed embeddings")

// ChromemStore implements VectorStore on an embedded chromem-go database,
// one collection per namespace. With an empty path the index lives in
// memory only, which suits local runs and tests.
type ChromemStore struct {
	db *chromem.DB
}

// NewChromemStore opens a chromem database. A non-empty path persists the
// index to that directory.
func NewChromemStore(path string) (*ChromemStore, error) {
	if path == "" {
		return &ChromemStore{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("chromem: open %s: %w", path, err)
	}
	return &ChromemStore{db: db}, nil
}

// EnsureNamespace creates the collection backing ns if it is missing.
func (s *ChromemStore) EnsureNamespace(_ context.Context, ns string, _ int) error {
	if _, err := s.db.GetOrCreateCollection(ns, nil, refuseEmbedding); err != nil {
		return fmt.Errorf("chromem: create collection %q: %w", ns, err)
	}
	return nil
}

// Upsert adds docs to the collection backing ns.
func (s *ChromemStore) Upsert(ctx context.Context, ns string, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("chromem: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	col := s.db.GetCollection(ns, refuseEmbedding)
	if col == nil {
		return fmt.Errorf("%w: %s", ErrNamespaceNotFound, ns)
	}

	batch := make([]chromem.Document, 0, len(docs))
	for i, doc := range docs {
		meta := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta["source"] = doc.Source
		batch = append(batch, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  meta,
			Embedding: embeddings[i],
		})
	}

	if err := col.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem: add documents to %q: %w", ns, err)
	}
	return nil
}

// Search returns the topK nearest documents of ns.
func (s *ChromemStore) Search(ctx context.Context, ns string, queryEmbedding []float32, topK int) ([]Document, error) {
	col := s.db.GetCollection(ns, refuseEmbedding)
	if col == nil || col.Count() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNamespaceNotFound, ns)
	}
	// chromem rejects nResults larger than the collection.
	n := min(topK, col.Count())

	results, err := col.QueryEmbedding(ctx, queryEmbedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query %q: %w", ns, err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		meta := make(map[string]string, len(r.Metadata))
		var source string
		for k, v := range r.Metadata {
			if k == "source" {
				source = v
				continue
			}
			meta[k] = v
		}
		docs = append(docs, Document{
			ID:       r.ID,
			Content:  r.Content,
			Source:   source,
			Metadata: meta,
			Score:    r.Similarity,
		})
	}
	return docs, nil
}

// Ping always succeeds; the database is in process.
func (s *ChromemStore) Ping(context.Context) error { return nil }

// Close is a no-op. Persistent databases write through on every change.
func (s *ChromemStore) Close() error { return nil }

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}
