// Package rag implements the embedding index: documents are embedded,
// written into a per-document namespace of a vector store, and searched
// back by similarity. Concrete stores (Qdrant, chromem-go) satisfy
// [VectorStore] so callers never depend on a specific backend.
package rag

import (
	"context"
	"errors"
)

var (
	// ErrNamespaceNotFound is returned when searching a namespace that has
	// never been indexed.
	ErrNamespaceNotFound = errors.New("rag: namespace not found")

	// ErrInvalidLocator is returned when a namespace cannot be derived from
	// a document locator.
	ErrInvalidLocator = errors.New("rag: invalid locator")
)

// Document is one embedding record: a passage of text plus its metadata,
// stored in exactly one namespace.
type Document struct {
	// ID is the unique identifier for this record.
	ID string

	// Content is the passage text.
	Content string

	// Source is the origin locator of the passage (URL or "text").
	Source string

	// Metadata holds the passage metadata (title, chunk_index, ...).
	Metadata map[string]string

	// Score is the similarity assigned during search. Zero when not computed.
	Score float32
}

// VectorStore persists and searches document embeddings partitioned by
// namespace. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// EnsureNamespace makes ns ready to receive vectors of size dims.
	// Calling it for an existing namespace is a no-op.
	EnsureNamespace(ctx context.Context, ns string, dims int) error

	// Upsert writes docs into ns. embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, ns string, docs []Document, embeddings [][]float32) error

	// Search returns up to topK documents of ns ranked by similarity
	// descending. A namespace with no records yields ErrNamespaceNotFound.
	Search(ctx context.Context, ns string, queryEmbedding []float32, topK int) ([]Document, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches the passages of one namespace most relevant to a query.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents of ns for query.
	Retrieve(ctx context.Context, ns, query string, topK int) ([]Document, error)
}
