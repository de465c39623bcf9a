package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// namespaceField is the payload key partitioning points by document.
const namespaceField = "namespace"

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the collection shared by every namespace.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore on a single Qdrant collection.
// Namespaces are a keyword payload field; every search filters on it so
// results never leak across documents.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig

	// mu guards ready.
	mu sync.Mutex
	// ready is set once the collection is known to exist.
	ready bool
}

// NewQdrantStore creates a QdrantStore. The collection is created lazily on
// the first EnsureNamespace call, once the embedding size is known.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "studykit"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// EnsureNamespace creates the shared collection and its namespace index if
// they do not exist yet. Namespaces themselves need no setup.
func (s *QdrantStore) EnsureNamespace(ctx context.Context, _ string, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		if dims <= 0 {
			return fmt.Errorf("qdrant: cannot create collection %q without a vector size", s.cfg.Collection)
		}
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dims),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
		}
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      namespaceField,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to index %q payload: %w", namespaceField, err)
		}
	}

	s.ready = true
	return nil
}

// Upsert writes a batch of documents into ns.
func (s *QdrantStore) Upsert(ctx context.Context, ns string, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(toPayload(ns, doc)),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", ns, err)
	}
	return nil
}

// Search performs a cosine similarity search restricted to ns.
func (s *QdrantStore) Search(ctx context.Context, ns string, queryEmbedding []float32, topK int) ([]Document, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(namespaceField, ns)},
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: count %q failed: %w", ns, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNamespaceNotFound, ns)
	}

	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search %q failed: %w", ns, err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := fromPayload(r.GetPayload())
		doc.ID = r.GetId().GetUuid()
		doc.Score = r.GetScore()
		docs = append(docs, doc)
	}
	return docs, nil
}

// Ping checks the Qdrant server health endpoint.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// toPayload flattens a document into a Qdrant payload map.
func toPayload(ns string, doc Document) map[string]any {
	payload := make(map[string]any, len(doc.Metadata)+3)
	for k, v := range doc.Metadata {
		payload[k] = v
	}
	payload["content"] = doc.Content
	payload["source"] = doc.Source
	payload[namespaceField] = ns
	return payload
}

// fromPayload rebuilds a document from a Qdrant payload map. The namespace
// field is dropped; it is implied by the search.
func fromPayload(p map[string]*qdrant.Value) Document {
	doc := Document{Metadata: make(map[string]string, len(p))}
	for k, v := range p {
		switch k {
		case "content":
			doc.Content = v.GetStringValue()
		case "source":
			doc.Source = v.GetStringValue()
		case namespaceField:
		default:
			doc.Metadata[k] = v.GetStringValue()
		}
	}
	return doc
}
