package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Runtime holds the studykit settings resolved from the environment after
// [Load] has applied YAML and .env values. Provider and embedder settings
// are resolved by their own packages.
type Runtime struct {
	// VectorStore is the embedding index backend: qdrant or chromem.
	VectorStore string
	// ChromemPath persists the chromem index; empty keeps it in memory.
	ChromemPath string
	// QdrantHost is the Qdrant gRPC host.
	QdrantHost string
	// QdrantPort is the Qdrant gRPC port.
	QdrantPort int
	// QdrantCollection is the collection shared by all namespaces.
	QdrantCollection string
	// QdrantAPIKey authenticates against Qdrant Cloud.
	QdrantAPIKey string
	// QdrantTLS enables TLS for the Qdrant connection.
	QdrantTLS bool

	// CheckpointBackend is sqlite, postgres or redis.
	CheckpointBackend string
	// CheckpointDSN is the backend connection string.
	CheckpointDSN string

	// ChunkSize is the maximum passage length in characters.
	ChunkSize int
	// ChunkOverlap is the overlap between neighbouring passages.
	ChunkOverlap int
	// EmbeddingBatchSize is the number of passages embedded per request.
	EmbeddingBatchSize int
	// TranscriptLanguage is the default YouTube caption language.
	TranscriptLanguage string
	// MaxContextTokens bounds the chat history sent to the model.
	MaxContextTokens int

	// Host is the HTTP bind address.
	Host string
	// Port is the HTTP port.
	Port int
	// APIKeys maps bearer tokens to user ids. Empty means dev mode.
	APIKeys map[string]string
}

// FromEnv resolves the runtime settings from environment variables,
// applying defaults for anything unset.
func FromEnv() (*Runtime, error) {
	keys, err := ParseAPIKeys(os.Getenv("STUDYKIT_API_KEYS"))
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		VectorStore:        strings.ToLower(getEnv("VECTOR_STORE", "qdrant")),
		ChromemPath:        os.Getenv("CHROMEM_PATH"),
		QdrantHost:         getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:         getEnvInt("QDRANT_PORT", 6334),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "studykit"),
		QdrantAPIKey:       os.Getenv("QDRANT_API_KEY"),
		QdrantTLS:          os.Getenv("QDRANT_TLS") == "true",
		CheckpointBackend:  strings.ToLower(getEnv("CHECKPOINT_BACKEND", "sqlite")),
		CheckpointDSN:      os.Getenv("CHECKPOINT_DSN"),
		ChunkSize:          getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 200),
		EmbeddingBatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 64),
		TranscriptLanguage: getEnv("TRANSCRIPT_LANGUAGE", "en"),
		MaxContextTokens:   getEnvInt("MAX_CONTEXT_TOKENS", 6000),
		Host:               getEnv("STUDYKIT_HOST", "127.0.0.1"),
		Port:               getEnvInt("STUDYKIT_PORT", 8080),
		APIKeys:            keys,
	}
	switch rt.VectorStore {
	case "qdrant", "chromem":
	default:
		return nil, fmt.Errorf("config: unknown VECTOR_STORE %q (valid: qdrant, chromem)", rt.VectorStore)
	}
	switch rt.CheckpointBackend {
	case "sqlite", "postgres", "redis":
	default:
		return nil, fmt.Errorf("config: unknown CHECKPOINT_BACKEND %q (valid: sqlite, postgres, redis)", rt.CheckpointBackend)
	}
	return rt, nil
}

// ParseAPIKeys parses "token=user,token2=user2" into a token→user map.
// An empty string yields an empty map.
func ParseAPIKeys(s string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, ok := strings.Cut(pair, "=")
		token, user = strings.TrimSpace(token), strings.TrimSpace(user)
		if !ok || token == "" || user == "" {
			return nil, fmt.Errorf("config: malformed STUDYKIT_API_KEYS entry (want token=user)")
		}
		keys[token] = user
	}
	return keys, nil
}

// getEnv returns the named variable or fallback when unset.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the named variable as an int, or fallback when unset
// or unparseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
