package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  max_tokens: 8192
  temperature: 0.3
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  provider: ollama
  model: nomic-embed-text
vector_store:
  backend: chromem
  chromem_path: /var/lib/studykit/index
  qdrant:
    host: qdrant.internal
    port: 6334
    collection: my-docs
checkpoint:
  backend: postgres
  dsn: postgres://study:study@db:5432/study
pipeline:
  chunk_size: 800
  chunk_overlap: 100
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"MODEL_PROVIDER", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"VECTOR_STORE", "CHROMEM_PATH", "CHECKPOINT_BACKEND", "CHECKPOINT_DSN",
		"CHUNK_SIZE", "CHUNK_OVERLAP",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":           "azure",
		"MODEL_MAX_TOKENS":         "8192",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_COLLECTION":        "my-docs",
		"VECTOR_STORE":             "chromem",
		"CHROMEM_PATH":             "/var/lib/studykit/index",
		"CHECKPOINT_BACKEND":       "postgres",
		"CHECKPOINT_DSN":           "postgres://study:study@db:5432/study",
		"CHUNK_SIZE":               "800",
		"CHUNK_OVERLAP":            "100",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set before loading; YAML must not overwrite it.
	t.Setenv("MODEL_PROVIDER", "azure")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_DotEnvFillsGaps(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CHECKPOINT_BACKEND=redis\nCHUNK_SIZE=500\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("STUDYKIT_CONFIG", "")
	t.Setenv("CHECKPOINT_BACKEND", "sqlite")
	t.Setenv("CHUNK_SIZE", "")
	os.Unsetenv("CHUNK_SIZE")

	if _, err := Load("", slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := os.Getenv("CHECKPOINT_BACKEND"); got != "sqlite" {
		t.Errorf("CHECKPOINT_BACKEND: .env must not override env, got %q", got)
	}
	if got := os.Getenv("CHUNK_SIZE"); got != "500" {
		t.Errorf("CHUNK_SIZE: got %q, want 500 from .env", got)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"VECTOR_STORE", "CHECKPOINT_BACKEND", "CHUNK_SIZE", "CHUNK_OVERLAP", "STUDYKIT_API_KEYS", "STUDYKIT_PORT"} {
		t.Setenv(k, "")
	}

	rt, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if rt.VectorStore != "qdrant" || rt.CheckpointBackend != "sqlite" {
		t.Errorf("backends = %q/%q", rt.VectorStore, rt.CheckpointBackend)
	}
	if rt.ChunkSize != 1000 || rt.ChunkOverlap != 200 {
		t.Errorf("chunking = %d/%d, want 1000/200", rt.ChunkSize, rt.ChunkOverlap)
	}
	if rt.Port != 8080 || len(rt.APIKeys) != 0 {
		t.Errorf("server = port %d keys %v", rt.Port, rt.APIKeys)
	}
}

func TestFromEnv_RejectsUnknownBackends(t *testing.T) {
	t.Setenv("VECTOR_STORE", "pinecone")
	if _, err := FromEnv(); err == nil {
		t.Error("expected error for unknown VECTOR_STORE")
	}

	t.Setenv("VECTOR_STORE", "chromem")
	t.Setenv("CHECKPOINT_BACKEND", "mongo")
	if _, err := FromEnv(); err == nil {
		t.Error("expected error for unknown CHECKPOINT_BACKEND")
	}
}

func TestParseAPIKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", in: "", want: map[string]string{}},
		{name: "single", in: "tok=alice", want: map[string]string{"tok": "alice"}},
		{name: "multiple with spaces", in: " a=alice , b=bob ", want: map[string]string{"a": "alice", "b": "bob"}},
		{name: "missing user", in: "tok=", wantErr: true},
		{name: "missing separator", in: "tok", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAPIKeys(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("key %q: got %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
