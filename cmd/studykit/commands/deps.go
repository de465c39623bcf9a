package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/studykit-go/internal/chat"
	"github.com/54b3r/studykit-go/internal/checkpoint"
	"github.com/54b3r/studykit-go/internal/chunker"
	"github.com/54b3r/studykit-go/internal/config"
	"github.com/54b3r/studykit-go/internal/embedder"
	"github.com/54b3r/studykit-go/internal/loader"
	"github.com/54b3r/studykit-go/internal/pipeline"
	"github.com/54b3r/studykit-go/internal/provider"
	"github.com/54b3r/studykit-go/internal/questions"
	"github.com/54b3r/studykit-go/internal/rag"
	"github.com/54b3r/studykit-go/internal/server"
	"github.com/54b3r/studykit-go/internal/summarize"
	"github.com/54b3r/studykit-go/internal/tracing"
)

// app bundles everything a command needs. close releases the stores and
// flushes tracing; it is safe to call once.
type app struct {
	rt       *config.Runtime
	pipeline *pipeline.Pipeline
	pingers  []server.Pinger
	close    func()
}

// buildApp resolves the runtime configuration from the environment and
// wires the full pipeline: model provider, embedder, vector store,
// checkpoint store, loaders and generators.
func buildApp(ctx context.Context, log *slog.Logger) (*app, error) {
	rt, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	flush := tracing.Setup(log)
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn("shutdown: close failed", slog.Any("error", err))
			}
		}
		flush()
	}
	fail := func(err error) (*app, error) {
		cleanup()
		return nil, err
	}

	chatModel, providerCfg, err := provider.NewFromEnv(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to initialise model provider: %w", err))
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	if err := embedder.Validate(log); err != nil {
		return fail(err)
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return fail(fmt.Errorf("failed to initialise embedder: %w", err))
	}

	vs, err := buildVectorStore(rt)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, vs.Close)
	log.Info("vector store opened", slog.String("backend", rt.VectorStore))

	idx, err := rag.NewIndex(emb, vs, rag.IndexConfig{BatchSize: rt.EmbeddingBatchSize})
	if err != nil {
		return fail(err)
	}

	store, err := checkpoint.Open(ctx, rt.CheckpointBackend, rt.CheckpointDSN)
	if err != nil {
		return fail(fmt.Errorf("failed to open checkpoint store: %w", err))
	}
	closers = append(closers, store.Close)
	log.Info("checkpoint store opened", slog.String("backend", rt.CheckpointBackend))

	splitter, err := chunker.New(rt.ChunkSize, rt.ChunkOverlap)
	if err != nil {
		return fail(err)
	}
	summarizer, err := summarize.New(chatModel)
	if err != nil {
		return fail(err)
	}
	quiz, err := questions.NewGenerator[questions.QuizQuestion](chatModel, questions.QuizFormat{})
	if err != nil {
		return fail(err)
	}
	cards, err := questions.NewGenerator[questions.Flashcard](chatModel, questions.FlashcardFormat{})
	if err != nil {
		return fail(err)
	}
	engine, err := chat.New(chat.Config{
		Model:            chatModel,
		Store:            store,
		Retriever:        idx,
		MaxContextTokens: rt.MaxContextTokens,
	})
	if err != nil {
		return fail(err)
	}

	p, err := pipeline.New(pipeline.Deps{
		Loader:     loader.New(loader.Config{TranscriptLanguage: rt.TranscriptLanguage}),
		Chunker:    splitter,
		Index:      idx,
		Summarizer: summarizer,
		Quiz:       quiz,
		Flashcards: cards,
		Chat:       engine,
	})
	if err != nil {
		return fail(err)
	}

	return &app{
		rt:       rt,
		pipeline: p,
		pingers: []server.Pinger{
			server.NewLLMPinger(chatModel, string(providerCfg.Backend)),
			server.NewDependencyPinger("vector_store", vs),
			server.NewDependencyPinger("checkpoint", store),
		},
		close: cleanup,
	}, nil
}

// buildVectorStore opens the embedding index backend named by rt.
func buildVectorStore(rt *config.Runtime) (rag.VectorStore, error) {
	switch strings.ToLower(rt.VectorStore) {
	case "qdrant":
		vs, err := rag.NewQdrantStore(&rag.QdrantConfig{
			Host:       rt.QdrantHost,
			Port:       rt.QdrantPort,
			Collection: rt.QdrantCollection,
			APIKey:     rt.QdrantAPIKey,
			UseTLS:     rt.QdrantTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		return vs, nil
	case "chromem", "":
		vs, err := rag.NewChromemStore(rt.ChromemPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem store: %w", err)
		}
		return vs, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q (want qdrant or chromem)", rt.VectorStore)
	}
}
