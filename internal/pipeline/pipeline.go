// Package pipeline composes the loader, chunker, embedding index,
// summarizer, question generators and chat engine into the operations the
// HTTP and CLI surfaces expose. One call is one request: every external
// call inside it runs sequentially and any failure aborts it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/studykit-go/internal/chat"
	"github.com/54b3r/studykit-go/internal/checkpoint"
	"github.com/54b3r/studykit-go/internal/chunker"
	"github.com/54b3r/studykit-go/internal/loader"
	"github.com/54b3r/studykit-go/internal/logging"
	"github.com/54b3r/studykit-go/internal/questions"
	"github.com/54b3r/studykit-go/internal/rag"
	"github.com/54b3r/studykit-go/internal/summarize"
)

// ErrUnauthenticated is returned when an operation that touches user data
// is called without a user id.
var ErrUnauthenticated = errors.New("pipeline: user is not authenticated")

// Loader loads a source into text blocks. *loader.Dispatcher satisfies it.
type Loader interface {
	Load(ctx context.Context, src loader.Source) ([]loader.Block, error)
}

// Indexer writes documents into a namespace. *rag.Index satisfies it.
type Indexer interface {
	Add(ctx context.Context, ns string, docs []rag.Document) (int, error)
}

// Deps holds the collaborators of a Pipeline. Every field is required.
type Deps struct {
	Loader     Loader
	Chunker    *chunker.Splitter
	Index      Indexer
	Summarizer *summarize.Summarizer
	Quiz       *questions.Generator[questions.QuizQuestion]
	Flashcards *questions.Generator[questions.Flashcard]
	Chat       *chat.Engine
}

// Pipeline runs the document-to-knowledge operations.
type Pipeline struct {
	loader     Loader
	chunker    *chunker.Splitter
	index      Indexer
	summarizer *summarize.Summarizer
	quiz       *questions.Generator[questions.QuizQuestion]
	flashcards *questions.Generator[questions.Flashcard]
	chat       *chat.Engine
}

// New returns a Pipeline over deps.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Loader == nil:
		return nil, fmt.Errorf("pipeline: Loader must not be nil")
	case deps.Chunker == nil:
		return nil, fmt.Errorf("pipeline: Chunker must not be nil")
	case deps.Index == nil:
		return nil, fmt.Errorf("pipeline: Index must not be nil")
	case deps.Summarizer == nil:
		return nil, fmt.Errorf("pipeline: Summarizer must not be nil")
	case deps.Quiz == nil || deps.Flashcards == nil:
		return nil, fmt.Errorf("pipeline: question generators must not be nil")
	case deps.Chat == nil:
		return nil, fmt.Errorf("pipeline: Chat must not be nil")
	}
	return &Pipeline{
		loader:     deps.Loader,
		chunker:    deps.Chunker,
		index:      deps.Index,
		summarizer: deps.Summarizer,
		quiz:       deps.Quiz,
		flashcards: deps.Flashcards,
		chat:       deps.Chat,
	}, nil
}

// ChatRequest is one chat message from an authenticated user.
type ChatRequest struct {
	Namespace string `json:"namespace"`
	Summary   string `json:"summary"`
	ThreadID  string `json:"threadId"`
	UserID    string `json:"-"`
	Message   string `json:"message"`
}

// NamespaceFor derives the index namespace of src. YouTube locators are
// canonicalized to https://youtu.be/<id> so every URL form of a video
// shares one namespace. Inline text and PDFs without a URL are keyed by a
// hash of their content.
func NamespaceFor(src loader.Source) (string, error) {
	switch src.Kind {
	case loader.KindYouTube:
		id, err := loader.VideoID(src.Locator)
		if err != nil {
			return "", err
		}
		return rag.Namespace("https://youtu.be/" + id)
	case loader.KindText:
		return rag.TextNamespace(src.Locator), nil
	case loader.KindPDF:
		if ns, err := rag.Namespace(src.Locator); err == nil {
			return ns, nil
		}
		return rag.TextNamespace(string(src.Data)), nil
	}
	return rag.Namespace(src.Locator)
}

// IndexResource loads, chunks and indexes src and returns its namespace.
// Indexing the same source again appends records to the same namespace.
func (p *Pipeline) IndexResource(ctx context.Context, src loader.Source) (ns string, err error) {
	ctx, done := begin(ctx, "index", slog.String("kind", string(src.Kind)))
	defer func() { done(err) }()

	ns, err = NamespaceFor(src)
	if err != nil {
		return "", fmt.Errorf("pipeline: %w", err)
	}
	passages, err := p.passages(ctx, src)
	if err != nil {
		return "", err
	}
	docs := make([]rag.Document, len(passages))
	for i, pg := range passages {
		docs[i] = rag.Document{Content: pg.Text, Source: pg.Metadata["source"], Metadata: pg.Metadata}
	}
	n, err := p.index.Add(ctx, ns, docs)
	if err != nil {
		return "", fmt.Errorf("pipeline: index %s: %w", ns, err)
	}
	logging.FromContext(ctx).Info("resource indexed",
		slog.String("namespace", ns),
		slog.Int("passages", n),
		slog.Int("chunk_size", p.chunker.Size()),
		slog.Int("chunk_overlap", p.chunker.Overlap()),
	)
	return ns, nil
}

// SummarizeResource loads src and summarizes it.
func (p *Pipeline) SummarizeResource(ctx context.Context, src loader.Source) (s *summarize.Summary, err error) {
	ctx, done := begin(ctx, "summarize", slog.String("kind", string(src.Kind)))
	defer func() { done(err) }()

	blocks, err := p.loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load: %w", err)
	}
	s, err = p.summarizer.Summarize(ctx, blocks)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return s, nil
}

// GenerateQuiz returns up to count multiple-choice questions drawn from
// summary and the passages of src.
func (p *Pipeline) GenerateQuiz(ctx context.Context, summary string, src loader.Source, count int) (res *questions.Result[questions.QuizQuestion], err error) {
	ctx, done := begin(ctx, "quiz", slog.Int("count", count))
	defer func() { done(err) }()
	return generate(ctx, p, p.quiz, summary, src, count)
}

// GenerateFlashcards returns up to count flashcards drawn from summary and
// the passages of src.
func (p *Pipeline) GenerateFlashcards(ctx context.Context, summary string, src loader.Source, count int) (res *questions.Result[questions.Flashcard], err error) {
	ctx, done := begin(ctx, "flashcards", slog.Int("count", count))
	defer func() { done(err) }()
	return generate(ctx, p, p.flashcards, summary, src, count)
}

func generate[T any](ctx context.Context, p *Pipeline, g *questions.Generator[T], summary string, src loader.Source, count int) (*questions.Result[T], error) {
	if err := questions.ValidCount(count); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	passages, err := p.passages(ctx, src)
	if err != nil {
		return nil, err
	}
	res, err := g.Generate(ctx, summary, passages, count)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if res.Partial {
		logging.FromContext(ctx).Warn("partial generation",
			slog.Int("requested", res.Requested),
			slog.Int("produced", len(res.Items)),
		)
	}
	return res, nil
}

// InitChat indexes src and opens a chat thread over its namespace. An
// empty threadID gets a random one; an existing thread of the same user is
// returned as stored.
func (p *Pipeline) InitChat(ctx context.Context, userID string, src loader.Source, summary, threadID string) (t *checkpoint.Thread, err error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	ctx = logging.With(ctx, slog.String("user_id", userID))
	ns, err := p.IndexResource(ctx, src)
	if err != nil {
		return nil, err
	}

	ctx, done := begin(ctx, "init_chat", slog.String("namespace", ns))
	defer func() { done(err) }()
	if threadID == "" {
		threadID = uuid.NewString()
	}
	t, err = p.chat.InitThread(ctx, checkpoint.Thread{
		ThreadID:  threadID,
		Namespace: ns,
		Summary:   summary,
		UserID:    userID,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return t, nil
}

// SendChatMessage runs one chat turn for the requesting user.
func (p *Pipeline) SendChatMessage(ctx context.Context, req ChatRequest) (turn *chat.Turn, err error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrUnauthenticated
	}
	ctx = logging.With(ctx, slog.String("user_id", req.UserID))
	ctx, done := begin(ctx, "chat", slog.String("thread_id", req.ThreadID))
	defer func() { done(err) }()

	turn, err = p.chat.Send(ctx, chat.Request{
		ThreadID:  req.ThreadID,
		UserID:    req.UserID,
		Namespace: req.Namespace,
		Summary:   req.Summary,
		Message:   req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return turn, nil
}

// History returns the visible messages of a thread owned by userID.
func (p *Pipeline) History(ctx context.Context, userID, threadID string) ([]chat.Message, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	msgs, err := p.chat.History(ctx, threadID, userID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return msgs, nil
}

func (p *Pipeline) passages(ctx context.Context, src loader.Source) ([]chunker.Passage, error) {
	blocks, err := p.loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load: %w", err)
	}
	return p.chunker.Split(blocks), nil
}

// begin logs the start of op and returns a context carrying op plus the
// function that logs its outcome.
func begin(ctx context.Context, op string, attrs ...any) (context.Context, func(error)) {
	ctx = logging.With(ctx, slog.String("op", op))
	log := logging.FromContext(ctx)
	log.Info("operation started", attrs...)
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			log.Error("operation failed", slog.Any("error", err), slog.Duration("duration", time.Since(start)))
			return
		}
		log.Info("operation finished", slog.Duration("duration", time.Since(start)))
	}
}
