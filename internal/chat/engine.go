// Package chat answers questions about an indexed document over a durable
// conversation thread. Each turn runs a small graph (classify, answer from
// the summary or from retrieved passages, generate) whose control flow is
// the pure Transition function; the Engine performs the model and tool I/O
// at the edges and persists every produced message to a checkpoint store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/studykit-go/internal/budget"
	"github.com/54b3r/studykit-go/internal/checkpoint"
	"github.com/54b3r/studykit-go/internal/logging"
	"github.com/54b3r/studykit-go/internal/rag"
	"github.com/54b3r/studykit-go/internal/tools"
)

var (
	// ErrThreadNotFound is returned when a thread does not exist or belongs
	// to another user.
	ErrThreadNotFound = errors.New("chat: thread not found")
	// ErrEmptyMessage is returned for a blank user message.
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrStepLimit is returned when a turn does not reach the end node
	// within the configured number of steps.
	ErrStepLimit = errors.New("chat: step limit exceeded")
	// ErrToolNotAllowed is returned when the model calls a tool outside the
	// allow-list. The turn fails and nothing is persisted.
	ErrToolNotAllowed = tools.ErrToolNotAllowed
)

const (
	useSummaryPrompt = "You are a helpful assistant. Use the provided summary to answer concisely."

	generatePrompt = "You are an assistant for question-answering tasks. " +
		"Use the following pieces of retrieved context to answer " +
		"the question. If you don't know the answer, say that you " +
		"don't know. Use three sentences maximum and keep the " +
		"answer concise."

	// defaultMaxSteps bounds a turn. It must not be below longestPath.
	defaultMaxSteps = 8
)

// Config holds the dependencies of an Engine.
type Config struct {
	// Model answers, calls tools and, without a Classifier, classifies.
	Model model.ToolCallingChatModel

	// Store persists threads and their history.
	Store checkpoint.Store

	// Retriever backs the retrieve tool.
	Retriever rag.Retriever

	// Classifier routes questions. Nil selects a ModelClassifier on Model.
	Classifier Classifier

	// TopK is the number of passages per retrieval. Zero selects 3.
	TopK int

	// MaxContextTokens bounds the history sent to the model. Zero selects
	// budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// MaxSteps bounds the transitions of one turn. Zero selects 8.
	MaxSteps int
}

// Engine runs chat turns. It is safe for concurrent use; sends on the same
// thread are serialized.
type Engine struct {
	model      model.ToolCallingChatModel
	store      checkpoint.Store
	retriever  rag.Retriever
	classifier Classifier
	topK       int
	maxTokens  int
	maxSteps   int
	locks      *threadLocks
}

// New constructs an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("chat: Model must not be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("chat: Store must not be nil")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("chat: Retriever must not be nil")
	}
	e := &Engine{
		model:      cfg.Model,
		store:      cfg.Store,
		retriever:  cfg.Retriever,
		classifier: cfg.Classifier,
		topK:       cfg.TopK,
		maxTokens:  cfg.MaxContextTokens,
		maxSteps:   cfg.MaxSteps,
		locks:      newThreadLocks(),
	}
	if e.classifier == nil {
		e.classifier = NewModelClassifier(cfg.Model)
	}
	if e.topK <= 0 {
		e.topK = tools.DefaultRetrieveTopK
	}
	if e.maxTokens <= 0 {
		e.maxTokens = budget.DefaultMaxContextTokens
	}
	if e.maxSteps <= 0 {
		e.maxSteps = defaultMaxSteps
	}
	return e, nil
}

// Message is a user-visible chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is the result of one send: the new user message and the answer,
// plus the route the question took.
type Turn struct {
	ThreadID string    `json:"threadId"`
	Messages []Message `json:"messages"`
	Route    Route     `json:"route"`
}

// Request is one user message on a thread. Namespace and Summary override
// the values stored with the thread when set.
type Request struct {
	ThreadID  string
	UserID    string
	Namespace string
	Summary   string
	Message   string
}

// InitThread creates a thread, or returns the existing one with that id
// when it belongs to the same user.
func (e *Engine) InitThread(ctx context.Context, t checkpoint.Thread) (*checkpoint.Thread, error) {
	stored, err := e.store.CreateThread(ctx, t)
	if err != nil {
		return nil, err
	}
	if stored.UserID != t.UserID {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, t.ThreadID)
	}
	return stored, nil
}

// History returns the user-visible messages of a thread.
func (e *Engine) History(ctx context.Context, threadID, userID string) ([]Message, error) {
	cp, err := e.load(ctx, threadID, userID)
	if err != nil {
		return nil, err
	}
	return visible(cp.Messages), nil
}

func (e *Engine) load(ctx context.Context, threadID, userID string) (*checkpoint.Checkpoint, error) {
	cp, err := e.store.Load(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("chat: load thread: %w", err)
	}
	if cp.Thread.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	return cp, nil
}

// Send runs one turn. The thread history is loaded, the graph runs over it
// plus the new message, and every produced message (tool traffic included)
// is appended to the thread. Sending the same message twice appends two
// turns.
func (e *Engine) Send(ctx context.Context, req Request) (*Turn, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	release := e.locks.lock(req.ThreadID)
	defer release()

	ctx = logging.With(ctx, slog.String("thread_id", req.ThreadID))
	log := logging.FromContext(ctx)
	start := time.Now()

	cp, err := e.load(ctx, req.ThreadID, req.UserID)
	if err != nil {
		return nil, err
	}
	namespace := firstNonEmpty(req.Namespace, cp.Thread.Namespace)
	summary := firstNonEmpty(req.Summary, cp.Thread.Summary, tools.NoSummary)

	toolset, err := tools.NewToolset(
		tools.NewRetrieveTool(e.retriever, namespace, e.topK),
		tools.NewSummaryTool(summary),
	)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	user := schema.UserMessage(req.Message)
	st := &turnState{
		history:  append(cp.Messages, user),
		produced: []*schema.Message{user},
		summary:  summary,
		toolset:  toolset,
	}

	if err := e.run(ctx, st); err != nil {
		log.Warn("chat turn failed", slog.Any("error", err), slog.String("route", string(st.route)))
		return nil, err
	}

	if err := e.store.Append(ctx, req.ThreadID, string(st.route), st.produced); err != nil {
		return nil, fmt.Errorf("chat: persist turn: %w", err)
	}
	log.Info("chat turn complete",
		slog.String("route", string(st.route)),
		slog.Int("produced", len(st.produced)),
		slog.Duration("duration", time.Since(start)),
	)
	return &Turn{ThreadID: req.ThreadID, Messages: visible(st.produced), Route: st.route}, nil
}

// turnState is the data one turn threads through the graph.
type turnState struct {
	history  []*schema.Message
	produced []*schema.Message
	route    Route
	summary  string
	toolset  *tools.Toolset
}

func (s *turnState) add(m *schema.Message) {
	s.history = append(s.history, m)
	s.produced = append(s.produced, m)
}

func (s *turnState) lastUser() *schema.Message {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Role == schema.User {
			return s.history[i]
		}
	}
	return nil
}

// run drives the graph from start to end.
func (e *Engine) run(ctx context.Context, st *turnState) error {
	log := logging.FromContext(ctx)
	node, event := NodeStart, EventBegin
	for step := 0; ; step++ {
		if step >= e.maxSteps {
			return fmt.Errorf("%w: %d steps", ErrStepLimit, e.maxSteps)
		}
		next, effect, err := Transition(node, event)
		if err != nil {
			return err
		}
		log.Debug("chat transition", slog.String("from", node.String()), slog.String("on", event.String()), slog.String("to", next.String()))
		node = next
		if node == NodeEnd {
			return nil
		}
		if event, err = e.execute(ctx, effect, st); err != nil {
			return fmt.Errorf("chat: %s: %w", node, err)
		}
	}
}

// execute performs the I/O of effect and reports its outcome.
func (e *Engine) execute(ctx context.Context, effect Effect, st *turnState) (Event, error) {
	switch effect {
	case EffectClassify:
		route, err := e.classifier.Classify(ctx, st.lastUser())
		if err != nil {
			return 0, err
		}
		st.route = route
		if route == RouteGlobal {
			return EventGlobal, nil
		}
		return EventLocal, nil

	case EffectAnswerFromSummary:
		resp, err := e.model.Generate(ctx, []*schema.Message{
			schema.SystemMessage(useSummaryPrompt),
			st.lastUser(),
			schema.SystemMessage("Document Summary:\n" + st.summary),
		})
		if err != nil {
			return 0, fmt.Errorf("generate: %w", err)
		}
		st.add(resp)
		return EventAnswered, nil

	case EffectQueryOrRespond:
		infos, err := st.toolset.Infos(ctx)
		if err != nil {
			return 0, err
		}
		bound, err := e.model.WithTools(infos)
		if err != nil {
			return 0, fmt.Errorf("bind tools: %w", err)
		}
		resp, err := bound.Generate(ctx, e.fit(nil, st.history))
		if err != nil {
			return 0, fmt.Errorf("generate: %w", err)
		}
		st.add(resp)
		if len(resp.ToolCalls) > 0 {
			return EventToolCalls, nil
		}
		return EventAnswered, nil

	case EffectRunTools:
		last := st.history[len(st.history)-1]
		for _, call := range last.ToolCalls {
			out, err := st.toolset.Invoke(ctx, call)
			if err != nil {
				return 0, err
			}
			st.add(schema.ToolMessage(out, call.ID))
		}
		return EventToolResults, nil

	case EffectGenerate:
		system := schema.SystemMessage(generatePrompt + "\n\n" + trailingToolContent(st.history))
		prompt := e.fit([]*schema.Message{system}, conversation(st.history))
		resp, err := e.model.Generate(ctx, prompt)
		if err != nil {
			return 0, fmt.Errorf("generate: %w", err)
		}
		st.add(resp)
		return EventAnswered, nil
	}
	return 0, fmt.Errorf("%w: no effect %s", ErrInvalidTransition, effect)
}

// fit returns fixed followed by as much of msgs as the token budget allows.
// The final message of msgs is the current question and is always kept.
func (e *Engine) fit(fixed, msgs []*schema.Message) []*schema.Message {
	if len(msgs) == 0 {
		return fixed
	}
	current := msgs[len(msgs)-1]
	kept := append(append([]*schema.Message(nil), fixed...), current)
	history := budget.TrimHistory(kept, msgs[:len(msgs)-1], e.maxTokens)

	out := make([]*schema.Message, 0, len(fixed)+len(history)+1)
	out = append(out, fixed...)
	out = append(out, history...)
	return append(out, current)
}

// trailingToolContent joins the most recent contiguous run of tool results.
func trailingToolContent(history []*schema.Message) string {
	i := len(history)
	for i > 0 && history[i-1].Role == schema.Tool {
		i--
	}
	parts := make([]string, 0, len(history)-i)
	for _, m := range history[i:] {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// conversation keeps user and system messages and assistant messages that
// carry no tool calls.
func conversation(history []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case schema.User, schema.System:
			out = append(out, m)
		case schema.Assistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, m)
			}
		}
	}
	return out
}

// visible returns the user and assistant messages that have content.
func visible(msgs []*schema.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if (m.Role == schema.User || m.Role == schema.Assistant) && m.Content != "" {
			out = append(out, Message{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
