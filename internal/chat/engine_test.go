package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/studykit-go/internal/checkpoint"
	"github.com/54b3r/studykit-go/internal/modeltest"
	"github.com/54b3r/studykit-go/internal/rag"
	"github.com/54b3r/studykit-go/internal/rag/ragtest"
)

const (
	testNS      = "example_com_cats"
	testUser    = "user-1"
	testSummary = "A document about cats and a chess tournament."
)

var catPassages = []string{
	"Domestic cats sleep between twelve and sixteen hours every day.",
	"The 1975 chess tournament in section three was won by a cat named Boris.",
	"Whiskers help cats judge whether they can fit through narrow gaps.",
}

// fixture bundles an engine with the collaborators tests inspect.
type fixture struct {
	engine *Engine
	model  *modeltest.Model
	store  checkpoint.Store
}

func routeTo(r Route) Classifier {
	return ClassifierFunc(func(context.Context, *schema.Message) (Route, error) { return r, nil })
}

func newFixture(t *testing.T, cls Classifier, replies ...modeltest.Reply) *fixture {
	t.Helper()
	return newFixtureSteps(t, cls, 0, replies...)
}

// newFixtureSteps is newFixture with an explicit step limit.
func newFixtureSteps(t *testing.T, cls Classifier, maxSteps int, replies ...modeltest.Reply) *fixture {
	t.Helper()
	store, err := checkpoint.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	idx := newCatIndex(t)

	m := modeltest.New(replies...)
	e, err := New(Config{Model: m, Store: store, Retriever: idx, Classifier: cls, MaxSteps: maxSteps})
	require.NoError(t, err)

	_, err = e.InitThread(context.Background(), checkpoint.Thread{ThreadID: "t1", Namespace: testNS, Summary: testSummary, UserID: testUser})
	require.NoError(t, err)
	return &fixture{engine: e, model: m, store: store}
}

// newCatIndex returns an in-memory index holding catPassages under testNS.
func newCatIndex(t *testing.T) *rag.Index {
	t.Helper()
	ctx := context.Background()

	vs, err := rag.NewChromemStore("")
	require.NoError(t, err)
	idx, err := rag.NewIndex(&ragtest.HashEmbedder{}, vs, rag.IndexConfig{})
	require.NoError(t, err)
	docs := make([]rag.Document, len(catPassages))
	for i, p := range catPassages {
		docs[i] = rag.Document{Content: p, Source: "https://example.com/cats"}
	}
	_, err = idx.Add(ctx, testNS, docs)
	require.NoError(t, err)
	return idx
}

func send(f *fixture, msg string) (*Turn, error) {
	return f.engine.Send(context.Background(), Request{ThreadID: "t1", UserID: testUser, Message: msg})
}

func Test_Send_GlobalAnswersFromSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routeTo(RouteGlobal), modeltest.Text("It is about cats."))

	turn, err := send(f, "What is this document about overall?")
	require.NoError(t, err)

	assert.Equal(t, RouteGlobal, turn.Route)
	assert.Equal(t, []Message{
		{Role: "user", Content: "What is this document about overall?"},
		{Role: "assistant", Content: "It is about cats."},
	}, turn.Messages)

	calls := f.model.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0]
	require.Len(t, prompt, 3)
	assert.Equal(t, schema.System, prompt[0].Role)
	assert.Equal(t, schema.User, prompt[1].Role)
	assert.Equal(t, "Document Summary:\n"+testSummary, prompt[2].Content)

	cp, err := f.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, cp.Messages, 2)
	assert.Equal(t, "global", cp.Route)
}

func Test_Send_LocalRetrievesThenGenerates(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routeTo(RouteLocal),
		modeltest.ToolCall("c1", "retrieve", `{"query":"The 1975 chess tournament in section three was won by a cat named Boris."}`),
		modeltest.Text("A cat named Boris won it."),
	)

	turn, err := send(f, "What does it say about the 1975 tournament in section 3?")
	require.NoError(t, err)
	assert.Equal(t, RouteLocal, turn.Route)
	require.Len(t, turn.Messages, 2, "tool traffic is hidden from the turn")
	assert.Equal(t, "A cat named Boris won it.", turn.Messages[1].Content)

	calls := f.model.Calls()
	require.Len(t, calls, 2)

	system := calls[1][0]
	assert.Equal(t, schema.System, system.Role)
	assert.Contains(t, system.Content, "Source: https://example.com/cats")
	assert.Contains(t, system.Content, "won by a cat named Boris")
	for _, m := range calls[1][1:] {
		assert.NotEqual(t, schema.Tool, m.Role, "tool results travel in the system prompt only")
		assert.Empty(t, m.ToolCalls)
	}

	cp, err := f.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, cp.Messages, 4)
	assert.Equal(t, schema.Tool, cp.Messages[2].Role)
	assert.Equal(t, "c1", cp.Messages[2].ToolCallID)
}

func Test_Send_LocalDirectAnswer(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routeTo(RouteLocal), modeltest.Text("Hello!"))

	turn, err := send(f, "hi there")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", turn.Messages[1].Content)

	calls := f.model.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, schema.User, calls[0][len(calls[0])-1].Role)
}

func Test_Send_RepeatedMessageAppendsTwoTurns(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routeTo(RouteGlobal), modeltest.Text("first"), modeltest.Text("second"))

	for range 2 {
		_, err := send(f, "Summarize it")
		require.NoError(t, err)
	}
	history, err := f.engine.History(context.Background(), "t1", testUser)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, history[0], history[2])
	assert.Equal(t, "second", history[3].Content)
}

func Test_Send_DisallowedToolFailsClosed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routeTo(RouteLocal), modeltest.ToolCall("c1", "delete_everything", `{}`))

	_, err := send(f, "do something dangerous")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotAllowed), "got %v", err)

	cp, err := f.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, cp.Messages, "failed turn must not be persisted")
}

func Test_Send_ModelErrorPersistsNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routeTo(RouteGlobal), modeltest.Fail(errors.New("provider down")))

	_, err := send(f, "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")

	cp, err := f.store.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, cp.Messages)
}

func Test_Send_StepLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		maxSteps int
		wantErr  bool
	}{
		{name: "tool path fits the longest path", maxSteps: longestPath},
		{name: "one step short", maxSteps: longestPath - 1, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixtureSteps(t, routeTo(RouteLocal), tc.maxSteps,
				modeltest.ToolCall("c1", "retrieve", `{"query":"chess tournament"}`),
				modeltest.Text("Boris won."),
			)

			_, err := send(f, "Who won the tournament?")
			cp, loadErr := f.store.Load(context.Background(), "t1")
			require.NoError(t, loadErr)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrStepLimit)
				assert.Empty(t, cp.Messages)
				return
			}
			require.NoError(t, err)
			assert.Len(t, cp.Messages, 4)
		})
	}
}

// Test_Send_ResumesAfterReopen closes a file-backed store between turns and
// continues the thread with a fresh engine.
func Test_Send_ResumesAfterReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	idx := newCatIndex(t)

	open := func(reply string) (*Engine, checkpoint.Store) {
		store, err := checkpoint.OpenSQLite(path)
		require.NoError(t, err)
		e, err := New(Config{Model: modeltest.New(modeltest.Text(reply)), Store: store, Retriever: idx, Classifier: routeTo(RouteGlobal)})
		require.NoError(t, err)
		return e, store
	}

	first, store := open("answer1")
	_, err := first.InitThread(ctx, checkpoint.Thread{ThreadID: "t1", Namespace: testNS, Summary: testSummary, UserID: testUser})
	require.NoError(t, err)
	_, err = first.Send(ctx, Request{ThreadID: "t1", UserID: testUser, Message: "one"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	second, store := open("answer2")
	t.Cleanup(func() { _ = store.Close() })
	_, err = second.Send(ctx, Request{ThreadID: "t1", UserID: testUser, Message: "two"})
	require.NoError(t, err)

	history, err := second.History(ctx, "t1", testUser)
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "answer1"},
		{Role: "user", Content: "two"},
		{Role: "assistant", Content: "answer2"},
	}, history)
}

func Test_Send_Rejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routeTo(RouteGlobal))
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"empty message", Request{ThreadID: "t1", UserID: testUser, Message: "  "}, ErrEmptyMessage},
		{"missing thread", Request{ThreadID: "nope", UserID: testUser, Message: "hi"}, ErrThreadNotFound},
		{"other user", Request{ThreadID: "t1", UserID: "intruder", Message: "hi"}, ErrThreadNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Send(ctx, tc.req)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
	assert.Empty(t, f.model.Calls(), "rejected sends never reach the model")
}

func Test_Send_ConcurrentTurnsStayContiguous(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routeTo(RouteGlobal))
	f.model.Fallback = func(input []*schema.Message, _ []*schema.ToolInfo) (*schema.Message, error) {
		for _, m := range input {
			if m.Role == schema.User {
				return schema.AssistantMessage("re: "+m.Content, nil), nil
			}
		}
		return nil, errors.New("no user message")
	}

	const senders = 8
	var wg sync.WaitGroup
	for i := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := send(f, fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history, err := f.engine.History(context.Background(), "t1", testUser)
	require.NoError(t, err)
	require.Len(t, history, 2*senders)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, "user", history[i].Role)
		assert.Equal(t, "re: "+history[i].Content, history[i+1].Content, "turn %d interleaved", i/2)
	}
	assert.Zero(t, f.engine.locks.size())
}

func Test_InitThread(t *testing.T) {
	t.Parallel()
	f := newFixture(t, routeTo(RouteGlobal))
	ctx := context.Background()

	got, err := f.engine.InitThread(ctx, checkpoint.Thread{ThreadID: "t1", Namespace: "other", UserID: testUser})
	require.NoError(t, err)
	assert.Equal(t, testNS, got.Namespace, "existing thread is returned unchanged")

	_, err = f.engine.InitThread(ctx, checkpoint.Thread{ThreadID: "t1", Namespace: testNS, UserID: "intruder"})
	assert.True(t, errors.Is(err, ErrThreadNotFound), "got %v", err)
}

func Test_New_RequiresCollaborators(t *testing.T) {
	t.Parallel()
	_, err := New(Config{})
	assert.Error(t, err)
}

func Test_ModelClassifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		question string
		reply    string
		want     Route
	}{
		{"What is this document about overall?", "global", RouteGlobal},
		{"What does it say about the 1975 tournament in section 3?", "local", RouteLocal},
		{"Give me the main topics", " Global\n", RouteGlobal},
	}
	for _, tc := range tests {
		t.Run(tc.question, func(t *testing.T) {
			t.Parallel()
			m := modeltest.New(modeltest.Text(tc.reply))
			got, err := NewModelClassifier(m).Classify(context.Background(), schema.UserMessage(tc.question))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			calls := m.Calls()
			require.Len(t, calls, 1)
			assert.True(t, strings.HasPrefix(calls[0][0].Content, "Classify the user query"))
			assert.Equal(t, tc.question, calls[0][1].Content)
		})
	}
}

func Test_Fit_KeepsCurrentQuestion(t *testing.T) {
	t.Parallel()
	e := &Engine{maxTokens: 50}

	long := strings.Repeat("word ", 200)
	msgs := []*schema.Message{
		schema.UserMessage(long),
		schema.AssistantMessage(long, nil),
		schema.UserMessage("latest?"),
	}
	got := e.fit([]*schema.Message{schema.SystemMessage("sys")}, msgs)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, "sys", got[0].Content)
	assert.Equal(t, "latest?", got[len(got)-1].Content)
	assert.Less(t, len(got), 4, "oversized history is trimmed")
}
