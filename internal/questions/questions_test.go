package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/studykit-go/internal/chunker"
	"github.com/54b3r/studykit-go/internal/modeltest"
)

var countRE = regexp.MustCompile(`generate (\d+) `)

// cardsReply answers every prompt with as many flashcards as it asks for,
// capped at limit when limit > 0.
func cardsReply(limit int) modeltest.Reply {
	var n int
	return func(input []*schema.Message, _ []*schema.ToolInfo) (*schema.Message, error) {
		m := countRE.FindStringSubmatch(input[0].Content)
		if m == nil {
			return nil, fmt.Errorf("prompt without count: %q", input[0].Content)
		}
		want, _ := strconv.Atoi(m[1])
		if limit > 0 && want > limit {
			want = limit
		}
		cards := make([]Flashcard, want)
		for i := range cards {
			n++
			cards[i] = Flashcard{Question: fmt.Sprintf("Q%d?", n), Answer: fmt.Sprintf("A%d", n)}
		}
		b, _ := json.Marshal(cards)
		return schema.AssistantMessage("```json\n"+string(b)+"\n```", nil), nil
	}
}

func passages(n int) []chunker.Passage {
	out := make([]chunker.Passage, n)
	for i := range out {
		out[i] = chunker.Passage{Text: fmt.Sprintf("passage %d about cats", i), Index: i}
	}
	return out
}

func newFlashcards(t *testing.T, m *modeltest.Model) *Generator[Flashcard] {
	t.Helper()
	g, err := NewGenerator[Flashcard](m, FlashcardFormat{}, WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct{ target, summary, chunks int }{
		{1, 1, 0},
		{3, 1, 2},
		{5, 2, 3},
		{10, 3, 7},
		{11, 4, 7},
		{20, 6, 14},
		{MaxCount, 60, 140},
		{math.MaxInt, 2767011611056432743, math.MaxInt - 2767011611056432743},
	}
	for _, tc := range tests {
		s, c := Split(tc.target)
		if s != tc.summary || c != tc.chunks {
			t.Errorf("Split(%d) = %d, %d; want %d, %d", tc.target, s, c, tc.summary, tc.chunks)
		}
	}
}

func TestValidCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int
		want bool
	}{
		{0, false},
		{-1, false},
		{1, true},
		{MaxCount, true},
		{MaxCount + 1, false},
		{math.MaxInt, false},
	}
	for _, tc := range tests {
		err := ValidCount(tc.n)
		if (err == nil) != tc.want {
			t.Errorf("ValidCount(%d) = %v, want ok=%v", tc.n, err, tc.want)
		}
		if err != nil && !errors.Is(err, ErrInvalidCount) {
			t.Errorf("ValidCount(%d) error = %v, want ErrInvalidCount", tc.n, err)
		}
	}
}

func TestGenerate_CountContract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		passages    int
		target      int
		limit       int
		wantItems   int
		wantCalls   int
		wantPartial bool
	}{
		{"plentiful passages", 3, 5, 0, 5, 3, false},
		{"single item", 4, 1, 0, 1, 1, false},
		{"few passages wrap", 1, 10, 0, 10, 2, false},
		{"no passages", 0, 10, 0, 3, 1, true},
		{"model under-produces until budget", 2, 10, 1, 8, 8, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := modeltest.New()
			m.Fallback = cardsReply(tc.limit)
			g := newFlashcards(t, m)

			res, err := g.Generate(context.Background(), "Doc about cats", passages(tc.passages), tc.target)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(res.Items) != tc.wantItems {
				t.Errorf("items = %d, want %d", len(res.Items), tc.wantItems)
			}
			if len(res.Items) > tc.target {
				t.Errorf("items %d exceed target %d", len(res.Items), tc.target)
			}
			if res.Partial != tc.wantPartial || res.Requested != tc.target {
				t.Errorf("Partial = %v, Requested = %d", res.Partial, res.Requested)
			}
			if got := len(m.Calls()); got != tc.wantCalls {
				t.Errorf("model calls = %d, want %d", got, tc.wantCalls)
			}
		})
	}
}

func TestGenerate_SummaryPromptFirst(t *testing.T) {
	t.Parallel()

	m := modeltest.New()
	m.Fallback = cardsReply(0)
	g := newFlashcards(t, m)
	if _, err := g.Generate(context.Background(), "Doc about cats", passages(3), 5); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	calls := m.Calls()
	if want := (FlashcardFormat{}).SummaryPrompt(2, "Doc about cats"); calls[0][0].Content != want {
		t.Errorf("first prompt = %q, want summary prompt", calls[0][0].Content)
	}
	for _, c := range calls[1:] {
		if !regexp.MustCompile(`generate 2 flashcards[\s\S]*context: passage \d about cats`).MatchString(c[0].Content) {
			t.Errorf("passage prompt = %q", c[0].Content)
		}
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()

	provider := errors.New("provider down")
	tests := []struct {
		name    string
		replies []modeltest.Reply
		target  int
		want    error
	}{
		{"zero target", nil, 0, ErrInvalidCount},
		{"negative target", nil, -3, ErrInvalidCount},
		{"target above max", nil, MaxCount + 1, ErrInvalidCount},
		{"overflowing target", nil, math.MaxInt, ErrInvalidCount},
		{"summary prose", []modeltest.Reply{modeltest.Text("Sure! Here are some cards.")}, 5, ErrMalformedOutput},
		{"passage invalid json", []modeltest.Reply{
			modeltest.Text(`[{"question":"q1","answer":"a1"},{"question":"q2","answer":"a2"}]`),
			modeltest.Text(`[{"question":"q3","answer":`),
		}, 5, ErrMalformedOutput},
		{"missing answer", []modeltest.Reply{modeltest.Text(`[{"question":"q1"}]`)}, 3, ErrMalformedOutput},
		{"provider failure", []modeltest.Reply{modeltest.Fail(provider)}, 3, provider},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := newFlashcards(t, modeltest.New(tc.replies...))
			res, err := g.Generate(context.Background(), "Doc about cats", passages(3), tc.target)
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
			if res != nil {
				t.Errorf("expected no result, got %+v", res)
			}
		})
	}
}

func TestQuizFormat_Normalize(t *testing.T) {
	t.Parallel()

	valid := QuizQuestion{Question: "What do cats eat?", OptionA: "Meat", OptionB: "Rocks", OptionC: "Air", OptionD: "Sand", CorrectAnswer: " A "}
	got, err := QuizFormat{}.Normalize(valid)
	if err != nil || got.CorrectAnswer != "a" {
		t.Errorf("Normalize(valid) = %+v, %v", got, err)
	}

	badAnswer := valid
	badAnswer.CorrectAnswer = "e"
	if _, err := (QuizFormat{}).Normalize(badAnswer); err == nil {
		t.Error("answer e should be rejected")
	}

	missing := valid
	missing.OptionC = ""
	if _, err := (QuizFormat{}).Normalize(missing); err == nil {
		t.Error("missing option should be rejected")
	}
}

func TestGenerate_Quiz(t *testing.T) {
	t.Parallel()

	m := modeltest.New()
	m.Fallback = modeltest.Text(`{"question":"What do cats eat?","a":"Meat","b":"Rocks","c":"Air","d":"Sand","answer":"A"}`)
	g, err := NewGenerator[QuizQuestion](m, QuizFormat{})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	// One question per reply: 1 from the summary, then 1 per passage call.
	res, err := g.Generate(context.Background(), "Doc about cats", passages(4), 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Items) != 3 || res.Partial {
		t.Fatalf("got %d items, partial %v", len(res.Items), res.Partial)
	}
	for _, q := range res.Items {
		if q.CorrectAnswer != "a" {
			t.Errorf("answer = %q, want a", q.CorrectAnswer)
		}
	}
}
