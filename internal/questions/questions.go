// Package questions generates quiz questions and flashcards from a document
// summary and its passages. Generation mixes broad items drawn from the
// summary with specific items drawn from randomly ordered passages, and
// bounds the number of model calls by an attempt budget.
package questions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/studykit-go/internal/chunker"
	"github.com/54b3r/studykit-go/internal/llmjson"
	"github.com/54b3r/studykit-go/internal/logging"
)

var (
	// ErrInvalidCount is returned for a target count outside 1..MaxCount.
	ErrInvalidCount = errors.New("questions: invalid target count")
	// ErrMalformedOutput is returned when a model reply cannot be decoded
	// into items of the requested shape. It aborts the whole generation.
	ErrMalformedOutput = errors.New("questions: malformed model output")
)

// MaxCount is the largest target a single generation accepts.
const MaxCount = 200

// ValidCount reports whether n is an acceptable target count.
func ValidCount(n int) error {
	if n <= 0 || n > MaxCount {
		return fmt.Errorf("%w: got %d, want 1..%d", ErrInvalidCount, n, MaxCount)
	}
	return nil
}

// passageBatch is the number of items requested per passage when passages
// are plentiful.
const passageBatch = 2

// Format describes one kind of generated item: how to prompt for it and how
// to check a decoded item.
type Format[T any] interface {
	// Name identifies the format in logs and metrics.
	Name() string
	// SummaryPrompt asks for n items drawn from the document summary.
	SummaryPrompt(n int, summary string) string
	// PassagePrompt asks for n items drawn from a single passage.
	PassagePrompt(n int, passage string) string
	// Normalize validates item and returns it in canonical form.
	Normalize(item T) (T, error)
}

// Result is the outcome of a generation. Partial is true when the passages
// ran out before Requested items were produced.
type Result[T any] struct {
	Items     []T  `json:"items"`
	Requested int  `json:"requested"`
	Partial   bool `json:"partial"`
}

// Generator produces items of type T with a chat model.
type Generator[T any] struct {
	model   model.BaseChatModel
	format  Format[T]
	shuffle Shuffler
}

// Option configures a Generator.
type Option func(*options)

type options struct {
	shuffle Shuffler
}

// WithShuffler replaces the randomness used to order passages and results.
func WithShuffler(s Shuffler) Option {
	return func(o *options) { o.shuffle = s }
}

// NewGenerator returns a Generator for format backed by m.
func NewGenerator[T any](m model.BaseChatModel, format Format[T], opts ...Option) (*Generator[T], error) {
	if m == nil {
		return nil, fmt.Errorf("questions: model must not be nil")
	}
	if format == nil {
		return nil, fmt.Errorf("questions: format must not be nil")
	}
	o := options{shuffle: defaultShuffler{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Generator[T]{model: m, format: format, shuffle: o.shuffle}, nil
}

// Split returns how many of target items come from the summary and how many
// from passages. The summary share is 30% rounded up.
func Split(target int) (fromSummary, fromChunks int) {
	fromSummary = target/10*3 + (target%10*3+9)/10
	return fromSummary, target - fromSummary
}

// Generate returns up to target items in random order. With enough
// passages it returns exactly target; otherwise Result.Partial is set.
// Every model call is sequential and any failure aborts the generation.
func (g *Generator[T]) Generate(ctx context.Context, summary string, passages []chunker.Passage, target int) (*Result[T], error) {
	if err := ValidCount(target); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).With(slog.String("format", g.format.Name()))
	start := time.Now()
	fromSummary, fromChunks := Split(target)

	items, err := g.call(ctx, g.format.SummaryPrompt(fromSummary, summary))
	if err != nil {
		return nil, fmt.Errorf("questions: summary: %w", err)
	}
	calls := 1

	shuffled := Shuffle(g.shuffle, passages)
	attempts := fromChunks
	total := len(shuffled)

	switch {
	case total == 0:
	case total*passageBatch >= fromChunks:
		for _, p := range shuffled {
			if attempts <= 0 || len(items) >= target {
				break
			}
			attempts--
			more, err := g.call(ctx, g.format.PassagePrompt(passageBatch, p.Text))
			if err != nil {
				return nil, fmt.Errorf("questions: passage %d: %w", p.Index, err)
			}
			items = append(items, more...)
			calls++
		}
	default:
		perChunk := int(math.Round(float64(fromChunks) / float64(total)))
		for i := 0; attempts > 0 && len(items) < target; i++ {
			p := shuffled[i%total]
			attempts--
			more, err := g.call(ctx, g.format.PassagePrompt(perChunk, p.Text))
			if err != nil {
				return nil, fmt.Errorf("questions: passage %d: %w", p.Index, err)
			}
			items = append(items, more...)
			calls++
		}
	}

	if len(items) > target {
		items = items[:target]
	}
	res := &Result[T]{
		Items:     Shuffle(g.shuffle, items),
		Requested: target,
		Partial:   len(items) < target,
	}
	log.Debug("items generated",
		slog.Int("requested", target),
		slog.Int("produced", len(res.Items)),
		slog.Int("calls", calls),
		slog.Int("passages", total),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (g *Generator[T]) call(ctx context.Context, prompt string) ([]T, error) {
	resp, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	raw, err := llmjson.DecodeList[T](resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	out := make([]T, 0, len(raw))
	for i, item := range raw {
		norm, err := g.format.Normalize(item)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrMalformedOutput, i, err)
		}
		out = append(out, norm)
	}
	return out, nil
}

func requireFields(fields ...[2]string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}
