// Package summarize produces a titled markdown summary of a loaded document
// with a single completion call.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/studykit-go/internal/llmjson"
	"github.com/54b3r/studykit-go/internal/loader"
	"github.com/54b3r/studykit-go/internal/logging"
)

// ErrMalformedOutput is returned when the model reply is not a JSON object
// with a non-empty title and summary.
var ErrMalformedOutput = errors.New("summarize: malformed model output")

// ErrNoContent is returned when there is no text to summarize.
var ErrNoContent = errors.New("summarize: no content")

const promptTemplate = `Summarize the main themes which should be comprehensive and informative in these retrieved docs with a suitable title: %s.

Respond with only a JSON object of this exact shape and nothing else:
{"summary": "<comprehensive summarization in markdown with large headers and spaces>", "title": "<title of the document preferably within 5 words>"}`

// Summary is the summary artifact of one document.
type Summary struct {
	Title    string `json:"title"`
	Markdown string `json:"summary"`
}

// Summarizer asks a chat model for a document summary.
type Summarizer struct {
	model model.BaseChatModel
}

// New returns a Summarizer backed by m.
func New(m model.BaseChatModel) (*Summarizer, error) {
	if m == nil {
		return nil, fmt.Errorf("summarize: model must not be nil")
	}
	return &Summarizer{model: m}, nil
}

// Summarize summarizes the concatenated text of blocks. There is no partial
// result: a reply that cannot be decoded fails with ErrMalformedOutput.
func (s *Summarizer) Summarize(ctx context.Context, blocks []loader.Block) (*Summary, error) {
	docs := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			docs = append(docs, t)
		}
	}
	if len(docs) == 0 {
		return nil, ErrNoContent
	}

	start := time.Now()
	resp, err := s.model.Generate(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(promptTemplate, strings.Join(docs, "\n\n"))),
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: generate: %w", err)
	}

	sum, err := parseSummary(resp.Content)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("summary generated",
		slog.String("title", sum.Title),
		slog.Int("blocks", len(docs)),
		slog.Duration("duration", time.Since(start)),
	)
	return sum, nil
}

func parseSummary(output string) (*Summary, error) {
	var sum Summary
	if err := llmjson.Decode(output, &sum); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	sum.Title = strings.TrimSpace(sum.Title)
	sum.Markdown = strings.TrimSpace(sum.Markdown)
	if sum.Title == "" || sum.Markdown == "" {
		return nil, fmt.Errorf("%w: title and summary are required", ErrMalformedOutput)
	}
	return &sum, nil
}
