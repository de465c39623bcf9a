package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Route is the classification of a user question.
type Route string

const (
	// RouteGlobal answers from the document summary.
	RouteGlobal Route = "global"
	// RouteLocal answers from retrieved passages.
	RouteLocal Route = "local"
)

const classifyPrompt = "Classify the user query as 'global' if it asks about the overall document (summary, topics, what it's about), otherwise 'local'. Respond with only one word: 'global' or 'local'."

// Classifier labels the latest user message.
type Classifier interface {
	Classify(ctx context.Context, msg *schema.Message) (Route, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, msg *schema.Message) (Route, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, msg *schema.Message) (Route, error) {
	return f(ctx, msg)
}

// ModelClassifier asks a chat model for the label. It is a heuristic: a
// misclassification degrades the answer, it is never an error.
type ModelClassifier struct {
	model model.BaseChatModel
}

// NewModelClassifier returns a ModelClassifier backed by m.
func NewModelClassifier(m model.BaseChatModel) *ModelClassifier {
	return &ModelClassifier{model: m}
}

// Classify implements Classifier.
func (c *ModelClassifier) Classify(ctx context.Context, msg *schema.Message) (Route, error) {
	resp, err := c.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(classifyPrompt),
		msg,
	})
	if err != nil {
		return "", fmt.Errorf("chat: classify: %w", err)
	}
	return ParseRoute(resp.Content), nil
}

// ParseRoute maps model output to a route: any output containing "global"
// in any case is global, everything else is local.
func ParseRoute(output string) Route {
	if strings.Contains(strings.ToLower(output), string(RouteGlobal)) {
		return RouteGlobal
	}
	return RouteLocal
}
