package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/studykit-go/internal/rag"
)

// RetrieveName is the tool name of RetrieveTool.
const RetrieveName = "retrieve"

// DefaultRetrieveTopK is the number of passages returned per retrieval.
const DefaultRetrieveTopK = 3

// RetrieveTool searches one document namespace for passages related to a
// query.
type RetrieveTool struct {
	retriever rag.Retriever
	namespace string
	topK      int
}

// retrieveInput is the JSON input schema for RetrieveTool.
type retrieveInput struct {
	Query string `json:"query"`
}

// NewRetrieveTool returns a RetrieveTool over namespace. topK <= 0 selects
// DefaultRetrieveTopK.
func NewRetrieveTool(r rag.Retriever, namespace string, topK int) *RetrieveTool {
	if topK <= 0 {
		topK = DefaultRetrieveTopK
	}
	return &RetrieveTool{retriever: r, namespace: namespace, topK: topK}
}

// Name implements Capability.
func (t *RetrieveTool) Name() string { return RetrieveName }

// Description implements Capability.
func (t *RetrieveTool) Description() string {
	return "Retrieve information related to a query."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *RetrieveTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Search query describing the information needed from the document.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun searches the namespace and serializes each hit as
// "Source: <source>\nContent: <text>", joined by newlines.
func (t *RetrieveTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input retrieveInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("retrieve: invalid input: %w", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", fmt.Errorf("retrieve: query is required")
	}

	docs, err := t.retriever.Retrieve(ctx, t.namespace, input.Query, t.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", err)
	}
	return FormatDocuments(docs), nil
}

// FormatDocuments serializes retrieved documents for the model.
func FormatDocuments(docs []rag.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		source := d.Source
		if source == "" {
			source = d.Metadata["source"]
		}
		parts[i] = fmt.Sprintf("Source: %s\nContent: %s", source, d.Content)
	}
	return strings.Join(parts, "\n")
}
