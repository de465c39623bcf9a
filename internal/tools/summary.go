package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// SummaryName is the tool name of SummaryTool.
const SummaryName = "summary"

// NoSummary stands in for a thread that has no stored summary.
const NoSummary = "No Summary Data"

// SummaryTool returns the cached summary of the document being discussed.
type SummaryTool struct {
	summary string
}

// NewSummaryTool returns a SummaryTool answering with summary.
func NewSummaryTool(summary string) *SummaryTool {
	if summary == "" {
		summary = NoSummary
	}
	return &SummaryTool{summary: summary}
}

// Name implements Capability.
func (t *SummaryTool) Name() string { return SummaryName }

// Description implements Capability.
func (t *SummaryTool) Description() string {
	return "Return the summary of the whole document. Use it for questions about the document's overall topic or themes."
}

// Info returns the Eino tool metadata. The tool takes no arguments.
func (t *SummaryTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        t.Name(),
		Desc:        t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

// InvokableRun returns the summary.
func (t *SummaryTool) InvokableRun(_ context.Context, _ string, _ ...tool.Option) (string, error) {
	return t.summary, nil
}
