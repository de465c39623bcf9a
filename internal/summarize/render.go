package summarize

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy   = bluemonday.UGCPolicy()
)

// RenderHTML converts a markdown summary to sanitized HTML. Model output is
// untrusted, so any raw HTML it contains is filtered through a UGC policy.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("summarize: render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}
