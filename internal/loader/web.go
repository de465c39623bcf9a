package loader

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSelector picks the primary content containers of a page.
const contentSelector = "article, main, .content, #main, #post"

// boilerplateSelector is stripped from the page before text is read.
const boilerplateSelector = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"

// WebLoader fetches an HTML page and keeps the text of its primary content
// containers.
type WebLoader struct {
	client    *http.Client
	userAgent string
}

// Load implements Loader.
func (l *WebLoader) Load(ctx context.Context, src Source) ([]Block, error) {
	resp, err := fetch(ctx, l.client, l.userAgent, src.Locator)
	if err != nil {
		return nil, fmt.Errorf("loader: web: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("loader: web: parse %s: %w", src.Locator, err)
	}

	text := ExtractContent(doc)
	if text == "" {
		return nil, fmt.Errorf("%w: no primary content in %s", ErrNoContent, src.Locator)
	}

	meta := map[string]string{"source": src.Locator}
	if title := normalizeSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}
	return []Block{{Text: text, Metadata: meta}}, nil
}

// ExtractContent returns the normalized text of the document's primary
// content containers. Containers nested inside another match are skipped so
// their text is not repeated.
func ExtractContent(doc *goquery.Document) string {
	doc.Find(boilerplateSelector).Remove()

	var parts []string
	doc.Find(contentSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(contentSelector).Length() > 0 {
			return
		}
		if t := normalizeSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}
