package loader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// TextLoader wraps already extracted text as a single block. PDF sources
// are converted with ExtractPDFText first.
type TextLoader struct{}

// Load implements Loader.
func (TextLoader) Load(_ context.Context, src Source) ([]Block, error) {
	switch src.Kind {
	case KindText:
		return []Block{{
			Text:     strings.TrimSpace(src.Locator),
			Metadata: map[string]string{"source": "text"},
		}}, nil

	case KindPDF:
		text, err := ExtractPDFText(src.Data, src.StartPage, src.EndPage)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("%w: pdf has no extractable text", ErrNoContent)
		}
		meta := map[string]string{"source": "pdf"}
		if src.Locator != "" {
			meta["source"] = src.Locator
		}
		if validRange(src.StartPage, src.EndPage) {
			meta["start_page"] = strconv.Itoa(src.StartPage)
			meta["end_page"] = strconv.Itoa(src.EndPage)
		}
		return []Block{{Text: text, Metadata: meta}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, src.Kind)
}
