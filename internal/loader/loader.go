// Package loader turns a document source (web page, YouTube video, inline
// text or PDF bytes) into text blocks carrying source metadata. Loading is
// all or nothing: any fetch or parse failure fails the whole load.
package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind identifies how a Source is fetched and parsed.
type Kind string

const (
	// KindWeb is an HTML page addressed by URL.
	KindWeb Kind = "web"
	// KindYouTube is a YouTube video whose transcript is loaded.
	KindYouTube Kind = "youtube"
	// KindText is text that was already extracted elsewhere.
	KindText Kind = "text"
	// KindPDF is a PDF document supplied as raw bytes.
	KindPDF Kind = "pdf"
)

var (
	// ErrUnsupportedKind is returned for a Source kind with no loader.
	ErrUnsupportedKind = errors.New("loader: unsupported source kind")
	// ErrInvalidSource is returned when a Source is missing required fields.
	ErrInvalidSource = errors.New("loader: invalid source")
	// ErrNoContent is returned when a source yields no usable text.
	ErrNoContent = errors.New("loader: no content found")
	// ErrNoTranscript is returned when a video has no captions in the
	// requested language.
	ErrNoTranscript = errors.New("loader: no transcript available")
	// ErrVideoUnavailable is returned for private, removed or otherwise
	// unplayable videos.
	ErrVideoUnavailable = errors.New("loader: video unavailable")
)

// Source addresses one document.
type Source struct {
	// Kind selects the loader.
	Kind Kind `json:"kind"`

	// Locator is the URL for web and youtube sources, the text itself for
	// text sources, and an optional file name for pdf sources.
	Locator string `json:"locator"`

	// Language is the transcript language for youtube sources ("en" when empty).
	Language string `json:"language,omitempty"`

	// Data holds the raw bytes of a pdf source.
	Data []byte `json:"data,omitempty"`

	// StartPage and EndPage select an inclusive 1-based page range of a pdf
	// source. Zero values select the whole document.
	StartPage int `json:"startPage,omitempty"`
	EndPage   int `json:"endPage,omitempty"`
}

// Validate reports whether s carries the fields its kind needs.
func (s Source) Validate() error {
	switch s.Kind {
	case KindWeb, KindYouTube:
		if !strings.HasPrefix(s.Locator, "http://") && !strings.HasPrefix(s.Locator, "https://") {
			return fmt.Errorf("%w: %s source needs an http(s) URL", ErrInvalidSource, s.Kind)
		}
	case KindText:
		if strings.TrimSpace(s.Locator) == "" {
			return fmt.Errorf("%w: text source is empty", ErrInvalidSource)
		}
	case KindPDF:
		if len(s.Data) == 0 {
			return fmt.Errorf("%w: pdf source has no data", ErrInvalidSource)
		}
		if s.StartPage < 0 || s.EndPage < 0 {
			return fmt.Errorf("%w: negative page range", ErrInvalidSource)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, s.Kind)
	}
	return nil
}

// Block is a unit of loaded text. Metadata always contains "source".
type Block struct {
	// Text is the normalized plain text.
	Text string `json:"text"`
	// Metadata describes where the text came from.
	Metadata map[string]string `json:"metadata"`
}

// Loader loads one Source into text blocks.
type Loader interface {
	Load(ctx context.Context, src Source) ([]Block, error)
}

// Config holds the settings shared by the built-in loaders.
type Config struct {
	// HTTPClient performs every fetch. Nil selects a client with Timeout.
	HTTPClient *http.Client

	// Timeout bounds each HTTP request when HTTPClient is nil. Zero selects 30s.
	Timeout time.Duration

	// UserAgent is sent with every web page request.
	UserAgent string

	// TranscriptLanguage is the default caption language for youtube sources.
	TranscriptLanguage string
}

// Dispatcher routes a Source to the loader for its kind.
type Dispatcher struct {
	loaders map[Kind]Loader
}

// New returns a Dispatcher wired with the web, youtube, text and pdf loaders.
func New(cfg Config) *Dispatcher {
	if cfg.HTTPClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; studykit/1.0)"
	}
	if cfg.TranscriptLanguage == "" {
		cfg.TranscriptLanguage = "en"
	}
	text := TextLoader{}
	return &Dispatcher{loaders: map[Kind]Loader{
		KindWeb:     &WebLoader{client: cfg.HTTPClient, userAgent: cfg.UserAgent},
		KindYouTube: NewYouTubeLoader(cfg.HTTPClient, cfg.TranscriptLanguage),
		KindText:    text,
		KindPDF:     text,
	}}
}

// Load validates src and delegates to the loader registered for its kind.
func (d *Dispatcher) Load(ctx context.Context, src Source) ([]Block, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	l, ok := d.loaders[src.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, src.Kind)
	}
	blocks, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, src.Kind)
	}
	return blocks, nil
}

// fetch performs a GET and returns the response for a 2xx status.
// The caller closes the body.
func fetch(ctx context.Context, client *http.Client, userAgent, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status code %d", url, resp.StatusCode)
	}
	return resp, nil
}

// normalizeSpace collapses every whitespace run to a single space.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
