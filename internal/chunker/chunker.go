// Package chunker splits loaded text blocks into overlapping passages sized
// for embedding and for question generation prompts.
package chunker

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"unicode"

	"github.com/54b3r/studykit-go/internal/loader"
)

const (
	// DefaultSize is the default maximum passage length in runes.
	DefaultSize = 1000
	// DefaultOverlap is the default number of runes shared by neighbours.
	DefaultOverlap = 200
)

// ErrInvalidConfig is returned by New for an unusable size/overlap pair.
var ErrInvalidConfig = errors.New("chunker: invalid configuration")

// Passage is one chunk of a block.
type Passage struct {
	// Text is at most Size runes long.
	Text string `json:"text"`
	// Metadata is the parent block's metadata plus "chunk_index".
	Metadata map[string]string `json:"metadata"`
	// Index is the position of the passage across the whole split.
	Index int `json:"index"`
}

// Splitter is a sliding-window splitter. The zero value is not usable; call New.
type Splitter struct {
	size    int
	overlap int
}

// New returns a Splitter producing passages of at most size runes where
// neighbouring passages share exactly overlap runes.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, size, overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Size returns the maximum passage length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the number of runes shared by neighbouring passages.
func (s *Splitter) Overlap() int { return s.overlap }

// Split chunks every block in order. Empty and whitespace-only blocks yield
// nothing. Split is pure: the same input always produces the same passages.
func (s *Splitter) Split(blocks []loader.Block) []Passage {
	var out []Passage
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		for _, text := range s.SplitText(b.Text) {
			meta := make(map[string]string, len(b.Metadata)+1)
			maps.Copy(meta, b.Metadata)
			meta["chunk_index"] = strconv.Itoa(len(out))
			out = append(out, Passage{Text: text, Metadata: meta, Index: len(out)})
		}
	}
	return out
}

// SplitText chunks a single string.
func (s *Splitter) SplitText(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var out []string
	start := 0
	for {
		end := min(start+s.size, n)
		if end < n {
			end = s.breakPoint(runes, start, end)
		}
		out = append(out, string(runes[start:end]))
		if end == n {
			return out
		}
		start = end - s.overlap
	}
}

// breakPoint moves end back to just after the last whitespace in the window
// when that still leaves the next window starting past start.
func (s *Splitter) breakPoint(runes []rune, start, end int) int {
	for i := end - 1; i > start+s.overlap; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
