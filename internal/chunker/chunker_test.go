package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/54b3r/studykit-go/internal/loader"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		size, overlap int
		wantErr       bool
	}{
		{"defaults", DefaultSize, DefaultOverlap, false},
		{"no overlap", 10, 0, false},
		{"zero size", 0, 0, true},
		{"negative overlap", 10, -1, true},
		{"overlap equals size", 10, 10, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, err := New(tc.size, tc.overlap)
			if tc.wantErr != (err != nil) {
				t.Fatalf("New(%d, %d) error = %v, wantErr %v", tc.size, tc.overlap, err, tc.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("error %v is not ErrInvalidConfig", err)
				}
				return
			}
			if s.Size() != tc.size || s.Overlap() != tc.overlap {
				t.Errorf("Size, Overlap = %d, %d; want %d, %d", s.Size(), s.Overlap(), tc.size, tc.overlap)
			}
		})
	}
}

// checkWindows asserts the size bound, exact overlap and full coverage of
// the chunks produced for text.
func checkWindows(t *testing.T, text string, chunks []string, size, overlap int) {
	t.Helper()
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	var rebuilt []rune
	for i, c := range chunks {
		r := []rune(c)
		if len(r) > size {
			t.Errorf("chunk %d has %d runes, max %d", i, len(r), size)
		}
		if i == 0 {
			rebuilt = append(rebuilt, r...)
			continue
		}
		prev := []rune(chunks[i-1])
		if len(prev) < overlap || len(r) <= overlap {
			t.Fatalf("chunk %d too short for overlap %d", i, overlap)
		}
		if string(prev[len(prev)-overlap:]) != string(r[:overlap]) {
			t.Errorf("chunk %d overlap mismatch: %q vs %q", i, string(prev[len(prev)-overlap:]), string(r[:overlap]))
		}
		rebuilt = append(rebuilt, r[overlap:]...)
	}
	if string(rebuilt) != text {
		t.Errorf("chunks do not cover the text:\n got %q\nwant %q", string(rebuilt), text)
	}
}

func TestSplitText_Properties(t *testing.T) {
	t.Parallel()

	words := strings.Repeat("the quick brown fox jumps over the lazy dog ", 60)
	tests := []struct {
		name          string
		text          string
		size, overlap int
	}{
		{"short text", "hello world", 100, 20},
		{"prose defaults", words, DefaultSize, DefaultOverlap},
		{"prose small window", words, 37, 11},
		{"no whitespace", strings.Repeat("x", 95), 10, 3},
		{"no overlap", words, 50, 0},
		{"multibyte", strings.Repeat("猫はかわいい 動物です ", 40), 25, 5},
		{"exact fit", strings.Repeat("a", 20), 20, 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, err := New(tc.size, tc.overlap)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			checkWindows(t, tc.text, s.SplitText(tc.text), tc.size, tc.overlap)
		})
	}
}

func TestSplitText_PrefersWhitespace(t *testing.T) {
	t.Parallel()

	s, _ := New(12, 2)
	chunks := s.SplitText("alpha beta gamma delta")
	if chunks[0] != "alpha beta " {
		t.Errorf("first chunk = %q, want %q", chunks[0], "alpha beta ")
	}
	for _, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("invalid utf-8 chunk %q", c)
		}
	}
}

func TestSplit_Metadata(t *testing.T) {
	t.Parallel()

	s, _ := New(10, 2)
	blocks := []loader.Block{
		{Text: "first block of text here", Metadata: map[string]string{"source": "a", "title": "A"}},
		{Text: "   \n\t ", Metadata: map[string]string{"source": "blank"}},
		{Text: "second", Metadata: map[string]string{"source": "b"}},
	}

	passages := s.Split(blocks)
	if len(passages) < 3 {
		t.Fatalf("got %d passages, want at least 3", len(passages))
	}
	for i, p := range passages {
		if p.Index != i {
			t.Errorf("passage %d has Index %d", i, p.Index)
		}
		if p.Metadata["source"] == "blank" {
			t.Error("whitespace-only block produced a passage")
		}
	}
	last := passages[len(passages)-1]
	if last.Text != "second" || last.Metadata["source"] != "b" {
		t.Errorf("last passage = %+v", last)
	}
	if passages[0].Metadata["title"] != "A" || passages[0].Metadata["chunk_index"] != "0" {
		t.Errorf("first passage metadata = %v", passages[0].Metadata)
	}
	if _, ok := blocks[0].Metadata["chunk_index"]; ok {
		t.Error("Split mutated the block metadata")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	t.Parallel()

	s, _ := New(40, 8)
	blocks := []loader.Block{{Text: strings.Repeat("cats purr and nap in the sun. ", 20), Metadata: map[string]string{"source": "x"}}}
	a, b := s.Split(blocks), s.Split(blocks)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text {
			t.Errorf("passage %d differs", i)
		}
	}
}
