package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakePages []string

func (f fakePages) NumPage() int { return len(f) }

func (f fakePages) PageText(i int) (string, error) {
	if i < 1 || i > len(f) {
		return "", errors.New("no such page")
	}
	return f[i-1], nil
}

func TestExtractPages(t *testing.T) {
	t.Parallel()

	doc := fakePages{"one", "two", "three", "four"}
	tests := []struct {
		name       string
		start, end int
		want       string
	}{
		{"whole document", 0, 0, "onetwothreefour"},
		{"inverted range falls back to whole", 3, 2, "onetwothreefour"},
		{"single page", 2, 2, "\n\n--- Page 2 ---\ntwo"},
		{"range", 2, 3, "\n\n--- Page 2 ---\ntwo\n\n--- Page 3 ---\nthree"},
		{"range past end is clipped", 4, 9, "\n\n--- Page 4 ---\nfour"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := extractPages(doc, tc.start, tc.end)
			if err != nil {
				t.Fatalf("extractPages: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractPages_Concurrent(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := fakePages{fmt.Sprintf("doc-%d-p1", i), fmt.Sprintf("doc-%d-p2", i)}
			results[i], _ = extractPages(doc, 1, 2)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		want := fmt.Sprintf("\n\n--- Page 1 ---\ndoc-%d-p1\n\n--- Page 2 ---\ndoc-%d-p2", i, i)
		if got != want {
			t.Errorf("extraction %d = %q, want %q", i, got, want)
		}
	}
}

func TestExtractPDFText_Malformed(t *testing.T) {
	t.Parallel()

	if _, err := ExtractPDFText([]byte("definitely not a pdf"), 0, 0); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestTextLoader_PDFMalformed(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}).Load(context.Background(), Source{Kind: KindPDF, Data: []byte("%PDF-broken")})
	if err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}
