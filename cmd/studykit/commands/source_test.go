package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/studykit-go/internal/loader"
)

func TestSourceFlags(t *testing.T) {
	t.Parallel()

	pdfPath := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	tests := []struct {
		name    string
		flags   sourceFlags
		want    loader.Source
		wantErr error
	}{
		{
			name:  "url",
			flags: sourceFlags{url: "https://example.com/a"},
			want:  loader.Source{Kind: loader.KindWeb, Locator: "https://example.com/a"},
		},
		{
			name:  "youtube with language",
			flags: sourceFlags{youtube: "https://youtu.be/abc", language: "de"},
			want:  loader.Source{Kind: loader.KindYouTube, Locator: "https://youtu.be/abc", Language: "de"},
		},
		{
			name:  "text",
			flags: sourceFlags{text: "cats purr"},
			want:  loader.Source{Kind: loader.KindText, Locator: "cats purr"},
		},
		{
			name:  "pdf with page range",
			flags: sourceFlags{pdf: pdfPath, startPage: 2, endPage: 4},
			want: loader.Source{
				Kind:      loader.KindPDF,
				Locator:   "notes.pdf",
				Data:      []byte("%PDF-1.4"),
				StartPage: 2,
				EndPage:   4,
			},
		},
		{
			name:    "none",
			flags:   sourceFlags{},
			wantErr: errNoSource,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.flags.source()
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("source() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("source() unexpected error: %v", err)
			}
			if got.Kind != tc.want.Kind || got.Locator != tc.want.Locator || got.Language != tc.want.Language ||
				string(got.Data) != string(tc.want.Data) || got.StartPage != tc.want.StartPage || got.EndPage != tc.want.EndPage {
				t.Errorf("source() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSourceFlags_MissingPDF(t *testing.T) {
	t.Parallel()
	f := sourceFlags{pdf: filepath.Join(t.TempDir(), "missing.pdf")}
	if _, err := f.source(); err == nil || !strings.Contains(err.Error(), "failed to read pdf") {
		t.Errorf("source() error = %v, want read failure", err)
	}
}

func TestRepl(t *testing.T) {
	t.Parallel()

	var sent []string
	send := func(msg string) error {
		sent = append(sent, msg)
		if msg == "boom" {
			return errors.New("model unavailable")
		}
		return nil
	}
	var errOut strings.Builder
	in := strings.NewReader("hello\n\n  boom \nbye\n")

	if err := repl(context.Background(), in, &errOut, send); err != nil {
		t.Fatalf("repl() unexpected error: %v", err)
	}
	if strings.Join(sent, ",") != "hello,boom,bye" {
		t.Errorf("sent = %v, want [hello boom bye]", sent)
	}
	if !strings.Contains(errOut.String(), "error: model unavailable") {
		t.Errorf("stderr = %q, want the failed turn reported", errOut.String())
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()
	root := NewRootCmd()
	for _, name := range []string{"serve", "index", "summarize", "quiz", "flashcards", "chat", "version"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, c, err)
		}
	}
}
