package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/54b3r/studykit-go/internal/loader"
)

// errNoSource is returned when none of the source flags is set.
var errNoSource = errors.New("exactly one of --url, --youtube, --text or --pdf is required")

// sourceFlags holds the flags that address one document.
type sourceFlags struct {
	url       string
	youtube   string
	text      string
	pdf       string
	language  string
	startPage int
	endPage   int
}

// register attaches the source flags to cmd.
func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "Web page URL to load")
	cmd.Flags().StringVar(&f.youtube, "youtube", "", "YouTube video URL whose transcript is loaded")
	cmd.Flags().StringVar(&f.text, "text", "", "Inline text to use as the document")
	cmd.Flags().StringVar(&f.pdf, "pdf", "", "Path to a PDF file")
	cmd.Flags().StringVar(&f.language, "language", "", "Transcript language for --youtube (default: en)")
	cmd.Flags().IntVar(&f.startPage, "start-page", 0, "First PDF page to load (1-based)")
	cmd.Flags().IntVar(&f.endPage, "end-page", 0, "Last PDF page to load (inclusive)")
	cmd.MarkFlagsMutuallyExclusive("url", "youtube", "text", "pdf")
}

// source builds the loader.Source described by the flags.
func (f *sourceFlags) source() (loader.Source, error) {
	switch {
	case f.url != "":
		return loader.Source{Kind: loader.KindWeb, Locator: f.url}, nil
	case f.youtube != "":
		return loader.Source{Kind: loader.KindYouTube, Locator: f.youtube, Language: f.language}, nil
	case f.text != "":
		return loader.Source{Kind: loader.KindText, Locator: f.text}, nil
	case f.pdf != "":
		data, err := os.ReadFile(f.pdf)
		if err != nil {
			return loader.Source{}, fmt.Errorf("failed to read pdf: %w", err)
		}
		return loader.Source{
			Kind:      loader.KindPDF,
			Locator:   filepath.Base(f.pdf),
			Data:      data,
			StartPage: f.startPage,
			EndPage:   f.endPage,
		}, nil
	default:
		return loader.Source{}, errNoSource
	}
}
