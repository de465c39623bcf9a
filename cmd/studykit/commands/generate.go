package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/studykit-go/internal/loader"
	"github.com/54b3r/studykit-go/internal/logging"
	"github.com/54b3r/studykit-go/internal/pipeline"
)

// NewQuizCmd constructs the `studykit quiz` command.
func NewQuizCmd() *cobra.Command {
	return newGenerateCmd("quiz", "Generate multiple choice questions for a document",
		`Generate four-option multiple choice questions. Part of the questions
come from the summary (--summary) and the rest from the document's passages.
When the model returns fewer usable questions the result is marked partial.

Examples:
  studykit quiz --url https://go.dev/blog/slices-intro --count 10
  studykit quiz --text "$(cat notes.txt)" --summary "$(cat summary.md)"`,
		func(ctx context.Context, p *pipeline.Pipeline, summary string, src loader.Source, n int) (any, error) {
			return p.GenerateQuiz(ctx, summary, src, n)
		})
}

// NewFlashcardsCmd constructs the `studykit flashcards` command.
func NewFlashcardsCmd() *cobra.Command {
	return newGenerateCmd("flashcards", "Generate question and answer flashcards for a document",
		`Generate question and answer flashcards from a summary (--summary) and
the document's passages.

Examples:
  studykit flashcards --youtube https://www.youtube.com/watch?v=dQw4w9WgXcQ --count 8`,
		func(ctx context.Context, p *pipeline.Pipeline, summary string, src loader.Source, n int) (any, error) {
			return p.GenerateFlashcards(ctx, summary, src, n)
		})
}

// generateFunc runs one generation operation of the pipeline.
type generateFunc func(ctx context.Context, p *pipeline.Pipeline, summary string, src loader.Source, n int) (any, error)

// newGenerateCmd builds a command sharing the source, --count and
// --summary flags of the quiz and flashcards commands.
func newGenerateCmd(use, short, long string, run generateFunc) *cobra.Command {
	var src sourceFlags
	var count int
	var summary string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := src.source()
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			defer a.close()

			res, err := run(ctx, a.pipeline, summary, s, count)
			if err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	src.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 5, "Number of items to generate")
	cmd.Flags().StringVar(&summary, "summary", "", "Document summary used for part of the items")

	return cmd
}
