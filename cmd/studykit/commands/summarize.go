package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/studykit-go/internal/logging"
	"github.com/54b3r/studykit-go/internal/summarize"
)

// NewSummarizeCmd constructs the `studykit summarize` command.
func NewSummarizeCmd() *cobra.Command {
	var src sourceFlags
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize a document",
		Long: `Load a document and ask the model for a titled markdown summary.

Examples:
  studykit summarize --url https://go.dev/blog/pipelines
  studykit summarize --pdf ./notes.pdf --html > summary.html`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := src.source()
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}
			defer a.close()

			sum, err := a.pipeline.SummarizeResource(ctx, s)
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}

			out := cmd.OutOrStdout()
			if !asHTML {
				_, err = fmt.Fprintf(out, "# %s\n\n%s\n", sum.Title, sum.Markdown)
				return err
			}
			html, err := summarize.RenderHTML(sum.Markdown)
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}
			_, err = fmt.Fprintln(out, html)
			return err
		},
	}

	src.register(cmd)
	cmd.Flags().BoolVar(&asHTML, "html", false, "Render the summary as sanitized HTML")

	return cmd
}
