package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/studykit-go/internal/logging"
)

// NewIndexCmd constructs the `studykit index` command, which loads a
// document, splits it into passages and writes their embeddings into the
// document's namespace.
func NewIndexCmd() *cobra.Command {
	var src sourceFlags

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load a document and index it into the vector store",
		Long: `Load a document, split it into overlapping passages and index their
embeddings under the document's namespace. The namespace is printed so it
can be passed to later chat requests.

Indexing the same document again appends to the same namespace.

Examples:
  studykit index --url https://go.dev/doc/effective_go
  studykit index --youtube https://youtu.be/dQw4w9WgXcQ --language en
  studykit index --pdf ./paper.pdf --start-page 3 --end-page 9`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := src.source()
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			a, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer a.close()

			ns, err := a.pipeline.IndexResource(ctx, s)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"namespace": ns})
		},
	}

	src.register(cmd)

	return cmd
}
