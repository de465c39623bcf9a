// Package commands defines all Cobra CLI commands for the studykit binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/studykit-go/internal/audit"
	"github.com/54b3r/studykit-go/internal/config"
	"github.com/54b3r/studykit-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studykit",
		Short: "studykit: turn documents into summaries, quizzes, flashcards and chat",
		Long: `studykit loads a web page, YouTube transcript, PDF or plain text, indexes
it into a vector store and uses an LLM to summarize it, generate quizzes and
flashcards, and answer questions about it over a durable chat thread.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.studykit/config.yaml).
See 'studykit --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.studykit/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIndexCmd(),
		NewSummarizeCmd(),
		NewQuizCmd(),
		NewFlashcardsCmd(),
		NewChatCmd(),
		NewVersionCmd(),
	)

	return root
}
