package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/studykit-go/internal/logging"
	"github.com/54b3r/studykit-go/internal/pipeline"
	"github.com/54b3r/studykit-go/internal/server"
)

// NewChatCmd constructs the `studykit chat` command, which opens a chat
// thread over a document and answers questions about it.
func NewChatCmd() *cobra.Command {
	var src sourceFlags
	var threadID, userID, summary string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat about a document",
		Long: `Chat about a document over a durable thread.

With a source flag the document is indexed and a thread is opened over it;
the thread id is printed so the conversation can be resumed later with
--thread alone. With a message argument one question is answered;
without it questions are read line by line from stdin.

Examples:
  studykit chat --url https://go.dev/doc/effective_go "what is a goroutine?"
  studykit chat --thread 2f1c0d3e-... "and how do channels relate?"
  studykit chat --pdf ./paper.pdf --summary "$(cat summary.md)"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			s, srcErr := src.source()
			if srcErr != nil && !errors.Is(srcErr, errNoSource) {
				return fmt.Errorf("chat: %w", srcErr)
			}
			if errors.Is(srcErr, errNoSource) && threadID == "" {
				return fmt.Errorf("chat: a source flag or --thread is required")
			}

			a, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if srcErr == nil {
				t, err := a.pipeline.InitChat(ctx, userID, s, summary, threadID)
				if err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				threadID = t.ThreadID
				fmt.Fprintf(cmd.ErrOrStderr(), "thread: %s (namespace %s)\n", t.ThreadID, t.Namespace)
			}

			send := func(msg string) error {
				turn, err := a.pipeline.SendChatMessage(ctx, pipeline.ChatRequest{
					ThreadID: threadID,
					UserID:   userID,
					Message:  msg,
				})
				if err != nil {
					return err
				}
				if len(turn.Messages) == 0 {
					return nil
				}
				_, err = fmt.Fprintln(out, turn.Messages[len(turn.Messages)-1].Content)
				return err
			}

			if len(args) == 1 {
				if err := send(args[0]); err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				return nil
			}
			return repl(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), send)
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread id to open or resume (default: a new random id)")
	cmd.Flags().StringVar(&userID, "user", server.DevUserID, "User id that owns the thread")
	cmd.Flags().StringVar(&summary, "summary", "", "Document summary used for overview questions")

	return cmd
}

// repl reads one question per line from in until EOF or ctx is done. A
// failed turn is reported on errOut and the loop continues.
func repl(ctx context.Context, in io.Reader, errOut io.Writer, send func(string) error) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(errOut, "> ")
		if !sc.Scan() {
			fmt.Fprintln(errOut)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(sc.Text())
		if msg == "" {
			continue
		}
		if err := send(msg); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
	}
}
