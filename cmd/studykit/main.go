// Command studykit turns web pages, YouTube videos and PDFs into study
// material: summaries, quizzes, flashcards and a retrieval-augmented chat.
// It provides a CLI interface (via Cobra) and an HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/studykit-go/cmd/studykit/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
