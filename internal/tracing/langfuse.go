// Package tracing wires Langfuse into every eino model call made by studykit.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/studykit-go/internal/version"
)

// Setup registers a global Langfuse callback handler when
// LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY are set. The returned flush
// function must run before process exit; it is a no-op when tracing is off.
func Setup(log *slog.Logger) (flush func()) {
	handler, flusher, ok := newHandler()
	if !ok {
		log.Debug("tracing: langfuse disabled")
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("tracing: langfuse enabled", slog.String("host", hostOrDefault()))
	return flusher
}

// newHandler builds the Langfuse handler from the environment.
func newHandler() (callbacks.Handler, func(), bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      hostOrDefault(),
		PublicKey: publicKey,
		SecretKey: secretKey,
		Name:      "studykit",
		Release:   version.Version,
	})
	return handler, flusher, true
}

func hostOrDefault() string {
	if h := os.Getenv("LANGFUSE_HOST"); h != "" {
		return h
	}
	return "http://localhost:3000"
}
