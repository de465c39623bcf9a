package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/studykit-go/internal/logging"
	"github.com/54b3r/studykit-go/internal/server"
)

// NewServeCmd constructs the `studykit serve` command, which starts the
// HTTP API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the studykit HTTP API server",
		Long: `Start the studykit HTTP API server.

The server exposes JSON endpoints to index, summarize, quiz and chat about
documents, plus /api/health, /api/ready and /metrics. Callers authenticate
with a bearer token from STUDYKIT_API_KEYS (token=user pairs); without it
every request runs as the development user.

Examples:
  studykit serve
  studykit serve --port 9090
  VECTOR_STORE=qdrant CHECKPOINT_BACKEND=postgres studykit serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a, err := buildApp(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.close()

			if host == "" {
				host = a.rt.Host
			}
			if port == 0 {
				port = a.rt.Port
			}

			srv, err := server.New(a.pipeline, &server.Config{
				Host:          host,
				Port:          port,
				Logger:        log,
				Pingers:       a.pingers,
				Authenticator: server.NewKeyAuthenticator(a.rt.APIKeys),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve starting", slog.String("host", host), slog.Int("port", port))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: STUDYKIT_HOST or 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: STUDYKIT_PORT or 8080)")

	return cmd
}
