package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/studykit-go/internal/chat"
	"github.com/54b3r/studykit-go/internal/checkpoint"
	"github.com/54b3r/studykit-go/internal/loader"
	"github.com/54b3r/studykit-go/internal/pipeline"
	"github.com/54b3r/studykit-go/internal/questions"
	"github.com/54b3r/studykit-go/internal/summarize"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover the slowest generation request.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds one chat turn. Defaults to 2 minutes.
	ChatTimeout time.Duration
	// MaxBodyBytes caps request bodies; PDF sources travel base64 encoded.
	// Defaults to 32 MiB.
	MaxBodyBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency checks run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per caller on POST
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per caller. Defaults to 20 if zero.
	RateBurst int
	// Authenticator resolves the caller of every /api/* route except the
	// health checks. If nil, every request runs as the development user.
	Authenticator Authenticator
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Service is the set of pipeline operations the server exposes.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type Service interface {
	IndexResource(ctx context.Context, src loader.Source) (string, error)
	SummarizeResource(ctx context.Context, src loader.Source) (*summarize.Summary, error)
	GenerateQuiz(ctx context.Context, summary string, src loader.Source, count int) (*questions.Result[questions.QuizQuestion], error)
	GenerateFlashcards(ctx context.Context, summary string, src loader.Source, count int) (*questions.Result[questions.Flashcard], error)
	InitChat(ctx context.Context, userID string, src loader.Source, summary, threadID string) (*checkpoint.Thread, error)
	SendChatMessage(ctx context.Context, req pipeline.ChatRequest) (*chat.Turn, error)
	History(ctx context.Context, userID, threadID string) ([]chat.Message, error)
}

// Server is the HTTP server in front of the pipeline.
type Server struct {
	// svc runs the pipeline operations.
	svc Service
	// cfg holds the resolved server configuration.
	cfg *Config
	// handler is the fully wrapped router.
	handler http.Handler
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency checks for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// sourceRequest is the JSON body for the index and summary endpoints.
type sourceRequest struct {
	// Source addresses the document.
	Source loader.Source `json:"source"`
}

// indexResponse is the JSON response for POST /api/resources/index.
type indexResponse struct {
	// Namespace is the index partition the document was written to.
	Namespace string `json:"namespace"`
}

// summaryResponse is the JSON response for POST /api/resources/summary.
type summaryResponse struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	SummaryHTML string `json:"summaryHtml"`
}

// generateRequest is the JSON body for POST /api/quiz and /api/flashcards.
type generateRequest struct {
	// Summary is the document summary produced earlier.
	Summary string `json:"summary"`
	// Source addresses the document whose passages feed the generator.
	Source loader.Source `json:"source"`
	// Count is the number of items requested, 1..questions.MaxCount.
	Count int `json:"count"`
}

// quizResponse is the JSON response for POST /api/quiz.
type quizResponse struct {
	Questions []questions.QuizQuestion `json:"questions"`
	Requested int                      `json:"requested"`
	Partial   bool                     `json:"partial"`
}

// flashcardsResponse is the JSON response for POST /api/flashcards.
type flashcardsResponse struct {
	Flashcards []questions.Flashcard `json:"flashcards"`
	Requested  int                   `json:"requested"`
	Partial    bool                  `json:"partial"`
}

// createThreadRequest is the JSON body for POST /api/chat/threads.
type createThreadRequest struct {
	// ThreadID is optional; the server generates one when empty.
	ThreadID string        `json:"threadId,omitempty"`
	Source   loader.Source `json:"source"`
	Summary  string        `json:"summary"`
}

// threadResponse is the JSON response for POST /api/chat/threads.
type threadResponse struct {
	ThreadID  string    `json:"threadId"`
	Namespace string    `json:"namespace"`
	CreatedAt time.Time `json:"createdAt"`
}

// sendMessageRequest is the JSON body for POST /api/chat/threads/{threadID}/messages.
type sendMessageRequest struct {
	Namespace string `json:"namespace,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Message   string `json:"message"`
}

// historyResponse is the JSON response for GET /api/chat/threads/{threadID}/messages.
type historyResponse struct {
	ThreadID string         `json:"threadId"`
	Messages []chat.Message `json:"messages"`
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}
