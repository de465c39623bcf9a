package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/54b3r/studykit-go/internal/pipeline"
	"github.com/54b3r/studykit-go/internal/questions"
	"github.com/54b3r/studykit-go/internal/summarize"
)

// decode reads the JSON request body into v, enforcing the body size cap.
// It replies and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return false
		}
		badRequest(w, "invalid request body")
		return false
	}
	return true
}

// handleIndex handles POST /api/resources/index.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !s.decode(w, r, &req) {
		return
	}
	ns, err := s.svc.IndexResource(r.Context(), req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Namespace: ns})
}

// handleSummary handles POST /api/resources/summary. The markdown summary
// is also returned rendered to sanitized HTML.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !s.decode(w, r, &req) {
		return
	}
	sum, err := s.svc.SummarizeResource(r.Context(), req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	html, err := summarize.RenderHTML(sum.Markdown)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Title: sum.Title, Summary: sum.Markdown, SummaryHTML: html})
}

// handleQuiz handles POST /api/quiz.
func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := questions.ValidCount(req.Count); err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := s.svc.GenerateQuiz(r.Context(), req.Summary, req.Source, req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.observeGeneration("quiz", res.Partial)
	writeJSON(w, http.StatusOK, quizResponse{Questions: res.Items, Requested: res.Requested, Partial: res.Partial})
}

// handleFlashcards handles POST /api/flashcards.
func (s *Server) handleFlashcards(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := questions.ValidCount(req.Count); err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := s.svc.GenerateFlashcards(r.Context(), req.Summary, req.Source, req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.observeGeneration("flashcards", res.Partial)
	writeJSON(w, http.StatusOK, flashcardsResponse{Flashcards: res.Items, Requested: res.Requested, Partial: res.Partial})
}

// handleCreateThread handles POST /api/chat/threads. It indexes the source
// and opens a thread owned by the caller.
func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if !s.decode(w, r, &req) {
		return
	}
	t, err := s.svc.InitChat(r.Context(), userFromContext(r.Context()), req.Source, req.Summary, req.ThreadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, threadResponse{ThreadID: t.ThreadID, Namespace: t.Namespace, CreatedAt: t.CreatedAt})
}

// handleSendMessage handles POST /api/chat/threads/{threadID}/messages.
// The turn runs under the configured chat timeout.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		badRequest(w, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	s.metrics.chatActiveTurns.Inc()
	defer s.metrics.chatActiveTurns.Dec()
	start := time.Now()

	turn, err := s.svc.SendChatMessage(ctx, pipeline.ChatRequest{
		Namespace: req.Namespace,
		Summary:   req.Summary,
		ThreadID:  chi.URLParam(r, "threadID"),
		UserID:    userFromContext(r.Context()),
		Message:   req.Message,
	})

	outcome, route := "ok", "none"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	default:
		route = string(turn.Route)
	}
	s.metrics.chatTurnsTotal.WithLabelValues(route, outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		if outcome == "timeout" {
			err = fmt.Errorf("chat turn exceeded %s: %w", s.cfg.ChatTimeout, err)
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

// handleHistory handles GET /api/chat/threads/{threadID}/messages.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	msgs, err := s.svc.History(r.Context(), userFromContext(r.Context()), threadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{ThreadID: threadID, Messages: msgs})
}
