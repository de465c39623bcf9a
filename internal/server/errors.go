package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/54b3r/studykit-go/internal/chat"
	"github.com/54b3r/studykit-go/internal/loader"
	"github.com/54b3r/studykit-go/internal/logging"
	"github.com/54b3r/studykit-go/internal/pipeline"
	"github.com/54b3r/studykit-go/internal/questions"
	"github.com/54b3r/studykit-go/internal/rag"
	"github.com/54b3r/studykit-go/internal/summarize"
)

// statusFor maps a pipeline error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, loader.ErrInvalidSource),
		errors.Is(err, loader.ErrUnsupportedKind),
		errors.Is(err, rag.ErrInvalidLocator),
		errors.Is(err, questions.ErrInvalidCount),
		errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrThreadNotFound),
		errors.Is(err, rag.ErrNamespaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, loader.ErrNoContent),
		errors.Is(err, loader.ErrNoTranscript),
		errors.Is(err, loader.ErrVideoUnavailable),
		errors.Is(err, summarize.ErrNoContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, summarize.ErrMalformedOutput),
		errors.Is(err, questions.ErrMalformedOutput),
		errors.Is(err, chat.ErrToolNotAllowed),
		errors.Is(err, chat.ErrStepLimit):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError logs err and replies with its mapped status. Internal errors
// are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logging.FromContext(r.Context())
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), slog.Any("error", err))
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	} else {
		log.Warn("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// badRequest replies 400 with msg.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
