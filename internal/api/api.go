// Package api exposes reading assessment over HTTP.
//
// Routes:
//
//	POST /v1/align                     detect errors in an ad hoc text pair
//	GET  /v1/passages                  list passages (grade, difficulty, category, search)
//	GET  /v1/passages/{id}             one passage
//	POST /v1/passages/{id}/attempts    assess an attempt (JSON or multipart audio)
//	GET  /v1/sessions/{id}             stored session and its errors
//	GET  /v1/sessions/{id}/review      errors with passage context
//	GET  /v1/users/{id}/sessions       a user's sessions, newest first
//	GET  /v1/users/{id}/analysis       a user's error patterns (period=week|month|all)
//
// Every error response is a JSON object with a single "error" field.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/rocketreaders/internal/assess"
	"github.com/MrWong99/rocketreaders/internal/observe"
	"github.com/MrWong99/rocketreaders/internal/passage"
	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	"github.com/MrWong99/rocketreaders/pkg/store"
)

const (
	// DefaultMaxUpload caps multipart attempt uploads.
	DefaultMaxUpload = 32 << 20

	maxJSONBody = 1 << 20

	defaultPageSize = 20
	maxPageSize     = 100
)

// Passages is the read side of the passage library.
type Passages interface {
	Get(id string) (passage.Passage, error)
	List(opts passage.ListOptions) []passage.Passage
}

// Handler serves the API routes.
type Handler struct {
	svc       *assess.Service
	passages  Passages
	maxUpload int64
}

// Option configures a [Handler].
type Option func(*Handler)

// WithMaxUpload overrides [DefaultMaxUpload].
func WithMaxUpload(n int64) Option {
	return func(h *Handler) { h.maxUpload = n }
}

// New creates a [Handler].
func New(svc *assess.Service, passages Passages, opts ...Option) *Handler {
	h := &Handler{svc: svc, passages: passages, maxUpload: DefaultMaxUpload}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds all API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/align", h.align)
	mux.HandleFunc("GET /v1/passages", h.listPassages)
	mux.HandleFunc("GET /v1/passages/{id}", h.getPassage)
	mux.HandleFunc("POST /v1/passages/{id}/attempts", h.createAttempt)
	mux.HandleFunc("GET /v1/sessions/{id}", h.getSession)
	mux.HandleFunc("GET /v1/sessions/{id}/review", h.reviewSession)
	mux.HandleFunc("GET /v1/users/{id}/sessions", h.listSessions)
	mux.HandleFunc("GET /v1/users/{id}/analysis", h.userAnalysis)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps err to a status code and writes it. Unexpected errors are logged
// and reported without detail.
func fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		observe.Logger(ctx).Error("api: request failed", "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, assess.ErrInvalidAttempt):
		return http.StatusBadRequest
	case errors.Is(err, assess.ErrUnknownPassage),
		errors.Is(err, passage.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, stt.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, assess.ErrNoTranscriber):
		return http.StatusServiceUnavailable
	case errors.Is(err, assess.ErrTranscription):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
