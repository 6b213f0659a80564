package api

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/rocketreaders/internal/analysis"
	"github.com/MrWong99/rocketreaders/internal/assess"
	"github.com/MrWong99/rocketreaders/internal/passage"
	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	"github.com/MrWong99/rocketreaders/pkg/reading"
	"github.com/MrWong99/rocketreaders/pkg/store"
)

type alignRequest struct {
	Original   string `json:"original"`
	Transcript string `json:"transcript"`
}

// align handles POST /v1/align.
func (h *Handler) align(w http.ResponseWriter, r *http.Request) {
	var req alignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Original) == "" {
		writeError(w, http.StatusBadRequest, "original is required")
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusUnprocessableEntity, stt.ErrEmptyTranscript.Error())
		return
	}
	writeJSON(w, http.StatusOK, reading.Detect(req.Original, req.Transcript))
}

// listPassages handles GET /v1/passages.
func (h *Handler) listPassages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := passage.ListOptions{
		Difficulty: strings.ToUpper(q.Get("difficulty")),
		Category:   strings.ToLower(q.Get("category")),
		Search:     q.Get("search"),
	}
	if g := q.Get("grade"); g != "" {
		grade, err := passage.ParseGrade(g)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Grade = &grade
	}
	writeJSON(w, http.StatusOK, h.passages.List(opts))
}

// getPassage handles GET /v1/passages/{id}.
func (h *Handler) getPassage(w http.ResponseWriter, r *http.Request) {
	p, err := h.passages.Get(r.PathValue("id"))
	if err != nil {
		fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type attemptRequest struct {
	UserID     string    `json:"user_id"`
	Transcript string    `json:"transcript"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at,omitzero"`
}

// createAttempt handles POST /v1/passages/{id}/attempts. A JSON body carries
// a text transcript; a multipart body carries the recording in its "audio"
// part.
func (h *Handler) createAttempt(w http.ResponseWriter, r *http.Request) {
	var (
		a   assess.Attempt
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		a, err = h.multipartAttempt(w, r)
	} else {
		a, err = jsonAttempt(w, r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.PassageID = r.PathValue("id")

	out, err := h.svc.Assess(r.Context(), a)
	if err != nil {
		fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func jsonAttempt(w http.ResponseWriter, r *http.Request) (assess.Attempt, error) {
	var req attemptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return assess.Attempt{}, err
	}
	if req.DurationMS < 0 {
		return assess.Attempt{}, errors.New("duration_ms must not be negative")
	}
	if req.Transcript == "" {
		return assess.Attempt{}, errors.New("transcript is required; send audio as multipart/form-data")
	}
	return assess.Attempt{
		UserID:     req.UserID,
		Transcript: req.Transcript,
		Duration:   time.Duration(req.DurationMS) * time.Millisecond,
		StartedAt:  req.StartedAt,
	}, nil
}

func (h *Handler) multipartAttempt(w http.ResponseWriter, r *http.Request) (assess.Attempt, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return assess.Attempt{}, fmt.Errorf("invalid multipart body: %w", err)
	}

	a := assess.Attempt{
		UserID:     r.FormValue("user_id"),
		Transcript: r.FormValue("transcript"),
	}
	if v := r.FormValue("duration_ms"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms < 0 {
			return assess.Attempt{}, fmt.Errorf("duration_ms %q is invalid", v)
		}
		a.Duration = time.Duration(ms) * time.Millisecond
	}
	if a.Transcript != "" {
		return a, nil
	}

	file, fh, err := r.FormFile("audio")
	if err != nil {
		return assess.Attempt{}, errors.New("audio file or transcript is required")
	}
	defer file.Close()

	rec, err := recordingFrom(file, fh, r.FormValue("format"))
	if err != nil {
		return assess.Attempt{}, err
	}
	if v := r.FormValue("sample_rate"); v != "" {
		if rec.SampleRate, err = strconv.Atoi(v); err != nil || rec.SampleRate <= 0 {
			return assess.Attempt{}, fmt.Errorf("sample_rate %q is invalid", v)
		}
	}
	rec.Language = r.FormValue("language")
	a.Recording = &rec
	return a, nil
}

// recordingFrom reads an uploaded audio part. The format comes from the
// explicit field, then the file extension, then the part's content type.
func recordingFrom(file multipart.File, fh *multipart.FileHeader, format string) (stt.Recording, error) {
	f := stt.ParseFormat(format)
	if f == "" && format == "" {
		f = stt.ParseFormat(filepath.Ext(fh.Filename))
	}
	if f == "" && format == "" {
		f = stt.ParseFormat(fh.Header.Get("Content-Type"))
	}
	if f == "" {
		return stt.Recording{}, fmt.Errorf("unsupported audio format %q", cmp.Or(format, fh.Filename))
	}
	audio, err := io.ReadAll(file)
	if err != nil {
		return stt.Recording{}, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return stt.Recording{}, errors.New("audio file is empty")
	}
	return stt.Recording{Audio: audio, Format: f}, nil
}

// getSession handles GET /v1/sessions/{id}.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// reviewSession handles GET /v1/sessions/{id}/review.
func (h *Handler) reviewSession(w http.ResponseWriter, r *http.Request) {
	rev, err := h.svc.Review(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

type sessionPage struct {
	Sessions []store.Session `json:"sessions"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// listSessions handles GET /v1/users/{id}/sessions.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must not be negative")
		return
	}

	sessions, err := h.svc.History(r.Context(), r.PathValue("id"), store.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		fail(r.Context(), w, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, sessionPage{Sessions: sessions, Limit: limit, Offset: offset})
}

// userAnalysis handles GET /v1/users/{id}/analysis.
func (h *Handler) userAnalysis(w http.ResponseWriter, r *http.Request) {
	period, err := analysis.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Analyze(r.Context(), r.PathValue("id"), period)
	if err != nil {
		fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
