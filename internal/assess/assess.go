// Package assess runs a reading attempt end to end: it obtains a transcript
// (given as text or transcribed from a recording), detects the reading
// errors against the passage, scores the attempt and persists it.
//
// Every stage runs inside its own span and feeds the application metrics, so
// a slow recognizer or an unusual error mix shows up in the dashboards
// without extra logging.
package assess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/rocketreaders/internal/analysis"
	"github.com/MrWong99/rocketreaders/internal/observe"
	"github.com/MrWong99/rocketreaders/internal/passage"
	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	"github.com/MrWong99/rocketreaders/pkg/reading"
	"github.com/MrWong99/rocketreaders/pkg/store"
)

var (
	// ErrUnknownPassage is returned when an attempt names a passage that is
	// not in the library.
	ErrUnknownPassage = errors.New("assess: unknown passage")

	// ErrInvalidAttempt is returned for attempts that cannot be assessed as
	// submitted, such as a missing user or neither text nor audio.
	ErrInvalidAttempt = errors.New("assess: invalid attempt")

	// ErrNoTranscriber is returned for audio attempts when no STT provider
	// is configured.
	ErrNoTranscriber = errors.New("assess: no speech-to-text provider configured")

	// ErrTranscription wraps every failure of the STT provider.
	ErrTranscription = errors.New("assess: transcription failed")
)

// Passages looks passages up by ID. [*passage.Library] implements it.
type Passages interface {
	Get(id string) (passage.Passage, error)
}

// Attempt is one child reading one passage.
type Attempt struct {
	UserID    string `json:"user_id"`
	PassageID string `json:"passage_id"`

	// Transcript is what the child read, as text. It takes precedence over
	// Recording.
	Transcript string `json:"transcript,omitempty"`

	// Recording is transcribed when Transcript is empty.
	Recording *stt.Recording `json:"-"`

	// Duration is the reading time. Zero falls back to the duration the
	// STT provider reports for the recording.
	Duration time.Duration `json:"duration_ns,omitempty"`

	// StartedAt defaults to the time of assessment.
	StartedAt time.Time `json:"started_at,omitzero"`
}

// Outcome is the assessed and persisted attempt.
type Outcome struct {
	Session    store.Session          `json:"session"`
	Errors     []reading.ReadingError `json:"errors"`
	Insertions []reading.Insertion    `json:"insertions"`

	// Improvement is the percentage WCPM change against the user's previous
	// attempt at the same passage, 0 for a first attempt.
	Improvement int `json:"improvement"`

	Recommendation analysis.Progression `json:"recommendation"`
	GoalAchieved   bool                 `json:"goal_achieved"`
}

// Service assesses attempts. It is safe for concurrent use.
type Service struct {
	passages Passages
	store    store.Store
	stt      stt.Provider
	metrics  *observe.Metrics

	mu            sync.RWMutex
	minMinutes    float64
	contextRadius int

	language string

	now func() time.Time
}

// Option configures a [Service].
type Option func(*Service)

// WithSTT sets the provider used to transcribe recordings.
func WithSTT(p stt.Provider) Option {
	return func(s *Service) { s.stt = p }
}

// WithMetrics overrides [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMinMinutes sets the floor applied to the reading time before WCPM is
// computed. Values below [reading.MinMinutes] have no effect.
func WithMinMinutes(minutes float64) Option {
	return func(s *Service) { s.minMinutes = minutes }
}

// WithContextRadius sets how many characters of passage text surround each
// error in a [Review].
func WithContextRadius(n int) Option {
	return func(s *Service) { s.contextRadius = n }
}

// WithLanguage sets the language hint for recordings that carry none.
func WithLanguage(lang string) Option {
	return func(s *Service) { s.language = lang }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a [Service] over the given passages and store.
func New(passages Passages, st store.Store, opts ...Option) *Service {
	s := &Service{
		passages:      passages,
		store:         st,
		minMinutes:    reading.MinMinutes,
		contextRadius: reading.DefaultContextRadius,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// SetScoring replaces the reading-time floor and the review context radius
// for attempts assessed from now on.
func (s *Service) SetScoring(minMinutes float64, contextRadius int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minMinutes = minMinutes
	s.contextRadius = contextRadius
}

func (s *Service) scoring() (minMinutes float64, contextRadius int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minMinutes, s.contextRadius
}

// CanTranscribe reports whether audio attempts are accepted.
func (s *Service) CanTranscribe() bool { return s.stt != nil }

// Assess runs a through transcription, detection and scoring and persists
// the result.
func (s *Service) Assess(ctx context.Context, a Attempt) (Outcome, error) {
	source := "transcript"
	if a.Transcript == "" && a.Recording != nil {
		source = "audio"
	}
	ctx, span := observe.StartSpan(ctx, "assess.Assess", trace.WithAttributes(
		attribute.String("passage.id", a.PassageID),
		attribute.String("attempt.source", source),
	))
	defer span.End()

	s.metrics.InFlight.Add(ctx, 1)
	defer s.metrics.InFlight.Add(ctx, -1)

	out, err := s.assess(ctx, a)
	s.metrics.RecordAttempt(ctx, source, status(err))
	if err != nil {
		observe.FailSpan(span, err)
		return Outcome{}, err
	}
	span.SetAttributes(
		attribute.String("session.id", out.Session.ID),
		attribute.Int("reading.errors", len(out.Errors)),
	)
	return out, nil
}

func (s *Service) assess(ctx context.Context, a Attempt) (Outcome, error) {
	if a.UserID == "" {
		return Outcome{}, fmt.Errorf("%w: user id is required", ErrInvalidAttempt)
	}
	if a.Duration < 0 {
		return Outcome{}, fmt.Errorf("%w: negative duration", ErrInvalidAttempt)
	}
	p, err := s.passages.Get(a.PassageID)
	if err != nil {
		if errors.Is(err, passage.ErrNotFound) {
			return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownPassage, a.PassageID)
		}
		return Outcome{}, fmt.Errorf("assess: get passage: %w", err)
	}

	tr, err := s.transcript(ctx, a, p)
	if err != nil {
		return Outcome{}, err
	}

	res := s.detect(ctx, p.Content, tr.Text)

	elapsed := a.Duration
	if elapsed == 0 {
		elapsed = tr.Duration
	}
	minMinutes, _ := s.scoring()
	floor := time.Duration(minMinutes * float64(time.Minute))
	wcpm := reading.WordsCorrectPerMinute(res.TotalWords, len(res.Errors), max(elapsed, floor))
	accuracy := reading.Accuracy(res.TotalWords, len(res.Errors))

	previous, ok, err := s.store.LatestWCPM(ctx, a.UserID, p.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("assess: previous wcpm: %w", err)
	}
	improvement := 0
	if ok {
		improvement = reading.Improvement(previous, wcpm)
	}

	started := a.StartedAt
	if started.IsZero() {
		started = s.now().UTC()
	}
	session, err := s.store.SaveSession(ctx, store.Session{
		UserID:     a.UserID,
		PassageID:  p.ID,
		StartedAt:  started,
		Duration:   elapsed,
		TotalWords: res.TotalWords,
		ErrorCount: len(res.Errors),
		WCPM:       wcpm,
		Accuracy:   accuracy,
		Transcript: tr.Text,
		Provider:   tr.Provider,
	}, res.Errors)
	if err != nil {
		return Outcome{}, fmt.Errorf("assess: save session: %w", err)
	}

	s.metrics.RecordScores(ctx, float64(wcpm), accuracy, map[string]int{
		string(reading.Omission):         res.Count(reading.Omission),
		string(reading.Mispronunciation): res.Count(reading.Mispronunciation),
		string(reading.Hesitation):       res.Count(reading.Hesitation),
	})
	observe.Logger(ctx).Info("attempt assessed",
		"session_id", session.ID,
		"user_id", a.UserID,
		"passage_id", p.ID,
		"errors", len(res.Errors),
		"wcpm", wcpm,
		"accuracy", accuracy,
	)

	return Outcome{
		Session:        session,
		Errors:         res.Errors,
		Insertions:     res.Insertions,
		Improvement:    improvement,
		Recommendation: analysis.Recommend(accuracy, wcpm, p.TargetWCPM),
		GoalAchieved:   analysis.GoalAchieved(wcpm, p.TargetWCPM),
	}, nil
}

// transcript returns the text to assess. A text transcript is used as is;
// otherwise the recording is sent to the STT provider with the passage as
// prompt.
func (s *Service) transcript(ctx context.Context, a Attempt, p passage.Passage) (stt.Transcript, error) {
	if a.Transcript != "" {
		if strings.TrimSpace(a.Transcript) == "" {
			return stt.Transcript{}, fmt.Errorf("assess: %w", stt.ErrEmptyTranscript)
		}
		return stt.Transcript{Text: a.Transcript}, nil
	}
	if a.Recording == nil {
		return stt.Transcript{}, fmt.Errorf("%w: transcript or recording is required", ErrInvalidAttempt)
	}
	if s.stt == nil {
		return stt.Transcript{}, ErrNoTranscriber
	}

	rec := *a.Recording
	if rec.Language == "" {
		rec.Language = s.language
	}
	if rec.Prompt == "" {
		rec.Prompt = p.Content
	}

	ctx, span := observe.StartSpan(ctx, "assess.transcribe", trace.WithAttributes(
		attribute.String("audio.format", string(rec.Format)),
		attribute.Int("audio.bytes", len(rec.Audio)),
	))
	defer span.End()

	tr, err := s.stt.Transcribe(ctx, rec)
	if err == nil && strings.TrimSpace(tr.Text) == "" {
		err = stt.ErrEmptyTranscript
	}
	if err != nil {
		observe.FailSpan(span, err)
		return stt.Transcript{}, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	span.SetAttributes(attribute.String("stt.provider", tr.Provider))
	return tr, nil
}

func (s *Service) detect(ctx context.Context, original, transcribed string) reading.Result {
	ctx, span := observe.StartSpan(ctx, "assess.detect")
	defer span.End()

	start := time.Now()
	res := reading.Detect(original, transcribed)
	s.metrics.AlignDuration.Record(ctx, time.Since(start).Seconds())

	if len(res.Insertions) > 0 {
		observe.Logger(ctx).Debug("transcript words outside the passage", "count", len(res.Insertions))
	}
	span.SetAttributes(
		attribute.Int("reading.total_words", res.TotalWords),
		attribute.Int("reading.transcript_words", res.TranscriptWords),
	)
	return res
}

// status maps an assessment error to the metric status label.
func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, stt.ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, ErrTranscription), errors.Is(err, ErrNoTranscriber):
		return "stt_error"
	case errors.Is(err, ErrUnknownPassage):
		return "unknown_passage"
	case errors.Is(err, ErrInvalidAttempt):
		return "invalid"
	default:
		return "error"
	}
}
