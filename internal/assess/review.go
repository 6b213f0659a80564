package assess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/rocketreaders/internal/analysis"
	"github.com/MrWong99/rocketreaders/internal/passage"
	"github.com/MrWong99/rocketreaders/pkg/reading"
	"github.com/MrWong99/rocketreaders/pkg/store"
)

// ReviewItem is a detected error with the passage text around it.
type ReviewItem struct {
	reading.ReadingError

	Context string `json:"context"`
}

// Review is a stored session prepared for an educator to go through.
type Review struct {
	Session      store.Session        `json:"session"`
	PassageTitle string               `json:"passage_title"`
	Items        []ReviewItem         `json:"items"`
	Confusions   []analysis.Confusion `json:"confusions"`
}

// SessionDetail is a stored session and its errors.
type SessionDetail struct {
	Session store.Session          `json:"session"`
	Errors  []reading.ReadingError `json:"errors"`
}

// Analysis is the error-pattern summary of one user over a period.
type Analysis struct {
	UserID string          `json:"user_id"`
	Period analysis.Period `json:"period"`

	// Since is the start of the period, nil for [analysis.PeriodAll].
	Since *time.Time `json:"since,omitempty"`

	analysis.Summary

	Confusions []analysis.Confusion `json:"confusions"`
}

// Session returns the stored session with the given ID and its errors.
func (s *Service) Session(ctx context.Context, id string) (SessionDetail, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return SessionDetail{}, fmt.Errorf("assess: get session: %w", err)
	}
	errs, err := s.store.ListErrors(ctx, id)
	if err != nil {
		return SessionDetail{}, fmt.Errorf("assess: list errors: %w", err)
	}
	return SessionDetail{Session: sess, Errors: errs}, nil
}

// History returns userID's sessions, newest first.
func (s *Service) History(ctx context.Context, userID string, opts store.ListOptions) ([]store.Session, error) {
	sessions, err := s.store.ListSessions(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("assess: list sessions: %w", err)
	}
	return sessions, nil
}

// Review returns the errors of a stored session with their passage context
// and any sound-alike confusions among them. It fails with
// [ErrUnknownPassage] when the passage has since left the library.
func (s *Service) Review(ctx context.Context, sessionID string) (Review, error) {
	detail, err := s.Session(ctx, sessionID)
	if err != nil {
		return Review{}, err
	}
	p, err := s.passages.Get(detail.Session.PassageID)
	if err != nil {
		if errors.Is(err, passage.ErrNotFound) {
			return Review{}, fmt.Errorf("%w: %q", ErrUnknownPassage, detail.Session.PassageID)
		}
		return Review{}, fmt.Errorf("assess: get passage: %w", err)
	}

	_, radius := s.scoring()
	rev := Review{
		Session:      detail.Session,
		PassageTitle: p.Title,
		Items:        make([]ReviewItem, 0, len(detail.Errors)),
	}
	records := make([]store.ErrorRecord, 0, len(detail.Errors))
	for _, e := range detail.Errors {
		rev.Items = append(rev.Items, ReviewItem{
			ReadingError: e,
			Context:      reading.Context(p.Content, e.PositionInText, radius),
		})
		records = append(records, store.ErrorRecord{
			SessionID:    detail.Session.ID,
			UserID:       detail.Session.UserID,
			PassageID:    detail.Session.PassageID,
			StartedAt:    detail.Session.StartedAt,
			ReadingError: e,
		})
	}
	rev.Confusions = analysis.Confusions(records, analysis.DefaultMinConfusionScore)
	return rev, nil
}

// Analyze summarises userID's errors over period.
func (s *Service) Analyze(ctx context.Context, userID string, period analysis.Period) (Analysis, error) {
	since := period.Since(s.now())

	sessions, err := s.store.ListSessions(ctx, userID, store.ListOptions{Since: since})
	if err != nil {
		return Analysis{}, fmt.Errorf("assess: list sessions: %w", err)
	}
	records, err := s.store.UserErrors(ctx, userID, since)
	if err != nil {
		return Analysis{}, fmt.Errorf("assess: user errors: %w", err)
	}

	out := Analysis{
		UserID:     userID,
		Period:     period,
		Summary:    analysis.Summarize(sessions, records, analysis.DefaultTopWords),
		Confusions: analysis.Confusions(records, analysis.DefaultMinConfusionScore),
	}
	if !since.IsZero() {
		out.Since = &since
	}
	return out, nil
}
