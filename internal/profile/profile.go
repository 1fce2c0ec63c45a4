// Package profile maintains each user's interest window from the text of
// their searches, paper views, and uploaded documents.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/matsen/papersim/internal/keyword"
	"github.com/matsen/papersim/internal/logger"
	"github.com/matsen/papersim/internal/metrics"
	"github.com/matsen/papersim/internal/reference"
)

// ErrExtraction is returned when keywords cannot be extracted from the
// event text. The profile is left untouched.
var ErrExtraction = errors.New("keyword extraction failed")

// eventKeywords is how many of the top keywords a PDF upload or paper view
// contributes.
const eventKeywords = 3

// Event kinds, used as metric labels.
const (
	EventSearch = "search"
	EventPDF    = "pdf"
	EventPaper  = "paper"
	EventDirect = "direct"
)

// UserStore reads users and updates their interests atomically.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*reference.User, error)
	UpdateInterests(ctx context.Context, id string, fn func(current string) (string, error)) error
}

// Service creates amplifiers over a user store and keyword extractor.
type Service struct {
	users     UserStore
	extractor keyword.Extractor
	logger    *zap.Logger

	locks [lockStripes]sync.Mutex
}

// lockStripes bounds the per-user locks; users sharing a stripe serialize.
const lockStripes = 64

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a profile service.
func NewService(users UserStore, extractor keyword.Extractor, opts ...Option) *Service {
	s := &Service{
		users:     users,
		extractor: extractor,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrNop(s.logger)
	return s
}

// Amplifier holds the keywords extracted from one piece of event text and
// folds them into one user's interests.
type Amplifier struct {
	svc *Service

	Text     string
	UserID   string
	Keywords []string // Extracted terms, most salient first
}

// NewAmplifier extracts keywords from text once, for later application to
// userID. Extraction failure returns ErrExtraction.
func (s *Service) NewAmplifier(ctx context.Context, text, userID string) (*Amplifier, error) {
	keywords, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	return &Amplifier{
		svc:      s,
		Text:     text,
		UserID:   userID,
		Keywords: keyword.Terms(keywords),
	}, nil
}

// lock serializes profile updates for one user within this process.
func (s *Service) lock(userID string) func() {
	mu := &s.locks[stripe(userID)]
	mu.Lock()
	return mu.Unlock
}

func stripe(userID string) uint64 {
	return xxhash.Sum64String(userID) % lockStripes
}

// update applies fn to the user's interests under the per-user lock and a
// store transaction. fn reports whether it changed anything.
func (s *Service) update(ctx context.Context, event, userID string, fn func(current string) string) error {
	unlock := s.lock(userID)
	defer unlock()

	applied := false
	err := s.users.UpdateInterests(ctx, userID, func(current string) (string, error) {
		updated := fn(current)
		applied = updated != current
		return updated, nil
	})
	if err != nil {
		metrics.ProfileUpdatesTotal.WithLabelValues(event, "error").Inc()
		return fmt.Errorf("updating interests for %s: %w", userID, err)
	}

	outcome := "skipped"
	if applied {
		outcome = "applied"
	}
	metrics.ProfileUpdatesTotal.WithLabelValues(event, outcome).Inc()
	s.logger.Debug("interest profile update",
		zap.String("user", userID),
		zap.String("event", event),
		zap.String("outcome", outcome),
	)
	return nil
}

func (s *Service) recordFailure(event string) {
	metrics.ProfileUpdatesTotal.WithLabelValues(event, "error").Inc()
}

// AddInterests appends terms to the user's interests without extraction.
func (s *Service) AddInterests(ctx context.Context, userID string, terms []string) error {
	return s.update(ctx, EventDirect, userID, func(current string) string {
		return reference.AppendInterests(current, terms)
	})
}

// UpdateInterests appends terms to the user's interests, keeping the newest
// reference.MaxInterests items.
func (a *Amplifier) UpdateInterests(ctx context.Context, terms []string) error {
	return a.updateFor(ctx, EventDirect, terms)
}

func (a *Amplifier) updateFor(ctx context.Context, event string, terms []string) error {
	return a.svc.update(ctx, event, a.UserID, func(current string) string {
		return reference.AppendInterests(current, terms)
	})
}

// FromSearch applies every keyword unless the search text is exactly the
// user's current interest text.
func (a *Amplifier) FromSearch(ctx context.Context) error {
	return a.svc.update(ctx, EventSearch, a.UserID, func(current string) string {
		if current == a.Text {
			return current
		}
		return reference.AppendInterests(current, a.Keywords)
	})
}

// FromPDF applies the top three keywords of an uploaded document.
func (a *Amplifier) FromPDF(ctx context.Context) error {
	return a.updateFor(ctx, EventPDF, a.top(eventKeywords))
}

// FromPaper applies the top three keywords of a viewed paper.
func (a *Amplifier) FromPaper(ctx context.Context) error {
	return a.updateFor(ctx, EventPaper, a.top(eventKeywords))
}

func (a *Amplifier) top(n int) []string {
	if len(a.Keywords) < n {
		return a.Keywords
	}
	return a.Keywords[:n]
}
