// Package search ranks corpus papers against free-text queries using the
// vector index, with a minimum-result backfill and an author filter.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/papersim/internal/logger"
	"github.com/matsen/papersim/internal/metrics"
	"github.com/matsen/papersim/internal/reference"
	"github.com/matsen/papersim/internal/vectors"
)

const (
	// DefaultMinResults is the result-count floor filled by backfill.
	DefaultMinResults = 25

	// DefaultThreshold is the minimum cosine similarity for a high-similarity match.
	DefaultThreshold = 0.3
)

// ErrInvalidQuery is returned for out-of-range query parameters.
var ErrInvalidQuery = errors.New("invalid query")

// CorpusStore materializes papers selected by the ranker.
type CorpusStore interface {
	PapersByIDs(ctx context.Context, ids []string) ([]reference.Paper, error)
}

// VectorIndex is the part of the vector index the ranker uses.
type VectorIndex interface {
	Similarities(query string) ([]vectors.Scored, error)
	Similar(paperID string, limit int) ([]vectors.Scored, error)
}

// Query describes one search.
type Query struct {
	Terms      string  // Free text; may be empty
	Author     string  // Optional case-insensitive author substring filter
	MinResults int     // Result-count floor, >= 0
	Threshold  float64 // Minimum similarity in [0, 1]
}

// NewQuery returns a query with the default floor and threshold.
func NewQuery(terms string) Query {
	return Query{
		Terms:      terms,
		MinResults: DefaultMinResults,
		Threshold:  DefaultThreshold,
	}
}

// Validate checks the query parameters.
func (q Query) Validate() error {
	if q.MinResults < 0 {
		return fmt.Errorf("%w: min results %d is negative", ErrInvalidQuery, q.MinResults)
	}
	if math.IsNaN(q.Threshold) || q.Threshold < 0 || q.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalidQuery, q.Threshold)
	}
	return nil
}

// Result is a ranked paper with its similarity score.
type Result struct {
	Paper      reference.Paper `json:"paper"`
	Score      float64         `json:"score"`
	Backfilled bool            `json:"backfilled"` // Below threshold, added to reach MinResults
}

// UserSource looks up users for recommendations.
type UserSource interface {
	GetUser(ctx context.Context, id string) (*reference.User, error)
}

// Ranker runs queries against a vector index and a corpus store.
type Ranker struct {
	index  VectorIndex
	store  CorpusStore
	users  UserSource
	logger *zap.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithLogger sets the ranker's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Ranker) {
		r.logger = l
	}
}

// WithUsers enables Recommend.
func WithUsers(users UserSource) Option {
	return func(r *Ranker) {
		r.users = users
	}
}

// NewRanker creates a ranker.
func NewRanker(index VectorIndex, store CorpusStore, opts ...Option) *Ranker {
	r := &Ranker{
		index: index,
		store: store,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.OrNop(r.logger)
	return r
}

// Search returns papers ranked by similarity to q.Terms.
//
// Every paper scoring at least q.Threshold is returned, best first. If fewer
// than q.MinResults clear the threshold, the best-scoring remaining papers
// are appended until q.MinResults is reached or the corpus is exhausted.
// The author filter runs last and never triggers further backfill.
// Returns vectors.ErrIndexNotReady if no index is loaded.
func (r *Ranker) Search(ctx context.Context, q Query) ([]Result, error) {
	startTime := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(startTime).Seconds())
	}()

	if err := q.Validate(); err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	scores, err := r.index.Similarities(q.Terms)
	if err != nil {
		if errors.Is(err, vectors.ErrIndexNotReady) {
			metrics.SearchesTotal.WithLabelValues("not_ready").Inc()
		} else {
			metrics.SearchesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	selected, backfilled := Select(scores, q.MinResults, q.Threshold)

	results, err := r.materialize(ctx, selected, len(selected)-backfilled)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if q.Author != "" {
		results = FilterByAuthor(results, q.Author)
	}

	metrics.SearchesTotal.WithLabelValues("success").Inc()
	metrics.SearchBackfilledTotal.Add(float64(backfilled))
	r.logger.Debug("search complete",
		zap.String("terms", q.Terms),
		zap.String("author", q.Author),
		zap.Int("selected", len(selected)),
		zap.Int("backfilled", backfilled),
		zap.Int("returned", len(results)),
	)
	return results, nil
}

// Similar returns the papers most similar to paperID, excluding itself.
func (r *Ranker) Similar(ctx context.Context, paperID string, limit int) ([]Result, error) {
	scored, err := r.index.Similar(paperID, limit)
	if err != nil {
		return nil, err
	}
	return r.materialize(ctx, scored, len(scored))
}

// Recommend searches with the user's current interest text as the query.
// q.Terms is ignored. A user with no interests gets the first papers in
// corpus order.
func (r *Ranker) Recommend(ctx context.Context, userID string, q Query) ([]Result, error) {
	if r.users == nil {
		return nil, errors.New("recommend: no user source configured")
	}
	u, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	q.Terms = u.Interests
	return r.Search(ctx, q)
}

// Select applies the threshold and backfill policy to scores given in
// corpus order. It returns the chosen entries in rank order and how many of
// them were backfilled from below the threshold.
func Select(scores []vectors.Scored, minResults int, threshold float64) ([]vectors.Scored, int) {
	var high, rest []vectors.Scored
	for _, s := range scores {
		if s.Score >= threshold {
			high = append(high, s)
		} else {
			rest = append(rest, s)
		}
	}
	vectors.SortByScore(high)

	need := minResults - len(high)
	if need <= 0 {
		return high, 0
	}

	vectors.SortByScore(rest)
	if need > len(rest) {
		need = len(rest)
	}
	return append(high, rest[:need]...), need
}

// materialize fetches the papers for scored entries, preserving rank order.
// Entries from position high onward are marked as backfilled. Entries whose
// paper is no longer in the store are skipped.
func (r *Ranker) materialize(ctx context.Context, scored []vectors.Scored, high int) ([]Result, error) {
	if len(scored) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.PaperID
	}

	papers, err := r.store.PapersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching papers: %w", err)
	}

	byID := make(map[string]reference.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}

	results := make([]Result, 0, len(scored))
	for i, s := range scored {
		p, ok := byID[s.PaperID]
		if !ok {
			r.logger.Debug("indexed paper missing from store", zap.String("id", s.PaperID))
			continue
		}
		results = append(results, Result{
			Paper:      p,
			Score:      s.Score,
			Backfilled: i >= high,
		})
	}
	return results, nil
}

// FilterByAuthor keeps results whose authors contain author,
// case-insensitively. Order is preserved.
func FilterByAuthor(results []Result, author string) []Result {
	filtered := make([]Result, 0, len(results))
	for _, res := range results {
		if res.Paper.HasAuthor(author) {
			filtered = append(filtered, res)
		}
	}
	return filtered
}
