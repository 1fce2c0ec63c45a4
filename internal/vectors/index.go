package vectors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matsen/papersim/internal/logger"
	"github.com/matsen/papersim/internal/metrics"
)

// Index owns the in-memory vector space and its durable snapshot.
//
// Readers always see a complete snapshot: state is swapped atomically after a
// build has been persisted. Builds are serialized in-process by a mutex and
// across processes by an exclusive lock on "<path>.lock".
type Index struct {
	path     string
	source   CorpusSource
	logger   *zap.Logger
	progress ProgressReporter

	state   atomic.Pointer[Snapshot]
	buildMu sync.Mutex
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger used for build and load events.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Index) {
		idx.logger = l
	}
}

// WithProgressReporter sets a reporter notified as documents are vectorized.
// The reporter may be called from several goroutines.
func WithProgressReporter(r ProgressReporter) Option {
	return func(idx *Index) {
		idx.progress = r
	}
}

// New creates an index bound to a snapshot path and corpus source without
// loading anything. Queries fail with ErrIndexNotReady until LoadOrCreate,
// Build, or Refresh succeeds.
func New(path string, source CorpusSource, opts ...Option) *Index {
	idx := &Index{
		path:   path,
		source: source,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = logger.OrNop(idx.logger)
	return idx
}

// Open creates an index and runs LoadOrCreate.
func Open(ctx context.Context, path string, source CorpusSource, opts ...Option) (*Index, error) {
	idx := New(path, source, opts...)
	if err := idx.LoadOrCreate(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// Path returns the snapshot path.
func (idx *Index) Path() string {
	return idx.path
}

// LoadOrCreate loads the snapshot in full if one exists, otherwise builds it
// from the corpus. A corrupt snapshot is logged and replaced by a rebuild.
func (idx *Index) LoadOrCreate(ctx context.Context) error {
	snap, err := LoadSnapshot(idx.path)
	switch {
	case err == nil:
		metrics.IndexSnapshotLoadsTotal.WithLabelValues("loaded").Inc()
		idx.install(snap)
		idx.logger.Info("loaded vector snapshot",
			zap.String("path", idx.path),
			zap.Int("papers", len(snap.PaperIDs)),
			zap.Int("vocabulary", snap.Model.VocabularySize()),
		)
		return nil
	case errors.Is(err, ErrSnapshotNotFound):
		metrics.IndexSnapshotLoadsTotal.WithLabelValues("missing").Inc()
		idx.logger.Info("no vector snapshot, building", zap.String("path", idx.path))
	case errors.Is(err, ErrSnapshotCorrupt):
		metrics.IndexSnapshotLoadsTotal.WithLabelValues("corrupt").Inc()
		idx.logger.Warn("vector snapshot unusable, rebuilding",
			zap.String("path", idx.path),
			zap.Error(err),
		)
	default:
		return fmt.Errorf("loading vector snapshot: %w", err)
	}

	return idx.Build(ctx)
}

// Refresh forces a full rebuild from the corpus, regardless of any existing
// snapshot. Call it after the corpus changes; it is the only way new papers
// become searchable.
func (idx *Index) Refresh(ctx context.Context) error {
	idx.logger.Info("refreshing vector index", zap.String("path", idx.path))
	return idx.Build(ctx)
}

// Build vectorizes the full corpus, persists the snapshot, and then swaps it
// into memory. On failure the previous in-memory state and snapshot file are
// left untouched.
func (idx *Index) Build(ctx context.Context) error {
	idx.buildMu.Lock()
	defer idx.buildMu.Unlock()

	// The lock file lives beside the snapshot.
	if err := os.MkdirAll(filepath.Dir(idx.path), 0755); err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	lock, err := lockFile(idx.path + ".lock")
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return err
	}
	defer func() {
		if err := lock.unlock(); err != nil {
			idx.logger.Warn("releasing snapshot lock", zap.Error(err))
		}
	}()

	startTime := time.Now()

	snap, err := idx.compute(ctx)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrEmptyCorpus) {
			outcome = "empty_corpus"
		}
		metrics.IndexBuildsTotal.WithLabelValues(outcome).Inc()
		return err
	}

	snap.BuildDurationMs = time.Since(startTime).Milliseconds()

	if err := snap.Save(idx.path); err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("saving vector snapshot: %w", err)
	}

	idx.install(snap)

	metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
	metrics.IndexBuildDuration.Observe(time.Since(startTime).Seconds())
	idx.logger.Info("built vector index",
		zap.String("path", idx.path),
		zap.Int("papers", snap.PaperCount),
		zap.Int("vocabulary", snap.Model.VocabularySize()),
		zap.Duration("duration", time.Since(startTime)),
	)
	return nil
}

// compute reads the corpus and fits a new snapshot. Documents are tokenized
// concurrently; results are kept in corpus order.
func (idx *Index) compute(ctx context.Context) (*Snapshot, error) {
	papers, err := idx.source.ListPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	if len(papers) == 0 {
		return nil, ErrEmptyCorpus
	}

	total := len(papers)
	docs := make([]termCounts, total)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range papers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = countTerms(p.Text())
			if idx.progress != nil {
				idx.progress.OnProgress(int(done.Add(1)), total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	model := fitModel(docs)

	snap := &Snapshot{
		Version:    CurrentSnapshotVersion,
		CreatedAt:  time.Now(),
		PaperCount: total,
		Model:      model,
		PaperIDs:   make([]string, total),
		Vectors:    make([]SparseVector, total),
	}
	for i, p := range papers {
		snap.PaperIDs[i] = p.ID
		snap.Vectors[i] = model.weigh(docs[i])
	}

	return snap, nil
}

func (idx *Index) install(snap *Snapshot) {
	idx.state.Store(snap)
	metrics.IndexPapers.Set(float64(len(snap.PaperIDs)))
}

// snapshot returns the current state or ErrIndexNotReady.
func (idx *Index) snapshot() (*Snapshot, error) {
	snap := idx.state.Load()
	if snap == nil {
		return nil, ErrIndexNotReady
	}
	return snap, nil
}

// Ready reports whether a usable index is loaded.
func (idx *Index) Ready() bool {
	return idx.state.Load() != nil
}

// Similarities scores every indexed paper against query, in corpus order.
// The query is preprocessed exactly like the corpus; an empty query yields
// all-zero scores.
func (idx *Index) Similarities(query string) ([]Scored, error) {
	snap, err := idx.snapshot()
	if err != nil {
		return nil, err
	}

	qv := snap.Model.Transform(query)
	scores := make([]Scored, len(snap.PaperIDs))
	for i, dv := range snap.Vectors {
		scores[i] = Scored{
			PaperID:  snap.PaperIDs[i],
			Position: i,
			Score:    CosineSimilarity(qv, dv),
		}
	}
	return scores, nil
}

// Similar finds the papers most similar to the indexed paper paperID,
// excluding the paper itself. Ties keep corpus order. limit <= 0 returns all.
func (idx *Index) Similar(paperID string, limit int) ([]Scored, error) {
	snap, err := idx.snapshot()
	if err != nil {
		return nil, err
	}

	source := -1
	for i, id := range snap.PaperIDs {
		if id == paperID {
			source = i
			break
		}
	}
	if source < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotIndexed, paperID)
	}

	results := make([]Scored, 0, len(snap.PaperIDs)-1)
	for i, dv := range snap.Vectors {
		if i == source {
			continue
		}
		results = append(results, Scored{
			PaperID:  snap.PaperIDs[i],
			Position: i,
			Score:    CosineSimilarity(snap.Vectors[source], dv),
		})
	}

	SortByScore(results)

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// HasPaper checks if a paper is in the index.
func (idx *Index) HasPaper(paperID string) bool {
	snap := idx.state.Load()
	if snap == nil {
		return false
	}
	for _, id := range snap.PaperIDs {
		if id == paperID {
			return true
		}
	}
	return false
}

// Info describes the loaded index.
func (idx *Index) Info() (Info, error) {
	snap, err := idx.snapshot()
	if err != nil {
		return Info{}, err
	}

	size, err := SnapshotSize(idx.path)
	if err != nil && !errors.Is(err, ErrSnapshotNotFound) {
		return Info{}, err
	}

	return Info{
		Path:            idx.path,
		PaperCount:      len(snap.PaperIDs),
		VocabularySize:  snap.Model.VocabularySize(),
		CreatedAt:       snap.CreatedAt,
		BuildDurationMs: snap.BuildDurationMs,
		SizeBytes:       size,
	}, nil
}

// Missing returns the IDs of corpus papers that are not in the index,
// in corpus order. A non-empty result means the index is stale.
func (idx *Index) Missing(ctx context.Context) ([]string, error) {
	snap, err := idx.snapshot()
	if err != nil {
		return nil, err
	}

	papers, err := idx.source.ListPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}

	indexed := make(map[string]struct{}, len(snap.PaperIDs))
	for _, id := range snap.PaperIDs {
		indexed[id] = struct{}{}
	}

	var missing []string
	for _, p := range papers {
		if _, ok := indexed[p.ID]; !ok {
			missing = append(missing, p.ID)
		}
	}
	return missing, nil
}

// SortByScore sorts by descending score, breaking ties by corpus position.
func SortByScore(s []Scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].Position < s[j].Position
	})
}
