// Package vectors builds, persists, and queries a TF-IDF vector space over
// the paper corpus.
package vectors

import (
	"context"
	"time"

	"github.com/matsen/papersim/internal/reference"
)

// CorpusSource supplies the full corpus, in corpus order, for building.
type CorpusSource interface {
	ListPapers(ctx context.Context) ([]reference.Paper, error)
}

// SparseVector is a vector stored as ascending column indices and weights.
type SparseVector struct {
	Cols    []int
	Weights []float64
}

// Snapshot is the complete persisted state of a built index: the
// term-weighting model, one vector per paper, and the aligned paper IDs.
type Snapshot struct {
	// Version is the format version for compatibility checking.
	Version int `json:"version"`

	CreatedAt       time.Time `json:"created_at"`
	PaperCount      int       `json:"paper_count"`
	BuildDurationMs int64     `json:"build_duration_ms"`

	Model    Model          `json:"-"`
	PaperIDs []string       `json:"-"` // PaperIDs[i] is the paper for Vectors[i]
	Vectors  []SparseVector `json:"-"`
}

// Scored is a paper's similarity to a query, with its corpus position.
type Scored struct {
	PaperID  string  `json:"id"`
	Position int     `json:"-"`
	Score    float64 `json:"score"`
}

// Info summarizes a loaded index.
type Info struct {
	Path            string    `json:"path"`
	PaperCount      int       `json:"paper_count"`
	VocabularySize  int       `json:"vocabulary_size"`
	CreatedAt       time.Time `json:"created_at"`
	BuildDurationMs int64     `json:"build_duration_ms"`
	SizeBytes       int64     `json:"size_bytes"`
}

// ProgressReporter receives progress updates during index building.
type ProgressReporter interface {
	// OnProgress is called with the current progress.
	OnProgress(current, total int)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(current, total int)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(current, total int) {
	f(current, total)
}
