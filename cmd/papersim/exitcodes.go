package main

import (
	"errors"

	"github.com/matsen/papersim/internal/keyword"
	"github.com/matsen/papersim/internal/pdf"
	"github.com/matsen/papersim/internal/profile"
	"github.com/matsen/papersim/internal/storage"
	"github.com/matsen/papersim/internal/vectors"
)

// Exit codes
const (
	ExitSuccess       = 0 // Success
	ExitError         = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError   = 2 // Configuration error (no repository, invalid config.yml)
	ExitDataError     = 3 // Data error (malformed input, empty corpus, no keywords)
	ExitNotFound      = 4 // Paper, user, or file not found
	ExitIndexNotReady = 5 // No usable vector index
	ExitIndexStale    = 6 // Vector index is missing papers from the corpus
)

// exitCodeFor maps domain errors to exit codes.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrPaperNotFound),
		errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, vectors.ErrPaperNotIndexed),
		errors.Is(err, pdf.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, vectors.ErrIndexNotReady):
		return ExitIndexNotReady
	case errors.Is(err, profile.ErrExtraction),
		errors.Is(err, keyword.ErrNoKeywords),
		errors.Is(err, pdf.ErrNoText),
		errors.Is(err, vectors.ErrEmptyCorpus),
		errors.Is(err, storage.ErrDuplicateUser):
		return ExitDataError
	default:
		return ExitError
	}
}
