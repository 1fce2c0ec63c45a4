package profile

import (
	"context"
	"strings"

	"github.com/matsen/papersim/internal/pdf"
	"github.com/matsen/papersim/internal/reference"
)

// RecordSearch folds a search query into the user's interests.
func (s *Service) RecordSearch(ctx context.Context, userID, query string) (*Amplifier, error) {
	a, err := s.NewAmplifier(ctx, query, userID)
	if err != nil {
		s.recordFailure(EventSearch)
		return nil, err
	}
	return a, a.FromSearch(ctx)
}

// RecordPaperView folds the title and abstract of a viewed paper into the
// user's interests.
func (s *Service) RecordPaperView(ctx context.Context, userID string, p reference.Paper) (*Amplifier, error) {
	a, err := s.NewAmplifier(ctx, PaperText(p), userID)
	if err != nil {
		s.recordFailure(EventPaper)
		return nil, err
	}
	return a, a.FromPaper(ctx)
}

// RecordPDF folds the text of an uploaded PDF into the user's interests.
// maxPages <= 0 reads the whole document.
func (s *Service) RecordPDF(ctx context.Context, userID, path string, maxPages int) (*Amplifier, error) {
	text, err := pdf.ExtractText(path, maxPages)
	if err != nil {
		s.recordFailure(EventPDF)
		return nil, err
	}
	a, err := s.NewAmplifier(ctx, text, userID)
	if err != nil {
		s.recordFailure(EventPDF)
		return nil, err
	}
	return a, a.FromPDF(ctx)
}

// PaperText is the text a paper view contributes: title then abstract.
func PaperText(p reference.Paper) string {
	return strings.TrimSpace(p.Title + "\n" + p.Abstract)
}
