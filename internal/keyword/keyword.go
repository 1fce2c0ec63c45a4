// Package keyword extracts ranked key terms from free text.
package keyword

import (
	"context"
	"errors"
)

// ErrNoKeywords is returned when text yields no candidate terms.
var ErrNoKeywords = errors.New("no keywords in text")

// Keyword is an extracted term. Lower scores are more salient.
type Keyword struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// Extractor ranks the key terms of a text, most salient first.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Keyword, error)
}

// Terms returns the Term of each keyword, in order.
func Terms(keywords []Keyword) []string {
	terms := make([]string, len(keywords))
	for i, k := range keywords {
		terms[i] = k.Term
	}
	return terms
}
