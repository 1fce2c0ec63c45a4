// Package reference defines the core domain types for papers and users.
package reference

import "strings"

// Paper represents a paper in the searchable corpus.
type Paper struct {
	ID       string `json:"id"`  // Opaque stable identifier
	Title    string `json:"title"`
	URL      string `json:"url"`
	Abstract string `json:"abstract"`
	Authors  string `json:"authors"` // Free-text author list, e.g. "Jane Doe, John Smith"
}

// Text returns the title, abstract, and authors joined into one blob.
// This is the text that gets vectorized for a paper.
func (p Paper) Text() string {
	return p.Title + " " + p.Abstract + " " + p.Authors
}

// HasAuthor reports whether the paper's author text contains name,
// ignoring case.
func (p Paper) HasAuthor(name string) bool {
	return strings.Contains(strings.ToLower(p.Authors), strings.ToLower(name))
}
