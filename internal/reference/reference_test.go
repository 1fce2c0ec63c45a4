package reference

import "testing"

func TestAppendInterests(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		terms    []string
		expected string
	}{
		{
			name:     "empty profile",
			current:  "",
			terms:    []string{"a", "b", "c"},
			expected: "a b c",
		},
		{
			name:     "window drops oldest",
			current:  "a b c",
			terms:    []string{"d", "e", "f"},
			expected: "b c d e f",
		},
		{
			name:     "single term on full window",
			current:  "x1 x2 x3 x4 x5",
			terms:    []string{"y1"},
			expected: "x2 x3 x4 x5 y1",
		},
		{
			name:     "duplicates are kept",
			current:  "graph",
			terms:    []string{"graph", "graph"},
			expected: "graph graph graph",
		},
		{
			name:     "more than five new terms",
			current:  "old",
			terms:    []string{"1", "2", "3", "4", "5", "6"},
			expected: "2 3 4 5 6",
		},
		{
			name:     "no new terms normalizes whitespace",
			current:  "  a   b ",
			terms:    nil,
			expected: "a b",
		},
		{
			name:     "multi-word terms count as one item",
			current:  "a b c d",
			terms:    []string{"machine learning", "x"},
			expected: "b c d machine learning x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendInterests(tt.current, tt.terms)
			if got != tt.expected {
				t.Errorf("AppendInterests(%q, %v) = %q, want %q", tt.current, tt.terms, got, tt.expected)
			}
		})
	}
}

func TestPaper_HasAuthor(t *testing.T) {
	p := Paper{Authors: "Jane Doe, John Smith"}

	if !p.HasAuthor("smith") {
		t.Error("expected case-insensitive match on 'smith'")
	}
	if !p.HasAuthor("DOE, J") {
		t.Error("expected substring match across name boundary")
	}
	if p.HasAuthor("Jones") {
		t.Error("did not expect match on 'Jones'")
	}
}

func TestPaper_Text(t *testing.T) {
	p := Paper{Title: "Title", Abstract: "Abstract", Authors: "Author"}
	if got := p.Text(); got != "Title Abstract Author" {
		t.Errorf("Text() = %q", got)
	}
}
