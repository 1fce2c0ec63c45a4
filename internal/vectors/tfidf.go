package vectors

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern matches runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Preprocess applies the only text normalization used for both corpus and
// queries.
func Preprocess(text string) string {
	return strings.ToLower(text)
}

// Tokenize splits preprocessed text into terms.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// Model is a fitted term-weighting model. The vocabulary is frozen once
// fitted; terms outside it are ignored by Transform.
type Model struct {
	Terms []string  // Vocabulary in column order (lexicographic)
	IDF   []float64 // IDF[i] is the weight of Terms[i]

	columns map[string]int
}

// termCounts holds the raw term frequencies of one document.
type termCounts map[string]int

func countTerms(text string) termCounts {
	counts := make(termCounts)
	for _, tok := range Tokenize(Preprocess(text)) {
		counts[tok]++
	}
	return counts
}

// fitModel builds the vocabulary and smoothed IDF weights from per-document
// term counts:
//
//	idf(t) = ln((1 + n) / (1 + df(t))) + 1
func fitModel(docs []termCounts) Model {
	df := make(map[string]int)
	for _, doc := range docs {
		for term := range doc {
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	m := Model{Terms: terms, IDF: idf}
	m.index()
	return m
}

// index rebuilds the term-to-column lookup. Needed after decoding.
func (m *Model) index() {
	m.columns = make(map[string]int, len(m.Terms))
	for i, term := range m.Terms {
		m.columns[term] = i
	}
}

// VocabularySize returns the number of terms in the model.
func (m *Model) VocabularySize() int {
	return len(m.Terms)
}

// Transform projects text into the model's vector space.
// The result is L2-normalized; text with no known terms yields a zero vector.
func (m *Model) Transform(text string) SparseVector {
	return m.weigh(countTerms(text))
}

func (m *Model) weigh(counts termCounts) SparseVector {
	cols := make([]int, 0, len(counts))
	for term := range counts {
		if col, ok := m.columns[term]; ok {
			cols = append(cols, col)
		}
	}
	sort.Ints(cols)

	weights := make([]float64, len(cols))
	var norm float64
	for i, col := range cols {
		w := float64(counts[m.Terms[col]]) * m.IDF[col]
		weights[i] = w
		norm += w * w
	}

	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range weights {
			weights[i] /= norm
		}
	}

	return SparseVector{Cols: cols, Weights: weights}
}

// Norm returns the Euclidean length of v.
func (v SparseVector) Norm() float64 {
	var sum float64
	for _, w := range v.Weights {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of two sparse vectors.
func Dot(a, b SparseVector) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(a.Cols) && j < len(b.Cols) {
		switch {
		case a.Cols[i] == b.Cols[j]:
			dot += a.Weights[i] * b.Weights[j]
			i++
			j++
		case a.Cols[i] < b.Cols[j]:
			i++
		default:
			j++
		}
	}
	return dot
}

// CosineSimilarity computes the cosine similarity between two sparse vectors.
// Returns 0 if either vector is zero.
func CosineSimilarity(a, b SparseVector) float64 {
	denominator := a.Norm() * b.Norm()
	if denominator == 0 {
		return 0
	}
	return Dot(a, b) / denominator
}
