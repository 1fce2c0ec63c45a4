package keyword

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	// DefaultTop is the number of keywords returned by default.
	DefaultTop = 20

	// DefaultMaxNgram is the longest candidate phrase, in words.
	DefaultMaxNgram = 3

	// minWordLength is the shortest word that can bound a candidate.
	minWordLength = 3
)

var (
	sentenceBoundary = regexp.MustCompile(`[.!?]+(\s+|$)|\n\s*\n`)
	chunkBoundary    = regexp.MustCompile(`[,;:()\[\]{}"“”]+`)
	wordPattern      = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’-][\p{L}\p{N}]+)*`)
)

// YAKE is an unsupervised single-document keyword extractor in the YAKE
// family. Candidate phrases are scored from per-word statistics (casing,
// position, frequency, context relatedness and sentence spread); lower
// scores are better.
type YAKE struct {
	top       int
	maxNgram  int
	stopWords map[string]struct{}
}

// Option configures a YAKE extractor.
type Option func(*YAKE)

// WithTop sets how many keywords are returned.
func WithTop(n int) Option {
	return func(y *YAKE) {
		if n > 0 {
			y.top = n
		}
	}
}

// WithMaxNgram sets the longest candidate phrase.
func WithMaxNgram(n int) Option {
	return func(y *YAKE) {
		if n > 0 {
			y.maxNgram = n
		}
	}
}

// WithStopWords replaces the English stop word list.
func WithStopWords(words []string) Option {
	return func(y *YAKE) {
		y.stopWords = stopWordSet(words)
	}
}

// NewYAKE creates an extractor with English stop words, trigrams and the
// top 20 keywords.
func NewYAKE(opts ...Option) *YAKE {
	y := &YAKE{
		top:       DefaultTop,
		maxNgram:  DefaultMaxNgram,
		stopWords: stopWordSet(englishStopWords),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// occurrence is one word in the text.
type occurrence struct {
	raw      string
	lower    string
	sentence int
	initial  bool // First word of its sentence
}

// wordStats accumulates the features of one lowercased word.
type wordStats struct {
	tf        int
	tfUpper   int // Capitalized, not sentence-initial
	tfAcronym int // All upper case
	sentences []int
	left      map[string]int
	right     map[string]int
	stop      bool
	score     float64
}

type candidate struct {
	words []string
	tf    int
	first int
}

// Extract returns up to the configured number of keywords, most salient
// first. Returns ErrNoKeywords for text with no usable candidate.
func (y *YAKE) Extract(ctx context.Context, text string) ([]Keyword, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoKeywords
	}

	chunks, numSentences := y.split(text)
	stats := y.wordFeatures(chunks, numSentences)

	candidates := make(map[string]*candidate)
	order := 0
	for _, chunk := range chunks {
		for i := range chunk {
			for n := 1; n <= y.maxNgram && i+n <= len(chunk); n++ {
				gram := chunk[i : i+n]
				if stats[gram[0].lower].stop || stats[gram[n-1].lower].stop {
					continue
				}
				words := make([]string, n)
				for j, o := range gram {
					words[j] = o.lower
				}
				key := strings.Join(words, " ")
				c, ok := candidates[key]
				if !ok {
					c = &candidate{words: words, first: order}
					candidates[key] = c
					order++
				}
				c.tf++
			}
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoKeywords
	}

	keywords := make([]Keyword, 0, len(candidates))
	firsts := make(map[string]int, len(candidates))
	for key, c := range candidates {
		prod, sum := 1.0, 0.0
		for _, w := range c.words {
			s := stats[w]
			if s.stop {
				continue
			}
			prod *= s.score
			sum += s.score
		}
		keywords = append(keywords, Keyword{
			Term:  key,
			Score: prod / (float64(c.tf) * (1 + sum)),
		})
		firsts[key] = c.first
	}

	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Score != keywords[j].Score {
			return keywords[i].Score < keywords[j].Score
		}
		return firsts[keywords[i].Term] < firsts[keywords[j].Term]
	})

	if len(keywords) > y.top {
		keywords = keywords[:y.top]
	}
	return keywords, nil
}

// split breaks text into sentences and then into punctuation-free chunks of
// words. Candidates never cross a chunk boundary.
func (y *YAKE) split(text string) ([][]occurrence, int) {
	var chunks [][]occurrence
	numSentences := 0
	for _, sentence := range sentenceBoundary.Split(text, -1) {
		if strings.TrimSpace(sentence) == "" {
			continue
		}
		initial := true
		found := false
		for _, part := range chunkBoundary.Split(sentence, -1) {
			var chunk []occurrence
			for _, raw := range wordPattern.FindAllString(part, -1) {
				chunk = append(chunk, occurrence{
					raw:      raw,
					lower:    strings.ToLower(raw),
					sentence: numSentences,
					initial:  initial,
				})
				initial = false
			}
			if len(chunk) > 0 {
				chunks = append(chunks, chunk)
				found = true
			}
		}
		if found {
			numSentences++
		}
	}
	return chunks, numSentences
}

// wordFeatures computes the per-word score used to rank candidates.
func (y *YAKE) wordFeatures(chunks [][]occurrence, numSentences int) map[string]*wordStats {
	stats := make(map[string]*wordStats)
	get := func(o occurrence) *wordStats {
		s, ok := stats[o.lower]
		if !ok {
			s = &wordStats{
				left:  make(map[string]int),
				right: make(map[string]int),
				stop:  y.isStopWord(o.lower),
			}
			stats[o.lower] = s
		}
		return s
	}

	for _, chunk := range chunks {
		for i, o := range chunk {
			s := get(o)
			s.tf++
			s.sentences = append(s.sentences, o.sentence)
			switch {
			case isAcronym(o.raw):
				s.tfAcronym++
			case !o.initial && startsUpper(o.raw):
				s.tfUpper++
			}
			if i > 0 && !y.isStopWord(chunk[i-1].lower) {
				s.left[chunk[i-1].lower]++
			}
			if i+1 < len(chunk) && !y.isStopWord(chunk[i+1].lower) {
				s.right[chunk[i+1].lower]++
			}
		}
	}

	var tfs []float64
	maxTF := 0.0
	for _, s := range stats {
		if s.stop {
			continue
		}
		tfs = append(tfs, float64(s.tf))
		maxTF = math.Max(maxTF, float64(s.tf))
	}
	meanTF, stdTF := meanStd(tfs)

	for _, s := range stats {
		if s.stop {
			continue
		}
		tf := float64(s.tf)
		casing := float64(max(s.tfUpper, s.tfAcronym)) / (1 + math.Log(tf))
		position := math.Log(math.Log(3 + median(s.sentences)))
		frequency := tf / (meanTF + stdTF)
		relatedness := 1 + (dispersion(s.left)+dispersion(s.right))*tf/maxTF
		spread := float64(distinct(s.sentences)) / float64(numSentences)

		s.score = relatedness * position / (casing + frequency/relatedness + spread/relatedness)
	}
	return stats
}

func (y *YAKE) isStopWord(w string) bool {
	if len([]rune(w)) < minWordLength {
		return true
	}
	if _, ok := y.stopWords[w]; ok {
		return true
	}
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// dispersion is the ratio of distinct neighbours to all neighbour
// occurrences; 0 when there are none.
func dispersion(neighbours map[string]int) float64 {
	total := 0
	for _, n := range neighbours {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(len(neighbours)) / float64(total)
}

func isAcronym(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 1
}

func startsUpper(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

func median(xs []int) float64 {
	sorted := append([]int(nil), xs...)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

func distinct(xs []int) int {
	seen := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return len(seen)
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}
