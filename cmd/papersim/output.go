package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matsen/papersim/internal/reference"
	"github.com/matsen/papersim/internal/search"
)

// Title truncation lengths by context
const (
	SearchTitleMaxLen = 70 // Used in search result summaries
	DetailTitleMaxLen = 70 // Used in get command detail view
	AuthorsMaxLen     = 60
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	writeMetrics()
	os.Exit(code)
}

// exitOnError exits with the code mapped from err, prefixing the message.
func exitOnError(err error, action string) {
	if err != nil {
		exitWithError(exitCodeFor(err), "%s: %v", action, err)
	}
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PaperResult represents a paper in ranked output (search, similar, recommend).
type PaperResult struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Authors    string  `json:"authors"`
	URL        string  `json:"url,omitempty"`
	Score      float64 `json:"score"`
	Backfilled bool    `json:"backfilled,omitempty"`
}

func toPaperResults(results []search.Result) []PaperResult {
	out := make([]PaperResult, len(results))
	for i, r := range results {
		out[i] = PaperResult{
			ID:         r.Paper.ID,
			Title:      r.Paper.Title,
			Authors:    r.Paper.Authors,
			URL:        r.Paper.URL,
			Score:      r.Score,
			Backfilled: r.Backfilled,
		}
	}
	return out
}

// printResultsHuman prints ranked results in human-readable format.
func printResultsHuman(results []PaperResult) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, r := range results {
		marker := ""
		if r.Backfilled {
			marker = " *"
		}
		fmt.Printf("%d. [%.2f]%s %s\n", i+1, r.Score, marker, r.ID)
		fmt.Printf("   %s\n", truncateString(r.Title, SearchTitleMaxLen))
		if r.Authors != "" {
			fmt.Printf("   %s\n", truncateString(r.Authors, AuthorsMaxLen))
		}
		fmt.Println()
	}
}

// printPaperHuman prints a single paper in detail.
func printPaperHuman(p reference.Paper) {
	fmt.Printf("%s\n", p.ID)
	fmt.Printf("  Title:   %s\n", truncateString(p.Title, DetailTitleMaxLen))
	if p.Authors != "" {
		fmt.Printf("  Authors: %s\n", p.Authors)
	}
	if p.URL != "" {
		fmt.Printf("  URL:     %s\n", p.URL)
	}
	if p.Abstract != "" {
		fmt.Printf("\n  %s\n", wrapText(p.Abstract, 68, "  "))
	}
}

// printUserHuman prints a user and their interest window.
func printUserHuman(u reference.User) {
	fmt.Printf("%s <%s>\n", u.Username, u.Email)
	fmt.Printf("  ID:        %s\n", u.ID)
	if u.Interests == "" {
		fmt.Printf("  Interests: (none)\n")
	} else {
		fmt.Printf("  Interests: %s\n", u.Interests)
	}
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// wrapText wraps text to the specified width with indentation on subsequent lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	var currentLine strings.Builder

	for _, word := range strings.Fields(text) {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= width {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return strings.Join(lines, "\n"+indent)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
