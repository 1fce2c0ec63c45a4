package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/papersim/internal/vectors"
)

var (
	noProgress bool

	progressMu sync.Mutex
)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexCheckCmd)

	indexBuildCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Suppress progress output")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
	Long:  `Commands for building and checking the TF-IDF vector index.`,
}

// IndexBuildResult is the response for index build command.
type IndexBuildResult struct {
	Status          string  `json:"status"`
	PapersIndexed   int     `json:"papers_indexed"`
	VocabularySize  int     `json:"vocabulary_size"`
	DurationSeconds float64 `json:"duration_seconds"`
	IndexSizeBytes  int64   `json:"index_size_bytes"`
	Path            string  `json:"path"`
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or rebuild the vector index",
	Long: `Rebuild the vector index from every paper in the corpus.

The vocabulary is fixed at build time, so papers added afterwards are not
searchable until the next build. The previous snapshot stays in place until
the new one is complete.`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e := mustSetup()
	defer e.close()

	showProgress := humanOutput && !noProgress

	var opts []vectors.Option
	if showProgress {
		opts = append(opts, vectors.WithProgressReporter(vectors.ProgressFunc(printProgress)))
		fmt.Fprintf(os.Stderr, "Building vector index...\n")
	}

	idx := e.index(opts...)
	startTime := time.Now()
	if err := idx.Refresh(ctx); err != nil {
		if errors.Is(err, vectors.ErrEmptyCorpus) {
			exitWithError(ExitDataError, "The corpus is empty\n\nAdd papers with 'papersim import <papers.jsonl>' first.")
		}
		exitWithError(ExitError, "building index: %v", err)
	}
	elapsed := time.Since(startTime)

	info, err := idx.Info()
	exitOnError(err, "reading index info")

	// Clear progress line if we were showing progress
	if showProgress {
		fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", 50))
	}

	if humanOutput {
		fmt.Printf("\nBuild complete:\n")
		fmt.Printf("  Papers indexed: %d\n", info.PaperCount)
		fmt.Printf("  Vocabulary: %d terms\n", info.VocabularySize)
		fmt.Printf("  Time elapsed: %s\n", formatDuration(elapsed))
		fmt.Printf("  Index size: %s\n", formatBytes(info.SizeBytes))
	} else {
		outputJSON(IndexBuildResult{
			Status:          "complete",
			PapersIndexed:   info.PaperCount,
			VocabularySize:  info.VocabularySize,
			DurationSeconds: elapsed.Seconds(),
			IndexSizeBytes:  info.SizeBytes,
			Path:            info.Path,
		})
	}
	return nil
}

// IndexCheckResult is the response for index check command.
type IndexCheckResult struct {
	Status         string   `json:"status"`
	PapersTotal    int      `json:"papers_total"`
	PapersIndexed  int      `json:"papers_indexed"`
	PapersMissing  int      `json:"papers_missing"`
	MissingIDs     []string `json:"missing_ids,omitempty"`
	VocabularySize int      `json:"vocabulary_size"`
	IndexCreated   string   `json:"index_created"`
	IndexSizeBytes int64    `json:"index_size_bytes"`
	Recommendation string   `json:"recommendation,omitempty"`
}

var indexCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check vector index health",
	Long: `Check the health and status of the vector index. Exits with code 6 if
the corpus holds papers that are not in the index.`,
	Args: cobra.NoArgs,
	RunE: runIndexCheck,
}

func runIndexCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e := mustSetup()
	defer e.close()

	if !vectors.Exists(e.cfg.ResolveSnapshotPath(e.root)) {
		exitWithError(ExitIndexNotReady, "Vector index not found\n\nRun 'papersim index build' to create the index.")
	}

	idx := e.mustOpenIndex(ctx)

	info, err := idx.Info()
	exitOnError(err, "reading index info")

	totalCount, err := e.db.CountPapers(ctx)
	exitOnError(err, "counting papers")

	missingIDs, err := idx.Missing(ctx)
	exitOnError(err, "finding missing papers")

	status := "healthy"
	var recommendation string
	exitCode := ExitSuccess

	if len(missingIDs) > 0 {
		status = "stale"
		recommendation = "Run 'papersim index build' to update the index"
		exitCode = ExitIndexStale
	}

	result := IndexCheckResult{
		Status:         status,
		PapersTotal:    totalCount,
		PapersIndexed:  info.PaperCount,
		PapersMissing:  len(missingIDs),
		VocabularySize: info.VocabularySize,
		IndexCreated:   info.CreatedAt.Format(time.RFC3339),
		IndexSizeBytes: info.SizeBytes,
		Recommendation: recommendation,
	}

	if len(missingIDs) > 0 && len(missingIDs) <= 10 {
		result.MissingIDs = missingIDs
	}

	if humanOutput {
		fmt.Printf("Vector Index Status: %s\n\n", status)
		fmt.Printf("Papers:\n")
		fmt.Printf("  Total in database: %d\n", totalCount)
		fmt.Printf("  In vector index: %d\n", info.PaperCount)
		fmt.Printf("  Missing from index: %d\n", len(missingIDs))
		fmt.Printf("\nIndex Info:\n")
		fmt.Printf("  Vocabulary: %d terms\n", info.VocabularySize)
		fmt.Printf("  Created: %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Size: %s\n", formatBytes(info.SizeBytes))
		if recommendation != "" {
			fmt.Printf("\n%s\n", recommendation)
		}
	} else {
		outputJSON(result)
	}

	if exitCode != ExitSuccess {
		writeMetrics()
		os.Exit(exitCode)
	}
	return nil
}

// printProgress prints a progress bar to stderr. Safe for concurrent use.
func printProgress(current, total int) {
	if total == 0 {
		return
	}
	progressMu.Lock()
	defer progressMu.Unlock()
	pct := float64(current) / float64(total) * 100
	barWidth := 30
	filled := int(float64(barWidth) * float64(current) / float64(total))
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled:
			bar.WriteByte('=')
		case i == filled:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}
	fmt.Fprintf(os.Stderr, "\r[%s] %d/%d (%.0f%%)", bar.String(), current, total, pct)
}
