package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/papersim/internal/vectors"
)

var (
	similarLimit int
)

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().IntVarP(&similarLimit, "limit", "l", 10, "Maximum number of results")
}

// SimilarSource is the source paper info for similar papers response.
type SimilarSource struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SimilarResponse is the response for the similar papers command.
type SimilarResponse struct {
	Source  SimilarSource `json:"source"`
	Similar []PaperResult `json:"similar"`
	Total   int           `json:"total"`
}

var similarCmd = &cobra.Command{
	Use:   "similar <paper-id>",
	Short: "Find papers similar to a specific paper",
	Long: `Find the papers whose vectors are closest to a given paper's.
The source paper is excluded from results.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	paperID := args[0]
	e := mustSetup()
	defer e.close()

	sourcePaper, err := e.db.GetPaper(ctx, paperID)
	exitOnError(err, "looking up paper")

	idx := e.mustOpenIndex(ctx)
	results, err := e.ranker(idx).Similar(ctx, paperID, similarLimit)
	if errors.Is(err, vectors.ErrPaperNotIndexed) {
		exitWithError(ExitIndexStale, "Paper '%s' is not in the vector index\n\nRebuild the index with 'papersim index build'.", paperID)
	}
	exitOnError(err, "finding similar papers")

	similar := toPaperResults(results)

	if humanOutput {
		fmt.Printf("Papers similar to: %s\n", paperID)
		fmt.Printf("\"%s\"\n\n", truncateString(sourcePaper.Title, DetailTitleMaxLen))
		printResultsHuman(similar)
	} else {
		outputJSON(SimilarResponse{
			Source: SimilarSource{
				ID:    sourcePaper.ID,
				Title: sourcePaper.Title,
			},
			Similar: similar,
			Total:   len(similar),
		})
	}
	return nil
}
