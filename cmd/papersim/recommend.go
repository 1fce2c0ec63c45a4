package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(recommendCmd)
}

// RecommendResponse is the response for the recommend command.
type RecommendResponse struct {
	UserID    string        `json:"user_id"`
	Interests string        `json:"interests"`
	Results   []PaperResult `json:"results"`
	Total     int           `json:"total"`
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <user-id-or-email>",
	Short: "Recommend papers from a user's interests",
	Long: `Search with the user's current interest window as the query.

A user with no interests yet gets the first papers in corpus order.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e := mustSetup()
	defer e.close()

	u := e.mustResolveUser(ctx, args[0])

	idx := e.mustOpenIndex(ctx)
	results, err := e.ranker(idx).Recommend(ctx, u.ID, e.query(cmd, ""))
	exitOnError(err, "recommending")

	resp := RecommendResponse{
		UserID:    u.ID,
		Interests: u.Interests,
		Results:   toPaperResults(results),
		Total:     len(results),
	}

	if humanOutput {
		fmt.Printf("Recommendations for %s (interests: %q)\n\n", u.Email, u.Interests)
		printResultsHuman(resp.Results)
	} else {
		outputJSON(resp)
	}
	return nil
}
