package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/papersim/internal/search"
)

var (
	searchAuthor     string
	searchMinResults int
	searchThreshold  float64
	searchUser       string
)

func init() {
	rootCmd.AddCommand(searchCmd)
	addQueryFlags(searchCmd)
	searchCmd.Flags().StringVarP(&searchUser, "user", "u", "", "Record the search in this user's interests (ID or email)")

	addQueryFlags(recommendCmd)
}

// addQueryFlags registers the ranking flags shared by search and recommend.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&searchAuthor, "author", "a", "", "Only keep papers whose authors contain this text")
	cmd.Flags().IntVarP(&searchMinResults, "min-results", "n", search.DefaultMinResults, "Backfill below the threshold up to this many results")
	cmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", search.DefaultThreshold, "Minimum similarity for a high-similarity match")
}

// SearchResponse is the response for the search command.
type SearchResponse struct {
	Query      string        `json:"query"`
	Author     string        `json:"author,omitempty"`
	Threshold  float64       `json:"threshold"`
	MinResults int           `json:"min_results"`
	Results    []PaperResult `json:"results"`
	Total      int           `json:"total"`
	Interests  *string       `json:"interests,omitempty"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank papers by similarity to a query",
	Long: `Rank papers by TF-IDF cosine similarity to the query.

Every paper scoring at least --threshold is returned, best first. If fewer
than --min-results clear the threshold, the next best papers are added
(marked * in --human output). --author filters the selected papers and
never adds more.

With --user, keywords from the query are added to that user's interests.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e := mustSetup()
	defer e.close()

	q := e.query(cmd, strings.Join(args, " "))

	idx := e.mustOpenIndex(ctx)
	results, err := e.ranker(idx).Search(ctx, q)
	exitOnError(err, "searching")

	resp := SearchResponse{
		Query:      q.Terms,
		Author:     q.Author,
		Threshold:  q.Threshold,
		MinResults: q.MinResults,
		Results:    toPaperResults(results),
		Total:      len(results),
	}

	if searchUser != "" {
		u := e.mustResolveUser(ctx, searchUser)
		_, err := e.profiles().RecordSearch(ctx, u.ID, q.Terms)
		if err != nil {
			e.logger.Sugar().Warnf("not recording search for %s: %v", u.ID, err)
		} else {
			updated := e.mustResolveUser(ctx, u.ID)
			resp.Interests = &updated.Interests
		}
	}

	if humanOutput {
		fmt.Printf("Found %d papers for %q\n\n", resp.Total, resp.Query)
		printResultsHuman(resp.Results)
		if resp.Interests != nil {
			fmt.Printf("Interests: %s\n", *resp.Interests)
		}
	} else {
		outputJSON(resp)
	}
	return nil
}
