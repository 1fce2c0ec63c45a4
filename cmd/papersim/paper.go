package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matsen/papersim/internal/reference"
)

var (
	paperID       string
	paperTitle    string
	paperURL      string
	paperAbstract string
	paperAuthors  string
	paperAuthor   string
)

func init() {
	rootCmd.AddCommand(paperCmd)
	paperCmd.AddCommand(paperAddCmd)
	paperCmd.AddCommand(paperGetCmd)
	paperCmd.AddCommand(paperListCmd)

	paperAddCmd.Flags().StringVar(&paperID, "id", "", "Paper ID (default: random UUID)")
	paperAddCmd.Flags().StringVar(&paperTitle, "title", "", "Paper title")
	paperAddCmd.Flags().StringVar(&paperURL, "url", "", "Paper URL")
	paperAddCmd.Flags().StringVar(&paperAbstract, "abstract", "", "Paper abstract")
	paperAddCmd.Flags().StringVar(&paperAuthors, "authors", "", "Author list as free text")
	paperAddCmd.MarkFlagRequired("title")

	paperListCmd.Flags().StringVarP(&paperAuthor, "author", "a", "", "Only papers whose authors contain this text")
}

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Manage papers in the corpus",
}

var paperAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a paper",
	Long: `Add a paper to the corpus, or update it if the ID already exists.

The paper becomes searchable after 'papersim index build'.`,
	Args: cobra.NoArgs,
	RunE: runPaperAdd,
}

func runPaperAdd(cmd *cobra.Command, args []string) error {
	e := mustSetup()
	defer e.close()

	if strings.TrimSpace(paperTitle) == "" {
		exitWithError(ExitDataError, "title must not be empty")
	}

	p := reference.Paper{
		ID:       paperID,
		Title:    paperTitle,
		URL:      paperURL,
		Abstract: paperAbstract,
		Authors:  paperAuthors,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	exitOnError(e.db.AddPaper(context.Background(), p), "adding paper")

	if humanOutput {
		fmt.Printf("Added paper %s\n", p.ID)
		fmt.Println("Run 'papersim index build' to make it searchable.")
	} else {
		outputJSON(p)
	}
	return nil
}

var paperGetCmd = &cobra.Command{
	Use:   "get <paper-id>",
	Short: "Show a paper",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaperGet,
}

func runPaperGet(cmd *cobra.Command, args []string) error {
	e := mustSetup()
	defer e.close()

	p, err := e.db.GetPaper(context.Background(), args[0])
	exitOnError(err, "getting paper")

	if humanOutput {
		printPaperHuman(*p)
	} else {
		outputJSON(p)
	}
	return nil
}

// PaperListResponse is the response for the paper list command.
type PaperListResponse struct {
	Papers []reference.Paper `json:"papers"`
	Total  int               `json:"total"`
}

var paperListCmd = &cobra.Command{
	Use:   "list",
	Short: "List papers in corpus order",
	Args:  cobra.NoArgs,
	RunE:  runPaperList,
}

func runPaperList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e := mustSetup()
	defer e.close()

	var (
		papers []reference.Paper
		err    error
	)
	if paperAuthor != "" {
		papers, err = e.db.PapersByAuthor(ctx, paperAuthor)
	} else {
		papers, err = e.db.ListPapers(ctx)
	}
	exitOnError(err, "listing papers")

	if papers == nil {
		papers = []reference.Paper{}
	}

	if humanOutput {
		for _, p := range papers {
			fmt.Printf("%-36s  %s\n", p.ID, truncateString(p.Title, SearchTitleMaxLen))
		}
		fmt.Printf("\n%d papers\n", len(papers))
	} else {
		outputJSON(PaperListResponse{Papers: papers, Total: len(papers)})
	}
	return nil
}
