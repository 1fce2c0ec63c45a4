package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var importRefresh bool

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)

	importCmd.Flags().BoolVar(&importRefresh, "refresh", true, "Rebuild the vector index after importing")
}

var importCmd = &cobra.Command{
	Use:   "import <papers.jsonl>",
	Short: "Import papers from a JSONL file",
	Long: `Import papers from a JSONL file, one JSON object per line with
id, title, url, abstract and authors. Papers without an id get a random one;
papers whose id already exists are updated in place.

New papers only become searchable after the vector index is rebuilt, which
import does by default.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e := mustSetup()
	defer e.close()

	n, err := e.db.ImportJSONL(ctx, args[0])
	exitOnError(err, "importing papers")

	if importRefresh && n > 0 {
		exitOnError(e.index().Refresh(ctx), "refreshing vector index")
	}

	if humanOutput {
		fmt.Printf("Imported %d papers from %s\n", n, args[0])
	} else {
		outputJSON(StatusResponse{Status: "imported", Path: args[0], Count: n})
	}
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export <papers.jsonl>",
	Short: "Export the corpus to a JSONL file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	e := mustSetup()
	defer e.close()

	n, err := e.db.ExportJSONL(context.Background(), args[0])
	exitOnError(err, "exporting papers")

	if humanOutput {
		fmt.Printf("Exported %d papers to %s\n", n, args[0])
	} else {
		outputJSON(StatusResponse{Status: "exported", Path: args[0], Count: n})
	}
	return nil
}
