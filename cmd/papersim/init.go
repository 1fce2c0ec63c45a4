package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/papersim/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a papersim repository in the current directory",
	Long: `Create the .papersim directory with a default config.yml and an empty
database. Running init in an existing repository leaves config.yml alone.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	cfg, err := config.Init(cwd)
	if err != nil {
		exitWithError(ExitConfigError, "initializing repository: %v", err)
	}

	db := mustOpenDatabase(cwd, cfg)
	db.Close()

	if humanOutput {
		fmt.Printf("Initialized papersim repository in %s\n", config.RepoPath(cwd))
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: config.RepoPath(cwd)})
	}
	return nil
}
