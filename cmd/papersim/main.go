// Package main provides the papersim CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/papersim/internal/config"
	"github.com/matsen/papersim/internal/keyword"
	"github.com/matsen/papersim/internal/logger"
	"github.com/matsen/papersim/internal/metrics"
	"github.com/matsen/papersim/internal/profile"
	"github.com/matsen/papersim/internal/search"
	"github.com/matsen/papersim/internal/storage"
	"github.com/matsen/papersim/internal/vectors"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	// metricsFile, if set, receives a Prometheus text dump when the command exits
	metricsFile string

	registry = prometheus.NewRegistry()
)

func main() {
	err := rootCmd.Execute()
	writeMetrics()
	if err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "papersim",
	Short: "Content-based paper search and recommendation",
	Long: `papersim keeps a TF-IDF vector index of a paper corpus, ranks papers
against free-text queries, and learns each user's interests from their
searches, paper views and uploaded PDFs.

Papers and users live in SQLite under .papersim/cache. All commands output
JSON by default; pass --human for readable text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Optional .env with PAPERSIM_* overrides
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	rootCmd.Version = Version

	if err := metrics.Register(registry); err != nil {
		panic(err)
	}
}

// writeMetrics dumps collected metrics when --metrics-file is set.
func writeMetrics() {
	if metricsFile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(metricsFile, registry); err != nil {
		fmt.Fprintf(os.Stderr, "warning: writing metrics: %v\n", err)
	}
}

// mustFindRepository finds the repository root, exits on error.
func mustFindRepository() string {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	root, err := config.Locate(cwd)
	if err != nil {
		exitWithError(ExitConfigError, "%v\n\nRun 'papersim init' to create one, or set %s.", err, config.EnvRoot)
	}
	return root
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig(repoRoot string) *config.Config {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustOpenDatabase opens the SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(repoRoot string, cfg *config.Config) *storage.DB {
	db, err := storage.OpenDB(cfg.ResolveDBPath(repoRoot))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// mustLogger builds the diagnostic logger, exits on error.
func mustLogger(cfg *config.Config) *zap.Logger {
	l, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		exitWithError(ExitConfigError, "configuring logger: %v", err)
	}
	return l
}

// env bundles everything a command needs.
type env struct {
	root   string
	cfg    *config.Config
	db     *storage.DB
	logger *zap.Logger
}

// mustSetup locates the repository and opens its database.
// The caller is responsible for calling close().
func mustSetup() *env {
	root := mustFindRepository()
	cfg := mustLoadConfig(root)
	return &env{
		root:   root,
		cfg:    cfg,
		db:     mustOpenDatabase(root, cfg),
		logger: mustLogger(cfg),
	}
}

func (e *env) close() {
	_ = e.logger.Sync()
	e.db.Close()
}

// index returns an unloaded vector index bound to the configured snapshot.
func (e *env) index(opts ...vectors.Option) *vectors.Index {
	opts = append([]vectors.Option{vectors.WithLogger(e.logger)}, opts...)
	return vectors.New(e.cfg.ResolveSnapshotPath(e.root), e.db, opts...)
}

// mustOpenIndex loads the vector snapshot, building it if missing or
// unreadable, exits on error.
func (e *env) mustOpenIndex(ctx context.Context) *vectors.Index {
	idx := e.index()
	if err := idx.LoadOrCreate(ctx); err != nil {
		if errors.Is(err, vectors.ErrEmptyCorpus) {
			exitWithError(ExitDataError, "The corpus is empty\n\nAdd papers with 'papersim import <papers.jsonl>' or 'papersim paper add'.")
		}
		exitWithError(ExitError, "loading vector index: %v", err)
	}
	return idx
}

// ranker builds a search ranker over idx and the database.
func (e *env) ranker(idx *vectors.Index) *search.Ranker {
	return search.NewRanker(idx, e.db,
		search.WithUsers(e.db),
		search.WithLogger(e.logger),
	)
}

// profiles builds the interest profile service.
func (e *env) profiles() *profile.Service {
	return profile.NewService(e.db, keyword.NewYAKE(), profile.WithLogger(e.logger))
}

// query builds a search query from configured defaults and flag overrides.
func (e *env) query(cmd *cobra.Command, terms string) search.Query {
	q := search.Query{
		Terms:      terms,
		Author:     searchAuthor,
		MinResults: e.cfg.MinResults,
		Threshold:  e.cfg.Threshold,
	}
	if cmd.Flags().Changed("min-results") {
		q.MinResults = searchMinResults
	}
	if cmd.Flags().Changed("threshold") {
		q.Threshold = searchThreshold
	}
	return q
}
