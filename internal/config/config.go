// Package config handles repository layout and configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/matsen/papersim/internal/search"
)

const (
	RepoDir      = ".papersim"
	ConfigFile   = "config.yml"
	CacheDir     = "cache"
	DBFile       = "papersim.db"
	SnapshotFile = "doc_vectors.gob"
)

// Environment variables consulted by Locate and ApplyEnv.
const (
	EnvRoot       = "PAPERSIM_ROOT"
	EnvThreshold  = "PAPERSIM_THRESHOLD"
	EnvMinResults = "PAPERSIM_MIN_RESULTS"
	EnvLogLevel   = "PAPERSIM_LOG_LEVEL"
)

// ErrNotRepository is returned when no .papersim directory can be found.
var ErrNotRepository = errors.New("not in a papersim repository (no .papersim directory found)")

// Config represents repository configuration stored in .papersim/config.yml.
// Relative paths are resolved against the repository root.
type Config struct {
	SnapshotPath string  `yaml:"snapshot_path,omitempty"` // Default: .papersim/cache/doc_vectors.gob
	DBPath       string  `yaml:"db_path,omitempty"`       // Default: .papersim/cache/papersim.db
	MinResults   int     `yaml:"min_results"`
	Threshold    float64 `yaml:"threshold"`
	LogLevel     string  `yaml:"log_level"`
	LogFormat    string  `yaml:"log_format,omitempty"` // console or json
	MaxPDFPages  int     `yaml:"max_pdf_pages"`        // 0 reads every page
}

// Default returns the configuration used when config.yml sets nothing.
func Default() *Config {
	return &Config{
		MinResults: search.DefaultMinResults,
		Threshold:  search.DefaultThreshold,
		LogLevel:   "info",
		LogFormat:  "console",
	}
}

// RepoPath returns the path to the .papersim directory from a root path.
func RepoPath(root string) string {
	return filepath.Join(root, RepoDir)
}

// ConfigPath returns the path to config.yml from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, RepoDir, ConfigFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, RepoDir, CacheDir)
}

// DBPath returns the default database path from a root path.
func DBPath(root string) string {
	return filepath.Join(root, RepoDir, CacheDir, DBFile)
}

// SnapshotPath returns the default vector snapshot path from a root path.
func SnapshotPath(root string) string {
	return filepath.Join(root, RepoDir, CacheDir, SnapshotFile)
}

// IsRepository checks if the given path contains a papersim repository.
func IsRepository(root string) bool {
	info, err := os.Stat(RepoPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a papersim repository.
// Returns the repository root path or ErrNotRepository.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNotRepository
		}
		abs = parent
	}
}

// Locate returns the repository root named by PAPERSIM_ROOT, or else the
// one found by walking up from start.
func Locate(start string) (string, error) {
	if root := os.Getenv(EnvRoot); root != "" {
		root = ExpandPath(root)
		if !IsRepository(root) {
			return "", fmt.Errorf("%w: %s=%s", ErrNotRepository, EnvRoot, root)
		}
		return filepath.Abs(root)
	}
	return FindRepository(start)
}

// Init creates the repository layout under root and writes a default
// config.yml if none exists.
func Init(root string) (*Config, error) {
	if err := os.MkdirAll(CachePath(root), 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", RepoDir, err)
	}
	if _, err := os.Stat(ConfigPath(root)); err == nil {
		return Load(root)
	}
	cfg := Default()
	if err := cfg.Save(root); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads configuration from the repository at the given root, applies
// environment overrides, and validates the result. A missing config.yml
// yields the defaults.
func Load(root string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ConfigPath(root))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to the repository at the given root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ApplyEnv overrides threshold, minimum results, and log level from the
// environment. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvThreshold, err)
		}
		c.Threshold = f
	}
	if v := getenv(EnvMinResults); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMinResults, err)
		}
		c.MinResults = n
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MinResults < 0 {
		return fmt.Errorf("min_results must be >= 0, got %d", c.MinResults)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0, 1], got %v", c.Threshold)
	}
	if c.MaxPDFPages < 0 {
		return fmt.Errorf("max_pdf_pages must be >= 0, got %d", c.MaxPDFPages)
	}
	return nil
}

// ResolveDBPath returns the database path for the repository at root.
func (c *Config) ResolveDBPath(root string) string {
	return resolve(root, c.DBPath, DBPath(root))
}

// ResolveSnapshotPath returns the vector snapshot path for the repository
// at root.
func (c *Config) ResolveSnapshotPath(root string) string {
	return resolve(root, c.SnapshotPath, SnapshotPath(root))
}

func resolve(root, configured, fallback string) string {
	if configured == "" {
		return fallback
	}
	p := ExpandPath(configured)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
