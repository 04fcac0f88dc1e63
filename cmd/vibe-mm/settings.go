package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-mm/internal/annotate"
	"github.com/inodb/vibe-mm/internal/duckdb"
	"github.com/inodb/vibe-mm/internal/mastermind"
)

// settings is the merged view of flags, environment (VIBEMM_*) and the
// config file.
type settings struct {
	Token        string        `mapstructure:"token"`
	Credentials  string        `mapstructure:"credentials"`
	BaseURL      string        `mapstructure:"base_url"`
	Assembly     string        `mapstructure:"assembly"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	Retries      int           `mapstructure:"retries"`
	Verbose      bool          `mapstructure:"verbose"`
	Cache        string        `mapstructure:"cache"`
	NoCache      bool          `mapstructure:"no_cache"`
	Workers      int           `mapstructure:"workers"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	InfoKey      string        `mapstructure:"info_key"`
	MaxArticles  int           `mapstructure:"max_articles"`
	Diseases     bool          `mapstructure:"diseases"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := viper.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decoding settings: %w", err)
	}
	return s, nil
}

func (s settings) assembly() (annotate.Assembly, error) {
	a, err := annotate.ParseAssembly(s.Assembly)
	if err != nil {
		return "", &usageError{err}
	}
	return a, nil
}

// token returns the API token from settings, or from the credentials file.
func (s settings) token() (string, error) {
	if s.Token != "" {
		return s.Token, nil
	}
	creds, err := mastermind.LoadCredentials(s.Credentials)
	if err != nil {
		return "", fmt.Errorf("no API token (use --token, VIBEMM_TOKEN or a credentials file): %w", err)
	}
	return creds.Token, nil
}

func newClient(s settings, logger *zap.Logger) (*mastermind.Client, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	assembly, err := s.assembly()
	if err != nil {
		return nil, err
	}
	return mastermind.New(mastermind.Config{
		BaseURL:      s.BaseURL,
		Token:        token,
		Assembly:     assembly,
		Timeout:      s.HTTPTimeout,
		Retries:      s.Retries,
		MaxArticles:  s.MaxArticles,
		Diseases:     s.Diseases,
		PollInterval: s.PollInterval,
	}, mastermind.WithLogger(logger))
}

// DefaultCachePath returns the default evidence cache location.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vibe-mm", "cache.duckdb")
}

// openStore opens the local DuckDB store, or returns nil when caching is
// disabled.
func openStore(s settings, logger *zap.Logger) (*duckdb.Store, error) {
	if s.NoCache || s.Cache == "" {
		return nil, nil
	}
	store, err := duckdb.Open(s.Cache)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", s.Cache, err)
	}
	logger.Debug("using evidence cache", zap.String("path", s.Cache))
	return store, nil
}

// setup loads settings and builds the logger shared by every command.
func setup() (settings, *zap.Logger, error) {
	s, err := loadSettings()
	if err != nil {
		return s, nil, err
	}
	logger, err := newLogger(s.Verbose)
	if err != nil {
		return s, nil, fmt.Errorf("creating logger: %w", err)
	}
	return s, logger, nil
}

// readGenes reads one gene symbol per line, skipping blank lines.
func readGenes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gene list: %w", err)
	}
	defer f.Close()

	var genes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if gene := strings.TrimSpace(scanner.Text()); gene != "" {
			genes = append(genes, gene)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading gene list: %w", err)
	}
	return genes, nil
}
