// Package main provides the vibe-mm command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-mm/internal/mastermind"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// usageError marks errors caused by bad command-line usage.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// usageArgs wraps a cobra argument validator so its errors map to ExitUsage.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isUsageError(err) {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func isUsageError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "required flag") ||
		strings.HasPrefix(msg, "if any flags in the group") ||
		strings.HasPrefix(msg, "at least one of the flags in the group")
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "vibe-mm",
		Short: "Mastermind literature evidence for VCF files",
		Long: `vibe-mm annotates VCF records with literature evidence from the
Mastermind genomic search engine and queries gene and variant citation data.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.vibe-mm.yaml)")
	pf.String("token", "", "Mastermind API token (default: from --credentials)")
	pf.String("credentials", mastermind.DefaultCredentialsPath(), "YAML file holding the API token")
	pf.String("base-url", mastermind.DefaultBaseURL, "Mastermind API base URL")
	pf.String("assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	pf.Duration("http-timeout", mastermind.DefaultTimeout, "Timeout of a single HTTP request")
	pf.Int("retries", mastermind.DefaultRetries, "Retries for transient API failures (-1 disables)")
	pf.BoolP("verbose", "v", false, "Verbose (debug) logging")

	bindFlags(root, map[string]string{
		"token":        "token",
		"credentials":  "credentials",
		"base_url":     "base-url",
		"assembly":     "assembly",
		"http_timeout": "http-timeout",
		"retries":      "retries",
		"verbose":      "verbose",
	})

	root.AddCommand(newAnnotateCmd())
	root.AddCommand(newSubmitCmd())
	root.AddCommand(newCountsCmd())
	root.AddCommand(newGeneVariantsCmd())
	root.AddCommand(newGeneCountsCmd())
	root.AddCommand(newFusionCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// bindFlags binds viper keys to persistent or local flags of cmd. Local
// flags share the global viper instance, so commands bind them in PreRunE,
// once it is known which command runs.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			f = cmd.PersistentFlags().Lookup(name)
		}
		if f == nil {
			panic("unknown flag " + name)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			panic(err)
		}
	}
}

// initConfig reads the config file and environment. A missing default
// config file is not an error.
func initConfig(cfgFile string) error {
	viper.SetEnvPrefix("VIBEMM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	viper.SetConfigFile(filepath.Join(home, ".vibe-mm.yaml"))
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// newLogger builds the CLI logger: console output on stderr, debug level
// when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vibe-mm version %s (%s) built %s\n", version, commit, date)
		},
	}
}
