package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configKeys are the settings that may be stored in the config file.
var configKeys = []string{
	"assembly",
	"base_url",
	"cache",
	"credentials",
	"diseases",
	"http_timeout",
	"info_key",
	"max_articles",
	"no_cache",
	"poll_interval",
	"query_timeout",
	"retries",
	"token",
	"verbose",
	"workers",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-mm configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.vibe-mm.yaml.",
		Example: `  vibe-mm config                       # show effective config
  vibe-mm config set assembly GRCh37   # default to GRCh37
  vibe-mm config get workers           # get a value`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd.OutOrStdout(), args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd.OutOrStdout(), args[0])
		},
	}
}

func normalizeKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.ToLower(key), "-", "_")
	if !slices.Contains(configKeys, key) {
		return "", &usageError{fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(configKeys, ", "))}
	}
	return key, nil
}

func runConfigShow(w io.Writer) error {
	all := make(map[string]any)
	for _, key := range configKeys {
		if val := viper.Get(key); val != nil {
			all[key] = val
		}
	}
	if tok, ok := all["token"].(string); ok && tok != "" {
		all["token"] = maskToken(tok)
	}
	if len(all) == 0 {
		fmt.Fprintln(w, "# No configuration set. Config file: ~/.vibe-mm.yaml")
		return nil
	}

	// yaml.v3 sorts map keys
	out, err := yaml.Marshal(all)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func runConfigSet(w io.Writer, key, value string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".vibe-mm.yaml")
	}

	// Write only what the file already holds plus the new key, never flag
	// defaults or environment values.
	file := viper.New()
	file.SetConfigFile(cfgFile)
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse boolean-like values
	switch value {
	case "true", "yes", "on":
		file.Set(key, true)
	case "false", "no", "off":
		file.Set(key, false)
	default:
		file.Set(key, value)
	}

	if err := file.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if key == "token" {
		value = maskToken(value)
	}
	fmt.Fprintf(w, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(w io.Writer, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	if s, ok := val.(string); ok && key == "token" {
		val = maskToken(s)
	}
	fmt.Fprintln(w, val)
	return nil
}

// maskToken keeps the last four characters of an API token.
func maskToken(tok string) string {
	if len(tok) <= 4 {
		return strings.Repeat("*", len(tok))
	}
	return strings.Repeat("*", len(tok)-4) + tok[len(tok)-4:]
}
