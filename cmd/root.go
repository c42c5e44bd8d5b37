package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/kartoza/attention-is-key/internal/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "attention-is-key",
	Short: "Attention is Key visualizes transformer attention over song lyrics",
	Long: `Attention is Key analyzes lyrics with a transformer attention engine and
renders per-layer attention heatmaps and, for a target phrase, a chart of how
attention on that phrase evolves across the song.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(v string) {
	version = v
	rootCmd.Version = v
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().String("engine", config.EngineMock, "Analysis engine: mock, local or remote")
	rootCmd.PersistentFlags().String("backend-url", "", "Inference backend base URL (remote engine)")
	rootCmd.PersistentFlags().Int64("seed", 0, "Seed for the mock and local engines")
	rootCmd.PersistentFlags().Bool("case-insensitive", false, "Match the target phrase ignoring case")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Analysis timeout, overriding the configured value (0 disables)")
}

// loadConfig builds the configuration from defaults, saved user settings,
// an optional file, ATTN_* environment variables and finally any flags set
// on the command line
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	cfg.Version = version

	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Warning: could not load settings: %v", err)
	}
	cfg.CaseInsensitive = settings.CaseInsensitive

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	config.ApplyEnv(&cfg)

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("backend-url") {
		cfg.BackendURL, _ = flags.GetString("backend-url")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("case-insensitive") {
		cfg.CaseInsensitive, _ = flags.GetBool("case-insensitive")
	}
	if flags.Changed("timeout") {
		cfg.AnalysisTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Lookup("data-dir") != nil && flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Lookup("mock-latency") != nil && flags.Changed("mock-latency") {
		cfg.MockLatency, _ = flags.GetDuration("mock-latency")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
