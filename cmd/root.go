package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/csvreport-cli/internal/config"
	"github.com/KaramelBytes/csvreport-cli/internal/logging"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logFormat string

	// Loaded configuration
	cfg *cfgpkg.Global
	// Diagnostics logger; progress messages go to stdout separately.
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "csvreport",
	Short: "csvreport: summarize and clean tabular data files",
	Long: `csvreport loads a CSV, TSV or XLSX file, writes a text report with its shape,
column types, head and tail rows, summary statistics, unique and missing value
counts, and can save a copy with every incomplete row dropped. The same engine
is available in the browser through "csvreport serve".`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.csvreport/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text | json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = defaultConfig()
	}
	cfg = c

	if rootCmd.PersistentFlags().Changed("log-format") && logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	logger = newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
}

// ensureConfig loads configuration for commands run without Execute (tests).
func ensureConfig() *cfgpkg.Global {
	if cfg == nil {
		loadConfig()
	}
	return cfg
}

func newLogger(c *cfgpkg.Global, w io.Writer) *slog.Logger {
	return logging.New(c.LogLevel, c.LogFormat, w)
}

// defaultConfig mirrors the config defaults for when loading fails.
func defaultConfig() *cfgpkg.Global {
	return &cfgpkg.Global{
		ReportPath:    "csv_analysis_report.txt",
		CleanedPath:   "cleaned_output.csv",
		PreviewRows:   5,
		ListenAddr:    "127.0.0.1:8080",
		UploadDir:     os.TempDir(),
		MaxUploadMB:   32,
		SessionTTLMin: 30,
		UploadRPS:     2,
		UploadBurst:   5,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}
