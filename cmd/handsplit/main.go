// Package main is the entry point for the handsplit CLI
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/james-see/handsplit/internal/config"
	"github.com/james-see/handsplit/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	outputFile   string
	program      int
	workers      int
	historyLimit int
	jsonOutput   bool
	serverPort   int
)

// loaded in PersistentPreRunE
var (
	cfg    *config.Config
	logger *logging.Logger
)

func main() {
	// ctrl-c stops a batch before files that have not started yet
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "handsplit",
	Short: "Split piano MIDI performances into right-hand and left-hand tracks",
	Long: `handsplit reads a transcribed piano performance (Standard MIDI File) and
writes two split versions of it: one divided at a fixed pitch and one divided
around two pitch centroids found by clustering the notes that were played.

Each output has three tracks: meta events, right hand, left hand.

Examples:
  handsplit split performance.mid
  handsplit split --split-point 64 a.mid b.mid
  handsplit batch ./transcriptions --workers 8
  handsplit analyze performance.mid --json
  handsplit instrument performance.mid --program 65
  handsplit history
  handsplit tui
  handsplit serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

var splitCmd = &cobra.Command{
	Use:   "split <input.mid>...",
	Short: "Split MIDI files into _simple and _smart versions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSplit,
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Split every MIDI file under a directory",
	Long: `Walks a directory tree, splitting every MIDI file found in parallel.
Files that already end in the split suffixes are skipped. A file that fails
is reported and the rest of the batch continues.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input.mid>",
	Short: "Show pitch range and pitch centroids without writing files",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var instrumentCmd = &cobra.Command{
	Use:   "instrument <input.mid>",
	Short: "Switch every channel to one General MIDI program",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstrument,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent splits from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/handsplit/config.yaml)")
	rootCmd.PersistentFlags().Int("split-point", 60, "Pitch at or above which notes go to the right hand")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("output-dir", "", "Directory for split files (default: next to the source)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("split.split_point", rootCmd.PersistentFlags().Lookup("split-point"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("split.output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))

	// batch command
	batchCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Files split in parallel (default from config)")

	// analyze command
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the analysis as JSON")

	// instrument command
	instrumentCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path (default: <name>_sax.mid)")
	instrumentCmd.Flags().IntVar(&program, "program", 65, "General MIDI program number 0-127 (65 = Alto Sax)")

	// history command
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (0 = all)")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (default from config)")

	// Add commands
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(instrumentCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HANDSPLIT")
	// e.g. HANDSPLIT_SPLIT_SPLIT_POINT for split.split_point
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// setup loads the validated config and opens the logger
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "file", used)
	}
	return nil
}
