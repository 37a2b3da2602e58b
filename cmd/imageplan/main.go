package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/komiyamma/imageplan/internal/config"
	"github.com/komiyamma/imageplan/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logFormat  string

	ledgerPath  string
	docRoot     string
	policy      string
	anchorMode  string
	position    string
	globalScope bool
	gitCommit   bool

	cfg    config.Config
	logger *zap.Logger
)

// errFailed marks a command that ran to completion but must exit non-zero.
var errFailed = errors.New("completed with failures")

var rootCmd = &cobra.Command{
	Use:   "imageplan",
	Short: "Plan and insert image references into markdown documents",
	Long: `imageplan keeps a markdown ledger of planned images and inserts a
reference to each image next to an anchor in its source document.

A request is applied at most once: rerunning it after success is a no-op,
and a name already used in the document, the ledger or (with --global)
anywhere in the docs tree is skipped or renamed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose, logFormat)
		if err != nil {
			return err
		}
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Load()
		}
		applyFlagOverrides(cmd)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("ledger") {
		cfg.LedgerPath = ledgerPath
	}
	if flags.Changed("root") {
		cfg.DocRoot = docRoot
	}
	if flags.Changed("policy") {
		cfg.DuplicatePolicy = policy
	}
	if flags.Changed("anchor-mode") {
		cfg.AnchorMode = anchorMode
	}
	if flags.Changed("position") {
		cfg.Position = position
	}
	if flags.Changed("global") {
		cfg.GlobalScope = globalScope
	}
	if flags.Changed("git") {
		cfg.GitCommit = gitCommit
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file (env IMAGEPLAN_* still applies on top)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&logFormat, "log-format", "json", "Log encoding: json or console")
	flags.StringVar(&ledgerPath, "ledger", "", "Ledger file (relative paths resolve against --root)")
	flags.StringVar(&docRoot, "root", "", "Document root")
	flags.StringVar(&policy, "policy", "", "Duplicate policy: skip or rename")
	flags.StringVar(&anchorMode, "anchor-mode", "", "Anchor ambiguity handling: strict or lenient")
	flags.StringVar(&position, "position", "", "Insert after or before the anchor")
	flags.BoolVar(&globalScope, "global", false, "Check names against every document under the docs dir")
	flags.BoolVar(&gitCommit, "git", false, "Commit every document write to the git repository at --root")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(sortCmd)
	rootCmd.AddCommand(fixPathsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
