package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/komiyamma/imageplan/internal/export"
	"github.com/komiyamma/imageplan/internal/ledger"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Publish one sub-ledger per document family",
	Long: `Groups ledger rows by the family key the family pattern extracts from
the source document and writes image_generation_plan.<key>.md for each
group, to the split output dir or the configured bucket.`,
	Args: cobra.NoArgs,
	RunE: runSplit,
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Write one prompt file per ledger entry",
	Long: `Writes <image stem>.txt for every entry with a prompt. The prompt
template file, when configured, has its {{INSERT}} placeholder replaced by
the entry's prompt. Existing files are left alone.`,
	Args: cobra.NoArgs,
	RunE: runPrompts,
}

func runSplit(cmd *cobra.Command, args []string) error {
	pattern := ledger.DefaultFamilyPattern
	if cfg.FamilyPattern != "" {
		compiled, err := regexp.Compile(cfg.FamilyPattern)
		if err != nil {
			return fmt.Errorf("family pattern: %w", err)
		}
		pattern = compiled
	}

	e, err := newEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	l, err := e.service.Ledger()
	if err != nil {
		return err
	}
	sink, err := newSink(cmd.Context(), cfg.SplitOutputDir, "ledgers")
	if err != nil {
		return err
	}
	report, err := export.PublishSplit(cmd.Context(), l, pattern, sink)
	if err != nil {
		return err
	}
	logger.Info("sub-ledgers published", zap.Int("written", len(report.Written)))
	return printJSON(cmd.OutOrStdout(), report)
}

func runPrompts(cmd *cobra.Command, args []string) error {
	template := export.Placeholder
	if cfg.PromptTemplate != "" {
		data, err := os.ReadFile(underRoot(cfg.PromptTemplate))
		if err != nil {
			return fmt.Errorf("read prompt template: %w", err)
		}
		template = string(data)
	}

	e, err := newEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	entries, err := e.service.Entries(cmd.Context())
	if err != nil {
		return err
	}
	sink, err := newSink(cmd.Context(), cfg.PromptOutputDir, "prompts")
	if err != nil {
		return err
	}
	report, err := export.GeneratePrompts(cmd.Context(), entries, template, sink)
	if err != nil {
		return err
	}
	logger.Info("prompt files generated",
		zap.Int("written", len(report.Written)),
		zap.Int("skipped", len(report.Skipped)),
	)
	return printJSON(cmd.OutOrStdout(), report)
}
