package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/komiyamma/imageplan/internal/ledger"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Drop ledger entries already embedded in their documents and renumber",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		report, err := e.service.Compact(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Keep the first ledger row of every image name",
	Args:  cobra.NoArgs,
	RunE: maintenance(func(ctx context.Context, e *env) (ledger.MaintenanceReport, error) {
		return e.service.Dedupe(ctx)
	}),
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Remove header lines repeated inside the ledger table",
	Args:  cobra.NoArgs,
	RunE: maintenance(func(ctx context.Context, e *env) (ledger.MaintenanceReport, error) {
		return e.service.Repair(ctx)
	}),
}

var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Order ledger rows by ID",
	Args:  cobra.NoArgs,
	RunE: maintenance(func(ctx context.Context, e *env) (ledger.MaintenanceReport, error) {
		return e.service.Sort(ctx)
	}),
}

var fixPathsPrefix string

var fixPathsCmd = &cobra.Command{
	Use:   "fix-paths",
	Short: "Prefix bare source document names in the ledger",
	Args:  cobra.NoArgs,
	RunE: maintenance(func(ctx context.Context, e *env) (ledger.MaintenanceReport, error) {
		return e.service.FixPaths(ctx, fixPathsPrefix)
	}),
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Report image names referenced by more than one document or ledger row",
	Long: `Scans every markdown document under the docs dir. Exits non-zero when
an image is referenced by several documents or planned by several ledger
rows; repeats inside one document are reported as warnings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		report, err := e.service.Validate(cmd.Context())
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if report.Failed() {
			return errFailed
		}
		return nil
	},
}

func init() {
	fixPathsCmd.Flags().StringVar(&fixPathsPrefix, "prefix", "", "Prefix to add (default: path_prefix from config)")
}

func maintenance(pass func(context.Context, *env) (ledger.MaintenanceReport, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		report, err := pass(cmd.Context(), e)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	}
}
