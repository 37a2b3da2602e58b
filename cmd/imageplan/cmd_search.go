package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/komiyamma/imageplan/internal/docrepo"
	"github.com/komiyamma/imageplan/internal/search"
)

var (
	searchDocument string
	searchLimit    int
	historyLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search [terms...]",
	Short: "Search ledger prompts, anchors and names",
	Long: `Queries Meilisearch when configured and healthy, then the PostgreSQL
mirror, then the local ledger.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		resp, err := e.search.Search(cmd.Context(), search.Query{
			Text:     strings.Join(args, " "),
			Document: searchDocument,
			Limit:    searchLimit,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the ledger into PostgreSQL and the search index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(cfg.DatabaseURL) == "" && strings.TrimSpace(cfg.MeiliURL) == "" {
			return fmt.Errorf("nothing to sync: set database_url or meili_url")
		}
		e, err := newEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		n, err := e.service.Sync(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]int{"entries": n})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [document]",
	Short: "List the commits that touched a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := docrepo.NewGit(cfg.DocRoot, cfg.DocsDir, cfg.GitAuthor)
		commits, err := repo.History(args[0], historyLimit)
		if err != nil {
			return err
		}
		logger.Debug("history loaded", zap.String("document", args[0]), zap.Int("commits", len(commits)))
		return printJSON(cmd.OutOrStdout(), commits)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchDocument, "doc", "", "Only return entries of this source document")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of results")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of commits")
}
