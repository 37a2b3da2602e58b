package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/komiyamma/imageplan/internal/app"
	"github.com/komiyamma/imageplan/internal/corpus"
	"github.com/komiyamma/imageplan/internal/docrepo"
	"github.com/komiyamma/imageplan/internal/export"
	"github.com/komiyamma/imageplan/internal/ledger"
	"github.com/komiyamma/imageplan/internal/search"
	"github.com/komiyamma/imageplan/internal/store"
)

// env is everything a command may need, built from cfg. Optional backends
// are nil when not configured.
type env struct {
	service *app.Service
	search  *search.Service
	git     *docrepo.Git
	closers []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// underRoot resolves p against the document root unless it is absolute.
func underRoot(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.DocRoot, p)
}

func newEnv(ctx context.Context) (*env, error) {
	e := &env{}

	var docs docrepo.Repository
	if cfg.GitCommit {
		e.git = docrepo.NewGit(cfg.DocRoot, cfg.DocsDir, cfg.GitAuthor)
		if err := e.git.EnsureRepo(); err != nil {
			return nil, fmt.Errorf("open git repository: %w", err)
		}
		docs = e.git
	} else {
		docs = docrepo.NewFS(cfg.DocRoot, cfg.DocsDir)
	}

	service, err := app.New(cfg, ledger.NewFile(underRoot(cfg.LedgerPath)), docs, logger)
	if err != nil {
		return nil, err
	}
	e.service = service

	var cache corpus.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := corpus.NewRedisCache(cfg.RedisURL, cfg.CorpusCacheTTL)
		if err != nil {
			logger.Warn("redis unavailable; corpus cache disabled", zap.Error(err))
		} else {
			cache = redisCache
			e.closers = append(e.closers, func() { _ = redisCache.Close() })
		}
	}
	service.UseCorpus(corpus.NewScanner(cache, logger))

	var pgfts *search.PgFTS
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		e.closers = append(e.closers, func() { _ = db.Close() })
		applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", zap.Strings("versions", applied))
		}
		service.UseRecorder(store.NewPostgresStore(db))
		pgfts = search.NewPgFTS(db)
	}

	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, cfg.MeiliIndex, logger)
		e.closers = append(e.closers, meili.Close)
	}
	e.search = search.NewService(meili, pgfts, service.Entries, logger)
	if meili != nil {
		service.UseIndexer(e.search)
	}
	return e, nil
}

// newSink returns the minio sink when an endpoint is configured and a
// directory sink otherwise. prefix names the bucket folder.
func newSink(ctx context.Context, dir, prefix string) (export.Sink, error) {
	if strings.TrimSpace(cfg.MinioEndpoint) == "" {
		return export.NewFSSink(underRoot(dir)), nil
	}
	return export.NewMinioSink(ctx, export.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		Prefix:    prefix,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
