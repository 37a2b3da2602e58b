package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LedgerPath string `yaml:"ledger_path"`
	DocRoot    string `yaml:"doc_root"`
	DocsDir    string `yaml:"docs_dir"`
	PictureDir string `yaml:"picture_dir"`

	DuplicatePolicy string `yaml:"duplicate_policy"`
	AnchorMode      string `yaml:"anchor_mode"`
	Position        string `yaml:"position"`
	GlobalScope     bool   `yaml:"global_scope"`
	ResumePlanned   bool   `yaml:"resume_planned"`
	MarkupTemplate  string `yaml:"markup_template"`

	FamilyPattern   string `yaml:"family_pattern"`
	SplitOutputDir  string `yaml:"split_output_dir"`
	PromptTemplate  string `yaml:"prompt_template"`
	PromptOutputDir string `yaml:"prompt_output_dir"`
	PathPrefix      string `yaml:"path_prefix"`

	GitCommit bool   `yaml:"git_commit"`
	GitAuthor string `yaml:"git_author"`

	// Redis caches corpus scans; empty disables the cache.
	RedisURL       string        `yaml:"redis_url"`
	CorpusCacheTTL time.Duration `yaml:"corpus_cache_ttl"`

	MeiliURL       string `yaml:"meili_url"`
	MeiliMasterKey string `yaml:"meili_master_key"`
	MeiliIndex     string `yaml:"meili_index"`

	DatabaseURL   string `yaml:"database_url"`
	MigrationsDir string `yaml:"migrations_dir"`

	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioBucket    string `yaml:"minio_bucket"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`
}

// Defaults mirrors the layout the tools were written against: documents
// under docs/, the ledger and generated images under docs/picture/.
func Defaults() Config {
	return Config{
		LedgerPath:      "docs/picture/image_generation_plan.md",
		DocRoot:         ".",
		DocsDir:         "docs",
		PictureDir:      "./picture",
		DuplicatePolicy: "skip",
		AnchorMode:      "strict",
		Position:        "after",
		ResumePlanned:   true,
		MarkupTemplate:  "![{description}]({link})",
		FamilyPattern:   `([A-Za-z0-9]+_(?:cs|ts))_`,
		SplitOutputDir:  "docs/picture",
		PromptTemplate:  "",
		PromptOutputDir: "docs/picture/prompts",
		PathPrefix:      "docs/",
		GitAuthor:       "imageplan",
		CorpusCacheTTL:  7 * 24 * time.Hour,
		MeiliIndex:      "image_plan_entries",
		MigrationsDir:   "./db/migrations",
		MinioBucket:     "imageplan",
	}
}

// Load returns the defaults overridden by IMAGEPLAN_* environment variables.
func Load() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

// LoadFile overlays a YAML file on the defaults before applying the
// environment. A missing file at an empty path is not an error.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s not found", path)
			}
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LedgerPath = getenv("IMAGEPLAN_LEDGER", cfg.LedgerPath)
	cfg.DocRoot = getenv("IMAGEPLAN_DOC_ROOT", cfg.DocRoot)
	cfg.DocsDir = getenv("IMAGEPLAN_DOCS_DIR", cfg.DocsDir)
	cfg.PictureDir = getenv("IMAGEPLAN_PICTURE_DIR", cfg.PictureDir)
	cfg.DuplicatePolicy = getenv("IMAGEPLAN_DUPLICATE_POLICY", cfg.DuplicatePolicy)
	cfg.AnchorMode = getenv("IMAGEPLAN_ANCHOR_MODE", cfg.AnchorMode)
	cfg.Position = getenv("IMAGEPLAN_POSITION", cfg.Position)
	cfg.GlobalScope = getenvBool("IMAGEPLAN_GLOBAL_SCOPE", cfg.GlobalScope)
	cfg.ResumePlanned = getenvBool("IMAGEPLAN_RESUME_PLANNED", cfg.ResumePlanned)
	cfg.MarkupTemplate = getenv("IMAGEPLAN_MARKUP_TEMPLATE", cfg.MarkupTemplate)
	cfg.FamilyPattern = getenv("IMAGEPLAN_FAMILY_PATTERN", cfg.FamilyPattern)
	cfg.SplitOutputDir = getenv("IMAGEPLAN_SPLIT_OUTPUT_DIR", cfg.SplitOutputDir)
	cfg.PromptTemplate = getenv("IMAGEPLAN_PROMPT_TEMPLATE", cfg.PromptTemplate)
	cfg.PromptOutputDir = getenv("IMAGEPLAN_PROMPT_OUTPUT_DIR", cfg.PromptOutputDir)
	cfg.PathPrefix = getenv("IMAGEPLAN_PATH_PREFIX", cfg.PathPrefix)
	cfg.GitCommit = getenvBool("IMAGEPLAN_GIT_COMMIT", cfg.GitCommit)
	cfg.GitAuthor = getenv("IMAGEPLAN_GIT_AUTHOR", cfg.GitAuthor)
	cfg.RedisURL = getenv("IMAGEPLAN_REDIS_URL", cfg.RedisURL)
	cfg.CorpusCacheTTL = time.Duration(getenvInt("IMAGEPLAN_CORPUS_CACHE_TTL_SECONDS", int(cfg.CorpusCacheTTL/time.Second))) * time.Second
	cfg.MeiliURL = getenv("IMAGEPLAN_MEILI_URL", cfg.MeiliURL)
	cfg.MeiliMasterKey = getenv("IMAGEPLAN_MEILI_MASTER_KEY", cfg.MeiliMasterKey)
	cfg.MeiliIndex = getenv("IMAGEPLAN_MEILI_INDEX", cfg.MeiliIndex)
	cfg.DatabaseURL = getenv("IMAGEPLAN_DATABASE_URL", cfg.DatabaseURL)
	cfg.MigrationsDir = getenv("IMAGEPLAN_MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.MinioEndpoint = getenv("IMAGEPLAN_MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = getenv("IMAGEPLAN_MINIO_ACCESS_KEY", cfg.MinioAccessKey)
	cfg.MinioSecretKey = getenv("IMAGEPLAN_MINIO_SECRET_KEY", cfg.MinioSecretKey)
	cfg.MinioBucket = getenv("IMAGEPLAN_MINIO_BUCKET", cfg.MinioBucket)
	cfg.MinioUseSSL = getenvBool("IMAGEPLAN_MINIO_USE_SSL", cfg.MinioUseSSL)
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
