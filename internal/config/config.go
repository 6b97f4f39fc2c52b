package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for coverwatch.
type Config struct {
	Repository  string        `mapstructure:"repository"` // storage key prefix, e.g. "acme/api"
	BaseBranch  string        `mapstructure:"base_branch"`
	HeadBranch  string        `mapstructure:"head_branch"`
	MinCoverage float64       `mapstructure:"min_coverage"`
	ShowMissing bool          `mapstructure:"show_missing"`
	CoverageRC  string        `mapstructure:"coveragerc"`
	CacheDir    string        `mapstructure:"cache_dir"`
	CacheTTL    string        `mapstructure:"cache_ttl"`
	NoCache     bool          `mapstructure:"no_cache"`
	LogLevel    string        `mapstructure:"log_level"`
	Storage     StorageConfig `mapstructure:"storage"`
	GitHub      GitHubConfig  `mapstructure:"github"`
}

// StorageConfig points at the S3-compatible bucket holding coverage reports.
type StorageConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Bucket   string `mapstructure:"bucket"`
}

// GitHubConfig holds GitHub-related settings. Owner and Repo may be left
// empty when the working directory is a clone with an origin remote; they
// are then detected from it.
type GitHubConfig struct {
	Token string `mapstructure:"token"`
	Owner string `mapstructure:"owner"`
	Repo  string `mapstructure:"repo"`
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("base_branch", "main")
	v.SetDefault("min_coverage", 80)
	v.SetDefault("show_missing", false)
	v.SetDefault("coveragerc", ".coveragerc")
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("no_cache", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("storage.bucket", "coverage-reports")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/coverwatch")
	}

	// Environment variables
	v.SetEnvPrefix("COVERWATCH")
	v.AutomaticEnv()

	_ = v.BindEnv("github.token", "GITHUB_TOKEN")
	_ = v.BindEnv("repository", "COVERWATCH_REPOSITORY")
	_ = v.BindEnv("storage.endpoint", "COVERWATCH_STORAGE_ENDPOINT")
	_ = v.BindEnv("storage.bucket", "COVERWATCH_STORAGE_BUCKET")
	_ = v.BindEnv("min_coverage", "COVERWATCH_MIN_COVERAGE")
	_ = v.BindEnv("show_missing", "COVERWATCH_SHOW_MISSING")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Resolve coveragerc path to absolute so the engine never depends on
	// the process working directory.
	if cfg.CoverageRC != "" && !filepath.IsAbs(cfg.CoverageRC) {
		abs, err := filepath.Abs(cfg.CoverageRC)
		if err != nil {
			return nil, fmt.Errorf("resolving coveragerc path: %w", err)
		}
		cfg.CoverageRC = abs
	}

	return &cfg, nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/coverwatch-cache"
	}
	return filepath.Join(home, ".cache", "coverwatch")
}
