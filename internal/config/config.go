// Package config loads the application configuration from YAML, .env files,
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvSelector names the environment variable selecting the config overlay
const EnvSelector = "INVOICE_ENV"

// envFile is loaded into the process environment before the config is read
var envFile = ".env"

// Config holds all application configuration
type Config struct {
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Converter ConverterConfig `mapstructure:"converter"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// InputConfig selects the invoices to process
type InputConfig struct {
	SourceDir     string `mapstructure:"source_dir"`
	Pattern       string `mapstructure:"pattern"`
	Recursive     bool   `mapstructure:"recursive"`
	MaxFiles      int    `mapstructure:"max_files"`
	RootDirectory string `mapstructure:"root_directory"`
	ManifestPath  string `mapstructure:"manifest_path"`
}

// OutputConfig controls the run directory and its reports
type OutputConfig struct {
	Dir                 string  `mapstructure:"dir"`
	Format              string  `mapstructure:"format"`
	DateFormat          string  `mapstructure:"date_format"`
	IncludeDuplicates   bool    `mapstructure:"include_duplicates"`
	DeduplicateStrategy string  `mapstructure:"deduplicate_strategy"`
	FuzzyTolerance      float64 `mapstructure:"fuzzy_tolerance"`
	XLSX                bool    `mapstructure:"xlsx"`
	Markdown            bool    `mapstructure:"markdown"`
	Persist             bool    `mapstructure:"persist"`
}

// BatchConfig holds worker pool settings
type BatchConfig struct {
	MaxWorkers             int           `mapstructure:"max_workers"`
	FileTimeout            time.Duration `mapstructure:"file_timeout"`
	LowConfidenceThreshold float64       `mapstructure:"low_confidence_threshold"`
	RetryAttempts          int           `mapstructure:"retry_attempts"`
	RetryBaseBackoff       time.Duration `mapstructure:"retry_base_backoff"`
	RetryMaxBackoff        time.Duration `mapstructure:"retry_max_backoff"`
}

// ConverterConfig holds document conversion settings
type ConverterConfig struct {
	MaxConcurrent   int    `mapstructure:"max_concurrent"`
	MaxPages        int    `mapstructure:"max_pages"`
	MinTextChars    int    `mapstructure:"min_text_chars"`
	ImageOnlyPolicy string `mapstructure:"image_only_policy"`
	Fallback        bool   `mapstructure:"fallback"`
}

// ScoringConfig overrides the confidence profile table.
// Empty sections keep the built-in values.
type ScoringConfig struct {
	Weights        map[string]float64  `mapstructure:"weights"`
	Profiles       map[string][]string `mapstructure:"profiles"`
	VendorProfiles map[string]string   `mapstructure:"vendor_profiles"`
}

// OpenAIConfig holds the LLM fallback configuration
type OpenAIConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	BaseURL      string `mapstructure:"base_url"`
	PromptsPath  string `mapstructure:"prompts_path"`
	MaxTextChars int    `mapstructure:"max_text_chars"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"source":             "input.source_dir",
	"pattern":            "input.pattern",
	"recursive":          "input.recursive",
	"max-files":          "input.max_files",
	"manifest":           "input.manifest_path",
	"output":             "output.dir",
	"format":             "output.format",
	"include-duplicates": "output.include_duplicates",
	"dedupe-strategy":    "output.deduplicate_strategy",
	"workers":            "batch.max_workers",
	"timeout":            "batch.file_timeout",
	"image-only":         "converter.image_only_policy",
	"llm":                "openai.enabled",
	"port":               "server.port",
	"db":                 "database.path",
	"log-level":          "logger.level",
}

// AddFlags registers the configuration flags on fs
func AddFlags(fs *pflag.FlagSet) {
	fs.String("source", "", "directory containing invoice PDFs")
	fs.String("pattern", "", "glob matched against file names (default *.pdf)")
	fs.Bool("recursive", false, "descend into subdirectories")
	fs.Int("max-files", 0, "process at most N files (0 = all)")
	fs.String("manifest", "", "vendor manifest file")
	fs.String("output", "", "directory receiving run_* folders")
	fs.String("format", "", "csv layout: normalized or denormalized")
	fs.Bool("include-duplicates", false, "keep dropped duplicates in CSV and XLSX output")
	fs.String("dedupe-strategy", "", "keep_first, keep_last or keep_newest_file")
	fs.Bool("no-persist", false, "do not record the run in the database")
	fs.Int("workers", 0, "concurrent extraction workers")
	fs.Duration("timeout", 0, "per-file extraction timeout")
	fs.String("image-only", "", "image-only documents: fail or exclude")
	fs.Bool("llm", false, "use the OpenAI fallback for vendors without rules")
	fs.Int("port", 0, "report API port")
	fs.String("db", "", "SQLite database path")
	fs.String("log-level", "", "debug, info, warn or error")
}

// Load loads configuration from file, .env, environment variables and flags.
// An overlay named config.<env>.yaml next to configPath is merged when INVOICE_ENV is set.
// flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := mergeOverlay(v, configPath); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if flags != nil {
		if noPersist, err := flags.GetBool("no-persist"); err == nil && noPersist {
			cfg.Output.Persist = false
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func mergeOverlay(v *viper.Viper, configPath string) error {
	env := strings.TrimSpace(os.Getenv(EnvSelector))
	if env == "" {
		return nil
	}
	ext := filepath.Ext(configPath)
	overlay := strings.TrimSuffix(configPath, ext) + "." + env + ext
	if _, err := os.Stat(overlay); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(overlay)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to merge %s: %w", overlay, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Input defaults
	v.SetDefault("input.source_dir", "")
	v.SetDefault("input.pattern", "*.pdf")
	v.SetDefault("input.recursive", true)
	v.SetDefault("input.max_files", 0)
	v.SetDefault("input.root_directory", "Bills")
	v.SetDefault("input.manifest_path", "")

	// Output defaults
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.format", "normalized")
	v.SetDefault("output.date_format", "2006-01-02")
	v.SetDefault("output.include_duplicates", false)
	v.SetDefault("output.deduplicate_strategy", "keep_first")
	v.SetDefault("output.fuzzy_tolerance", 0.01)
	v.SetDefault("output.xlsx", true)
	v.SetDefault("output.markdown", true)
	v.SetDefault("output.persist", true)

	// Batch defaults
	v.SetDefault("batch.max_workers", 4)
	v.SetDefault("batch.file_timeout", 120*time.Second)
	v.SetDefault("batch.low_confidence_threshold", 0.7)
	v.SetDefault("batch.retry_attempts", 3)
	v.SetDefault("batch.retry_base_backoff", time.Second)
	v.SetDefault("batch.retry_max_backoff", 8*time.Second)

	// Converter defaults
	v.SetDefault("converter.max_concurrent", 1)
	v.SetDefault("converter.max_pages", 0)
	v.SetDefault("converter.min_text_chars", 20)
	v.SetDefault("converter.image_only_policy", "fail")
	v.SetDefault("converter.fallback", true)

	// OpenAI defaults
	v.SetDefault("openai.enabled", false)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.prompts_path", "")
	v.SetDefault("openai.max_text_chars", 12000)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/invoices.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stderr")
	v.SetDefault("logger.format", "console")
}

// bindEnvVars binds the documented environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"input.source_dir":            "INVOICE_SOURCE_DIR",
		"output.dir":                  "OUTPUT_DIR",
		"batch.max_workers":           "MAX_WORKERS",
		"logger.level":                "LOG_LEVEL",
		"output.include_duplicates":   "INCLUDE_DUPLICATES",
		"output.deduplicate_strategy": "DEDUPLICATE_STRATEGY",
		"openai.api_key":              "OPENAI_API_KEY",
		"database.path":               "DATABASE_PATH",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Batch.MaxWorkers < 1 {
		return fmt.Errorf("batch.max_workers must be at least 1, got %d", c.Batch.MaxWorkers)
	}
	if c.Batch.FileTimeout <= 0 {
		return fmt.Errorf("batch.file_timeout must be positive")
	}
	if c.Batch.LowConfidenceThreshold < 0 || c.Batch.LowConfidenceThreshold > 1 {
		return fmt.Errorf("batch.low_confidence_threshold must be between 0.0 and 1.0, got %.2f", c.Batch.LowConfidenceThreshold)
	}
	if c.Input.MaxFiles < 0 {
		return fmt.Errorf("input.max_files must not be negative")
	}
	if c.Converter.MaxConcurrent < 1 {
		return fmt.Errorf("converter.max_concurrent must be at least 1, got %d", c.Converter.MaxConcurrent)
	}
	if c.Output.FuzzyTolerance < 0 {
		return fmt.Errorf("output.fuzzy_tolerance must not be negative")
	}
	if c.OpenAI.Enabled && c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required when openai.enabled is set")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Output.Persist && c.Database.Path == "" {
		return fmt.Errorf("database.path is required when output.persist is set")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	// Component settings are checked by the components themselves
	if _, err := c.ImageOnlyPolicy(); err != nil {
		return err
	}
	if _, err := c.DeduplicateStrategy(); err != nil {
		return err
	}
	if err := c.ExportConfig().Validate(); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if _, err := c.ProfileTable(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	return nil
}
