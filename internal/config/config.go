package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/localrivet/configurator"
)

// Global configuration instance
var (
	// Global is the global configuration instance
	Global *Config
	// initOnce ensures initialization happens only once
	initOnce sync.Once
)

// InitGlobal initializes the global configuration
func InitGlobal(configPath string) (*Config, error) {
	var err error
	initOnce.Do(func() {
		Global, err = LoadConfigWithPath(configPath)
	})
	return Global, err
}

// Config represents the kbrag configuration
type Config struct {
	// Index contains vector-index persistence configuration.
	Index struct {
		// Path is the path to the SQLite index file.
		Path string `json:"path" env:"INDEX_PATH" validate:"required"`
	} `json:"index"`

	// Embedder contains embedding-related configuration.
	Embedder struct {
		// Provider is the name of the embedding provider to use ("openai", "mock").
		Provider string `json:"provider" env:"EMBEDDER_PROVIDER"`

		// Model is the embedding model identifier.
		Model string `json:"model" env:"EMBEDDER_MODEL"`

		// BaseURL overrides the provider endpoint, for OpenAI-compatible servers.
		BaseURL string `json:"base_url" env:"EMBEDDER_BASE_URL"`

		// ApiKey is the API key for the embedding provider.
		ApiKey string `json:"api_key" env:"EMBEDDER_API_KEY"`

		// Dimensions is the number of dimensions for the embeddings.
		Dimensions int `json:"dimensions" env:"EMBEDDER_DIMENSIONS" validate:"min:1"`
	} `json:"embedder"`

	// Generator contains answer-generation configuration.
	Generator struct {
		// Provider is the name of the generation provider to use
		// ("google", "anthropic", "openai", "xai").
		Provider string `json:"provider" env:"GENERATOR_PROVIDER"`

		// Model is the generation model identifier.
		Model string `json:"model" env:"GENERATOR_MODEL"`

		// ApiKey is the API key for the generation provider.
		ApiKey string `json:"api_key" env:"GENERATOR_API_KEY"`

		// MaxRetries is how many times a failed generation call is retried.
		MaxRetries int `json:"max_retries" env:"GENERATOR_MAX_RETRIES"`

		// TimeoutSeconds bounds each generation attempt.
		TimeoutSeconds int `json:"timeout_seconds" env:"GENERATOR_TIMEOUT_SECONDS"`
	} `json:"generator"`

	// Chunking controls how documents are split before embedding.
	Chunking struct {
		// TargetSize is the maximum chunk length in bytes.
		TargetSize int `json:"target_size" env:"CHUNK_TARGET_SIZE" validate:"min:1"`

		// Overlap is the trailing context shared between adjacent chunks.
		Overlap int `json:"overlap" env:"CHUNK_OVERLAP"`
	} `json:"chunking"`

	// Ingest controls batching during ingestion.
	Ingest struct {
		// BatchThreshold is the chunk count above which embedding is batched.
		BatchThreshold int `json:"batch_threshold" env:"INGEST_BATCH_THRESHOLD"`

		// BatchSize is the number of chunks embedded per batch call.
		BatchSize int `json:"batch_size" env:"INGEST_BATCH_SIZE"`
	} `json:"ingest"`

	// Logging contains logging-related configuration.
	Logging struct {
		// Level is the minimum log level to display ("debug", "info", "warn", "error").
		Level string `json:"level" env:"LOG_LEVEL" validate:"required"`

		// Format is the log format to use ("text", "json").
		Format string `json:"format" env:"LOG_FORMAT"`
	} `json:"logging"`

	// Internal state (not saved to config file)
	configPath     string       `json:"-"`
	mutex          sync.RWMutex `json:"-"`
	lastModifiedAt time.Time    `json:"-"`
}

// Default configuration values
const (
	DefaultConfigFilename = ".kbragconfig"
	DefaultIndexPath      = ".kbrag.db"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// ambientKeyVars names the conventional environment variable per provider.
var ambientKeyVars = map[string]string{
	"google":    "GOOGLE_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"xai":       "XAI_API_KEY",
}

// NewConfig creates a new Config instance with default values
func NewConfig() *Config {
	config := &Config{}
	config.Index.Path = DefaultIndexPath
	config.Embedder.Provider = "mock"
	config.Embedder.Model = "text-embedding-3-small"
	config.Embedder.Dimensions = 384 // matches the original deployment's MiniLM embeddings
	config.Generator.Provider = "google"
	config.Generator.Model = "gemini-2.0-flash-exp"
	config.Generator.MaxRetries = 2
	config.Generator.TimeoutSeconds = 30
	config.Chunking.TargetSize = 800
	config.Chunking.Overlap = 150
	config.Ingest.BatchThreshold = 50
	config.Ingest.BatchSize = 25
	config.Logging.Level = DefaultLogLevel
	config.Logging.Format = DefaultLogFormat
	return config
}

// LoadConfig loads the configuration from the default path
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath(DefaultConfigFilename)
}

// LoadConfigWithPath loads the configuration from a specific path
func LoadConfigWithPath(configPath string) (*Config, error) {
	// Log to stderr so a config load can never corrupt the MCP stdio stream.
	// MCP_MODE=1 silences the loader entirely.
	logOut := io.Writer(os.Stderr)
	if os.Getenv("MCP_MODE") == "1" {
		logOut = io.Discard
	}
	stdLogger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Create default configuration
	cfg := NewConfig()

	// Try to find config file if path is default
	if configPath == DefaultConfigFilename {
		foundPath, err := configurator.FindConfigFile(configPath)
		if err == nil {
			configPath = foundPath
			stdLogger.Debug("Found config file at " + foundPath)
		}
	}

	ctx := context.Background()

	// Check if the file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// File doesn't exist; load defaults and environment only
		stdLogger.Info("Config file not found, using defaults and environment", "path", configPath)

		config := configurator.New(stdLogger).
			WithProvider(configurator.NewDefaultProvider()).
			WithProvider(configurator.NewEnvProvider("KBRAG")).
			WithValidator(configurator.NewDefaultValidator())

		if err := config.Load(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}

		applyAmbientKeys(cfg)
		cfg.configPath = configPath
		cfg.lastModifiedAt = time.Now()
		return cfg, nil
	}

	stdLogger.Info("Loading configuration", "path", configPath)

	// Create configurator instance
	config := configurator.New(stdLogger).
		WithProvider(configurator.NewDefaultProvider()).
		WithProvider(configurator.NewFileProvider(configPath)).
		WithProvider(configurator.NewEnvProvider("KBRAG")).
		WithValidator(configurator.NewDefaultValidator())

	// Load configuration
	if err := config.Load(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applyAmbientKeys(cfg)

	// Store the config path for future operations
	cfg.configPath = configPath
	cfg.lastModifiedAt = time.Now()

	return cfg, nil
}

// AmbientKey returns the value of the conventional environment variable for
// a provider ("google" reads GOOGLE_API_KEY), or "" when the provider has no
// conventional variable or it is unset.
func AmbientKey(provider string) string {
	if name, ok := ambientKeyVars[provider]; ok {
		return os.Getenv(name)
	}
	return ""
}

// applyAmbientKeys fills provider keys from the conventional environment
// variables when the loaded configuration leaves them blank.
func applyAmbientKeys(cfg *Config) {
	if cfg.Generator.ApiKey == "" {
		cfg.Generator.ApiKey = AmbientKey(cfg.Generator.Provider)
	}
	if cfg.Embedder.ApiKey == "" && cfg.Embedder.Provider == "openai" {
		cfg.Embedder.ApiKey = AmbientKey("openai")
	}
}

// SaveToFile saves the configuration to the specified file
func (c *Config) SaveToFile(path string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Create directory if needed
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Save using configurator's SaveToFile function
	if err := configurator.SaveToFile(c, path, configurator.FormatJSON); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// Update internal state
	c.configPath = path
	c.lastModifiedAt = time.Now()

	return nil
}

// Save saves the configuration to the last used file path
func (c *Config) Save() error {
	if c.configPath == "" {
		c.configPath = DefaultConfigFilename
	}
	return c.SaveToFile(c.configPath)
}

// GetConfigPath returns the path of the currently loaded configuration file
func (c *Config) GetConfigPath() string {
	return c.configPath
}
