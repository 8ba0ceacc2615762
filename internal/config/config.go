// Package config provides configuration loading and structs for the DevFlow server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Generator GeneratorConfig `yaml:"generator"`
	Web       WebConfig       `yaml:"web"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// StorageConfig holds paths for the source catalog and the vector snapshot.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of mock, onnx, openai.
	Provider          string        `yaml:"provider"`
	ModelPath         string        `yaml:"model_path"`
	Dimensions        int           `yaml:"dimensions"`
	MaxTokens         int           `yaml:"max_tokens"`
	CacheSize         int           `yaml:"cache_size"`
	BatchSize         int           `yaml:"batch_size"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	APIKey            string        `yaml:"-"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	// Backend is one of flat, persistent, qdrant.
	Backend string `yaml:"backend"`
	// Metric is cosine or l2; fixed for the lifetime of an index.
	Metric           string        `yaml:"metric"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
	Qdrant           QdrantConfig  `yaml:"qdrant"`
}

// QdrantConfig holds the remote index connection.
type QdrantConfig struct {
	URL        string        `yaml:"url"`
	Collection string        `yaml:"collection"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout"`
	APIKey     string        `yaml:"-"`
}

// ChunkingConfig holds word-window chunking settings.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// SearchConfig holds retrieval limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// GeneratorConfig configures the answer generator (OpenAI-compatible chat completions).
type GeneratorConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	APIKey      string        `yaml:"-"`
}

// WebConfig configures web search and page scraping.
type WebConfig struct {
	SearchURL         string        `yaml:"search_url"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	MaxContentLength  int           `yaml:"max_content_length"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	APIKey            string        `yaml:"-"`
}

// Load reads and parses the config file at path, expands paths, applies defaults, and
// resolves secrets from the environment. A .env file next to the config is loaded first.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	loadDotEnv(filepath.Join(configDir, ".env"))
	finish(&cfg, configDir)
	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns the default configuration when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return Default(), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	loadDotEnv(".env")
	wd, _ := os.Getwd()
	finish(cfg, wd)
	return cfg
}

func finish(cfg *Config, configDir string) {
	ApplyDefaults(cfg)
	applyEnv(cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
}

// loadDotEnv loads KEY=VALUE pairs without overriding variables already set.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

// applyEnv resolves API keys and DEVFLOW_* overrides.
func applyEnv(cfg *Config) {
	cfg.Embedding.APIKey = os.Getenv(cfg.Embedding.APIKeyEnv)
	cfg.Vector.Qdrant.APIKey = os.Getenv(cfg.Vector.Qdrant.APIKeyEnv)
	cfg.Generator.APIKey = os.Getenv(cfg.Generator.APIKeyEnv)
	cfg.Web.APIKey = os.Getenv(cfg.Web.APIKeyEnv)

	if v := os.Getenv("DEVFLOW_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	if v := os.Getenv("DEVFLOW_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("DEVFLOW_VECTOR_BACKEND"); v != "" {
		cfg.Vector.Backend = v
	}
	if v := os.Getenv("DEVFLOW_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("DEVFLOW_QDRANT_URL"); v != "" {
		cfg.Vector.Qdrant.URL = v
	}
}

// Save writes the config to path. Used for persisting watch directory add/remove.
// Secrets resolved from the environment are never written.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
