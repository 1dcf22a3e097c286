package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"docrag/internal/domain"
)

// Config holds all configuration for docrag.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Assemble  AssembleConfig  `yaml:"assemble"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" validate:"oneof=openai compatible ollama hash"`
	Model      string        `yaml:"model" validate:"required"`
	APIKeyEnv  string        `yaml:"api_key_env"` // Environment variable holding the API key
	BaseURL    string        `yaml:"base_url" validate:"omitempty,url"`
	Dimension  int           `yaml:"dimension" validate:"gte=0"` // 0 = derived from model
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend    string       `yaml:"backend" validate:"oneof=bolt sqlite qdrant"`
	Path       string       `yaml:"path"` // bolt/sqlite file, relative to the root directory
	Collection string       `yaml:"collection" validate:"required"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"gte=0,lte=65535"`
	APIKeyEnv string `yaml:"api_key_env"`
	UseTLS    bool   `yaml:"use_tls"`
}

// IngestConfig holds ingestion configuration.
type IngestConfig struct {
	Source          string   `yaml:"source"`
	Includes        []string `yaml:"includes"`
	Excludes        []string `yaml:"excludes"`
	Gate            string   `yaml:"gate" validate:"oneof=collection document"`
	Workers         int      `yaml:"workers" validate:"gte=1,lte=64"`
	ContinueOnError bool     `yaml:"continue_on_error"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK    int           `yaml:"top_k" validate:"gte=1"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// AssembleConfig overrides the context block template.
type AssembleConfig struct {
	Preamble    string `yaml:"preamble"`
	EmptyNotice string `yaml:"empty_notice"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			APIKeyEnv:  "OPENAI_API_KEY",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
		Store: StoreConfig{
			Backend:    "bolt",
			Path:       filepath.Join(".docrag", "vectors.db"),
			Collection: "documents",
			Qdrant: QdrantConfig{
				Host:      "localhost",
				Port:      6334,
				APIKeyEnv: "QDRANT_API_KEY",
			},
		},
		Ingest: IngestConfig{
			Source:   "data",
			Includes: []string{"**/*.txt", "**/*.md"},
			Excludes: []string{"**/.git/**", "**/.docrag/**"},
			Gate:     "collection",
			Workers:  1,
		},
		Retrieve: RetrieveConfig{
			TopK:    3,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. Environment references such as
// ${HOME} are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, &domain.ConfigurationError{Field: path, Err: err}
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Any violation is reported as a
// ConfigurationError naming the first offending field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.ConfigurationError{
			Field: strings.TrimPrefix(fe.Namespace(), "Config."),
			Err:   fmt.Errorf("failed %q constraint (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &domain.ConfigurationError{Err: err}
}

// APIKey resolves the embedding API key from the environment. Providers that
// need a key report a ConfigurationError when it is unset.
func (e EmbeddingConfig) APIKey() (string, error) {
	if e.Provider == "hash" || e.Provider == "ollama" {
		return "", nil
	}
	if e.APIKeyEnv == "" {
		return "", &domain.ConfigurationError{Field: "Embedding.APIKeyEnv", Err: errors.New("no environment variable configured")}
	}
	key := os.Getenv(e.APIKeyEnv)
	if key == "" {
		return "", &domain.ConfigurationError{Field: "Embedding.APIKeyEnv", Err: fmt.Errorf("%s is not set", e.APIKeyEnv)}
	}
	return key, nil
}

// StorePath returns the absolute store file path for the given root directory.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// SourceDir returns the absolute ingestion source directory.
func (c *Config) SourceDir(dir string) string {
	if filepath.IsAbs(c.Ingest.Source) {
		return c.Ingest.Source
	}
	return filepath.Join(dir, c.Ingest.Source)
}

// EnsureStoreDir ensures the directory holding the store file exists.
func (c *Config) EnsureStoreDir(dir string) error {
	return os.MkdirAll(filepath.Dir(c.StorePath(dir)), 0755)
}
