package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"neurodoc/internal/domain"
)

// NamespaceConfig controls how per-user namespaces are named and created.
type NamespaceConfig struct {
	Prefix string `yaml:"prefix"`
	Metric string `yaml:"metric"`
	Cloud  string `yaml:"cloud"`
	Region string `yaml:"region"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type     string `yaml:"type"`
	MaxChars int    `yaml:"max_chars"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKeyEnv     string `yaml:"api_key_env"`
	Model         string `yaml:"model"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
	MaxRetries    int    `yaml:"max_retries"`
	AllowEmptyKey bool   `yaml:"allow_empty_key"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// PineconeConfig contains credentials and endpoints for Pinecone.
type PineconeConfig struct {
	APIKeyEnv      string `yaml:"api_key_env"`
	ControllerURL  string `yaml:"controller_url"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PostgresConfig contains connection details for Postgres with pgvector.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	DSNEnv      string `yaml:"dsn_env"`
	SkipMigrate bool   `yaml:"skip_migrate"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIVersion  string `yaml:"api_version"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIGeneratorConfig configures the OpenAI-compatible chat generator.
type OpenAIGeneratorConfig struct {
	BaseURL       string  `yaml:"base_url"`
	APIKeyEnv     string  `yaml:"api_key_env"`
	Model         string  `yaml:"model"`
	Temperature   float32 `yaml:"temperature"`
	TimeoutSecs   int     `yaml:"timeout_secs"`
	AllowEmptyKey bool    `yaml:"allow_empty_key"`
}

// GeneratorConfig selects and configures the text generation model.
type GeneratorConfig struct {
	Type   string                 `yaml:"type"`
	Gemini *GeminiConfig          `yaml:"gemini,omitempty"`
	OpenAI *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// SearchConfig tunes retrieval.
type SearchConfig struct {
	AnswerTopK        int  `yaml:"answer_top_k"`
	SummaryTopK       int  `yaml:"summary_top_k"`
	OrderByChunkIndex bool `yaml:"order_by_chunk_index"`
	UpsertBatch       int  `yaml:"upsert_batch"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	// File receives log output instead of stderr when set.
	File string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Namespace   NamespaceConfig   `yaml:"namespace"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Search      SearchConfig      `yaml:"search"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfiguration, path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/neurodoc/config.yaml.
// If neither exists, it writes defaults to ~/.config/neurodoc/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "neurodoc", "config.yaml"), nil
}

// Default returns the configuration used when no file exists: Pinecone for storage,
// Gemini for generation and the in-process hashing embedder.
// The hashing embedder needs no credentials or model server but only matches shared words.
// Set embedder.type to openai for semantic retrieval: text-embedding-3-small shortened to
// 384 dimensions, or all-MiniLM-L6-v2 behind any OpenAI-compatible embeddings server.
func Default() *AppConfig {
	cfg := &AppConfig{
		Chunker:     ChunkerConfig{Type: "fixed"},
		Embedder:    EmbedderConfig{Type: "hashing"},
		VectorStore: VectorStoreConfig{Type: "pinecone"},
		Generator:   GeneratorConfig{Type: "gemini"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Namespace.Prefix == "" {
		cfg.Namespace.Prefix = "neurallens"
	}
	if cfg.Namespace.Metric == "" {
		cfg.Namespace.Metric = "cosine"
	}
	if cfg.Namespace.Cloud == "" {
		cfg.Namespace.Cloud = "aws"
	}
	if cfg.Namespace.Region == "" {
		cfg.Namespace.Region = "us-east-1"
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "fixed"
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 1000
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 384
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 3
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "pinecone"
	}
	switch cfg.VectorStore.Type {
	case "pinecone":
		if cfg.VectorStore.Pinecone == nil {
			cfg.VectorStore.Pinecone = &PineconeConfig{}
		}
		p := cfg.VectorStore.Pinecone
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = "PINECONE_API_KEY"
		}
		if p.ControllerURL == "" {
			p.ControllerURL = "https://api.pinecone.io"
		}
		if p.TimeoutSecs == 0 {
			p.TimeoutSecs = 30
		}
		if p.PollIntervalMs == 0 {
			p.PollIntervalMs = 1000
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	case "postgres":
		if cfg.VectorStore.Postgres == nil {
			cfg.VectorStore.Postgres = &PostgresConfig{}
		}
		if cfg.VectorStore.Postgres.DSNEnv == "" {
			cfg.VectorStore.Postgres.DSNEnv = "DATABASE_URL"
		}
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "gemini"
	}
	switch cfg.Generator.Type {
	case "gemini":
		if cfg.Generator.Gemini == nil {
			cfg.Generator.Gemini = &GeminiConfig{}
		}
		g := cfg.Generator.Gemini
		if g.BaseURL == "" {
			g.BaseURL = "https://generativelanguage.googleapis.com/"
		}
		if g.APIVersion == "" {
			g.APIVersion = "v1beta"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "GEMINI_API_KEY"
		}
		if g.Model == "" {
			g.Model = "gemini-1.5-pro"
		}
		if g.TimeoutSecs == 0 {
			g.TimeoutSecs = 60
		}
	case "openai":
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIGeneratorConfig{}
		}
		o := cfg.Generator.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4o-mini"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
	}

	if cfg.Search.AnswerTopK == 0 {
		cfg.Search.AnswerTopK = 1
	}
	if cfg.Search.SummaryTopK == 0 {
		cfg.Search.SummaryTopK = 10
	}
	if cfg.Search.UpsertBatch == 0 {
		cfg.Search.UpsertBatch = 100
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 120
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks selector values and that the credentials required by the selected
// backends are present in the environment.
func (c *AppConfig) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	requireEnv := func(name string) {
		if os.Getenv(name) == "" {
			add("environment variable %s is not set", name)
		}
	}

	if c.Chunker.Type != "fixed" {
		add("unknown chunker: %s", c.Chunker.Type)
	}
	if c.Chunker.MaxChars < 0 {
		add("chunker.max_chars must be positive")
	}
	if c.Embedder.Dimension < 0 {
		add("embedder.dimension must be positive")
	}

	switch c.Embedder.Type {
	case "hashing":
	case "openai":
		if c.Embedder.OpenAI != nil && !c.Embedder.OpenAI.AllowEmptyKey {
			requireEnv(c.Embedder.OpenAI.APIKeyEnv)
		}
	default:
		add("unknown embedder: %s", c.Embedder.Type)
	}

	switch c.VectorStore.Type {
	case "memory":
	case "pinecone":
		if c.VectorStore.Pinecone != nil {
			requireEnv(c.VectorStore.Pinecone.APIKeyEnv)
		}
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			add("vector_store.qdrant.url is required")
		}
	case "postgres":
		if c.VectorStore.Postgres == nil || c.VectorStore.Postgres.ResolveDSN() == "" {
			add("postgres DSN is not set (vector_store.postgres.dsn or its dsn_env)")
		}
	default:
		add("unknown vector store: %s", c.VectorStore.Type)
	}

	switch c.Generator.Type {
	case "gemini":
		if c.Generator.Gemini != nil {
			requireEnv(c.Generator.Gemini.APIKeyEnv)
		}
	case "openai":
		if c.Generator.OpenAI != nil && !c.Generator.OpenAI.AllowEmptyKey {
			requireEnv(c.Generator.OpenAI.APIKeyEnv)
		}
	default:
		add("unknown generator: %s", c.Generator.Type)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("unknown log level: %s", c.Log.Level)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// ResolveDSN returns the explicit DSN, falling back to the DSN environment variable.
func (p *PostgresConfig) ResolveDSN() string {
	if p.DSN != "" {
		return p.DSN
	}
	if p.DSNEnv == "" {
		return ""
	}
	return os.Getenv(p.DSNEnv)
}
