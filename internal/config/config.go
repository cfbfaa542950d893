package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the cardex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Store      StoreConfig      `yaml:"store"`
	Vision     VisionConfig     `yaml:"vision"`
	Embedding  OpenAIConfig     `yaml:"embedding"`
	Caption    CaptionConfig    `yaml:"caption"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Search     SearchConfig     `yaml:"search"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Intake     IntakeConfig     `yaml:"intake"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
	HealthProbeSec  int `yaml:"health_probe_timeout_sec"`
}

// StoreConfig holds record store settings.
type StoreConfig struct {
	Driver            string   `yaml:"driver"` // redis
	Addrs             []string `yaml:"addrs"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	DB                int      `yaml:"db"`
	ReadinessTimeout  int      `yaml:"readiness_timeout_sec"`
	DialTimeoutSec    int      `yaml:"dial_timeout_sec"`
	Database          string   `yaml:"database"`
	Container         string   `yaml:"container"`
	ImageDimensions   int      `yaml:"image_dimensions"`
	CaptionDimensions int      `yaml:"caption_dimensions"`
	VectorAlgorithm   string   `yaml:"vector_algorithm"` // flat | hnsw
}

// VisionConfig holds image embedding gateway settings.
type VisionConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Key          string `yaml:"key"`
	APIVersion   string `yaml:"api_version"`
	ModelVersion string `yaml:"model_version"`
}

// OpenAIConfig holds Azure OpenAI deployment settings.
type OpenAIConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Key        string `yaml:"key"`
	APIVersion string `yaml:"api_version"`
	Deployment string `yaml:"deployment"`
}

// CaptionConfig holds captioning gateway settings.
type CaptionConfig struct {
	OpenAIConfig `yaml:",inline"`
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// GatewayConfig holds settings shared by all external gateways.
type GatewayConfig struct {
	TimeoutSec     int     `yaml:"timeout_sec"`
	RequestsPerSec float64 `yaml:"requests_per_sec"` // 0 = unlimited
	Burst          int     `yaml:"burst"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	ImageCutoff  float64 `yaml:"image_cutoff"`
	KeywordLimit int     `yaml:"keyword_limit"`
	FallbackK    int     `yaml:"fallback_k"`

	QueryCacheTTLSec int `yaml:"query_cache_ttl_sec"` // 0 = cache disabled
}

// QueryCacheTTL returns the text query vector cache TTL.
func (c SearchConfig) QueryCacheTTL() time.Duration {
	return time.Duration(c.QueryCacheTTLSec) * time.Second
}

// EnrichmentConfig holds enrichment pipeline settings.
type EnrichmentConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// IntakeConfig holds the batch bucket settings. An empty bucket disables polling.
type IntakeConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
}

// Enabled reports whether a batch bucket is configured.
func (c IntakeConfig) Enabled() bool { return c.Endpoint != "" && c.Bucket != "" }

// PollInterval returns the bucket polling interval.
func (c IntakeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// Timeout returns the per-call gateway timeout.
func (c GatewayConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.HealthProbeSec <= 0 {
		c.HTTP.HealthProbeSec = 3
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 20
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "redis"
	}
	if c.Store.ReadinessTimeout <= 0 {
		c.Store.ReadinessTimeout = 10
	}
	if c.Store.DialTimeoutSec <= 0 {
		c.Store.DialTimeoutSec = 5
	}
	if c.Store.Database == "" {
		c.Store.Database = "pokemon"
	}
	if c.Store.Container == "" {
		c.Store.Container = "cards"
	}
	if c.Store.ImageDimensions <= 0 {
		c.Store.ImageDimensions = 1024
	}
	if c.Store.CaptionDimensions <= 0 {
		c.Store.CaptionDimensions = 1536
	}
	if c.Store.VectorAlgorithm == "" {
		c.Store.VectorAlgorithm = "flat"
	}
	if c.Vision.APIVersion == "" {
		c.Vision.APIVersion = "2024-02-01"
	}
	if c.Vision.ModelVersion == "" {
		c.Vision.ModelVersion = "2022-04-11"
	}
	if c.Embedding.APIVersion == "" {
		c.Embedding.APIVersion = "2023-05-15"
	}
	if c.Embedding.Deployment == "" {
		c.Embedding.Deployment = "text-embedding-ada-002"
	}
	if c.Caption.APIVersion == "" {
		c.Caption.APIVersion = "2024-10-21"
	}
	if c.Caption.Deployment == "" {
		c.Caption.Deployment = "gpt-4o-card-descriptions"
	}
	if c.Caption.Temperature <= 0 {
		c.Caption.Temperature = 0.6
	}
	if c.Caption.MaxTokens <= 0 {
		c.Caption.MaxTokens = 6553
	}
	if c.Gateway.TimeoutSec <= 0 {
		c.Gateway.TimeoutSec = 30
	}
	if c.Search.ImageCutoff == 0 {
		c.Search.ImageCutoff = 0.8
	}
	if c.Search.KeywordLimit <= 0 {
		c.Search.KeywordLimit = 100
	}
	if c.Search.FallbackK <= 0 {
		c.Search.FallbackK = 10
	}
	if c.Enrichment.Concurrency <= 0 {
		c.Enrichment.Concurrency = 1
	}
	if c.Intake.PollIntervalSec <= 0 {
		c.Intake.PollIntervalSec = 60
	}
}

// Validate checks the configuration for correctness.
// Missing gateway credentials are not an error; that gateway degrades instead.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Store.Driver != "redis" {
		return fmt.Errorf("store.driver must be \"redis\", got %q", c.Store.Driver)
	}
	if len(c.Store.Addrs) == 0 {
		return fmt.Errorf("store.addrs is required")
	}
	if f := c.Logging.Format; f != "" && f != "json" && f != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", f)
	}
	if c.Store.VectorAlgorithm != "flat" && c.Store.VectorAlgorithm != "hnsw" {
		return fmt.Errorf("store.vector_algorithm must be flat or hnsw, got %q", c.Store.VectorAlgorithm)
	}
	if strings.ContainsAny(c.Store.Database+c.Store.Container, ": ") {
		return fmt.Errorf("store.database and store.container must not contain ':' or spaces")
	}
	if c.Search.ImageCutoff < 0 || c.Search.ImageCutoff >= 1 {
		return fmt.Errorf("search.image_cutoff must be in [0, 1), got %v", c.Search.ImageCutoff)
	}
	if c.Search.QueryCacheTTLSec < 0 {
		return fmt.Errorf("search.query_cache_ttl_sec must not be negative, got %d", c.Search.QueryCacheTTLSec)
	}
	if c.Gateway.RequestsPerSec < 0 {
		return fmt.Errorf("gateway.requests_per_sec must not be negative, got %v", c.Gateway.RequestsPerSec)
	}
	if (c.Intake.Bucket == "") != (c.Intake.Endpoint == "") {
		return fmt.Errorf("intake.endpoint and intake.bucket must be set together")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
