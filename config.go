package boardflow

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// ModelConfig selects and configures the language model backend.
type ModelConfig struct {
	// Endpoint is an OpenAI-compatible chat completions URL. Empty means
	// the scripted backend, which is only useful for demos and tests.
	Endpoint string `yaml:"endpoint"`

	// APIKeyEnv names the environment variable holding the API key. The
	// key itself never lives in the config file.
	APIKeyEnv string `yaml:"api_key_env"`

	// Name is the model identifier sent to the endpoint.
	Name string `yaml:"name"`

	// Timeout bounds a single model call.
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Config is the full daemon configuration.
type Config struct {
	Server   ServerConfig `yaml:"server"`
	Model    ModelConfig  `yaml:"model"`
	LogLevel string       `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          "localhost:8787",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			APIKeyEnv: "BOARDFLOW_API_KEY",
			Timeout:   60 * time.Second,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML config file, filling unset fields from
// DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.Model.Endpoint != "" && c.Model.Name == "" {
		return fmt.Errorf("model.name is required when model.endpoint is set")
	}
	return nil
}

// BuildLogger constructs the process logger at the configured level.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// BuildModel constructs the model client named by the config. A missing
// endpoint yields an error: the caller decides whether a scripted model
// is an acceptable substitute.
func (c *Config) BuildModel() (ModelClient, error) {
	if c.Model.Endpoint == "" {
		return nil, fmt.Errorf("model.endpoint is not configured")
	}
	apiKey := ""
	if c.Model.APIKeyEnv != "" {
		apiKey = os.Getenv(c.Model.APIKeyEnv)
	}
	return NewHTTPModel(c.Model.Endpoint, apiKey, c.Model.Name, c.Model.Timeout), nil
}
