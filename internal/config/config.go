// Package config provides configuration for the dataset service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort            string        `yaml:"port" validate:"required"`
	ServerReadTimeout     time.Duration `yaml:"read_timeout"`
	ServerWriteTimeout    time.Duration `yaml:"write_timeout"`
	ServerShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Storage
	UploadDir  string `yaml:"upload_dir" validate:"required"`
	DatasetDir string `yaml:"dataset_dir" validate:"required"`

	// Directory watch
	WatchEnabled   bool          `yaml:"watch_enabled"`
	WatchExtension string        `yaml:"watch_extension" validate:"required,startswith=."`
	WatchWorkers   int           `yaml:"watch_workers" validate:"gte=1"`
	WatchQueueSize int           `yaml:"watch_queue_size" validate:"gte=0"`
	ReadRetries    int           `yaml:"read_retries" validate:"gte=1"`
	ReadRetryDelay time.Duration `yaml:"read_retry_delay" validate:"gte=0"`

	// LLM settings
	LLMProvider       string        `yaml:"llm_provider" validate:"oneof=openai anthropic gemini compat"`
	LLMModel          string        `yaml:"llm_model"`
	LLMBaseURL        string        `yaml:"llm_base_url" validate:"required_if=LLMProvider compat"`
	OpenAIAPIKey      string        `yaml:"-"`
	AnthropicAPIKey   string        `yaml:"-"`
	GeminiAPIKey      string        `yaml:"-"`
	ExtractionTimeout time.Duration `yaml:"extraction_timeout" validate:"gt=0"`
	MaxTokens         int           `yaml:"max_tokens" validate:"gte=0"`

	// HTTP API
	CORSOrigins    []string `yaml:"cors_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" validate:"gt=0"`
	OutcomeHistory int      `yaml:"outcome_history" validate:"gte=1"`
	OutcomeDB      string   `yaml:"outcome_db"`

	// JWT settings
	AuthEnabled bool   `yaml:"auth_enabled"`
	JWTSecret   string `yaml:"-" validate:"required_if=AuthEnabled true"`

	// Rate limiting
	RateLimitRequests int           `yaml:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`

	// NATS settings
	NATSEnabled  bool   `yaml:"nats_enabled"`
	NATSURL      string `yaml:"nats_url" validate:"required_if=NATSEnabled true"`
	NATSCAFile   string `yaml:"nats_ca_file"`
	NATSCertFile string `yaml:"nats_cert_file"`
	NATSKeyFile  string `yaml:"nats_key_file"`
	NATSToken    string `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Tracing
	TracingEndpoint string `yaml:"tracing_endpoint"`
	TracingEnabled  bool   `yaml:"tracing_enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerPort:            "8000",
		ServerReadTimeout:     30 * time.Second,
		ServerWriteTimeout:    180 * time.Second,
		ServerShutdownTimeout: 30 * time.Second,

		UploadDir:  "uploads",
		DatasetDir: "datasets",

		WatchEnabled:   false,
		WatchExtension: ".json",
		WatchWorkers:   1,
		WatchQueueSize: 64,
		ReadRetries:    5,
		ReadRetryDelay: time.Second,

		LLMProvider:       "openai",
		ExtractionTimeout: 120 * time.Second,

		CORSOrigins:    []string{"http://localhost:5173"},
		MaxUploadBytes: 32 << 20,
		OutcomeHistory: 512,

		RateLimitRequests: 30,
		RateLimitWindow:   time.Minute,

		NATSURL: "nats://localhost:4222",

		LogLevel: "info",

		TracingEndpoint: "localhost:4318",
	}
}

// Load builds the configuration. Values come from the defaults, then the
// optional YAML file at path, then the environment (including a .env file in
// the working directory).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// Server
	c.ServerPort = getEnv("PORT", c.ServerPort)
	c.ServerReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", c.ServerReadTimeout)
	c.ServerWriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", c.ServerWriteTimeout)
	c.ServerShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", c.ServerShutdownTimeout)

	// Storage
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.DatasetDir = getEnv("DATASET_DIR", c.DatasetDir)

	// Watch
	c.WatchEnabled = getBoolEnv("WATCH_ENABLED", c.WatchEnabled)
	c.WatchExtension = getEnv("WATCH_EXTENSION", c.WatchExtension)
	c.WatchWorkers = getIntEnv("WATCH_WORKERS", c.WatchWorkers)
	c.WatchQueueSize = getIntEnv("WATCH_QUEUE_SIZE", c.WatchQueueSize)
	c.ReadRetries = getIntEnv("READ_RETRIES", c.ReadRetries)
	c.ReadRetryDelay = getDurationEnv("READ_RETRY_DELAY", c.ReadRetryDelay)

	// LLM
	c.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLMProvider))
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.ExtractionTimeout = getDurationEnv("EXTRACTION_TIMEOUT", c.ExtractionTimeout)
	c.MaxTokens = getIntEnv("LLM_MAX_TOKENS", c.MaxTokens)

	// HTTP
	c.CORSOrigins = getListEnv("CORS_ORIGINS", c.CORSOrigins)
	c.MaxUploadBytes = int64(getIntEnv("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.OutcomeHistory = getIntEnv("OUTCOME_HISTORY", c.OutcomeHistory)
	c.OutcomeDB = getEnv("OUTCOME_DB", c.OutcomeDB)

	// JWT
	c.AuthEnabled = getBoolEnv("AUTH_ENABLED", c.AuthEnabled)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	// Rate limiting
	c.RateLimitRequests = getIntEnv("RATE_LIMIT_REQUESTS", c.RateLimitRequests)
	c.RateLimitWindow = getDurationEnv("RATE_LIMIT_WINDOW", c.RateLimitWindow)

	// NATS
	c.NATSEnabled = getBoolEnv("NATS_ENABLED", c.NATSEnabled)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSCAFile = getEnv("NATS_CA_FILE", c.NATSCAFile)
	c.NATSCertFile = getEnv("NATS_CERT_FILE", c.NATSCertFile)
	c.NATSKeyFile = getEnv("NATS_KEY_FILE", c.NATSKeyFile)
	c.NATSToken = getEnv("NATS_TOKEN", c.NATSToken)

	// Logging
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	// Tracing
	c.TracingEndpoint = getEnv("TRACING_ENDPOINT", c.TracingEndpoint)
	c.TracingEnabled = getBoolEnv("TRACING_ENABLED", c.TracingEnabled)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// APIKey returns the key of the configured LLM provider.
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
