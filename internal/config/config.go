package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/medsecure/telehealth/internal/core"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"

	EventsMemory = "memory"
	EventsRedis  = "redis"
)

type Config struct {
	HTTPPort    string `yaml:"http_port"`
	DatabaseURL string `yaml:"database_url"`
	LogLevel    string `yaml:"log_level"`

	JWTSecret     string        `yaml:"jwt_secret"`
	StaffTokenTTL time.Duration `yaml:"staff_token_ttl"`

	GeminiAPIKey    string `yaml:"gemini_api_key"`
	EmbeddingModel  string `yaml:"embedding_model"`
	GeminiChatModel string `yaml:"gemini_chat_model"`

	LLMProvider      string `yaml:"llm_provider"`
	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
	LLMBaseURL       string `yaml:"llm_base_url"`
	LLMModel         string `yaml:"llm_model"`

	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	StaffMatchMode      string  `yaml:"staff_match_mode"`

	EventsBackend string `yaml:"events_backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, a .env file and finally the process environment.
func Load() (*Config, error) {
	// A missing .env file is fine, the environment may carry everything.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		HTTPPort:            "8080",
		DatabaseURL:         "telehealth.db",
		LogLevel:            "INFO",
		StaffTokenTTL:       12 * time.Hour,
		EmbeddingModel:      "text-embedding-004",
		GeminiChatModel:     "gemini-1.5-flash-latest",
		LLMProvider:         ProviderOpenRouter,
		LLMBaseURL:          "https://openrouter.ai/api/v1",
		LLMModel:            "openai/gpt-3.5-turbo",
		SimilarityThreshold: 0.85,
		StaffMatchMode:      core.MatchNormalized,
		EventsBackend:       EventsMemory,
		RedisAddr:           "127.0.0.1:6379",
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.GeminiChatModel = getEnv("GEMINI_CHAT_MODEL", c.GeminiChatModel)
	c.LLMProvider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLMProvider))
	c.OpenRouterAPIKey = getEnv("OPENROUTER_API_KEY", c.OpenRouterAPIKey)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.StaffMatchMode = strings.ToLower(getEnv("STAFF_MATCH_MODE", c.StaffMatchMode))
	c.EventsBackend = strings.ToLower(getEnv("EVENTS_BACKEND", c.EventsBackend))
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)

	var err error
	if c.StaffTokenTTL, err = getEnvAsDuration("STAFF_TOKEN_TTL", c.StaffTokenTTL); err != nil {
		return err
	}
	if c.SimilarityThreshold, err = getEnvAsFloat32("SIMILARITY_THRESHOLD", c.SimilarityThreshold); err != nil {
		return err
	}
	if c.RedisDB, err = getEnvAsInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the service cannot start with. API keys are left
// to the downstream clients, which fail on first use.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %v", c.SimilarityThreshold)
	}
	if c.StaffTokenTTL <= 0 {
		return fmt.Errorf("staff token ttl must be positive, got %s", c.StaffTokenTTL)
	}
	switch c.LLMProvider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}
	switch c.StaffMatchMode {
	case core.MatchNormalized, core.MatchExact:
	default:
		return fmt.Errorf("unknown staff match mode %q", c.StaffMatchMode)
	}
	switch c.EventsBackend {
	case EventsMemory, EventsRedis:
	default:
		return fmt.Errorf("unknown events backend %q", c.EventsBackend)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsFloat32(key string, defaultValue float32) (float32, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return float32(value), nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
