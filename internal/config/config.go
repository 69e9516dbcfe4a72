// Package config provides configuration for the conversation service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort     int `yaml:"http_port"`
	InternalPort int `yaml:"internal_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Model invocation
	Mode           string        `yaml:"mode"`
	LLMBaseURL     string        `yaml:"llm_base_url"`
	LLMAPIKey      string        `yaml:"llm_api_key"`
	LLMModel       string        `yaml:"llm_model"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`
	Temperature    float64       `yaml:"temperature"`
	ModelAttempts  int           `yaml:"model_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`

	// Search augmentation
	SearchURL     string        `yaml:"search_url"`
	SearchTimeout time.Duration `yaml:"search_timeout"`

	// Quota ledger
	RedisAddr string `yaml:"redis_addr"`

	// Budgets (estimated tokens)
	PromptBudget  int `yaml:"prompt_budget_tokens"`
	HistoryBudget int `yaml:"history_budget_tokens"`

	// Semantic cache
	CacheMaxEntries    int           `yaml:"cache_max_entries"`
	CacheSweepInterval time.Duration `yaml:"cache_sweep_interval"`
	CacheSessionScoped bool          `yaml:"cache_session_scoped"`

	// Branching
	MaxBranchDepth int `yaml:"max_branch_depth"`

	// Persona and locale
	AssistantName   string `yaml:"assistant_name"`
	DefaultTimezone string `yaml:"default_timezone"`

	// Plan policy
	PolicyFile string `yaml:"policy_file"`

	// Timeouts
	AnalyticsTimeout time.Duration `yaml:"analytics_timeout"`

	// Logging
	LogMode string `yaml:"log_mode"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTPPort:           8080,
		InternalPort:       8081,
		DatabaseURL:        "file:convo.db?cache=shared&mode=rwc",
		LLMBaseURL:         "http://localhost:4000",
		LLMModel:           "gpt-4o-mini",
		LLMTimeout:         60 * time.Second,
		Temperature:        0.7,
		ModelAttempts:      3,
		RetryBaseDelay:     500 * time.Millisecond,
		SearchTimeout:      4 * time.Second,
		PromptBudget:       600,
		HistoryBudget:      2000,
		CacheMaxEntries:    10000,
		CacheSweepInterval: time.Minute,
		MaxBranchDepth:     5,
		AssistantName:      "Saathi",
		DefaultTimezone:    "Asia/Kolkata",
		AnalyticsTimeout:   2 * time.Second,
		LogMode:            "dev",
	}
}

// Load loads configuration from an optional YAML file named by CONVO_CONFIG,
// then applies environment variable overrides.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONVO_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.InternalPort = getEnvInt("INTERNAL_PORT", c.InternalPort)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.Mode = getEnv("CONVO_MODE", c.Mode)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMAPIKey = getEnv("LLM_API_KEY", c.LLMAPIKey)
	c.LLMModel = getEnv("LLM_MODEL", c.LLMModel)
	c.LLMTimeout = getEnvDuration("LLM_TIMEOUT_MS", c.LLMTimeout)
	c.Temperature = getEnvFloat("LLM_TEMPERATURE", c.Temperature)
	c.ModelAttempts = getEnvInt("MODEL_ATTEMPTS", c.ModelAttempts)
	c.RetryBaseDelay = getEnvDuration("RETRY_BASE_DELAY_MS", c.RetryBaseDelay)
	c.SearchURL = getEnv("SEARCH_URL", c.SearchURL)
	c.SearchTimeout = getEnvDuration("SEARCH_TIMEOUT_MS", c.SearchTimeout)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.PromptBudget = getEnvInt("PROMPT_BUDGET_TOKENS", c.PromptBudget)
	c.HistoryBudget = getEnvInt("HISTORY_BUDGET_TOKENS", c.HistoryBudget)
	c.CacheMaxEntries = getEnvInt("CACHE_MAX_ENTRIES", c.CacheMaxEntries)
	c.CacheSweepInterval = getEnvDuration("CACHE_SWEEP_INTERVAL_MS", c.CacheSweepInterval)
	c.CacheSessionScoped = getEnvBool("CACHE_SESSION_SCOPED", c.CacheSessionScoped)
	c.MaxBranchDepth = getEnvInt("MAX_BRANCH_DEPTH", c.MaxBranchDepth)
	c.AssistantName = getEnv("ASSISTANT_NAME", c.AssistantName)
	c.DefaultTimezone = getEnv("DEFAULT_TIMEZONE", c.DefaultTimezone)
	c.PolicyFile = getEnv("POLICY_FILE", c.PolicyFile)
	c.AnalyticsTimeout = getEnvDuration("ANALYTICS_TIMEOUT_MS", c.AnalyticsTimeout)
	c.LogMode = getEnv("LOG_MODE", c.LogMode)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.PromptBudget <= 0 {
		problems = append(problems, "prompt budget must be positive")
	}
	if c.HistoryBudget <= 0 {
		problems = append(problems, "history budget must be positive")
	}
	if c.ModelAttempts < 1 {
		problems = append(problems, "model attempts must be at least 1")
	}
	if c.CacheMaxEntries <= 0 {
		problems = append(problems, "cache max entries must be positive")
	}
	if c.CacheSweepInterval <= 0 {
		problems = append(problems, "cache sweep interval must be positive")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		problems = append(problems, fmt.Sprintf("unknown default timezone %q", c.DefaultTimezone))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a millisecond count.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}
