// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL           string        `yaml:"url"`
	MaxConns      int32         `yaml:"max_conns"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // preferences cache
}

type AIConfig struct {
	Provider        string        `yaml:"provider"` // openai|gemini|multi|noop
	OpenAIKey       string        `yaml:"openai_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	GeminiKey       string        `yaml:"gemini_key"`
	DefaultModel    string        `yaml:"default_model"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	MaxPromptTokens int           `yaml:"max_prompt_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	Timezone       string `yaml:"timezone"`
	RunHour        int    `yaml:"run_hour"`
	TickCron       string `yaml:"tick_cron"` // empty disables the in-process tick
	TickWorkers    int    `yaml:"tick_workers"`
	MaxAttempts    int    `yaml:"max_attempts"`
	ClaimBatchSize int    `yaml:"claim_batch_size"`
}

type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	CronSecret string `yaml:"cron_secret"`
}

type TelegramConfig struct {
	Token        string  `yaml:"token"`
	AlertChatIDs []int64 `yaml:"alert_chat_ids"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RateLimitConfig struct {
	RunLimit  int           `yaml:"run_limit"`
	RunWindow time.Duration `yaml:"run_window"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Auth      AuthConfig      `yaml:"auth"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig parses the -config and -dev flags and loads the file they point at.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	// A missing .env is fine outside dev setups.
	_ = godotenv.Load()

	return Load(configPath, dev)
}

// Load reads the yaml file at path, applies env overrides and defaults and
// validates the result.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	if cfg.Scheduler.RunHour < 0 || cfg.Scheduler.RunHour > 23 {
		return nil, fmt.Errorf("scheduler.run_hour must be within 0..23, got %d", cfg.Scheduler.RunHour)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"DATABASE_URL":       &cfg.Database.URL,
		"REDIS_URL":          &cfg.Redis.URL,
		"REDIS_PASSWORD":     &cfg.Redis.Password,
		"JWT_SECRET":         &cfg.Auth.JWTSecret,
		"CRON_SECRET":        &cfg.Auth.CronSecret,
		"OPENAI_API_KEY":     &cfg.AI.OpenAIKey,
		"GEMINI_API_KEY":     &cfg.AI.GeminiKey,
		"TELEGRAM_BOT_TOKEN": &cfg.Telegram.Token,
		"MEAL_PLAN_TIMEZONE": &cfg.Scheduler.Timezone,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		cfg.HTTP.Port = port
	}
	if v := os.Getenv("TELEGRAM_ALERT_CHAT_IDS"); v != "" {
		ids, err := parseChatIDs(v)
		if err != nil {
			return fmt.Errorf("TELEGRAM_ALERT_CHAT_IDS: %w", err)
		}
		cfg.Telegram.AlertChatIDs = ids
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 2 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.StatsInterval <= 0 {
		cfg.Database.StatsInterval = 15 * time.Second
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.MaxPromptTokens <= 0 {
		cfg.AI.MaxPromptTokens = 4000
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 90 * time.Second
	}

	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "Europe/Amsterdam"
	}
	if cfg.Scheduler.RunHour == 0 {
		cfg.Scheduler.RunHour = 9
	}
	if cfg.Scheduler.TickWorkers <= 0 {
		cfg.Scheduler.TickWorkers = 2
	}
	if cfg.Scheduler.MaxAttempts <= 0 {
		cfg.Scheduler.MaxAttempts = 3
	}
	if cfg.Scheduler.ClaimBatchSize <= 0 {
		cfg.Scheduler.ClaimBatchSize = 10
	}

	if cfg.RateLimit.RunLimit <= 0 {
		cfg.RateLimit.RunLimit = 5
	}
	if cfg.RateLimit.RunWindow <= 0 {
		cfg.RateLimit.RunWindow = time.Minute
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

func parseChatIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
