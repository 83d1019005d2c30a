package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds application configuration. Values come from an optional YAML
// file and are overridden by environment variables.
type Config struct {
	LogLevel       string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	Port           string    `yaml:"port" env:"PORT" env-default:"8080"`
	Store          string    `yaml:"store" env:"STORE" env-default:"memory"`
	DatabaseURL    string    `yaml:"database-url" env:"DATABASE_URL"`
	AllowedOrigins []string  `yaml:"allowed-origins" env:"ALLOWED_ORIGINS" env-separator:","`
	MaxBoardSize   int       `yaml:"max-board-size" env:"MAX_BOARD_SIZE" env-default:"25"`
	Redis          Redis     `yaml:"redis"`
	Session        Session   `yaml:"session"`
	AI             AI        `yaml:"ai"`
	RateLimit      RateLimit `yaml:"rate-limit"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Session struct {
	SaveTimeout       time.Duration `yaml:"save-timeout" env:"SAVE_TIMEOUT" env-default:"5s"`
	SweepInterval     time.Duration `yaml:"sweep-interval" env:"SWEEP_INTERVAL" env-default:"1s"`
	UndoElapsedPolicy string        `yaml:"undo-elapsed-policy" env:"UNDO_ELAPSED_POLICY" env-default:"cancel"`
}

type AI struct {
	// URL of the remote engine; remote seats are refused when empty.
	URL         string        `yaml:"url" env:"AI_URL"`
	Timeout     time.Duration `yaml:"timeout" env:"AI_TIMEOUT" env-default:"10s"`
	BotSeed     int64         `yaml:"bot-seed" env:"BOT_SEED" env-default:"0"`
	MaxFailures int           `yaml:"max-failures" env:"AI_MAX_FAILURES" env-default:"3"`
}

type RateLimit struct {
	Limit  int           `yaml:"limit" env:"RATE_LIMIT" env-default:"120"`
	Window time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

// Load reads the YAML file at path, or only the environment when path is
// empty, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: store %q needs DATABASE_URL", c.Store)
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: store %q needs REDIS_ADDR", c.Store)
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}

	switch c.Session.UndoElapsedPolicy {
	case "cancel", "reject":
	default:
		return fmt.Errorf("config: unknown undo elapsed policy %q", c.Session.UndoElapsedPolicy)
	}

	if c.MaxBoardSize < 1 || c.MaxBoardSize > 99 {
		return fmt.Errorf("config: max board size %d out of range", c.MaxBoardSize)
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep interval must be positive")
	}
	return nil
}
