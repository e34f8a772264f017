package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

type Config struct {
	Env    string `mapstructure:"env"`
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Session struct {
		Budget time.Duration `mapstructure:"budget"` // total time allowed per student
		Tick   time.Duration `mapstructure:"tick"`   // countdown cadence
	} `mapstructure:"session"`
	Store struct {
		Driver     string `mapstructure:"driver"`
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"store"`
	Redis struct {
		Addr     string        `mapstructure:"addr"`
		Password string        `mapstructure:"password"`
		DB       int           `mapstructure:"db"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"redis"`
	Postgres struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"postgres"`
	Questions struct {
		File string        `mapstructure:"file"`
		TTL  time.Duration `mapstructure:"ttl"`
	} `mapstructure:"questions"`
	Reporter struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"reporter"`
}

// Load reads YAML config from path (missing file is fine) with environment
// overrides such as REDIS_ADDR or SESSION_BUDGET.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetDefault("env", "local")
	v.SetDefault("server.port", "8080")
	v.SetDefault("session.budget", "2h")
	v.SetDefault("session.tick", "1s")
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.sqlite_path", "data/assessment.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("postgres.url", "")
	v.SetDefault("questions.file", "")
	v.SetDefault("questions.ttl", "10m")
	v.SetDefault("reporter.url", "")
	v.SetDefault("reporter.timeout", "5s")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("env", "ENV", "APP_ENV")
	_ = v.BindEnv("postgres.url", "POSTGRES_URL", "DATABASE_URL")

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			// an explicit path that does not exist surfaces as a PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("error loading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if cfg.Store.Driver == StoreRedis && cfg.Redis.Addr == "" {
		return Config{}, fmt.Errorf("store driver %q requires redis.addr", cfg.Store.Driver)
	}
	return cfg, nil
}
