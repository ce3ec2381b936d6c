// Package config loads runtime settings from an optional config file, a .env
// file and EVENTBOT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Shivanand-hulikatti/eventbot/internal/database"
)

const envPrefix = "EVENTBOT"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Store     StoreConfig     `mapstructure:"store"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Policy    PolicyConfig    `mapstructure:"policy"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port" validate:"required,numeric"`
	// BaseURL is the public address encoded into event QR codes.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

type StoreConfig struct {
	Driver   string          `mapstructure:"driver" validate:"oneof=postgres sqlite memory"`
	Postgres database.Config `mapstructure:"postgres"`
	SQLite   SQLiteConfig    `mapstructure:"sqlite"`
	Migrate  bool            `mapstructure:"migrate"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval" validate:"gt=0"`
	ReminderLead time.Duration `mapstructure:"reminder_lead" validate:"gt=0"`
	Workers      int           `mapstructure:"workers" validate:"min=1,max=256"`
}

type NotifierConfig struct {
	Driver  string        `mapstructure:"driver" validate:"oneof=log telegram queue"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type TelegramConfig struct {
	Token  string   `mapstructure:"token"`
	ChatID int64    `mapstructure:"chat_id"`
	Admins []string `mapstructure:"admins"`
	// Community scopes every event created through the bot.
	Community string `mapstructure:"community"`
	Gateway   bool   `mapstructure:"gateway"`
}

type QueueConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"min=0"`
	Name          string `mapstructure:"name"`
}

type PolicyConfig struct {
	AllowOngoingJoins bool `mapstructure:"allow_ongoing_joins"`
	RejectPastStart   bool `mapstructure:"reject_past_start"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.base_url", "http://localhost:8080")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.migrate", true)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", "5432")
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "postgres")
	v.SetDefault("store.postgres.name", "eventbot")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.postgres.max_conns", 20)
	v.SetDefault("store.sqlite.path", "eventbot.db")

	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("scheduler.reminder_lead", 30*time.Minute)
	v.SetDefault("scheduler.workers", 8)

	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.timeout", 10*time.Second)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.admins", []string{})
	v.SetDefault("telegram.community", "telegram")
	v.SetDefault("telegram.gateway", true)

	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.name", "eventbot")

	v.SetDefault("policy.allow_ongoing_joins", true)
	v.SetDefault("policy.reject_past_start", false)
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment are consulted.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs the struct tags plus the checks that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Scheduler.Interval > c.Scheduler.ReminderLead {
		return fmt.Errorf("invalid config: scheduler.interval %s exceeds scheduler.reminder_lead %s",
			c.Scheduler.Interval, c.Scheduler.ReminderLead)
	}
	if c.Notifier.Driver == "telegram" || (c.Telegram.Gateway && c.Telegram.Token != "") {
		if c.Telegram.Token == "" || c.Telegram.ChatID == 0 {
			return errors.New("invalid config: telegram.token and telegram.chat_id are required")
		}
	}
	if c.Notifier.Driver == "queue" && c.Queue.RedisAddr == "" {
		return errors.New("invalid config: queue.redis_addr is required for the queue notifier")
	}
	if c.Store.Driver == "sqlite" && c.Store.SQLite.Path == "" {
		return errors.New("invalid config: store.sqlite.path is required")
	}
	return nil
}
