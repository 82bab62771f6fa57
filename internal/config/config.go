// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	OpenAIKey       string            `yaml:"openai_key"`
	OpenAIBaseURL   string            `yaml:"openai_base_url"`
	GeminiKey       string            `yaml:"gemini_key"`
	GeminiURL       string            `yaml:"gemini_url"`
	DefaultModel    string            `yaml:"default_model"`
	ModelProviders  map[string]string `yaml:"model_providers"`  // model name -> provider override
	ConcurrentLimit int               `yaml:"concurrent_limit"` // max concurrent AI calls
}

type QueueConfig struct {
	Workers           int           `yaml:"workers"`            // fixed worker capacity
	PollInterval      time.Duration `yaml:"poll_interval"`      // scheduler tick
	MonitorInterval   time.Duration `yaml:"monitor_interval"`   // load-monitor tick
	BatchCap          int           `yaml:"batch_cap"`          // max claims per tick
	MaxRetries        int           `yaml:"max_retries"`        // default retry budget
	JobTimeout        time.Duration `yaml:"job_timeout"`        // hard per-job bound
	BacklogMultiple   int           `yaml:"backlog_multiple"`   // advisory threshold = workers * this
	TerminalRetention time.Duration `yaml:"terminal_retention"` // completed/failed retention
}

type ConversationConfig struct {
	TTL           time.Duration `yaml:"ttl"`            // sliding window
	SweepInterval time.Duration `yaml:"sweep_interval"` // orphan sweep cadence
	RecentWindow  int           `yaml:"recent_window"`  // messages sent to the model
}

type Config struct {
	Log          LogConfig          `yaml:"log"`
	Admin        AdminConfig        `yaml:"admin"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	AI           AIConfig           `yaml:"ai"`
	Queue        QueueConfig        `yaml:"queue"`
	Conversation ConversationConfig `yaml:"conversation"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = time.Second
	}
	if cfg.Queue.MonitorInterval <= 0 {
		cfg.Queue.MonitorInterval = 5 * time.Second
	}
	if cfg.Queue.BatchCap <= 0 {
		cfg.Queue.BatchCap = cfg.Queue.Workers
	}
	if cfg.Queue.MaxRetries <= 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Queue.JobTimeout <= 0 {
		cfg.Queue.JobTimeout = 60 * time.Second
	}
	if cfg.Queue.BacklogMultiple <= 0 {
		cfg.Queue.BacklogMultiple = 10
	}
	if cfg.Queue.TerminalRetention <= 0 {
		cfg.Queue.TerminalRetention = 24 * time.Hour
	}
	if cfg.Conversation.TTL <= 0 {
		cfg.Conversation.TTL = 30 * time.Minute
	}
	if cfg.Conversation.SweepInterval <= 0 {
		cfg.Conversation.SweepInterval = 5 * time.Minute
	}
	if cfg.Conversation.RecentWindow <= 0 {
		cfg.Conversation.RecentWindow = 15
	}

	// Minimal validation
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
