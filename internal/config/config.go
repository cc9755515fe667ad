// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
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

type ServerConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type AdminConfig struct {
	Port int `yaml:"port"` // metrics + health
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // config cache TTL
}

type GatewayConfig struct {
	BaseURL   string        `yaml:"base_url"`
	KeyID     string        `yaml:"key_id"`
	KeySecret string        `yaml:"key_secret"`
	Timeout   time.Duration `yaml:"timeout"`
	Noop      bool          `yaml:"noop"` // in-process gateway for local runs
}

type SchedulerConfig struct {
	BillingInterval   time.Duration `yaml:"billing_interval"`
	BillingBatchSize  int           `yaml:"billing_batch_size"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileAfter    time.Duration `yaml:"reconcile_after"` // processing age before reconciling
	ReconcileBatch    int           `yaml:"reconcile_batch"`
	FailAfter         time.Duration `yaml:"fail_after"` // unresolved processing age before failing
	Workers           int           `yaml:"workers"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
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
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 9090
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Scheduler.BillingInterval <= 0 {
		cfg.Scheduler.BillingInterval = time.Hour
	}
	if cfg.Scheduler.BillingBatchSize <= 0 {
		cfg.Scheduler.BillingBatchSize = 100
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 5 * time.Minute
	}
	if cfg.Scheduler.ReconcileAfter <= 0 {
		cfg.Scheduler.ReconcileAfter = 10 * time.Minute
	}
	if cfg.Scheduler.ReconcileBatch <= 0 {
		cfg.Scheduler.ReconcileBatch = 50
	}
	if cfg.Scheduler.FailAfter <= 0 {
		cfg.Scheduler.FailAfter = 24 * time.Hour
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 8
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 30 * time.Second
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Server.JWTSecret == "" && !dev {
		return nil, errors.New("server.jwt_secret is required")
	}
	if !cfg.Gateway.Noop && cfg.Gateway.BaseURL == "" {
		return nil, errors.New("gateway.base_url is required unless gateway.noop is set")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
