package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Storage       StorageConfig    `json:"storage"`
	Attachments   AttachmentConfig `json:"attachments"`
	AutoSave      AutoSaveConfig   `json:"auto_save"`
	Document      DocumentConfig   `json:"document"`
	Jobs          JobsConfig       `json:"jobs"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	SeedSamples   bool             `json:"seed_samples"`

	// MaxUploadSize bounds imported documents, in bytes.
	MaxUploadSize     int64 `json:"max_upload_size"`
	ImportRateLimitMs int   `json:"import_rate_limit_ms"`
	JWTTTLHours       int   `json:"jwt_ttl_hours"`
}

type StorageConfig struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
	Cache CacheConfig `json:"cache"`
}

// AttachmentConfig selects where image and file cell uploads go. An empty
// Type disables uploads.
type AttachmentConfig struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data"`
	MaxSize int64       `json:"max_size"`
}

type CacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

type AutoSaveConfig struct {
	DelayMs       int `json:"delay_ms"`
	SaveTimeoutMs int `json:"save_timeout_ms"`
}

type DocumentConfig struct {
	Language    string `json:"language"`
	Environment string `json:"environment"`
	Author      string `json:"author"`
}

type JobsConfig struct {
	IntegrityCheckSpec string `json:"integrity_check_spec"`
	IntegrityWorkers   int    `json:"integrity_workers"`
}

var storageTypes = map[string]struct{}{
	"memory":   {},
	"local":    {},
	"redis":    {},
	"s3":       {},
	"gcs":      {},
	"postgres": {},
}

// Default returns the configuration used when no config file is given:
// in-memory storage and the built-in defaults.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.applyDefaults()
	return cfg
}

// Load reads a JSON or YAML config file, picked by extension.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data, err := json.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	cfg.Storage.Type = strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	if _, ok := storageTypes[cfg.Storage.Type]; !ok {
		return fmt.Errorf("storage.type must be one of memory, local, redis, s3, gcs, postgres")
	}
	if cfg.Storage.Type != "memory" && cfg.Storage.Data == nil {
		return fmt.Errorf("storage.data is required for %s storage", cfg.Storage.Type)
	}
	if cfg.Storage.Cache.Size > 0 && cfg.Storage.Cache.TTLSeconds == 0 {
		cfg.Storage.Cache.TTLSeconds = 300
	}
	if cfg.AutoSave.DelayMs == 0 {
		cfg.AutoSave.DelayMs = 2000
	}
	if cfg.AutoSave.SaveTimeoutMs == 0 {
		cfg.AutoSave.SaveTimeoutMs = 10000
	}
	if cfg.AutoSave.DelayMs < 0 || cfg.AutoSave.SaveTimeoutMs < 0 {
		return fmt.Errorf("auto_save delays must not be negative")
	}
	if cfg.Document.Environment == "" {
		cfg.Document.Environment = "development"
	}
	if cfg.Document.Language == "" {
		cfg.Document.Language = "en"
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 5 * 1024 * 1024
	}
	if cfg.ImportRateLimitMs < 0 {
		cfg.ImportRateLimitMs = 0
	}
	if cfg.JWTTTLHours <= 0 {
		cfg.JWTTTLHours = 24 * 7
	}
	cfg.Attachments.Type = strings.ToLower(strings.TrimSpace(cfg.Attachments.Type))
	if cfg.Attachments.MaxSize <= 0 {
		cfg.Attachments.MaxSize = 10 * 1024 * 1024
	}
	if cfg.Jobs.IntegrityWorkers <= 0 {
		cfg.Jobs.IntegrityWorkers = 4
	}
	return nil
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}
