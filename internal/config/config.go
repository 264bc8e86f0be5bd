package config

import (
	"fmt"
	"os"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/thumbcache/internal/domain"
	"github.com/yokitheyo/thumbcache/internal/helpers"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Thumbnail   ThumbnailConfig   `mapstructure:"thumbnail"`
	Placeholder PlaceholderConfig `mapstructure:"placeholder"`
	Compression CompressionConfig `mapstructure:"compression"`
	Mirror      MirrorConfig      `mapstructure:"mirror"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr               string `mapstructure:"addr"`
	Mode               string `mapstructure:"mode"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec"`
}

type ThumbnailConfig struct {
	CacheRoot         string            `mapstructure:"cache_root"`
	BasePath          string            `mapstructure:"base_path"`
	URLPrefix         string            `mapstructure:"url_prefix"`
	CacheExpireSec    int               `mapstructure:"cache_expire_sec"`
	DefaultQuality    int               `mapstructure:"default_quality"`
	RequestTimeoutSec int               `mapstructure:"request_timeout_sec"`
	Aliases           map[string]string `mapstructure:"aliases"`
}

type PlaceholderConfig struct {
	Strategy        string `mapstructure:"strategy"`
	BackgroundColor string `mapstructure:"background_color"`
	TextColor       string `mapstructure:"text_color"`
	Text            string `mapstructure:"text"`
	TextSize        int    `mapstructure:"text_size"`
	Random          bool   `mapstructure:"random"`
	Cache           bool   `mapstructure:"cache"`
	RemoteURL       string `mapstructure:"remote_url"`
	FontPath        string `mapstructure:"font_path"`
	FetchTimeoutSec int    `mapstructure:"fetch_timeout_sec"`
	MaxFetchSizeMB  int    `mapstructure:"max_fetch_size_mb"`
}

type CompressionConfig struct {
	Credential string `mapstructure:"credential"`
	Endpoint   string `mapstructure:"endpoint"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
}

type MirrorConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Prefix      string `mapstructure:"prefix"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func Load(path string) (*Config, error) {
	cfg := config.New()

	configPath := path
	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		} else if _, err := os.Stat("/app/config.yaml"); err == nil {
			configPath = "/app/config.yaml"
		} else {
			return nil, fmt.Errorf("config.yaml not found")
		}
	}

	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = ""
	}

	if err := cfg.Load(configPath, envPath, "APP"); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	appConfig := &Config{}
	if err := cfg.Unmarshal(appConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(appConfig)

	if err := validateConfig(appConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	zlog.Logger.Info().
		Str("cache_root", appConfig.Thumbnail.CacheRoot).
		Str("base_path", appConfig.Thumbnail.BasePath).
		Str("url_prefix", appConfig.Thumbnail.URLPrefix).
		Int("cache_expire_sec", appConfig.Thumbnail.CacheExpireSec).
		Int("default_quality", appConfig.Thumbnail.DefaultQuality).
		Str("placeholder_strategy", appConfig.Placeholder.Strategy).
		Bool("compression_enabled", appConfig.Compression.Credential != "").
		Bool("mirror_enabled", appConfig.Mirror.Enabled).
		Msg("Config loaded successfully via wbf")

	return appConfig, nil
}

// applyDefaults fills values the original component shipped with. Zero
// cache_expire_sec is meaningful ("never expire") and is left alone.
func applyDefaults(cfg *Config) {
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Thumbnail.URLPrefix == "" {
		cfg.Thumbnail.URLPrefix = "/thumbnails"
	}
	if cfg.Thumbnail.DefaultQuality == 0 {
		cfg.Thumbnail.DefaultQuality = 92
	}
	if cfg.Placeholder.Strategy == "" {
		cfg.Placeholder.Strategy = string(domain.PlaceholderRemoteURL)
	}
	if cfg.Placeholder.BackgroundColor == "" {
		cfg.Placeholder.BackgroundColor = "#f5f5f5"
	}
	if cfg.Placeholder.TextColor == "" {
		cfg.Placeholder.TextColor = "#cdcdcd"
	}
	if cfg.Placeholder.Text == "" {
		cfg.Placeholder.Text = "No image"
	}
	if cfg.Placeholder.TextSize == 0 {
		cfg.Placeholder.TextSize = 20
	}
	if cfg.Placeholder.RemoteURL == "" {
		cfg.Placeholder.RemoteURL = "https://placehold.co"
	}
	if cfg.Placeholder.FetchTimeoutSec == 0 {
		cfg.Placeholder.FetchTimeoutSec = 10
	}
	if cfg.Placeholder.MaxFetchSizeMB == 0 {
		cfg.Placeholder.MaxFetchSizeMB = 5
	}
	if cfg.Compression.Endpoint == "" {
		cfg.Compression.Endpoint = "https://api.tinify.com"
	}
	if cfg.Compression.TimeoutSec == 0 {
		cfg.Compression.TimeoutSec = 30
	}
	if cfg.Compression.MaxSizeMB == 0 {
		cfg.Compression.MaxSizeMB = 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	// APP_KAFKA_BROKERS arrives as a single comma separated entry.
	brokers := make([]string, 0, len(cfg.Kafka.Brokers))
	for _, b := range cfg.Kafka.Brokers {
		brokers = append(brokers, helpers.SplitAndTrim(b, ",")...)
	}
	cfg.Kafka.Brokers = brokers
}

func validateConfig(cfg *Config) error {
	// Thumbnail
	if cfg.Thumbnail.CacheRoot == "" {
		return fmt.Errorf("thumbnail.cache_root is required")
	}
	if cfg.Thumbnail.CacheExpireSec < 0 {
		return fmt.Errorf("thumbnail.cache_expire_sec must be non-negative (0 = never expire)")
	}
	if cfg.Thumbnail.DefaultQuality < domain.MinQuality || cfg.Thumbnail.DefaultQuality > domain.MaxQuality {
		return fmt.Errorf("thumbnail.default_quality must be in [1,100]")
	}
	if cfg.Thumbnail.RequestTimeoutSec < 0 {
		return fmt.Errorf("thumbnail.request_timeout_sec must be non-negative")
	}

	// Placeholder
	defaults := cfg.PlaceholderDefaults()
	if err := defaults.Validate(); err != nil {
		return fmt.Errorf("placeholder: %w", err)
	}
	if cfg.Placeholder.FetchTimeoutSec <= 0 {
		return fmt.Errorf("placeholder.fetch_timeout_sec must be positive")
	}
	if cfg.Placeholder.MaxFetchSizeMB <= 0 {
		return fmt.Errorf("placeholder.max_fetch_size_mb must be positive")
	}

	// Compression
	if cfg.Compression.Credential != "" && cfg.Compression.TimeoutSec <= 0 {
		return fmt.Errorf("compression.timeout_sec must be positive")
	}

	// Mirror
	if cfg.Mirror.Enabled {
		if cfg.Mirror.S3Endpoint == "" {
			return fmt.Errorf("mirror.s3_endpoint is required when mirror is enabled")
		}
		if cfg.Mirror.S3Bucket == "" {
			return fmt.Errorf("mirror.s3_bucket is required when mirror is enabled")
		}
		if cfg.Mirror.S3AccessKey == "" || cfg.Mirror.S3SecretKey == "" {
			return fmt.Errorf("mirror.s3_access_key and mirror.s3_secret_key are required when mirror is enabled")
		}
	}

	return nil
}

// ValidateServer checks the settings only the API binary needs.
func (c *Config) ValidateServer() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeoutSec <= 0 {
		return fmt.Errorf("server.shutdown_timeout_sec must be positive")
	}
	if c.Server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("server.read_timeout_sec must be positive")
	}
	if c.Server.WriteTimeoutSec <= 0 {
		return fmt.Errorf("server.write_timeout_sec must be positive")
	}
	return nil
}

// ValidateKafka checks the settings the warm queue needs.
func (c *Config) ValidateKafka() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must contain at least one broker")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("kafka.group_id is required")
	}
	return nil
}

func (c *Config) PlaceholderDefaults() domain.PlaceholderDefaults {
	return domain.PlaceholderDefaults{
		Strategy:        domain.PlaceholderStrategy(c.Placeholder.Strategy),
		BackgroundColor: c.Placeholder.BackgroundColor,
		TextColor:       c.Placeholder.TextColor,
		Text:            c.Placeholder.Text,
		TextSize:        c.Placeholder.TextSize,
		Random:          c.Placeholder.Random,
	}
}
