package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	Cipher         CipherConfig         `mapstructure:"cipher"`
	Audio          AudioConfig          `mapstructure:"audio"`
	Attachments    AttachmentsConfig    `mapstructure:"attachments"`
	Preferences    PreferencesConfig    `mapstructure:"preferences"`
	Archive        ArchiveConfig        `mapstructure:"archive"`
	Cloud          CloudConfig          `mapstructure:"cloud"`
	API            APIConfig            `mapstructure:"api"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Driver        string         `mapstructure:"driver"` // "sqlite" (default) or "postgres"
	SQLite        SQLiteConfig   `mapstructure:"sqlite"`
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	MongoDB       MongoDBConfig  `mapstructure:"mongodb"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"` // "kafka" or empty for HTTP-only
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers     []string    `mapstructure:"brokers"`
	GroupID     string      `mapstructure:"group_id"`
	InputTopic  string      `mapstructure:"input_topic"`
	OutputTopic string      `mapstructure:"output_topic"`
	DLQTopic    string      `mapstructure:"dlq_topic"`
	Retry       RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PipelineConfig bounds a single run. The interrupt fires at deadline - interrupt_margin.
type PipelineConfig struct {
	Deadline        time.Duration `mapstructure:"deadline"`
	InterruptMargin time.Duration `mapstructure:"interrupt_margin"`
}

type CipherConfig struct {
	Configs []CipherEntry `mapstructure:"configs"`
}

type CipherEntry struct {
	Algorithm string `mapstructure:"algorithm"` // AES128, AES192, AES256
	Mode      string `mapstructure:"mode"`      // GCM
	Key       string `mapstructure:"key"`
}

type AudioConfig struct {
	SoundsDir     string        `mapstructure:"sounds_dir"`
	BundledDir    string        `mapstructure:"bundled_dir"`
	CacheDir      string        `mapstructure:"cache_dir"`
	Transcoder    string        `mapstructure:"transcoder"` // "ffmpeg" or "wav"
	FFmpegBinary  string        `mapstructure:"ffmpeg_binary"`
	Prefix        string        `mapstructure:"prefix"`
	MinDuration   time.Duration `mapstructure:"min_duration"`
	FallbackSound string        `mapstructure:"fallback_sound"`
}

type AttachmentsConfig struct {
	CacheDir     string        `mapstructure:"cache_dir"`
	OutputDir    string        `mapstructure:"output_dir"`
	AlbumDir     string        `mapstructure:"album_dir"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
}

type PreferencesConfig struct {
	Backend   string             `mapstructure:"backend"` // "memory", "file" or "redis"
	File      string             `mapstructure:"file"`
	KeyPrefix string             `mapstructure:"key_prefix"`
	Defaults  PreferenceDefaults `mapstructure:"defaults"`
}

type PreferenceDefaults struct {
	RetentionDays  int    `mapstructure:"retention_days"`
	DefaultSound   string `mapstructure:"default_sound"`
	ImageCacheDays int    `mapstructure:"image_cache_days"`
	AutoSaveImages bool   `mapstructure:"auto_save_images"`
}

type ArchiveConfig struct {
	DefaultGroup    string        `mapstructure:"default_group"`
	PreviewRunes    int           `mapstructure:"preview_runes"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
}

type CloudConfig struct {
	Collection string `mapstructure:"collection"`
}

type APIConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

// InterruptAfter is how long a run may take before the orchestrator is told to deliver.
func (c PipelineConfig) InterruptAfter() time.Duration {
	d := c.Deadline - c.InterruptMargin
	if d <= 0 {
		return c.Deadline
	}
	return d
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
