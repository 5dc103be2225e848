package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"beacon/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "40s")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.sqlite.path", constants.DefaultSQLitePath)
	viper.SetDefault("database.run_migrations", true)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("pipeline.deadline", constants.DefaultDeadline)
	viper.SetDefault("pipeline.interrupt_margin", constants.DefaultInterruptMargin)

	viper.SetDefault("audio.transcoder", "ffmpeg")
	viper.SetDefault("audio.ffmpeg_binary", constants.DefaultFFmpegBinary)
	viper.SetDefault("audio.prefix", constants.LongSoundPrefix)
	viper.SetDefault("audio.min_duration", constants.MinCallDuration)
	viper.SetDefault("audio.fallback_sound", constants.FallbackCallSound)
	viper.SetDefault("audio.cache_dir", "data/sounds/cache")

	viper.SetDefault("attachments.cache_dir", "data/attachments/cache")
	viper.SetDefault("attachments.output_dir", "data/attachments/out")
	viper.SetDefault("attachments.fetch_timeout", constants.DefaultHTTPTimeout)
	viper.SetDefault("attachments.max_bytes", constants.DefaultMaxAttachmentBytes)

	viper.SetDefault("preferences.backend", "memory")
	viper.SetDefault("preferences.file", constants.DefaultPreferencesFile)
	viper.SetDefault("preferences.key_prefix", constants.DefaultRedisKeyPrefix)
	viper.SetDefault("preferences.defaults.retention_days", constants.DefaultRetentionDays)
	viper.SetDefault("preferences.defaults.default_sound", constants.DefaultSoundName)
	viper.SetDefault("preferences.defaults.image_cache_days", constants.DefaultImageCacheDays)

	viper.SetDefault("archive.default_group", constants.DefaultGroup)
	viper.SetDefault("archive.preview_runes", constants.DefaultPreviewRunes)
	viper.SetDefault("archive.write_timeout", constants.DefaultArchiveTimeout)
	viper.SetDefault("archive.sweep_interval", constants.DefaultSweepInterval)
	viper.SetDefault("archive.callback_timeout", constants.DefaultHTTPTimeout)

	viper.SetDefault("cloud.collection", constants.DefaultIconCollection)

	viper.SetDefault("api.rate_limit.rps", 10.0)
	viper.SetDefault("api.rate_limit.burst", 20)
	viper.SetDefault("api.rate_limit.cleanup_interval", 300)
	viper.SetDefault("api.rate_limit.max_age", 600)

	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)
}

func bindEnvVariables() {
	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	viper.BindEnv("broker.kafka.output_topic", "BROKER_KAFKA_OUTPUT_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.sqlite.path", "DATABASE_SQLITE_PATH")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("pipeline.deadline", "PIPELINE_DEADLINE")
	viper.BindEnv("pipeline.interrupt_margin", "PIPELINE_INTERRUPT_MARGIN")

	viper.BindEnv("preferences.backend", "PREFERENCES_BACKEND")
	viper.BindEnv("preferences.file", "PREFERENCES_FILE")

	viper.BindEnv("audio.ffmpeg_binary", "AUDIO_FFMPEG_BINARY")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	// CIPHER_KEY replaces the key of the first cipher entry so keys stay out of files.
	if key := viper.GetString("CIPHER_KEY"); key != "" {
		if len(cfg.Cipher.Configs) == 0 {
			cfg.Cipher.Configs = append(cfg.Cipher.Configs, CipherEntry{Mode: "GCM"})
		}
		cfg.Cipher.Configs[0].Key = key
		cfg.Cipher.Configs[0].Algorithm = algorithmForKey(key)
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func algorithmForKey(key string) string {
	switch len(key) {
	case 16:
		return "AES128"
	case 24:
		return "AES192"
	default:
		return "AES256"
	}
}
