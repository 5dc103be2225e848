package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	validators := []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateBroker(c.Broker) },
		func(c *Config) error { return validateDatabase(c.Database) },
		func(c *Config) error { return validatePipeline(c.Pipeline) },
		func(c *Config) error { return validateCipher(c.Cipher) },
		func(c *Config) error { return validateAudio(c.Audio) },
		func(c *Config) error { return validatePreferences(c.Preferences, c.Database) },
	}
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "", "none":
		return nil
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		if cfg.SQLite.Path == "" {
			return &ValidationError{
				Field:   "database.sqlite.path",
				Message: "SQLite path is required",
			}
		}
	case "postgres":
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	default:
		return &ValidationError{
			Field:   "database.driver",
			Message: fmt.Sprintf("unknown driver: %s (supported: sqlite, postgres)", cfg.Driver),
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validatePipeline(cfg PipelineConfig) error {
	if cfg.Deadline <= 0 {
		return &ValidationError{
			Field:   "pipeline.deadline",
			Message: "deadline must be positive",
		}
	}

	if cfg.InterruptMargin < 0 || cfg.InterruptMargin >= cfg.Deadline {
		return &ValidationError{
			Field:   "pipeline.interrupt_margin",
			Message: "interrupt margin must be non-negative and shorter than the deadline",
		}
	}

	return nil
}

var cipherKeyLengths = map[string]int{
	"AES128": 16,
	"AES192": 24,
	"AES256": 32,
}

func validateCipher(cfg CipherConfig) error {
	for i, entry := range cfg.Configs {
		field := fmt.Sprintf("cipher.configs[%d]", i)

		want, ok := cipherKeyLengths[strings.ToUpper(entry.Algorithm)]
		if !ok {
			return &ValidationError{
				Field:   field + ".algorithm",
				Message: fmt.Sprintf("unsupported algorithm: %s (valid: AES128, AES192, AES256)", entry.Algorithm),
			}
		}

		if entry.Mode != "" && !strings.EqualFold(entry.Mode, "GCM") {
			return &ValidationError{
				Field:   field + ".mode",
				Message: fmt.Sprintf("unsupported mode: %s (valid: GCM)", entry.Mode),
			}
		}

		if len(entry.Key) != want {
			return &ValidationError{
				Field:   field + ".key",
				Message: fmt.Sprintf("%s requires a %d byte key, got %d", entry.Algorithm, want, len(entry.Key)),
			}
		}
	}

	return nil
}

func validateAudio(cfg AudioConfig) error {
	switch cfg.Transcoder {
	case "", "ffmpeg", "wav":
	default:
		return &ValidationError{
			Field:   "audio.transcoder",
			Message: fmt.Sprintf("unknown transcoder: %s (valid: ffmpeg, wav)", cfg.Transcoder),
		}
	}

	if cfg.MinDuration < 0 {
		return &ValidationError{
			Field:   "audio.min_duration",
			Message: "min_duration must be non-negative",
		}
	}

	return nil
}

func validatePreferences(cfg PreferencesConfig, db DatabaseConfig) error {
	switch cfg.Backend {
	case "", "memory":
	case "file":
		if cfg.File == "" {
			return &ValidationError{
				Field:   "preferences.file",
				Message: "file backend requires a path",
			}
		}
	case "redis":
		if db.Redis.Host == "" {
			return &ValidationError{
				Field:   "preferences.backend",
				Message: "redis backend requires database.redis to be configured",
			}
		}
	default:
		return &ValidationError{
			Field:   "preferences.backend",
			Message: fmt.Sprintf("unknown backend: %s (valid: memory, file, redis)", cfg.Backend),
		}
	}

	return nil
}
