package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
pipeline:
  deadline: 20s
  interrupt_margin: 2s
cipher:
  configs:
    - algorithm: AES128
      mode: GCM
      key: "0123456789abcdef"
preferences:
  backend: file
  file: prefs.toml
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Pipeline.Deadline)
	assert.Equal(t, 18*time.Second, cfg.Pipeline.InterruptAfter())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "pb.sounds.30s", cfg.Audio.Prefix)
	assert.Equal(t, 30*time.Second, cfg.Audio.MinDuration)
	assert.Equal(t, "call.caf", cfg.Audio.FallbackSound)
	assert.Equal(t, 999999, cfg.Preferences.Defaults.RetentionDays)
	require.Len(t, cfg.Cipher.Configs, 1)
	assert.Equal(t, "AES128", cfg.Cipher.Configs[0].Algorithm)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("CIPHER_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Cipher.Configs[0].Key)
}

func TestValidateStatic(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080, ReadTimeoutSeconds: time.Second, WriteTimeoutSeconds: time.Second},
			Database: DatabaseConfig{Driver: "sqlite", SQLite: SQLiteConfig{Path: "x.db"}},
			Pipeline: PipelineConfig{Deadline: 30 * time.Second, InterruptMargin: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad key length", func(c *Config) {
			c.Cipher.Configs = []CipherEntry{{Algorithm: "AES256", Key: "short"}}
		}, true},
		{"unknown algorithm", func(c *Config) {
			c.Cipher.Configs = []CipherEntry{{Algorithm: "DES", Key: "12345678"}}
		}, true},
		{"margin exceeds deadline", func(c *Config) { c.Pipeline.InterruptMargin = time.Minute }, true},
		{"kafka without brokers", func(c *Config) { c.Broker.Type = "kafka" }, true},
		{"redis prefs without redis", func(c *Config) { c.Preferences.Backend = "redis" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
