// Package preferences holds the user-tunable settings and small counters the
// pipeline stages consult: retention, default sound, image caching, mutes.
package preferences

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"beacon/internal/config"
	"beacon/internal/constants"
)

type Settings struct {
	RetentionDays  int    `toml:"retention_days" json:"retention_days"`
	DefaultSound   string `toml:"default_sound" json:"default_sound"`
	ImageCacheDays int    `toml:"image_cache_days" json:"image_cache_days"`
	AutoSaveImages bool   `toml:"auto_save_images" json:"auto_save_images"`
}

// Store is the preference collaborator. Implementations must be safe for
// concurrent use.
type Store interface {
	Settings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error

	IncrementMessageCount(ctx context.Context) (int64, error)
	MessageCount(ctx context.Context) (int64, error)

	// MarkImageSaved records hash and reports whether it was new.
	MarkImageSaved(ctx context.Context, hash string) (bool, error)

	Mute(ctx context.Context, group string) (time.Time, bool, error)
	SetMute(ctx context.Context, group string, until time.Time) error
	ClearMute(ctx context.Context, group string) error
	PurgeExpiredMutes(ctx context.Context, now time.Time) (int, error)
	Mutes(ctx context.Context) (map[string]time.Time, error)

	Close() error
}

// DefaultSettings fills zero-valued defaults from constants.
func DefaultSettings(d config.PreferenceDefaults) Settings {
	s := Settings{
		RetentionDays:  d.RetentionDays,
		DefaultSound:   d.DefaultSound,
		ImageCacheDays: d.ImageCacheDays,
		AutoSaveImages: d.AutoSaveImages,
	}
	if s.DefaultSound == "" {
		s.DefaultSound = constants.DefaultSoundName
	}
	if s.ImageCacheDays == 0 {
		s.ImageCacheDays = constants.DefaultImageCacheDays
	}
	return s
}

// New builds the store selected by cfg.Backend. rdb is only used by the redis
// backend and may be nil otherwise.
func New(cfg config.PreferencesConfig, rdb *redis.Client) (Store, error) {
	defaults := DefaultSettings(cfg.Defaults)
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(defaults), nil
	case "file":
		path := cfg.File
		if path == "" {
			path = constants.DefaultPreferencesFile
		}
		return NewFileStore(path, defaults), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis preference backend needs a redis client")
		}
		prefix := cfg.KeyPrefix
		if prefix == "" {
			prefix = constants.DefaultRedisKeyPrefix
		}
		return NewRedisStore(rdb, prefix, defaults), nil
	default:
		return nil, fmt.Errorf("unknown preference backend: %s", cfg.Backend)
	}
}

// MuteActive reports whether group is muted at now, purging stale entries first.
func MuteActive(ctx context.Context, s Store, group string, now time.Time) (bool, error) {
	if _, err := s.PurgeExpiredMutes(ctx, now); err != nil {
		return false, err
	}
	until, ok, err := s.Mute(ctx, group)
	if err != nil || !ok {
		return false, err
	}
	return now.Before(until), nil
}
