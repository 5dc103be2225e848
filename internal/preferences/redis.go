package preferences

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldRetentionDays  = "retention_days"
	fieldDefaultSound   = "default_sound"
	fieldImageCacheDays = "image_cache_days"
	fieldAutoSave       = "auto_save_images"
)

// RedisStore keeps preferences under a key prefix:
// <prefix>settings (hash), <prefix>count, <prefix>images (set), <prefix>mutes (hash of unix seconds).
type RedisStore struct {
	client   *redis.Client
	prefix   string
	defaults Settings
}

func NewRedisStore(client *redis.Client, prefix string, defaults Settings) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, defaults: defaults}
}

func (r *RedisStore) key(name string) string { return r.prefix + name }

func (r *RedisStore) Settings(ctx context.Context) (Settings, error) {
	vals, err := r.client.HGetAll(ctx, r.key("settings")).Result()
	if err != nil {
		return Settings{}, fmt.Errorf("redis HGetAll failed: %w", err)
	}
	s := r.defaults
	if v, ok := vals[fieldRetentionDays]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.RetentionDays = n
		}
	}
	if v, ok := vals[fieldDefaultSound]; ok && v != "" {
		s.DefaultSound = v
	}
	if v, ok := vals[fieldImageCacheDays]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			s.ImageCacheDays = n
		}
	}
	if v, ok := vals[fieldAutoSave]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.AutoSaveImages = b
		}
	}
	return s, nil
}

func (r *RedisStore) SaveSettings(ctx context.Context, s Settings) error {
	err := r.client.HSet(ctx, r.key("settings"), map[string]interface{}{
		fieldRetentionDays:  s.RetentionDays,
		fieldDefaultSound:   s.DefaultSound,
		fieldImageCacheDays: s.ImageCacheDays,
		fieldAutoSave:       strconv.FormatBool(s.AutoSaveImages),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis HSet failed: %w", err)
	}
	return nil
}

func (r *RedisStore) IncrementMessageCount(ctx context.Context) (int64, error) {
	n, err := r.client.Incr(ctx, r.key("count")).Result()
	if err != nil {
		return 0, fmt.Errorf("redis Incr failed: %w", err)
	}
	return n, nil
}

func (r *RedisStore) MessageCount(ctx context.Context) (int64, error) {
	n, err := r.client.Get(ctx, r.key("count")).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis Get failed: %w", err)
	}
	return n, nil
}

func (r *RedisStore) MarkImageSaved(ctx context.Context, hash string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.key("images"), hash).Result()
	if err != nil {
		return false, fmt.Errorf("redis SAdd failed: %w", err)
	}
	return added == 1, nil
}

func (r *RedisStore) Mute(ctx context.Context, group string) (time.Time, bool, error) {
	v, err := r.client.HGet(ctx, r.key("mutes"), group).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis HGet failed: %w", err)
	}
	return time.Unix(v, 0), true, nil
}

func (r *RedisStore) SetMute(ctx context.Context, group string, until time.Time) error {
	if err := r.client.HSet(ctx, r.key("mutes"), group, until.Unix()).Err(); err != nil {
		return fmt.Errorf("redis HSet failed: %w", err)
	}
	return nil
}

func (r *RedisStore) ClearMute(ctx context.Context, group string) error {
	if err := r.client.HDel(ctx, r.key("mutes"), group).Err(); err != nil {
		return fmt.Errorf("redis HDel failed: %w", err)
	}
	return nil
}

func (r *RedisStore) PurgeExpiredMutes(ctx context.Context, now time.Time) (int, error) {
	mutes, err := r.Mutes(ctx)
	if err != nil {
		return 0, err
	}
	var stale []string
	for group, until := range mutes {
		if !now.Before(until) {
			stale = append(stale, group)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	n, err := r.client.HDel(ctx, r.key("mutes"), stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis HDel failed: %w", err)
	}
	return int(n), nil
}

func (r *RedisStore) Mutes(ctx context.Context) (map[string]time.Time, error) {
	vals, err := r.client.HGetAll(ctx, r.key("mutes")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGetAll failed: %w", err)
	}
	out := make(map[string]time.Time, len(vals))
	for group, v := range vals {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[group] = time.Unix(n, 0)
	}
	return out, nil
}

// Close is a no-op; the client is owned by the caller.
func (r *RedisStore) Close() error { return nil }
