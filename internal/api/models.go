package api

import (
	"time"

	"beacon/pkg/models"
)

type MessageList struct {
	Messages []models.PersistedMessage `json:"messages"`
	Limit    int                       `json:"limit"`
	Offset   int                       `json:"offset"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

// MuteRequest mutes a group either for Duration (e.g. "1h") or until Until.
type MuteRequest struct {
	Duration string     `json:"duration"`
	Until    *time.Time `json:"until"`
}

type MuteResponse struct {
	Group string    `json:"group"`
	Until time.Time `json:"until"`
}

// UpdateSettingsRequest leaves fields that are nil untouched.
type UpdateSettingsRequest struct {
	RetentionDays  *int    `json:"retention_days"`
	DefaultSound   *string `json:"default_sound"`
	ImageCacheDays *int    `json:"image_cache_days"`
	AutoSaveImages *bool   `json:"auto_save_images"`
}

// PutIconRequest carries either base64 image data or a URL to fetch from.
type PutIconRequest struct {
	Data        []byte `json:"data"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}
