// Package messages is the local archive of delivered notifications.
package messages

import (
	"context"
	"time"

	"beacon/pkg/models"
)

type Filter struct {
	Group      string
	UnreadOnly bool
	Search     string
	Limit      int
	Offset     int
}

type Store interface {
	// Add inserts m, replacing any message with the same id.
	Add(ctx context.Context, m models.PersistedMessage) error
	Get(ctx context.Context, id string) (*models.PersistedMessage, error)
	List(ctx context.Context, f Filter) ([]models.PersistedMessage, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes every message whose retention ended before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
