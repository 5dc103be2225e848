package stages

import (
	"context"

	"beacon/internal/archive"
	"beacon/internal/logger"
	"beacon/internal/messages"
	"beacon/internal/pipeline"
	"beacon/pkg/models"
)

// Badge sets the app badge. An explicit badge of zero or less also clears
// the unread state of the archive.
type Badge struct {
	messages messages.Store
	logger   logger.Logger
}

func NewBadge(store messages.Store, log logger.Logger) *Badge {
	return &Badge{messages: store, logger: log}
}

func (s *Badge) Name() string                   { return NameBadge }
func (s *Badge) Policy() pipeline.FailurePolicy { return pipeline.FailOpen }

func (s *Badge) Process(ctx context.Context, _ string, env models.Envelope) (models.Envelope, error) {
	explicit, ok := models.Payload(env.CustomFields).Int(models.KeyBadge)
	if !ok && env.Badge != nil {
		explicit, ok = *env.Badge, true
	}

	if ok {
		env.Badge = &explicit
		if explicit <= 0 && s.messages != nil {
			n, err := s.messages.MarkAllRead(ctx)
			if err != nil {
				s.logger.WarnwCtx(ctx, "Failed to mark messages read", "error", err)
			} else {
				s.logger.DebugwCtx(ctx, "Marked messages read", "count", n)
			}
		}
		return env, nil
	}

	env.Badge = nil
	if s.messages == nil {
		return env, nil
	}
	// count this run's own archive write
	if b := archive.BatchFrom(ctx); b != nil {
		if err := b.Wait(ctx); err != nil {
			return env, err
		}
	}
	unread, err := s.messages.UnreadCount(ctx)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Unread count unavailable, leaving badge unset", "error", err)
		return env, nil
	}
	env.Badge = &unread
	return env, nil
}
