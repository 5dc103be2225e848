package stages

import (
	"context"
	"time"

	"beacon/internal/logger"
	"beacon/internal/pipeline"
	"beacon/internal/preferences"
	"beacon/pkg/models"
)

// Mute silences notifications whose group is muted. It must run after Level.
type Mute struct {
	prefs  preferences.Store
	logger logger.Logger
	now    func() time.Time
}

func NewMute(prefs preferences.Store, log logger.Logger, now func() time.Time) *Mute {
	if now == nil {
		now = time.Now
	}
	return &Mute{prefs: prefs, logger: log, now: now}
}

func (s *Mute) Name() string                   { return NameMute }
func (s *Mute) Policy() pipeline.FailurePolicy { return pipeline.FailOpen }

func (s *Mute) Process(ctx context.Context, _ string, env models.Envelope) (models.Envelope, error) {
	if s.prefs == nil {
		return env, nil
	}
	if env.ThreadKey == "" {
		// expired windows are purged on every run
		_, err := s.prefs.PurgeExpiredMutes(ctx, s.now())
		return env, err
	}
	muted, err := preferences.MuteActive(ctx, s.prefs, env.ThreadKey, s.now())
	if err != nil {
		return env, err
	}
	if muted {
		s.logger.DebugwCtx(ctx, "Group muted", "group", env.ThreadKey)
		env.Level = models.LevelPassive
		env.Volume = 0
	}
	return env, nil
}
