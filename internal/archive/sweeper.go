package archive

import (
	"context"
	"time"

	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/internal/messages"
	"beacon/internal/preferences"
)

type SweepResult struct {
	Messages int64
	Mutes    int
}

// Sweeper removes expired messages and lapsed mutes. Prefs may be nil.
type Sweeper struct {
	store    messages.Store
	prefs    preferences.Store
	interval time.Duration
	now      func() time.Time
	logger   logger.Logger
}

func NewSweeper(store messages.Store, prefs preferences.Store, interval time.Duration, log logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = constants.DefaultSweepInterval
	}
	return &Sweeper{store: store, prefs: prefs, interval: interval, now: time.Now, logger: log}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	now := s.now()
	var res SweepResult

	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return res, err
	}
	res.Messages = n

	if s.prefs != nil {
		m, err := s.prefs.PurgeExpiredMutes(ctx, now)
		if err != nil {
			return res, err
		}
		res.Mutes = m
	}
	return res, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		res, err := s.SweepOnce(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.WarnwCtx(ctx, "Sweep failed", "error", err)
		} else if res.Messages > 0 || res.Mutes > 0 {
			s.logger.InfowCtx(ctx, "Sweep removed expired entries",
				"messages", res.Messages,
				"mutes", res.Mutes,
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
