package stages

import (
	"context"
	"strings"

	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/internal/pipeline"
	"beacon/internal/preferences"
	"beacon/pkg/models"
)

const maxVolume = 10

// Extender is satisfied by *audio.Extender.
type Extender interface {
	Extend(ctx context.Context, sound string) (string, error)
}

// Level resolves the interruption level, critical volume and sound. Call
// notifications get a sound long enough to ring like a call.
type Level struct {
	prefs    preferences.Store
	extender Extender
	fallback string
	logger   logger.Logger
}

func NewLevel(prefs preferences.Store, extender Extender, fallbackSound string, log logger.Logger) *Level {
	if fallbackSound == "" {
		fallbackSound = constants.FallbackCallSound
	}
	return &Level{prefs: prefs, extender: extender, fallback: fallbackSound, logger: log}
}

func (s *Level) Name() string                   { return NameLevel }
func (s *Level) Policy() pipeline.FailurePolicy { return pipeline.FailOpen }

func (s *Level) Process(ctx context.Context, _ string, env models.Envelope) (models.Envelope, error) {
	p := models.Payload(env.CustomFields)

	// notifications without text stay silent
	if !env.HasText() {
		env.Level = models.LevelPassive
		env.Volume = 0
		return env, nil
	}

	level, number := parseLevel(p)
	env.Level = level
	env.Volume = 0
	if level == models.LevelCritical {
		if v, ok := p.Float(models.KeyVolume); ok {
			env.Volume = clamp(v, 0, maxVolume)
		} else {
			env.Volume = clamp(float64(number), 0, maxVolume)
		}
	}

	explicit := env.SoundName
	if explicit == "" {
		if snd, ok := p.String(models.KeySound); ok {
			explicit = models.SoundFile(snd)
		}
	}

	if call, _ := p.Bool(models.KeyCall); call {
		env.SoundName = s.callSound(ctx, explicit)
		return env, nil
	}

	if explicit != "" {
		env.SoundName = models.SoundFile(explicit)
		return env, nil
	}
	settings := settingsOrDefault(ctx, s.prefs, s.logger)
	env.SoundName = models.SoundFile(settings.DefaultSound)
	return env, nil
}

func (s *Level) callSound(ctx context.Context, sound string) string {
	base := constants.DefaultCallSound
	if sound != "" {
		if i := strings.Index(sound, "."); i > 0 {
			base = sound[:i]
		} else if i < 0 {
			base = sound
		}
	}
	if s.extender == nil {
		return s.fallback
	}
	long, err := s.extender.Extend(ctx, base+constants.SoundExtension)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Could not extend call sound, using fallback",
			"sound", base,
			"fallback", s.fallback,
			"error", err,
		)
		return s.fallback
	}
	return long
}

// parseLevel reads the level key as a number or a name. The returned number
// is the raw value when numeric, so volume can scale past three.
func parseLevel(p models.Payload) (models.InterruptionLevel, int) {
	raw, ok := p.String(models.KeyLevel)
	if !ok {
		return models.LevelActive, models.LevelActive.Number()
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "passive":
		return models.LevelPassive, models.LevelPassive.Number()
	case "active":
		return models.LevelActive, models.LevelActive.Number()
	case "timesensitive":
		return models.LevelTimeSensitive, models.LevelTimeSensitive.Number()
	case "critical":
		return models.LevelCritical, models.LevelCritical.Number()
	}
	if n, ok := models.AsInt(raw); ok {
		return models.LevelFromNumber(n), n
	}
	return models.LevelActive, models.LevelActive.Number()
}

func levelFromPayload(p models.Payload) models.InterruptionLevel {
	level, _ := parseLevel(p)
	return level
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
