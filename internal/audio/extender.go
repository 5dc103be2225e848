// Package audio produces long-running call sounds from short clips.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/pkg/errors"
	"beacon/pkg/metrics"
)

type Transcoder interface {
	Extend(ctx context.Context, src, dst string, minDuration time.Duration) error
}

type Options struct {
	SoundsDir   string
	BundledDir  string
	CacheDir    string
	Prefix      string
	MinDuration time.Duration
}

func OptionsFromConfig(cfg config.AudioConfig) Options {
	return Options{
		SoundsDir:   cfg.SoundsDir,
		BundledDir:  cfg.BundledDir,
		CacheDir:    cfg.CacheDir,
		Prefix:      cfg.Prefix,
		MinDuration: cfg.MinDuration,
	}
}

// NewTranscoder returns the transcoder named in cfg.
func NewTranscoder(cfg config.AudioConfig) Transcoder {
	if cfg.Transcoder == "wav" {
		return WAVLooper{}
	}
	return NewFFmpegTranscoder(cfg.FFmpegBinary)
}

// Extender loops a sound to at least MinDuration and caches the result under a
// deterministic name, so a second request for the same sound is a file lookup.
type Extender struct {
	opts       Options
	transcoder Transcoder
	logger     logger.Logger
	lockRetry  time.Duration
}

func NewExtender(opts Options, transcoder Transcoder, log logger.Logger) *Extender {
	if opts.Prefix == "" {
		opts.Prefix = constants.LongSoundPrefix
	}
	if opts.MinDuration <= 0 {
		opts.MinDuration = constants.MinCallDuration
	}
	return &Extender{
		opts:       opts,
		transcoder: transcoder,
		logger:     log,
		lockRetry:  20 * time.Millisecond,
	}
}

// LongName is the cache file name for sound, e.g. "alarm.caf" -> "pb.sounds.30s.alarm.caf".
func (e *Extender) LongName(sound string) string {
	base, ext := splitSound(sound)
	return e.opts.Prefix + "." + base + ext
}

// Extend returns the file name of the extended version of sound, producing it if needed.
// The returned name lives in CacheDir.
func (e *Extender) Extend(ctx context.Context, sound string) (string, error) {
	base, ext := splitSound(sound)
	longName := e.opts.Prefix + "." + base + ext
	target := filepath.Join(e.opts.CacheDir, longName)

	if cached(target) {
		metrics.IncAudioExtension("hit")
		return longName, nil
	}

	src, err := e.locate(base + ext)
	if err != nil {
		metrics.IncAudioExtension("failed")
		return "", err
	}

	if err := os.MkdirAll(e.opts.CacheDir, 0o755); err != nil {
		metrics.IncAudioExtension("failed")
		return "", fmt.Errorf("create sound cache: %w", err)
	}

	lock := flock.New(filepath.Join(e.opts.CacheDir, "."+longName+".lock"))
	locked, err := lock.TryLockContext(ctx, e.lockRetry)
	if err != nil || !locked {
		metrics.IncAudioExtension("failed")
		if err == nil {
			err = fmt.Errorf("lock not acquired")
		}
		return "", fmt.Errorf("lock %s: %w", longName, err)
	}
	defer func() { _ = lock.Unlock() }()

	// Another run may have finished the file while this one waited for the lock.
	if cached(target) {
		metrics.IncAudioExtension("hit")
		return longName, nil
	}

	tmp, err := os.CreateTemp(e.opts.CacheDir, "."+base+".*"+ext)
	if err != nil {
		metrics.IncAudioExtension("failed")
		return "", fmt.Errorf("create temp sound: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	start := time.Now()
	if err := e.transcoder.Extend(ctx, src, tmpPath, e.opts.MinDuration); err != nil {
		_ = os.Remove(tmpPath)
		metrics.IncAudioExtension("failed")
		return "", errors.ErrTranscode.WithCause(err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		metrics.IncAudioExtension("failed")
		return "", fmt.Errorf("publish extended sound: %w", err)
	}

	metrics.IncAudioExtension("created")
	e.logger.DebugwCtx(ctx, "Extended call sound",
		"source", src,
		"target", longName,
		"min_duration", e.opts.MinDuration,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return longName, nil
}

func (e *Extender) locate(name string) (string, error) {
	for _, dir := range []string{e.opts.SoundsDir, e.opts.BundledDir} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", errors.ErrNotFound.WithMessage(fmt.Sprintf("sound %q not found", name))
}

func cached(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// splitSound returns the sanitized base name and extension, defaulting to call.caf.
func splitSound(sound string) (string, string) {
	sound = filepath.Base(strings.TrimSpace(sound))
	if sound == "." || sound == string(filepath.Separator) {
		sound = ""
	}
	ext := filepath.Ext(sound)
	base := strings.TrimSuffix(sound, ext)
	if base == "" {
		base = constants.DefaultCallSound
	}
	if ext == "" {
		ext = constants.SoundExtension
	}
	return base, ext
}
