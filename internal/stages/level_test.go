package stages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/audio"
	"beacon/internal/logger"
	"beacon/internal/preferences"
	"beacon/pkg/models"
)

type fakeExtender struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeExtender) Extend(_ context.Context, sound string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sound)
	if f.err != nil {
		return "", f.err
	}
	return "pb.sounds.30s." + sound, nil
}

func TestLevelParsing(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]interface{}
		wantLevel  models.InterruptionLevel
		wantVolume float64
	}{
		{"absent", nil, models.LevelActive, 0},
		{"zero", map[string]interface{}{"level": 0}, models.LevelPassive, 0},
		{"negative", map[string]interface{}{"level": "-4"}, models.LevelPassive, 0},
		{"one", map[string]interface{}{"level": 1.0}, models.LevelActive, 0},
		{"two", map[string]interface{}{"level": "2"}, models.LevelTimeSensitive, 0},
		{"three", map[string]interface{}{"level": 3}, models.LevelCritical, 3},
		{"eight scales volume", map[string]interface{}{"level": 8}, models.LevelCritical, 8},
		{"large clamps volume", map[string]interface{}{"level": 42}, models.LevelCritical, 10},
		{"symbolic", map[string]interface{}{"level": "TimeSensitive"}, models.LevelTimeSensitive, 0},
		{"symbolic critical", map[string]interface{}{"level": "critical"}, models.LevelCritical, 3},
		{"explicit volume", map[string]interface{}{"level": "critical", "volume": "7.5"}, models.LevelCritical, 7.5},
		{"volume clamped", map[string]interface{}{"level": 3, "volume": -2}, models.LevelCritical, 0},
		{"volume ignored below critical", map[string]interface{}{"level": 2, "volume": 9}, models.LevelTimeSensitive, 0},
		{"garbage", map[string]interface{}{"level": "loud"}, models.LevelActive, 0},
	}
	s := NewLevel(preferences.NewMemoryStore(defaultSettings()), nil, "", logger.NopLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := map[string]interface{}{"title": "t"}
			for k, v := range tt.fields {
				fields[k] = v
			}
			out, err := s.Process(context.Background(), "id", envelope(fields))
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, out.Level)
			assert.InDelta(t, tt.wantVolume, out.Volume, 0.0001)
		})
	}
}

func TestLevelSound(t *testing.T) {
	prefs := preferences.NewMemoryStore(defaultSettings())
	s := NewLevel(prefs, nil, "", logger.NopLogger())

	out, err := s.Process(context.Background(), "id", envelope(map[string]interface{}{"title": "t"}))
	require.NoError(t, err)
	assert.Equal(t, "nolet.caf", out.SoundName)

	out, err = s.Process(context.Background(), "id", envelope(map[string]interface{}{"title": "t", "sound": "alarm"}))
	require.NoError(t, err)
	assert.Equal(t, "alarm.caf", out.SoundName)

	env := envelope(map[string]interface{}{"title": "t", "sound": "ignored"})
	env.SoundName = "chime.caf"
	out, err = s.Process(context.Background(), "id", env)
	require.NoError(t, err)
	assert.Equal(t, "chime.caf", out.SoundName)
}

func TestLevelWithoutTextIsSilent(t *testing.T) {
	s := NewLevel(nil, nil, "", logger.NopLogger())
	out, err := s.Process(context.Background(), "id", envelope(map[string]interface{}{"level": "critical"}))
	require.NoError(t, err)
	assert.Equal(t, models.LevelPassive, out.Level)
	assert.Empty(t, out.SoundName)
}

func TestLevelCallUsesExtender(t *testing.T) {
	ext := &fakeExtender{}
	s := NewLevel(nil, ext, "", logger.NopLogger())

	out, err := s.Process(context.Background(), "id", envelope(map[string]interface{}{"title": "t", "call": "1", "sound": "alarm.caf"}))
	require.NoError(t, err)
	assert.Equal(t, "pb.sounds.30s.alarm.caf", out.SoundName)

	out, err = s.Process(context.Background(), "id", envelope(map[string]interface{}{"title": "t", "call": true}))
	require.NoError(t, err)
	assert.Equal(t, "pb.sounds.30s.call.caf", out.SoundName)
	assert.Equal(t, []string{"alarm.caf", "call.caf"}, ext.calls)
}

func TestLevelCallFallback(t *testing.T) {
	ext := &fakeExtender{err: errors.New("ffmpeg missing")}
	s := NewLevel(nil, ext, "", logger.NopLogger())

	out, err := s.Process(context.Background(), "id", envelope(map[string]interface{}{"title": "t", "call": 1, "sound": "siren"}))
	require.NoError(t, err)
	assert.Equal(t, "call.caf", out.SoundName)
}

func TestLevelCallWithRealExtender(t *testing.T) {
	root := t.TempDir()
	opts := audio.Options{
		SoundsDir:   filepath.Join(root, "sounds"),
		CacheDir:    filepath.Join(root, "cache"),
		MinDuration: 30 * time.Second,
	}
	require.NoError(t, os.MkdirAll(opts.SoundsDir, 0o755))
	samples := make([]int16, 8000)
	require.NoError(t, os.WriteFile(filepath.Join(opts.SoundsDir, "ring.caf"), audio.EncodePCM(8000, 1, samples), 0o644))

	ext := audio.NewExtender(opts, audio.WAVLooper{}, logger.NopLogger())
	s := NewLevel(nil, ext, "", logger.NopLogger())

	out, err := s.Process(context.Background(), "id", envelope(map[string]interface{}{"title": "t", "call": "yes", "sound": "ring"}))
	require.NoError(t, err)
	assert.Equal(t, ext.LongName("ring.caf"), out.SoundName)

	d, err := audio.WAVDuration(filepath.Join(opts.CacheDir, out.SoundName))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, 30*time.Second)
}
