package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/logger"
	"beacon/pkg/errors"
)

type countingTranscoder struct {
	inner Transcoder
	calls atomic.Int32
}

func (c *countingTranscoder) Extend(ctx context.Context, src, dst string, minDuration time.Duration) error {
	c.calls.Add(1)
	return c.inner.Extend(ctx, src, dst, minDuration)
}

type failingTranscoder struct{}

func (failingTranscoder) Extend(context.Context, string, string, time.Duration) error {
	return os.ErrPermission
}

func writeClip(t *testing.T, dir, name string, seconds int) {
	t.Helper()
	const rate = 8000
	samples := make([]int16, rate*seconds)
	for i := range samples {
		samples[i] = int16(i % 512)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), EncodePCM(rate, 1, samples), 0o644))
}

func newTestExtender(t *testing.T, tr Transcoder) (*Extender, Options) {
	t.Helper()
	root := t.TempDir()
	opts := Options{
		SoundsDir:   filepath.Join(root, "sounds"),
		BundledDir:  filepath.Join(root, "bundled"),
		CacheDir:    filepath.Join(root, "cache"),
		Prefix:      "pb.sounds.30s",
		MinDuration: 30 * time.Second,
	}
	require.NoError(t, os.MkdirAll(opts.SoundsDir, 0o755))
	require.NoError(t, os.MkdirAll(opts.BundledDir, 0o755))
	return NewExtender(opts, tr, logger.NopLogger()), opts
}

func TestExtendProducesLongSoundAndCachesIt(t *testing.T) {
	tr := &countingTranscoder{inner: WAVLooper{}}
	ext, opts := newTestExtender(t, tr)
	writeClip(t, opts.BundledDir, "alarm.wav", 2)

	name, err := ext.Extend(context.Background(), "alarm.wav")
	require.NoError(t, err)
	assert.Equal(t, "pb.sounds.30s.alarm.wav", name)

	path := filepath.Join(opts.CacheDir, name)
	d, err := WAVDuration(path)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, 30*time.Second)

	first, err := os.Stat(path)
	require.NoError(t, err)

	name2, err := ext.Extend(context.Background(), "alarm.wav")
	require.NoError(t, err)
	assert.Equal(t, name, name2)
	assert.EqualValues(t, 1, tr.calls.Load())

	second, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, first.ModTime(), second.ModTime())
}

func TestExtendPrefersUserSounds(t *testing.T) {
	tr := &countingTranscoder{inner: WAVLooper{}}
	ext, opts := newTestExtender(t, tr)
	writeClip(t, opts.SoundsDir, "bell.wav", 1)

	name, err := ext.Extend(context.Background(), "bell.wav")
	require.NoError(t, err)
	assert.Equal(t, "pb.sounds.30s.bell.wav", name)
}

func TestExtendConcurrentCallsTranscodeOnce(t *testing.T) {
	tr := &countingTranscoder{inner: WAVLooper{}}
	ext, opts := newTestExtender(t, tr)
	writeClip(t, opts.BundledDir, "ring.wav", 2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ext.Extend(context.Background(), "ring.wav")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, tr.calls.Load())
}

func TestExtendMissingSource(t *testing.T) {
	ext, _ := newTestExtender(t, WAVLooper{})

	_, err := ext.Extend(context.Background(), "nope.caf")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestExtendTranscodeFailureLeavesNoFile(t *testing.T) {
	ext, opts := newTestExtender(t, failingTranscoder{})
	writeClip(t, opts.BundledDir, "call.caf", 1)

	_, err := ext.Extend(context.Background(), "")
	require.Error(t, err)

	entries, err := os.ReadDir(opts.CacheDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, strings.HasSuffix(e.Name(), ".lock"), "unexpected file %s", e.Name())
	}
}

func TestLongName(t *testing.T) {
	ext, _ := newTestExtender(t, WAVLooper{})
	assert.Equal(t, "pb.sounds.30s.call.caf", ext.LongName(""))
	assert.Equal(t, "pb.sounds.30s.alarm.caf", ext.LongName("alarm"))
	assert.Equal(t, "pb.sounds.30s.alarm.caf", ext.LongName("../../alarm.caf"))
}
