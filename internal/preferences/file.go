package preferences

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

const lockRetryDelay = 25 * time.Millisecond

type fileState struct {
	Settings     Settings             `toml:"settings"`
	MessageCount int64                `toml:"message_count"`
	SavedImages  []string             `toml:"saved_images"`
	Mutes        map[string]time.Time `toml:"mutes"`
}

// FileStore keeps preferences in a TOML document shared between processes.
// Every operation holds an advisory lock on <path>.lock for its duration.
type FileStore struct {
	path     string
	defaults Settings
	lock     *flock.Flock
	mu       sync.Mutex
}

func NewFileStore(path string, defaults Settings) *FileStore {
	return &FileStore{
		path:     path,
		defaults: defaults,
		lock:     flock.New(path + ".lock"),
	}
}

func (f *FileStore) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := f.view(ctx, func(st *fileState) { s = st.Settings })
	return s, err
}

func (f *FileStore) SaveSettings(ctx context.Context, s Settings) error {
	return f.update(ctx, func(st *fileState) bool {
		st.Settings = s
		return true
	})
}

func (f *FileStore) IncrementMessageCount(ctx context.Context) (int64, error) {
	var n int64
	err := f.update(ctx, func(st *fileState) bool {
		st.MessageCount++
		n = st.MessageCount
		return true
	})
	return n, err
}

func (f *FileStore) MessageCount(ctx context.Context) (int64, error) {
	var n int64
	err := f.view(ctx, func(st *fileState) { n = st.MessageCount })
	return n, err
}

func (f *FileStore) MarkImageSaved(ctx context.Context, hash string) (bool, error) {
	added := false
	err := f.update(ctx, func(st *fileState) bool {
		i := sort.SearchStrings(st.SavedImages, hash)
		if i < len(st.SavedImages) && st.SavedImages[i] == hash {
			return false
		}
		st.SavedImages = append(st.SavedImages, "")
		copy(st.SavedImages[i+1:], st.SavedImages[i:])
		st.SavedImages[i] = hash
		added = true
		return true
	})
	return added, err
}

func (f *FileStore) Mute(ctx context.Context, group string) (time.Time, bool, error) {
	var (
		until time.Time
		ok    bool
	)
	err := f.view(ctx, func(st *fileState) { until, ok = st.Mutes[group] })
	return until, ok, err
}

func (f *FileStore) SetMute(ctx context.Context, group string, until time.Time) error {
	return f.update(ctx, func(st *fileState) bool {
		st.Mutes[group] = until.UTC()
		return true
	})
}

func (f *FileStore) ClearMute(ctx context.Context, group string) error {
	return f.update(ctx, func(st *fileState) bool {
		if _, ok := st.Mutes[group]; !ok {
			return false
		}
		delete(st.Mutes, group)
		return true
	})
}

func (f *FileStore) PurgeExpiredMutes(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := f.update(ctx, func(st *fileState) bool {
		n = purge(st.Mutes, now)
		return n > 0
	})
	return n, err
}

func (f *FileStore) Mutes(ctx context.Context) (map[string]time.Time, error) {
	var out map[string]time.Time
	err := f.view(ctx, func(st *fileState) { out = st.Mutes })
	return out, err
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) view(ctx context.Context, fn func(*fileState)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.acquire(ctx, f.lock.TryRLockContext); err != nil {
		return err
	}
	defer func() { _ = f.lock.Unlock() }()

	st, err := f.read()
	if err != nil {
		return err
	}
	fn(st)
	return nil
}

// update applies fn under an exclusive lock; fn reports whether the state changed.
func (f *FileStore) update(ctx context.Context, fn func(*fileState) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.acquire(ctx, f.lock.TryLockContext); err != nil {
		return err
	}
	defer func() { _ = f.lock.Unlock() }()

	st, err := f.read()
	if err != nil {
		return err
	}
	if !fn(st) {
		return nil
	}
	return f.write(st)
}

func (f *FileStore) acquire(ctx context.Context, try func(context.Context, time.Duration) (bool, error)) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	ok, err := try(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock preferences: %w", err)
	}
	if !ok {
		return fmt.Errorf("lock preferences: not acquired")
	}
	return nil
}

func (f *FileStore) read() (*fileState, error) {
	st := &fileState{Settings: f.defaults}
	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read preferences: %w", err)
	default:
		if err := toml.Unmarshal(data, st); err != nil {
			return nil, fmt.Errorf("parse preferences: %w", err)
		}
	}
	if st.Mutes == nil {
		st.Mutes = make(map[string]time.Time)
	}
	return st, nil
}

func (f *FileStore) write(st *fileState) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".prefs-*")
	if err != nil {
		return fmt.Errorf("create preferences temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish preferences: %w", err)
	}
	return nil
}
