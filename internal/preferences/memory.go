package preferences

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu       sync.Mutex
	settings Settings
	count    int64
	images   map[string]struct{}
	mutes    map[string]time.Time
}

func NewMemoryStore(defaults Settings) *MemoryStore {
	return &MemoryStore{
		settings: defaults,
		images:   make(map[string]struct{}),
		mutes:    make(map[string]time.Time),
	}
}

func (m *MemoryStore) Settings(context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *MemoryStore) SaveSettings(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}

func (m *MemoryStore) IncrementMessageCount(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	return m.count, nil
}

func (m *MemoryStore) MessageCount(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, nil
}

func (m *MemoryStore) MarkImageSaved(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[hash]; ok {
		return false, nil
	}
	m.images[hash] = struct{}{}
	return true, nil
}

func (m *MemoryStore) Mute(_ context.Context, group string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.mutes[group]
	return until, ok, nil
}

func (m *MemoryStore) SetMute(_ context.Context, group string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutes[group] = until
	return nil
}

func (m *MemoryStore) ClearMute(_ context.Context, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mutes, group)
	return nil
}

func (m *MemoryStore) PurgeExpiredMutes(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return purge(m.mutes, now), nil
}

func (m *MemoryStore) Mutes(context.Context) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.mutes))
	for k, v := range m.mutes {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func purge(mutes map[string]time.Time, now time.Time) int {
	n := 0
	for group, until := range mutes {
		if !now.Before(until) {
			delete(mutes, group)
			n++
		}
	}
	return n
}
