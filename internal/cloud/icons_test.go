package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/config"
	pkgerrors "beacon/pkg/errors"
)

type fakeIconStore struct {
	icons map[string]Icon
	err   error
	calls int
}

func (f *fakeIconStore) QueryIcon(_ context.Context, name string) (*Icon, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	icon, ok := f.icons[name]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return &icon, nil
}

func (f *fakeIconStore) UpsertIcon(_ context.Context, icon Icon) error {
	if f.err != nil {
		return f.err
	}
	f.icons[icon.Name] = icon
	return nil
}

func breakerSettings() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{Enabled: true, MinRequests: 2, FailureRatio: 0.5, Timeout: time.Minute}
}

func TestBreakerPassesThroughHitsAndMisses(t *testing.T) {
	inner := &fakeIconStore{icons: map[string]Icon{"bell": {Name: "bell", URL: "https://x/bell.png"}}}
	s := NewCircuitBreakerIconStore(inner, breakerSettings())
	ctx := context.Background()

	icon, err := s.QueryIcon(ctx, "bell")
	require.NoError(t, err)
	assert.Equal(t, "https://x/bell.png", icon.URL)

	for i := 0; i < 5; i++ {
		_, err = s.QueryIcon(ctx, "missing")
		assert.True(t, pkgerrors.IsNotFound(err))
	}
	assert.Equal(t, "closed", s.State())
}

func TestBreakerOpensOnBackendFailures(t *testing.T) {
	inner := &fakeIconStore{err: errors.New("no reachable servers")}
	s := NewCircuitBreakerIconStore(inner, breakerSettings())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.QueryIcon(ctx, "bell")
		require.Error(t, err)
	}
	assert.Equal(t, "open", s.State())

	_, err := s.QueryIcon(ctx, "bell")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerDisabled(t *testing.T) {
	inner := &fakeIconStore{icons: map[string]Icon{}}
	s := NewCircuitBreakerIconStore(inner, config.CircuitBreakerConfig{})
	require.NoError(t, s.UpsertIcon(context.Background(), Icon{Name: "a", URL: "https://x/a.png"}))
	assert.Equal(t, "disabled", s.State())
	assert.Contains(t, inner.icons, "a")
}
