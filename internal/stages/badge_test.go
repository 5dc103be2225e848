package stages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/logger"
	"beacon/pkg/models"
)

func seedUnread(t *testing.T, f *fixture, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.messages.Add(context.Background(), models.PersistedMessage{
			ID:        id,
			CreatedAt: fixedNow,
			Group:     "ops",
			Title:     id,
			TTLDays:   30,
		}))
	}
}

func TestBadgeFromUnreadCount(t *testing.T) {
	f := newFixture(t, defaultSettings())
	seedUnread(t, f, "a", "b", "c")

	out, err := NewBadge(f.messages, logger.NopLogger()).Process(context.Background(), "id", envelope(nil))
	require.NoError(t, err)
	require.NotNil(t, out.Badge)
	assert.Equal(t, 3, *out.Badge)
}

func TestBadgeExplicit(t *testing.T) {
	f := newFixture(t, defaultSettings())
	seedUnread(t, f, "a", "b")

	out, err := NewBadge(f.messages, logger.NopLogger()).Process(context.Background(), "id",
		envelope(map[string]interface{}{"badge": "9"}))
	require.NoError(t, err)
	require.NotNil(t, out.Badge)
	assert.Equal(t, 9, *out.Badge)

	unread, err := f.messages.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, unread)
}

func TestBadgeNonPositiveMarksAllRead(t *testing.T) {
	f := newFixture(t, defaultSettings())
	seedUnread(t, f, "a", "b")

	out, err := NewBadge(f.messages, logger.NopLogger()).Process(context.Background(), "id",
		envelope(map[string]interface{}{"badge": -5}))
	require.NoError(t, err)
	require.NotNil(t, out.Badge)
	assert.Equal(t, -5, *out.Badge)

	unread, err := f.messages.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestBadgeFromEnvelope(t *testing.T) {
	f := newFixture(t, defaultSettings())
	env := envelope(nil)
	four := 4
	env.Badge = &four

	out, err := NewBadge(f.messages, logger.NopLogger()).Process(context.Background(), "id", env)
	require.NoError(t, err)
	assert.Equal(t, 4, *out.Badge)
}

func TestBadgeStoreFailureLeavesBadgeUnset(t *testing.T) {
	f := newFixture(t, defaultSettings())
	require.NoError(t, f.messages.Close())

	env := envelope(nil)
	out, err := NewBadge(f.messages, logger.NopLogger()).Process(context.Background(), "id", env)
	require.NoError(t, err)
	assert.Nil(t, out.Badge)
}

func TestMuteForcesPassive(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	require.NoError(t, f.prefs.SetMute(ctx, "ops", fixedNow.Add(time.Hour)))
	require.NoError(t, f.prefs.SetMute(ctx, "stale", fixedNow.Add(-time.Minute)))

	s := NewMute(f.prefs, logger.NopLogger(), clock)

	env := envelope(map[string]interface{}{"title": "t"})
	env.ThreadKey = "ops"
	env.Level = models.LevelCritical
	env.Volume = 10
	out, err := s.Process(ctx, "id", env)
	require.NoError(t, err)
	assert.Equal(t, models.LevelPassive, out.Level)
	assert.Zero(t, out.Volume)

	env.ThreadKey = "other"
	out, err = s.Process(ctx, "id", env)
	require.NoError(t, err)
	assert.Equal(t, models.LevelCritical, out.Level)

	mutes, err := f.prefs.Mutes(ctx)
	require.NoError(t, err)
	assert.NotContains(t, mutes, "stale")
	assert.Contains(t, mutes, "ops")
}

func TestMuteExpiresAtBoundary(t *testing.T) {
	f := newFixture(t, defaultSettings())
	require.NoError(t, f.prefs.SetMute(context.Background(), "ops", fixedNow))

	env := envelope(map[string]interface{}{"title": "t"})
	env.ThreadKey = "ops"
	out, err := NewMute(f.prefs, logger.NopLogger(), clock).Process(context.Background(), "id", env)
	require.NoError(t, err)
	assert.Equal(t, models.LevelActive, out.Level)
}

func TestMutePurgesWithoutGroup(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	require.NoError(t, f.prefs.SetMute(ctx, "stale", fixedNow.Add(-time.Minute)))
	require.NoError(t, f.prefs.SetMute(ctx, "ops", fixedNow.Add(time.Hour)))

	env := envelope(map[string]interface{}{"title": "t"})
	out, err := NewMute(f.prefs, logger.NopLogger(), clock).Process(ctx, "id", env)
	require.NoError(t, err)
	assert.Equal(t, models.LevelActive, out.Level)

	mutes, err := f.prefs.Mutes(ctx)
	require.NoError(t, err)
	assert.NotContains(t, mutes, "stale")
	assert.Contains(t, mutes, "ops")
}
