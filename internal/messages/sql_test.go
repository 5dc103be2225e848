package messages

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/config"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/models"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "messages.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func message(id string, created time.Time, ttl int) models.PersistedMessage {
	return models.PersistedMessage{
		ID:        id,
		CreatedAt: created,
		Group:     "ops",
		Title:     "title " + id,
		Body:      "body " + id,
		Level:     1,
		TTLDays:   ttl,
	}
}

func TestAddIsUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	m := message("a", now, 7)
	require.NoError(t, store.Add(ctx, m))

	m.Title = "replaced"
	require.NoError(t, store.Add(ctx, m))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got.Title)
	assert.True(t, now.Equal(got.CreatedAt))

	list, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestListFiltersAndOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		m := message(fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second), 30)
		if i%2 == 0 {
			m.Group = "alerts"
		}
		if i == 4 {
			m.Body = "disk almost full"
		}
		require.NoError(t, store.Add(ctx, m))
	}
	require.NoError(t, store.MarkRead(ctx, "m2"))

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "m4", all[0].ID)

	alerts, err := store.List(ctx, Filter{Group: "alerts", UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, alerts, 2)

	found, err := store.List(ctx, Filter{Search: "disk"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "m4", found[0].ID)

	page, err := store.List(ctx, Filter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m2", page[0].ID)
}

func TestReadState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Add(ctx, message(id, time.Now(), 30)))
	}

	n, err := store.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, store.MarkRead(ctx, "a"))
	n, err = store.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	affected, err := store.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	n, err = store.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.True(t, pkgerrors.IsNotFound(store.MarkRead(ctx, "zzz")))
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, message("a", time.Now(), 30)))

	require.NoError(t, store.Delete(ctx, "a"))
	assert.True(t, pkgerrors.IsNotFound(store.Delete(ctx, "a")))
}

func TestDeleteExpiredAroundBoundary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)
	thirtyDays := 30 * 24 * time.Hour

	require.NoError(t, store.Add(ctx, message("expired", now.Add(-thirtyDays-time.Minute), 30)))
	require.NoError(t, store.Add(ctx, message("fresh", now.Add(-thirtyDays+time.Minute), 30)))
	require.NoError(t, store.Add(ctx, message("boundary", now.Add(-thirtyDays), 30)))
	require.NoError(t, store.Add(ctx, message("forever", now.Add(-10*365*24*time.Hour), models.RetentionForever)))

	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.Get(ctx, "expired")
	assert.True(t, pkgerrors.IsNotFound(err))
	for _, id := range []string{"fresh", "boundary", "forever"} {
		_, err := store.Get(ctx, id)
		assert.NoError(t, err, id)
	}
}

func TestRebind(t *testing.T) {
	pg := NewSQLStore(nil, "postgres")
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := NewSQLStore(nil, "sqlite")
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
