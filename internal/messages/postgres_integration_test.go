//go:build integration

package messages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/testinfra"
)

func TestPostgresStore(t *testing.T) {
	infra := testinfra.SetupWithOptions(t, true, false, false)
	store := NewSQLStore(infra.PostgresDB, "postgres")
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	require.NoError(t, store.Add(ctx, message("a", now, 30)))
	require.NoError(t, store.Add(ctx, message("a", now, 30)))
	require.NoError(t, store.Add(ctx, message("old", now.Add(-31*24*time.Hour), 30)))

	n, err := store.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	swept, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, swept)

	list, err := store.List(ctx, Filter{Group: "ops"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, now.Equal(list[0].CreatedAt))
}
