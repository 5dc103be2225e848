//go:build integration

package cloud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/testinfra"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/migrations"
)

func TestMongoIconStore(t *testing.T) {
	infra := testinfra.SetupWithOptions(t, false, true, false)
	ctx := context.Background()

	require.NoError(t, migrations.EnsureIconCollection(ctx, infra.MongoDB, "icons"))
	store := NewMongoIconStore(infra.MongoDB, "icons")

	_, err := store.QueryIcon(ctx, "weather")
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, store.UpsertIcon(ctx, Icon{Name: "weather", Data: []byte("png-bytes")}))
	require.NoError(t, store.UpsertIcon(ctx, Icon{Name: "weather", URL: "https://icons.example/w.png"}))

	icon, err := store.QueryIcon(ctx, "weather")
	require.NoError(t, err)
	assert.Equal(t, "https://icons.example/w.png", icon.URL)
	assert.Empty(t, icon.Data)

	assert.True(t, pkgerrors.IsValidation(store.UpsertIcon(ctx, Icon{Name: "empty"})))
}
