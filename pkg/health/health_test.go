package health

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestRegistryAggregatesStatus(t *testing.T) {
	ok := NewFuncChecker("ok", func(context.Context) error { return nil })
	down := NewFuncChecker("icons", func(context.Context) error { return errors.New("breaker open") })

	r := NewCheckerRegistry()
	r.Register(ok)
	assert.Equal(t, StatusHealthy, r.Check(context.Background()).Status)

	r.Register(Optional{down})
	h := r.Check(context.Background())
	assert.Equal(t, StatusDegraded, h.Status)
	assert.Equal(t, StatusDegraded, h.Checks["icons"].Status)
	assert.Equal(t, "breaker open", h.Checks["icons"].Message)

	r.Register(NewFuncChecker("store", func(context.Context) error { return errors.New("gone") }))
	assert.Equal(t, StatusUnhealthy, r.Check(context.Background()).Status)
}

func TestSQLChecker(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)

	c := NewSQLChecker(db, "")
	assert.Equal(t, "sqlite", c.Name())
	assert.NoError(t, c.Check(context.Background()))

	require.NoError(t, db.Close())
	assert.Error(t, c.Check(context.Background()))
}
