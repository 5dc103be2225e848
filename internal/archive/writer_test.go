package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/logger"
)

func TestWriterDetachesFromCallerCancellation(t *testing.T) {
	w := NewWriter(time.Second, logger.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Bool
	release := make(chan struct{})
	require.True(t, w.Submit(ctx, "add", func(jobCtx context.Context) error {
		<-release
		if jobCtx.Err() == nil {
			ran.Store(true)
		}
		return nil
	}))

	cancel()
	close(release)
	require.NoError(t, w.Wait(context.Background()))
	assert.True(t, ran.Load())
}

func TestWriterSurvivesFailuresAndPanics(t *testing.T) {
	w := NewWriter(time.Second, logger.NopLogger())
	ctx := context.Background()

	w.Submit(ctx, "add", func(context.Context) error { return errors.New("disk full") })
	w.Submit(ctx, "add", func(context.Context) error { panic("boom") })

	require.NoError(t, w.Wait(ctx))
}

func TestWriterTimeoutBoundsJob(t *testing.T) {
	w := NewWriter(20*time.Millisecond, logger.NopLogger())
	var expired atomic.Bool
	w.Submit(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		expired.Store(true)
		return ctx.Err()
	})
	require.NoError(t, w.Wait(context.Background()))
	assert.True(t, expired.Load())
}

func TestWriterCloseRejectsNewJobs(t *testing.T) {
	w := NewWriter(time.Second, logger.NopLogger())
	require.NoError(t, w.Close(context.Background()))
	assert.False(t, w.Submit(context.Background(), "add", func(context.Context) error { return nil }))
}

func TestBatchWaitsForOwnJobsOnly(t *testing.T) {
	w := NewWriter(time.Second, logger.NopLogger())
	other := make(chan struct{})
	w.Submit(context.Background(), "other", func(context.Context) error {
		<-other
		return nil
	})

	b := w.Batch()
	var done atomic.Bool
	b.Submit(context.Background(), "mine", func(context.Context) error {
		done.Store(true)
		return nil
	})
	require.NoError(t, b.Wait(context.Background()))
	assert.True(t, done.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)

	close(other)
	require.NoError(t, w.Wait(context.Background()))
}

func TestHostCallback(t *testing.T) {
	var gotID atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID.Store(r.URL.Query().Get("id"))
		assert.Equal(t, "x", r.URL.Query().Get("keep"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cb := NewHostCallback(time.Second, nil)
	require.NoError(t, cb.Notify(context.Background(), srv.URL+"/ack?keep=x", "msg-1"))
	assert.Equal(t, "msg-1", gotID.Load())

	assert.Error(t, cb.Notify(context.Background(), "ftp://nope", "msg-1"))
}

func TestHostCallbackServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHostCallback(time.Second, nil).Notify(context.Background(), srv.URL, "id")
	assert.Error(t, err)
}

func TestBatchCloseSealsBatch(t *testing.T) {
	w := NewWriter(time.Second, logger.NopLogger())
	b := w.Batch()
	ctx := context.Background()
	require.True(t, b.Submit(ctx, "first", func(context.Context) error { return nil }))
	require.NoError(t, b.Close(ctx))

	assert.False(t, b.Submit(ctx, "late", func(context.Context) error { return nil }))
	assert.Equal(t, b, BatchFrom(WithBatch(ctx, b)))
	assert.Nil(t, BatchFrom(ctx))
	assert.Equal(t, Submitter(w), SubmitterFrom(ctx, w))
}
