package notifier

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/archive"
	"beacon/internal/config"
	"beacon/internal/logger"
	"beacon/internal/pipeline"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/models"
)

func TestBuildEnvelopeFromAPS(t *testing.T) {
	payload := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]interface{}{
				"title":    "Deploy",
				"subtitle": "prod",
				"body":     "v2 live",
			},
			"sound":     "bell",
			"badge":     float64(3),
			"thread-id": "ops",
		},
		"id":    "target-1",
		"icon":  "bot",
		"extra": "kept",
	}

	env := BuildEnvelope("n-1", payload)

	assert.Equal(t, "n-1", env.Identifier)
	assert.Equal(t, "Deploy", env.Title)
	assert.Equal(t, "prod", env.Subtitle)
	assert.Equal(t, "v2 live", env.Body)
	assert.Equal(t, "bell.caf", env.SoundName)
	assert.Equal(t, "ops", env.ThreadKey)
	assert.Equal(t, "target-1", env.TargetID)
	require.NotNil(t, env.Badge)
	assert.Equal(t, 3, *env.Badge)
	assert.Equal(t, models.LevelActive, env.Level)
	assert.Equal(t, models.CategoryPlain, env.Category)

	assert.NotContains(t, env.CustomFields, "aps")
	assert.Equal(t, "kept", env.CustomFields["extra"])
	assert.Equal(t, "bot", env.CustomFields["icon"])
}

func TestBuildEnvelopeFallbacks(t *testing.T) {
	env := BuildEnvelope("n-1", map[string]interface{}{
		"aps":   map[string]interface{}{"alert": "just a body"},
		"title": "top level",
		"sound": "alarm.caf",
	})
	assert.Equal(t, "top level", env.Title)
	assert.Equal(t, "just a body", env.Body)
	assert.Equal(t, "alarm.caf", env.SoundName)
	assert.Nil(t, env.Badge)

	md := BuildEnvelope("n-2", map[string]interface{}{"markdown": "**hi**", "body": "ignored"})
	assert.Equal(t, "**hi**", md.Body)
	assert.Equal(t, models.CategoryMarkdown, md.Category)

	cat := BuildEnvelope("n-3", map[string]interface{}{
		"aps":  map[string]interface{}{"category": "markdown"},
		"body": "# h",
	})
	assert.Equal(t, models.CategoryMarkdown, cat.Category)
}

func stage(name string, fn func(ctx context.Context, env models.Envelope) (models.Envelope, error)) pipeline.Stage {
	return pipeline.StageFunc{
		StageName: name,
		Fn: func(ctx context.Context, _ string, env models.Envelope) (models.Envelope, error) {
			return fn(ctx, env)
		},
	}
}

func TestHandleDrainsRunArchiveWork(t *testing.T) {
	writer := archive.NewWriter(time.Second, logger.NopLogger())
	var written atomic.Bool
	archival := stage("archival", func(ctx context.Context, env models.Envelope) (models.Envelope, error) {
		archive.SubmitterFrom(ctx, writer).Submit(ctx, "archive", func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			written.Store(true)
			return nil
		})
		return env, nil
	})
	svc := NewService(pipeline.New([]pipeline.Stage{archival}, logger.NopLogger()), writer,
		config.PipelineConfig{Deadline: time.Second}, logger.NopLogger())

	var delivered atomic.Int32
	n, err := svc.Handle(context.Background(), models.InboundPush{
		ID:      "n-1",
		Payload: map[string]interface{}{"title": "t"},
	}, func(models.Notification) { delivered.Add(1) })
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCompleted, n.Outcome)
	assert.Equal(t, "t", n.Envelope.Title)
	assert.True(t, written.Load())
	assert.EqualValues(t, 1, delivered.Load())
}

func TestHandleDeliversAtDeadline(t *testing.T) {
	var lateEffect atomic.Bool
	stages := []pipeline.Stage{
		stage("one", func(_ context.Context, env models.Envelope) (models.Envelope, error) {
			env.Body = "one"
			return env, nil
		}),
		stage("two", func(_ context.Context, env models.Envelope) (models.Envelope, error) {
			env.Body += ",two"
			return env, nil
		}),
		stage("slow", func(ctx context.Context, env models.Envelope) (models.Envelope, error) {
			select {
			case <-ctx.Done():
				return env, ctx.Err()
			case <-time.After(5 * time.Second):
				lateEffect.Store(true)
				return env, nil
			}
		}),
		stage("four", func(_ context.Context, env models.Envelope) (models.Envelope, error) {
			lateEffect.Store(true)
			return env, nil
		}),
	}
	svc := NewService(pipeline.New(stages, logger.NopLogger()), archive.NewWriter(time.Second, logger.NopLogger()),
		config.PipelineConfig{Deadline: 60 * time.Millisecond, InterruptMargin: 10 * time.Millisecond}, logger.NopLogger())

	start := time.Now()
	n, err := svc.Handle(context.Background(), models.InboundPush{Payload: map[string]interface{}{}}, nil)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.OutcomeExpired, n.Outcome)
	assert.Equal(t, "one,two", n.Envelope.Body)
	assert.Equal(t, 2, n.StagesRun)
	assert.NotEmpty(t, n.Envelope.Identifier)
	assert.False(t, lateEffect.Load())
}

func TestHandleRejectsEmptyPayload(t *testing.T) {
	svc := NewService(pipeline.New(nil, logger.NopLogger()), nil, config.PipelineConfig{}, logger.NopLogger())
	_, err := svc.Handle(context.Background(), models.InboundPush{ID: "x"}, nil)
	assert.True(t, pkgerrors.IsValidation(err))
}
