package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/logger"
	"beacon/pkg/models"
)

// recorder tracks which stages were entered and which committed a side effect.
type recorder struct {
	mu      sync.Mutex
	entered []string
	effects []string
}

func (r *recorder) enter(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entered = append(r.entered, name)
}

func (r *recorder) effect(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, name)
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entered...), append([]string(nil), r.effects...)
}

func appendBody(rec *recorder, name string) Stage {
	return StageFunc{
		StageName:   name,
		StagePolicy: FailOpen,
		Fn: func(ctx context.Context, _ string, env models.Envelope) (models.Envelope, error) {
			rec.enter(name)
			env.Body += name + ";"
			rec.effect(name)
			return env, nil
		},
	}
}

// blocking waits for cancellation and only records an effect if it was never cancelled.
func blocking(rec *recorder, name string, started chan<- struct{}) Stage {
	return StageFunc{
		StageName:   name,
		StagePolicy: FailOpen,
		Fn: func(ctx context.Context, _ string, env models.Envelope) (models.Envelope, error) {
			rec.enter(name)
			close(started)
			<-ctx.Done()
			if ctx.Err() == nil {
				rec.effect(name)
			}
			env.Body += name + ";"
			return env, ctx.Err()
		},
	}
}

func TestRunCompletesAllStagesInOrder(t *testing.T) {
	rec := &recorder{}
	o := New([]Stage{appendBody(rec, "a"), appendBody(rec, "b"), appendBody(rec, "c")}, logger.NopLogger())

	n := o.Run(context.Background(), "id-1", models.Envelope{Identifier: "id-1"})

	assert.Equal(t, models.OutcomeCompleted, n.Outcome)
	assert.Equal(t, "a;b;c;", n.Envelope.Body)
	assert.Equal(t, 3, n.StagesRun)
	assert.Equal(t, []string{"a", "b", "c"}, o.StageNames())
}

func TestDeadlineAfterSecondOfSixStages(t *testing.T) {
	rec := &recorder{}
	started := make(chan struct{})
	stages := []Stage{
		appendBody(rec, "s1"),
		appendBody(rec, "s2"),
		blocking(rec, "s3", started),
		appendBody(rec, "s4"),
		appendBody(rec, "s5"),
		appendBody(rec, "s6"),
	}
	o := New(stages, logger.NopLogger())

	var deliveries atomic.Int32
	run := o.Start(context.Background(), "id", models.Envelope{}, func(models.Notification) {
		deliveries.Add(1)
	})

	<-started
	run.Expire()
	run.Expire()

	n := run.Result()
	assert.Equal(t, models.OutcomeExpired, n.Outcome)
	assert.Equal(t, "s1;s2;", n.Envelope.Body)
	assert.Equal(t, 2, n.StagesRun)

	// give an abandoned stage a chance to misbehave
	time.Sleep(20 * time.Millisecond)
	entered, effects := rec.snapshot()
	assert.Equal(t, []string{"s1", "s2", "s3"}, entered)
	assert.Equal(t, []string{"s1", "s2"}, effects)
	assert.EqualValues(t, 1, deliveries.Load())
}

func TestTerminalErrorShortCircuits(t *testing.T) {
	rec := &recorder{}
	replacement := models.Envelope{Title: "Decryption failed"}
	terminal := StageFunc{
		StageName:   "decrypt",
		StagePolicy: FailFast,
		Fn: func(context.Context, string, models.Envelope) (models.Envelope, error) {
			return models.Envelope{}, Terminal(replacement, errors.New("bad tag"))
		},
	}
	o := New([]Stage{terminal, appendBody(rec, "archive")}, logger.NopLogger())

	n := o.Run(context.Background(), "id", models.Envelope{Title: "orig"})

	assert.Equal(t, models.OutcomeTerminated, n.Outcome)
	assert.Equal(t, "Decryption failed", n.Envelope.Title)
	entered, _ := rec.snapshot()
	assert.Empty(t, entered)
}

func TestFailOpenErrorsKeepPreviousEnvelope(t *testing.T) {
	rec := &recorder{}
	failing := StageFunc{
		StageName:   "media",
		StagePolicy: FailOpen,
		Fn: func(_ context.Context, _ string, env models.Envelope) (models.Envelope, error) {
			env.Body = "clobbered"
			return env, errors.New("fetch failed")
		},
	}
	wronglyTerminal := StageFunc{
		StageName:   "badge",
		StagePolicy: FailOpen,
		Fn: func(context.Context, string, models.Envelope) (models.Envelope, error) {
			return models.Envelope{}, Terminal(models.Envelope{Title: "nope"}, nil)
		},
	}
	panicking := StageFunc{
		StageName:   "mute",
		StagePolicy: FailOpen,
		Fn: func(context.Context, string, models.Envelope) (models.Envelope, error) {
			panic("boom")
		},
	}
	o := New([]Stage{appendBody(rec, "a"), failing, wronglyTerminal, panicking, appendBody(rec, "z")}, logger.NopLogger())

	n := o.Run(context.Background(), "id", models.Envelope{Title: "keep"})

	assert.Equal(t, models.OutcomeCompleted, n.Outcome)
	assert.Equal(t, "keep", n.Envelope.Title)
	assert.Equal(t, "a;z;", n.Envelope.Body)
	assert.Equal(t, 5, n.StagesRun)
}

func TestStagesReceiveCopies(t *testing.T) {
	var seen *models.Envelope
	grab := StageFunc{
		StageName: "grab",
		Fn: func(_ context.Context, _ string, env models.Envelope) (models.Envelope, error) {
			env.CustomFields["k"] = "changed"
			seen = &env
			return models.Envelope{}, errors.New("discard")
		},
	}
	o := New([]Stage{grab}, logger.NopLogger())

	n := o.Run(context.Background(), "id", models.Envelope{CustomFields: map[string]interface{}{"k": "v"}})
	require.NotNil(t, seen)
	assert.Equal(t, "v", n.Envelope.CustomFields["k"])
}

func TestParentCancellationDeliversOnce(t *testing.T) {
	rec := &recorder{}
	started := make(chan struct{})
	o := New([]Stage{appendBody(rec, "a"), blocking(rec, "b", started)}, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int32
	run := o.Start(ctx, "id", models.Envelope{}, func(models.Notification) { count.Add(1) })
	<-started
	cancel()
	run.Expire()

	n := run.Result()
	assert.Equal(t, models.OutcomeExpired, n.Outcome)
	assert.Equal(t, "a;", n.Envelope.Body)
	assert.EqualValues(t, 1, count.Load())
}

func TestConcurrentExpireIsSafe(t *testing.T) {
	rec := &recorder{}
	stages := make([]Stage, 0, 50)
	for i := 0; i < 50; i++ {
		stages = append(stages, appendBody(rec, fmt.Sprint(i)))
	}
	o := New(stages, logger.NopLogger())

	var count atomic.Int32
	run := o.Start(context.Background(), "id", models.Envelope{}, func(models.Notification) { count.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run.Expire()
			_ = run.Snapshot()
		}()
	}
	wg.Wait()
	<-run.Done()
	assert.EqualValues(t, 1, count.Load())
}
