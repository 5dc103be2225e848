// Package archive runs the side effects of a pipeline run that must not hold
// up delivery: message-store writes, expiration sweeps and host callbacks.
package archive

import (
	"context"
	"sync"
	"time"

	"beacon/internal/constants"
	"beacon/internal/logger"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/metrics"
)

type Job func(ctx context.Context) error

// Writer runs jobs in the background. Jobs are detached from the caller's
// cancellation and bounded by timeout instead; Wait drains them.
type Writer struct {
	timeout time.Duration
	logger  logger.Logger

	mu      sync.Mutex
	closed  bool
	pending int
	idle    chan struct{}
}

func NewWriter(timeout time.Duration, log logger.Logger) *Writer {
	if timeout <= 0 {
		timeout = constants.DefaultArchiveTimeout
	}
	idle := make(chan struct{})
	close(idle)
	return &Writer{timeout: timeout, logger: log, idle: idle}
}

// Submit schedules job under name. It reports false once the writer is closed.
func (w *Writer) Submit(ctx context.Context, name string, job Job) bool {
	return w.submit(ctx, name, job, nil)
}

func (w *Writer) submit(ctx context.Context, name string, job Job, onDone func()) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.WarnwCtx(ctx, "Archive writer closed, dropping job", "job", name)
		metrics.IncArchiveWrite(name, "dropped")
		return false
	}
	if w.pending == 0 {
		w.idle = make(chan struct{})
	}
	w.pending++
	w.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	go func() {
		defer w.done(onDone)
		defer cancel()
		defer func() {
			if err := pkgerrors.RecoverPanic(recover()); err != nil {
				w.logger.ErrorwCtx(jobCtx, "Archive job panicked", "job", name, "error", err)
				metrics.IncArchiveWrite(name, "failed")
			}
		}()

		if err := job(jobCtx); err != nil {
			w.logger.ErrorwCtx(jobCtx, "Archive job failed", "job", name, "error", err)
			metrics.IncArchiveWrite(name, "failed")
			return
		}
		metrics.IncArchiveWrite(name, "success")
	}()
	return true
}

func (w *Writer) done(onDone func()) {
	if onDone != nil {
		onDone()
	}
	w.mu.Lock()
	w.pending--
	if w.pending == 0 {
		close(w.idle)
	}
	w.mu.Unlock()
}

// Wait blocks until no job is in flight or ctx is done.
func (w *Writer) Wait(ctx context.Context) error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and drains the ones in flight.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return w.Wait(ctx)
}

// Batch groups the jobs of a single run so the run can drain just its own work.
func (w *Writer) Batch() *Batch {
	idle := make(chan struct{})
	close(idle)
	return &Batch{w: w, idle: idle}
}

type Batch struct {
	w *Writer

	mu      sync.Mutex
	sealed  bool
	pending int
	idle    chan struct{}
}

func (b *Batch) Submit(ctx context.Context, name string, job Job) bool {
	b.mu.Lock()
	if b.sealed {
		b.mu.Unlock()
		b.w.logger.WarnwCtx(ctx, "Run already finished, dropping archive job", "job", name)
		metrics.IncArchiveWrite(name, "dropped")
		return false
	}
	if b.pending == 0 {
		b.idle = make(chan struct{})
	}
	b.pending++
	b.mu.Unlock()

	if !b.w.submit(ctx, name, job, b.done) {
		b.done()
		return false
	}
	return true
}

func (b *Batch) done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending--
	if b.pending == 0 {
		close(b.idle)
	}
}

// Wait blocks until the batch has no job in flight or ctx is done.
func (b *Batch) Wait(ctx context.Context) error {
	b.mu.Lock()
	idle := b.idle
	b.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close seals the batch and drains it. Later submissions are dropped.
func (b *Batch) Close(ctx context.Context) error {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()
	return b.Wait(ctx)
}

// Submitter is satisfied by both Writer and Batch.
type Submitter interface {
	Submit(ctx context.Context, name string, job Job) bool
}

type batchKey struct{}

// WithBatch scopes b to a single run. Stages pick it up with SubmitterFrom.
func WithBatch(ctx context.Context, b *Batch) context.Context {
	return context.WithValue(ctx, batchKey{}, b)
}

// BatchFrom returns the run's batch, or nil outside a run.
func BatchFrom(ctx context.Context) *Batch {
	b, _ := ctx.Value(batchKey{}).(*Batch)
	return b
}

// SubmitterFrom returns the run's batch when there is one, else fallback.
func SubmitterFrom(ctx context.Context, fallback Submitter) Submitter {
	if b := BatchFrom(ctx); b != nil {
		return b
	}
	return fallback
}
