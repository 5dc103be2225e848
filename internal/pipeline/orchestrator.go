package pipeline

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"beacon/internal/logger"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/logging"
	"beacon/pkg/metrics"
	"beacon/pkg/models"
	"beacon/pkg/tracing"
)

// DeliverFunc receives the final notification. It is called exactly once per
// run, before Done is closed, so it must not block on the run itself.
type DeliverFunc func(models.Notification)

type Orchestrator struct {
	stages []Stage
	logger logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(stages []Stage, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages: stages,
		logger: log,
		tracer: tracing.GetTracer("beacon/pipeline"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) StageNames() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes the pipeline synchronously and returns what was delivered.
// Cancelling ctx acts as the deadline interrupt.
func (o *Orchestrator) Run(ctx context.Context, identifier string, env models.Envelope) models.Notification {
	r := o.Start(ctx, identifier, env, nil)
	<-r.Done()
	return r.Result()
}

// Start begins a run in the background. deliver may be nil.
func (o *Orchestrator) Start(ctx context.Context, identifier string, env models.Envelope, deliver DeliverFunc) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		o:          o,
		identifier: identifier,
		current:    env.Clone(),
		deliverFn:  deliver,
		interrupt:  make(chan struct{}),
		done:       make(chan struct{}),
		cancel:     cancel,
		started:    o.now(),
	}
	go r.loop(runCtx)
	return r
}

// Run is a single in-flight pipeline execution.
type Run struct {
	o          *Orchestrator
	identifier string
	deliverFn  DeliverFunc
	cancel     context.CancelFunc
	started    time.Time

	mu        sync.Mutex
	current   models.Envelope
	stagesRun int

	interrupt     chan struct{}
	interruptOnce sync.Once

	deliverOnce sync.Once
	done        chan struct{}
	result      models.Notification
}

// Expire is the deadline interrupt: the run delivers its latest envelope now.
// Safe to call from any goroutine, any number of times.
func (r *Run) Expire() {
	r.interruptOnce.Do(func() { close(r.interrupt) })
}

// Done is closed once the run has delivered.
func (r *Run) Done() <-chan struct{} { return r.done }

// Result is the delivered notification. Only valid after Done is closed.
func (r *Run) Result() models.Notification {
	<-r.done
	return r.result
}

// Snapshot returns the latest committed envelope.
func (r *Run) Snapshot() models.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.Clone()
}

type stageResult struct {
	env models.Envelope
	err error
}

func (r *Run) loop(ctx context.Context) {
	ctx = logging.WithNotificationID(ctx, r.identifier)
	ctx, span := r.o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("notification.id", r.identifier)))
	defer span.End()

	for _, stage := range r.o.stages {
		select {
		case <-r.interrupt:
			r.deliver(ctx, r.Snapshot(), models.OutcomeExpired)
			return
		case <-ctx.Done():
			r.deliver(ctx, r.Snapshot(), models.OutcomeExpired)
			return
		default:
		}

		resCh := make(chan stageResult, 1)
		input := r.Snapshot()
		stageCtx, stageSpan := r.o.tracer.Start(logging.WithStage(ctx, stage.Name()), "stage."+stage.Name())
		start := r.o.now()

		go func(s Stage) {
			defer func() {
				if err := pkgerrors.RecoverPanic(recover()); err != nil {
					resCh <- stageResult{err: err}
				}
			}()
			env, err := s.Process(stageCtx, r.identifier, input)
			resCh <- stageResult{env: env, err: err}
		}(stage)

		select {
		case res := <-resCh:
			stop := r.handle(stageCtx, stage, res, start)
			if res.err != nil {
				stageSpan.SetStatus(codes.Error, res.err.Error())
			}
			stageSpan.End()
			if stop {
				return
			}
		case <-r.interrupt:
			stageSpan.SetStatus(codes.Error, "interrupted")
			stageSpan.End()
			r.o.logger.WarnwCtx(stageCtx, "Deadline reached, abandoning stage", "stage", stage.Name())
			metrics.ObserveStage(stage.Name(), "abandoned", r.o.now().Sub(start))
			r.deliver(ctx, r.Snapshot(), models.OutcomeExpired)
			return
		case <-ctx.Done():
			stageSpan.SetStatus(codes.Error, "cancelled")
			stageSpan.End()
			metrics.ObserveStage(stage.Name(), "abandoned", r.o.now().Sub(start))
			r.deliver(ctx, r.Snapshot(), models.OutcomeExpired)
			return
		}
	}

	r.deliver(ctx, r.Snapshot(), models.OutcomeCompleted)
}

// handle folds a stage result into the run and reports whether the run is over.
func (r *Run) handle(ctx context.Context, stage Stage, res stageResult, start time.Time) bool {
	elapsed := r.o.now().Sub(start)

	if res.err == nil {
		r.commit(res.env)
		metrics.ObserveStage(stage.Name(), "success", elapsed)
		return false
	}

	if te, ok := AsTerminal(res.err); ok {
		if stage.Policy() == FailFast {
			r.o.logger.WarnwCtx(ctx, "Stage ended run early",
				"stage", stage.Name(),
				"error", te.Cause,
			)
			metrics.ObserveStage(stage.Name(), "terminated", elapsed)
			r.mu.Lock()
			r.stagesRun++
			r.mu.Unlock()
			r.deliver(ctx, te.Replacement, models.OutcomeTerminated)
			return true
		}
		r.o.logger.ErrorwCtx(ctx, "Fail-open stage returned a terminal error, ignoring",
			"stage", stage.Name(),
			"error", te.Cause,
		)
	} else {
		r.o.logger.WarnwCtx(ctx, "Stage failed, continuing with previous envelope",
			"stage", stage.Name(),
			"policy", stage.Policy().String(),
			"error", res.err,
			"panic", pkgerrors.IsPanic(res.err),
		)
	}

	metrics.ObserveStage(stage.Name(), "failed", elapsed)
	r.mu.Lock()
	r.stagesRun++
	r.mu.Unlock()
	return false
}

func (r *Run) commit(env models.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = env
	r.stagesRun++
}

func (r *Run) deliver(ctx context.Context, env models.Envelope, outcome models.Outcome) {
	r.deliverOnce.Do(func() {
		r.mu.Lock()
		stagesRun := r.stagesRun
		r.mu.Unlock()

		r.result = models.Notification{
			Envelope:    env,
			Outcome:     outcome,
			StagesRun:   stagesRun,
			DeliveredAt: r.o.now(),
		}
		// in-flight stage work is abandoned from here on
		r.cancel()

		metrics.ObserveRun(string(outcome), r.result.DeliveredAt.Sub(r.started))
		r.o.logger.InfowCtx(ctx, "Notification delivered",
			"outcome", outcome,
			"stages_run", stagesRun,
		)

		if r.deliverFn != nil {
			r.deliverFn(r.result)
		}
		close(r.done)
	})
}
