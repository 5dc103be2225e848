// Package notifier is the entry point for inbound pushes: it builds the
// envelope, runs the pipeline under the delivery deadline and waits for the
// run's archive work.
package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"beacon/internal/archive"
	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/internal/pipeline"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/logging"
	"beacon/pkg/models"
	"beacon/pkg/tracing"
)

type Service interface {
	// Handle runs push through the pipeline. deliver, when not nil, receives
	// the notification as soon as the run delivers; Handle itself returns
	// once the run's archive writes have drained.
	Handle(ctx context.Context, push models.InboundPush, deliver pipeline.DeliverFunc) (models.Notification, error)
}

type serviceImpl struct {
	orchestrator   *pipeline.Orchestrator
	writer         *archive.Writer
	interruptAfter time.Duration
	logger         logger.Logger
}

func NewService(o *pipeline.Orchestrator, writer *archive.Writer, cfg config.PipelineConfig, log logger.Logger) Service {
	if cfg.Deadline <= 0 {
		cfg.Deadline = constants.DefaultDeadline
		cfg.InterruptMargin = constants.DefaultInterruptMargin
	}
	return &serviceImpl{
		orchestrator:   o,
		writer:         writer,
		interruptAfter: cfg.InterruptAfter(),
		logger:         log,
	}
}

func (s *serviceImpl) Handle(ctx context.Context, push models.InboundPush, deliver pipeline.DeliverFunc) (models.Notification, error) {
	if err := models.ValidateInboundPush(&push); err != nil {
		return models.Notification{}, pkgerrors.ErrValidation.WithMessage(err.Error()).WithCause(err)
	}
	if push.ID == "" {
		push.ID = uuid.NewString()
	}

	ctx, span := tracing.GetTracer("beacon/notifier").Start(ctx, "notifier.handle")
	defer span.End()

	if push.Metadata.TraceID != "" {
		ctx = logging.WithTraceID(ctx, push.Metadata.TraceID)
	}
	ctx = logging.WithNotificationID(ctx, push.ID)

	env := BuildEnvelope(push.ID, push.Payload)
	s.logger.DebugwCtx(ctx, "Push received",
		"source", push.Metadata.Source,
		"has_ciphertext", env.CustomFields[models.KeyCiphertext] != nil,
	)

	var batch *archive.Batch
	if s.writer != nil {
		batch = s.writer.Batch()
		ctx = archive.WithBatch(ctx, batch)
	}

	run := s.orchestrator.Start(ctx, push.ID, env, deliver)
	timer := time.AfterFunc(s.interruptAfter, run.Expire)
	defer timer.Stop()

	n := run.Result()

	if batch != nil {
		if err := batch.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnwCtx(ctx, "Archive work did not drain", "error", err)
		}
	}
	return n, nil
}
