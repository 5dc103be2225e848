// Package pipeline runs the ordered enrichment stages over one notification
// and guarantees exactly one delivery per run.
package pipeline

import (
	"context"
	"fmt"

	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/models"
)

// FailurePolicy says what a stage error means for the rest of the run.
type FailurePolicy int

const (
	// FailOpen stages degrade: their error is logged and the envelope from
	// before the stage carries on.
	FailOpen FailurePolicy = iota
	// FailFast stages may end the run early with a TerminalError.
	FailFast
)

func (p FailurePolicy) String() string {
	if p == FailFast {
		return "fail_fast"
	}
	return "fail_open"
}

type Stage interface {
	Name() string
	Policy() FailurePolicy
	Process(ctx context.Context, identifier string, env models.Envelope) (models.Envelope, error)
}

// TerminalError stops the run and delivers Replacement in place of the
// envelope under construction. Only honoured from FailFast stages.
type TerminalError struct {
	Replacement models.Envelope
	Cause       error
}

func Terminal(replacement models.Envelope, cause error) *TerminalError {
	return &TerminalError{Replacement: replacement, Cause: cause}
}

func (e *TerminalError) Error() string {
	if e.Cause == nil {
		return "terminal stage failure"
	}
	return fmt.Sprintf("terminal stage failure: %v", e.Cause)
}

func (e *TerminalError) Unwrap() error {
	return e.Cause
}

func AsTerminal(err error) (*TerminalError, bool) {
	var te *TerminalError
	if pkgerrors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// StageFunc adapts a function into a Stage.
type StageFunc struct {
	StageName   string
	StagePolicy FailurePolicy
	Fn          func(ctx context.Context, identifier string, env models.Envelope) (models.Envelope, error)
}

func (s StageFunc) Name() string          { return s.StageName }
func (s StageFunc) Policy() FailurePolicy { return s.StagePolicy }

func (s StageFunc) Process(ctx context.Context, identifier string, env models.Envelope) (models.Envelope, error) {
	return s.Fn(ctx, identifier, env)
}
