package ingest

import (
	"context"

	"go.uber.org/zap"
)

// Saga collects named compensations for the side effects an ingestion
// flow has already committed. On failure the compensations run in reverse
// registration order; each failure is logged and the rest still run.
type Saga struct {
	steps []sagaStep
}

type sagaStep struct {
	label string
	undo  func(ctx context.Context) error
}

// NewSaga returns an empty saga.
func NewSaga() *Saga {
	return &Saga{}
}

// Register appends a compensation. The label names the side effect being
// undone, not the undo action.
func (s *Saga) Register(label string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, sagaStep{label: label, undo: undo})
}

// Rollback runs all compensations newest-first and clears the saga.
func (s *Saga) Rollback(ctx context.Context, logger *zap.Logger) {
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			logger.Error("rollback step failed",
				zap.String("step", step.label),
				zap.Error(err))
			continue
		}
		logger.Info("rolled back", zap.String("step", step.label))
	}
	s.steps = nil
}

// Commit discards the compensations after a successful flow.
func (s *Saga) Commit() {
	s.steps = nil
}
