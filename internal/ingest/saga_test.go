package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSagaRollsBackInReverseOrder(t *testing.T) {
	var order []string
	saga := NewSaga()
	saga.Register("db row", func(ctx context.Context) error {
		order = append(order, "db row")
		return nil
	})
	saga.Register("objects", func(ctx context.Context) error {
		order = append(order, "objects")
		return nil
	})

	saga.Rollback(context.Background(), zap.NewNop())
	require.Equal(t, []string{"objects", "db row"}, order)
}

func TestSagaContinuesPastFailedSteps(t *testing.T) {
	var order []string
	saga := NewSaga()
	saga.Register("db row", func(ctx context.Context) error {
		order = append(order, "db row")
		return nil
	})
	saga.Register("objects", func(ctx context.Context) error {
		order = append(order, "objects")
		return errors.New("bucket gone")
	})

	saga.Rollback(context.Background(), zap.NewNop())
	require.Equal(t, []string{"objects", "db row"}, order)
}

func TestSagaCommitDisarmsRollback(t *testing.T) {
	calls := 0
	saga := NewSaga()
	saga.Register("db row", func(ctx context.Context) error {
		calls++
		return nil
	})

	saga.Commit()
	saga.Rollback(context.Background(), zap.NewNop())
	require.Zero(t, calls)
}

func TestSagaRollbackRunsOnce(t *testing.T) {
	calls := 0
	saga := NewSaga()
	saga.Register("db row", func(ctx context.Context) error {
		calls++
		return nil
	})

	saga.Rollback(context.Background(), zap.NewNop())
	saga.Rollback(context.Background(), zap.NewNop())
	require.Equal(t, 1, calls)
}

func TestEventLocksSerializeSameEvent(t *testing.T) {
	locks := newEventLocks()

	unlock := locks.lock(7)

	acquired := make(chan struct{})
	go func() {
		u := locks.lock(7)
		u()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second caller acquired the lock while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second caller never acquired the lock")
	}
}

func TestEventLocksIndependentAcrossEvents(t *testing.T) {
	locks := newEventLocks()

	unlock := locks.lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := locks.lock(2)
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different event id blocked behind an unrelated lock")
	}
}
