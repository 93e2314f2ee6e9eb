package grants

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"echo-helper/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lease struct {
	Until time.Time `json:"until"`
	Kept  bool      `json:"kept,omitempty"`
}

func newLeaseScheduler(t *testing.T, clock *fakeClock, revoke func(context.Context, string, lease) error) (*Scheduler[lease], *database.Collection[lease]) {
	records := database.NewCollection[lease](newDB(t), database.DomainTempRoles)
	s := NewScheduler(records, Options[lease]{
		Kind:     "lease",
		Interval: 10 * time.Millisecond,
		Expiry:   func(l lease) (time.Time, bool) { return l.Until, !l.Until.IsZero() },
		Revoke:   revoke,
		Now:      clock.Now,
	})
	return s, records
}

func TestReconcileRevokesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	var calls atomic.Int32
	s, records := newLeaseScheduler(t, clock, func(context.Context, string, lease) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Schedule(ctx, "u1", lease{Until: clock.Now().Add(time.Hour)}))

	n, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "not due yet")

	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		_, err := s.Reconcile(ctx)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, calls.Load())
	_, ok, err := records.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReconcileContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s, records := newLeaseScheduler(t, clock, func(_ context.Context, subject string, _ lease) error {
		if subject == "bad" {
			return errors.New("forbidden")
		}
		return nil
	})
	past := clock.Now().Add(-time.Minute)
	for _, id := range []string{"a", "bad", "c"} {
		require.NoError(t, s.Schedule(ctx, id, lease{Until: past}))
	}

	n, err := s.Reconcile(ctx)
	assert.Error(t, err)
	assert.Equal(t, 2, n)

	all, err := records.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "bad", "failed revoke is kept for retry")
}

func TestCustomClearKeepsRecord(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	records := database.NewCollection[lease](newDB(t), database.DomainLevels)
	s := NewScheduler(records, Options[lease]{
		Kind:   "keep",
		Expiry: func(l lease) (time.Time, bool) { return l.Until, !l.Until.IsZero() },
		Revoke: func(context.Context, string, lease) error { return nil },
		Clear:  func(l lease) *lease { l.Until = time.Time{}; l.Kept = true; return &l },
		Now:    clock.Now,
	})
	require.NoError(t, s.Schedule(ctx, "u", lease{Until: clock.Now()}))

	n, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok, err := records.Get(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Kept)
	assert.True(t, got.Until.IsZero())

	n, err = s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancelPreventsRevoke(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	var calls atomic.Int32
	s, _ := newLeaseScheduler(t, clock, func(context.Context, string, lease) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, s.Schedule(ctx, "u", lease{Until: clock.Now().Add(time.Minute)}))

	_, found, err := s.Cancel(ctx, "u")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = s.Cancel(ctx, "u")
	require.NoError(t, err)
	assert.False(t, found)

	clock.Advance(time.Hour)
	_, err = s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, calls.Load())
}

func TestTakeKeepsRecordWhenUndoFails(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s, _ := newLeaseScheduler(t, clock, func(context.Context, string, lease) error { return nil })
	until := clock.Now().Add(time.Minute)
	require.NoError(t, s.Schedule(ctx, "u", lease{Until: until}))

	_, found, err := s.Take(ctx, "u", func(lease) error { return errors.New("discord unavailable") })
	assert.Error(t, err)
	assert.False(t, found)
	_, ok, err := s.Get(ctx, "u")
	require.NoError(t, err)
	assert.True(t, ok, "a failed undo leaves the record for the reconciler")

	got, found, err := s.Take(ctx, "u", func(lease) error { return nil })
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got.Until.Equal(until))

	_, found, err = s.Take(ctx, "u", func(lease) error {
		t.Fatal("undo runs only when a record exists")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRescheduleSeesReplacedRecord(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s, _ := newLeaseScheduler(t, clock, func(context.Context, string, lease) error { return nil })

	first, err := s.Reschedule(ctx, "u", func(prev *lease) (lease, error) {
		assert.Nil(t, prev)
		return lease{Until: clock.Now().Add(time.Minute)}, nil
	})
	require.NoError(t, err)

	_, err = s.Reschedule(ctx, "u", func(prev *lease) (lease, error) {
		require.NotNil(t, prev)
		assert.True(t, prev.Until.Equal(first.Until))
		return lease{}, errors.New("apply failed")
	})
	assert.Error(t, err)
	got, ok, err := s.Get(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Until.Equal(first.Until), "a failed apply leaves the old record")
}

func TestRunStopsOnCancel(t *testing.T) {
	clock := newClock()
	revoked := make(chan string, 1)
	s, _ := newLeaseScheduler(t, clock, func(_ context.Context, subject string, _ lease) error {
		revoked <- subject
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Schedule(ctx, "u", lease{Until: clock.Now().Add(time.Minute)}))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	clock.Advance(2 * time.Minute)
	select {
	case subject := <-revoked:
		assert.Equal(t, "u", subject)
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler never revoked")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
