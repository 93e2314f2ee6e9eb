// Package grants revokes time-bounded resources once their durable record expires.
package grants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"echo-helper/metrics"
	"echo-helper/utils/database"
	"echo-helper/utils/logger"

	"go.uber.org/zap"
)

// Options wires one grant kind into a Scheduler.
type Options[T any] struct {
	// Kind labels logs and metrics, e.g. "temp_role".
	Kind     string
	Interval time.Duration
	// Expiry reports when rec is due; ok=false means nothing is pending.
	Expiry func(rec T) (at time.Time, ok bool)
	// Revoke undoes the resource. Revoking an already removed resource must return nil.
	Revoke func(ctx context.Context, subject string, rec T) error
	// Clear returns the record to keep after a revoke, or nil to delete it.
	// Defaults to delete.
	Clear func(rec T) *T
	Now   func() time.Time
}

// Scheduler reconciles the records of one store domain against wall-clock time.
type Scheduler[T any] struct {
	records *database.Collection[T]
	opts    Options[T]
}

func NewScheduler[T any](records *database.Collection[T], opts Options[T]) *Scheduler[T] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Clear == nil {
		opts.Clear = func(T) *T { return nil }
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Scheduler[T]{records: records, opts: opts}
}

func (s *Scheduler[T]) Kind() string { return s.opts.Kind }

func (s *Scheduler[T]) Now() time.Time { return s.opts.Now() }

// Schedule persists rec for subject, replacing any earlier record of this kind.
// The caller applies the resource before scheduling.
func (s *Scheduler[T]) Schedule(ctx context.Context, subject string, rec T) error {
	if err := s.records.Put(ctx, subject, rec); err != nil {
		return fmt.Errorf("schedule %s for %s: %w", s.opts.Kind, subject, err)
	}
	metrics.GrantsScheduled.WithLabelValues(s.opts.Kind).Inc()
	return nil
}

// Get returns the pending record for subject.
func (s *Scheduler[T]) Get(ctx context.Context, subject string) (T, bool, error) {
	return s.records.Get(ctx, subject)
}

// Cancel clears subject's record without revoking, for early-revoke paths
// that have already undone the resource themselves.
func (s *Scheduler[T]) Cancel(ctx context.Context, subject string) (T, bool, error) {
	var removed T
	found := false
	_, err := s.records.Mutate(ctx, subject, func(cur *T) (*T, error) {
		if cur == nil {
			return nil, nil
		}
		removed, found = *cur, true
		return s.opts.Clear(*cur), nil
	})
	return removed, found, err
}

// Reschedule applies a resource and stores its record under subject's key
// lock. apply sees the record being replaced (nil if none); an error from
// apply leaves the store untouched.
func (s *Scheduler[T]) Reschedule(ctx context.Context, subject string, apply func(prev *T) (T, error)) (T, error) {
	var next T
	_, err := s.records.Mutate(ctx, subject, func(cur *T) (*T, error) {
		rec, err := apply(cur)
		if err != nil {
			return nil, err
		}
		next = rec
		return &next, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("schedule %s for %s: %w", s.opts.Kind, subject, err)
	}
	metrics.GrantsScheduled.WithLabelValues(s.opts.Kind).Inc()
	return next, nil
}

// Take undoes subject's resource early and clears the record, both under the
// key lock, so a reschedule racing it is never wiped out. found is false
// when there was nothing to take; undo is not called then.
func (s *Scheduler[T]) Take(ctx context.Context, subject string, undo func(cur T) error) (T, bool, error) {
	var taken T
	found := false
	_, err := s.records.Mutate(ctx, subject, func(cur *T) (*T, error) {
		if cur == nil {
			return nil, nil
		}
		if err := undo(*cur); err != nil {
			return nil, err
		}
		taken, found = *cur, true
		return s.opts.Clear(*cur), nil
	})
	if err != nil {
		return taken, false, err
	}
	return taken, found, nil
}

// Reconcile revokes every due record once, then clears it. A failed revoke
// leaves the record in place for the next pass and does not stop the others.
func (s *Scheduler[T]) Reconcile(ctx context.Context) (int, error) {
	all, err := s.records.All(ctx)
	if err != nil && len(all) == 0 {
		return 0, fmt.Errorf("load %s records: %w", s.opts.Kind, err)
	}
	if err != nil {
		logger.Warn("Skipping undecodable grant records", zap.String("kind", s.opts.Kind), zap.Error(err))
	}

	now := s.opts.Now()
	pending, revoked := 0, 0
	var errs []error
	for subject, rec := range all {
		if ctx.Err() != nil {
			return revoked, ctx.Err()
		}
		at, ok := s.opts.Expiry(rec)
		if !ok {
			continue
		}
		pending++
		if now.Before(at) {
			continue
		}
		done, err := s.revokeOne(ctx, subject, now)
		if err != nil {
			metrics.GrantRevokeFailures.WithLabelValues(s.opts.Kind).Inc()
			logger.Error("Failed to revoke grant", zap.String("kind", s.opts.Kind), zap.String("subject", subject), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if done {
			revoked++
			metrics.GrantsRevoked.WithLabelValues(s.opts.Kind).Inc()
			logger.Info("Revoked expired grant", zap.String("kind", s.opts.Kind), zap.String("subject", subject))
		}
	}
	metrics.PendingGrants.WithLabelValues(s.opts.Kind).Set(float64(pending - revoked))
	return revoked, errors.Join(errs...)
}

// revokeOne re-reads the record under its key lock so a concurrent
// reschedule or cancel is honored, and revokes at most once.
func (s *Scheduler[T]) revokeOne(ctx context.Context, subject string, now time.Time) (bool, error) {
	done := false
	_, err := s.records.Mutate(ctx, subject, func(cur *T) (*T, error) {
		if cur == nil {
			return nil, nil
		}
		at, ok := s.opts.Expiry(*cur)
		if !ok || now.Before(at) {
			return cur, nil
		}
		if err := s.opts.Revoke(ctx, subject, *cur); err != nil {
			return nil, fmt.Errorf("revoke %s for %s: %w", s.opts.Kind, subject, err)
		}
		done = true
		return s.opts.Clear(*cur), nil
	})
	return done, err
}

// Run reconciles immediately and then on every tick until ctx is done.
func (s *Scheduler[T]) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	logger.Info("Grant reconciler started", zap.String("kind", s.opts.Kind), zap.Duration("interval", s.opts.Interval))
	for {
		if _, err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Reconciliation pass finished with errors", zap.String("kind", s.opts.Kind), zap.Error(err))
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}
