// Package moderation holds the counters, warnings and report evidence staff act on.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"echo-helper/utils/database"
)

var (
	// ErrInvalidAmount rejects additions or removals below one.
	ErrInvalidAmount = errors.New("amount must be at least 1")
	// ErrNothingToRemove is returned when removing from a zero counter.
	ErrNothingToRemove = errors.New("counter is already zero")
)

// Counters is a never-negative user -> count map.
type Counters struct {
	counts *database.Collection[int]
}

func NewCounters(db *database.DB, domain database.Domain) *Counters {
	return &Counters{counts: database.NewCollection[int](db, domain)}
}

// Increment adds exactly one.
func (c *Counters) Increment(ctx context.Context, userID string) (int, error) {
	return c.Add(ctx, userID, 1)
}

func (c *Counters) Add(ctx context.Context, userID string, amount int) (int, error) {
	if amount < 1 {
		return 0, ErrInvalidAmount
	}
	out, err := c.counts.Mutate(ctx, userID, func(cur *int) (*int, error) {
		n := amount
		if cur != nil {
			n += *cur
		}
		return &n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("add to %s counter of %s: %w", c.counts.Domain(), userID, err)
	}
	return *out, nil
}

// Remove subtracts up to amount, clamped so the count never goes below zero.
// It returns the new count and how much was actually removed.
func (c *Counters) Remove(ctx context.Context, userID string, amount int) (count, removed int, err error) {
	if amount < 1 {
		return 0, 0, ErrInvalidAmount
	}
	out, err := c.counts.Mutate(ctx, userID, func(cur *int) (*int, error) {
		if cur == nil || *cur <= 0 {
			return nil, ErrNothingToRemove
		}
		removed = min(amount, *cur)
		n := *cur - removed
		return &n, nil
	})
	if err != nil {
		return 0, 0, err
	}
	return *out, removed, nil
}

func (c *Counters) Get(ctx context.Context, userID string) (int, error) {
	n, _, err := c.counts.Get(ctx, userID)
	return n, err
}

// Entry is one leaderboard line.
type Entry struct {
	UserID string
	Count  int
}

// Top returns up to limit users with a positive count, highest first.
func (c *Counters) Top(ctx context.Context, limit int) ([]Entry, error) {
	all, err := c.counts.All(ctx)
	if err != nil && len(all) == 0 {
		return nil, err
	}
	entries := make([]Entry, 0, len(all))
	for id, n := range all {
		if n > 0 {
			entries = append(entries, Entry{UserID: id, Count: n})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Total sums every count.
func (c *Counters) Total(ctx context.Context) (int, error) {
	all, err := c.counts.All(ctx)
	if err != nil && len(all) == 0 {
		return 0, err
	}
	total := 0
	for _, n := range all {
		total += n
	}
	return total, nil
}
