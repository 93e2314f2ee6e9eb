package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection is a typed view over one domain of a DB.
type Collection[T any] struct {
	db     *DB
	domain Domain
}

func NewCollection[T any](db *DB, domain Domain) *Collection[T] {
	return &Collection[T]{db: db, domain: domain}
}

func (c *Collection[T]) Domain() Domain {
	return c.domain
}

// Get returns the record for key; ok is false when absent.
func (c *Collection[T]) Get(ctx context.Context, key string) (v T, ok bool, err error) {
	raw, err := c.db.backend.Load(ctx, c.domain, key)
	if errors.Is(err, ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s/%s: %w", c.domain, key, err)
	}
	return v, true, nil
}

// Put overwrites the record for key.
func (c *Collection[T]) Put(ctx context.Context, key string, v T) error {
	unlock := c.db.Lock(c.domain, key)
	defer unlock()
	return c.save(ctx, key, &v)
}

// Mutate runs fn against the current record while holding the key lock.
// cur is nil when the key has no record. Returning nil deletes the record;
// returning an error leaves the store untouched and is passed through.
func (c *Collection[T]) Mutate(ctx context.Context, key string, fn func(cur *T) (*T, error)) (*T, error) {
	unlock := c.db.Lock(c.domain, key)
	defer unlock()

	cur, ok, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var in *T
	if ok {
		in = &cur
	}
	out, err := fn(in)
	if err != nil {
		return nil, err
	}
	if out == nil {
		if ok {
			if err := c.db.backend.Remove(ctx, c.domain, key); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	if err := c.save(ctx, key, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes key; deleting a missing key is not an error.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	unlock := c.db.Lock(c.domain, key)
	defer unlock()
	return c.db.backend.Remove(ctx, c.domain, key)
}

// All decodes every record of the domain. Undecodable records are skipped
// and reported through the returned error alongside the rest.
func (c *Collection[T]) All(ctx context.Context) (map[string]T, error) {
	raw, err := c.db.backend.Scan(ctx, c.domain)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(raw))
	var errs []error
	for key, value := range raw {
		var v T
		if err := json.Unmarshal(value, &v); err != nil {
			errs = append(errs, fmt.Errorf("decode %s/%s: %w", c.domain, key, err))
			continue
		}
		out[key] = v
	}
	return out, errors.Join(errs...)
}

func (c *Collection[T]) save(ctx context.Context, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.domain, key, err)
	}
	return c.db.backend.Save(ctx, c.domain, key, raw)
}
