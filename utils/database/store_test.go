package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Count int    `json:"count"`
	Note  string `json:"note,omitempty"`
}

func backends(t *testing.T) map[string]*DB {
	t.Helper()
	js, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]*DB{"json": New(js), "sqlite": New(sq)}
}

func TestCollectionRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := NewCollection[record](db, DomainTicketCounts)

			_, ok, err := c.Get(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, c.Put(ctx, "u1", record{Count: 2}))
			got, ok, err := c.Get(ctx, "u1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 2, got.Count)

			all, err := c.All(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			require.NoError(t, c.Delete(ctx, "u1"))
			require.NoError(t, c.Delete(ctx, "u1"))
			_, ok, err = c.Get(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMutateSemantics(t *testing.T) {
	ctx := context.Background()
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := NewCollection[record](db, DomainWarnings)

			out, err := c.Mutate(ctx, "k", func(cur *record) (*record, error) {
				assert.Nil(t, cur)
				return &record{Count: 1}, nil
			})
			require.NoError(t, err)
			assert.Equal(t, 1, out.Count)

			boom := errors.New("boom")
			_, err = c.Mutate(ctx, "k", func(cur *record) (*record, error) {
				cur.Count = 99
				return cur, boom
			})
			assert.ErrorIs(t, err, boom)
			got, _, _ := c.Get(ctx, "k")
			assert.Equal(t, 1, got.Count, "failed mutation must not write")

			out, err = c.Mutate(ctx, "k", func(cur *record) (*record, error) { return nil, nil })
			require.NoError(t, err)
			assert.Nil(t, out)
			_, ok, _ := c.Get(ctx, "k")
			assert.False(t, ok)
		})
	}
}

func TestMutateSerializesPerKey(t *testing.T) {
	ctx := context.Background()
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := NewCollection[record](db, DomainTicketCounts)
			const n = 50
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := c.Mutate(ctx, "staff", func(cur *record) (*record, error) {
						if cur == nil {
							cur = &record{}
						}
						cur.Count++
						return cur, nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			got, _, err := c.Get(ctx, "staff")
			require.NoError(t, err)
			assert.Equal(t, n, got.Count)
		})
	}
}

func TestJSONStoreMissingAndEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	docs, err := s.Scan(ctx, DomainAFK)
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "afk.json"), []byte("  \n"), 0644))
	docs, err = s.Scan(ctx, DomainAFK)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = s.Load(ctx, DomainAFK, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONStoreWritesFlatDocument(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	c := NewCollection[record](New(s), DomainReportCounts)
	require.NoError(t, c.Put(context.Background(), "42", record{Count: 3}))

	data, err := os.ReadFile(filepath.Join(dir, "report_counts.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"42":{"count":3}}`, string(data))
}

func TestCopyMovesEveryDomain(t *testing.T) {
	ctx := context.Background()
	src, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)
	dst, err := NewSQLiteStore(filepath.Join(t.TempDir(), "dst.db"))
	require.NoError(t, err)
	defer dst.Close()

	require.NoError(t, src.Save(ctx, DomainTickets, "c1", []byte(`{"user_id":"u"}`)))
	require.NoError(t, src.Save(ctx, DomainLevels, "u", []byte(`{"xp":5,"level":2}`)))

	n, err := Copy(ctx, dst, src)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := dst.Load(ctx, DomainLevels, "u")
	require.NoError(t, err)
	assert.JSONEq(t, `{"xp":5,"level":2}`, string(raw))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("redis", t.TempDir())
	assert.Error(t, err)
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock("a")
	assert.Equal(t, 1, k.size())
	unlock()
	unlock()
	assert.Equal(t, 0, k.size())
}
