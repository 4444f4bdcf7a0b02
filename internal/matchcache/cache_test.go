package matchcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/records"
)

var base = time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)

type memoryBackend struct {
	mu      sync.Mutex
	saved   map[records.Key]*records.MatchRecord
	failing bool
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{saved: make(map[records.Key]*records.MatchRecord)}
}

func (b *memoryBackend) Save(_ context.Context, rec *records.MatchRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return errors.New("connection refused")
	}
	if cur, ok := b.saved[rec.Key()]; ok && cur.Generation >= rec.Generation {
		return ErrStaleGeneration
	}
	b.saved[rec.Key()] = rec.Clone()
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, keys ...records.Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.saved, k)
	}
	return nil
}

func (b *memoryBackend) Load(context.Context) ([]*records.MatchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*records.MatchRecord, 0, len(b.saved))
	for _, r := range b.saved {
		out = append(out, r.Clone())
	}
	return out, nil
}

func match(cid, jid string, overall float64, gen uint64) *records.MatchRecord {
	return &records.MatchRecord{
		CandidateID:   cid,
		JobID:         jid,
		Overall:       overall,
		OverallExact:  overall,
		Skill:         overall,
		MatchedSkills: []string{"go"},
		Status:        records.StatusPending,
		ExpiresAt:     base.Add(24 * time.Hour),
		Generation:    gen,
	}
}

func setScore(overall float64) UpdateFunc {
	return func(cur *records.MatchRecord) (*records.MatchRecord, error) {
		next := match("", "", overall, 0)
		if cur != nil {
			next.Status = cur.Status
		}
		return next, nil
	}
}

func TestPutIsGenerationGuarded(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	ok, err := c.Put(ctx, match("c", "j", 50, 2))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Put(ctx, match("c", "j", 99, 2))
	require.NoError(t, err)
	assert.False(t, ok, "equal generation must be discarded")

	ok, err = c.Put(ctx, match("c", "j", 10, 1))
	require.NoError(t, err)
	assert.False(t, ok, "older generation must be discarded")

	ok, err = c.Put(ctx, match("c", "j", 70, 3))
	require.NoError(t, err)
	assert.True(t, ok)

	got, found := c.Get("c", "j")
	require.True(t, found)
	assert.Equal(t, 70.0, got.Overall)
	assert.Equal(t, uint64(3), got.Generation)
}

func TestConcurrentPutKeepsHighestGeneration(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for gen := uint64(1); gen <= 50; gen++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Put(ctx, match("c", "j", float64(gen), gen))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, found := c.Get("c", "j")
	require.True(t, found)
	assert.Equal(t, uint64(50), got.Generation)
	assert.Equal(t, 50.0, got.Overall, "dimension fields must belong to the stored generation")
}

func TestUpdateAssignsGenerationsAndTimestamps(t *testing.T) {
	clock := base
	c := New(nil, WithClock(func() time.Time { return clock }))
	ctx := context.Background()
	key := records.Key{CandidateID: "c", JobID: "j"}

	first, err := c.Update(ctx, key, setScore(40))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Generation)
	assert.Equal(t, base, first.CreatedAt)
	assert.Equal(t, "c", first.CandidateID)

	clock = base.Add(time.Minute)
	second, err := c.Update(ctx, key, setScore(60))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Generation)
	assert.Equal(t, base, second.CreatedAt)
	assert.Equal(t, clock, second.UpdatedAt)

	unchanged, err := c.Update(ctx, key, func(*records.MatchRecord) (*records.MatchRecord, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(2), unchanged.Generation)

	boom := errors.New("boom")
	_, err = c.Update(ctx, key, func(*records.MatchRecord) (*records.MatchRecord, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGetReturnsCopies(t *testing.T) {
	c := New(nil)
	_, err := c.Put(context.Background(), match("c", "j", 50, 1))
	require.NoError(t, err)

	got, _ := c.Get("c", "j")
	got.MatchedSkills[0] = "mutated"
	got.Overall = 0

	again, _ := c.Get("c", "j")
	assert.Equal(t, []string{"go"}, again.MatchedSkills)
	assert.Equal(t, 50.0, again.Overall)
}

func TestInvalidateMarksExpired(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	for _, k := range []records.Key{{CandidateID: "c1", JobID: "j1"}, {CandidateID: "c1", JobID: "j2"}, {CandidateID: "c2", JobID: "j1"}} {
		_, err := c.Update(ctx, k, setScore(50))
		require.NoError(t, err)
	}

	n, err := c.Invalidate(ctx, "c1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = c.Invalidate(ctx, "", "j1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "already expired records are not counted again")

	n, err = c.Invalidate(ctx, "", "")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, 3, c.Len(), "invalidation never deletes")
	for _, rec := range c.All() {
		assert.Equal(t, records.StatusExpired, rec.Status)
		assert.Equal(t, uint64(2), rec.Generation)
	}
}

func TestExpireDueAndSweep(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	fresh := match("c1", "j", 50, 1)
	fresh.ExpiresAt = base.Add(time.Hour)
	due := match("c2", "j", 50, 1)
	due.ExpiresAt = base.Add(-time.Hour)
	expiredLater := match("c3", "j", 50, 1)
	expiredLater.Status = records.StatusExpired
	expiredLater.ExpiresAt = base.Add(time.Hour)

	for _, r := range []*records.MatchRecord{fresh, due, expiredLater} {
		_, err := c.Put(ctx, r)
		require.NoError(t, err)
	}

	n, err := c.Sweep(ctx, base)
	require.NoError(t, err)
	assert.Zero(t, n, "sweep only deletes records already marked expired")

	n, err = c.ExpireDue(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Sweep(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, found := c.Get("c2", "j")
	assert.False(t, found)
	_, found = c.Get("c3", "j")
	assert.True(t, found, "expired records are retained until their expiry passes")
	assert.Equal(t, 2, c.Len())
}

func TestDeleteCascades(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	for _, k := range []records.Key{{CandidateID: "c1", JobID: "j1"}, {CandidateID: "c1", JobID: "j2"}, {CandidateID: "c2", JobID: "j1"}} {
		_, err := c.Update(ctx, k, setScore(50))
		require.NoError(t, err)
	}

	n, err := c.DeleteJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, c.ByJob("j1"))
	assert.Len(t, c.ByCandidate("c1"), 1)

	n, err = c.DeleteCandidate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, c.Len())
}

func TestBackendWriteThroughAndWarm(t *testing.T) {
	backend := newMemoryBackend()
	c := New(nil, WithBackend(backend))
	ctx := context.Background()

	_, err := c.Update(ctx, records.Key{CandidateID: "c", JobID: "j"}, setScore(80))
	require.NoError(t, err)
	require.Len(t, backend.saved, 1)

	warm := New(nil, WithBackend(backend))
	n, err := warm.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, found := warm.Get("c", "j")
	require.True(t, found)
	assert.Equal(t, 80.0, got.Overall)

	_, err = c.DeleteCandidate(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, backend.saved)

	backend.failing = true
	_, err = c.Update(ctx, records.Key{CandidateID: "c", JobID: "j"}, setScore(10))
	assert.ErrorIs(t, err, apperror.ErrTransient)
	_, found = c.Get("c", "j")
	assert.False(t, found, "failed writes must not reach memory")
}

func TestBackendStaleWritesStayOutOfMemory(t *testing.T) {
	backend := newMemoryBackend()
	backend.saved[records.Key{CandidateID: "c", JobID: "j"}] = match("c", "j", 90, 5)
	c := New(nil, WithBackend(backend))
	ctx := context.Background()

	ok, err := c.Put(ctx, match("c", "j", 30, 2))
	require.NoError(t, err)
	assert.False(t, ok, "backend already holds a newer generation")
	_, found := c.Get("c", "j")
	assert.False(t, found)

	_, err = c.Update(ctx, records.Key{CandidateID: "c", JobID: "j"}, setScore(40))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleGeneration)
	assert.ErrorIs(t, err, apperror.ErrTransient)
	_, found = c.Get("c", "j")
	assert.False(t, found)
	assert.Equal(t, 90.0, backend.saved[records.Key{CandidateID: "c", JobID: "j"}].Overall)

	n, err := c.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, found := c.Get("c", "j")
	require.True(t, found)
	assert.Equal(t, uint64(5), got.Generation)
}
