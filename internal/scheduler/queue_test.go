package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/talent-matcher/internal/records"
)

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.index)
}

func key(cid, jid string) records.Key {
	return records.Key{CandidateID: cid, JobID: jid}
}

func TestQueueCoalescesAndAlternatesLanes(t *testing.T) {
	q := newQueue(10)

	coalesced, evicted := q.push(key("c1", "j1"), LaneCandidate)
	assert.False(t, coalesced)
	assert.Nil(t, evicted)
	coalesced, _ = q.push(key("c1", "j1"), LaneJob)
	assert.True(t, coalesced, "a queued key is stored once")

	q.push(key("c1", "j2"), LaneCandidate)
	q.push(key("c2", "j9"), LaneJob)
	q.push(key("c3", "j9"), LaneJob)
	require.Equal(t, 4, q.len())

	var got []records.Key
	for {
		e, ok := q.tryPop()
		if !ok {
			break
		}
		got = append(got, e.key)
	}
	assert.Equal(t, []records.Key{
		key("c1", "j1"),
		key("c2", "j9"),
		key("c1", "j2"),
		key("c3", "j9"),
	}, got)
}

func TestQueueOverflowEvictsRelatedEntryFirst(t *testing.T) {
	q := newQueue(3)
	q.push(key("a", "x"), LaneCandidate)
	q.push(key("b", "y"), LaneCandidate)
	q.push(key("c", "z"), LaneJob)

	_, evicted := q.push(key("b", "w"), LaneCandidate)
	require.NotNil(t, evicted)
	assert.Equal(t, key("b", "y"), evicted.key, "oldest entry sharing the candidate goes first")

	_, evicted = q.push(key("d", "q"), LaneJob)
	require.NotNil(t, evicted)
	assert.Equal(t, key("a", "x"), evicted.key, "unrelated overflow drops the globally oldest entry")
	assert.Equal(t, 3, q.len())
}

func TestQueuePopHonoursContext(t *testing.T) {
	q := newQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go q.push(key("c", "j"), LaneJob)
	e, err := q.pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LaneJob, e.lane)
}
