package scheduler

import (
	"container/list"
	"context"
	"sync"

	"github.com/spigell/talent-matcher/internal/records"
)

// Lane separates work by the kind of event that produced it so bursts of one kind cannot starve the
// other.
type Lane int

const (
	LaneCandidate Lane = iota
	LaneJob
	laneCount
)

func (l Lane) String() string {
	if l == LaneJob {
		return "job"
	}
	return "candidate"
}

type entry struct {
	key  records.Key
	lane Lane
	seq  uint64
}

// queue is a bounded, coalescing, two-lane FIFO. A key is present at most once.
type queue struct {
	mu       sync.Mutex
	capacity int
	lanes    [laneCount]*list.List
	index    map[records.Key]*list.Element
	seq      uint64
	next     Lane
	notify   chan struct{}
}

func newQueue(capacity int) *queue {
	q := &queue{
		capacity: capacity,
		index:    make(map[records.Key]*list.Element),
		notify:   make(chan struct{}, 1),
	}
	for i := range q.lanes {
		q.lanes[i] = list.New()
	}
	return q
}

// push enqueues key. It reports whether the key was already queued and, when the queue was full,
// which entry was evicted to make room.
func (q *queue) push(key records.Key, lane Lane) (coalesced bool, evicted *entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[key]; ok {
		return true, nil
	}

	if len(q.index) >= q.capacity {
		evicted = q.evictFor(key)
	}

	q.seq++
	q.index[key] = q.lanes[lane].PushBack(&entry{key: key, lane: lane, seq: q.seq})

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return false, evicted
}

// evictFor drops the oldest entry sharing the candidate or the job of key, falling back to the
// oldest entry overall.
func (q *queue) evictFor(key records.Key) *entry {
	var victim *list.Element
	for _, l := range q.lanes {
		for el := l.Front(); el != nil; el = el.Next() {
			e := el.Value.(*entry)
			if e.key.CandidateID != key.CandidateID && e.key.JobID != key.JobID {
				continue
			}
			if victim == nil || e.seq < victim.Value.(*entry).seq {
				victim = el
			}
			break
		}
	}
	if victim == nil {
		for _, l := range q.lanes {
			if front := l.Front(); front != nil && (victim == nil || front.Value.(*entry).seq < victim.Value.(*entry).seq) {
				victim = front
			}
		}
	}
	if victim == nil {
		return nil
	}
	e := victim.Value.(*entry)
	q.lanes[e.lane].Remove(victim)
	delete(q.index, e.key)
	return e
}

// tryPop takes the next entry, alternating between lanes.
func (q *queue) tryPop() (*entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := 0; i < int(laneCount); i++ {
		lane := (q.next + Lane(i)) % laneCount
		front := q.lanes[lane].Front()
		if front == nil {
			continue
		}
		q.lanes[lane].Remove(front)
		e := front.Value.(*entry)
		delete(q.index, e.key)
		q.next = (lane + 1) % laneCount
		if len(q.index) > 0 {
			select {
			case q.notify <- struct{}{}:
			default:
			}
		}
		return e, true
	}
	return nil, false
}

// pop blocks until an entry is available or ctx is done.
func (q *queue) pop(ctx context.Context) (*entry, error) {
	for {
		if e, ok := q.tryPop(); ok {
			return e, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

