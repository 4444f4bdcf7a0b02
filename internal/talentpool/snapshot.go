package talentpool

import (
	"hash/fnv"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

const stripes = 32

type snapshot[T any] struct {
	items  map[string]T
	tokens map[string][]string
	index  map[string]map[string]struct{}
}

func emptySnapshot[T any]() *snapshot[T] {
	return &snapshot[T]{
		items:  map[string]T{},
		tokens: map[string][]string{},
		index:  map[string]map[string]struct{}{},
	}
}

// without returns a copy of s with id removed. Only the token sets touched by id are cloned.
func (s *snapshot[T]) without(id string) *snapshot[T] {
	next := &snapshot[T]{
		items:  maps.Clone(s.items),
		tokens: maps.Clone(s.tokens),
		index:  maps.Clone(s.index),
	}
	for _, token := range s.tokens[id] {
		set := maps.Clone(next.index[token])
		delete(set, id)
		if len(set) == 0 {
			delete(next.index, token)
		} else {
			next.index[token] = set
		}
	}
	delete(next.items, id)
	delete(next.tokens, id)
	return next
}

type entry[T any] struct {
	id     string
	item   T
	tokens []string
}

// withAll returns a copy of s with every entry of batch applied. Each map and token set is cloned
// once for the whole batch.
func (s *snapshot[T]) withAll(batch []entry[T]) *snapshot[T] {
	next := &snapshot[T]{
		items:  maps.Clone(s.items),
		tokens: maps.Clone(s.tokens),
		index:  make(map[string]map[string]struct{}, len(s.index)),
	}
	for token, set := range s.index {
		next.index[token] = maps.Clone(set)
	}
	for _, e := range batch {
		for _, token := range next.tokens[e.id] {
			delete(next.index[token], e.id)
			if len(next.index[token]) == 0 {
				delete(next.index, token)
			}
		}
		next.items[e.id] = e.item
		next.tokens[e.id] = e.tokens
		for _, token := range e.tokens {
			set := next.index[token]
			if set == nil {
				set = map[string]struct{}{}
				next.index[token] = set
			}
			set[e.id] = struct{}{}
		}
	}
	return next
}

func (s *snapshot[T]) with(id string, item T, tokens []string) *snapshot[T] {
	next := s.without(id)
	next.items[id] = item
	next.tokens[id] = tokens
	for _, token := range tokens {
		set := maps.Clone(next.index[token])
		if set == nil {
			set = map[string]struct{}{}
		}
		set[id] = struct{}{}
		next.index[token] = set
	}
	return next
}

// store is a copy-on-write token index. Reads load the current snapshot without locking; writes are
// serialised per id and published with a compare-and-swap.
type store[T any] struct {
	snap  atomic.Pointer[snapshot[T]]
	locks [stripes]sync.Mutex
}

func newStore[T any]() *store[T] {
	s := &store[T]{}
	s.snap.Store(emptySnapshot[T]())
	return s
}

func (s *store[T]) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%stripes]
}

func (s *store[T]) update(id string, mutate func(*snapshot[T]) *snapshot[T]) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	for {
		old := s.snap.Load()
		if s.snap.CompareAndSwap(old, mutate(old)) {
			return
		}
	}
}

func (s *store[T]) put(id string, item T, tokens []string) {
	s.update(id, func(old *snapshot[T]) *snapshot[T] { return old.with(id, item, tokens) })
}

// putAll publishes the whole batch in one swap. Concurrent single-id writers are not blocked; the
// compare-and-swap retries the batch on top of whatever they published.
func (s *store[T]) putAll(batch []entry[T]) {
	if len(batch) == 0 {
		return
	}
	for {
		old := s.snap.Load()
		if s.snap.CompareAndSwap(old, old.withAll(batch)) {
			return
		}
	}
}

func (s *store[T]) remove(id string) bool {
	removed := false
	s.update(id, func(old *snapshot[T]) *snapshot[T] {
		if _, ok := old.items[id]; !ok {
			removed = false
			return old
		}
		removed = true
		return old.without(id)
	})
	return removed
}

func (s *store[T]) get(id string) (T, bool) {
	item, ok := s.snap.Load().items[id]
	return item, ok
}

func (s *store[T]) current() *snapshot[T] {
	return s.snap.Load()
}

func (s *snapshot[T]) lookup(tokens ...string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, token := range tokens {
		for id := range s.index[token] {
			out[id] = struct{}{}
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(set))
}
