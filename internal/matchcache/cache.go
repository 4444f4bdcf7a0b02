// Package matchcache stores match records keyed by candidate and job with generation-guarded writes.
package matchcache

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/logger"
	"github.com/spigell/talent-matcher/internal/records"
)

const stripes = 64

// ErrStaleGeneration is returned by a Backend when the stored record is at least as new as the one
// being saved.
var ErrStaleGeneration = errors.New("stored match generation is not older")

// Backend persists records behind the in-memory cache. Save must not overwrite a record whose
// generation is not older and reports that case with ErrStaleGeneration.
type Backend interface {
	Save(ctx context.Context, rec *records.MatchRecord) error
	Delete(ctx context.Context, keys ...records.Key) error
	Load(ctx context.Context) ([]*records.MatchRecord, error)
}

// Option customises a Cache.
type Option func(*Cache)

// WithBackend enables write-through persistence.
func WithBackend(b Backend) Option {
	return func(c *Cache) { c.backend = b }
}

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is the in-memory match store. Readers load immutable record values without locking; writers
// serialise per key on a striped mutex.
type Cache struct {
	records sync.Map // records.Key -> *records.MatchRecord
	locks   [stripes]sync.Mutex

	idxMu       sync.RWMutex
	byCandidate map[string]map[string]struct{}
	byJob       map[string]map[string]struct{}

	backend Backend
	now     func() time.Time
	logger  *zap.Logger
}

func New(log *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		byCandidate: make(map[string]map[string]struct{}),
		byJob:       make(map[string]map[string]struct{}),
		now:         time.Now,
		logger:      logger.WithFields(log, zap.String("component", "matchcache")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) lockFor(key records.Key) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.CandidateID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.JobID))
	return &c.locks[h.Sum32()%stripes]
}

func (c *Cache) load(key records.Key) *records.MatchRecord {
	v, ok := c.records.Load(key)
	if !ok {
		return nil
	}
	return v.(*records.MatchRecord)
}

// Get returns a copy of the stored record.
func (c *Cache) Get(candidateID, jobID string) (*records.MatchRecord, bool) {
	rec := c.load(records.Key{CandidateID: candidateID, JobID: jobID})
	if rec == nil {
		return nil, false
	}
	return rec.Clone(), true
}

// Put stores rec when its generation is newer than the stored one. Stale writes are discarded and
// reported as false.
func (c *Cache) Put(ctx context.Context, rec *records.MatchRecord) (bool, error) {
	if rec == nil {
		return false, apperror.Input("put", "record is nil")
	}
	key := rec.Key()
	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	if cur := c.load(key); cur != nil && rec.Generation <= cur.Generation {
		logger.WithMatch(c.logger, key.CandidateID, key.JobID).Debug("discarding stale write",
			zap.Uint64("generation", rec.Generation),
			zap.Uint64("stored_generation", cur.Generation),
		)
		return false, nil
	}

	if err := c.persist(ctx, rec); err != nil {
		if errors.Is(err, ErrStaleGeneration) {
			logger.WithMatch(c.logger, key.CandidateID, key.JobID).Debug("backend holds a newer record",
				zap.Uint64("generation", rec.Generation),
			)
			return false, nil
		}
		return false, err
	}
	c.store(rec.Clone())
	return true, nil
}

// UpdateFunc derives the next record from the current one, which is nil when the key is absent.
// Returning nil leaves the record untouched.
type UpdateFunc func(cur *records.MatchRecord) (*records.MatchRecord, error)

// Update performs a read-modify-write of one key. The written record gets the next generation and
// fresh timestamps; CreatedAt is preserved.
func (c *Cache) Update(ctx context.Context, key records.Key, fn UpdateFunc) (*records.MatchRecord, error) {
	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	cur := c.load(key)
	next, err := fn(cur.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return cur.Clone(), nil
	}

	next = next.Clone()
	next.CandidateID, next.JobID = key.CandidateID, key.JobID
	now := c.now()
	next.UpdatedAt = now
	next.Generation = 1
	next.CreatedAt = now
	if cur != nil {
		next.Generation = cur.Generation + 1
		next.CreatedAt = cur.CreatedAt
	}

	if err := c.persist(ctx, next); err != nil {
		return nil, err
	}
	c.store(next)
	return next.Clone(), nil
}

func (c *Cache) persist(ctx context.Context, rec *records.MatchRecord) error {
	if c.backend == nil {
		return nil
	}
	if err := c.backend.Save(ctx, rec); err != nil {
		return apperror.Transient("persist match", err)
	}
	return nil
}

func (c *Cache) store(rec *records.MatchRecord) {
	key := rec.Key()
	c.records.Store(key, rec)

	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	addIndex(c.byCandidate, key.CandidateID, key.JobID)
	addIndex(c.byJob, key.JobID, key.CandidateID)
}

func (c *Cache) remove(key records.Key) {
	c.records.Delete(key)

	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	removeIndex(c.byCandidate, key.CandidateID, key.JobID)
	removeIndex(c.byJob, key.JobID, key.CandidateID)
}

func addIndex(idx map[string]map[string]struct{}, outer, inner string) {
	set, ok := idx[outer]
	if !ok {
		set = make(map[string]struct{})
		idx[outer] = set
	}
	set[inner] = struct{}{}
}

func removeIndex(idx map[string]map[string]struct{}, outer, inner string) {
	set, ok := idx[outer]
	if !ok {
		return
	}
	delete(set, inner)
	if len(set) == 0 {
		delete(idx, outer)
	}
}

// Keys returns the keys touching the candidate, the job, or both. Empty ids act as wildcards on
// their side; two empty ids select nothing.
func (c *Cache) Keys(candidateID, jobID string) []records.Key {
	c.idxMu.RLock()
	defer c.idxMu.RUnlock()

	var keys []records.Key
	switch {
	case candidateID != "" && jobID != "":
		if _, ok := c.byCandidate[candidateID][jobID]; ok {
			keys = append(keys, records.Key{CandidateID: candidateID, JobID: jobID})
		}
	case candidateID != "":
		for jid := range c.byCandidate[candidateID] {
			keys = append(keys, records.Key{CandidateID: candidateID, JobID: jid})
		}
	case jobID != "":
		for cid := range c.byJob[jobID] {
			keys = append(keys, records.Key{CandidateID: cid, JobID: jobID})
		}
	}
	return keys
}

// Invalidate marks every record touching the given endpoints as expired without deleting it.
func (c *Cache) Invalidate(ctx context.Context, candidateID, jobID string) (int, error) {
	return c.expireWhere(ctx, c.Keys(candidateID, jobID), func(*records.MatchRecord) bool { return true })
}

// ExpireDue marks records whose expires_at passed as expired.
func (c *Cache) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	return c.expireWhere(ctx, c.allKeys(), func(r *records.MatchRecord) bool {
		return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
	})
}

func (c *Cache) expireWhere(ctx context.Context, keys []records.Key, pred func(*records.MatchRecord) bool) (int, error) {
	expired := 0
	for _, key := range keys {
		changed := false
		_, err := c.Update(ctx, key, func(cur *records.MatchRecord) (*records.MatchRecord, error) {
			if cur == nil || cur.Status == records.StatusExpired || !pred(cur) {
				return nil, nil
			}
			cur.Status = records.StatusExpired
			changed = true
			return cur, nil
		})
		if err != nil {
			return expired, err
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

// Sweep deletes expired records whose expires_at is before now.
func (c *Cache) Sweep(ctx context.Context, now time.Time) (int, error) {
	var due []records.Key
	for _, key := range c.allKeys() {
		if rec := c.load(key); rec != nil && rec.Status == records.StatusExpired && rec.ExpiresAt.Before(now) {
			due = append(due, key)
		}
	}
	return c.deleteKeys(ctx, due, func(rec *records.MatchRecord) bool {
		return rec.Status == records.StatusExpired && rec.ExpiresAt.Before(now)
	})
}

// DeleteCandidate removes every record of the candidate.
func (c *Cache) DeleteCandidate(ctx context.Context, candidateID string) (int, error) {
	if candidateID == "" {
		return 0, nil
	}
	return c.deleteKeys(ctx, c.Keys(candidateID, ""), nil)
}

// DeleteJob removes every record of the job.
func (c *Cache) DeleteJob(ctx context.Context, jobID string) (int, error) {
	if jobID == "" {
		return 0, nil
	}
	return c.deleteKeys(ctx, c.Keys("", jobID), nil)
}

func (c *Cache) deleteKeys(ctx context.Context, keys []records.Key, pred func(*records.MatchRecord) bool) (int, error) {
	deleted := 0
	for _, key := range keys {
		err := func() error {
			mu := c.lockFor(key)
			mu.Lock()
			defer mu.Unlock()

			rec := c.load(key)
			if rec == nil || (pred != nil && !pred(rec)) {
				return nil
			}
			if c.backend != nil {
				if err := c.backend.Delete(ctx, key); err != nil {
					return apperror.Transient("delete match", err)
				}
			}
			c.remove(key)
			deleted++
			return nil
		}()
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (c *Cache) allKeys() []records.Key {
	var keys []records.Key
	c.records.Range(func(k, _ any) bool {
		keys = append(keys, k.(records.Key))
		return true
	})
	return keys
}

func (c *Cache) collect(keys []records.Key) []*records.MatchRecord {
	out := make([]*records.MatchRecord, 0, len(keys))
	for _, key := range keys {
		if rec := c.load(key); rec != nil {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// ByJob returns copies of every record of the job in no particular order.
func (c *Cache) ByJob(jobID string) []*records.MatchRecord {
	if jobID == "" {
		return nil
	}
	return c.collect(c.Keys("", jobID))
}

// ByCandidate returns copies of every record of the candidate in no particular order.
func (c *Cache) ByCandidate(candidateID string) []*records.MatchRecord {
	if candidateID == "" {
		return nil
	}
	return c.collect(c.Keys(candidateID, ""))
}

// All returns copies of every stored record.
func (c *Cache) All() []*records.MatchRecord {
	return c.collect(c.allKeys())
}

func (c *Cache) Len() int {
	n := 0
	c.records.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Warm loads the persisted records into memory. Records older than the in-memory ones are ignored.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	if c.backend == nil {
		return 0, nil
	}
	recs, err := c.backend.Load(ctx)
	if err != nil {
		return 0, apperror.Transient("warm cache", err)
	}

	loaded := 0
	for _, rec := range recs {
		key := rec.Key()
		mu := c.lockFor(key)
		mu.Lock()
		if cur := c.load(key); cur == nil || rec.Generation > cur.Generation {
			c.store(rec.Clone())
			loaded++
		}
		mu.Unlock()
	}
	c.logger.Info("cache warmed", zap.Int("records", loaded))
	return loaded, nil
}
