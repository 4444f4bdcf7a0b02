// Package scheduler recomputes match records in the background when candidates, jobs or talent
// pool entries change.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/talent-matcher/internal/apperror"
	"github.com/spigell/talent-matcher/internal/logger"
	"github.com/spigell/talent-matcher/internal/matchcache"
	"github.com/spigell/talent-matcher/internal/records"
	"github.com/spigell/talent-matcher/internal/repository"
	"github.com/spigell/talent-matcher/internal/scoring"
	"github.com/spigell/talent-matcher/internal/talentpool"
	"github.com/spigell/talent-matcher/internal/utils"
)

// EventKind names the entity an event refers to.
type EventKind string

const (
	EventCandidate EventKind = "candidate"
	EventJob       EventKind = "job"
	EventPool      EventKind = "pool"
)

// ParseEventKind accepts the three event kind names.
func ParseEventKind(s string) (EventKind, error) {
	switch kind := EventKind(s); kind {
	case EventCandidate, EventJob, EventPool:
		return kind, nil
	default:
		return "", apperror.Input("parse event", "unknown event kind %q", s)
	}
}

// Event announces that an entity changed. Pool events carry a candidate id.
type Event struct {
	Kind EventKind `json:"kind"`
	ID   string    `json:"id"`
}

func (e Event) lane() Lane {
	if e.Kind == EventJob {
		return LaneJob
	}
	return LaneCandidate
}

// Config holds the scheduler knobs.
type Config struct {
	Workers       int
	QueueCapacity int
	ScoreTimeout  time.Duration
	MatchTTL      time.Duration
	RetryLimit    int
	RetryBase     time.Duration
	RetryCap      time.Duration
	// SweepSchedule is a cron expression for the sweep and resync tick. Empty disables it.
	SweepSchedule string
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Workers:       runtime.NumCPU(),
		QueueCapacity: 10000,
		ScoreTimeout:  250 * time.Millisecond,
		MatchTTL:      7 * 24 * time.Hour,
		RetryLimit:    5,
		RetryBase:     100 * time.Millisecond,
		RetryCap:      30 * time.Second,
		SweepSchedule: "@every 10m",
	}
}

// Alerter is notified when a key exhausts its retries.
type Alerter interface {
	Alert(key records.Key, err error)
}

// LogAlerter reports permanent failures as error logs.
type LogAlerter struct {
	Logger *zap.Logger
}

func (a LogAlerter) Alert(key records.Key, err error) {
	logger.WithMatch(a.Logger, key.CandidateID, key.JobID).Error("match recompute failed permanently", zap.Error(err))
}

// ChangeKind classifies a change applied to a match record.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "match_created"
	ChangeUpdated ChangeKind = "match_updated"
	ChangeStatus  ChangeKind = "status_changed"
	ChangeExpired ChangeKind = "match_expired"
	ChangeDeleted ChangeKind = "match_deleted"
)

// Change describes one applied write.
type Change struct {
	Kind       ChangeKind
	Key        records.Key
	Status     records.MatchStatus
	Overall    float64
	Generation uint64
	At         time.Time
}

// Observer receives every applied change. It is called synchronously from workers and must not
// block.
type Observer func(Change)

// Deps are the collaborators of the scheduler.
type Deps struct {
	Repo     repository.Repository
	Cache    *matchcache.Cache
	Pool     *talentpool.Index
	Jobs     *talentpool.JobIndex
	Scorer   *scoring.Scorer
	Logger   *zap.Logger
	Alerter  Alerter
	Observer Observer
	Clock    func() time.Time
}

type taskState int

const (
	stateQueued taskState = iota + 1
	stateRunning
	stateRetrying
	stateFailed
)

type task struct {
	state       taskState
	lane        Lane
	retries     int
	invalidated bool
	token       uint64
	lastErr     error
}

// Scheduler owns every score write. Events are resolved into match keys by a dispatcher and
// processed by a fixed pool of workers.
type Scheduler struct {
	cfg   Config
	deps  Deps
	log   *zap.Logger
	now   func() time.Time
	queue *queue

	inboxMu   sync.Mutex
	inbox     []Event
	resolving bool
	wake      chan struct{}

	mu       sync.Mutex
	tasks    map[records.Key]*task
	overflow map[Event]struct{}
	stats    counters
	closed   bool
}

type counters struct {
	submitted uint64
	coalesced uint64
	dropped   uint64
	processed uint64
	retried   uint64
	failed    uint64
}

// New validates cfg and builds a scheduler. Workers <= 0 means one per CPU.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	switch {
	case cfg.QueueCapacity <= 0:
		return nil, apperror.Configuration("scheduler", "queue capacity must be positive, got %d", cfg.QueueCapacity)
	case cfg.ScoreTimeout <= 0:
		return nil, apperror.Configuration("scheduler", "score timeout must be positive, got %s", cfg.ScoreTimeout)
	case cfg.MatchTTL <= 0:
		return nil, apperror.Configuration("scheduler", "match ttl must be positive, got %s", cfg.MatchTTL)
	case cfg.RetryLimit < 0:
		return nil, apperror.Configuration("scheduler", "retry limit must not be negative, got %d", cfg.RetryLimit)
	case deps.Repo == nil || deps.Cache == nil || deps.Pool == nil || deps.Jobs == nil || deps.Scorer == nil:
		return nil, apperror.Configuration("scheduler", "repository, cache, indexes and scorer are required")
	}
	if cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			return nil, apperror.Configuration("scheduler", "sweep schedule %q: %v", cfg.SweepSchedule, err)
		}
	}

	log := logger.WithFields(deps.Logger, zap.String("component", "scheduler"))
	if deps.Alerter == nil {
		deps.Alerter = LogAlerter{Logger: log}
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		cfg:      cfg,
		deps:     deps,
		log:      log,
		now:      now,
		queue:    newQueue(cfg.QueueCapacity),
		wake:     make(chan struct{}, 1),
		tasks:    make(map[records.Key]*task),
		overflow: make(map[Event]struct{}),
	}, nil
}

// SubmitEvent records a change notification and returns immediately.
func (s *Scheduler) SubmitEvent(ev Event) error {
	if ev.ID == "" {
		return apperror.Input("submit event", "event id is required")
	}
	if _, err := ParseEventKind(string(ev.Kind)); err != nil {
		return err
	}

	s.inboxMu.Lock()
	s.inbox = append(s.inbox, ev)
	s.inboxMu.Unlock()

	s.mu.Lock()
	s.stats.submitted++
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) drainInbox() []Event {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()
	events := s.inbox
	s.inbox = nil
	s.resolving = len(events) > 0
	return events
}

func (s *Scheduler) resolved() {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()
	s.resolving = false
}

// inboxLen counts a batch under resolution as one pending event.
func (s *Scheduler) inboxLen() int {
	s.inboxMu.Lock()
	defer s.inboxMu.Unlock()
	if s.resolving {
		return len(s.inbox) + 1
	}
	return len(s.inbox)
}

// Run starts the dispatcher, the workers and the sweep schedule, and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	var sweeper *cron.Cron
	if s.cfg.SweepSchedule != "" {
		sweeper = cron.New(cron.WithLogger(cronLogger{s.log.Sugar()}))
		if _, err := sweeper.AddFunc(s.cfg.SweepSchedule, func() { s.tick(ctx) }); err != nil {
			return fmt.Errorf("cron.AddFunc: %w", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.dispatch(gCtx) })
	for i := range s.cfg.Workers {
		g.Go(func() error { return s.work(gCtx, i) })
	}
	if sweeper != nil {
		sweeper.Start()
		defer func() { <-sweeper.Stop().Done() }()
	}

	s.log.Info("scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("queue_capacity", s.cfg.QueueCapacity),
		zap.String("sweep_schedule", s.cfg.SweepSchedule),
	)

	err := g.Wait()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, _, err := s.Sweep(ctx, s.now()); err != nil {
		s.log.Warn("sweep failed", zap.Error(err))
	}
	s.Resync()
}

func (s *Scheduler) dispatch(ctx context.Context) error {
	for {
		for _, ev := range s.drainInbox() {
			if err := s.resolve(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Warn("event resolution failed, will resync",
					zap.String("kind", string(ev.Kind)),
					zap.String("id", ev.ID),
					zap.Error(err),
				)
				s.remember(ev)
			}
		}
		s.resolved()
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}
	}
}

// resolve turns an event into the set of keys that need recomputation.
func (s *Scheduler) resolve(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventJob:
		job, err := s.deps.Repo.Job(ctx, ev.ID)
		if errors.Is(err, repository.ErrNotFound) {
			s.deps.Jobs.Remove(ev.ID)
			return s.dropJob(ctx, ev.ID)
		}
		if err != nil {
			return err
		}
		s.deps.Jobs.Upsert(job)

		keys := s.deps.Cache.Keys("", job.ID)
		if job.Published() {
			for _, cid := range s.deps.Pool.Shortlist(job) {
				keys = append(keys, records.Key{CandidateID: cid, JobID: job.ID})
			}
		}
		s.enqueueAll(keys, ev.lane())
		return nil

	default:
		candidate, err := s.deps.Repo.Candidate(ctx, ev.ID)
		if errors.Is(err, repository.ErrNotFound) {
			s.deps.Pool.Remove(ev.ID)
			return s.dropCandidate(ctx, ev.ID)
		}
		if err != nil {
			return err
		}
		// Pool events only touch the pool flags of an indexed candidate.
		if ev.Kind != EventPool || !s.deps.Pool.SetPool(candidate.ID, candidate.Pool) {
			s.deps.Pool.Upsert(candidate)
		}

		keys := s.deps.Cache.Keys(candidate.ID, "")
		if candidate.Pool.Eligible() {
			for _, jid := range s.deps.Jobs.Matching(candidate) {
				keys = append(keys, records.Key{CandidateID: candidate.ID, JobID: jid})
			}
		}
		s.enqueueAll(keys, ev.lane())
		return nil
	}
}

func (s *Scheduler) dropCandidate(ctx context.Context, id string) error {
	keys := s.deps.Cache.Keys(id, "")
	if _, err := s.deps.Cache.DeleteCandidate(ctx, id); err != nil {
		return err
	}
	s.emitDeleted(keys)
	return nil
}

func (s *Scheduler) dropJob(ctx context.Context, id string) error {
	keys := s.deps.Cache.Keys("", id)
	if _, err := s.deps.Cache.DeleteJob(ctx, id); err != nil {
		return err
	}
	s.emitDeleted(keys)
	return nil
}

func (s *Scheduler) emitDeleted(keys []records.Key) {
	at := s.now()
	for _, key := range keys {
		s.emit(Change{Kind: ChangeDeleted, Key: key, At: at})
	}
}

func (s *Scheduler) emit(ch Change) {
	if s.deps.Observer != nil {
		s.deps.Observer(ch)
	}
}

func (s *Scheduler) enqueueAll(keys []records.Key, lane Lane) {
	slices.SortFunc(keys, func(a, b records.Key) int {
		return cmp.Or(strings.Compare(a.CandidateID, b.CandidateID), strings.Compare(a.JobID, b.JobID))
	})
	keys = slices.Compact(keys)
	for _, key := range keys {
		s.Enqueue(key, lane)
	}
}

// Enqueue schedules a recomputation of key. A key that is already queued is coalesced; a key that is
// running is marked invalidated and runs again once the current pass ends.
func (s *Scheduler) Enqueue(key records.Key, lane Lane) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		t = &task{}
		s.tasks[key] = t
	}

	switch t.state {
	case stateQueued:
		s.stats.coalesced++
		return
	case stateRunning:
		t.invalidated = true
		t.lane = lane
		s.stats.coalesced++
		return
	case stateRetrying:
		// The pending retry timer sees a stale token and does nothing.
		t.token++
	case stateFailed:
		t.retries = 0
		t.lastErr = nil
	}

	t.lane = lane
	s.pushLocked(key, t)
}

// pushLocked moves t into the queue. s.mu must be held.
func (s *Scheduler) pushLocked(key records.Key, t *task) {
	t.state = stateQueued
	coalesced, evicted := s.queue.push(key, t.lane)
	if coalesced {
		s.stats.coalesced++
	}
	if evicted == nil {
		return
	}

	s.stats.dropped++
	if victim, ok := s.tasks[evicted.key]; ok && victim.state == stateQueued {
		delete(s.tasks, evicted.key)
	}
	ev := Event{Kind: EventCandidate, ID: evicted.key.CandidateID}
	if evicted.lane == LaneJob {
		ev = Event{Kind: EventJob, ID: evicted.key.JobID}
	}
	s.overflow[ev] = struct{}{}
	logger.WithMatch(s.log, evicted.key.CandidateID, evicted.key.JobID).Warn("queue full, dropped pending recompute",
		zap.Stringer("lane", evicted.lane),
	)
}

func (s *Scheduler) remember(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overflow[ev] = struct{}{}
}

// Resync re-submits the entities whose work was dropped on overflow or whose events could not be
// resolved. It returns the number of events submitted.
func (s *Scheduler) Resync() int {
	s.mu.Lock()
	pending := make([]Event, 0, len(s.overflow))
	for ev := range s.overflow {
		pending = append(pending, ev)
	}
	clear(s.overflow)
	s.mu.Unlock()

	for _, ev := range pending {
		_ = s.SubmitEvent(ev)
	}
	if len(pending) > 0 {
		s.log.Info("resync submitted dropped entities", zap.Int("events", len(pending)))
	}
	return len(pending)
}

func (s *Scheduler) work(ctx context.Context, worker int) error {
	log := s.log.With(zap.Int("worker", worker))
	for {
		e, err := s.queue.pop(ctx)
		if err != nil {
			return nil
		}

		s.mu.Lock()
		t, ok := s.tasks[e.key]
		if !ok || t.state != stateQueued {
			s.mu.Unlock()
			continue
		}
		t.state = stateRunning
		t.invalidated = false
		s.mu.Unlock()

		err = s.process(ctx, e.key)
		if perm := s.finish(ctx, log, e.key, err); perm != nil {
			s.deps.Alerter.Alert(e.key, perm)
		}
	}
}

// finish applies the state transition after one processing pass. It returns the permanent failure
// to alert on once retries are exhausted.
func (s *Scheduler) finish(ctx context.Context, log *zap.Logger, key records.Key, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks[key]
	if t == nil {
		return nil
	}
	s.stats.processed++
	keyLog := logger.WithMatch(log, key.CandidateID, key.JobID)

	switch {
	case err == nil, ctx.Err() != nil:
		t.retries = 0
		t.lastErr = nil

	case !apperror.Retryable(err):
		keyLog.Warn("recompute rejected", zap.Error(err))
		t.retries = 0
		t.lastErr = err

	default:
		t.retries++
		t.lastErr = err
		if t.invalidated {
			break
		}
		if t.retries >= s.cfg.RetryLimit {
			t.state = stateFailed
			s.stats.failed++
			return apperror.Permanent("recompute", err)
		}
		s.stats.retried++
		t.state = stateRetrying
		t.token++
		token := t.token
		delay := utils.Backoff(t.retries, s.cfg.RetryBase, s.cfg.RetryCap)
		keyLog.Debug("recompute failed, retrying",
			zap.Int("attempt", t.retries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		time.AfterFunc(delay, func() { s.retry(key, token) })
		return nil
	}

	if t.invalidated && ctx.Err() == nil && !s.closed {
		t.invalidated = false
		s.pushLocked(key, t)
		return nil
	}
	delete(s.tasks, key)
	return nil
}

func (s *Scheduler) retry(key records.Key, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok || t.state != stateRetrying || t.token != token {
		return
	}
	if s.closed {
		delete(s.tasks, key)
		return
	}
	s.pushLocked(key, t)
}

// process recomputes one key within the score budget. Nothing is written when the budget is
// exceeded. Failures without a kind are classified as transient so that they are retried.
func (s *Scheduler) process(parent context.Context, key records.Key) error {
	err := s.recompute(parent, key)
	switch {
	case err == nil, apperror.KindOf(err) != apperror.KindUnknown:
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.Timeout("recompute", err)
	default:
		return apperror.Transient("recompute", err)
	}
}

func (s *Scheduler) recompute(parent context.Context, key records.Key) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.ScoreTimeout)
	defer cancel()

	candidate, err := s.deps.Repo.Candidate(ctx, key.CandidateID)
	if errors.Is(err, repository.ErrNotFound) {
		s.deps.Pool.Remove(key.CandidateID)
		return s.dropCandidate(parent, key.CandidateID)
	}
	if err != nil {
		return loadError(ctx, "load candidate", err)
	}
	job, err := s.deps.Repo.Job(ctx, key.JobID)
	if errors.Is(err, repository.ErrNotFound) {
		s.deps.Jobs.Remove(key.JobID)
		return s.dropJob(parent, key.JobID)
	}
	if err != nil {
		return loadError(ctx, "load job", err)
	}

	if !candidate.Pool.Eligible() || !job.Published() {
		return s.expire(parent, key)
	}

	breakdown, err := s.deps.Scorer.ScoreContext(ctx, candidate, job)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperror.Timeout("score", err)
	}

	fresh := s.deps.Scorer.Record(candidate, job, breakdown)
	fresh.ExpiresAt = s.now().Add(s.cfg.MatchTTL)

	created := false
	rec, err := s.deps.Cache.Update(ctx, key, func(cur *records.MatchRecord) (*records.MatchRecord, error) {
		created = cur == nil
		if cur != nil && cur.Status != records.StatusPending && cur.Status != records.StatusExpired {
			fresh.Status = cur.Status
		}
		return fresh, nil
	})
	if err != nil {
		return err
	}

	kind := ChangeUpdated
	if created {
		kind = ChangeCreated
	}
	s.emit(Change{Kind: kind, Key: key, Status: rec.Status, Overall: rec.Overall, Generation: rec.Generation, At: rec.UpdatedAt})
	return nil
}

func loadError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return apperror.Timeout(op, err)
	}
	if apperror.KindOf(err) != apperror.KindUnknown {
		return err
	}
	return apperror.Transient(op, err)
}

func (s *Scheduler) expire(ctx context.Context, key records.Key) error {
	changed := false
	rec, err := s.deps.Cache.Update(ctx, key, func(cur *records.MatchRecord) (*records.MatchRecord, error) {
		if cur == nil || cur.Status == records.StatusExpired {
			return nil, nil
		}
		cur.Status = records.StatusExpired
		changed = true
		return cur, nil
	})
	if err != nil {
		return err
	}
	if changed {
		s.emit(Change{Kind: ChangeExpired, Key: key, Status: rec.Status, Overall: rec.Overall, Generation: rec.Generation, At: rec.UpdatedAt})
	}
	return nil
}

// SetStatus applies user feedback to an existing, unexpired record through the same
// generation-bumping write path as recomputation.
func (s *Scheduler) SetStatus(ctx context.Context, candidateID, jobID string, status records.MatchStatus) (*records.MatchRecord, error) {
	switch status {
	case records.StatusViewed, records.StatusInterested, records.StatusNotInterested, records.StatusContacted:
	default:
		return nil, apperror.Input("set status", "status %q cannot be set by users", status)
	}

	key := records.Key{CandidateID: candidateID, JobID: jobID}
	now := s.now()
	rec, err := s.deps.Cache.Update(ctx, key, func(cur *records.MatchRecord) (*records.MatchRecord, error) {
		if cur == nil {
			return nil, apperror.Input("set status", "no match for %s", key)
		}
		if cur.Expired(now) {
			return nil, apperror.Input("set status", "match %s is expired", key)
		}
		cur.Status = status
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(Change{Kind: ChangeStatus, Key: key, Status: rec.Status, Overall: rec.Overall, Generation: rec.Generation, At: rec.UpdatedAt})
	return rec, nil
}

// Sweep marks records past their TTL as expired, then deletes expired records whose expiry passed.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (expired, deleted int, err error) {
	expired, err = s.deps.Cache.ExpireDue(ctx, now)
	if err != nil {
		return expired, 0, err
	}
	deleted, err = s.deps.Cache.Sweep(ctx, now)
	if err != nil {
		return expired, deleted, err
	}
	if expired > 0 || deleted > 0 {
		s.log.Info("sweep finished", zap.Int("expired", expired), zap.Int("deleted", deleted))
	}
	return expired, deleted, nil
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Inbox     int    `json:"inbox"`
	Queued    int    `json:"queued"`
	Running   int    `json:"running"`
	Retrying  int    `json:"retrying"`
	Failed    int    `json:"failed"`
	Overflow  int    `json:"overflow"`
	Submitted uint64 `json:"submitted"`
	Coalesced uint64 `json:"coalesced"`
	Dropped   uint64 `json:"dropped"`
	Processed uint64 `json:"processed"`
	Retried   uint64 `json:"retried"`
	Alerts    uint64 `json:"alerts"`
}

func (s *Scheduler) Stats() Stats {
	inbox := s.inboxLen()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Inbox:     inbox,
		Overflow:  len(s.overflow),
		Submitted: s.stats.submitted,
		Coalesced: s.stats.coalesced,
		Dropped:   s.stats.dropped,
		Processed: s.stats.processed,
		Retried:   s.stats.retried,
		Alerts:    s.stats.failed,
	}
	for _, t := range s.tasks {
		switch t.state {
		case stateQueued:
			st.Queued++
		case stateRunning:
			st.Running++
		case stateRetrying:
			st.Retrying++
		case stateFailed:
			st.Failed++
		}
	}
	return st
}

// Failure is a key that exhausted its retries.
type Failure struct {
	Key     records.Key `json:"key"`
	Retries int         `json:"retries"`
	Err     string      `json:"error"`
}

// Failures lists the keys that exhausted their retries, ordered by key. They stay failed until a new
// event touches them.
func (s *Scheduler) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Failure
	for key, t := range s.tasks {
		if t.state != stateFailed {
			continue
		}
		f := Failure{Key: key, Retries: t.retries}
		if t.lastErr != nil {
			f.Err = t.lastErr.Error()
		}
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b Failure) int { return strings.Compare(a.Key.String(), b.Key.String()) })
	return out
}

// Idle reports whether no event or key is waiting, running or scheduled for retry. Failed keys do
// not count.
func (s *Scheduler) Idle() bool {
	st := s.Stats()
	return st.Inbox == 0 && st.Queued == 0 && st.Running == 0 && st.Retrying == 0
}

// WaitIdle polls until Idle or ctx is done.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	for !s.Idle() {
		if err := utils.WaitFor(ctx, 5*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
