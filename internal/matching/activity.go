package matching

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/talent-matcher/internal/records"
	"github.com/spigell/talent-matcher/internal/scheduler"
)

const activityPerCandidate = 100

// Activity is one entry of a candidate's match history.
type Activity struct {
	ID         string               `json:"id"`
	Kind       scheduler.ChangeKind `json:"kind"`
	JobID      string               `json:"job_id"`
	Status     records.MatchStatus  `json:"status,omitempty"`
	Overall    float64              `json:"overall_score,omitempty"`
	Generation uint64               `json:"generation,omitempty"`
	At         time.Time            `json:"at"`
}

// activityLog keeps the most recent changes per candidate.
type activityLog struct {
	mu      sync.Mutex
	limit   int
	entries map[string][]Activity
}

func newActivityLog(limit int) *activityLog {
	return &activityLog{limit: limit, entries: make(map[string][]Activity)}
}

func (l *activityLog) record(ch scheduler.Change) {
	entry := Activity{
		ID:         uuid.NewString(),
		Kind:       ch.Kind,
		JobID:      ch.Key.JobID,
		Status:     ch.Status,
		Overall:    ch.Overall,
		Generation: ch.Generation,
		At:         ch.At,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	list := append(l.entries[ch.Key.CandidateID], entry)
	if len(list) > l.limit {
		list = slices.Clone(list[len(list)-l.limit:])
	}
	l.entries[ch.Key.CandidateID] = list
}

// list returns the newest entries first.
func (l *activityLog) list(candidateID string, limit int) []Activity {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := slices.Clone(l.entries[candidateID])
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
