package filtering

import (
	"context"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/talent-matcher/internal/records"
)

type poolStub map[string]records.PoolEntry

func (p poolStub) Entry(id string) (records.PoolEntry, bool) {
	e, ok := p[id]
	return e, ok
}

var now = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func rec(cid string, overall float64, status records.MatchStatus) *records.MatchRecord {
	return &records.MatchRecord{
		CandidateID:  cid,
		JobID:        "j-1",
		Overall:      overall,
		OverallExact: overall,
		Status:       status,
		ExpiresAt:    now.Add(time.Hour),
	}
}

func candidates(recs []*records.MatchRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.CandidateID)
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestRunDefaultSteps(t *testing.T) {
	stale := rec("c-stale", 95, records.StatusPending)
	stale.ExpiresAt = now.Add(-time.Minute)

	recs := []*records.MatchRecord{
		rec("c-high", 90, records.StatusPending),
		rec("c-low", 40, records.StatusViewed),
		rec("c-expired", 99, records.StatusExpired),
		stale,
		rec("c-picky", 60, records.StatusPending),
	}

	pool := poolStub{
		"c-high":  records.DefaultPoolEntry(),
		"c-low":   {MinScoreThreshold: 0.3},
		"c-picky": {MinScoreThreshold: 0.8},
	}

	got, err := Run(context.Background(), &Config{Now: now}, Deps{Pool: pool}, Default(), recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"c-high", "c-low"}; !reflect.DeepEqual(candidates(got), want) {
		t.Fatalf("left = %v, want %v", candidates(got), want)
	}
}

func TestRunExplicitMinScoreOverridesPoolThreshold(t *testing.T) {
	recs := []*records.MatchRecord{
		rec("c-1", 60, records.StatusPending),
		rec("c-2", 49.99, records.StatusPending),
	}
	pool := poolStub{"c-1": {MinScoreThreshold: 0.9}, "c-2": {MinScoreThreshold: 0.1}}

	got, err := Run(context.Background(), &Config{Now: now, MinScore: ptr(0.5)}, Deps{Pool: pool}, Default(), recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"c-1"}; !reflect.DeepEqual(candidates(got), want) {
		t.Fatalf("left = %v, want %v", candidates(got), want)
	}
}

func TestRunStatusesAndContact(t *testing.T) {
	recs := []*records.MatchRecord{
		rec("c-1", 80, records.StatusInterested),
		rec("c-2", 80, records.StatusInterested),
		rec("c-3", 80, records.StatusPending),
		rec("c-4", 80, records.StatusExpired),
	}
	noContact := records.DefaultPoolEntry()
	noContact.AllowContact = false
	pool := poolStub{"c-1": records.DefaultPoolEntry(), "c-2": noContact, "c-3": records.DefaultPoolEntry(), "c-4": records.DefaultPoolEntry()}

	cfg := &Config{
		Now:            now,
		Statuses:       []records.MatchStatus{records.StatusInterested, records.StatusExpired},
		RequireContact: true,
	}
	got, err := Run(context.Background(), cfg, Deps{Pool: pool}, Default(), recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"c-1", "c-4"}; !reflect.DeepEqual(candidates(got), want) {
		t.Fatalf("left = %v, want %v", candidates(got), want)
	}
}

func TestRunValidationErrors(t *testing.T) {
	_, err := Run(context.Background(), &Config{MinScore: ptr(1.5)}, Deps{}, Default(), nil)
	if err == nil {
		t.Fatalf("expected error for out of range min score")
	}

	_, err = Run(context.Background(), &Config{Statuses: []records.MatchStatus{"archived"}}, Deps{}, Default(), nil)
	if err == nil {
		t.Fatalf("expected error for unknown status")
	}

	_, err = Run(context.Background(), &Config{RequireContact: true}, Deps{}, Default(), []*records.MatchRecord{rec("c", 1, records.StatusPending)})
	if err == nil {
		t.Fatalf("expected error when contact filtering has no pool lookup")
	}
}

func TestDisabledStepIsSkipped(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	steps := Default()
	DisableByName(steps, NamePoolThreshold, "recruiter view")

	recs := []*records.MatchRecord{rec("c-1", 10, records.StatusPending)}
	pool := poolStub{"c-1": {MinScoreThreshold: 0.9}}

	got, err := Run(context.Background(), &Config{Now: now}, Deps{Pool: pool, Logger: zap.New(core)}, steps, recs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected record to survive with pool threshold disabled, got %d", len(got))
	}
	if observed.FilterMessage("filter disabled").Len() != 1 {
		t.Fatalf("expected disabled filter to be logged")
	}

	var found bool
	for _, status := range Describe(steps) {
		if status.Name == NamePoolThreshold {
			found = true
			if status.Enabled || status.Reason != "recruiter view" {
				t.Fatalf("unexpected status: %+v", status)
			}
		}
	}
	if !found {
		t.Fatalf("pool threshold status missing")
	}
}
