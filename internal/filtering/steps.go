package filtering

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/talent-matcher/internal/records"
)

const (
	NameStatus        = "status"
	NameThreshold     = "threshold"
	NamePoolThreshold = "pool-threshold"
	NameContactable   = "contactable"
)

type statusFilter struct {
	toggle
	includeExpired bool
	statuses       []records.MatchStatus
	now            time.Time
}

// NewStatus creates a filter that drops expired records and, when statuses are requested, every
// record outside them.
func NewStatus() Filter {
	return &statusFilter{}
}

func (f *statusFilter) Name() string { return NameStatus }

func (f *statusFilter) Validate(cfg *Config) error {
	f.includeExpired = cfg.IncludeExpired
	f.now = cfg.Now
	f.statuses = slices.Clone(cfg.Statuses)
	for _, s := range f.statuses {
		if _, err := records.ParseStatus(string(s)); err != nil {
			return err
		}
	}
	return nil
}

func (f *statusFilter) Apply(_ context.Context, _ Deps, recs []*records.MatchRecord) ([]*records.MatchRecord, Step, error) {
	out, step := keep(recs, func(r *records.MatchRecord) bool {
		status := r.Status
		if r.Expired(f.now) {
			status = records.StatusExpired
		}
		if status == records.StatusExpired && !f.includeExpired && !slices.Contains(f.statuses, records.StatusExpired) {
			return false
		}
		return len(f.statuses) == 0 || slices.Contains(f.statuses, status)
	})
	return out, step, nil
}

func (f *statusFilter) Status() Status {
	details := map[string]string{"include_expired": strconv.FormatBool(f.includeExpired)}
	if len(f.statuses) > 0 {
		names := make([]string, 0, len(f.statuses))
		for _, s := range f.statuses {
			names = append(names, string(s))
		}
		details["statuses"] = strings.Join(names, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type thresholdFilter struct {
	toggle
	min *float64
}

// NewThreshold creates a filter that drops records strictly below the requested minimum score.
func NewThreshold() Filter {
	return &thresholdFilter{}
}

func (f *thresholdFilter) Name() string { return NameThreshold }

func (f *thresholdFilter) Validate(cfg *Config) error {
	f.min = cfg.MinScore
	if f.min != nil && (*f.min < 0 || *f.min > 1) {
		return fmt.Errorf("min score must be within [0,1], got %v", *f.min)
	}
	return nil
}

func (f *thresholdFilter) Apply(_ context.Context, _ Deps, recs []*records.MatchRecord) ([]*records.MatchRecord, Step, error) {
	if f.min == nil {
		return recs, Step{Initial: len(recs), Left: len(recs)}, nil
	}
	limit := *f.min * 100
	out, step := keep(recs, func(r *records.MatchRecord) bool {
		return r.OverallExact >= limit
	})
	return out, step, nil
}

func (f *thresholdFilter) Status() Status {
	details := map[string]string{}
	if f.min != nil {
		details["min_score"] = fmt.Sprintf("%.2f", *f.min)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type poolThresholdFilter struct {
	toggle
	explicit bool
}

// NewPoolThreshold creates a filter that applies each candidate's own minimum score threshold when
// the request carries no explicit minimum.
func NewPoolThreshold() Filter {
	return &poolThresholdFilter{}
}

func (f *poolThresholdFilter) Name() string { return NamePoolThreshold }

func (f *poolThresholdFilter) Validate(cfg *Config) error {
	f.explicit = cfg.MinScore != nil
	return nil
}

func (f *poolThresholdFilter) Apply(_ context.Context, deps Deps, recs []*records.MatchRecord) ([]*records.MatchRecord, Step, error) {
	if f.explicit || deps.Pool == nil {
		return recs, Step{Initial: len(recs), Left: len(recs)}, nil
	}
	out, step := keep(recs, func(r *records.MatchRecord) bool {
		entry, ok := deps.Pool.Entry(r.CandidateID)
		if !ok {
			return true
		}
		return r.OverallExact >= entry.MinScoreThreshold*100
	})
	return out, step, nil
}

func (f *poolThresholdFilter) Status() Status {
	reason := f.reason
	if f.IsEnabled() && f.explicit {
		reason = "explicit min score supplied"
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: reason}
}

type contactableFilter struct {
	toggle
	require bool
}

// NewContactable creates a filter that drops candidates who do not allow contact when requested.
func NewContactable() Filter {
	return &contactableFilter{}
}

func (f *contactableFilter) Name() string { return NameContactable }

func (f *contactableFilter) Validate(cfg *Config) error {
	f.require = cfg.RequireContact
	return nil
}

func (f *contactableFilter) Apply(_ context.Context, deps Deps, recs []*records.MatchRecord) ([]*records.MatchRecord, Step, error) {
	if !f.require {
		return recs, Step{Initial: len(recs), Left: len(recs)}, nil
	}
	if deps.Pool == nil {
		return nil, Step{}, fmt.Errorf("talent pool lookup is required")
	}
	out, step := keep(recs, func(r *records.MatchRecord) bool {
		entry, ok := deps.Pool.Entry(r.CandidateID)
		return ok && entry.AllowContact
	})
	return out, step, nil
}

func (f *contactableFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"require_contact": strconv.FormatBool(f.require)},
	}
}
