// Package filtering narrows ranked match views through an ordered list of steps.
package filtering

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/talent-matcher/internal/records"
)

// Filter represents a single filtering step applied to match records.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, recs []*records.MatchRecord) ([]*records.MatchRecord, Step, error)
}

// PoolLookup resolves the talent pool entry of a candidate.
type PoolLookup interface {
	Entry(candidateID string) (records.PoolEntry, bool)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
	Pool   PoolLookup
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains the per-request settings consumed by the filters.
type Config struct {
	// MinScore is a fraction in [0,1]; nil disables the explicit threshold.
	MinScore       *float64
	IncludeExpired bool
	Statuses       []records.MatchStatus
	RequireContact bool
	Now            time.Time
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the steps applied to every ranking view, in order.
func Default() []Filter {
	return []Filter{NewStatus(), NewThreshold(), NewPoolThreshold(), NewContactable()}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns the surviving records.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, recs []*records.MatchRecord) ([]*records.MatchRecord, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, recs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil && info.Dropped > 0 {
			deps.Logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		recs = next
	}

	return recs, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// toggle carries the enable/disable state shared by all steps.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

func keep(recs []*records.MatchRecord, pred func(*records.MatchRecord) bool) ([]*records.MatchRecord, Step) {
	out := make([]*records.MatchRecord, 0, len(recs))
	for _, r := range recs {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out, Step{Initial: len(recs), Dropped: len(recs) - len(out), Left: len(out)}
}
