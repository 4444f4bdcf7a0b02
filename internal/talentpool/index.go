// Package talentpool tracks candidate eligibility and the coarse skill and region indexes used to
// shortlist match work.
package talentpool

import (
	"github.com/spigell/talent-matcher/internal/records"
)

const (
	skillPrefix  = "skill:"
	regionPrefix = "region:"
	// noSkills groups jobs that list neither required nor preferred skills.
	noSkills = "skill:*"
)

// RegionToken is the case-folded last part of a location, or "" for an empty location.
func RegionToken(location string) string {
	parts := records.SplitLocation(location)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

type member struct {
	pool   records.PoolEntry
	skills []string
	region string
}

// Index holds the talent pool entries of every known candidate.
type Index struct {
	store *store[member]
}

func New() *Index {
	return &Index{store: newStore[member]()}
}

func candidateEntry(c *records.Candidate) entry[member] {
	m := member{
		pool:   c.Pool,
		skills: records.NormalizeSkills(c.Skills),
		region: RegionToken(c.Location),
	}
	tokens := make([]string, 0, len(m.skills)+1)
	for _, skill := range m.skills {
		tokens = append(tokens, skillPrefix+skill)
	}
	if m.region != "" {
		tokens = append(tokens, regionPrefix+m.region)
	}
	return entry[member]{id: c.ID, item: m, tokens: tokens}
}

// Upsert replaces the indexed state of the candidate.
func (x *Index) Upsert(c *records.Candidate) {
	e := candidateEntry(c)
	x.store.put(e.id, e.item, e.tokens)
}

// Load indexes many candidates with a single snapshot swap.
func (x *Index) Load(candidates []*records.Candidate) {
	batch := make([]entry[member], 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			batch = append(batch, candidateEntry(c))
		}
	}
	x.store.putAll(batch)
}

// SetPool updates only the pool flags of a known candidate.
func (x *Index) SetPool(id string, pool records.PoolEntry) bool {
	updated := false
	x.store.update(id, func(old *snapshot[member]) *snapshot[member] {
		m, ok := old.items[id]
		if !ok {
			return old
		}
		updated = true
		m.pool = pool
		return old.with(id, m, old.tokens[id])
	})
	return updated
}

// Remove drops the candidate and reports whether it was indexed.
func (x *Index) Remove(id string) bool {
	return x.store.remove(id)
}

// Entry returns the pool entry of the candidate.
func (x *Index) Entry(id string) (records.PoolEntry, bool) {
	m, ok := x.store.get(id)
	return m.pool, ok
}

// Eligible reports whether the candidate takes part in automatic matching.
func (x *Index) Eligible(id string) bool {
	m, ok := x.store.get(id)
	return ok && m.pool.Eligible()
}

// Shortlist returns the eligible candidates worth scoring against the job, sorted by id. Candidates
// sharing a skill with the job qualify. A job without skills shortlists its region, or every
// eligible candidate when it is remote or has no location. Unpublished jobs shortlist nobody.
func (x *Index) Shortlist(job *records.Job) []string {
	if job == nil || !job.Published() {
		return nil
	}
	snap := x.store.current()

	var ids map[string]struct{}
	skills := job.SkillTokens()
	switch {
	case len(skills) > 0:
		tokens := make([]string, 0, len(skills))
		for _, skill := range skills {
			tokens = append(tokens, skillPrefix+skill)
		}
		ids = snap.lookup(tokens...)
	case job.IsRemote() || RegionToken(job.Location) == "":
		ids = make(map[string]struct{}, len(snap.items))
		for id := range snap.items {
			ids[id] = struct{}{}
		}
	default:
		return x.InRegion(job.Location)
	}

	return eligibleOnly(snap, ids)
}

// InRegion returns the eligible candidates sharing the region of location, sorted by id.
func (x *Index) InRegion(location string) []string {
	snap := x.store.current()
	return eligibleOnly(snap, snap.lookup(regionPrefix+RegionToken(location)))
}

// EligibleIDs returns every eligible candidate sorted by id.
func (x *Index) EligibleIDs() []string {
	snap := x.store.current()
	ids := make(map[string]struct{}, len(snap.items))
	for id := range snap.items {
		ids[id] = struct{}{}
	}
	return eligibleOnly(snap, ids)
}

func (x *Index) Len() int {
	return len(x.store.current().items)
}

func eligibleOnly(snap *snapshot[member], ids map[string]struct{}) []string {
	for id := range ids {
		if m, ok := snap.items[id]; !ok || !m.pool.Eligible() {
			delete(ids, id)
		}
	}
	return sortedKeys(ids)
}

// JobIndex holds published jobs by skill so candidate changes can find the jobs to rescore.
type JobIndex struct {
	store *store[*records.Job]
}

func NewJobIndex() *JobIndex {
	return &JobIndex{store: newStore[*records.Job]()}
}

func jobTokens(job *records.Job) []string {
	skills := job.SkillTokens()
	tokens := make([]string, 0, len(skills))
	for _, skill := range skills {
		tokens = append(tokens, skillPrefix+skill)
	}
	if len(tokens) == 0 {
		tokens = append(tokens, noSkills)
	}
	return tokens
}

// Upsert indexes a published job and drops any other status.
func (x *JobIndex) Upsert(job *records.Job) {
	if !job.Published() {
		x.store.remove(job.ID)
		return
	}
	x.store.put(job.ID, job, jobTokens(job))
}

// Load indexes the published jobs among jobs with a single snapshot swap.
func (x *JobIndex) Load(jobs []*records.Job) {
	batch := make([]entry[*records.Job], 0, len(jobs))
	for _, job := range jobs {
		if job != nil && job.Published() {
			batch = append(batch, entry[*records.Job]{id: job.ID, item: job, tokens: jobTokens(job)})
		}
	}
	x.store.putAll(batch)
}

func (x *JobIndex) Remove(id string) bool {
	return x.store.remove(id)
}

// Matching returns the published jobs sharing a skill with the candidate plus the jobs without
// skills, sorted by id.
func (x *JobIndex) Matching(c *records.Candidate) []string {
	snap := x.store.current()
	skills := records.NormalizeSkills(c.Skills)
	tokens := make([]string, 0, len(skills)+1)
	for _, skill := range skills {
		tokens = append(tokens, skillPrefix+skill)
	}
	tokens = append(tokens, noSkills)
	return sortedKeys(snap.lookup(tokens...))
}

func (x *JobIndex) Len() int {
	return len(x.store.current().items)
}
