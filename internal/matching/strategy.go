// Package matching selects, for one contact, the job postings that go into
// that contact's digest. It performs no I/O and never mutates its inputs, so
// a single job pool snapshot can be shared by concurrent Select calls.
package matching

import (
	"job-notifier/internal/models"
)

type StrategyTag string

const (
	StrategyFresherBranchExperience StrategyTag = "fresher+branch+experience"
	StrategyFresherBranch           StrategyTag = "fresher+branch"
	StrategyFresherExperience       StrategyTag = "fresher+experience"
	StrategyAllBranchExperience     StrategyTag = "all+branch+experience"
	StrategyAllBranch               StrategyTag = "all+branch"
	StrategyAllExperience           StrategyTag = "all+experience"
	StrategyNoMatch                 StrategyTag = "no-match"
)

// AllStrategyTags lists every tag in evaluation order, no-match last.
var AllStrategyTags = []StrategyTag{
	StrategyFresherBranchExperience,
	StrategyFresherBranch,
	StrategyFresherExperience,
	StrategyAllBranchExperience,
	StrategyAllBranch,
	StrategyAllExperience,
	StrategyNoMatch,
}

type SelectionResult struct {
	Jobs     []models.JobPosting `json:"jobs"`
	Strategy StrategyTag         `json:"strategy"`
	// Matched is the candidate count before digest truncation.
	Matched int `json:"matched"`
}

// IsNoMatch reports whether nothing was selected.
func (r SelectionResult) IsNoMatch() bool {
	return r.Strategy == StrategyNoMatch
}

type Options struct {
	// DigestLimit caps the number of jobs per result. Zero means DefaultDigestLimit.
	DigestLimit int
	// MinBranchTokenLength, when positive, makes shorter branch tokens match
	// whole words only. Zero keeps plain substring matching.
	MinBranchTokenLength int
}

// selection holds the per-contact values every strategy reads.
type selection struct {
	branchTokens  []string
	contactRange  *ExperienceRange
	preferFresher bool
	pool          []models.JobPosting
	fresherPool   []models.JobPosting
	minTokenLen   int
}

type filterKind int

const (
	filterBranch filterKind = iota
	filterExperience
)

// strategy is one entry of the fallback chain.
type strategy struct {
	tag     StrategyTag
	applies func(s *selection) bool
	pool    func(s *selection) []models.JobPosting
	filters []filterKind
}

func fresherGroup(s *selection) bool {
	return s.preferFresher && len(s.fresherPool) > 0
}

func fresherPool(s *selection) []models.JobPosting { return s.fresherPool }
func fullPool(s *selection) []models.JobPosting    { return s.pool }

// chain is evaluated in order; the first non-empty result wins.
var chain = []strategy{
	{
		tag:     StrategyFresherBranchExperience,
		applies: fresherGroup,
		pool:    fresherPool,
		filters: []filterKind{filterBranch, filterExperience},
	},
	{
		tag:     StrategyFresherBranch,
		applies: fresherGroup,
		pool:    fresherPool,
		filters: []filterKind{filterBranch},
	},
	{
		tag:     StrategyFresherExperience,
		applies: fresherGroup,
		pool:    fresherPool,
		filters: []filterKind{filterExperience},
	},
	{
		tag:     StrategyAllBranchExperience,
		applies: func(*selection) bool { return true },
		pool:    fullPool,
		filters: []filterKind{filterBranch, filterExperience},
	},
	{
		tag:     StrategyAllBranch,
		applies: func(s *selection) bool { return len(s.branchTokens) > 0 },
		pool:    fullPool,
		filters: []filterKind{filterBranch},
	},
	{
		tag:     StrategyAllExperience,
		applies: func(s *selection) bool { return s.contactRange != nil },
		pool:    fullPool,
		filters: []filterKind{filterExperience},
	},
}

func (st strategy) run(s *selection) []models.JobPosting {
	jobs := st.pool(s)
	for _, f := range st.filters {
		switch f {
		case filterBranch:
			jobs = filterByBranch(jobs, s.branchTokens, s.minTokenLen)
		case filterExperience:
			jobs = filterByExperience(jobs, s.contactRange)
		}
		if len(jobs) == 0 {
			return nil
		}
	}
	return jobs
}

type Selector struct {
	opts Options
}

func NewSelector(opts Options) *Selector {
	if opts.DigestLimit <= 0 {
		opts.DigestLimit = DefaultDigestLimit
	}
	if opts.MinBranchTokenLength < 0 {
		opts.MinBranchTokenLength = 0
	}
	return &Selector{opts: opts}
}

// DigestLimit returns the effective per-contact cap.
func (sel *Selector) DigestLimit() int {
	return sel.opts.DigestLimit
}

// Select runs the fallback chain for one contact against the job pool.
func (sel *Selector) Select(contact models.Contact, pool []models.JobPosting) SelectionResult {
	s := newSelection(contact, pool, sel.opts.MinBranchTokenLength)

	for _, st := range chain {
		if !st.applies(s) {
			continue
		}
		if jobs := st.run(s); len(jobs) > 0 {
			return SelectionResult{
				Jobs:     ComposeDigest(jobs, sel.opts.DigestLimit),
				Strategy: st.tag,
				Matched:  len(jobs),
			}
		}
	}

	return SelectionResult{
		Jobs:     []models.JobPosting{},
		Strategy: StrategyNoMatch,
	}
}

func newSelection(contact models.Contact, pool []models.JobPosting, minTokenLen int) *selection {
	contactRange := ParseExperience(contact.ExperienceRaw)
	return &selection{
		branchTokens:  BranchTokens(contact.BranchRaw),
		contactRange:  contactRange,
		preferFresher: contactRange != nil && contactRange.IsFresher(),
		pool:          pool,
		fresherPool:   fresherSubset(pool),
		minTokenLen:   minTokenLen,
	}
}

var defaultSelector = NewSelector(Options{})

// SelectJobsForContact runs Select with the default options.
func SelectJobsForContact(contact models.Contact, pool []models.JobPosting) SelectionResult {
	return defaultSelector.Select(contact, pool)
}
