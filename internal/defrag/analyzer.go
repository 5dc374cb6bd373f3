// Package defrag analyzes the knowledge base for maintenance candidates:
// duplicates, conflicting pairs, fragmented topics, orphans, and obsolete
// entries. All checks are read-only and advisory.
package defrag

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/store"
)

// Default thresholds, matching the analysis the report format was designed
// around.
const (
	DefaultDuplicateThreshold = 0.92
	DefaultConflictThreshold  = 0.75
	DefaultFragmentMinGroup   = 3
	DefaultOrphanMinContent   = 100
	DefaultObsoleteDays       = 365
)

// Options tune the analyzer. Zero values select the defaults.
type Options struct {
	DuplicateThreshold float64
	ConflictThreshold  float64
	FragmentMinGroup   int
	OrphanMinContent   int
	ObsoleteDays       int
}

func (o Options) withDefaults() Options {
	if o.DuplicateThreshold == 0 {
		o.DuplicateThreshold = DefaultDuplicateThreshold
	}
	if o.ConflictThreshold == 0 {
		o.ConflictThreshold = DefaultConflictThreshold
	}
	if o.FragmentMinGroup == 0 {
		o.FragmentMinGroup = DefaultFragmentMinGroup
	}
	if o.OrphanMinContent == 0 {
		o.OrphanMinContent = DefaultOrphanMinContent
	}
	if o.ObsoleteDays == 0 {
		o.ObsoleteDays = DefaultObsoleteDays
	}
	return o
}

// conflictableCategories may be compared across category boundaries: a
// pattern and a troubleshooting entry about the same topic can contradict
// each other.
var conflictableCategories = map[string]bool{
	"pattern":         true,
	"troubleshooting": true,
}

// Analyzer runs batch analysis over the full entry set.
type Analyzer struct {
	db   *store.DB
	opts Options
}

// New creates an analyzer over the given store handle. The handle is
// borrowed per call; the analyzer never mutates it.
func New(db *store.DB, opts Options) *Analyzer {
	return &Analyzer{db: db, opts: opts.withDefaults()}
}

// EmbeddingCoverage checks the precondition for similarity-based checks.
func (a *Analyzer) EmbeddingCoverage() (Coverage, error) {
	with, total, err := a.db.EmbeddingCoverage()
	if err != nil {
		return Coverage{}, err
	}
	return Coverage{WithEmbeddings: with, Total: total}, nil
}

// FindDuplicates reports entry pairs with cosine similarity strictly above
// the duplicate threshold, sorted descending. Returns
// apperr.ErrNoEmbeddings when no entry carries a vector.
func (a *Analyzer) FindDuplicates() ([]DuplicatePair, error) {
	cov, err := a.EmbeddingCoverage()
	if err != nil {
		return nil, err
	}
	if cov.WithEmbeddings == 0 {
		return nil, fmt.Errorf("defrag: duplicates: %w", apperr.ErrNoEmbeddings)
	}

	pairs, err := a.db.SimilarPairs(a.opts.DuplicateThreshold, 1.0)
	if err != nil {
		return nil, err
	}
	out := make([]DuplicatePair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, DuplicatePair{
			ID1:        p.ID1,
			ID2:        p.ID2,
			Title1:     p.Title1,
			Title2:     p.Title2,
			Similarity: p.Similarity,
		})
	}
	return out, nil
}

// FindConflicts reports pairs in the similarity band between "related" and
// "duplicate" whose categories are equal or both conflictable, annotated
// with any antonym phrase pairs found across the two contents.
func (a *Analyzer) FindConflicts() ([]ConflictCandidate, error) {
	cov, err := a.EmbeddingCoverage()
	if err != nil {
		return nil, err
	}
	if cov.WithEmbeddings == 0 {
		return nil, fmt.Errorf("defrag: conflicts: %w", apperr.ErrNoEmbeddings)
	}

	pairs, err := a.db.SimilarPairs(a.opts.ConflictThreshold, a.opts.DuplicateThreshold)
	if err != nil {
		return nil, err
	}

	var out []ConflictCandidate
	for _, p := range pairs {
		sameCategory := p.Category1 == p.Category2
		bothConflictable := conflictableCategories[p.Category1] && conflictableCategories[p.Category2]
		if !sameCategory && !bothConflictable {
			continue
		}
		out = append(out, ConflictCandidate{
			ID1:        p.ID1,
			ID2:        p.ID2,
			Title1:     p.Title1,
			Title2:     p.Title2,
			Category1:  p.Category1,
			Category2:  p.Category2,
			Similarity: p.Similarity,
			Indicators: conflictIndicators(p.Content1, p.Content2),
		})
	}
	return out, nil
}

// FindFragmentation groups entries by shared title/tag keywords and reports
// every keyword reaching the minimum group size, largest group first.
func (a *Analyzer) FindFragmentation() ([]FragmentedTopic, error) {
	entries, err := a.db.All()
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]TopicEntry)
	for i := range entries {
		e := &entries[i]
		seen := make(map[string]bool)
		for _, kw := range entryKeywords(e.Title, e.Tags) {
			if seen[kw] {
				continue
			}
			seen[kw] = true
			groups[kw] = append(groups[kw], TopicEntry{ID: e.ID, Title: e.Title, Category: e.Category})
		}
	}

	var out []FragmentedTopic
	for kw, members := range groups {
		if len(members) >= a.opts.FragmentMinGroup {
			out = append(out, FragmentedTopic{Keyword: kw, Entries: members})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Entries) != len(out[j].Entries) {
			return len(out[i].Entries) > len(out[j].Entries)
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out, nil
}

// FindOrphans reports entries with no tags and/or very short content,
// newest first, each with the list of conditions that triggered.
func (a *Analyzer) FindOrphans() ([]Orphan, error) {
	entries, err := a.db.All()
	if err != nil {
		return nil, err
	}

	var out []Orphan
	for i := range entries {
		e := &entries[i]
		var reasons []string
		if len(e.Tags) == 0 {
			reasons = append(reasons, "no tags")
		}
		if n := utf8.RuneCountInString(e.Content); n < a.opts.OrphanMinContent {
			reasons = append(reasons, fmt.Sprintf("short content (%d chars)", n))
		}
		if len(reasons) > 0 {
			out = append(out, Orphan{
				ID:       e.ID,
				Title:    e.Title,
				Category: e.Category,
				Reasons:  reasons,
				Updated:  e.Updated,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Updated.After(out[j].Updated) })
	return out, nil
}

// FindObsolete reports entries whose updated timestamp is older than the
// staleness window, oldest first, annotated with their age in days.
func (a *Analyzer) FindObsolete() ([]ObsoleteEntry, error) {
	entries, err := a.db.All()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -a.opts.ObsoleteDays)

	var out []ObsoleteEntry
	for i := range entries {
		e := &entries[i]
		if !e.Updated.Before(cutoff) {
			continue
		}
		out = append(out, ObsoleteEntry{
			ID:       e.ID,
			Title:    e.Title,
			Category: e.Category,
			Updated:  e.Updated,
			AgeDays:  int(now.Sub(e.Updated).Hours() / 24),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Updated.Before(out[j].Updated) })
	return out, nil
}

// Selection picks a subset of checks. The zero value selects nothing;
// use All for the full analysis.
type Selection struct {
	Duplicates    bool
	Conflicts     bool
	Fragmentation bool
	Orphans       bool
	Obsolete      bool
}

// All selects every check.
func All() Selection {
	return Selection{
		Duplicates:    true,
		Conflicts:     true,
		Fragmentation: true,
		Orphans:       true,
		Obsolete:      true,
	}
}

// Any reports whether at least one check is selected.
func (s Selection) Any() bool {
	return s.Duplicates || s.Conflicts || s.Fragmentation || s.Orphans || s.Obsolete
}

// Run executes all five checks. When no embeddings exist the similarity
// checks are marked unavailable instead of silently returning empty; any
// other error (a dimension mismatch in particular) is fatal and propagates.
func (a *Analyzer) Run() (*Report, error) {
	return a.RunSelected(All())
}

// RunSelected executes the selected checks and leaves the rest empty.
func (a *Analyzer) RunSelected(sel Selection) (*Report, error) {
	cov, err := a.EmbeddingCoverage()
	if err != nil {
		return nil, err
	}
	r := &Report{Coverage: cov}

	if sel.Duplicates || sel.Conflicts {
		if cov.WithEmbeddings == 0 {
			r.SimilarityUnavailable = true
		} else {
			if sel.Duplicates {
				if r.Duplicates, err = a.FindDuplicates(); err != nil {
					return nil, err
				}
			}
			if sel.Conflicts {
				if r.Conflicts, err = a.FindConflicts(); err != nil {
					return nil, err
				}
			}
		}
	}

	if sel.Fragmentation {
		if r.Fragmentation, err = a.FindFragmentation(); err != nil {
			return nil, err
		}
	}
	if sel.Orphans {
		if r.Orphans, err = a.FindOrphans(); err != nil {
			return nil, err
		}
	}
	if sel.Obsolete {
		if r.Obsolete, err = a.FindObsolete(); err != nil {
			return nil, err
		}
	}
	return r, nil
}
