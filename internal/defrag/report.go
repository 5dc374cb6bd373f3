package defrag

import "time"

// DuplicatePair is a pair of entries whose embeddings are so close the two
// are likely the same knowledge written twice.
type DuplicatePair struct {
	ID1        string  `json:"id1"`
	ID2        string  `json:"id2"`
	Title1     string  `json:"title1"`
	Title2     string  `json:"title2"`
	Similarity float64 `json:"similarity"`
}

// ConflictCandidate is a related-but-not-duplicate pair worth a human
// review. Indicators list antonym phrase pairs found across the two
// contents; they annotate the pair, they never suppress it.
type ConflictCandidate struct {
	ID1        string   `json:"id1"`
	ID2        string   `json:"id2"`
	Title1     string   `json:"title1"`
	Title2     string   `json:"title2"`
	Category1  string   `json:"category1"`
	Category2  string   `json:"category2"`
	Similarity float64  `json:"similarity"`
	Indicators []string `json:"conflict_indicators,omitempty"`
}

// TopicEntry identifies one entry inside a fragmented topic group.
type TopicEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// FragmentedTopic is a keyword shared by enough entries that they should
// arguably be consolidated.
type FragmentedTopic struct {
	Keyword string       `json:"keyword"`
	Entries []TopicEntry `json:"entries"`
}

// Orphan is an entry flagged for missing tags and/or very short content.
type Orphan struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
	Reasons  []string  `json:"reasons"`
	Updated  time.Time `json:"updated"`
}

// ObsoleteEntry is an entry not updated within the staleness window.
type ObsoleteEntry struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
	Updated  time.Time `json:"updated"`
	AgeDays  int       `json:"days_old"`
}

// Coverage reports how many entries carry an embedding. Zero coverage makes
// the similarity checks unavailable, which is distinct from them finding
// nothing.
type Coverage struct {
	WithEmbeddings int `json:"with_embeddings"`
	Total          int `json:"total"`
}

// Full returns true when every entry has an embedding.
func (c Coverage) Full() bool { return c.WithEmbeddings == c.Total }

// Report is the combined output of a full analysis run.
type Report struct {
	Coverage              Coverage            `json:"coverage"`
	SimilarityUnavailable bool                `json:"similarity_unavailable"`
	Duplicates            []DuplicatePair     `json:"duplicates"`
	Conflicts             []ConflictCandidate `json:"conflicts"`
	Fragmentation         []FragmentedTopic   `json:"fragmentation"`
	Orphans               []Orphan            `json:"orphans"`
	Obsolete              []ObsoleteEntry     `json:"obsolete"`
}

// TotalIssues counts every finding across all checks. Zero is a valid,
// reportable outcome: the knowledge base is well organized.
func (r *Report) TotalIssues() int {
	return len(r.Duplicates) + len(r.Conflicts) + len(r.Fragmentation) +
		len(r.Orphans) + len(r.Obsolete)
}
