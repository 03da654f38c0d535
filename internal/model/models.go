// Package model defines shared data structures for the collector service.
package model

import "time"

// Source is one agency's listing page plus the keywords used to find
// candidate links on it. The full set of sources is the crawl plan,
// immutable for the duration of a run.
type Source struct {
	URL      string   `yaml:"url"`
	Agency   string   `yaml:"agency"`
	Keywords []string `yaml:"keywords"`
}

// CandidateLink is a link discovered on a listing page, not yet confirmed
// as a PDF or as a genuine call. It lives only within one source's pass.
type CandidateLink struct {
	URL   string
	Label string
}

// ExtractedDocument is the in-memory result of fetching and extracting one
// candidate. Dropped when extraction fails or yields no text.
type ExtractedDocument struct {
	URL       string
	Text      string
	PagesUsed int
}

// CallRecord mirrors a calls table row. Deadline and PublishedAt keep the
// literal text found in the document, never a normalized timestamp.
type CallRecord struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Agency      string    `json:"agency"`
	Deadline    string    `json:"deadline,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Link        string    `json:"link"`
	SourceLabel string    `json:"source"`
	PublishedAt string    `json:"publishedAt,omitempty"`
	Fingerprint string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Progress is one event of a collection run: one per source about to be
// processed, then a terminal event with Done set and the new-record count.
type Progress struct {
	Current int
	Total   int
	Done    bool
	New     int
}
