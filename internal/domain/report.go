package domain

import "time"

// Tally is a per-login count, sorted descending by count and then
// alphabetically by login wherever it appears in a report.
type Tally struct {
	Login string
	Count int
}

// ItemRef is a rendered reference to an issue or pull request. Author is
// the display name when known, the login otherwise; it is left empty for
// sections that list items without attribution.
type ItemRef struct {
	Title      string
	URL        string
	Repository string
	Author     string
	AgeDays    int
}

// Report is the aggregated result of one run, the sole artifact handed to
// the renderer.
type Report struct {
	Project      string
	RecentDays   int
	NumOldestPRs int
	GeneratedAt  time.Time
	Repositories []RepoMetadata

	NonMemberItems   []ItemRef
	OpenedIssueCount int
	UntriagedIssues  []ItemRef

	OldestPRs   []ItemRef
	OpenPRCount int

	RandomIssues   []ItemRef
	OpenIssueCount int

	ActiveIssueCount int
	Commenters       []Tally
	ParticipationPct int

	ClosedIssueCount     int
	ClosedIssueAges      []float64
	ClosedIssueQuantiles []float64
	ClosedBy             []Tally

	CompletedPRCount    int
	PRDurations         []float64
	PRDurationQuantiles []float64
	ProposedBy          []Tally
	MergedBy            []Tally
}
