// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// ItemKind distinguishes issues from pull requests in a single activity stream.
type ItemKind string

const (
	KindIssue       ItemKind = "issue"
	KindPullRequest ItemKind = "pull_request"
)

// RepositorySpec is a normalized repository entry from the configuration:
// an "owner/name" identifier plus the member-activity-only flag.
type RepositorySpec struct {
	Name               string
	MemberActivityOnly bool
}

// ResolvedTarget is the final fetch unit for one repository. The Members
// set is shared across all targets and frozen before fetching begins.
type ResolvedTarget struct {
	Name               string
	MemberActivityOnly bool
	Members            MemberSet
}

// MemberSet is a set of GitHub logins considered project members.
type MemberSet map[string]struct{}

// NewMemberSet builds a member set from the given logins.
func NewMemberSet(logins ...string) MemberSet {
	m := make(MemberSet, len(logins))
	for _, l := range logins {
		m.Add(l)
	}
	return m
}

// Add inserts a login into the set.
func (m MemberSet) Add(login string) {
	m[login] = struct{}{}
}

// Contains reports whether the login is a member.
func (m MemberSet) Contains(login string) bool {
	_, ok := m[login]
	return ok
}

// Comment is a single issue or pull request comment.
type Comment struct {
	Author    string
	CreatedAt time.Time
}

// ActivityItem is a fetched issue or pull request. Instances live only
// within a single run.
type ActivityItem struct {
	Kind       ItemKind
	Repository string
	Number     int
	Title      string
	URL        string
	Author     string
	AuthorName string
	Assignees  []string
	Labels     []string
	State      string
	Draft      bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   time.Time
	MergedAt   time.Time
	MergedBy   string
	ClosedBy   string
	Comments   []Comment
}

// IsPullRequest reports whether the item is a pull request.
func (i ActivityItem) IsPullRequest() bool {
	return i.Kind == KindPullRequest
}

// IsOpen reports whether the item is currently open.
func (i ActivityItem) IsOpen() bool {
	return i.State == "open"
}

// IsMerged reports whether the item is a merged pull request.
func (i ActivityItem) IsMerged() bool {
	return i.IsPullRequest() && !i.MergedAt.IsZero()
}

// TouchedSince reports whether the item was created, updated or closed on
// or after the given window start.
func (i ActivityItem) TouchedSince(since time.Time) bool {
	if !i.CreatedAt.Before(since) || !i.UpdatedAt.Before(since) {
		return true
	}
	return !i.ClosedAt.IsZero() && !i.ClosedAt.Before(since)
}

// RepoMetadata holds the per-repository summary counts shown in the
// covered-projects line of the report.
type RepoMetadata struct {
	FullName   string
	Stars      int
	Watchers   int
	Forks      int
	OpenIssues int
	OpenPRs    int
}
