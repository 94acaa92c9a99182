package usecase

import (
	"io"
	"log"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/solidation/solidation/internal/config"
	"github.com/solidation/solidation/internal/domain"
)

func newTestAggregator(seed int64) *Aggregator {
	return NewAggregator(log.New(io.Discard, "", 0), rand.New(rand.NewSource(seed)), nil)
}

func ts(month, dayOfMonth int) time.Time {
	return time.Date(2026, time.Month(month), dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func TestAggregator_Aggregate(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	cfg := &config.Config{Project: "Demo", RecentDays: 7, NumOldestPRs: 2, MaxRandomIssues: 2}
	members := domain.NewMemberSet("alice", "bob")

	activity := RepoActivity{
		Target:   domain.ResolvedTarget{Name: "o/r", Members: members},
		Metadata: domain.RepoMetadata{FullName: "o/r", Stars: 5, Watchers: 4, Forks: 3, OpenIssues: 7, OpenPRs: 2},
		Recent: []domain.ActivityItem{
			{
				Kind: domain.KindIssue, Repository: "o/r", Title: "closed bug", URL: "u1",
				Author: "alice", State: "closed", Labels: []string{"bug"},
				CreatedAt: ts(8, 10), UpdatedAt: ts(8, 20), ClosedAt: ts(8, 20), ClosedBy: "alice",
				Comments: []domain.Comment{
					{Author: "bob", CreatedAt: ts(8, 21)},
					{Author: "eve", CreatedAt: ts(8, 10)}, // before the window
				},
			},
			{
				Kind: domain.KindIssue, Repository: "o/r", Title: "fresh report", URL: "u2",
				Author: "eve", AuthorName: "Eve Smith", State: "open",
				CreatedAt: ts(8, 19), UpdatedAt: ts(8, 19),
			},
			{
				Kind: domain.KindIssue, Repository: "o/r", Title: "labeled", URL: "u3",
				Author: "alice", State: "open", Labels: []string{"triaged"},
				CreatedAt: ts(8, 18), UpdatedAt: ts(8, 18),
			},
			{
				Kind: domain.KindPullRequest, Repository: "o/r", Title: "feature", URL: "u4",
				Author: "eve", AuthorName: "Eve Smith", State: "closed",
				CreatedAt: ts(8, 1), UpdatedAt: ts(8, 19), ClosedAt: ts(8, 19),
				MergedAt: ts(8, 19), MergedBy: "alice",
			},
			{
				Kind: domain.KindPullRequest, Repository: "o/r", Title: "abandoned draft", URL: "u5",
				Author: "alice", State: "closed", Draft: true,
				CreatedAt: ts(8, 15), UpdatedAt: ts(8, 20), ClosedAt: ts(8, 20),
			},
		},
		OpenPRs: []domain.ActivityItem{
			{Kind: domain.KindPullRequest, Title: "old draft", URL: "p1", State: "open", Draft: true, CreatedAt: ts(6, 1)},
			{Kind: domain.KindPullRequest, Title: "oldest", URL: "p2", State: "open", CreatedAt: ts(7, 1)},
			{Kind: domain.KindPullRequest, Title: "newer", URL: "p3", State: "open", CreatedAt: ts(8, 1)},
		},
		OpenIssues: []domain.ActivityItem{
			{Kind: domain.KindIssue, Title: "i1", URL: "i1", State: "open", CreatedAt: ts(5, 1)},
			{Kind: domain.KindIssue, Title: "i2", URL: "i2", State: "open", CreatedAt: ts(6, 1)},
			{Kind: domain.KindIssue, Title: "i3", URL: "i3", State: "open", CreatedAt: ts(7, 1)},
		},
	}

	report := newTestAggregator(1).Aggregate(cfg, []RepoActivity{activity}, members, now)

	assert.Equal(t, []domain.RepoMetadata{activity.Metadata}, report.Repositories)

	// Non-member items cover issues and PRs, oldest creation first, with
	// the display name when known.
	assert.Equal(t, []domain.ItemRef{
		{Title: "feature", URL: "u4", Repository: "o/r", Author: "Eve Smith"},
		{Title: "fresh report", URL: "u2", Repository: "o/r", Author: "Eve Smith"},
	}, report.NonMemberItems)

	assert.Equal(t, 2, report.OpenedIssueCount)

	assert.Equal(t, []domain.ItemRef{
		{Title: "fresh report", URL: "u2", Repository: "o/r"},
	}, report.UntriagedIssues)

	// Draft PRs are excluded and the list is capped at num_oldest_prs,
	// while the total counts every open PR.
	assert.Equal(t, 3, report.OpenPRCount)
	assert.Equal(t, []domain.ItemRef{
		{Title: "oldest", URL: "p2", AgeDays: 54},
		{Title: "newer", URL: "p3", AgeDays: 23},
	}, report.OldestPRs)

	assert.Equal(t, 3, report.OpenIssueCount)
	assert.Len(t, report.RandomIssues, 2)
	seen := map[string]bool{}
	for _, issue := range report.RandomIssues {
		assert.Contains(t, []string{"i1", "i2", "i3"}, issue.URL)
		assert.False(t, seen[issue.URL], "sample must draw without replacement")
		seen[issue.URL] = true
	}

	assert.Equal(t, 3, report.ActiveIssueCount)
	assert.Equal(t, []domain.Tally{{Login: "bob", Count: 1}}, report.Commenters)
	assert.Equal(t, 50, report.ParticipationPct)

	assert.Equal(t, 1, report.ClosedIssueCount)
	assert.Equal(t, []float64{10}, report.ClosedIssueAges)
	assert.Nil(t, report.ClosedIssueQuantiles)
	assert.Equal(t, []domain.Tally{{Login: "alice", Count: 1}}, report.ClosedBy)

	// The abandoned draft does not count as a completed PR.
	assert.Equal(t, 1, report.CompletedPRCount)
	assert.Equal(t, []float64{18}, report.PRDurations)
	assert.Equal(t, []domain.Tally{{Login: "eve", Count: 1}}, report.ProposedBy)
	assert.Equal(t, []domain.Tally{{Login: "alice", Count: 1}}, report.MergedBy)
}

func TestAggregator_EmptyRun(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	cfg := &config.Config{Project: "Demo", RecentDays: 7, NumOldestPRs: 10, MaxRandomIssues: 5}

	report := newTestAggregator(1).Aggregate(cfg, nil, domain.NewMemberSet(), now)

	assert.Empty(t, report.Repositories)
	assert.Empty(t, report.NonMemberItems)
	assert.Zero(t, report.OpenedIssueCount)
	assert.Empty(t, report.UntriagedIssues)
	assert.Zero(t, report.OpenPRCount)
	assert.Empty(t, report.OldestPRs)
	assert.Zero(t, report.OpenIssueCount)
	assert.Empty(t, report.RandomIssues)
	assert.Zero(t, report.ActiveIssueCount)
	assert.Empty(t, report.Commenters)
	assert.Zero(t, report.ParticipationPct)
	assert.Zero(t, report.ClosedIssueCount)
	assert.Zero(t, report.CompletedPRCount)
}

func TestAggregator_RandomSampleNeverExceedsOpenIssues(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	cfg := &config.Config{Project: "Demo", RecentDays: 7, NumOldestPRs: 10, MaxRandomIssues: 5}

	activity := RepoActivity{
		Metadata: domain.RepoMetadata{FullName: "o/r"},
		OpenIssues: []domain.ActivityItem{
			{Title: "only", URL: "i1", State: "open", CreatedAt: ts(8, 1)},
		},
	}

	report := newTestAggregator(1).Aggregate(cfg, []RepoActivity{activity}, domain.NewMemberSet(), now)
	assert.Len(t, report.RandomIssues, 1)
	assert.Equal(t, 1, report.OpenIssueCount)
}

func TestParticipationPct(t *testing.T) {
	assert.Equal(t, 30, participationPct(3, 10))
	assert.Equal(t, 0, participationPct(0, 10))
	assert.Equal(t, 0, participationPct(3, 0))
	assert.Equal(t, 67, participationPct(2, 3))
}

func TestSortedTally_TiesBreakAlphabetically(t *testing.T) {
	tallies := sortedTally(map[string]int{"zoe": 2, "amy": 2, "bob": 5})
	assert.Equal(t, []domain.Tally{
		{Login: "bob", Count: 5},
		{Login: "amy", Count: 2},
		{Login: "zoe", Count: 2},
	}, tallies)
}
