package usecase

import (
	"log"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/solidation/solidation/internal/config"
	"github.com/solidation/solidation/internal/domain"
)

// TriagePredicate reports whether an issue has received any maintainer
// attention. Issues failing the predicate are listed as untriaged.
type TriagePredicate func(domain.ActivityItem) bool

// DefaultTriaged treats an issue as triaged once it carries a label or
// has at least one comment.
func DefaultTriaged(item domain.ActivityItem) bool {
	return len(item.Labels) > 0 || len(item.Comments) > 0
}

// Aggregator classifies fetched activity into the report buckets.
type Aggregator struct {
	logger  *log.Logger
	rng     *rand.Rand
	triaged TriagePredicate
}

// NewAggregator creates a new Aggregator instance. A nil rng selects
// system randomness for the random issue sample; passing a seeded rng
// makes the sample deterministic. A nil triaged selects DefaultTriaged.
func NewAggregator(logger *log.Logger, rng *rand.Rand, triaged TriagePredicate) *Aggregator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if triaged == nil {
		triaged = DefaultTriaged
	}
	return &Aggregator{
		logger:  logger,
		rng:     rng,
		triaged: triaged,
	}
}

// Aggregate consumes the fetched activity, the frozen member set and the
// configured thresholds, and produces the report structure.
func (a *Aggregator) Aggregate(cfg *config.Config, activities []RepoActivity, members domain.MemberSet, now time.Time) *domain.Report {
	a.logger.Println("Aggregating activity into report buckets...")
	since := now.Add(-time.Duration(cfg.RecentDays) * 24 * time.Hour)

	report := &domain.Report{
		Project:      cfg.Project,
		RecentDays:   cfg.RecentDays,
		NumOldestPRs: cfg.NumOldestPRs,
		GeneratedAt:  now,
	}

	var activeIssues, activePRs, openPRs, openIssues []domain.ActivityItem
	for _, activity := range activities {
		report.Repositories = append(report.Repositories, activity.Metadata)
		for _, item := range activity.Recent {
			if item.IsPullRequest() {
				activePRs = append(activePRs, item)
			} else {
				activeIssues = append(activeIssues, item)
			}
		}
		openPRs = append(openPRs, activity.OpenPRs...)
		openIssues = append(openIssues, activity.OpenIssues...)
	}
	activeItems := make([]domain.ActivityItem, 0, len(activeIssues)+len(activePRs))
	activeItems = append(activeItems, activeIssues...)
	activeItems = append(activeItems, activePRs...)

	report.NonMemberItems = a.nonMemberItems(activeItems, members)
	report.OpenedIssueCount = countCreatedSince(activeIssues, since)
	report.UntriagedIssues = a.untriagedIssues(activeIssues, since)
	report.OldestPRs, report.OpenPRCount = a.oldestOpenPRs(openPRs, cfg.NumOldestPRs, now)
	report.RandomIssues, report.OpenIssueCount = a.randomOpenIssues(openIssues, cfg.MaxRandomIssues, now)

	report.ActiveIssueCount = len(activeIssues)
	report.Commenters = commenterTally(activeItems, since)
	report.ParticipationPct = participationPct(len(report.Commenters), len(members))

	a.closedIssueStats(report, activeIssues, since)
	a.completedPRStats(report, activePRs, since)

	a.logger.Println("Aggregation complete.")
	return report
}

// nonMemberItems lists window-active issues and pull requests authored by
// anyone outside the member set.
func (a *Aggregator) nonMemberItems(items []domain.ActivityItem, members domain.MemberSet) []domain.ItemRef {
	var outside []domain.ActivityItem
	for _, item := range items {
		if !members.Contains(item.Author) {
			outside = append(outside, item)
		}
	}
	sortByCreation(outside)
	refs := make([]domain.ItemRef, 0, len(outside))
	for _, item := range outside {
		refs = append(refs, domain.ItemRef{
			Title:      item.Title,
			URL:        item.URL,
			Repository: item.Repository,
			Author:     displayName(item),
		})
	}
	return refs
}

// untriagedIssues lists open issues created within the window that the
// triage predicate has not admitted, without author attribution.
func (a *Aggregator) untriagedIssues(issues []domain.ActivityItem, since time.Time) []domain.ItemRef {
	var untriaged []domain.ActivityItem
	for _, issue := range issues {
		if issue.IsOpen() && !issue.CreatedAt.Before(since) && !a.triaged(issue) {
			untriaged = append(untriaged, issue)
		}
	}
	sortByCreation(untriaged)
	refs := make([]domain.ItemRef, 0, len(untriaged))
	for _, issue := range untriaged {
		refs = append(refs, domain.ItemRef{
			Title:      issue.Title,
			URL:        issue.URL,
			Repository: issue.Repository,
		})
	}
	return refs
}

// oldestOpenPRs returns the oldest currently-open non-draft pull
// requests, capped at limit, plus the total open count before the cap.
func (a *Aggregator) oldestOpenPRs(openPRs []domain.ActivityItem, limit int, now time.Time) ([]domain.ItemRef, int) {
	var nonDraft []domain.ActivityItem
	for _, pr := range openPRs {
		if !pr.Draft {
			nonDraft = append(nonDraft, pr)
		}
	}
	sortByCreation(nonDraft)
	if len(nonDraft) > limit {
		nonDraft = nonDraft[:limit]
	}
	refs := make([]domain.ItemRef, 0, len(nonDraft))
	for _, pr := range nonDraft {
		refs = append(refs, domain.ItemRef{
			Title:      pr.Title,
			URL:        pr.URL,
			Repository: pr.Repository,
			AgeDays:    wholeDays(pr.CreatedAt, now),
		})
	}
	return refs, len(openPRs)
}

// randomOpenIssues draws min(limit, len(openIssues)) issues uniformly
// without replacement, plus the total open issue count.
func (a *Aggregator) randomOpenIssues(openIssues []domain.ActivityItem, limit int, now time.Time) ([]domain.ItemRef, int) {
	n := limit
	if len(openIssues) < n {
		n = len(openIssues)
	}
	refs := make([]domain.ItemRef, 0, n)
	for _, idx := range a.rng.Perm(len(openIssues))[:n] {
		issue := openIssues[idx]
		refs = append(refs, domain.ItemRef{
			Title:      issue.Title,
			URL:        issue.URL,
			Repository: issue.Repository,
			AgeDays:    wholeDays(issue.CreatedAt, now),
		})
	}
	return refs, len(openIssues)
}

func (a *Aggregator) closedIssueStats(report *domain.Report, issues []domain.ActivityItem, since time.Time) {
	counts := make(map[string]int)
	for _, issue := range issues {
		if issue.IsOpen() || issue.ClosedAt.Before(since) {
			continue
		}
		report.ClosedIssueCount++
		report.ClosedIssueAges = append(report.ClosedIssueAges, float64(wholeDays(issue.CreatedAt, issue.ClosedAt)))
		if issue.ClosedBy != "" {
			counts[issue.ClosedBy]++
		}
	}
	sort.Float64s(report.ClosedIssueAges)
	report.ClosedIssueQuantiles = quantiles(report.ClosedIssueAges)
	report.ClosedBy = sortedTally(counts)
}

func (a *Aggregator) completedPRStats(report *domain.Report, prs []domain.ActivityItem, since time.Time) {
	proposed := make(map[string]int)
	merged := make(map[string]int)
	for _, pr := range prs {
		if pr.IsOpen() || pr.Draft || pr.ClosedAt.Before(since) {
			continue
		}
		report.CompletedPRCount++
		report.PRDurations = append(report.PRDurations, float64(wholeDays(pr.CreatedAt, pr.ClosedAt)))
		proposed[pr.Author]++
		if pr.IsMerged() && pr.MergedBy != "" {
			merged[pr.MergedBy]++
		}
	}
	sort.Float64s(report.PRDurations)
	report.PRDurationQuantiles = quantiles(report.PRDurations)
	report.ProposedBy = sortedTally(proposed)
	report.MergedBy = sortedTally(merged)
}

// commenterTally counts in-window comments per login across all items.
func commenterTally(items []domain.ActivityItem, since time.Time) []domain.Tally {
	counts := make(map[string]int)
	for _, item := range items {
		for _, comment := range item.Comments {
			if comment.CreatedAt.Before(since) {
				// does not fall into the reporting window
				continue
			}
			counts[comment.Author]++
		}
	}
	return sortedTally(counts)
}

// participationPct is the share of members who commented, as a whole
// percentage.
func participationPct(commenters, memberCount int) int {
	if memberCount == 0 {
		return 0
	}
	return int(math.Round(100 * float64(commenters) / float64(memberCount)))
}

func countCreatedSince(items []domain.ActivityItem, since time.Time) int {
	n := 0
	for _, item := range items {
		if !item.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

func displayName(item domain.ActivityItem) string {
	if item.AuthorName != "" {
		return item.AuthorName
	}
	return item.Author
}

func sortByCreation(items []domain.ActivityItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].URL < items[j].URL
	})
}

// sortedTally converts a count map into a slice sorted descending by
// count, then alphabetically by login.
func sortedTally(counts map[string]int) []domain.Tally {
	tallies := make([]domain.Tally, 0, len(counts))
	for login, count := range counts {
		tallies = append(tallies, domain.Tally{Login: login, Count: count})
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Count != tallies[j].Count {
			return tallies[i].Count > tallies[j].Count
		}
		return tallies[i].Login < tallies[j].Login
	})
	return tallies
}

func wholeDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
