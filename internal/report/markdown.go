// Package report renders an aggregated activity report as Markdown.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solidation/solidation/internal/domain"
)

// noneMarker is rendered for sections with no content so the report
// structure stays stable and diffable run to run.
const noneMarker = "- none\n"

// mdEscaper escapes the characters that would otherwise break the
// link syntax around item titles.
var mdEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

// Sanitize escapes Markdown-significant characters in an item title.
func Sanitize(title string) string {
	return mdEscaper.Replace(title)
}

// Render is a pure function from a report to its Markdown form: rendering
// the same report twice yields byte-identical output.
func Render(r *domain.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "#### %s Health Update\n", r.Project)

	b.WriteString("##### Covered projects (PRs/issues/stars/watchers/forks)\n")
	if len(r.Repositories) == 0 {
		b.WriteString(noneMarker)
	} else {
		entries := make([]string, 0, len(r.Repositories))
		for _, m := range r.Repositories {
			entries = append(entries, fmt.Sprintf(
				"[%s](https://github.com/%s) ([%d](https://github.com/%s/pulls)/[%d](https://github.com/%s/issues)/%d/%d/%d)",
				shortName(m.FullName), m.FullName,
				m.OpenPRs, m.FullName,
				m.OpenIssues, m.FullName,
				m.Stars, m.Watchers, m.Forks))
		}
		b.WriteString(strings.Join(entries, "; ") + "\n")
	}

	fmt.Fprintf(&b, "##### Non-%s member issues and PRs active in the last %d days\n", r.Project, r.RecentDays)
	if len(r.NonMemberItems) == 0 {
		b.WriteString(noneMarker)
	} else {
		for _, item := range r.NonMemberItems {
			fmt.Fprintf(&b, "- [%s](%s) by %s [%s]\n", Sanitize(item.Title), item.URL, item.Author, item.Repository)
		}
	}

	fmt.Fprintf(&b, "##### Issues opened in the last %d days: %d\n", r.RecentDays, r.OpenedIssueCount)

	fmt.Fprintf(&b, "##### Untriaged issues of the last %d days\n", r.RecentDays)
	if len(r.UntriagedIssues) == 0 {
		b.WriteString(noneMarker)
	} else {
		for _, item := range r.UntriagedIssues {
			fmt.Fprintf(&b, "- [%s](%s) [%s]\n", Sanitize(item.Title), item.URL, item.Repository)
		}
	}

	fmt.Fprintf(&b, "##### Max %d oldest, open, non-draft PRs (%d PRs open in total)\n", r.NumOldestPRs, r.OpenPRCount)
	if len(r.OldestPRs) == 0 {
		b.WriteString(noneMarker)
	} else {
		for _, pr := range r.OldestPRs {
			fmt.Fprintf(&b, "- [%s](%s) (%d days)\n", Sanitize(pr.Title), pr.URL, pr.AgeDays)
		}
	}

	fmt.Fprintf(&b, "##### %d random open issues to fix (of a total of %d)\n", len(r.RandomIssues), r.OpenIssueCount)
	if len(r.RandomIssues) == 0 {
		b.WriteString(noneMarker)
	} else {
		for _, issue := range r.RandomIssues {
			fmt.Fprintf(&b, "- [%s](%s) (%d days old)\n", Sanitize(issue.Title), issue.URL, issue.AgeDays)
		}
	}

	fmt.Fprintf(&b, "##### Active issues in the past %d days: %d\n", r.RecentDays, r.ActiveIssueCount)
	fmt.Fprintf(&b, "- Commenters: %s\n", tallyLine(r.Commenters))
	fmt.Fprintf(&b, "- Member participation: %d%%\n", r.ParticipationPct)

	fmt.Fprintf(&b, "##### Issues closed in the past %d days: %d\n", r.RecentDays, r.ClosedIssueCount)
	b.WriteString(quantileLine("Age", r.ClosedIssueQuantiles, r.ClosedIssueAges))
	fmt.Fprintf(&b, "- Closed by: %s\n", tallyLine(r.ClosedBy))

	fmt.Fprintf(&b, "##### PRs completed in the past %d days: %d\n", r.RecentDays, r.CompletedPRCount)
	b.WriteString(quantileLine("Duration", r.PRDurationQuantiles, r.PRDurations))
	fmt.Fprintf(&b, "- Proposed by: %s\n", tallyLine(r.ProposedBy))
	fmt.Fprintf(&b, "- Merged by: %s\n", tallyLine(r.MergedBy))

	return b.String()
}

func shortName(fullName string) string {
	if i := strings.LastIndex(fullName, "/"); i >= 0 {
		return fullName[i+1:]
	}
	return fullName
}

func tallyLine(tallies []domain.Tally) string {
	if len(tallies) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(tallies))
	for _, t := range tallies {
		parts = append(parts, fmt.Sprintf("%s (%d)", t.Login, t.Count))
	}
	return strings.Join(parts, ", ")
}

// quantileLine renders the 25/50/75 quantiles when available; with fewer
// than four samples it reports the raw values instead.
func quantileLine(label string, quantiles, values []float64) string {
	if len(quantiles) > 0 {
		return fmt.Sprintf("- %s quantiles (days): %s\n", label, joinFloats(quantiles))
	}
	if len(values) > 0 {
		return fmt.Sprintf("- %ss (days): %s\n", label, joinFloats(values))
	}
	return fmt.Sprintf("- %s quantiles (days): none\n", label)
}

func joinFloats(values []float64) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strings.Join(parts, ", ")
}
