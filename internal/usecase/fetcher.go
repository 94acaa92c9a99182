package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solidation/solidation/internal/domain"
	"github.com/solidation/solidation/internal/gateway"
)

// maxConcurrentFetches bounds the parallel per-repository fetches so the
// run stays within API rate-limit tolerance.
const maxConcurrentFetches = 4

// RepoActivity is everything fetched for one resolved target.
type RepoActivity struct {
	Target     domain.ResolvedTarget
	Metadata   domain.RepoMetadata
	Recent     []domain.ActivityItem
	OpenPRs    []domain.ActivityItem
	OpenIssues []domain.ActivityItem
}

// Fetcher retrieves per-repository metadata and activity for all resolved
// targets.
type Fetcher struct {
	provider gateway.Provider
	logger   *log.Logger
}

// NewFetcher creates a new Fetcher instance.
func NewFetcher(provider gateway.Provider, logger *log.Logger) *Fetcher {
	return &Fetcher{
		provider: provider,
		logger:   logger,
	}
}

// FetchAll fetches every target concurrently, each writing to its own
// slot, and reassembles the results in target order. A target whose fetch
// fails is logged and omitted; the run continues with the rest.
func (f *Fetcher) FetchAll(ctx context.Context, targets []domain.ResolvedTarget, since time.Time) []RepoActivity {
	slots := make([]*RepoActivity, len(targets))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentFetches)
	for i, target := range targets {
		i, target := i, target
		eg.Go(func() error {
			activity, err := f.fetchOne(egCtx, target, since)
			if err != nil {
				f.logger.Printf("skipping repository %s: %v", target.Name, err)
				return nil
			}
			slots[i] = activity
			return nil
		})
	}
	// Fetch errors are soft and never propagate past this point.
	_ = eg.Wait()

	results := make([]RepoActivity, 0, len(targets))
	for _, activity := range slots {
		if activity != nil {
			results = append(results, *activity)
		}
	}
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, target domain.ResolvedTarget, since time.Time) (*RepoActivity, error) {
	metadata, err := f.provider.RepositoryMetadata(ctx, target.Name)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	recent, err := f.provider.RecentActivity(ctx, target.Name, since)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	openPRs, err := f.provider.OpenPullRequests(ctx, target.Name)
	if err != nil {
		return nil, fmt.Errorf("open pull requests: %w", err)
	}
	openIssues, err := f.provider.OpenIssues(ctx, target.Name)
	if err != nil {
		return nil, fmt.Errorf("open issues: %w", err)
	}
	metadata.OpenPRs = len(openPRs)

	recent = filterWindow(recent, since)
	if target.MemberActivityOnly {
		recent = filterMemberActivity(recent, target.Members)
	}
	return &RepoActivity{
		Target:     target,
		Metadata:   metadata,
		Recent:     recent,
		OpenPRs:    openPRs,
		OpenIssues: openIssues,
	}, nil
}

func filterWindow(items []domain.ActivityItem, since time.Time) []domain.ActivityItem {
	kept := make([]domain.ActivityItem, 0, len(items))
	for _, item := range items {
		if item.TouchedSince(since) {
			kept = append(kept, item)
		}
	}
	return kept
}

func filterMemberActivity(items []domain.ActivityItem, members domain.MemberSet) []domain.ActivityItem {
	kept := make([]domain.ActivityItem, 0, len(items))
	for _, item := range items {
		if members.Contains(item.Author) {
			kept = append(kept, item)
			continue
		}
		for _, assignee := range item.Assignees {
			if members.Contains(assignee) {
				kept = append(kept, item)
				break
			}
		}
	}
	return kept
}
