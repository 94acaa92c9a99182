// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/solidation/solidation/internal/domain"
)

const maxRetries = 3

// Provider defines the behavior of a gateway for fetching repository and
// organization data from GitHub.
type Provider interface {
	RepositoryMetadata(ctx context.Context, fullName string) (domain.RepoMetadata, error)
	RecentActivity(ctx context.Context, fullName string, since time.Time) ([]domain.ActivityItem, error)
	OpenPullRequests(ctx context.Context, fullName string) ([]domain.ActivityItem, error)
	OpenIssues(ctx context.Context, fullName string) ([]domain.ActivityItem, error)
	OrganizationRepositories(ctx context.Context, org string) ([]string, error)
	OrganizationMembers(ctx context.Context, org string) ([]string, error)
}

// GitHubGateway is the concrete implementation of the Provider interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
	backoffBase   time.Duration
}

// actorFragment resolves an actor's login plus the display name when the
// actor is a user.
type actorFragment struct {
	Login string
	User  struct {
		Name string
	} `graphql:"... on User"`
}

type commentConnection struct {
	Nodes []struct {
		Author    actorFragment
		CreatedAt githubv4.DateTime
	}
}

type issueFragment struct {
	Number    int
	Title     string
	URL       string `graphql:"url"`
	State     string
	Author    actorFragment
	Assignees struct {
		Nodes []struct {
			Login string
		}
	} `graphql:"assignees(first: 20)"`
	Labels struct {
		Nodes []struct {
			Name string
		}
	} `graphql:"labels(first: 30)"`
	CreatedAt     githubv4.DateTime
	UpdatedAt     githubv4.DateTime
	ClosedAt      githubv4.DateTime
	Comments      commentConnection `graphql:"comments(last: 100)"`
	TimelineItems struct {
		Nodes []struct {
			ClosedEvent struct {
				Actor actorFragment
			} `graphql:"... on ClosedEvent"`
		}
	} `graphql:"timelineItems(last: 1, itemTypes: [CLOSED_EVENT])"`
	Repository struct {
		NameWithOwner string
	}
}

type pullRequestFragment struct {
	Number    int
	Title     string
	URL       string `graphql:"url"`
	State     string
	IsDraft   bool `graphql:"isDraft"`
	Author    actorFragment
	Assignees struct {
		Nodes []struct {
			Login string
		}
	} `graphql:"assignees(first: 20)"`
	Labels struct {
		Nodes []struct {
			Name string
		}
	} `graphql:"labels(first: 30)"`
	CreatedAt  githubv4.DateTime
	UpdatedAt  githubv4.DateTime
	ClosedAt   githubv4.DateTime
	MergedAt   githubv4.DateTime
	MergedBy   actorFragment
	Comments   commentConnection `graphql:"comments(last: 100)"`
	Repository struct {
		NameWithOwner string
	}
}

// activityQuery searches one repository for issues and pull requests
// touched on or after the window start.
type activityQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Nodes []struct {
			Typename    string              `graphql:"__typename"`
			Issue       issueFragment       `graphql:"... on Issue"`
			PullRequest pullRequestFragment `graphql:"... on PullRequest"`
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 50, after: $cursor)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (Provider, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
		backoffBase:   500 * time.Millisecond,
	}, nil
}

// retry runs op with exponential backoff for transient failures. Client
// errors such as 404 abort immediately.
func (g *GitHubGateway) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	if g.backoffBase > 0 {
		bo.InitialInterval = g.backoffBase
	}
	return backoff.Retry(func() error {
		if err := op(); err != nil {
			return classify(err)
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}

func classify(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		code := ghErr.Response.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
	}
	return err
}

func splitFullName(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository name %q: expected owner/name", fullName)
	}
	return owner, name, nil
}

// RepositoryMetadata fetches the summary counts for one repository. The
// open pull request count is not part of the REST payload and is filled
// in by the caller from the open pull request list.
func (g *GitHubGateway) RepositoryMetadata(ctx context.Context, fullName string) (domain.RepoMetadata, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return domain.RepoMetadata{}, err
	}
	var repo *github.Repository
	err = g.retry(ctx, func() error {
		var apiErr error
		repo, _, apiErr = g.restClient.Repositories.Get(ctx, owner, name)
		return apiErr
	})
	if err != nil {
		return domain.RepoMetadata{}, fmt.Errorf("failed to fetch repository %s: %w", fullName, err)
	}
	return domain.RepoMetadata{
		FullName:   repo.GetFullName(),
		Stars:      repo.GetStargazersCount(),
		Watchers:   repo.GetSubscribersCount(),
		Forks:      repo.GetForksCount(),
		OpenIssues: repo.GetOpenIssuesCount(),
	}, nil
}

// RecentActivity fetches all issues and pull requests of the repository
// touched on or after since, with nested comment, label and closer data.
func (g *GitHubGateway) RecentActivity(ctx context.Context, fullName string, since time.Time) ([]domain.ActivityItem, error) {
	g.logger.Printf("Fetching recent activity for %s...", fullName)
	query := fmt.Sprintf("repo:%s updated:>=%s", fullName, since.UTC().Format(time.RFC3339))
	variables := map[string]interface{}{
		"query":  githubv4.String(query),
		"cursor": (*githubv4.String)(nil),
	}

	var items []domain.ActivityItem
	for {
		var q activityQuery
		err := g.retry(ctx, func() error {
			return g.graphqlClient.Query(ctx, &q, variables)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for recent activity: %w", err)
		}
		for _, node := range q.Search.Nodes {
			switch node.Typename {
			case "Issue":
				items = append(items, issueToItem(node.Issue))
			case "PullRequest":
				items = append(items, pullRequestToItem(node.PullRequest))
			}
		}
		if !q.Search.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Search.PageInfo.EndCursor)
		g.logger.Println("  Fetching next page of recent activity...")
	}
	g.logger.Printf("Completed fetching recent activity for %s.", fullName)
	return items, nil
}

// OpenPullRequests lists all currently open pull requests of the repository.
func (g *GitHubGateway) OpenPullRequests(ctx context.Context, fullName string) ([]domain.ActivityItem, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var items []domain.ActivityItem
	for {
		var prs []*github.PullRequest
		var resp *github.Response
		err := g.retry(ctx, func() error {
			var apiErr error
			prs, resp, apiErr = g.restClient.PullRequests.List(ctx, owner, name, opts)
			return apiErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list open pull requests for %s: %w", fullName, err)
		}
		for _, pr := range prs {
			items = append(items, domain.ActivityItem{
				Kind:       domain.KindPullRequest,
				Repository: fullName,
				Number:     pr.GetNumber(),
				Title:      pr.GetTitle(),
				URL:        pr.GetHTMLURL(),
				Author:     pr.GetUser().GetLogin(),
				State:      "open",
				Draft:      pr.GetDraft(),
				CreatedAt:  pr.GetCreatedAt().Time,
				UpdatedAt:  pr.GetUpdatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Println("  Fetching next page of open pull requests...")
	}
	return items, nil
}

// OpenIssues lists all currently open issues of the repository, excluding
// pull requests.
func (g *GitHubGateway) OpenIssues(ctx context.Context, fullName string) ([]domain.ActivityItem, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var items []domain.ActivityItem
	for {
		var issues []*github.Issue
		var resp *github.Response
		err := g.retry(ctx, func() error {
			var apiErr error
			issues, resp, apiErr = g.restClient.Issues.ListByRepo(ctx, owner, name, opts)
			return apiErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list open issues for %s: %w", fullName, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			items = append(items, domain.ActivityItem{
				Kind:       domain.KindIssue,
				Repository: fullName,
				Number:     issue.GetNumber(),
				Title:      issue.GetTitle(),
				URL:        issue.GetHTMLURL(),
				Author:     issue.GetUser().GetLogin(),
				State:      "open",
				CreatedAt:  issue.GetCreatedAt().Time,
				UpdatedAt:  issue.GetUpdatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Println("  Fetching next page of open issues...")
	}
	return items, nil
}

// OrganizationRepositories lists the full names of all repositories in
// the organization.
func (g *GitHubGateway) OrganizationRepositories(ctx context.Context, org string) ([]string, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var names []string
	for {
		var repos []*github.Repository
		var resp *github.Response
		err := g.retry(ctx, func() error {
			var apiErr error
			repos, resp, apiErr = g.restClient.Repositories.ListByOrg(ctx, org, opts)
			return apiErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of organization %s: %w", org, err)
		}
		for _, repo := range repos {
			names = append(names, repo.GetFullName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// OrganizationMembers lists the logins of all members of the organization.
func (g *GitHubGateway) OrganizationMembers(ctx context.Context, org string) ([]string, error) {
	opts := &github.ListMembersOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var logins []string
	for {
		var users []*github.User
		var resp *github.Response
		err := g.retry(ctx, func() error {
			var apiErr error
			users, resp, apiErr = g.restClient.Organizations.ListMembers(ctx, org, opts)
			return apiErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list members of organization %s: %w", org, err)
		}
		for _, user := range users {
			logins = append(logins, user.GetLogin())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return logins, nil
}

func issueToItem(frag issueFragment) domain.ActivityItem {
	item := domain.ActivityItem{
		Kind:       domain.KindIssue,
		Repository: frag.Repository.NameWithOwner,
		Number:     frag.Number,
		Title:      frag.Title,
		URL:        frag.URL,
		Author:     frag.Author.Login,
		AuthorName: frag.Author.User.Name,
		State:      strings.ToLower(frag.State),
		CreatedAt:  frag.CreatedAt.Time,
		UpdatedAt:  frag.UpdatedAt.Time,
		ClosedAt:   frag.ClosedAt.Time,
	}
	for _, a := range frag.Assignees.Nodes {
		item.Assignees = append(item.Assignees, a.Login)
	}
	for _, l := range frag.Labels.Nodes {
		item.Labels = append(item.Labels, l.Name)
	}
	for _, c := range frag.Comments.Nodes {
		item.Comments = append(item.Comments, domain.Comment{
			Author:    c.Author.Login,
			CreatedAt: c.CreatedAt.Time,
		})
	}
	if len(frag.TimelineItems.Nodes) > 0 {
		item.ClosedBy = frag.TimelineItems.Nodes[0].ClosedEvent.Actor.Login
	}
	return item
}

func pullRequestToItem(frag pullRequestFragment) domain.ActivityItem {
	item := domain.ActivityItem{
		Kind:       domain.KindPullRequest,
		Repository: frag.Repository.NameWithOwner,
		Number:     frag.Number,
		Title:      frag.Title,
		URL:        frag.URL,
		Author:     frag.Author.Login,
		AuthorName: frag.Author.User.Name,
		State:      strings.ToLower(frag.State),
		Draft:      frag.IsDraft,
		CreatedAt:  frag.CreatedAt.Time,
		UpdatedAt:  frag.UpdatedAt.Time,
		ClosedAt:   frag.ClosedAt.Time,
		MergedAt:   frag.MergedAt.Time,
		MergedBy:   frag.MergedBy.Login,
	}
	for _, a := range frag.Assignees.Nodes {
		item.Assignees = append(item.Assignees, a.Login)
	}
	for _, l := range frag.Labels.Nodes {
		item.Labels = append(item.Labels, l.Name)
	}
	for _, c := range frag.Comments.Nodes {
		item.Comments = append(item.Comments, domain.Comment{
			Author:    c.Author.Login,
			CreatedAt: c.CreatedAt.Time,
		})
	}
	return item
}
