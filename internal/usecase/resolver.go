// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"log"
	"sort"

	"github.com/solidation/solidation/internal/config"
	"github.com/solidation/solidation/internal/domain"
	"github.com/solidation/solidation/internal/gateway"
)

// Resolver expands the configured repositories and organizations into the
// concrete fetch plan and the frozen member set.
type Resolver struct {
	provider gateway.Provider
	logger   *log.Logger
}

// NewResolver creates a new Resolver instance.
func NewResolver(provider gateway.Provider, logger *log.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		logger:   logger,
	}
}

// Resolve produces one ResolvedTarget per repository and the member set
// shared by all of them. Explicitly configured repositories come first in
// config order, followed by organization repositories in declaration
// order and alphabetically within each organization. When a repository
// appears both explicitly and via an organization, the explicit
// member_activity_only value wins. An organization whose data cannot be
// fetched is logged and skipped; the run continues.
func (r *Resolver) Resolve(ctx context.Context, cfg *config.Config) ([]domain.ResolvedTarget, domain.MemberSet, error) {
	members := domain.NewMemberSet(cfg.Members...)

	targets := make([]domain.ResolvedTarget, 0, len(cfg.Repositories))
	seen := make(map[string]struct{})
	for _, spec := range cfg.Repositories {
		if _, ok := seen[spec.Name]; ok {
			continue
		}
		seen[spec.Name] = struct{}{}
		targets = append(targets, domain.ResolvedTarget{
			Name:               spec.Name,
			MemberActivityOnly: spec.MemberActivityOnly,
		})
	}

	for _, org := range cfg.Organizations {
		admits, err := org.FetchMembers.Matcher()
		if err != nil {
			// Validation catches this before any run; reaching it here is
			// still a configuration error and aborts.
			return nil, nil, err
		}

		repos, err := r.provider.OrganizationRepositories(ctx, org.Name)
		if err != nil {
			r.logger.Printf("skipping repositories of organization %s: %v", org.Name, err)
		} else {
			sort.Strings(repos)
			for _, name := range repos {
				if _, ok := seen[name]; ok {
					continue
				}
				seen[name] = struct{}{}
				targets = append(targets, domain.ResolvedTarget{
					Name:               name,
					MemberActivityOnly: org.MemberActivityOnly,
				})
			}
		}

		if org.FetchMembers.Mode == config.FetchNone {
			continue
		}
		logins, err := r.provider.OrganizationMembers(ctx, org.Name)
		if err != nil {
			r.logger.Printf("skipping members of organization %s: %v", org.Name, err)
			continue
		}
		for _, login := range logins {
			if admits(login) {
				members.Add(login)
			}
		}
	}

	// The member set is frozen from here on; every target shares it.
	for i := range targets {
		targets[i].Members = members
	}
	return targets, members, nil
}
