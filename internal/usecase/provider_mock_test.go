package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/solidation/solidation/internal/domain"
)

// mockProvider is a mock implementation of the gateway.Provider interface.
// It allows us to simulate the behavior of the GitHub gateway without
// making real API calls.
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) RepositoryMetadata(ctx context.Context, fullName string) (domain.RepoMetadata, error) {
	args := m.Called(ctx, fullName)
	return args.Get(0).(domain.RepoMetadata), args.Error(1)
}

func (m *mockProvider) RecentActivity(ctx context.Context, fullName string, since time.Time) ([]domain.ActivityItem, error) {
	args := m.Called(ctx, fullName, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ActivityItem), args.Error(1)
}

func (m *mockProvider) OpenPullRequests(ctx context.Context, fullName string) ([]domain.ActivityItem, error) {
	args := m.Called(ctx, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ActivityItem), args.Error(1)
}

func (m *mockProvider) OpenIssues(ctx context.Context, fullName string) ([]domain.ActivityItem, error) {
	args := m.Called(ctx, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ActivityItem), args.Error(1)
}

func (m *mockProvider) OrganizationRepositories(ctx context.Context, org string) ([]string, error) {
	args := m.Called(ctx, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockProvider) OrganizationMembers(ctx context.Context, org string) ([]string, error) {
	args := m.Called(ctx, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
