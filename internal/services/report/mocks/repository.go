package mocks

import (
	"context"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListAnnouncements(ctx context.Context, monthKey string) ([]*models.Announcement, error) {
	args := m.Called(ctx, monthKey)
	var out []*models.Announcement
	if v := args.Get(0); v != nil {
		out = v.([]*models.Announcement)
	}
	return out, args.Error(1)
}

func (m *MockRepository) ListTracked(ctx context.Context, status string) ([]*models.TrackedApp, error) {
	args := m.Called(ctx, status)
	var out []*models.TrackedApp
	if v := args.Get(0); v != nil {
		out = v.([]*models.TrackedApp)
	}
	return out, args.Error(1)
}
