package mocks

import (
	"context"

	"github.com/BearBump/AppWatch/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) CheckAll(ctx context.Context, id models.Identity, regions []string) models.CheckResult {
	args := m.Called(ctx, id, regions)
	return args.Get(0).(models.CheckResult)
}
