package mocks

import (
	"context"

	"github.com/BearBump/AppWatch/internal/services/lifecycle"
	"github.com/stretchr/testify/mock"
)

type MockSubscriber struct {
	mock.Mock
}

func (m *MockSubscriber) Subscribe(ctx context.Context, req lifecycle.SubscribeRequest) (lifecycle.SubscribeResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(lifecycle.SubscribeResult), args.Error(1)
}
