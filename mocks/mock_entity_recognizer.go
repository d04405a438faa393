package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docfields/internal/port"
)

// MockEntityRecognizer is a mock implementation of port.EntityRecognizer.
type MockEntityRecognizer struct {
	mock.Mock
}

func (m *MockEntityRecognizer) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEntityRecognizer) Recognize(ctx context.Context, text string) ([]port.Entity, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.Entity), args.Error(1)
}
