package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docfields/internal/domain"
)

// MockResultSink is a mock implementation of port.ResultSink.
type MockResultSink struct {
	mock.Mock
}

func (m *MockResultSink) Write(ctx context.Context, result *domain.StructuredResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}
