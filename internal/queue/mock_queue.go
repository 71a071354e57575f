// Package queue holds the stub queue adapters and a testify mock of crawler.Queue.
package queue

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockQueue is a mock implementation of crawler.Queue for testing.
type MockQueue struct {
	mock.Mock
}

// Enqueue is the mock implementation of the Enqueue method.
func (m *MockQueue) Enqueue(ctx context.Context, body []byte) error {
	args := m.Called(ctx, body)
	return args.Error(0) //nolint:wrapcheck
}
