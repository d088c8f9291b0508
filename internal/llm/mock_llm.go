package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Answer(ctx context.Context, question, sections string) (string, float32, error) {
	args := m.Called(ctx, question, sections)
	return args.String(0), float32(args.Get(1).(float64)), args.Error(2)
}
