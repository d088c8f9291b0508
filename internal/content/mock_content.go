package content

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of Fetcher using testify/mock.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchText(ctx context.Context, q Query) (string, error) {
	args := m.Called(ctx, q)
	return args.String(0), args.Error(1)
}
