package index

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"sectioner/internal/chunker"
)

// MockIndex is a mock implementation of Index using testify/mock.
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIndex) Upload(ctx context.Context, sections []chunker.Section) ([]Result, error) {
	args := m.Called(ctx, sections)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Result), args.Error(1)
}

func (m *MockIndex) Search(ctx context.Context, query string, categories []string, limit int) ([]Hit, error) {
	args := m.Called(ctx, query, categories, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Hit), args.Error(1)
}

func (m *MockIndex) CreateJob(ctx context.Context, taskType, sourceFile string) (Job, error) {
	args := m.Called(ctx, taskType, sourceFile)
	return args.Get(0).(Job), args.Error(1)
}

func (m *MockIndex) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Job), args.Error(1)
}

func (m *MockIndex) UpdateJobStatus(ctx context.Context, id uuid.UUID, status JobStatus, lastError string) error {
	args := m.Called(ctx, id, status, lastError)
	return args.Error(0)
}

func (m *MockIndex) SetJobCounts(ctx context.Context, id uuid.UUID, sections, succeeded int) error {
	args := m.Called(ctx, id, sections, succeeded)
	return args.Error(0)
}

func (m *MockIndex) Close() error {
	args := m.Called()
	return args.Error(0)
}
