package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"fileshare/internal/model"
	"fileshare/internal/repository"
)

type MockFileRepository struct {
	mock.Mock
}

func (m *MockFileRepository) Create(ctx context.Context, f *model.File) (*model.File, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileRepository) FindByID(ctx context.Context, id string) (*model.File, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileRepository) FindByOwner(ctx context.Context, ownerID string) ([]model.File, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.File), args.Error(1)
}

func (m *MockFileRepository) Update(ctx context.Context, id string, expectedUpdatedAt time.Time, patch repository.FilePatch) (*model.File, error) {
	args := m.Called(ctx, id, expectedUpdatedAt, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileRepository) Delete(ctx context.Context, id, ownerID string) error {
	args := m.Called(ctx, id, ownerID)
	return args.Error(0)
}

func (m *MockFileRepository) IncrementView(ctx context.Context, id, country, subRegion string) error {
	args := m.Called(ctx, id, country, subRegion)
	return args.Error(0)
}
