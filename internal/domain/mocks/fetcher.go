package mocks

import (
	"context"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPageFetcher struct {
	mock.Mock
}

var _ domain.PageFetcher = (*MockPageFetcher)(nil)

func (m *MockPageFetcher) FetchPage(ctx context.Context, filter domain.Filter, page, pageSize int) ([]domain.Product, error) {
	args := m.Called(ctx, filter, page, pageSize)
	var products []domain.Product
	if args.Get(0) != nil {
		products = args.Get(0).([]domain.Product)
	}
	return products, args.Error(1)
}
