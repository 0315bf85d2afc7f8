package service

import (
	"context"
	"fmt"

	"deluxe_backend/internal/model"
)

type CatalogService struct {
	catalog CatalogStore
}

func NewCatalogService(catalog CatalogStore) *CatalogService {
	return &CatalogService{catalog: catalog}
}

func (s *CatalogService) Plans(ctx context.Context) ([]model.Plan, error) {
	plans, err := s.catalog.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *CatalogService) Products(ctx context.Context) ([]model.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}
