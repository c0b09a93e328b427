package service

import (
	"context"

	"storefront/internal/catalog"
	"storefront/internal/model"
	"storefront/prometheus"
)

// Catalog writes go through the service so cached views are invalidated.

func (s *CatalogService) CreateProduct(ctx context.Context, in catalog.ProductInput) (*model.Product, error) {
	p, err := s.store.CreateProduct(ctx, in)
	if err != nil {
		return nil, err
	}
	s.written(ctx, "product", "create")
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, in catalog.ProductInput) (*model.Product, error) {
	p, err := s.store.UpdateProduct(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.written(ctx, "product", "update")
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.written(ctx, "product", "delete")
	return nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, in catalog.CategoryInput) (*model.Category, error) {
	c, err := s.store.CreateCategory(ctx, in)
	if err != nil {
		return nil, err
	}
	s.written(ctx, "category", "create")
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, in catalog.CategoryInput) (*model.Category, error) {
	c, err := s.store.UpdateCategory(ctx, id, in)
	if err != nil {
		return nil, err
	}
	s.written(ctx, "category", "update")
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.written(ctx, "category", "delete")
	return nil
}

func (s *CatalogService) CreateTag(ctx context.Context, name string) (*model.ProductTag, error) {
	t, err := s.store.CreateTag(ctx, name)
	if err != nil {
		return nil, err
	}
	s.written(ctx, "tag", "create")
	return t, nil
}

func (s *CatalogService) written(ctx context.Context, entity, operation string) {
	prometheus.RecordCatalogOperation(entity, operation)
	s.Invalidate(ctx)
}
