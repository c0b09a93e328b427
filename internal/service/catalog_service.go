package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/cache"
	"storefront/internal/catalog"
	"storefront/internal/model"
	"storefront/pkg/logger"
	"storefront/prometheus"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache kinds, one per memoized view
const (
	KindCategoryProducts = "category_products"
	KindProducts         = "products"
	KindCategories       = "categories"
	KindTags             = "tags"
)

// ShopPage is everything the shop listing shows
type ShopPage struct {
	*catalog.ProductPage
	Categories  []catalog.CategoryCount `json:"categories"`
	ProductTags []model.ProductTag      `json:"product_tags"`
}

// ProductDetail is a product with its reviews
type ProductDetail struct {
	Product  *model.Product        `json:"product"`
	Reviews  []model.ProductReview `json:"reviews"`
	Quantity int                   `json:"quantity"`
}

type CatalogService struct {
	store    *catalog.Store
	cache    cache.Cache
	sfg      singleflight.Group // collapses concurrent misses for one key
	pageSize int
}

// NewCatalogService builds the catalog service. A nil cache disables caching.
func NewCatalogService(store *catalog.Store, c cache.Cache, pageSize int) *CatalogService {
	return &CatalogService{
		store:    store,
		cache:    c,
		pageSize: pageSize,
	}
}

// Shop returns the filtered product page with the category listing and
// tags. Each part is cached on its own.
func (s *CatalogService) Shop(ctx context.Context, f catalog.Filter) (*ShopPage, error) {
	gen, useCache := s.generation(ctx)

	categories, err := cached(ctx, s, useCache, gen, KindCategories, "slug="+f.Slug, func(ctx context.Context) ([]catalog.CategoryCount, error) {
		return s.loadCategories(ctx, f.Slug)
	})
	if err != nil {
		return nil, err
	}

	kind := KindProducts
	if f.IsZero() {
		kind = KindCategoryProducts
	}
	page, err := cached(ctx, s, useCache, gen, kind, f.Canonical(), func(ctx context.Context) (*catalog.ProductPage, error) {
		return s.loadProducts(ctx, f)
	})
	if err != nil {
		return nil, err
	}

	tags, err := cached(ctx, s, useCache, gen, KindTags, "", s.store.Tags)
	if err != nil {
		return nil, err
	}

	return &ShopPage{
		ProductPage: page,
		Categories:  categories,
		ProductTags: tags,
	}, nil
}

func (s *CatalogService) loadCategories(ctx context.Context, slug string) ([]catalog.CategoryCount, error) {
	tree, err := s.store.Tree(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.DirectCounts(ctx)
	if err != nil {
		return nil, err
	}
	listing, ok := tree.Listing(slug, counts)
	if !ok {
		return nil, fmt.Errorf("category %q: %w", slug, catalog.ErrNotFound)
	}
	return listing, nil
}

func (s *CatalogService) loadProducts(ctx context.Context, f catalog.Filter) (*catalog.ProductPage, error) {
	var categoryIDs []uint
	if f.Slug != "" {
		tree, err := s.store.Tree(ctx)
		if err != nil {
			return nil, err
		}
		c, ok := tree.BySlug(f.Slug)
		if !ok {
			return nil, fmt.Errorf("category %q: %w", f.Slug, catalog.ErrNotFound)
		}
		categoryIDs = tree.Descendants(c.ID, true)
	}
	return s.store.Products(ctx, f, categoryIDs, s.pageSize)
}

// Product returns a product with its reviews and the default order quantity
func (s *CatalogService) Product(ctx context.Context, id uint) (*ProductDetail, error) {
	product, err := s.store.Product(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, err := s.store.ProductReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProductDetail{Product: product, Reviews: reviews, Quantity: 1}, nil
}

// AddReview stores a product review by userID
func (s *CatalogService) AddReview(ctx context.Context, userID, productID uint, text string) (*model.ProductReview, error) {
	review := &model.ProductReview{ProductID: productID, UserID: userID, Text: text}
	if err := s.store.AddProductReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// ShopReviews lists reviews of the shop
func (s *CatalogService) ShopReviews(ctx context.Context) ([]model.ShopReview, error) {
	return s.store.ShopReviews(ctx)
}

// Invalidate advances the cache generation after a catalog write. Entries
// of older generations are never read again and expire on their own.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		logger.FromContext(ctx).Warn("cache invalidation failed, entries stay until TTL", zap.Error(err))
	}
}

func (s *CatalogService) generation(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("cache unavailable, reading from database", zap.Error(err))
		return 0, false
	}
	return gen, true
}

func cached[T any](ctx context.Context, s *CatalogService, useCache bool, gen int64, kind, canonical string, load func(context.Context) (T, error)) (T, error) {
	if !useCache {
		return load(ctx)
	}

	log := logger.FromContext(ctx)
	key := cache.Key(gen, kind, canonical)

	var hit T
	err := s.cache.Get(ctx, key, &hit)
	if err == nil {
		prometheus.RecordCacheLookup(kind, true)
		return hit, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn("cache get error", zap.String("key", key), zap.Error(err))
	}
	prometheus.RecordCacheLookup(kind, false)

	// The load is shared by every caller waiting on key, so it must not end
	// when the first caller goes away.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		value, err := load(shared)
		if err != nil {
			return nil, err
		}
		if errSet := s.cache.Set(shared, key, value); errSet != nil {
			log.Warn("cache set error", zap.String("key", key), zap.Error(errSet))
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
