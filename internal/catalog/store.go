package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/prometheus"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a product, category or tag does not exist
	ErrNotFound = errors.New("not found")
	// ErrPageOutOfRange is returned for a page past the last one
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrConflict is returned when a write would break a catalog constraint
	ErrConflict = errors.New("conflict")
)

// ProductPage is one page of a filtered product listing
type ProductPage struct {
	Products   []model.Product `json:"products"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"total_pages"`
}

// Store reads and writes catalog records
type Store struct {
	db *gorm.DB
}

// NewStore creates a catalog store on db
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Categories loads every category
func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	defer prometheus.TrackDBOperation("categories")(time.Now())

	var categories []model.Category
	if err := s.db.WithContext(ctx).Order("id").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return categories, nil
}

// Tree loads the category hierarchy
func (s *Store) Tree(ctx context.Context) (*Tree, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return NewTree(categories), nil
}

// DirectCounts returns the number of live products per category id
func (s *Store) DirectCounts(ctx context.Context) (map[uint]int64, error) {
	defer prometheus.TrackDBOperation("category_counts")(time.Now())

	var rows []struct {
		CategoryID uint
		Count      int64
	}
	err := s.db.WithContext(ctx).Model(&model.Product{}).
		Select("category_id, COUNT(*) AS count").
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count products per category: %w", err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.CategoryID] = r.Count
	}
	return counts, nil
}

// Tags loads every product tag ordered by name
func (s *Store) Tags(ctx context.Context) ([]model.ProductTag, error) {
	defer prometheus.TrackDBOperation("tags")(time.Now())

	var tags []model.ProductTag
	if err := s.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	return tags, nil
}

// Products returns one page of products matching f. A nil categoryIDs
// means every category.
func (s *Store) Products(ctx context.Context, f Filter, categoryIDs []uint, pageSize int) (*ProductPage, error) {
	defer prometheus.TrackDBOperation("products")(time.Now())

	var total int64
	err := s.db.WithContext(ctx).Model(&model.Product{}).
		Scopes(f.Scope(categoryIDs)).
		Count(&total).Error
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if f.Page > 1 && f.Page > totalPages {
		return nil, fmt.Errorf("page %d of %d: %w", f.Page, totalPages, ErrPageOutOfRange)
	}

	products := []model.Product{}
	err = s.db.WithContext(ctx).
		Scopes(f.Scope(categoryIDs), f.Order).
		Preload("Category").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("product_tags.name") }).
		Limit(pageSize).
		Offset((f.Page - 1) * pageSize).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return &ProductPage{
		Products:   products,
		Page:       f.Page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Product loads a product with its category and tags
func (s *Store) Product(ctx context.Context, id uint) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product")(time.Now())

	var product model.Product
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Tags").
		First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	return &product, nil
}

// ProductReviews lists a product's reviews, newest first, with authors
func (s *Store) ProductReviews(ctx context.Context, productID uint) ([]model.ProductReview, error) {
	reviews := []model.ProductReview{}
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ?", productID).
		Order("created_at DESC").Order("id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("load reviews for product %d: %w", productID, err)
	}
	return reviews, nil
}

// AddProductReview stores a review for an existing product
func (s *Store) AddProductReview(ctx context.Context, review *model.ProductReview) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", review.ProductID).Count(&count).Error; err != nil {
		return fmt.Errorf("check product %d: %w", review.ProductID, err)
	}
	if count == 0 {
		return fmt.Errorf("product %d: %w", review.ProductID, ErrNotFound)
	}
	if err := s.db.WithContext(ctx).Create(review).Error; err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// ShopReviews lists reviews of the shop, newest first, with authors
func (s *Store) ShopReviews(ctx context.Context) ([]model.ShopReview, error) {
	reviews := []model.ShopReview{}
	err := s.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").Order("id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("load shop reviews: %w", err)
	}
	return reviews, nil
}
