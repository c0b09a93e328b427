package catalog

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"gorm.io/gorm"
)

// ProductInput carries the writable product fields
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Stock       int
	CategoryID  uint
	TagIDs      []uint
}

// CategoryInput carries the writable category fields
type CategoryInput struct {
	Name     string
	Slug     string
	ParentID *uint
}

// CreateProduct inserts a product and links its tags
func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := s.resolveProductRefs(tx, in)
		if err != nil {
			return err
		}

		product = model.Product{
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Stock:       in.Stock,
			CategoryID:  in.CategoryID,
			Tags:        tags,
		}
		if err := tx.Create(&product).Error; err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct overwrites a product's fields and replaces its tags
func (s *Store) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("load product %d: %w", id, err)
		}

		tags, err := s.resolveProductRefs(tx, in)
		if err != nil {
			return err
		}

		product.Name = in.Name
		product.Description = in.Description
		product.Price = in.Price
		product.Stock = in.Stock
		product.CategoryID = in.CategoryID
		if err := tx.Save(&product).Error; err != nil {
			return fmt.Errorf("update product %d: %w", id, err)
		}
		if err := tx.Model(&product).Association("Tags").Replace(tags); err != nil {
			return fmt.Errorf("replace tags of product %d: %w", id, err)
		}
		product.Tags = tags
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct soft-deletes a product
func (s *Store) DeleteProduct(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Product{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete product %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) resolveProductRefs(tx *gorm.DB, in ProductInput) ([]model.ProductTag, error) {
	var count int64
	if err := tx.Model(&model.Category{}).Where("id = ?", in.CategoryID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check category %d: %w", in.CategoryID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("category %d: %w", in.CategoryID, ErrNotFound)
	}

	tags := []model.ProductTag{}
	if len(in.TagIDs) == 0 {
		return tags, nil
	}
	if err := tx.Where("id IN ?", in.TagIDs).Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	if len(tags) != len(uniqueIDs(in.TagIDs)) {
		return nil, fmt.Errorf("tags %v: %w", in.TagIDs, ErrNotFound)
	}
	return tags, nil
}

// CreateCategory inserts a category under an optional parent
func (s *Store) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	var category model.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCategoryWrite(tx, 0, in); err != nil {
			return err
		}
		category = model.Category{Name: in.Name, Slug: in.Slug, ParentID: in.ParentID}
		if err := tx.Create(&category).Error; err != nil {
			return fmt.Errorf("create category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// UpdateCategory renames, re-slugs or re-parents a category. Moving a
// category below itself or one of its descendants is a conflict.
func (s *Store) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*model.Category, error) {
	var category model.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("category %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("load category %d: %w", id, err)
		}
		if err := checkCategoryWrite(tx, id, in); err != nil {
			return err
		}

		if in.ParentID != nil {
			var all []model.Category
			if err := tx.Find(&all).Error; err != nil {
				return fmt.Errorf("load categories: %w", err)
			}
			for _, d := range NewTree(all).Descendants(id, true) {
				if d == *in.ParentID {
					return fmt.Errorf("category %d cannot move below %d: %w", id, *in.ParentID, ErrConflict)
				}
			}
		}

		category.Name = in.Name
		category.Slug = in.Slug
		category.ParentID = in.ParentID
		if err := tx.Save(&category).Error; err != nil {
			return fmt.Errorf("update category %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory removes a category that has no products and no children
func (s *Store) DeleteCategory(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category model.Category
		if err := tx.First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("category %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("load category %d: %w", id, err)
		}

		var products int64
		if err := tx.Model(&model.Product{}).Where("category_id = ?", id).Count(&products).Error; err != nil {
			return fmt.Errorf("count products of category %d: %w", id, err)
		}
		if products > 0 {
			return fmt.Errorf("category %d is used by %d products: %w", id, products, ErrConflict)
		}

		var children int64
		if err := tx.Model(&model.Category{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
			return fmt.Errorf("count children of category %d: %w", id, err)
		}
		if children > 0 {
			return fmt.Errorf("category %d has %d subcategories: %w", id, children, ErrConflict)
		}

		if err := tx.Delete(&category).Error; err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
		return nil
	})
}

// CreateTag inserts a tag with a unique name
func (s *Store) CreateTag(ctx context.Context, name string) (*model.ProductTag, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&model.ProductTag{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check tag %q: %w", name, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("tag %q already exists: %w", name, ErrConflict)
	}

	tag := model.ProductTag{Name: name}
	if err := db.Create(&tag).Error; err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return &tag, nil
}

func checkCategoryWrite(tx *gorm.DB, id uint, in CategoryInput) error {
	var count int64
	if err := tx.Model(&model.Category{}).Where("slug = ? AND id <> ?", in.Slug, id).Count(&count).Error; err != nil {
		return fmt.Errorf("check slug %q: %w", in.Slug, err)
	}
	if count > 0 {
		return fmt.Errorf("slug %q already in use: %w", in.Slug, ErrConflict)
	}

	if in.ParentID != nil {
		if err := tx.Model(&model.Category{}).Where("id = ?", *in.ParentID).Count(&count).Error; err != nil {
			return fmt.Errorf("check parent %d: %w", *in.ParentID, err)
		}
		if count == 0 {
			return fmt.Errorf("parent category %d: %w", *in.ParentID, ErrNotFound)
		}
	}
	return nil
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	out := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
