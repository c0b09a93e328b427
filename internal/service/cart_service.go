package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"
	"storefront/pkg/logger"
	"storefront/prometheus"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOutOfStock       = errors.New("product of this quantity is not in stock")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")
)

// CartView is a user's cart with computed totals
type CartView struct {
	Items      []model.CartItem `json:"cart_items"`
	ItemCount  int              `json:"item_count"`
	GrandTotal float64          `json:"grand_total"`
}

type CartService struct {
	db *gorm.DB
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// Items lists the user's cart lines with rounded line totals
func (s *CartService) Items(ctx context.Context, userID uint) (*CartView, error) {
	items := []model.CartItem{}
	err := s.db.WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).
		// Lines keep their product after it leaves the catalog.
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("cart_items.id").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load cart of user %d: %w", userID, err)
	}

	grand := decimal.Zero
	count := 0
	for i := range items {
		total := items[i].LineTotal()
		items[i].TotalPrice = total.InexactFloat64()
		grand = grand.Add(total)
		count += items[i].Quantity
	}

	return &CartView{
		Items:      items,
		ItemCount:  count,
		GrandTotal: grand.InexactFloat64(),
	}, nil
}

// AddItem puts quantity units of a product in the user's cart. Adding a
// product already in the cart raises that line's quantity. The product row
// is locked so concurrent adds cannot together exceed its stock.
func (s *CartService) AddItem(ctx context.Context, userID, productID uint, quantity int) (*model.CartItem, error) {
	log := logger.FromContext(ctx)

	if quantity < 1 {
		prometheus.RecordCartOperation("add", "invalid")
		return nil, ErrInvalidQuantity
	}

	var item model.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product model.Product
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, productID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("load product %d: %w", productID, err)
		}

		cart, err := cartFor(tx, userID)
		if err != nil {
			return err
		}

		err = tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = model.CartItem{CartID: cart.ID, ProductID: productID}
		case err != nil:
			return fmt.Errorf("load cart line: %w", err)
		}

		if item.Quantity+quantity > product.Stock {
			log.Info("Cart add exceeds stock",
				zap.Uint("product_id", productID),
				zap.Int("requested", item.Quantity+quantity),
				zap.Int("stock", product.Stock))
			return ErrOutOfStock
		}

		item.Quantity += quantity
		if err := tx.Save(&item).Error; err != nil {
			return fmt.Errorf("save cart line: %w", err)
		}
		item.Product = &product
		return nil
	})
	if err != nil {
		prometheus.RecordCartOperation("add", cartResult(err))
		return nil, err
	}

	item.TotalPrice = item.LineTotal().InexactFloat64()
	prometheus.RecordCartOperation("add", "ok")
	return &item, nil
}

// RemoveItem deletes one of the user's cart lines
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) error {
	owned := s.db.WithContext(ctx).Session(&gorm.Session{NewDB: true}).
		Model(&model.Cart{}).Select("id").Where("user_id = ?", userID)

	result := s.db.WithContext(ctx).
		Where("id = ? AND cart_id IN (?)", itemID, owned).
		Delete(&model.CartItem{})
	if result.Error != nil {
		prometheus.RecordCartOperation("delete", "error")
		return fmt.Errorf("delete cart item %d: %w", itemID, result.Error)
	}
	if result.RowsAffected == 0 {
		prometheus.RecordCartOperation("delete", "not_found")
		return ErrCartItemNotFound
	}

	prometheus.RecordCartOperation("delete", "ok")
	return nil
}

// cartFor returns the user's cart, creating it on first use
func cartFor(tx *gorm.DB, userID uint) (*model.Cart, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Cart{UserID: userID}).Error; err != nil {
		return nil, fmt.Errorf("create cart for user %d: %w", userID, err)
	}
	var cart model.Cart
	if err := tx.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, fmt.Errorf("load cart for user %d: %w", userID, err)
	}
	return &cart, nil
}

func cartResult(err error) string {
	switch {
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}
