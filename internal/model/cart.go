package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart groups the products a user intends to buy
type Cart struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	UserID    uint       `json:"user_id" gorm:"uniqueIndex;not null"`
	Items     []CartItem `json:"items,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is one product line in a cart
type CartItem struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CartID    uint      `json:"cart_id" gorm:"index;not null"`
	ProductID uint      `json:"product_id" gorm:"index;not null"`
	Product   *Product  `json:"product,omitempty"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TotalPrice float64 `json:"total_price" gorm:"-"`
}

// LineTotal returns quantity × unit price rounded to a whole amount,
// half away from zero. The product must be loaded.
func (i *CartItem) LineTotal() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	return LineTotal(i.Quantity, i.Product.Price)
}

// LineTotal returns round(quantity × price).
func LineTotal(quantity int, price float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity))).Round(0)
}
