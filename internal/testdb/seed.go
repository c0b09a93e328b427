package testdb

import (
	"testing"

	"storefront/internal/model"

	"gorm.io/gorm"
)

// Catalog is the fixture written by Seed.
//
//	fruit (apple 3, fresh)
//	├── citrus (orange 2 fresh, lemon 2, lime 4, grapefruit 6)
//	└── berries (strawberry 5 sale, blueberry 7)
//	vegetables (carrot 1)
type Catalog struct {
	Fruit, Citrus, Berries, Vegetables model.Category
	Fresh, Sale                        model.ProductTag
	Products                           map[string]model.Product
	Customer, Staff                    model.User
}

// Seed writes the fixture catalog and two users into db
func Seed(t *testing.T, db *gorm.DB) *Catalog {
	t.Helper()

	c := &Catalog{Products: map[string]model.Product{}}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	c.Fruit = model.Category{Name: "Fruit", Slug: "fruit"}
	must(db.Create(&c.Fruit).Error)
	c.Citrus = model.Category{Name: "Citrus", Slug: "citrus", ParentID: &c.Fruit.ID}
	must(db.Create(&c.Citrus).Error)
	c.Berries = model.Category{Name: "Berries", Slug: "berries", ParentID: &c.Fruit.ID}
	must(db.Create(&c.Berries).Error)
	c.Vegetables = model.Category{Name: "Vegetables", Slug: "vegetables"}
	must(db.Create(&c.Vegetables).Error)

	c.Fresh = model.ProductTag{Name: "fresh"}
	must(db.Create(&c.Fresh).Error)
	c.Sale = model.ProductTag{Name: "sale"}
	must(db.Create(&c.Sale).Error)

	products := []model.Product{
		{Name: "Apple", Price: 3, Stock: 10, CategoryID: c.Fruit.ID, Tags: []model.ProductTag{c.Fresh}},
		{Name: "Orange", Price: 2, Stock: 5, CategoryID: c.Citrus.ID, Tags: []model.ProductTag{c.Fresh}},
		{Name: "Lemon", Price: 2, Stock: 5, CategoryID: c.Citrus.ID},
		{Name: "Strawberry", Price: 5, Stock: 2, CategoryID: c.Berries.ID, Tags: []model.ProductTag{c.Sale}},
		{Name: "Carrot", Price: 1, Stock: 50, CategoryID: c.Vegetables.ID},
		{Name: "Blueberry", Price: 7, Stock: 0, CategoryID: c.Berries.ID},
		{Name: "Lime", Price: 4, Stock: 8, CategoryID: c.Citrus.ID},
		{Name: "Grapefruit", Price: 6, Stock: 3, CategoryID: c.Citrus.ID},
	}
	for i := range products {
		must(db.Create(&products[i]).Error)
		c.Products[products[i].Name] = products[i]
	}

	c.Customer = model.User{Email: "customer@example.com", Password: "x", Name: "Casey"}
	must(db.Create(&c.Customer).Error)
	c.Staff = model.User{Email: "staff@example.com", Password: "x", Name: "Sam", IsStaff: true}
	must(db.Create(&c.Staff).Error)

	return c
}

// IDs returns the ids of the named fixture products in the given order
func (c *Catalog) IDs(names ...string) []uint {
	ids := make([]uint, 0, len(names))
	for _, n := range names {
		ids = append(ids, c.Products[n].ID)
	}
	return ids
}
