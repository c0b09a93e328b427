package catalog

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/gorilla/schema"
	"gorm.io/gorm"
)

// SortByPrice is the fruitlist value that orders products by ascending price
const SortByPrice = "2"

// ErrInvalidFilter is returned for query strings that cannot be applied
var ErrInvalidFilter = errors.New("invalid filter")

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// Filter holds the shop listing parameters.
//
//	q          case-insensitive search in product names
//	t          tag id or tag name
//	p          maximum price
//	fruitlist  "2" sorts by ascending price
//	page       1-based page number
type Filter struct {
	Search   string  `schema:"q"`
	Tag      string  `schema:"t"`
	MaxPrice float64 `schema:"p"`
	Sort     string  `schema:"fruitlist"`
	Page     int     `schema:"page" default:"1"`

	// Slug comes from the path, not the query string.
	Slug string `schema:"-"`

	hasMaxPrice bool
}

// ParseFilter decodes the listing query string. A missing price means no
// price limit; a malformed or negative one is an error.
func ParseFilter(values url.Values, slug string) (Filter, error) {
	var f Filter
	if err := defaults.Set(&f); err != nil {
		return Filter{}, fmt.Errorf("filter defaults: %w", err)
	}

	if err := decoder.Decode(&f, values); err != nil {
		var multi schema.MultiError
		if errors.As(err, &multi) {
			for field, ferr := range multi {
				return Filter{}, fmt.Errorf("%w: parameter %q: %v", ErrInvalidFilter, field, ferr)
			}
		}
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	f.Search = strings.TrimSpace(f.Search)
	f.Tag = strings.TrimSpace(f.Tag)
	f.Slug = slug
	f.hasMaxPrice = strings.TrimSpace(values.Get("p")) != ""

	if f.hasMaxPrice && (f.MaxPrice < 0 || math.IsNaN(f.MaxPrice) || math.IsInf(f.MaxPrice, 0)) {
		return Filter{}, fmt.Errorf("%w: parameter \"p\" must be a non-negative number", ErrInvalidFilter)
	}
	if f.Page < 1 {
		return Filter{}, fmt.Errorf("%w: parameter \"page\" must be at least 1", ErrInvalidFilter)
	}

	return f, nil
}

// HasMaxPrice reports whether a price ceiling was requested
func (f Filter) HasMaxPrice() bool {
	return f.hasMaxPrice
}

// WithMaxPrice returns a copy of f limited to products priced at most p
func (f Filter) WithMaxPrice(p float64) Filter {
	f.MaxPrice = p
	f.hasMaxPrice = true
	return f
}

// SortedByPrice reports whether results are ordered by ascending price
func (f Filter) SortedByPrice() bool {
	return f.Sort == SortByPrice
}

// IsZero reports whether no narrowing filter is set (slug and page aside)
func (f Filter) IsZero() bool {
	return f.Search == "" && f.Tag == "" && !f.HasMaxPrice() && !f.SortedByPrice()
}

// Canonical renders the filter in a fixed, normalized form. Two filters
// that select the same page of products render identically, and values
// are escaped so different filters never do.
func (f Filter) Canonical() string {
	price := ""
	if f.HasMaxPrice() {
		price = strconv.FormatFloat(f.MaxPrice, 'f', -1, 64)
	}
	sort := ""
	if f.SortedByPrice() {
		sort = "price"
	}
	return url.Values{
		"slug": {f.Slug},
		"q":    {strings.ToLower(f.Search)},
		"t":    {f.Tag},
		"p":    {price},
		"sort": {sort},
		"page": {strconv.Itoa(f.Page)},
	}.Encode()
}

// Scope restricts a product query to the filter and to categoryIDs (when
// non-nil). It does not order or paginate.
func (f Filter) Scope(categoryIDs []uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Search != "" {
			db = db.Where("LOWER(products.name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(f.Search))+"%")
		}

		if f.Tag != "" {
			tagged := db.Session(&gorm.Session{NewDB: true}).
				Table("product_tags_products").
				Select("product_tags_products.product_id").
				Joins("JOIN product_tags ON product_tags.id = product_tags_products.product_tag_id")
			if id, err := strconv.ParseUint(f.Tag, 10, 64); err == nil {
				tagged = tagged.Where("product_tags.id = ? OR product_tags.name = ?", id, f.Tag)
			} else {
				tagged = tagged.Where("product_tags.name = ?", f.Tag)
			}
			db = db.Where("products.id IN (?)", tagged)
		}

		if f.HasMaxPrice() {
			db = db.Where("products.price <= ?", f.MaxPrice)
		}

		if categoryIDs != nil {
			db = db.Where("products.category_id IN ?", categoryIDs)
		}
		return db
	}
}

// Order applies the listing order. Equal prices fall back to id order so
// pages are stable.
func (f Filter) Order(db *gorm.DB) *gorm.DB {
	if f.SortedByPrice() {
		return db.Order("products.price ASC").Order("products.id ASC")
	}
	return db.Order("products.id ASC")
}

// likeEscaper makes LIKE wildcards in search text match literally, with
// '!' as the ESCAPE character.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
