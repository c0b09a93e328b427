package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/cache"
	"storefront/internal/catalog"
	"storefront/internal/model"
	"storefront/internal/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type catalogFixture struct {
	svc *CatalogService
	db  *gorm.DB
	fx  *testdb.Catalog
	mr  *miniredis.Miniredis
}

func setupCatalogService(t *testing.T) catalogFixture {
	db := testdb.New(t)
	fx := testdb.Seed(t, db)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := NewCatalogService(catalog.NewStore(db), cache.NewRedisCache(client, cache.DefaultTTL), 6)
	return catalogFixture{svc: svc, db: db, fx: fx, mr: mr}
}

func productNames(page *ShopPage) []string {
	out := make([]string, 0, len(page.Products))
	for _, p := range page.Products {
		out = append(out, p.Name)
	}
	return out
}

func TestCatalogService_Shop(t *testing.T) {
	f := setupCatalogService(t)
	ctx := context.Background()

	page, err := f.svc.Shop(ctx, catalog.Filter{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(8), page.Total)
	assert.Len(t, page.Products, 6)
	assert.Len(t, page.ProductTags, 2)

	require.Len(t, page.Categories, 2)
	assert.Equal(t, "fruit", page.Categories[0].Slug)
	assert.Equal(t, int64(7), page.Categories[0].Count)
	assert.Equal(t, "vegetables", page.Categories[1].Slug)
	assert.Equal(t, int64(1), page.Categories[1].Count)
}

func TestCatalogService_ShopBySlug(t *testing.T) {
	f := setupCatalogService(t)
	ctx := context.Background()

	page, err := f.svc.Shop(ctx, catalog.Filter{Page: 1, Slug: "fruit", Sort: catalog.SortByPrice}.WithMaxPrice(4))
	require.NoError(t, err)
	assert.Equal(t, []string{"Orange", "Lemon", "Apple", "Lime"}, productNames(page))

	var slugs []string
	for _, c := range page.Categories {
		slugs = append(slugs, c.Slug)
	}
	assert.Equal(t, []string{"citrus", "berries"}, slugs)
	assert.Equal(t, int64(4), page.Categories[0].Count)
	assert.Equal(t, int64(2), page.Categories[1].Count)
}

func TestCatalogService_ShopErrors(t *testing.T) {
	f := setupCatalogService(t)
	ctx := context.Background()

	_, err := f.svc.Shop(ctx, catalog.Filter{Page: 1, Slug: "durian"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = f.svc.Shop(ctx, catalog.Filter{Page: 9})
	assert.ErrorIs(t, err, catalog.ErrPageOutOfRange)
}

func TestCatalogService_ServesCachedListForSixtySeconds(t *testing.T) {
	f := setupCatalogService(t)
	ctx := context.Background()
	filter := catalog.Filter{Page: 1, Slug: "citrus"}

	first, err := f.svc.Shop(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, []string{"Orange", "Lemon", "Lime", "Grapefruit"}, productNames(first))

	// A write that bypasses the service is not seen until the entry expires.
	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", f.fx.Products["Lemon"].ID).Update("name", "Meyer Lemon").Error)

	f.mr.FastForward(59 * time.Second)
	second, err := f.svc.Shop(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, productNames(first), productNames(second))

	f.mr.FastForward(time.Second)
	third, err := f.svc.Shop(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, []string{"Orange", "Meyer Lemon", "Lime", "Grapefruit"}, productNames(third))
}

func TestCatalogService_EqualFiltersShareOneKey(t *testing.T) {
	f := setupCatalogService(t)
	ctx := context.Background()

	a := catalog.Filter{Page: 1, Search: "Berry"}
	b := catalog.Filter{Page: 1, Search: "berry", Sort: "1"}

	_, err := f.svc.Shop(ctx, a)
	require.NoError(t, err)
	keys := len(f.mr.Keys())

	_, err = f.svc.Shop(ctx, b)
	require.NoError(t, err)
	assert.Len(t, f.mr.Keys(), keys)
	assert.True(t, f.mr.Exists(cache.Key(0, KindProducts, a.Canonical())))

	// The unfiltered category list lives under its own kind.
	_, err = f.svc.Shop(ctx, catalog.Filter{Page: 1, Slug: "berries"})
	require.NoError(t, err)
	assert.True(t, f.mr.Exists(cache.Key(0, KindCategoryProducts, catalog.Filter{Page: 1, Slug: "berries"}.Canonical())))
}

func TestCatalogService_WritesInvalidate(t *testing.T) {
	f := setupCatalogService(t)
	ctx := context.Background()
	filter := catalog.Filter{Page: 1, Slug: "vegetables"}

	page, err := f.svc.Shop(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, []string{"Carrot"}, productNames(page))

	_, err = f.svc.CreateProduct(ctx, catalog.ProductInput{Name: "Leek", Price: 2, Stock: 1, CategoryID: f.fx.Vegetables.ID})
	require.NoError(t, err)

	page, err = f.svc.Shop(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carrot", "Leek"}, productNames(page))

	assert.Equal(t, "1", mustGet(t, f.mr, "storefront:generation"))

	// Failed writes leave the generation alone.
	_, err = f.svc.CreateTag(ctx, "fresh")
	require.ErrorIs(t, err, catalog.ErrConflict)
	assert.Equal(t, "1", mustGet(t, f.mr, "storefront:generation"))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func TestCatalogService_FallsBackWhenRedisIsDown(t *testing.T) {
	f := setupCatalogService(t)
	f.mr.Close()

	page, err := f.svc.Shop(context.Background(), catalog.Filter{Page: 1, Slug: "berries"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Strawberry", "Blueberry"}, productNames(page))

	// Invalidation failures are logged, not returned.
	_, err = f.svc.CreateTag(context.Background(), "organic")
	assert.NoError(t, err)
}

func TestCatalogService_WithoutCache(t *testing.T) {
	db := testdb.New(t)
	testdb.Seed(t, db)
	svc := NewCatalogService(catalog.NewStore(db), nil, 6)

	page, err := svc.Shop(context.Background(), catalog.Filter{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lime", "Grapefruit"}, productNames(page))
}

func TestCatalogService_ProductAndReviews(t *testing.T) {
	f := setupCatalogService(t)
	ctx := context.Background()
	apple := f.fx.Products["Apple"].ID

	review, err := f.svc.AddReview(ctx, f.fx.Customer.ID, apple, "Very crunchy")
	require.NoError(t, err)
	assert.NotZero(t, review.ID)

	detail, err := f.svc.Product(ctx, apple)
	require.NoError(t, err)
	assert.Equal(t, "Apple", detail.Product.Name)
	assert.Equal(t, 1, detail.Quantity)
	require.Len(t, detail.Reviews, 1)
	assert.Equal(t, "Very crunchy", detail.Reviews[0].Text)

	_, err = f.svc.Product(ctx, 999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = f.svc.AddReview(ctx, f.fx.Customer.ID, 999, "?")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestCached_ConcurrentMissesShareOneLoad(t *testing.T) {
	f := setupCatalogService(t)

	var loads atomic.Int32
	release := make(chan struct{})
	load := func(ctx context.Context) ([]string, error) {
		loads.Add(1)
		<-release
		return []string{"Apple"}, ctx.Err()
	}

	// The first caller goes away while the load is running.
	first, cancel := context.WithCancel(context.Background())
	results := make(chan error, 5)
	go func() {
		_, err := cached(first, f.svc, true, 0, KindTags, "shared", load)
		results <- err
	}()
	require.Eventually(t, func() bool { return loads.Load() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < 4; i++ {
		go func() {
			got, err := cached(context.Background(), f.svc, true, 0, KindTags, "shared", load)
			if err == nil && len(got) != 1 {
				err = assert.AnError
			}
			results <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(release)

	for i := 0; i < 5; i++ {
		assert.NoError(t, <-results)
	}
	assert.Equal(t, int32(1), loads.Load())
	assert.True(t, f.mr.Exists(cache.Key(0, KindTags, "shared")))
}
