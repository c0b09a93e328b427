package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"storefront/internal/catalog"
	mid "storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/service"
	"storefront/internal/testdb"
	"storefront/pkg/jwtutil"
	"storefront/pkg/logger"
	"storefront/pkg/mailer"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type testServer struct {
	e      *echo.Echo
	fx     *testdb.Catalog
	jwt    *jwtutil.JWTUtil
	mailer *fakeMailer
}

func newTestServer(t *testing.T) *testServer {
	db := testdb.New(t)
	fx := testdb.Seed(t, db)
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})
	m := &fakeMailer{}

	h := New(
		service.NewCatalogService(catalog.NewStore(db), nil, 6),
		service.NewCartService(db),
		service.NewContactService(m, "shop@example.com", "owner@example.com"),
		service.NewAccountService(db, jwt),
	)

	e := echo.New()
	e.Validator = NewRequestValidator()
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware())
	h.Routes(e, mid.AuthMiddleware(jwt))

	return &testServer{e: e, fx: fx, jwt: jwt, mailer: m}
}

func (s *testServer) token(t *testing.T, u model.User) string {
	token, err := s.jwt.GenerateToken(u.Email, u.ID, u.Role())
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, target, body, token string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestShop(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/shop/fruit?p=4&fruitlist=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Products []struct {
			Name     string `json:"name"`
			Category struct {
				Slug string `json:"slug"`
			} `json:"category"`
		} `json:"products"`
		Total       int64 `json:"total"`
		Categories  []catalog.CategoryCount
		ProductTags []model.ProductTag `json:"product_tags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Products, 4)
	assert.Equal(t, "Orange", page.Products[0].Name)
	assert.Equal(t, "citrus", page.Products[0].Category.Slug)
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.Categories, 2)
	assert.Len(t, page.ProductTags, 2)
}

func TestShop_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		target string
		code   int
		error  string
	}{
		{"price not a number", "/api/shop?p=abc", http.StatusBadRequest, ""},
		{"negative price", "/api/shop/fruit?p=-3", http.StatusBadRequest, ""},
		{"unknown category", "/api/shop/durian", http.StatusNotFound, "Category not found"},
		{"page past the end", "/api/shop?page=3", http.StatusNotFound, "Page not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, tt.target, "", "")
			assert.Equal(t, tt.code, rec.Code)
			if tt.error != "" {
				assert.Equal(t, tt.error, decode(t, rec)["error"])
			}
		})
	}
}

func TestProductDetail(t *testing.T) {
	s := newTestServer(t)
	apple := s.fx.Products["Apple"].ID

	rec := s.do(http.MethodPost, "/api/products/"+itoa(apple)+"/reviews", `{"text":"Lovely"}`, s.token(t, s.fx.Customer))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/products/"+itoa(apple), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["quantity"])
	assert.Len(t, body["reviews"], 1)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/products/999", "", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/products/abc", "", "").Code)

	// Reviews need a signed-in user and some text.
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/products/"+itoa(apple)+"/reviews", `{"text":"x"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/products/"+itoa(apple)+"/reviews", `{}`, s.token(t, s.fx.Customer)).Code)
}

func TestIndex(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "reviews")
}

func TestCart(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, s.fx.Customer)
	strawberry := itoa(s.fx.Products["Strawberry"].ID)

	rec := s.do(http.MethodPost, "/api/cart/items", `{"product_id":`+strawberry+`,"quantity":2}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "/api/cart", body["redirect"])
	item := body["item"].(map[string]any)
	assert.Equal(t, float64(10), item["total_price"])

	rec = s.do(http.MethodPost, "/api/cart/items", `{"product_id":`+strawberry+`,"quantity":1}`, token,
		"Referer", "http://example.com/api/products/"+strawberry)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, OutOfStockMessage, body["error"])
	assert.Equal(t, "/api/products/"+strawberry, body["redirect"])

	rec = s.do(http.MethodGet, "/api/checkout", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, float64(10), body["grand_total"])
	require.Len(t, body["cart_items"], 1)

	rec = s.do(http.MethodGet, "/api/cart", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	lines := body["cart_items"].([]any)
	require.Len(t, lines, 1)
	itemID := itoa(uint(lines[0].(map[string]any)["id"].(float64)))

	// Someone else cannot delete it.
	rec = s.do(http.MethodDelete, "/api/cart/items/"+itemID, "", s.token(t, s.fx.Staff))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodDelete, "/api/cart/items/"+itemID, "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/cart", decode(t, rec)["redirect"])
}

func TestCart_Validation(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, s.fx.Customer)

	rec := s.do(http.MethodPost, "/api/cart/items", `{"product_id":1,"quantity":0}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/cart/items", `{"product_id":999,"quantity":1}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/cart/items", `not json`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/cart", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/checkout", "", "garbage").Code)
}

func TestContact(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/contact", `{"sender_name":"Alex","sender_email":"not-an-email","message":"hi"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decode(t, rec)["fields"].(map[string]any)
	assert.Equal(t, "email", fields["sender_email"])
	assert.Empty(t, s.mailer.sent)

	rec = s.do(http.MethodPost, "/api/contact", `{"sender_name":"`+strings.Repeat("a", 101)+`","sender_email":"a@example.com","message":"hi"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/contact", `{"sender_name":"Alex","sender_email":"alex@example.com","message":"hi"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Message sent successfully!", decode(t, rec)["message"])
	require.Len(t, s.mailer.sent, 1)
	assert.Equal(t, "New Message from Alex alex@example.com", s.mailer.sent[0].Subject)

	s.mailer.err = errors.New("relay down")
	rec = s.do(http.MethodPost, "/api/contact", `{"sender_name":"Alex","sender_email":"alex@example.com","message":"hi"}`, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAccounts(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/auth/register", `{"email":"robin@example.com","password":"short","name":"Robin"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/auth/register", `{"email":"robin@example.com","password":"long enough","name":"Robin"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "long enough")

	rec = s.do(http.MethodPost, "/auth/register", `{"email":"robin@example.com","password":"long enough","name":"Robin"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", `{"email":"robin@example.com","password":"wrong password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", `{"email":"robin@example.com","password":"long enough"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode(t, rec)["token"].(string)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/cart", "", token).Code)
}

func TestAdmin(t *testing.T) {
	s := newTestServer(t)
	staff := s.token(t, s.fx.Staff)
	vegetables := itoa(s.fx.Vegetables.ID)

	rec := s.do(http.MethodPost, "/api/admin/tags", `{"name":"organic"}`, s.token(t, s.fx.Customer))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/admin/tags", `{"name":"organic"}`, staff)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(http.MethodPost, "/api/admin/tags", `{"name":"organic"}`, staff)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/admin/products", `{"name":"Leek","price":2,"stock":3,"category_id":`+vegetables+`}`, staff)
	require.Equal(t, http.StatusCreated, rec.Code)
	leek := itoa(uint(decode(t, rec)["id"].(float64)))

	rec = s.do(http.MethodPost, "/api/admin/products", `{"name":"Leek","price":0,"category_id":`+vegetables+`}`, staff)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/api/admin/products/"+leek, `{"name":"Leek","price":2.5,"stock":3,"category_id":`+vegetables+`}`, staff)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/shop/vegetables", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["products"], 2)

	rec = s.do(http.MethodDelete, "/api/admin/categories/"+vegetables, "", staff)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/admin/categories", `{"name":"Roots","slug":"roots","parent_id":`+vegetables+`}`, staff)
	require.Equal(t, http.StatusCreated, rec.Code)
	roots := itoa(uint(decode(t, rec)["id"].(float64)))

	rec = s.do(http.MethodPut, "/api/admin/categories/"+roots, `{"name":"Roots","slug":"fruit"}`, staff)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodDelete, "/api/admin/categories/"+roots, "", staff)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/api/admin/products/"+leek, "", staff)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodDelete, "/api/admin/products/"+leek, "", staff)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorPages(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/no/such/page", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Page not found", decode(t, rec)["error"])

	rec = s.do(http.MethodGet, "/test500", "", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])

	rec = s.do(http.MethodHead, "/no/such/page", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		name    string
		referer string
		want    string
	}{
		{"no referer", "", "/api/cart"},
		{"same host", "http://example.com/api/shop/fruit", "/api/shop/fruit"},
		{"same host keeps query", "https://example.com/api/shop?p=3", "/api/shop?p=3"},
		{"relative path", "/api/products/3", "/api/products/3"},
		{"other host", "https://evil.example.org/phish", "/api/cart"},
		{"protocol relative", "//evil.example.org/phish", "/api/cart"},
		{"javascript", "javascript:alert(1)", "/api/cart"},
		{"backslash after host", `http://example.com/\evil.org/phish`, "/api/cart"},
		{"backslash path", `/\evil.org`, "/api/cart"},
		{"encoded backslash", "http://example.com/%5Cevil.org", "/api/cart"},
		{"garbage", "%zz", "/api/cart"},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/cart/items", nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			c := e.NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, safeRedirect(c))
		})
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
