package listings

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	listsvc "realty-backend/internal/application/listings"
	"realty-backend/internal/application/querycache"
	"realty-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupListingsTest(t *testing.T) (*Handlers, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Listing{}, &domain.ListingImage{}, &domain.RetiredSlug{}))
	svc := &listsvc.Service{DB: db, Cache: querycache.New(querycache.NewMemoryStore(), time.Minute)}
	return &Handlers{Service: svc}, db
}

// newApp mounts the handlers with a fake session for owner; uuid.Nil means anonymous.
func newApp(h *Handlers, owner uuid.UUID) *fiber.App {
	app := fiber.New()
	app.Get("/listings", h.ListPublished)
	app.Get("/listings/:slug", h.GetBySlug)

	admin := app.Group("/admin", func(c *fiber.Ctx) error {
		if owner != uuid.Nil {
			c.Locals("user", map[string]interface{}{"user_id": owner.String(), "role": "agent"})
		}
		return c.Next()
	})
	admin.Get("/listings", h.ListOwned)
	admin.Get("/listings/:id", h.GetOwned)
	admin.Post("/listings", h.Create)
	admin.Put("/listings/:id", h.Update)
	admin.Delete("/listings/:id", h.Delete)
	return app
}

func seed(t *testing.T, db *gorm.DB, owner uuid.UUID, slug, city string, price float64, published bool) domain.Listing {
	l := domain.Listing{
		Slug:         slug,
		OwnerID:      owner,
		PropertyType: domain.PropertyHouse,
		Status:       domain.StatusForSale,
		Source:       domain.SourceManual,
		Title:        slug,
		Address:      "1 Main St",
		City:         city,
		Price:        price,
		Published:    published,
	}
	require.NoError(t, db.Create(&l).Error)
	return l
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&result))
	return result
}

func errorField(result map[string]interface{}) interface{} {
	details, _ := result["error"].(map[string]interface{})["details"].(map[string]interface{})
	return details["field"]
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestListPublished_FiltersByQuery(t *testing.T) {
	h, db := setupListingsTest(t)
	owner := uuid.New()
	seed(t, db, owner, "austin-cheap", "Austin", 100000, true)
	seed(t, db, owner, "austin-pricey", "Austin", 800000, true)
	seed(t, db, owner, "dallas-home", "Dallas", 300000, true)
	seed(t, db, owner, "austin-draft", "Austin", 200000, false)
	app := newApp(h, uuid.Nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/listings?city=austin&sortBy=price_asc", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	result := decode(t, resp.Body)
	assert.Equal(t, "success", result["status"])
	data := result["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "austin-cheap", data[0].(map[string]interface{})["slug"])
	assert.Equal(t, "austin-pricey", data[1].(map[string]interface{})["slug"])
	assert.Equal(t, float64(2), result["metadata"].(map[string]interface{})["count"])
}

func TestListPublished_InvalidFilter(t *testing.T) {
	h, _ := setupListingsTest(t)
	app := newApp(h, uuid.Nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/listings?minPrice=-5", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	result := decode(t, resp.Body)
	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "minPrice", errorField(result))
}

func TestGetBySlug(t *testing.T) {
	h, db := setupListingsTest(t)
	owner := uuid.New()
	seed(t, db, owner, "lake-house", "Austin", 500000, true)
	seed(t, db, owner, "hidden-house", "Austin", 500000, false)
	app := newApp(h, uuid.Nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/listings/lake-house", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	result := decode(t, resp.Body)
	assert.Equal(t, "lake-house", result["data"].(map[string]interface{})["slug"])

	for _, slug := range []string{"hidden-house", "missing", "Not_A_Slug"} {
		resp, err = app.Test(httptest.NewRequest("GET", "/listings/"+slug, nil))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode, slug)
	}
}

func TestAdminRoutes_RequireSessionUser(t *testing.T) {
	h, _ := setupListingsTest(t)
	app := newApp(h, uuid.Nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/admin/listings", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestCreate_ValidatesAndCreates(t *testing.T) {
	h, _ := setupListingsTest(t)
	owner := uuid.New()
	app := newApp(h, owner)

	resp, err := app.Test(jsonRequest("POST", "/admin/listings", map[string]interface{}{"title": "No price", "address": "1 Main St", "city": "Austin"}))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	result := decode(t, resp.Body)
	assert.Equal(t, "price", errorField(result))

	resp, err = app.Test(jsonRequest("POST", "/admin/listings", map[string]interface{}{
		"title":     "Sunny Loft",
		"address":   "12 Congress Ave",
		"city":      "Austin",
		"price":     425000,
		"beds":      2,
		"published": true,
		"images":    []string{"https://img.test/1.jpg", "https://img.test/2.jpg"},
	}))
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	result = decode(t, resp.Body)
	data := result["data"].(map[string]interface{})
	assert.Equal(t, "sunny-loft", data["slug"])
	assert.Equal(t, owner.String(), data["owner_id"])
	assert.Len(t, data["images"], 2)

	resp, err = app.Test(httptest.NewRequest("GET", "/listings/sunny-loft", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestCreate_MalformedBody(t *testing.T) {
	h, _ := setupListingsTest(t)
	app := newApp(h, uuid.New())

	req := httptest.NewRequest("POST", "/admin/listings", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestUpdate_OwnershipAndPatch(t *testing.T) {
	h, db := setupListingsTest(t)
	owner := uuid.New()
	l := seed(t, db, owner, "old-name", "Austin", 300000, true)

	resp, err := newApp(h, uuid.New()).Test(jsonRequest("PUT", "/admin/listings/"+l.ID.String(), map[string]interface{}{"price": 1}))
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)

	app := newApp(h, owner)
	resp, err = app.Test(jsonRequest("PUT", "/admin/listings/"+l.ID.String(), map[string]interface{}{"price": 275000}))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	result := decode(t, resp.Body)
	data := result["data"].(map[string]interface{})
	assert.Equal(t, 275000.0, data["price"])
	assert.Equal(t, "old-name", data["title"])

	resp, err = app.Test(jsonRequest("PUT", "/admin/listings/not-a-uuid", map[string]interface{}{"price": 1}))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	resp, err = app.Test(jsonRequest("PUT", "/admin/listings/"+uuid.NewString(), map[string]interface{}{"price": 1}))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestListOwnedAndDelete(t *testing.T) {
	h, db := setupListingsTest(t)
	owner := uuid.New()
	seed(t, db, owner, "mine-published", "Austin", 300000, true)
	draft := seed(t, db, owner, "mine-draft", "Austin", 200000, false)
	seed(t, db, uuid.New(), "someone-else", "Austin", 100000, true)
	app := newApp(h, owner)

	resp, err := app.Test(httptest.NewRequest("GET", "/admin/listings", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	result := decode(t, resp.Body)
	assert.Len(t, result["data"], 2)

	resp, err = app.Test(httptest.NewRequest("GET", "/admin/listings/"+draft.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("DELETE", "/admin/listings/"+draft.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	result = decode(t, resp.Body)
	assert.Equal(t, "mine-draft", result["data"].(map[string]interface{})["slug"])

	resp, err = app.Test(httptest.NewRequest("GET", "/admin/listings/"+draft.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}
