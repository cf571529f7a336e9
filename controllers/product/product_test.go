package productcontroller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/junaidrashid-git/tavern-api/database"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// memoryCache is an in-process cache.Cache.
type memoryCache struct {
	items map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{items: map[string][]byte{}} }

func (m *memoryCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	raw, ok := m.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *memoryCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	m.items[key] = raw
	return err
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func feature(f models.ProductFeature) *models.ProductFeature { return &f }

func seedProduct(t *testing.T, db *gorm.DB, p models.Product) models.Product {
	t.Helper()
	if p.Price.IsZero() {
		p.Price = decimal.NewFromInt(100)
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedFeatured(t *testing.T, db *gorm.DB, f models.ProductFeature, n int) []models.Product {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []models.Product
	for i := 0; i < n; i++ {
		out = append(out, seedProduct(t, db, models.Product{
			Name:      fmt.Sprintf("%s %d", f, i),
			Feature:   feature(f),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	return out
}

func TestBuildListingHomepage(t *testing.T) {
	db := newTestDB(t)
	seedFeatured(t, db, models.FeaturePopular, 8)
	fresh := seedFeatured(t, db, models.FeatureNew, 8)
	seedProduct(t, db, models.Product{Name: "Plain"})

	listing, err := BuildListing(context.Background(), db, ListingQuery{})
	require.NoError(t, err)

	assert.Nil(t, listing.Products)
	assert.Len(t, listing.PopularProducts, 6)
	require.Len(t, listing.NewProducts, 6)
	assert.Equal(t, fresh[7].ID, listing.NewProducts[0].ID, "newest first")
	assert.Equal(t, fresh[2].ID, listing.NewProducts[5].ID)
}

func TestBuildListingPopularView(t *testing.T) {
	db := newTestDB(t)
	seedFeatured(t, db, models.FeaturePopular, 8)
	seedFeatured(t, db, models.FeatureNew, 2)

	listing, err := BuildListing(context.Background(), db, ListingQuery{View: ViewPopular})
	require.NoError(t, err)

	assert.Nil(t, listing.Products)
	assert.Nil(t, listing.NewProducts)
	assert.Len(t, listing.PopularProducts, 8)
	assert.Equal(t, ViewPopular, listing.ViewFilter)
}

func TestBuildListingFilters(t *testing.T) {
	db := newTestDB(t)
	wine := models.Category{Name: "Wine"}
	spirits := models.Category{Name: "Spirits"}
	require.NoError(t, db.Create(&wine).Error)
	require.NoError(t, db.Create(&spirits).Error)
	red := models.SubCategory{CategoryID: wine.ID, Name: "Red"}
	require.NoError(t, db.Create(&red).Error)

	merlot := seedProduct(t, db, models.Product{Name: "Merlot", CategoryID: &wine.ID, SubCategoryID: &red.ID, Feature: feature(models.FeaturePopular)})
	seedProduct(t, db, models.Product{Name: "Riesling", CategoryID: &wine.ID})
	seedProduct(t, db, models.Product{Name: "Gin", CategoryID: &spirits.ID})

	listing, err := BuildListing(context.Background(), db, ListingQuery{CategorySlug: "wine"})
	require.NoError(t, err)
	assert.Len(t, listing.Products, 2)
	assert.Equal(t, "wine", listing.Category.Slug)
	assert.Nil(t, listing.PopularProducts)
	assert.Nil(t, listing.NewProducts)

	listing, err = BuildListing(context.Background(), db, ListingQuery{CategorySlug: "wine", SubCategorySlug: "red", View: ViewPopular})
	require.NoError(t, err)
	require.Len(t, listing.Products, 1)
	assert.Equal(t, merlot.ID, listing.Products[0].ID)
	assert.Equal(t, "red", listing.SubCategory.Slug)

	_, err = BuildListing(context.Background(), db, ListingQuery{CategorySlug: "beer"})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	_, err = BuildListing(context.Background(), db, ListingQuery{CategorySlug: "wine", SubCategorySlug: "rose"})
	assert.ErrorIs(t, err, ErrSubCategoryNotFound)
}

func TestListProductsHandler(t *testing.T) {
	db := newTestDB(t)
	listings := newMemoryCache()
	seedFeatured(t, db, models.FeaturePopular, 2)

	r := gin.New()
	r.GET("/", ListProducts(db, listings))
	r.GET("/category/:slug/", ListProducts(db, listings))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?view=popular", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Products        []models.Product `json:"products"`
		PopularProducts []models.Product `json:"popular_products"`
		NewProducts     []models.Product `json:"new_products"`
		ViewFilter      string           `json:"view_filter"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.PopularProducts, 2)
	assert.Nil(t, body.NewProducts)
	assert.Equal(t, "popular", body.ViewFilter)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/category/missing/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListProductsServesFromCacheUntilInvalidated(t *testing.T) {
	db := newTestDB(t)
	listings := newMemoryCache()
	seedFeatured(t, db, models.FeaturePopular, 1)

	r := gin.New()
	r.GET("/", ListProducts(db, listings))
	r.POST("/admin/products", CreateProduct(db, listings))

	get := func() []models.Product {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			PopularProducts []models.Product `json:"popular_products"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body.PopularProducts
	}

	assert.Len(t, get(), 1)
	assert.Contains(t, listings.items, "listing:home")

	// A write behind the cache's back is not visible yet.
	seedProduct(t, db, models.Product{Name: "Sneaky", Feature: feature(models.FeaturePopular)})
	assert.Len(t, get(), 1)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/products",
		bytes.NewBufferString(`{"name":"Rum","price":"50","feature":"popular"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Len(t, get(), 3)
}

func TestLoadProductDetail(t *testing.T) {
	db := newTestDB(t)
	product := seedProduct(t, db, models.Product{Name: "Tusker", Price: decimal.NewFromInt(250)})

	detail, err := LoadProductDetail(context.Background(), db, "tusker")
	require.NoError(t, err)
	assert.Nil(t, detail.AverageRating)
	assert.Empty(t, detail.Ratings)

	user := models.User{Username: "ann", Email: "ann@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	for _, r := range []int{5, 4} {
		require.NoError(t, db.Create(&models.ProductRating{ProductID: product.ID, UserID: user.ID, Rating: r}).Error)
	}

	detail, err = LoadProductDetail(context.Background(), db, "tusker")
	require.NoError(t, err)
	require.NotNil(t, detail.AverageRating)
	assert.InDelta(t, 4.5, *detail.AverageRating, 0.001)
	require.Len(t, detail.Ratings, 2)
	assert.Equal(t, 4, detail.Ratings[0].Rating, "newest first")

	_, err = LoadProductDetail(context.Background(), db, "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProductDetailHandler(t *testing.T) {
	db := newTestDB(t)
	seedProduct(t, db, models.Product{Name: "Tusker", Price: decimal.NewFromInt(250), OldPrice: decimal.NewNullDecimal(decimal.NewFromInt(500))})

	r := gin.New()
	r.GET("/product/:slug/", GetProductDetail(db))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/product/tusker/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"discount_percentage":50`)
	assert.Contains(t, w.Body.String(), `"average_rating":null`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/product/nope/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	db := newTestDB(t)
	listings := newMemoryCache()
	product := seedProduct(t, db, models.Product{Name: "Amarula", Price: decimal.NewFromInt(1800)})

	r := gin.New()
	r.PUT("/admin/products/:id", UpdateProduct(db, listings))
	r.DELETE("/admin/products/:id", DeleteProduct(db, listings))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/admin/products/%d", product.ID),
		bytes.NewBufferString(`{"price":"1500","old_price":"1800"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Product
	require.NoError(t, db.First(&updated, product.ID).Error)
	assert.Equal(t, "Amarula", updated.Name)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, int64(16), updated.DiscountPercentage())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, fmt.Sprintf("/admin/products/%d", product.ID),
		bytes.NewBufferString(`{"category_id":"999"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/admin/products/%d", product.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.Product{}).Count(&count)
	assert.Zero(t, count)
}

func TestCategoryAdmin(t *testing.T) {
	db := newTestDB(t)
	listings := newMemoryCache()

	r := gin.New()
	r.GET("/categories/", GetAllCategories(db))
	r.POST("/admin/categories", CreateCategory(db, listings))
	r.POST("/admin/categories/:id/subcategories", CreateSubCategory(db, listings))
	r.DELETE("/admin/categories/:id", DeleteCategory(db, listings))

	post := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := post("/admin/categories", `{"name":"Soft Drinks"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var cat models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cat))
	assert.Equal(t, "soft-drinks", cat.Slug)

	require.Equal(t, http.StatusCreated, post(fmt.Sprintf("/admin/categories/%d/subcategories", cat.ID), `{"name":"Sodas","group_name":"Fizzy"}`).Code)
	require.Equal(t, http.StatusCreated, post(fmt.Sprintf("/admin/categories/%d/subcategories", cat.ID), `{"name":"Juice"}`).Code)
	assert.Equal(t, http.StatusConflict, post("/admin/categories", `{"name":"Soft Drinks"}`).Code)

	var sub models.SubCategory
	require.NoError(t, db.Where("slug = ?", "sodas").First(&sub).Error)
	product := seedProduct(t, db, models.Product{Name: "Coke", CategoryID: &cat.ID, SubCategoryID: &sub.ID})

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/categories/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var menu struct {
		Categories []models.Category `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &menu))
	require.Len(t, menu.Categories, 1)
	require.Len(t, menu.Categories[0].SubCategories, 2)
	assert.Equal(t, "Juice", menu.Categories[0].SubCategories[0].Name, "null group sorts first")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/admin/categories/%d", cat.ID), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, product.ID).Error)
	assert.Nil(t, reloaded.CategoryID)
	assert.Nil(t, reloaded.SubCategoryID)
}

func TestExportThenImportProducts(t *testing.T) {
	db := newTestDB(t)
	wine := models.Category{Name: "Wine"}
	require.NoError(t, db.Create(&wine).Error)
	seedProduct(t, db, models.Product{Name: "Merlot", Price: decimal.RequireFromString("1200.50"), CategoryID: &wine.ID, Feature: feature(models.FeatureNew)})

	var products []models.Product
	require.NoError(t, db.Preload("Category").Preload("SubCategory").Find(&products).Error)
	file, err := BuildProductsSheet(products)
	require.NoError(t, err)

	// Edit the exported sheet: change a price and add a new row.
	sheet := file.Sheets[0]
	sheet.Rows[1].Cells[3].SetString("1100")
	row := sheet.AddRow()
	for _, v := range []string{"", "Cabernet", "Dry red", "1500", "2000", "", "Chile", "popular", "wine", ""} {
		row.AddCell().SetString(v)
	}
	bad := sheet.AddRow()
	for _, v := range []string{"", "Broken", "", "not-a-price"} {
		bad.AddCell().SetString(v)
	}

	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))

	result, err := ImportProducts(db, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, result.Errors, 1)

	var merlot, cab models.Product
	require.NoError(t, db.Where("slug = ?", "merlot").First(&merlot).Error)
	assert.True(t, merlot.Price.Equal(decimal.NewFromInt(1100)))
	require.NoError(t, db.Where("slug = ?", "cabernet").First(&cab).Error)
	assert.Equal(t, int64(25), cab.DiscountPercentage())
	assert.Equal(t, wine.ID, *cab.CategoryID)
	assert.True(t, cab.HasFeature(models.FeaturePopular))
}

func TestImportProductsRollsBackOnStorageError(t *testing.T) {
	db := newTestDB(t)
	file, err := BuildProductsSheet(nil)
	require.NoError(t, err)
	for _, name := range []string{"Tusker", "Guinness"} {
		row := file.Sheets[0].AddRow()
		for _, v := range []string{"", name, "", "250"} {
			row.AddCell().SetString(v)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))

	boom := errors.New("disk full")
	inserts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_second_product", func(tx *gorm.DB) {
		if tx.Statement.Table == "products" {
			inserts++
			if inserts == 2 {
				tx.AddError(boom)
			}
		}
	}))

	_, err = ImportProducts(db, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportProductsFromExcelHandler(t *testing.T) {
	db := newTestDB(t)
	file, err := BuildProductsSheet(nil)
	require.NoError(t, err)
	row := file.Sheets[0].AddRow()
	for _, v := range []string{"", "Tusker", "", "250"} {
		row.AddCell().SetString(v)
	}
	var xl bytes.Buffer
	require.NoError(t, file.Write(&xl))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "products.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xl.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := gin.New()
	r.POST("/admin/products/import", ImportProductsFromExcel(db, newMemoryCache()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/products/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"created_count":1`)
}
