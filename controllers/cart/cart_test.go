package cartControllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/junaidrashid-git/tavern-api/database"
	"github.com/junaidrashid-git/tavern-api/identity"
	"github.com/junaidrashid-git/tavern-api/middleware"
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

func seedProduct(t *testing.T, db *gorm.DB, name string, price int64) models.Product {
	t.Helper()
	p := models.Product{Name: name, Price: decimal.NewFromInt(price)}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func lineQuantity(t *testing.T, db *gorm.DB, cartID, productID uint) (int, bool) {
	t.Helper()
	var item models.CartItem
	err := db.Where("cart_id = ? AND product_id = ?", cartID, productID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return 0, false
	}
	require.NoError(t, err)
	return item.Quantity, true
}

func TestResolveCartCreatesOncePerIdentity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	guest := identity.ForSession("tok-1")

	first, err := ResolveCart(ctx, db, guest)
	require.NoError(t, err)
	second, err := ResolveCart(ctx, db, guest)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := ResolveCart(ctx, db, identity.ForSession("tok-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	_, err = ResolveCart(ctx, db, identity.CartIdentity{})
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestResolveCartConcurrent(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "alice")

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := ResolveCart(context.Background(), db, identity.ForUser(user.ID))
			if assert.NoError(t, err) {
				ids[i] = cart.ID
			}
		}(i)
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Model(&models.Cart{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestAddProductAccumulates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	wine := seedProduct(t, db, "Wine", 500)
	cart, err := ResolveCart(ctx, db, identity.ForSession("tok"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, AddProduct(ctx, db, cart.ID, wine.ID))
	}
	change, err := AdjustQuantity(ctx, db, cart.ID, wine.ID, ActionIncrease)
	require.NoError(t, err)
	assert.Equal(t, QuantityIncreased, change)

	qty, ok := lineQuantity(t, db, cart.ID, wine.ID)
	require.True(t, ok)
	assert.Equal(t, 4, qty)

	items, err := LoadItems(ctx, db, cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, decimal.NewFromInt(2000).Equal(CartTotal(items)))
}

func TestDecreaseAtOneRemovesLine(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	beer := seedProduct(t, db, "Beer", 300)
	cart, err := ResolveCart(ctx, db, identity.ForSession("tok"))
	require.NoError(t, err)
	require.NoError(t, AddProduct(ctx, db, cart.ID, beer.ID))
	require.NoError(t, AddProduct(ctx, db, cart.ID, beer.ID))

	change, err := AdjustQuantity(ctx, db, cart.ID, beer.ID, ActionDecrease)
	require.NoError(t, err)
	assert.Equal(t, QuantityDecreased, change)
	qty, _ := lineQuantity(t, db, cart.ID, beer.ID)
	assert.Equal(t, 1, qty)

	change, err = AdjustQuantity(ctx, db, cart.ID, beer.ID, ActionDecrease)
	require.NoError(t, err)
	assert.Equal(t, ItemRemoved, change)
	_, ok := lineQuantity(t, db, cart.ID, beer.ID)
	assert.False(t, ok)

	_, err = AdjustQuantity(ctx, db, cart.ID, beer.ID, ActionDecrease)
	assert.ErrorIs(t, err, ErrItemNotInCart)
	_, err = AdjustQuantity(ctx, db, cart.ID, beer.ID, ActionIncrease)
	assert.ErrorIs(t, err, ErrItemNotInCart)
	_, err = AdjustQuantity(ctx, db, cart.ID, beer.ID, Action("double"))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestRemoveItem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	spirit := seedProduct(t, db, "Gin", 1200)
	cart, err := ResolveCart(ctx, db, identity.ForSession("tok"))
	require.NoError(t, err)
	require.NoError(t, AddProduct(ctx, db, cart.ID, spirit.ID))
	require.NoError(t, AddProduct(ctx, db, cart.ID, spirit.ID))

	require.NoError(t, RemoveItem(ctx, db, cart.ID, spirit.ID))
	assert.ErrorIs(t, RemoveItem(ctx, db, cart.ID, spirit.ID), ErrItemNotInCart)
}

func TestSummarize(t *testing.T) {
	items := []models.CartItem{
		{Quantity: 2, Product: models.Product{Price: decimal.NewFromInt(500)}},
		{Quantity: 1, Product: models.Product{Price: decimal.NewFromInt(300)}},
	}
	s := Summarize(items)

	assert.Equal(t, "1300", s.Total.String())
	assert.Equal(t, "1120.69", s.SubtotalExVAT.String())
	assert.Equal(t, "179.31", s.VATAmount.String())
	assert.True(t, s.SubtotalExVAT.Add(s.VATAmount).Equal(s.Total))
	assert.Equal(t, 3, s.ItemCount)
	assert.Equal(t, "8.67", s.ProgressPercent.String())
	assert.Equal(t, "13700", s.AmountToFreeDelivery.String())
}

func TestSummarizeCapsProgress(t *testing.T) {
	s := Summarize([]models.CartItem{
		{Quantity: 4, Product: models.Product{Price: decimal.NewFromInt(5000)}},
	})
	assert.Equal(t, "100", s.ProgressPercent.String())
	assert.True(t, s.AmountToFreeDelivery.IsZero())

	empty := Summarize(nil)
	assert.True(t, empty.Total.IsZero())
	assert.NotNil(t, empty.Items)
}

func TestMergeGuestCart(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "bob")
	wine := seedProduct(t, db, "Wine", 500)
	beer := seedProduct(t, db, "Beer", 300)

	userCart, err := ResolveCart(ctx, db, identity.ForUser(user.ID))
	require.NoError(t, err)
	require.NoError(t, AddProduct(ctx, db, userCart.ID, wine.ID))

	guestCart, err := ResolveCart(ctx, db, identity.ForSession("guest-tok"))
	require.NoError(t, err)
	require.NoError(t, AddProduct(ctx, db, guestCart.ID, wine.ID))
	require.NoError(t, AddProduct(ctx, db, guestCart.ID, wine.ID))
	require.NoError(t, AddProduct(ctx, db, guestCart.ID, beer.ID))

	require.NoError(t, MergeGuestCart(ctx, db, "guest-tok", user.ID))

	qty, _ := lineQuantity(t, db, userCart.ID, wine.ID)
	assert.Equal(t, 3, qty)
	qty, _ = lineQuantity(t, db, userCart.ID, beer.ID)
	assert.Equal(t, 1, qty)

	_, err = FindCart(ctx, db, identity.ForSession("guest-tok"))
	assert.ErrorIs(t, err, ErrCartNotFound)

	// Nothing to merge is not an error.
	assert.NoError(t, MergeGuestCart(ctx, db, "missing", user.ID))
	assert.NoError(t, MergeGuestCart(ctx, db, "", user.ID))
}

// cartClient keeps the session cookie between requests like a browser.
type cartClient struct {
	t       *testing.T
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func newCartClient(t *testing.T, db *gorm.DB) *cartClient {
	r := gin.New()
	r.Use(middleware.Sessions(middleware.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false)))
	r.Use(middleware.ResolveCartIdentity())
	r.GET("/cart/", ViewCart(db))
	r.POST("/add-to-cart/:slug/", AddToCart(db))
	r.POST("/cart/update/:slug/", UpdateCartQuantity(db))
	r.POST("/cart/remove/:slug/", RemoveFromCart(db))
	r.POST("/cart/clear/", ClearCart(db))
	return &cartClient{t: t, router: r, cookies: map[string]*http.Cookie{}}
}

func (cc *cartClient) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, ck := range cc.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	cc.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		cc.cookies[ck.Name] = ck
	}
	return w
}

type cartPage struct {
	Cart struct {
		Items []models.CartItem `json:"items"`
		Total decimal.Decimal   `json:"total"`
	} `json:"cart"`
	Messages []middleware.FlashMessage `json:"messages"`
}

func (cc *cartClient) page() cartPage {
	w := cc.do(http.MethodGet, "/cart/", nil)
	require.Equal(cc.t, http.StatusOK, w.Code)
	var p cartPage
	require.NoError(cc.t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestCartHandlersFlow(t *testing.T) {
	db := newTestDB(t)
	wine := seedProduct(t, db, "House Wine", 500)
	client := newCartClient(t, db)

	w := client.do(http.MethodPost, "/add-to-cart/"+wine.Slug+"/", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/cart/", w.Header().Get("Location"))
	client.do(http.MethodPost, "/add-to-cart/"+wine.Slug+"/", url.Values{})

	page := client.page()
	require.Len(t, page.Cart.Items, 1)
	assert.Equal(t, 2, page.Cart.Items[0].Quantity)
	assert.Equal(t, "1000", page.Cart.Total.String())
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "House Wine added to cart.", page.Messages[0].Message)

	client.do(http.MethodPost, "/cart/update/"+wine.Slug+"/", url.Values{"action": {"decrease"}})
	page = client.page()
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "Decreased quantity for House Wine.", page.Messages[0].Message)

	client.do(http.MethodPost, "/cart/update/"+wine.Slug+"/", url.Values{"action": {"decrease"}})
	page = client.page()
	assert.Empty(t, page.Cart.Items)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "House Wine removed from cart.", page.Messages[0].Message)

	w = client.do(http.MethodPost, "/cart/remove/"+wine.Slug+"/", url.Values{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartHandlersRejectUnknownProductAndGet(t *testing.T) {
	db := newTestDB(t)
	client := newCartClient(t, db)

	w := client.do(http.MethodPost, "/add-to-cart/no-such-thing/", url.Values{})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = client.do(http.MethodGet, "/add-to-cart/no-such-thing/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "mutations are POST only")
}

func TestClearCart(t *testing.T) {
	db := newTestDB(t)
	wine := seedProduct(t, db, "Wine", 500)
	beer := seedProduct(t, db, "Beer", 300)
	client := newCartClient(t, db)

	client.do(http.MethodPost, "/add-to-cart/"+wine.Slug+"/", url.Values{})
	client.do(http.MethodPost, "/add-to-cart/"+beer.Slug+"/", url.Values{})
	w := client.do(http.MethodPost, "/cart/clear/", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)

	assert.Empty(t, client.page().Cart.Items)
}
