package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/junaidrashid-git/tavern-api/database"
	"github.com/junaidrashid-git/tavern-api/external/intasend"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const adminKey = "staff-key"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGateway struct {
	requests []intasend.ChargeRequest
}

func (g *stubGateway) ChargeMobileMoney(_ context.Context, req intasend.ChargeRequest) (*intasend.ChargeResponse, error) {
	g.requests = append(g.requests, req)
	return &intasend.ChargeResponse{}, nil
}

func newApp(t *testing.T) (*gin.Engine, *gorm.DB, *stubGateway) {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	gw := &stubGateway{}
	r := gin.New()
	SetupRoutes(r, Dependencies{
		DB:              db,
		Gateway:         gw,
		JWTSecret:       []byte("routes-test-secret"),
		SessionStore:    middleware.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false),
		CSRFKey:         []byte("abcdef0123456789abcdef0123456789"),
		AdminAPIKey:     adminKey,
		CallbackBaseURL: "https://tavern.example.com",
	})
	return r, db, gw
}

// browser keeps cookies and the latest CSRF token between requests.
type browser struct {
	router  *gin.Engine
	cookies map[string]*http.Cookie
	token   string
}

func (b *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}
	if b.token != "" {
		req.Header.Set(middleware.CSRFHeader, b.token)
	}
	w := httptest.NewRecorder()
	b.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		b.cookies[ck.Name] = ck
	}
	if tok := w.Header().Get(middleware.CSRFHeader); tok != "" {
		b.token = tok
	}
	return w
}

func TestGuestCheckoutAndIntaSendPayment(t *testing.T) {
	r, db, gw := newApp(t)
	wine := models.Product{Name: "House Red", Price: decimal.NewFromInt(500)}
	require.NoError(t, db.Create(&wine).Error)

	b := &browser{router: r, cookies: map[string]*http.Cookie{}}
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/", nil).Code)
	require.NotEmpty(t, b.token)

	w := b.do(http.MethodPost, "/add-to-cart/"+wine.Slug+"/", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	b.do(http.MethodPost, "/add-to-cart/"+wine.Slug+"/", url.Values{})

	w = b.do(http.MethodGet, "/cart/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "House Red added to cart.")
	assert.Contains(t, w.Body.String(), `"item_count":2`)

	w = b.do(http.MethodPost, "/checkout/", url.Values{
		"first_name": {"Amina"},
		"last_name":  {"Otieno"},
		"phone":      {"254712345678"},
		"payment":    {"intasend"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)

	var order models.Order
	require.NoError(t, db.First(&order).Error)
	assert.True(t, decimal.NewFromInt(1000).Equal(order.TotalAmount))
	assert.Equal(t, "/checkout/intasend/"+uintPath(order.ID)+"/", w.Header().Get("Location"))

	w = b.do(http.MethodPost, "/checkout/intasend/"+uintPath(order.ID)+"/", url.Values{"phone": {"254712345678"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/checkout/payment-wait/"+uintPath(order.ID)+"/", w.Header().Get("Location"))
	require.Len(t, gw.requests, 1)
	assert.Equal(t, "https://tavern.example.com/intasend/webhook/", gw.requests[0].CallbackURL)
	assert.Equal(t, "ORDER-"+uintPath(order.ID), gw.requests[0].APIRef)

	// The gateway posts without session or CSRF token.
	hook := httptest.NewRequest(http.MethodPost, "/intasend/webhook/",
		strings.NewReader(`{"api_ref":"ORDER-`+uintPath(order.ID)+`","state":"COMPLETE"}`))
	hook.Header.Set("Content-Type", "application/json")
	hw := httptest.NewRecorder()
	r.ServeHTTP(hw, hook)
	require.Equal(t, http.StatusOK, hw.Code)

	w = b.do(http.MethodGet, "/checkout/intasend/status/"+uintPath(order.ID)+"/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "paid", status.Status)
}

func TestUnsafeRequestWithoutCSRFTokenIsRejected(t *testing.T) {
	r, db, _ := newApp(t)
	wine := models.Product{Name: "House Red", Price: decimal.NewFromInt(500)}
	require.NoError(t, db.Create(&wine).Error)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/add-to-cart/"+wine.Slug+"/", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLoginRequiredPages(t *testing.T) {
	r, _, _ := newApp(t)
	b := &browser{router: r, cookies: map[string]*http.Cookie{}}

	for path, message := range map[string]string{
		"/orders/":       "Please log in to view your orders.",
		"/rate-website/": "Please log in to rate the website.",
	} {
		w := b.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusSeeOther, w.Code, path)
		assert.Equal(t, "/login/", w.Header().Get("Location"))

		w = b.do(http.MethodGet, "/login/", nil)
		assert.Contains(t, w.Body.String(), message)
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	r, _, _ := newApp(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/intasend/webhook/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAdminRequiresAPIKey(t *testing.T) {
	r, _, _ := newApp(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("X-API-KEY", adminKey)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _, _ := newApp(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func uintPath(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
