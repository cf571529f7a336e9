package userControllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/junaidrashid-git/tavern-api/database"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testSecret = []byte("user-test-secret")

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

func newRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Authenticate(testSecret))
	account := r.Group("/account", middleware.RequireLogin("Please log in to view your account."))
	account.GET("/", GetAccount(db))
	account.PUT("/", UpdateAccount(db))
	r.GET("/admin/users", GetAllUsers(db))
	return r
}

func TestAccount(t *testing.T) {
	db := newTestDB(t)
	amina := models.User{Username: "amina", Email: "amina@example.com", PasswordHash: "secret-hash"}
	other := models.User{Username: "baraka", Email: "baraka@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&amina).Error)
	require.NoError(t, db.Create(&other).Error)
	r := newRouter(db)

	token, err := middleware.IssueToken(testSecret, amina.ID, amina.Username, time.Hour)
	require.NoError(t, err)
	call := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/account/", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call(http.MethodGet, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"order_count":0`)
	assert.NotContains(t, w.Body.String(), "secret-hash")

	w = call(http.MethodPut, `{"email":"baraka@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(http.MethodPut, `{"email":"Amina.Otieno@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Account Account `json:"account"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "amina.otieno@example.com", body.Account.Email)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var users []models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}

func TestAccountRequiresLogin(t *testing.T) {
	r := newRouter(newTestDB(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/account/", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login/", w.Header().Get("Location"))
}
