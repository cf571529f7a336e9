package userControllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UpdateAccountInput struct {
	Email *string `json:"email" form:"email" binding:"omitempty,email,max=254"`
}

// Account is the signed-in user's profile with order and rating counts.
type Account struct {
	models.User
	OrderCount  int64 `json:"order_count"`
	RatingCount int64 `json:"rating_count"`
}

func loadAccount(db *gorm.DB, userID uint) (*Account, error) {
	var acct Account
	if err := db.First(&acct.User, userID).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).Where("user_id = ?", userID).Count(&acct.OrderCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ProductRating{}).Where("user_id = ?", userID).Count(&acct.RatingCount).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

// GET /account/
func GetAccount(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.CurrentUserID(c)
		acct, err := loadAccount(db.WithContext(c.Request.Context()), userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err != nil {
			logging.FromGin(c).Error("account_fetch_failed", zap.Uint("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch account"})
			return
		}
		middleware.Respond(c, http.StatusOK, gin.H{"account": acct})
	}
}

// PUT /account/
func UpdateAccount(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.CurrentUserID(c)
		db := db.WithContext(c.Request.Context())

		var input UpdateAccountInput
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account details", "fields": middleware.BindingErrors(err)})
			return
		}

		updates := make(map[string]interface{})
		if input.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*input.Email))
			var taken int64
			if err := db.Model(&models.User{}).Where("LOWER(email) = ? AND id <> ?", email, userID).Count(&taken).Error; err != nil {
				logging.FromGin(c).Error("account_update_failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update account"})
				return
			}
			if taken > 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account details", "fields": gin.H{"email": "Email is already in use."}})
				return
			}
			updates["email"] = email
		}

		if len(updates) > 0 {
			if err := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
				logging.FromGin(c).Error("account_update_failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update account"})
				return
			}
		}

		acct, err := loadAccount(db, userID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		middleware.Respond(c, http.StatusOK, gin.H{"account": acct})
	}
}

// GET /admin/users
func GetAllUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		users := []models.User{}
		if err := db.WithContext(c.Request.Context()).
			Select("id", "username", "email", "created_at"). // Select only public fields
			Order("created_at desc").
			Find(&users).Error; err != nil {
			logging.FromGin(c).Error("users_list_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}

		c.JSON(http.StatusOK, users)
	}
}
