package feedbackControllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidRating   = fmt.Errorf("rating must be between %d and %d", models.MinRating, models.MaxRating)
	ErrProductNotFound = errors.New("product not found")
)

type RatingForm struct {
	Rating  int    `form:"rating" binding:"required,min=1,max=5"`
	Comment string `form:"comment" binding:"max=2000"`
}

// RateProduct stores a new rating row. Users may rate the same product more than once.
func RateProduct(ctx context.Context, db *gorm.DB, productID, userID uint, form RatingForm) (*models.ProductRating, error) {
	if !models.ValidRating(form.Rating) {
		return nil, ErrInvalidRating
	}
	rating := models.ProductRating{
		ProductID: productID,
		UserID:    userID,
		Rating:    form.Rating,
		Comment:   strings.TrimSpace(form.Comment),
	}
	if err := db.WithContext(ctx).Create(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func RateWebsite(ctx context.Context, db *gorm.DB, userID uint, form RatingForm) (*models.WebsiteRating, error) {
	if !models.ValidRating(form.Rating) {
		return nil, ErrInvalidRating
	}
	rating := models.WebsiteRating{
		UserID:  userID,
		Rating:  form.Rating,
		Comment: strings.TrimSpace(form.Comment),
	}
	if err := db.WithContext(ctx).Create(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func findProduct(ctx context.Context, db *gorm.DB, raw string) (*models.Product, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, ErrProductNotFound
	}
	var product models.Product
	err = db.WithContext(ctx).First(&product, uint(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func productFromParam(c *gin.Context, db *gorm.DB) (*models.Product, bool) {
	product, err := findProduct(c.Request.Context(), db, c.Param("id"))
	if errors.Is(err, ErrProductNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return nil, false
	}
	if err != nil {
		logging.FromGin(c).Error("product_lookup_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return nil, false
	}
	return product, true
}

// GET /rate-product/:id/
func RateProductPage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := productFromParam(c, db)
		if !ok {
			return
		}
		middleware.Respond(c, http.StatusOK, gin.H{
			"product":    product,
			"min_rating": models.MinRating,
			"max_rating": models.MaxRating,
		})
	}
}

// POST /rate-product/:id/
func SubmitProductRating(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := productFromParam(c, db)
		if !ok {
			return
		}
		var form RatingForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rating", "fields": middleware.BindingErrors(err)})
			return
		}

		userID, _ := middleware.CurrentUserID(c)
		if _, err := RateProduct(c.Request.Context(), db, product.ID, userID, form); err != nil {
			if errors.Is(err, ErrInvalidRating) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logging.FromGin(c).Error("product_rating_failed", zap.Uint("product_id", product.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rating"})
			return
		}

		middleware.AddFlash(c, middleware.FlashSuccess, "Thank you for your feedback!")
		middleware.Redirect(c, "/product/"+product.Slug+"/")
	}
}

// GET /rate-website/
func RateWebsitePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.Respond(c, http.StatusOK, gin.H{
			"min_rating": models.MinRating,
			"max_rating": models.MaxRating,
		})
	}
}

// POST /rate-website/
func SubmitWebsiteRating(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form RatingForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rating", "fields": middleware.BindingErrors(err)})
			return
		}

		userID, _ := middleware.CurrentUserID(c)
		if _, err := RateWebsite(c.Request.Context(), db, userID, form); err != nil {
			if errors.Is(err, ErrInvalidRating) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logging.FromGin(c).Error("website_rating_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rating"})
			return
		}

		middleware.AddFlash(c, middleware.FlashSuccess, "Thanks for rating our website!")
		middleware.Redirect(c, "/")
	}
}
