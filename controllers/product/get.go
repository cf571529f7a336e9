package productcontroller

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("product not found")

type ProductDetail struct {
	Product       models.Product         `json:"product"`
	Ratings       []models.ProductRating `json:"ratings"`
	AverageRating *float64               `json:"average_rating"` // Nil when nobody has rated yet
}

func LoadProductDetail(ctx context.Context, db *gorm.DB, slug string) (*ProductDetail, error) {
	db = db.WithContext(ctx)

	var detail ProductDetail
	err := db.Preload("Category").Preload("SubCategory").
		Where("slug = ?", slug).First(&detail.Product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	detail.Ratings = []models.ProductRating{}
	if err := db.Preload("User").
		Where("product_id = ?", detail.Product.ID).
		Order("created_at DESC").Order("id DESC").
		Find(&detail.Ratings).Error; err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := db.Model(&models.ProductRating{}).
		Select("AVG(rating)").
		Where("product_id = ?", detail.Product.ID).
		Row().Scan(&avg); err != nil {
		return nil, err
	}
	if avg.Valid {
		detail.AverageRating = &avg.Float64
	}

	return &detail, nil
}

// GetProductDetail returns a product with its ratings.
// URL param: /product/:slug/
func GetProductDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := LoadProductDetail(c.Request.Context(), db, c.Param("slug"))
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		if err != nil {
			logging.FromGin(c).Error("product_detail_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve product"})
			return
		}

		middleware.Respond(c, http.StatusOK, gin.H{
			"product":        detail.Product,
			"ratings":        detail.Ratings,
			"average_rating": detail.AverageRating,
		})
	}
}
