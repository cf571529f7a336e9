package feedbackControllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PromotionInput struct {
	Title              string `json:"title" binding:"required,max=200"`
	Description        string `json:"description"`
	DiscountPercentage uint   `json:"discount_percentage" binding:"max=100"`
	StartDate          string `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate            string `json:"end_date" binding:"required"`
	Active             *bool  `json:"active"`
}

// ActivePromotions lists active promotions whose date range covers day.
func ActivePromotions(ctx context.Context, db *gorm.DB, day time.Time) ([]models.Promotion, error) {
	d := models.DateOnly(day)
	promotions := []models.Promotion{}
	err := db.WithContext(ctx).
		Where("active = ? AND start_date <= ? AND end_date >= ?", true, d, d).
		Order("start_date").Order("id").
		Find(&promotions).Error
	return promotions, err
}

// GET /promotions/
func ListPromotions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		promotions, err := ActivePromotions(c.Request.Context(), db, time.Now())
		if err != nil {
			logging.FromGin(c).Error("promotions_list_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch promotions"})
			return
		}
		middleware.Respond(c, http.StatusOK, gin.H{"promotions": promotions})
	}
}

// POST /admin/promotions
func CreatePromotion(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input PromotionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid promotion", "fields": middleware.BindingErrors(err)})
			return
		}
		start, err := time.Parse(time.DateOnly, input.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		end, err := time.Parse(time.DateOnly, input.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD"})
			return
		}
		if end.Before(start) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date is before start_date"})
			return
		}

		promotion := models.Promotion{
			Title:              input.Title,
			Description:        input.Description,
			DiscountPercentage: input.DiscountPercentage,
			StartDate:          start,
			EndDate:            end,
			Active:             input.Active == nil || *input.Active,
		}
		if err := db.WithContext(c.Request.Context()).Create(&promotion).Error; err != nil {
			logging.FromGin(c).Error("promotion_create_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create promotion"})
			return
		}
		c.JSON(http.StatusCreated, promotion)
	}
}
