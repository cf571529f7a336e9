package productcontroller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/junaidrashid-git/tavern-api/cache"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type categoryInput struct {
	Name      string  `form:"name" json:"name" binding:"required"`
	Slug      string  `form:"slug" json:"slug"`
	GroupName *string `form:"group_name" json:"group_name"`
}

func (in categoryInput) slugValue() string {
	if in.Slug == "" {
		return ""
	}
	return slug.Make(in.Slug)
}

func CreateCategory(db *gorm.DB, listings cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in categoryInput
		if err := c.ShouldBind(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		category := models.Category{Name: strings.TrimSpace(in.Name), Slug: in.slugValue()}
		if err := db.Create(&category).Error; err != nil {
			logging.FromGin(c).Warn("category_create_failed", zap.Error(err))
			c.JSON(http.StatusConflict, gin.H{"error": "Failed to create category"})
			return
		}

		invalidateListings(c, listings)
		c.JSON(http.StatusCreated, category)
	}
}

// CreateSubCategory adds a subcategory under /admin/categories/:id/subcategories.
func CreateSubCategory(db *gorm.DB, listings cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		categoryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
			return
		}
		var category models.Category
		if err := db.First(&category, categoryID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}

		var in categoryInput
		if err := c.ShouldBind(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		if in.GroupName != nil && strings.TrimSpace(*in.GroupName) == "" {
			in.GroupName = nil
		}

		sub := models.SubCategory{
			CategoryID: category.ID,
			Name:       strings.TrimSpace(in.Name),
			GroupName:  in.GroupName,
			Slug:       in.slugValue(),
		}
		if err := db.Create(&sub).Error; err != nil {
			logging.FromGin(c).Warn("subcategory_create_failed", zap.Error(err))
			c.JSON(http.StatusConflict, gin.H{"error": "Failed to create subcategory"})
			return
		}

		invalidateListings(c, listings)
		c.JSON(http.StatusCreated, sub)
	}
}

// GetAllCategories returns every category with its subcategories for the menu.
func GetAllCategories(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		categories := []models.Category{}
		if err := db.Preload("SubCategories", models.SubCategoryOrder).Order("name").Find(&categories).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

// DeleteCategory removes a category and its subcategories. Products keep
// existing with their category cleared.
func DeleteCategory(db *gorm.DB, listings cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
			return
		}

		var cat models.Category
		if err := db.First(&cat, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			subIDs := tx.Model(&models.SubCategory{}).Select("id").Where("category_id = ?", cat.ID)
			if err := tx.Model(&models.Product{}).Where("sub_category_id IN (?)", subIDs).
				Update("sub_category_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Product{}).Where("category_id = ?", cat.ID).
				Update("category_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Where("category_id = ?", cat.ID).Delete(&models.SubCategory{}).Error; err != nil {
				return err
			}
			return tx.Delete(&cat).Error
		})
		if err != nil {
			logging.FromGin(c).Error("category_delete_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
			return
		}

		invalidateListings(c, listings)
		c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
	}
}
