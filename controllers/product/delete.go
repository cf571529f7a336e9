package productcontroller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/cache"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DeleteProduct removes a product. Cart lines, order lines and ratings that
// point at it go with it.
func DeleteProduct(db *gorm.DB, listings cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1️⃣ Parse product ID
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
			return
		}

		// 2️⃣ Fetch product
		var product models.Product
		if err := db.First(&product, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}

		// 3️⃣ Delete dependants and the product in one transaction
		err = db.Transaction(func(tx *gorm.DB) error {
			for _, model := range []any{&models.CartItem{}, &models.OrderItem{}, &models.ProductRating{}} {
				if err := tx.Where("product_id = ?", product.ID).Delete(model).Error; err != nil {
					return err
				}
			}
			return tx.Delete(&product).Error
		})
		if err != nil {
			logging.FromGin(c).Error("product_delete_failed", zap.Uint("product_id", product.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
			return
		}

		// 4️⃣ Drop stale listings
		invalidateListings(c, listings)
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
	}
}
