package cartControllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/identity"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cartPath = "/cart/"

func productBySlug(c *gin.Context, db *gorm.DB) (*models.Product, bool) {
	var product models.Product
	err := db.WithContext(c.Request.Context()).Where("slug = ?", c.Param("slug")).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return nil, false
	}
	if err != nil {
		logging.FromGin(c).Error("product_lookup_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate product"})
		return nil, false
	}
	return &product, true
}

func requestCart(c *gin.Context, db *gorm.DB) (*models.Cart, bool) {
	cart, err := ResolveCart(c.Request.Context(), db, middleware.CartIdentity(c))
	if err != nil {
		logging.FromGin(c).Error("cart_resolve_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return nil, false
	}
	return cart, true
}

// GET /cart/
func ViewCart(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, ok := requestCart(c, db)
		if !ok {
			return
		}
		items, err := LoadItems(c.Request.Context(), db, cart.ID)
		if err != nil {
			logging.FromGin(c).Error("cart_items_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart items"})
			return
		}

		middleware.Respond(c, http.StatusOK, gin.H{"cart": Summarize(items)})
	}
}

// POST /add-to-cart/:slug/
func AddToCart(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := productBySlug(c, db)
		if !ok {
			return
		}
		cart, ok := requestCart(c, db)
		if !ok {
			return
		}

		if err := AddProduct(c.Request.Context(), db, cart.ID, product.ID); err != nil {
			logging.FromGin(c).Error("cart_add_failed", zap.Uint("product_id", product.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add item to cart"})
			return
		}

		middleware.AddFlash(c, middleware.FlashSuccess, fmt.Sprintf("%s added to cart.", product.Name))
		middleware.Redirect(c, cartPath)
	}
}

// POST /cart/update/:slug/ (form field action=increase|decrease)
func UpdateCartQuantity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := productBySlug(c, db)
		if !ok {
			return
		}
		cart, ok := requestCart(c, db)
		if !ok {
			return
		}

		change, err := AdjustQuantity(c.Request.Context(), db, cart.ID, product.ID, Action(c.PostForm("action")))
		switch {
		case errors.Is(err, ErrItemNotInCart):
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
			return
		case errors.Is(err, ErrUnknownAction):
			// Nothing to do; same as the page being resubmitted without a button.
			middleware.Redirect(c, cartPath)
			return
		case err != nil:
			logging.FromGin(c).Error("cart_update_failed", zap.Uint("product_id", product.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart item"})
			return
		}

		var message string
		switch change {
		case QuantityIncreased:
			message = fmt.Sprintf("Increased quantity for %s.", product.Name)
		case QuantityDecreased:
			message = fmt.Sprintf("Decreased quantity for %s.", product.Name)
		case ItemRemoved:
			message = fmt.Sprintf("%s removed from cart.", product.Name)
		}
		middleware.AddFlash(c, middleware.FlashSuccess, message)
		middleware.Redirect(c, cartPath)
	}
}

// POST /cart/remove/:slug/
func RemoveFromCart(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		product, ok := productBySlug(c, db)
		if !ok {
			return
		}
		cart, ok := requestCart(c, db)
		if !ok {
			return
		}

		err := RemoveItem(c.Request.Context(), db, cart.ID, product.ID)
		if errors.Is(err, ErrItemNotInCart) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
			return
		}
		if err != nil {
			logging.FromGin(c).Error("cart_remove_failed", zap.Uint("product_id", product.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete item"})
			return
		}

		middleware.AddFlash(c, middleware.FlashSuccess, fmt.Sprintf("%s removed from cart.", product.Name))
		middleware.Redirect(c, cartPath)
	}
}

// POST /cart/clear/
func ClearCart(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := FindCart(c.Request.Context(), db, middleware.CartIdentity(c))
		if err == nil {
			err = ClearItems(c.Request.Context(), db, cart.ID)
		}
		if err != nil && !errors.Is(err, ErrCartNotFound) {
			logging.FromGin(c).Error("cart_clear_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
			return
		}

		middleware.AddFlash(c, middleware.FlashSuccess, "Cart cleared.")
		middleware.Redirect(c, cartPath)
	}
}

// GET /admin/users/:id/cart
func GetUserCart(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}

		cart, err := FindCart(c.Request.Context(), db, identity.ForUser(uint(userID)))
		if errors.Is(err, ErrCartNotFound) {
			c.JSON(http.StatusOK, Summarize(nil))
			return
		}
		if err != nil {
			logging.FromGin(c).Error("admin_cart_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user cart"})
			return
		}

		items, err := LoadItems(c.Request.Context(), db, cart.ID)
		if err != nil {
			logging.FromGin(c).Error("admin_cart_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart items"})
			return
		}
		c.JSON(http.StatusOK, Summarize(items))
	}
}
