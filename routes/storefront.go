package routes

import (
	"github.com/gin-gonic/gin"
	cartControllers "github.com/junaidrashid-git/tavern-api/controllers/cart"
	feedbackControllers "github.com/junaidrashid-git/tavern-api/controllers/feedback"
	productcontroller "github.com/junaidrashid-git/tavern-api/controllers/product"
	userControllers "github.com/junaidrashid-git/tavern-api/controllers/user"
	"github.com/junaidrashid-git/tavern-api/middleware"
)

// SetupStorefrontRoutes registers catalog, cart, rating and account pages.
func SetupStorefrontRoutes(site *gin.RouterGroup, deps Dependencies) {
	db := deps.DB

	// ──────────────── Catalog ────────────────
	site.GET("/", productcontroller.ListProducts(db, deps.Listings))
	site.GET("/category/:slug/", productcontroller.ListProducts(db, deps.Listings))
	site.GET("/category/:slug/:sub_slug/", productcontroller.ListProducts(db, deps.Listings))
	site.GET("/product/:slug/", productcontroller.GetProductDetail(db))
	site.GET("/categories/", productcontroller.GetAllCategories(db))
	site.GET("/promotions/", feedbackControllers.ListPromotions(db))

	// ──────────────── Shopping Cart ────────────────
	site.GET("/cart/", cartControllers.ViewCart(db))
	site.POST("/add-to-cart/:slug/", cartControllers.AddToCart(db))
	site.POST("/cart/update/:slug/", cartControllers.UpdateCartQuantity(db))
	site.POST("/cart/remove/:slug/", cartControllers.RemoveFromCart(db))
	site.POST("/cart/clear/", cartControllers.ClearCart(db))

	// ──────────────── Ratings ────────────────
	rateProduct := site.Group("/rate-product", middleware.RequireLogin("Please log in to rate products."))
	{
		rateProduct.GET("/:id/", feedbackControllers.RateProductPage(db))
		rateProduct.POST("/:id/", feedbackControllers.SubmitProductRating(db))
	}
	rateWebsite := site.Group("/rate-website", middleware.RequireLogin("Please log in to rate the website."))
	{
		rateWebsite.GET("/", feedbackControllers.RateWebsitePage())
		rateWebsite.POST("/", feedbackControllers.SubmitWebsiteRating(db))
	}

	// ──────────────── Account ────────────────
	account := site.Group("/account", middleware.RequireLogin("Please log in to view your account."))
	{
		account.GET("/", userControllers.GetAccount(db))
		account.PUT("/", userControllers.UpdateAccount(db))
	}
}
