package routes

import (
	"github.com/gin-gonic/gin"
	cartControllers "github.com/junaidrashid-git/tavern-api/controllers/cart"
	feedbackControllers "github.com/junaidrashid-git/tavern-api/controllers/feedback"
	orderControllers "github.com/junaidrashid-git/tavern-api/controllers/order"
	productcontroller "github.com/junaidrashid-git/tavern-api/controllers/product"
	userControllers "github.com/junaidrashid-git/tavern-api/controllers/user"
	"github.com/junaidrashid-git/tavern-api/middleware"
)

// SetupAdminRoutes registers all "/admin/*" endpoints. Requires API-Key middleware.
func SetupAdminRoutes(r *gin.Engine, deps Dependencies) {
	db := deps.DB
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.ValidateAPIKey(deps.AdminAPIKey))
	{
		// ─────────── User Management ───────────
		adminGroup.GET("/users", userControllers.GetAllUsers(db))
		adminGroup.GET("/users/:id/cart", cartControllers.GetUserCart(db))

		// ─────────── Product Management ───────────
		productAdmin := adminGroup.Group("/products")
		{
			productAdmin.POST("", productcontroller.CreateProduct(db, deps.Listings))
			productAdmin.PUT("/:id", productcontroller.UpdateProduct(db, deps.Listings))
			productAdmin.DELETE("/:id", productcontroller.DeleteProduct(db, deps.Listings))
			productAdmin.POST("/import", productcontroller.ImportProductsFromExcel(db, deps.Listings))
			productAdmin.GET("/export", productcontroller.ExportProductsToExcel(db))
		}

		// ─────────── Category Management ───────────
		categoryAdmin := adminGroup.Group("/categories")
		{
			categoryAdmin.POST("", productcontroller.CreateCategory(db, deps.Listings))
			categoryAdmin.POST("/:id/subcategories", productcontroller.CreateSubCategory(db, deps.Listings))
			categoryAdmin.GET("", productcontroller.GetAllCategories(db))
			categoryAdmin.DELETE("/:id", productcontroller.DeleteCategory(db, deps.Listings))
		}

		// ─────────── Orders ───────────
		orderAdmin := adminGroup.Group("/orders")
		{
			orderAdmin.GET("", orderControllers.GetAllOrdersHandler(db))
			orderAdmin.GET("/export", orderControllers.ExportOrdersToExcel(db))
			orderAdmin.GET("/:id", orderControllers.GetOrderByIDHandler(db))
			orderAdmin.PUT("/:id/status", orderControllers.UpdateOrderStatusHandler(db, deps.Notifier, deps.Hub))
		}

		adminGroup.POST("/promotions", feedbackControllers.CreatePromotion(db))
	}
}
