package routes

import (
	"github.com/gin-gonic/gin"
	orderControllers "github.com/junaidrashid-git/tavern-api/controllers/order"
	"github.com/junaidrashid-git/tavern-api/middleware"
)

func SetupOrderRoutes(site *gin.RouterGroup, deps Dependencies) {
	// Checkout turns the cart into a pending order
	site.GET("/checkout/", orderControllers.CheckoutPage(deps.DB))
	site.POST("/checkout/", orderControllers.SubmitCheckout(deps.DB, deps.Notifier))

	// Order history for signed-in customers
	site.GET("/orders/",
		middleware.RequireLogin("Please log in to view your orders."),
		orderControllers.OrderHistory(deps.DB),
	)

	// websocket endpoint for live payment status on the waiting page
	site.GET("/checkout/payment-wait/:order_id/ws", orderControllers.OrderStatusSocket(deps.DB, deps.Hub))
}
