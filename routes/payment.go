package routes

import (
	"github.com/gin-gonic/gin"
	paymentControllers "github.com/junaidrashid-git/tavern-api/controllers/payment"
)

// SetupPaymentRoutes registers the IntaSend checkout pages. The webhook lives
// outside the session group and is registered in SetupRoutes.
func SetupPaymentRoutes(site *gin.RouterGroup, deps Dependencies) {
	payment := site.Group("/checkout")
	{
		payment.GET("/intasend/:order_id/", paymentControllers.PaymentPage(deps.DB))
		payment.POST("/intasend/:order_id/",
			paymentControllers.InitiatePayment(deps.DB, deps.Gateway, deps.Limiter, deps.CallbackBaseURL))
		payment.GET("/intasend/status/:order_id/", paymentControllers.PaymentStatus(deps.DB))
		payment.GET("/payment-wait/:order_id/", paymentControllers.PaymentWait(deps.DB))
	}
}
