package paymentControllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/cache"
	orderControllers "github.com/junaidrashid-git/tavern-api/controllers/order"
	"github.com/junaidrashid-git/tavern-api/external/intasend"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/metrics"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	referencePrefix = "ORDER-"
	WebhookPath     = "/intasend/webhook/"
)

var (
	ErrMissingPhone = errors.New("phone number is required")
	ErrAlreadyPaid  = errors.New("order already paid")
)

// An accepted charge moves an order to payment_initiated only from these.
var initiableStatuses = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusPaymentInitiated,
	models.OrderStatusPaymentFailed,
}

// Gateway pushes an M-Pesa STK prompt. *intasend.Client satisfies it.
type Gateway interface {
	ChargeMobileMoney(ctx context.Context, req intasend.ChargeRequest) (*intasend.ChargeResponse, error)
}

// OrderReference is the api_ref sent with a charge and echoed on the webhook.
func OrderReference(orderID uint) string {
	return referencePrefix + strconv.FormatUint(uint64(orderID), 10)
}

// ParseOrderReference accepts "ORDER-<id>", ignoring anything after a
// second dash.
func ParseOrderReference(ref string) (uint, bool) {
	rest, ok := strings.CutPrefix(ref, referencePrefix)
	if !ok {
		return 0, false
	}
	idPart, _, _ := strings.Cut(rest, "-")
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// InitiateCharge asks the gateway for an STK push and marks the order
// payment_initiated once accepted, unless the order was settled meanwhile.
// A rejected or failed call leaves the status alone.
func InitiateCharge(ctx context.Context, db *gorm.DB, gateway Gateway, order *models.Order, phone, callbackURL string) (*models.Order, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrMissingPhone
	}
	if order.Status == models.OrderStatusPaid || order.Status == models.OrderStatusDelivered {
		return nil, ErrAlreadyPaid
	}

	_, err := gateway.ChargeMobileMoney(ctx, intasend.ChargeRequest{
		Amount:      order.TotalAmount,
		PhoneNumber: phone,
		APIRef:      OrderReference(order.ID),
		CallbackURL: callbackURL,
	})
	if err != nil {
		return nil, err
	}

	res := db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", order.ID, initiableStatuses).
		Update("status", models.OrderStatusPaymentInitiated)
	if res.Error != nil {
		return nil, res.Error
	}
	// No row matched: the webhook settled the order while the charge was in flight.
	return orderControllers.LoadOrder(ctx, db, order.ID)
}

// CallbackURL is the webhook address given to the gateway. Without a
// configured base it is derived from the incoming request.
func CallbackURL(c *gin.Context, base string) string {
	if base != "" {
		return strings.TrimRight(base, "/") + WebhookPath
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + WebhookPath
}

func paymentPagePath(id uint) string { return fmt.Sprintf("/checkout/intasend/%d/", id) }

func waitPagePath(id uint) string { return fmt.Sprintf("/checkout/payment-wait/%d/", id) }

// loadOrder writes the 404 or 500 itself and reports whether to continue.
func loadOrder(c *gin.Context, db *gorm.DB) (*models.Order, bool) {
	id, ok := orderControllers.ParseOrderID(c.Param("order_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil, false
	}
	order, err := orderControllers.LoadOrder(c.Request.Context(), db, id)
	if errors.Is(err, orderControllers.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil, false
	}
	if err != nil {
		logging.FromGin(c).Error("order_fetch_failed", zap.Uint("order_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return nil, false
	}
	return order, true
}

// PaymentSummary is the order as shown on the payment pages. They are
// reachable by order id alone, so contact and delivery details stay out.
type PaymentSummary struct {
	ID            uint               `json:"id"`
	Status        models.OrderStatus `json:"status"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	PaymentMethod string             `json:"payment_method"`
	Items         []models.OrderItem `json:"items"`
	CreatedAt     time.Time          `json:"created_at"`
}

func summarize(order *models.Order) PaymentSummary {
	return PaymentSummary{
		ID:            order.ID,
		Status:        order.Status,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		Items:         order.Items,
		CreatedAt:     order.CreatedAt,
	}
}

// -------- Handlers --------

// GET /checkout/intasend/:order_id/
func PaymentPage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := loadOrder(c, db)
		if !ok {
			return
		}
		middleware.Respond(c, http.StatusOK, gin.H{"order": summarize(order)})
	}
}

// POST /checkout/intasend/:order_id/ (form field phone)
func InitiatePayment(db *gorm.DB, gateway Gateway, limiter cache.Limiter, callbackBase string) gin.HandlerFunc {
	if limiter == nil {
		limiter = cache.NoopLimiter{}
	}
	return func(c *gin.Context) {
		order, ok := loadOrder(c, db)
		if !ok {
			return
		}
		logger := logging.FromGin(c).With(zap.Uint("order_id", order.ID))
		retry := paymentPagePath(order.ID)

		phone := strings.TrimSpace(c.PostForm("phone"))
		if phone == "" {
			metrics.PaymentInitiations.WithLabelValues("missing_phone").Inc()
			middleware.AddFlash(c, middleware.FlashError, "Phone number is required to initiate payment.")
			middleware.Redirect(c, retry)
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), OrderReference(order.ID))
		if err != nil {
			logger.Warn("payment_rate_limit_unavailable", zap.Error(err))
		}
		if !allowed {
			metrics.PaymentInitiations.WithLabelValues("rate_limited").Inc()
			middleware.AddFlash(c, middleware.FlashWarning, "Too many payment attempts. Please wait a minute and try again.")
			middleware.Redirect(c, retry)
			return
		}

		_, err = InitiateCharge(c.Request.Context(), db, gateway, order, phone, CallbackURL(c, callbackBase))

		var apiErr *intasend.APIError
		switch {
		case err == nil:
			metrics.PaymentInitiations.WithLabelValues("accepted").Inc()
			logger.Info("payment_initiated")
			middleware.AddFlash(c, middleware.FlashInfo, "Please check your phone for the M-Pesa STK prompt.")
			middleware.Redirect(c, waitPagePath(order.ID))

		case errors.Is(err, ErrAlreadyPaid):
			middleware.AddFlash(c, middleware.FlashInfo, "This order has already been paid.")
			middleware.Redirect(c, waitPagePath(order.ID))

		case errors.Is(err, intasend.ErrInvalidResponse):
			metrics.PaymentInitiations.WithLabelValues("invalid_response").Inc()
			logger.Warn("payment_gateway_invalid_response")
			middleware.AddFlash(c, middleware.FlashError, "Payment gateway returned an invalid response. Please try again later.")
			middleware.Redirect(c, retry)

		case errors.As(err, &apiErr):
			metrics.PaymentInitiations.WithLabelValues("rejected").Inc()
			logger.Warn("payment_gateway_rejected", zap.Int("status", apiErr.StatusCode), zap.String("reason", apiErr.Message))
			middleware.AddFlash(c, middleware.FlashError, "Payment error: "+apiErr.Message)
			middleware.Redirect(c, retry)

		case errors.Is(err, intasend.ErrUnavailable):
			metrics.PaymentInitiations.WithLabelValues("unavailable").Inc()
			logger.Warn("payment_gateway_unreachable", zap.Error(err))
			middleware.AddFlash(c, middleware.FlashError, "Connection to payment gateway failed. Please try again.")
			middleware.Redirect(c, retry)

		default:
			metrics.PaymentInitiations.WithLabelValues("error").Inc()
			logger.Error("payment_initiation_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initiate payment"})
		}
	}
}

// GET /checkout/intasend/status/:order_id/
func PaymentStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := loadOrder(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": order.Status})
	}
}

// GET /checkout/payment-wait/:order_id/
func PaymentWait(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := loadOrder(c, db)
		if !ok {
			return
		}
		middleware.Respond(c, http.StatusOK, gin.H{
			"order":      summarize(order),
			"status_url": fmt.Sprintf("/checkout/intasend/status/%d/", order.ID),
			"socket_url": fmt.Sprintf("/checkout/payment-wait/%d/ws", order.ID),
		})
	}
}
