package orderControllers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	cartControllers "github.com/junaidrashid-git/tavern-api/controllers/cart"
	"github.com/junaidrashid-git/tavern-api/identity"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/metrics"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/junaidrashid-git/tavern-api/notify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const PaymentIntaSend = "intasend"

var ErrCartEmpty = errors.New("cart is empty")

// -------- Request Structs --------

type CheckoutForm struct {
	FirstName    string `form:"first_name" binding:"required,max=100"`
	LastName     string `form:"last_name" binding:"required,max=100"`
	Phone        string `form:"phone" binding:"required,max=20"`
	Email        string `form:"email" binding:"omitempty,email,max=254"`
	OrderNotes   string `form:"order_notes"`
	BuildingName string `form:"building_name" binding:"max=100"`
	DoorNumber   string `form:"door_number" binding:"max=50"`
	Latitude     string `form:"latitude"`
	Longitude    string `form:"longitude"`
	Payment      string `form:"payment" binding:"max=30"`
}

// Coordinates parses the optional map pin. Blank values mean "not given".
func (f CheckoutForm) Coordinates() (lat, long decimal.NullDecimal, err error) {
	if lat, err = parseCoordinate(f.Latitude, 90); err != nil {
		return lat, long, fmt.Errorf("latitude: %w", err)
	}
	if long, err = parseCoordinate(f.Longitude, 180); err != nil {
		return lat, long, fmt.Errorf("longitude: %w", err)
	}
	return lat, long, nil
}

func parseCoordinate(raw string, limit int64) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, errors.New("not a number")
	}
	if d.Abs().GreaterThan(decimal.NewFromInt(limit)) {
		return decimal.NullDecimal{}, fmt.Errorf("out of range ±%d", limit)
	}
	return decimal.NewNullDecimal(d.Round(6)), nil
}

// -------- Core Logic --------

// PlaceOrder snapshots the cart into an order in one transaction: the order,
// one item per cart line at the current product price, then the cart lines
// are deleted. A guest cart row goes too. Any failure leaves the cart intact.
func PlaceOrder(ctx context.Context, db *gorm.DB, owner identity.CartIdentity, form CheckoutForm) (*models.Order, error) {
	lat, long, err := form.Coordinates()
	if err != nil {
		return nil, err
	}

	cart, err := cartControllers.FindCart(ctx, db, owner)
	if errors.Is(err, cartControllers.ErrCartNotFound) {
		return nil, ErrCartEmpty
	}
	if err != nil {
		return nil, err
	}

	var order models.Order
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := cartControllers.LoadItems(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartEmpty
		}

		order = models.Order{
			FirstName:     strings.TrimSpace(form.FirstName),
			LastName:      strings.TrimSpace(form.LastName),
			Phone:         strings.TrimSpace(form.Phone),
			Email:         strings.TrimSpace(form.Email),
			OrderNotes:    form.OrderNotes,
			BuildingName:  form.BuildingName,
			DoorNumber:    form.DoorNumber,
			Latitude:      lat,
			Longitude:     long,
			PaymentMethod: form.Payment,
			TotalAmount:   cartControllers.CartTotal(items),
			Status:        models.OrderStatusPending,
		}
		if uid, ok := owner.UserID(); ok {
			order.UserID = &uid
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			orderItems = append(orderItems, models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Product:   item.Product,
				Quantity:  item.Quantity,
				Price:     item.Product.Price,
			})
		}
		if err := tx.Omit(clause.Associations).Create(&orderItems).Error; err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		order.Items = orderItems

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if owner.IsGuest() {
			if err := tx.Delete(&models.Cart{}, cart.ID).Error; err != nil {
				return fmt.Errorf("delete guest cart: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func paymentLabel(method string) string {
	switch method {
	case PaymentIntaSend:
		return method
	case "":
		return "none"
	default:
		return "other"
	}
}

// -------- Handlers --------

// checkoutCart loads the visitor's cart lines. It writes the empty-cart
// redirect or the 500 itself and reports whether checkout may continue.
func checkoutCart(c *gin.Context, db *gorm.DB) ([]models.CartItem, bool) {
	ctx := c.Request.Context()
	var items []models.CartItem
	cart, err := cartControllers.FindCart(ctx, db, middleware.CartIdentity(c))
	if err == nil {
		items, err = cartControllers.LoadItems(ctx, db, cart.ID)
	}
	if err != nil && !errors.Is(err, cartControllers.ErrCartNotFound) {
		logging.FromGin(c).Error("checkout_cart_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
		return nil, false
	}
	if len(items) == 0 {
		middleware.AddFlash(c, middleware.FlashWarning, "Your cart is empty.")
		middleware.Redirect(c, "/")
		return nil, false
	}
	return items, true
}

// GET /checkout/
func CheckoutPage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, ok := checkoutCart(c, db)
		if !ok {
			return
		}
		middleware.Respond(c, http.StatusOK, gin.H{"cart": cartControllers.Summarize(items)})
	}
}

// POST /checkout/
func SubmitCheckout(db *gorm.DB, notifier *notify.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// An empty cart wins over form errors.
		if _, ok := checkoutCart(c, db); !ok {
			return
		}

		var form CheckoutForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid checkout details", "fields": middleware.BindingErrors(err)})
			return
		}
		if _, _, err := form.Coordinates(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid checkout details", "fields": gin.H{"location": err.Error()}})
			return
		}

		owner := middleware.CartIdentity(c)
		order, err := PlaceOrder(c.Request.Context(), db, owner, form)
		if errors.Is(err, ErrCartEmpty) {
			middleware.AddFlash(c, middleware.FlashWarning, "Your cart is empty.")
			middleware.Redirect(c, "/")
			return
		}
		if err != nil {
			logging.FromGin(c).Error("checkout_failed", zap.String("owner", owner.String()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
			return
		}

		if owner.IsGuest() {
			middleware.ForgetCartToken(c)
		}
		metrics.OrdersPlaced.WithLabelValues(paymentLabel(order.PaymentMethod)).Inc()
		logging.FromGin(c).Info("order_placed",
			zap.Uint("order_id", order.ID),
			zap.String("total", order.TotalAmount.StringFixed(2)),
			zap.String("payment_method", order.PaymentMethod),
		)
		if notifier != nil {
			notifier.OrderPlaced(c.Request.Context(), order)
		}

		if order.PaymentMethod == PaymentIntaSend {
			middleware.Redirect(c, fmt.Sprintf("/checkout/intasend/%d/", order.ID))
			return
		}
		middleware.AddFlash(c, middleware.FlashSuccess, "Order placed successfully!")
		middleware.Redirect(c, "/orders/")
	}
}
