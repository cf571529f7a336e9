package orderControllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/junaidrashid-git/tavern-api/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order not found")

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// -------- Helpers --------

// ParseOrderID reads a positive numeric order id from a route parameter.
func ParseOrderID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Preload("Items.Product")
}

// LoadOrder returns an order with its items and their products.
func LoadOrder(ctx context.Context, db *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	err := withItems(db.WithContext(ctx)).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UserOrders lists a user's orders, newest first.
func UserOrders(ctx context.Context, db *gorm.DB, userID uint) ([]models.Order, error) {
	orders := []models.Order{}
	err := withItems(db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error
	return orders, err
}

// SetStatus overwrites the order status. The last writer wins.
func SetStatus(ctx context.Context, db *gorm.DB, id uint, status models.OrderStatus) (*models.Order, error) {
	res := db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrOrderNotFound
	}
	return LoadOrder(ctx, db, id)
}

// -------- Handlers --------

// GET /orders/ (signed-in users only)
func OrderHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := middleware.CurrentUserID(c)
		orders, err := UserOrders(c.Request.Context(), db, userID)
		if err != nil {
			logging.FromGin(c).Error("order_history_failed", zap.Uint("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		middleware.Respond(c, http.StatusOK, gin.H{"orders": orders})
	}
}

// GET /admin/orders
func GetAllOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := withItems(db.WithContext(c.Request.Context())).Order("created_at DESC").Order("id DESC")
		if raw := c.Query("status"); raw != "" {
			status, err := models.ParseOrderStatus(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			q = q.Where("status = ?", status)
		}

		orders := []models.Order{}
		if err := q.Find(&orders).Error; err != nil {
			logging.FromGin(c).Error("orders_list_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// GET /admin/orders/:id
func GetOrderByIDHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ParseOrderID(c.Param("id"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
			return
		}
		order, err := LoadOrder(c.Request.Context(), db, id)
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		if err != nil {
			logging.FromGin(c).Error("order_fetch_failed", zap.Uint("order_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// PUT /admin/orders/:id/status
func UpdateOrderStatusHandler(db *gorm.DB, notifier *notify.Notifier, hub *StatusHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := ParseOrderID(c.Param("id"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
			return
		}
		var req UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status, err := models.ParseOrderStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		order, err := SetStatus(c.Request.Context(), db, id, status)
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		if err != nil {
			logging.FromGin(c).Error("order_status_update_failed", zap.Uint("order_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update order status"})
			return
		}

		logging.FromGin(c).Info("order_status_updated", zap.Uint("order_id", id), zap.String("status", string(status)))
		if hub != nil {
			hub.Broadcast(order.ID, order.Status)
		}
		if notifier != nil {
			notifier.OrderStatusChanged(c.Request.Context(), order)
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order status updated successfully", "order": order})
	}
}
