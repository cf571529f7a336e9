package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"           // Placed, no payment attempt yet
	OrderStatusPaymentInitiated OrderStatus = "payment_initiated" // STK push accepted by the gateway
	OrderStatusPaid             OrderStatus = "paid"              // Gateway reported COMPLETE
	OrderStatusPaymentFailed    OrderStatus = "payment_failed"    // Gateway reported FAILED
	OrderStatusDelivered        OrderStatus = "delivered"         // Marked by staff
)

type Order struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	UserID        *uint               `gorm:"index" json:"user_id"` // Nil for guest checkouts
	User          *User               `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
	FirstName     string              `gorm:"size:100;not null" json:"first_name"`
	LastName      string              `gorm:"size:100;not null" json:"last_name"`
	Phone         string              `gorm:"size:20;not null" json:"phone"`
	Email         string              `gorm:"size:254" json:"email"`
	OrderNotes    string              `gorm:"type:text" json:"order_notes"`
	BuildingName  string              `gorm:"size:100" json:"building_name"`
	DoorNumber    string              `gorm:"size:50" json:"door_number"`
	Latitude      decimal.NullDecimal `gorm:"type:decimal(9,6)" json:"latitude"`
	Longitude     decimal.NullDecimal `gorm:"type:decimal(9,6)" json:"longitude"`
	PaymentMethod string              `gorm:"size:30" json:"payment_method"` // e.g. "intasend", "cod"
	TotalAmount   decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status        OrderStatus         `gorm:"type:VARCHAR(20);not null;index" json:"status"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderItem snapshots the unit price at checkout time.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Product   Product         `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}

func (i OrderItem) TotalPrice() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ParseOrderStatus accepts any known status, case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case OrderStatusPending, OrderStatusPaymentInitiated, OrderStatusPaid, OrderStatusPaymentFailed, OrderStatusDelivered:
		return status, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}
