package cartControllers

import (
	"context"
	"errors"
	"time"

	"github.com/junaidrashid-git/tavern-api/identity"
	"github.com/junaidrashid-git/tavern-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoIdentity     = errors.New("cart owner unknown")
	ErrCartNotFound   = errors.New("cart not found")
	ErrItemNotInCart  = errors.New("item not in cart")
	ErrUnknownAction  = errors.New("unknown cart action")
	ErrProductMissing = errors.New("product not found")
)

type Action string

const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
)

// Change tells the caller what a quantity update did to the line.
type Change int

const (
	QuantityIncreased Change = iota
	QuantityDecreased
	ItemRemoved
)

func ownerScope(db *gorm.DB, id identity.CartIdentity) (*gorm.DB, error) {
	if uid, ok := id.UserID(); ok {
		return db.Where("user_id = ?", uid), nil
	}
	if token, ok := id.SessionToken(); ok {
		return db.Where("session_token = ?", token), nil
	}
	return nil, ErrNoIdentity
}

// FindCart returns the identity's cart without creating one.
func FindCart(ctx context.Context, db *gorm.DB, id identity.CartIdentity) (*models.Cart, error) {
	scoped, err := ownerScope(db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	var cart models.Cart
	err = scoped.First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// ResolveCart returns the identity's cart, creating it on first use. Two
// racing requests both end up with the same row: the loser's insert is
// dropped by the unique owner index and it re-reads.
func ResolveCart(ctx context.Context, db *gorm.DB, id identity.CartIdentity) (*models.Cart, error) {
	cart, err := FindCart(ctx, db, id)
	if !errors.Is(err, ErrCartNotFound) {
		return cart, err
	}

	fresh := models.Cart{}
	if uid, ok := id.UserID(); ok {
		fresh.UserID = &uid
	} else if token, ok := id.SessionToken(); ok {
		fresh.SessionToken = &token
	}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, err
	}
	return FindCart(ctx, db, id)
}

// LoadItems returns the cart lines with their products, oldest first.
func LoadItems(ctx context.Context, db *gorm.DB, cartID uint) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := db.WithContext(ctx).Preload("Product").
		Where("cart_id = ?", cartID).Order("id").Find(&items).Error
	return items, err
}

// AddProduct inserts the line with quantity 1 or bumps an existing line by 1
// in a single statement.
func AddProduct(ctx context.Context, db *gorm.DB, cartID, productID uint) error {
	now := time.Now()
	item := models.CartItem{CartID: cartID, ProductID: productID, Quantity: 1, AddedAt: now}
	return db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("cart_items.quantity + 1"),
			"added_at": now,
		}),
	}).Create(&item).Error
}

// AdjustQuantity applies increase or decrease. Decreasing a line at quantity
// 1 deletes it, so a stored quantity never drops below 1.
func AdjustQuantity(ctx context.Context, db *gorm.DB, cartID, productID uint, action Action) (Change, error) {
	db = db.WithContext(ctx)
	line := db.Model(&models.CartItem{}).Where("cart_id = ? AND product_id = ?", cartID, productID)

	switch action {
	case ActionIncrease:
		res := line.UpdateColumn("quantity", gorm.Expr("quantity + 1"))
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, ErrItemNotInCart
		}
		return QuantityIncreased, nil

	case ActionDecrease:
		res := db.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ? AND quantity > 1", cartID, productID).
			UpdateColumn("quantity", gorm.Expr("quantity - 1"))
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected > 0 {
			return QuantityDecreased, nil
		}
		if err := RemoveItem(ctx, db, cartID, productID); err != nil {
			return 0, err
		}
		return ItemRemoved, nil

	default:
		return 0, ErrUnknownAction
	}
}

// RemoveItem deletes the line whatever its quantity.
func RemoveItem(ctx context.Context, db *gorm.DB, cartID, productID uint) error {
	res := db.WithContext(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID).Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemNotInCart
	}
	return nil
}

// ClearItems empties the cart.
func ClearItems(ctx context.Context, db *gorm.DB, cartID uint) error {
	return db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}
