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

// MergeGuestCart moves a guest session's lines into the user's cart when they
// sign in. Quantities add up for products present in both. The guest cart is
// deleted afterwards.
func MergeGuestCart(ctx context.Context, db *gorm.DB, sessionToken string, userID uint) error {
	guestID := identity.ForSession(sessionToken)
	if !guestID.Valid() {
		return nil
	}
	guest, err := FindCart(ctx, db, guestID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	userCart, err := ResolveCart(ctx, db, identity.ForUser(userID))
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lines []models.CartItem
		if err := tx.Where("cart_id = ?", guest.ID).Order("id").Find(&lines).Error; err != nil {
			return err
		}

		now := time.Now()
		for _, line := range lines {
			moved := models.CartItem{
				CartID:    userCart.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				AddedAt:   now,
			}
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"quantity": gorm.Expr("cart_items.quantity + excluded.quantity"),
					"added_at": now,
				}),
			}).Create(&moved).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("cart_id = ?", guest.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Cart{}, guest.ID).Error
	})
}
