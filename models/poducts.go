package models

import (
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductFeature string

const (
	FeatureNew     ProductFeature = "new"
	FeaturePopular ProductFeature = "popular"
)

type Product struct {
	ID            uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string              `gorm:"size:200;not null" json:"name"`
	CategoryID    *uint               `gorm:"index" json:"category_id"`
	Category      *Category           `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	SubCategoryID *uint               `gorm:"index" json:"subcategory_id"`
	SubCategory   *SubCategory        `gorm:"foreignKey:SubCategoryID;constraint:OnDelete:SET NULL" json:"subcategory,omitempty"`
	Description   string              `gorm:"type:text" json:"description"`
	Price         decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"price"`
	OldPrice      decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"old_price"` // Pre-discount price, optional
	Image         string              `json:"image"`
	Country       string              `gorm:"size:100" json:"country"`
	Feature       *ProductFeature     `gorm:"size:20;index" json:"feature"`
	Slug          string              `gorm:"size:220;uniqueIndex;not null" json:"slug"`
	CreatedAt     time.Time           `json:"created_at"`

	Discount int64 `gorm:"-" json:"discount_percentage"` // Filled by AfterFind
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.Slug == "" {
		p.Slug = slug.Make(p.Name)
	}
	return nil
}

func (p *Product) AfterFind(tx *gorm.DB) error {
	p.Discount = p.DiscountPercentage()
	return nil
}

// DiscountPercentage is the whole-number percentage off OldPrice, rounded
// down. It is zero unless OldPrice is set and greater than Price.
func (p *Product) DiscountPercentage() int64 {
	if !p.OldPrice.Valid || !p.OldPrice.Decimal.GreaterThan(p.Price) {
		return 0
	}
	old := p.OldPrice.Decimal
	return old.Sub(p.Price).Mul(decimal.NewFromInt(100)).Div(old).Floor().IntPart()
}

// HasFeature reports whether the product carries the given feature flag.
func (p *Product) HasFeature(f ProductFeature) bool {
	return p.Feature != nil && *p.Feature == f
}
