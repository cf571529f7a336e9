package models

import (
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type Category struct {
	ID            uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string        `gorm:"size:100;not null" json:"name"`
	Slug          string        `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	SubCategories []SubCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"subcategories,omitempty"`
}

// SubCategory belongs to exactly one Category. GroupName buckets
// subcategories into the mega-menu columns.
type SubCategory struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID uint      `gorm:"not null;index" json:"category_id"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	GroupName  *string   `gorm:"size:100" json:"group_name"`
	Slug       string    `gorm:"size:120;uniqueIndex;not null" json:"slug"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.Slug == "" {
		c.Slug = slug.Make(c.Name)
	}
	return nil
}

func (s *SubCategory) BeforeCreate(tx *gorm.DB) error {
	if s.Slug == "" {
		s.Slug = slug.Make(s.Name)
	}
	return nil
}

// SubCategoryOrder sorts subcategories by group, then name.
func SubCategoryOrder(db *gorm.DB) *gorm.DB {
	return db.Order("group_name").Order("name")
}
