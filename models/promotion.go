package models

import (
	"time"

	"gorm.io/gorm"
)

// Promotion dates are whole days; both ends are inclusive.
type Promotion struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Title              string    `gorm:"size:200;not null" json:"title"`
	Description        string    `gorm:"type:text" json:"description"`
	DiscountPercentage uint      `gorm:"not null" json:"discount_percentage"`
	StartDate          time.Time `gorm:"type:date;not null;index" json:"start_date"`
	EndDate            time.Time `gorm:"type:date;not null;index" json:"end_date"`
	Active             bool      `gorm:"not null;index" json:"active"`
}

func (p *Promotion) BeforeSave(tx *gorm.DB) error {
	p.StartDate = DateOnly(p.StartDate)
	p.EndDate = DateOnly(p.EndDate)
	return nil
}

// VisibleOn reports whether the promotion should be shown on the given day.
func (p *Promotion) VisibleOn(day time.Time) bool {
	d := DateOnly(day)
	return p.Active && !DateOnly(p.StartDate).After(d) && !DateOnly(p.EndDate).Before(d)
}

// DateOnly truncates t to midnight UTC of its calendar day in t's location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
