package productcontroller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/junaidrashid-git/tavern-api/cache"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// productForm carries staff edits. Nil fields were not submitted; an empty
// string clears an optional field.
type productForm struct {
	Name          *string `form:"name" json:"name"`
	Slug          *string `form:"slug" json:"slug"`
	Description   *string `form:"description" json:"description"`
	Price         *string `form:"price" json:"price"`
	OldPrice      *string `form:"old_price" json:"old_price"`
	Image         *string `form:"image" json:"image"`
	Country       *string `form:"country" json:"country"`
	Feature       *string `form:"feature" json:"feature"`
	CategoryID    *string `form:"category_id" json:"category_id"`
	SubCategoryID *string `form:"subcategory_id" json:"subcategory_id"`
}

func (f productForm) apply(db *gorm.DB, p *models.Product) error {
	if f.Name != nil {
		name := strings.TrimSpace(*f.Name)
		if name == "" {
			return errors.New("name cannot be empty")
		}
		p.Name = name
	}
	if f.Slug != nil {
		p.Slug = slug.Make(*f.Slug)
	}
	if f.Description != nil {
		p.Description = *f.Description
	}
	if f.Price != nil {
		price, err := parseMoney(*f.Price)
		if err != nil {
			return fmt.Errorf("invalid price: %w", err)
		}
		p.Price = price
	}
	if f.OldPrice != nil {
		if strings.TrimSpace(*f.OldPrice) == "" {
			p.OldPrice = decimal.NullDecimal{}
		} else {
			old, err := parseMoney(*f.OldPrice)
			if err != nil {
				return fmt.Errorf("invalid old_price: %w", err)
			}
			p.OldPrice = decimal.NewNullDecimal(old)
		}
	}
	if f.Image != nil {
		p.Image = strings.TrimSpace(*f.Image)
	}
	if f.Country != nil {
		p.Country = strings.TrimSpace(*f.Country)
	}
	if f.Feature != nil {
		feature, err := parseFeature(*f.Feature)
		if err != nil {
			return err
		}
		p.Feature = feature
	}
	if f.CategoryID != nil {
		id, err := parseOptionalID(db, &models.Category{}, *f.CategoryID)
		if err != nil {
			return fmt.Errorf("invalid category_id: %w", err)
		}
		p.CategoryID = id
		p.Category = nil
	}
	if f.SubCategoryID != nil {
		id, err := parseOptionalID(db, &models.SubCategory{}, *f.SubCategoryID)
		if err != nil {
			return fmt.Errorf("invalid subcategory_id: %w", err)
		}
		p.SubCategoryID = id
		p.SubCategory = nil
	}
	return nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("must not be negative")
	}
	return d.Round(2), nil
}

func parseFeature(s string) (*models.ProductFeature, error) {
	switch f := models.ProductFeature(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "none":
		return nil, nil
	case models.FeatureNew, models.FeaturePopular:
		return &f, nil
	default:
		return nil, fmt.Errorf("unknown feature %q", s)
	}
}

// parseOptionalID resolves an id that must exist in model's table. Empty clears it.
func parseOptionalID(db *gorm.DB, model any, s string) (*uint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id64, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := db.Model(model).Where("id = ?", id64).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%d does not exist", id64)
	}
	id := uint(id64)
	return &id, nil
}

// CreateProduct adds a product to the catalog. name and price are required.
func CreateProduct(db *gorm.DB, listings cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form productForm
		if err := c.ShouldBind(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
			return
		}
		if form.Name == nil || form.Price == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and price are required"})
			return
		}

		var product models.Product
		if err := form.apply(db, &product); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := db.Omit("Category", "SubCategory").Create(&product).Error; err != nil {
			logging.FromGin(c).Error("product_create_failed", zap.Error(err))
			c.JSON(http.StatusConflict, gin.H{"error": "Failed to create product", "details": err.Error()})
			return
		}

		invalidateListings(c, listings)
		product.Discount = product.DiscountPercentage()
		c.JSON(http.StatusCreated, product)
	}
}
