package productcontroller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/cache"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/middleware"
	"github.com/junaidrashid-git/tavern-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ViewPopular = "popular"

	// Homepage teaser size for the popular and new strips.
	teaserSize = 6

	listingCacheTTL = time.Minute
)

// Cache keys for the unfiltered listings.
var listingCacheKeys = []string{"listing:home", "listing:popular"}

var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrSubCategoryNotFound = errors.New("subcategory not found")
)

type ListingQuery struct {
	CategorySlug    string
	SubCategorySlug string
	View            string
}

func (q ListingQuery) filtered() bool {
	return q.CategorySlug != "" || q.SubCategorySlug != ""
}

func (q ListingQuery) cacheKey() (string, bool) {
	if q.filtered() {
		return "", false
	}
	if q.View == ViewPopular {
		return listingCacheKeys[1], true
	}
	return listingCacheKeys[0], true
}

// Listing is the catalog page payload. A nil slice means the section is not
// shown; an empty slice means it is shown with nothing in it.
type Listing struct {
	Products        []models.Product    `json:"products"`
	Category        *models.Category    `json:"category"`
	SubCategory     *models.SubCategory `json:"subcategory"`
	PopularProducts []models.Product    `json:"popular_products"`
	NewProducts     []models.Product    `json:"new_products"`
	ViewFilter      string              `json:"view_filter"`
}

// BuildListing applies the storefront listing rules:
//   - category and/or subcategory given: the filtered grid only
//   - no filter, popular view: every popular product, nothing else
//   - no filter: six popular and six newest "new" products, grid withheld
func BuildListing(ctx context.Context, db *gorm.DB, q ListingQuery) (*Listing, error) {
	db = db.WithContext(ctx)
	listing := &Listing{ViewFilter: q.View}

	if q.CategorySlug != "" {
		var category models.Category
		err := db.Preload("SubCategories", models.SubCategoryOrder).
			Where("slug = ?", q.CategorySlug).First(&category).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		if err != nil {
			return nil, err
		}
		listing.Category = &category
	}

	if q.SubCategorySlug != "" {
		var sub models.SubCategory
		err := db.Where("slug = ?", q.SubCategorySlug).First(&sub).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubCategoryNotFound
		}
		if err != nil {
			return nil, err
		}
		listing.SubCategory = &sub
	}

	if q.filtered() {
		query := db.Model(&models.Product{})
		if listing.Category != nil {
			query = query.Where("category_id = ?", listing.Category.ID)
		}
		if listing.SubCategory != nil {
			query = query.Where("sub_category_id = ?", listing.SubCategory.ID)
		}
		products := []models.Product{}
		if err := query.Order("id").Find(&products).Error; err != nil {
			return nil, err
		}
		listing.Products = products
		return listing, nil
	}

	popular := []models.Product{}
	popularQuery := db.Where("feature = ?", models.FeaturePopular).Order("id")
	if q.View != ViewPopular {
		popularQuery = popularQuery.Limit(teaserSize)
	}
	if err := popularQuery.Find(&popular).Error; err != nil {
		return nil, err
	}
	listing.PopularProducts = popular

	if q.View != ViewPopular {
		fresh := []models.Product{}
		if err := db.Where("feature = ?", models.FeatureNew).
			Order("created_at DESC").Order("id DESC").
			Limit(teaserSize).Find(&fresh).Error; err != nil {
			return nil, err
		}
		listing.NewProducts = fresh
	}

	return listing, nil
}

// ListProducts serves /, /category/:slug/ and /category/:slug/:sub_slug/.
// ?filter=popular selects the popular view; ?view=popular is accepted too.
func ListProducts(db *gorm.DB, listings cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := c.Query("filter")
		if view == "" {
			view = c.Query("view")
		}
		q := ListingQuery{
			CategorySlug:    c.Param("slug"),
			SubCategorySlug: c.Param("sub_slug"),
			View:            view,
		}
		ctx := c.Request.Context()
		logger := logging.FromGin(c)

		key, cacheable := q.cacheKey()
		if cacheable {
			var cached Listing
			found, err := listings.GetJSON(ctx, key, &cached)
			if err != nil {
				logger.Warn("listing_cache_read_failed", zap.Error(err))
			}
			if found {
				cached.ViewFilter = view
				respondListing(c, &cached)
				return
			}
		}

		listing, err := BuildListing(ctx, db, q)
		switch {
		case errors.Is(err, ErrCategoryNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		case errors.Is(err, ErrSubCategoryNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Subcategory not found"})
			return
		case err != nil:
			logger.Error("listing_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}

		if cacheable {
			if err := listings.SetJSON(ctx, key, listing, listingCacheTTL); err != nil {
				logger.Warn("listing_cache_write_failed", zap.Error(err))
			}
		}
		respondListing(c, listing)
	}
}

func respondListing(c *gin.Context, l *Listing) {
	middleware.Respond(c, http.StatusOK, gin.H{
		"products":         l.Products,
		"category":         l.Category,
		"subcategory":      l.SubCategory,
		"popular_products": l.PopularProducts,
		"new_products":     l.NewProducts,
		"view_filter":      l.ViewFilter,
	})
}

// invalidateListings drops cached listings after a catalog change.
func invalidateListings(c *gin.Context, listings cache.Cache) {
	if err := listings.Delete(c.Request.Context(), listingCacheKeys...); err != nil {
		logging.FromGin(c).Warn("listing_cache_invalidate_failed", zap.Error(err))
	}
}
