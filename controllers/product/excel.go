package productcontroller

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/junaidrashid-git/tavern-api/cache"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Spreadsheet layout shared by import and export.
var productSheetHeaders = []string{
	"Slug", "Name", "Description", "Price", "OldPrice",
	"Image", "Country", "Feature", "CategorySlug", "SubCategorySlug",
}

type ImportResult struct {
	Created int      `json:"created_count"`
	Updated int      `json:"updated_count"`
	Skipped int      `json:"skipped_count"`
	Errors  []string `json:"errors,omitempty"`
}

var ErrEmptySheet = errors.New("excel file is empty or missing header row")

// ImportProducts upserts one product per data row, matched by slug (derived
// from the name when the slug cell is blank). Bad rows are skipped and reported.
// A database error rolls back the whole import.
func ImportProducts(db *gorm.DB, r io.ReaderAt, size int64) (*ImportResult, error) {
	xlFile, err := xlsx.OpenReaderAt(r, size)
	if err != nil {
		return nil, fmt.Errorf("parse excel file: %w", err)
	}
	if len(xlFile.Sheets) == 0 || xlFile.Sheets[0].MaxRow < 2 {
		return nil, ErrEmptySheet
	}

	var result *ImportResult
	err = db.Transaction(func(tx *gorm.DB) error {
		result, err = importRows(tx, xlFile.Sheets[0])
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func importRows(tx *gorm.DB, sheet *xlsx.Sheet) (*ImportResult, error) {
	result := &ImportResult{}
	categories := map[string]*uint{}
	subcategories := map[string]*uint{}

	for i := 1; i < sheet.MaxRow; i++ {
		row := sheet.Rows[i]
		if row == nil {
			continue
		}
		get := func(index int) string {
			if index < len(row.Cells) {
				return strings.TrimSpace(row.Cells[index].String())
			}
			return ""
		}

		name := get(1)
		if name == "" {
			result.Skipped++
			continue
		}
		productSlug := slug.Make(get(0))
		if productSlug == "" {
			productSlug = slug.Make(name)
		}

		var product models.Product
		err := tx.Where("slug = ?", productSlug).First(&product).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		fields := []string{get(2), get(3), get(4), get(5), get(6), get(7)}
		form := productForm{
			Name:        &name,
			Description: &fields[0],
			Price:       &fields[1],
			OldPrice:    &fields[2],
			Image:       &fields[3],
			Country:     &fields[4],
			Feature:     &fields[5],
		}
		if err := form.apply(tx, &product); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		product.Slug = productSlug

		catID, err := lookupSlug(tx, &models.Category{}, get(8), categories)
		if err == nil {
			product.CategoryID = catID
			product.SubCategoryID, err = lookupSlug(tx, &models.SubCategory{}, get(9), subcategories)
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}

		if exists {
			if err := tx.Omit("Category", "SubCategory").Save(&product).Error; err != nil {
				return nil, err
			}
			result.Updated++
		} else {
			if err := tx.Omit("Category", "SubCategory").Create(&product).Error; err != nil {
				return nil, err
			}
			result.Created++
		}
	}
	return result, nil
}

func lookupSlug(db *gorm.DB, model any, s string, seen map[string]*uint) (*uint, error) {
	if s == "" {
		return nil, nil
	}
	if id, ok := seen[s]; ok {
		return id, nil
	}
	var ids []uint
	if err := db.Model(model).Where("slug = ?", s).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("unknown slug %q", s)
	}
	seen[s] = &ids[0]
	return &ids[0], nil
}

func ImportProductsFromExcel(db *gorm.DB, listings cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		excelFileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Excel file is required"})
			return
		}

		file, err := excelFileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open Excel file"})
			return
		}
		defer file.Close()

		result, err := ImportProducts(db, file, excelFileHeader.Size)
		if errors.Is(err, ErrEmptySheet) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Excel file is empty or missing header row"})
			return
		}
		if err != nil {
			logging.FromGin(c).Error("product_import_failed", zap.Error(err))
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to import Excel file"})
			return
		}

		invalidateListings(c, listings)
		c.JSON(http.StatusOK, gin.H{
			"message":       "Import completed",
			"created_count": result.Created,
			"updated_count": result.Updated,
			"skipped_count": result.Skipped,
			"errors":        result.Errors,
		})
	}
}
