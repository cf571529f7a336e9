package orderControllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/junaidrashid-git/tavern-api/logging"
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var orderSheetHeaders = []string{
	"Order ID", "Placed At", "Customer", "Phone", "Email", "Building", "Door",
	"Payment Method", "Status", "Items", "Total (KES)",
}

// BuildOrdersSheet lays out one row per order with its lines summarised.
func BuildOrdersSheet(orders []models.Order) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}

	headerRow := sheet.AddRow()
	for _, h := range orderSheetHeaders {
		headerRow.AddCell().SetValue(h)
	}

	for _, o := range orders {
		lines := make([]string, 0, len(o.Items))
		for _, item := range o.Items {
			lines = append(lines, fmt.Sprintf("%d x %s @ %s", item.Quantity, item.Product.Name, item.Price.StringFixed(2)))
		}

		row := sheet.AddRow()
		row.AddCell().SetInt(int(o.ID))
		row.AddCell().SetString(o.CreatedAt.Format("2006-01-02 15:04"))
		row.AddCell().SetString(strings.TrimSpace(o.FirstName + " " + o.LastName))
		row.AddCell().SetString(o.Phone)
		row.AddCell().SetString(o.Email)
		row.AddCell().SetString(o.BuildingName)
		row.AddCell().SetString(o.DoorNumber)
		row.AddCell().SetString(o.PaymentMethod)
		row.AddCell().SetString(string(o.Status))
		row.AddCell().SetString(strings.Join(lines, "; "))
		row.AddCell().SetString(o.TotalAmount.StringFixed(2))
	}
	return file, nil
}

// GET /admin/orders/export
func ExportOrdersToExcel(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var orders []models.Order
		if err := withItems(db.WithContext(c.Request.Context())).Order("id").Find(&orders).Error; err != nil {
			logging.FromGin(c).Error("orders_export_failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}

		file, err := BuildOrdersSheet(orders)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel sheet"})
			return
		}

		c.Header("Content-Disposition", "attachment; filename=orders.xlsx")
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Transfer-Encoding", "binary")
		c.Header("Expires", "0")

		if err := file.Write(c.Writer); err != nil {
			logging.FromGin(c).Error("orders_export_write_failed", zap.Error(err))
		}
	}
}
