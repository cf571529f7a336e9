package cartControllers

import (
	"github.com/junaidrashid-git/tavern-api/models"
	"github.com/shopspring/decimal"
)

var (
	VATRate = decimal.RequireFromString("0.16")
	// Orders at or above this total ship free.
	FreeDeliveryThreshold = decimal.NewFromInt(15000)
)

// Summary is the display breakdown of a cart. Prices include VAT.
type Summary struct {
	Items                []models.CartItem `json:"items"`
	ItemCount            int               `json:"item_count"`
	Total                decimal.Decimal   `json:"total"`
	SubtotalExVAT        decimal.Decimal   `json:"subtotal_ex_vat"`
	VATAmount            decimal.Decimal   `json:"vat_amount"`
	VATRate              decimal.Decimal   `json:"vat_rate"`
	DeliveryThreshold    decimal.Decimal   `json:"delivery_threshold"`
	ProgressPercent      decimal.Decimal   `json:"progress_percent"`
	AmountToFreeDelivery decimal.Decimal   `json:"amount_to_free_delivery"`
}

// CartTotal is the sum of line totals at current product prices.
func CartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice())
	}
	return total
}

// Summarize splits the VAT-inclusive total; SubtotalExVAT + VATAmount == Total.
func Summarize(items []models.CartItem) Summary {
	if items == nil {
		items = []models.CartItem{}
	}
	s := Summary{
		Items:                items,
		Total:                CartTotal(items),
		SubtotalExVAT:        decimal.Zero,
		VATAmount:            decimal.Zero,
		VATRate:              VATRate,
		DeliveryThreshold:    FreeDeliveryThreshold,
		ProgressPercent:      decimal.Zero,
		AmountToFreeDelivery: FreeDeliveryThreshold,
	}
	for _, item := range items {
		s.ItemCount += item.Quantity
	}
	if !s.Total.IsPositive() {
		return s
	}

	s.SubtotalExVAT = s.Total.Div(decimal.NewFromInt(1).Add(VATRate)).Round(2)
	s.VATAmount = s.Total.Sub(s.SubtotalExVAT)

	hundred := decimal.NewFromInt(100)
	s.ProgressPercent = decimal.Min(s.Total.Div(FreeDeliveryThreshold).Mul(hundred), hundred).Round(2)
	s.AmountToFreeDelivery = decimal.Max(FreeDeliveryThreshold.Sub(s.Total), decimal.Zero)
	return s
}
