package scanning

import (
	"context"
	"strconv"
)

// LineItem is a single product or item row extracted from a bill.
// Every field except Name is nullable; nil marshals as an explicit null.
type LineItem struct {
	Name              string   `json:"name"`
	HSNCode           *string  `json:"hsn_code"`
	Category          *string  `json:"category"`
	BatchNumber       *string  `json:"batch_number"`
	Manufacturer      *string  `json:"manufacturer"`
	ExpiryDate        *string  `json:"expiry_date"` // YYYY-MM-DD
	Quantity          *float64 `json:"quantity"`
	PurchasePrice     *float64 `json:"purchase_price"`
	SellingPrice      *float64 `json:"selling_price"`
	GST               *float64 `json:"gst"` // percent
	Supplier          *string  `json:"supplier"`
	LowStockThreshold *float64 `json:"low_stock_threshold"`
}

// Field returns the text form of the named field and whether it is set.
// Numbers use the shortest decimal representation. Unknown names report false.
func (l LineItem) Field(name string) (string, bool) {
	switch name {
	case "name":
		return l.Name, true
	case "hsn_code":
		return text(l.HSNCode)
	case "category":
		return text(l.Category)
	case "batch_number":
		return text(l.BatchNumber)
	case "manufacturer":
		return text(l.Manufacturer)
	case "expiry_date":
		return text(l.ExpiryDate)
	case "quantity":
		return number(l.Quantity)
	case "purchase_price":
		return number(l.PurchasePrice)
	case "selling_price":
		return number(l.SellingPrice)
	case "gst":
		return number(l.GST)
	case "supplier":
		return text(l.Supplier)
	case "low_stock_threshold":
		return number(l.LowStockThreshold)
	}
	return "", false
}

// Number returns the numeric value of the named field, if it is a set number field.
func (l LineItem) Number(name string) (float64, bool) {
	var v *float64
	switch name {
	case "quantity":
		v = l.Quantity
	case "purchase_price":
		v = l.PurchasePrice
	case "selling_price":
		v = l.SellingPrice
	case "gst":
		v = l.GST
	case "low_stock_threshold":
		v = l.LowStockThreshold
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

func text(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	return *v, true
}

func number(v *float64) (string, bool) {
	if v == nil {
		return "", false
	}
	return FormatNumber(*v), true
}

// FormatNumber renders a number in its shortest plain decimal form (3.0 -> "3").
func FormatNumber(v float64) string {
	// Negative zero prints as "0"
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Scanner defines the interface for bill scanning operations
type Scanner interface {
	// ScanBill analyzes a bill image/PDF and extracts its line items in document order
	ScanBill(ctx context.Context, imageData []byte, contentType string) ([]LineItem, error)
	// Close closes the scanner and releases resources
	Close() error
}
