package scanning

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// parseLineItemsJSON parses the JSON response from the model into line items.
// Unknown keys are ignored; missing, null or mistyped values become nil.
func parseLineItemsJSON(text string) ([]LineItem, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrParse)
	}

	elems, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %s", ErrParse, jsonType(raw))
	}

	items := make([]LineItem, 0, len(elems))
	for i, elem := range elems {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %s", ErrParse, i, jsonType(elem))
		}
		items = append(items, lineItemFromObject(obj))
	}

	// The model enforces the schema; locally it is only reported.
	if err := checkConformance(raw); err != nil {
		slog.Warn("Model response does not conform to line item schema", "items", len(items), "error", err)
	}

	return items, nil
}

func lineItemFromObject(obj map[string]any) LineItem {
	name, _ := textValue(obj["name"])
	return LineItem{
		Name:              name,
		HSNCode:           optText(obj, "hsn_code"),
		Category:          optText(obj, "category"),
		BatchNumber:       optText(obj, "batch_number"),
		Manufacturer:      optText(obj, "manufacturer"),
		ExpiryDate:        optText(obj, "expiry_date"),
		Quantity:          optNumber(obj, "quantity"),
		PurchasePrice:     optNumber(obj, "purchase_price"),
		SellingPrice:      optNumber(obj, "selling_price"),
		GST:               optNumber(obj, "gst"),
		Supplier:          optText(obj, "supplier"),
		LowStockThreshold: optNumber(obj, "low_stock_threshold"),
	}
}

// textValue accepts strings, and numbers by their literal text.
func textValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

func optText(obj map[string]any, key string) *string {
	s, ok := textValue(obj[key])
	if !ok {
		return nil
	}
	return &s
}

// optNumber accepts numbers, and strings holding a finite decimal number.
func optNumber(obj map[string]any, key string) *float64 {
	var (
		f   float64
		err error
	)
	switch t := obj[key].(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return nil
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	}
	return fmt.Sprintf("%T", v)
}
