package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
)

type fieldSpec struct {
	name        string
	kind        fieldKind
	description string
}

// lineItemFields is the single source of truth for the extracted fields and their order.
var lineItemFields = []fieldSpec{
	{"name", kindText, "Product name"},
	{"hsn_code", kindText, "HSN code"},
	{"category", kindText, "Product category"},
	{"batch_number", kindText, "Batch number"},
	{"manufacturer", kindText, "Manufacturer"},
	{"expiry_date", kindText, "Expiry date (YYYY-MM-DD)"},
	{"quantity", kindNumber, "Quantity of the product"},
	{"purchase_price", kindNumber, "Price per unit purchased"},
	{"selling_price", kindNumber, "Price per unit for selling"},
	{"gst", kindNumber, "GST percentage"},
	{"supplier", kindText, "Supplier name"},
	{"low_stock_threshold", kindNumber, "Low stock warning level"},
}

// FieldNames returns the line item field names in column order.
func FieldNames() []string {
	names := make([]string, len(lineItemFields))
	for i, f := range lineItemFields {
		names[i] = f.name
	}
	return names
}

// responseSchema builds the structured output constraint sent to Gemini.
func responseSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(lineItemFields))
	for _, f := range lineItemFields {
		s := &genai.Schema{
			Type:        genai.TypeString,
			Description: f.description,
			Nullable:    f.name != "name",
		}
		if f.kind == kindNumber {
			s.Type = genai.TypeNumber
		}
		props[f.name] = s
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   []string{"name"},
		},
	}
}

// lineItemsJSONSchema mirrors responseSchema as a JSON Schema document.
// Extra keys are allowed since the parser ignores them.
func lineItemsJSONSchema() map[string]any {
	props := make(map[string]any, len(lineItemFields))
	for _, f := range lineItemFields {
		typ := "string"
		if f.kind == kindNumber {
			typ = "number"
		}
		if f.name == "name" {
			props[f.name] = map[string]any{"type": typ}
			continue
		}
		props[f.name] = map[string]any{"type": []any{typ, "null"}}
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":       "object",
			"properties": props,
			"required":   []any{"name"},
		},
	}
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(lineItemsJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("line_items.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("line_items.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// checkConformance reports whether a decoded response matches the line item schema.
// The result is advisory only; parsing never depends on it.
func checkConformance(v any) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
