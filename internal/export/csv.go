// Package export turns extracted line items into downloadable documents.
package export

import (
	"strings"
	"time"

	"github.com/zombor/bill2csv/internal/scanning"
)

// Columns is the fixed column order of every export
var Columns = scanning.FieldNames()

// Serialize renders items as CSV: a header line, then one line per item in
// input order, joined by "\n" with no trailing newline. Null values are empty
// cells. Serialize never fails; no items yields the header alone.
func Serialize(items []scanning.LineItem, columns []string) string {
	var b strings.Builder
	b.WriteString(strings.Join(columns, ","))

	for _, item := range items {
		b.WriteByte('\n')
		for i, column := range columns {
			if i > 0 {
				b.WriteByte(',')
			}
			value, _ := item.Field(column)
			b.WriteString(escapeCell(value))
		}
	}
	return b.String()
}

// escapeCell quotes a cell containing a comma, a quote or a newline, doubling inner quotes
func escapeCell(cell string) string {
	if !strings.ContainsAny(cell, ",\"\n") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// Filename returns the CSV download name for the given moment, dated in UTC
func Filename(now time.Time) string {
	return "bill_data_" + now.UTC().Format(time.DateOnly) + ".csv"
}
