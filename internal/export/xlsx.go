package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/bill2csv/internal/scanning"
)

const sheetName = "Bill"

// WriteXLSX renders items as a single-sheet workbook with the same columns as the CSV.
// Number fields are written as numeric cells and nulls as blank cells.
func WriteXLSX(items []scanning.LineItem, columns []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	for i, column := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, column); err != nil {
			return nil, fmt.Errorf("writing header %s: %w", column, err)
		}
	}

	for r, item := range items {
		for c, column := range columns {
			var value any
			if n, ok := item.Number(column); ok {
				value = n
			} else if s, ok := item.Field(column); ok {
				value = s
			} else {
				continue
			}

			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, fmt.Errorf("cell for row %d: %w", r+1, err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("writing row %d %s: %w", r+1, column, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSXFilename returns the workbook download name for the given moment, dated in UTC
func XLSXFilename(now time.Time) string {
	return "bill_data_" + now.UTC().Format(time.DateOnly) + ".xlsx"
}
