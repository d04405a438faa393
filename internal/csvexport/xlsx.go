package csvexport

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"docfields/internal/domain"
)

// SheetName is the worksheet holding the review list.
const SheetName = "validation_list"

// WriteXLSX writes the review list as a single-sheet workbook. Confidence
// cells are numeric so reviewers can sort and filter.
func WriteXLSX(out io.Writer, results []*domain.StructuredResult) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	_ = f.SetCellStyle(SheetName, "A1", last, bold)

	for r, row := range Rows(results) {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			var val any = v
			if c == 3 {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					val = n
				}
			}
			if err := f.SetCellValue(SheetName, cell, val); err != nil {
				return fmt.Errorf("writing %s: %w", cell, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 32) // filename
	_ = f.SetColWidth(SheetName, "B", "B", 24) // field
	_ = f.SetColWidth(SheetName, "C", "C", 40) // value
	_ = f.SetColWidth(SheetName, "D", "D", 12) // confidence
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
