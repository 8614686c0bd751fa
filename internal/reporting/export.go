package reporting

import (
	"fmt"
	"io"
	"time"

	"crm-platform/internal/communications"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Communications"

var exportHeaders = []string{"Type", "ID", "Timestamp", "Direction", "Contact", "Subject / Phone / Channel", "Outcome / Status"}

var columnWidths = []float64{8, 38, 22, 10, 28, 40, 14}

// WriteXLSX writes items as a single-sheet workbook, one row per communication,
// in the order given.
func WriteXLSX(w io.Writer, items []communications.UnifiedCommunication) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("reporting: create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("reporting: delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("reporting: header style: %w", err)
	}

	for i, h := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("reporting: header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("reporting: header style %s: %w", cell, err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
			return fmt.Errorf("reporting: column width: %w", err)
		}
	}

	for i, it := range items {
		cells, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cells, &[]any{
			string(it.Type),
			it.ID,
			it.Timestamp.UTC().Format(time.RFC3339),
			direction(it),
			it.ContactName,
			headline(it),
			state(it),
		}); err != nil {
			return fmt.Errorf("reporting: row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("reporting: freeze header: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}

func direction(it communications.UnifiedCommunication) string {
	if it.Direction == nil {
		return ""
	}
	return string(*it.Direction)
}

func headline(it communications.UnifiedCommunication) string {
	switch r := it.Detail.(type) {
	case communications.CallRecord:
		return r.PhoneNumber
	case communications.EmailRecord:
		return r.Subject
	case communications.ChatRecord:
		return string(r.Channel)
	}
	return ""
}

func state(it communications.UnifiedCommunication) string {
	switch r := it.Detail.(type) {
	case communications.CallRecord:
		return string(r.Outcome)
	case communications.ChatRecord:
		return string(r.Status)
	}
	return ""
}
