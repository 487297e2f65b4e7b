package adjustments

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Adjustments"

// WriteWorkbook renders export records into an XLSX workbook, one row per
// adjustment line under a fixed header row.
func WriteWorkbook(records []ExportRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []string{"Adjustment No", "Date", "Item Name", "Item Code", "Type", "Quantity", "Unit", "Warehouse", "Description"}
	for col, title := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, title); err != nil {
			return nil, err
		}
	}

	for i, rec := range records {
		row := []any{
			rec.AdjustmentNumber, rec.Date, rec.ItemName, rec.ItemCode,
			rec.Type, rec.Quantity, rec.Unit, rec.Warehouse, rec.Description,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}
