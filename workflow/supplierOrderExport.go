package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/xuri/excelize/v2"
)

// BuildSupplierOrderWorkbook turns the current reorder suggestions into an
// order sheet per supplier, ready to send out. Suppliers with nothing to
// reorder get no sheet.
func BuildSupplierOrderWorkbook(ctx context.Context, windowDays int) (*excelize.File, error) {
	suggestions, err := models.ReorderSuggestions(ctx, windowDays)
	if err != nil {
		return nil, err
	}
	suppliers, err := models.GetSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	supplierNameById := make(map[int]string, len(suppliers))
	for _, s := range suppliers {
		supplierNameById[s.ID] = s.Name
	}

	bySupplier := make(map[int][]models.ReorderSuggestion)
	supplierOrder := make([]int, 0)
	for _, sug := range suggestions {
		if _, ok := bySupplier[sug.SupplierId]; !ok {
			supplierOrder = append(supplierOrder, sug.SupplierId)
		}
		bySupplier[sug.SupplierId] = append(bySupplier[sug.SupplierId], sug)
	}

	f := excelize.NewFile()
	for _, supplierId := range supplierOrder {
		sheetName := supplierNameById[supplierId]
		if sheetName == "" {
			sheetName = fmt.Sprintf("Supplier %d", supplierId)
		}
		if _, err := f.NewSheet(sheetName); err != nil {
			return nil, err
		}

		f.SetCellValue(sheetName, "A1", "Ingredient")
		f.SetCellValue(sheetName, "B1", "Unit")
		f.SetCellValue(sheetName, "C1", "CurrentQty")
		f.SetCellValue(sheetName, "D1", "DailyUsage")
		f.SetCellValue(sheetName, "E1", "SuggestedQty")
		f.SetCellValue(sheetName, "F1", "LastPurchase")

		for i, sug := range bySupplier[supplierId] {
			row := fmt.Sprint(i + 2)
			f.SetCellValue(sheetName, "A"+row, sug.Name)
			f.SetCellValue(sheetName, "B"+row, sug.Unit)
			f.SetCellValue(sheetName, "C"+row, sug.CurrentQty.String())
			f.SetCellValue(sheetName, "D"+row, sug.DailyUsage.Round(4).String())
			f.SetCellValue(sheetName, "E"+row, sug.SuggestedQty.Round(4).String())
			if sug.LastPurchaseDate != nil {
				f.SetCellValue(sheetName, "F"+row, sug.LastPurchaseDate.Format(time.DateOnly))
			}
		}
	}

	// Drop the default sheet when real data exists.
	if len(supplierOrder) > 0 {
		_ = f.DeleteSheet("Sheet1")
	}
	return f, nil
}
