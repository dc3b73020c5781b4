package api

import (
	"fmt"
	"io"

	"woodslot/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheetName  = "Bookings"
	exportTimeLayout = "02/01/2006 15:04"
)

var exportHeaders = []string{"ID", "First name", "Last name", "Phone", "Start", "End", "Role", "Booked at"}

// writeBookingsXLSX streams a single-sheet workbook listing the bookings of day.
func writeBookingsXLSX(w io.Writer, day string, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(exportSheetName, "A1", fmt.Sprintf("Day: %s (%d bookings)", day, len(bookings)))
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err == nil {
		_ = f.SetCellStyle(exportSheetName, "A1", "A1", titleStyle)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(exportSheetName, cell, header)
		_ = f.SetCellStyle(exportSheetName, cell, cell, headerStyle)
	}

	for i, b := range bookings {
		row := i + 3
		values := []any{
			b.ID,
			b.FirstName,
			b.LastName,
			b.PhoneNumber,
			fmt.Sprintf("%02d:00", b.StartHour),
			fmt.Sprintf("%02d:00", b.EndHour),
			b.Role,
			b.CreatedAt.Format(exportTimeLayout),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(exportSheetName, cell, v)
		}
	}

	_ = f.SetColWidth(exportSheetName, "A", "A", 8)
	_ = f.SetColWidth(exportSheetName, "B", "D", 20)
	_ = f.SetColWidth(exportSheetName, "E", "G", 10)
	_ = f.SetColWidth(exportSheetName, "H", "H", 20)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
