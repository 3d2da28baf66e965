package report

import (
	"fmt"
	"io"
	"time"

	"gardenplots/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName  = "Bookings"
	dateLayout = "02.01.2006"
)

var bookingColumns = []string{
	"Booking ID", "Garden", "User", "Start", "End", "Months", "Total", "Status", "Card", "Created",
}

// WriteBookingsXLSX renders bookings overlapping [from, to] as a single-sheet workbook.
func WriteBookingsXLSX(w io.Writer, from, to time.Time, bookings []*models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	// заголовок периода
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s", from.Format(dateLayout), to.Format(dateLayout)))
	lastCol, _ := excelize.ColumnNumberToName(len(bookingColumns))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, name := range bookingColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, name)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#9C0006"},
	})

	var total int64
	for i, b := range bookings {
		row := i + 3
		values := []interface{}{
			b.ID,
			b.GardenName,
			b.UserID,
			b.StartDate.Format(dateLayout),
			b.EndDate.Format(dateLayout),
			b.DurationMonths,
			float64(b.TotalPriceCents) / 100,
			b.Status,
			b.CardLast4,
			b.CreatedAt.Format("02.01.2006 15:04"),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if b.IsActive() {
			total += b.TotalPriceCents
		} else {
			end, _ := excelize.CoordinatesToCellName(len(bookingColumns), row)
			_ = f.SetCellStyle(sheetName, start, end, cancelledStyle)
		}
	}

	summaryRow := len(bookings) + 4
	_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", summaryRow), "Active total")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", summaryRow), float64(total)/100)

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", "C", 25)
	_ = f.SetColWidth(sheetName, "D", lastCol, 14)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ExportFileName returns the download name for a period export.
func ExportFileName(from, to time.Time) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
}
