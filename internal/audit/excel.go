package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"descansos/internal/models"
)

var exportHeader = []string{"ID", "Owner", "Owner Key", "Shift", "Start", "End", "Minutes", "Notes", "Created"}

// ExcelExporter writes swept reservations to an .xlsx workbook per
// sweep.
type ExcelExporter struct {
	dir string
}

// NewExcelExporter creates an exporter targeting dir.
func NewExcelExporter(dir string) *ExcelExporter {
	return &ExcelExporter{dir: dir}
}

// Export writes one workbook named after the sweep label.
func (e *ExcelExporter) Export(_ context.Context, reservations []models.Reservation, label string) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Reservations"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range reservations {
		cell := fmt.Sprintf("A%d", i+2)
		row := reservationRowValues(&reservations[i])
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	path := filepath.Join(e.dir, fmt.Sprintf("reservations_%s.xlsx", label))
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// reservationRowValues flattens a reservation into an export row.
func reservationRowValues(r *models.Reservation) []interface{} {
	return []interface{}{
		r.ID,
		r.OwnerName,
		r.OwnerKey,
		r.ShiftLabel,
		r.StartTime.Format("2006-01-02 15:04"),
		r.EndTime.Format("2006-01-02 15:04"),
		r.DurationMinutes,
		r.Notes,
		r.CreatedAt.Format("2006-01-02 15:04"),
	}
}
