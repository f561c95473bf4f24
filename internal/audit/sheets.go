package audit

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"descansos/internal/models"
)

// SheetsExporter mirrors swept reservations to a Google Sheets
// spreadsheet, appending one row per reservation.
type SheetsExporter struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsExporter builds the exporter from a service-account
// credentials file.
func NewSheetsExporter(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsExporter, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}

	return &SheetsExporter{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// Export appends the batch under a label marker row.
func (e *SheetsExporter) Export(ctx context.Context, reservations []models.Reservation, label string) error {
	values := make([][]interface{}, 0, len(reservations)+1)
	values = append(values, []interface{}{fmt.Sprintf("Sweep %s", label)})
	for i := range reservations {
		values = append(values, reservationRowValues(&reservations[i]))
	}

	vr := &sheets.ValueRange{Values: values}
	_, err := e.svc.Spreadsheets.Values.
		Append(e.spreadsheetID, "A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}
	return nil
}
