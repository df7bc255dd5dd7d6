// Package google exports reports to a Google Sheets spreadsheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ledger/internal/core"
	ports "ledger/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var (
	_ ports.BudgetReportWriter = (*Client)(nil)
	_ ports.CashFlowWriter     = (*Client)(nil)
)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Reports") and one of
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS for auth.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Reports"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// AppendBudgetReport writes one row per budget line plus a header row.
func (c *Client) AppendBudgetReport(ctx context.Context, userID int64, month, year int, statuses []core.BudgetStatus) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	values := [][]any{
		{fmt.Sprintf("Budget %d-%02d", year, month), "Budgeted", "Spent", "Remaining", "% used"},
	}
	for _, s := range statuses {
		values = append(values, []any{
			s.CategoryName,
			centsToDecimal(s.Budgeted.Cents),
			centsToDecimal(s.Spent.Cents),
			centsToDecimal(s.Remaining.Cents),
			s.PercentageUsed,
		})
	}

	ref, err := c.appendRows(ctx, values)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Exported budget report",
		"user_id", userID, "year", year, "month", month,
		"rows", len(statuses), "ref", ref)
	return ref, nil
}

// AppendCashFlow writes one row per month of the year.
func (c *Client) AppendCashFlow(ctx context.Context, userID int64, year int, months []core.MonthCashFlow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	values := [][]any{
		{fmt.Sprintf("Cash flow %d", year), "Income", "Expense", "Net"},
	}
	for _, m := range months {
		values = append(values, []any{
			fmt.Sprintf("%d-%02d", m.Year, m.Month),
			centsToDecimal(m.Income.Cents),
			centsToDecimal(m.Expense.Cents),
			centsToDecimal(m.Net.Cents),
		})
	}

	ref, err := c.appendRows(ctx, values)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Exported cash flow report",
		"user_id", userID, "year", year, "ref", ref)
	return ref, nil
}

func (c *Client) appendRows(ctx context.Context, values [][]any) (string, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.sheetName, err)
	}
	nextRow := len(resp.Values) + 1

	vr := &gsheet.ValueRange{Values: values}
	dataRange := fmt.Sprintf("%s!A%d", c.sheetName, nextRow)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update rows in sheet %s: %w", c.sheetName, err)
	}

	return fmt.Sprintf("%s!A%d:E%d", c.sheetName, nextRow, nextRow+len(values)-1), nil
}

func centsToDecimal(cents int64) float64 {
	return float64(cents) / 100.0
}
