// Package export ships monthly reports to external destinations.
package export

import (
	"context"

	"ledger/internal/core"
)

// Ports for outbound report adapters.
type (
	// BudgetReportWriter appends one month's budget report and returns
	// a backend-specific reference to where it landed.
	BudgetReportWriter interface {
		AppendBudgetReport(ctx context.Context, userID int64, month, year int, statuses []core.BudgetStatus) (ref string, err error)
	}

	// CashFlowWriter appends a year's month-by-month cash flow.
	CashFlowWriter interface {
		AppendCashFlow(ctx context.Context, userID int64, year int, months []core.MonthCashFlow) (ref string, err error)
	}
)
