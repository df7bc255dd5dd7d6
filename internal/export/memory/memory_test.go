package memory

import (
	"context"
	"testing"

	"ledger/internal/core"
	ports "ledger/internal/export"
)

var (
	_ ports.BudgetReportWriter = (*Store)(nil)
	_ ports.CashFlowWriter     = (*Store)(nil)
)

func TestStore_AppendBudgetReport(t *testing.T) {
	s := New()
	statuses := []core.BudgetStatus{
		{CategoryID: 1, CategoryName: "Groceries", Budgeted: core.Money{Cents: 50000}, Spent: core.Money{Cents: 32000}, Remaining: core.Money{Cents: 18000}, PercentageUsed: 64.0},
	}

	ref, err := s.AppendBudgetReport(context.Background(), 1, 3, 2024, statuses)
	if err != nil {
		t.Fatalf("AppendBudgetReport: %v", err)
	}
	if ref != "mem:budget:1" {
		t.Errorf("ref = %q", ref)
	}

	// Mutating the caller's slice must not touch the stored copy.
	statuses[0].CategoryName = "changed"

	reports := s.BudgetReports()
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	if reports[0].Statuses[0].CategoryName != "Groceries" {
		t.Errorf("stored report shares memory with caller: %+v", reports[0].Statuses[0])
	}
	if reports[0].Month != 3 || reports[0].Year != 2024 {
		t.Errorf("report period = %d-%d", reports[0].Year, reports[0].Month)
	}
}

func TestStore_AppendCashFlow(t *testing.T) {
	s := New()
	months := []core.MonthCashFlow{
		{Year: 2024, Month: 1, Income: core.Money{Cents: 200000}, Expense: core.Money{Cents: 150000}, Net: core.Money{Cents: 50000}},
	}

	ref, err := s.AppendCashFlow(context.Background(), 1, 2024, months)
	if err != nil {
		t.Fatalf("AppendCashFlow: %v", err)
	}
	if ref != "mem:cashflow:1" {
		t.Errorf("ref = %q", ref)
	}
	if got := s.CashFlowReports(); len(got) != 1 || got[0].Year != 2024 {
		t.Errorf("CashFlowReports() = %+v", got)
	}
}
