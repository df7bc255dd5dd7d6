// Package memory keeps exported reports in process memory. Used in
// development and in tests where no spreadsheet is wired up.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/core"
)

type BudgetReport struct {
	UserID   int64
	Month    int
	Year     int
	Statuses []core.BudgetStatus
}

type CashFlowReport struct {
	UserID int64
	Year   int
	Months []core.MonthCashFlow
}

type Store struct {
	mu        sync.Mutex
	budgets   []BudgetReport
	cashFlows []CashFlowReport
}

func New() *Store {
	return &Store{}
}

// AppendBudgetReport stores the report and returns a synthetic reference.
func (s *Store) AppendBudgetReport(_ context.Context, userID int64, month, year int, statuses []core.BudgetStatus) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = append(s.budgets, BudgetReport{
		UserID:   userID,
		Month:    month,
		Year:     year,
		Statuses: append([]core.BudgetStatus(nil), statuses...),
	})
	return fmt.Sprintf("mem:budget:%d", len(s.budgets)), nil
}

// AppendCashFlow stores the report and returns a synthetic reference.
func (s *Store) AppendCashFlow(_ context.Context, userID int64, year int, months []core.MonthCashFlow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cashFlows = append(s.cashFlows, CashFlowReport{
		UserID: userID,
		Year:   year,
		Months: append([]core.MonthCashFlow(nil), months...),
	})
	return fmt.Sprintf("mem:cashflow:%d", len(s.cashFlows)), nil
}

// BudgetReports returns a copy of everything exported so far.
func (s *Store) BudgetReports() []BudgetReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BudgetReport(nil), s.budgets...)
}

// CashFlowReports returns a copy of everything exported so far.
func (s *Store) CashFlowReports() []CashFlowReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CashFlowReport(nil), s.cashFlows...)
}
