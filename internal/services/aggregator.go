package services

import (
	"context"
	"fmt"
	"sort"

	"ledger/internal/core"
)

const (
	GroupByCategory GroupBy = "category"
	GroupByVendor   GroupBy = "vendor"
)

// GroupBy selects the bucket key for totals aggregation.
type GroupBy string

// Aggregator derives reporting values from a transaction snapshot. All
// derivations are read-only and idempotent: the same snapshot always
// produces the same output, so results are safe to cache.
type Aggregator struct {
	transactions TransactionStore
	budgets      BudgetStore
	vendors      VendorReader
}

func NewAggregator(transactions TransactionStore, budgets BudgetStore, vendors VendorReader) *Aggregator {
	return &Aggregator{
		transactions: transactions,
		budgets:      budgets,
		vendors:      vendors,
	}
}

// BudgetStatus computes spent-vs-budgeted for every live budget the
// user holds in the given month. A month with no budgets yields an
// empty slice, not an error.
func (a *Aggregator) BudgetStatus(ctx context.Context, userID int64, month, year int) ([]core.BudgetStatus, error) {
	budgets, err := a.budgets.BudgetsForMonth(ctx, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	categories, err := a.budgets.CategoriesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	from := core.NewDate(year, month, 1)
	to := core.NewDate(year, month, lastDayOfMonth(year, month))
	txns, err := a.transactions.TransactionsInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if err := checkSingleCurrency(txns); err != nil {
		return nil, err
	}

	return ComputeBudgetStatuses(budgets, categories, txns), nil
}

// ComputeBudgetStatuses is the pure derivation behind BudgetStatus.
// Spending counts expense-type transactions only; remaining may go
// negative on overspend, and a zero budget yields percentage 0 instead
// of dividing by zero.
func ComputeBudgetStatuses(budgets []core.Budget, categories []core.Category, txns []core.Transaction) []core.BudgetStatus {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	spent := make(map[int64]int64)
	for _, tx := range txns {
		if tx.Type != core.Expense || tx.CategoryID == 0 {
			continue
		}
		spent[tx.CategoryID] += tx.Amount.Cents
	}

	statuses := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		s := core.BudgetStatus{
			CategoryID:   b.CategoryID,
			CategoryName: names[b.CategoryID],
			Budgeted:     b.Amount,
			Spent:        core.Money{Cents: spent[b.CategoryID]},
		}
		s.Remaining = s.Budgeted.Sub(s.Spent)
		if s.Budgeted.Cents != 0 {
			s.PercentageUsed = float64(s.Spent.Cents) / float64(s.Budgeted.Cents) * 100
		}
		statuses = append(statuses, s)
	}

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].CategoryName != statuses[j].CategoryName {
			return statuses[i].CategoryName < statuses[j].CategoryName
		}
		return statuses[i].CategoryID < statuses[j].CategoryID
	})
	return statuses
}

// Totals sums the user's transactions over [from, to] grouped by
// category or vendor, largest bucket first. Unclassified transactions
// land in the explicit uncategorized bucket so that bucket sums always
// add up to the window's grand total.
func (a *Aggregator) Totals(ctx context.Context, userID int64, from, to core.Date, groupBy GroupBy) ([]core.NameTotal, error) {
	if groupBy != GroupByCategory && groupBy != GroupByVendor {
		return nil, fmt.Errorf("unknown group-by %q", groupBy)
	}

	txns, err := a.transactions.TransactionsInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if err := checkSingleCurrency(txns); err != nil {
		return nil, err
	}

	names := make(map[int64]string)
	switch groupBy {
	case GroupByCategory:
		categories, err := a.budgets.CategoriesByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load categories: %w", err)
		}
		for _, c := range categories {
			names[c.ID] = c.Name
		}
	case GroupByVendor:
		vendors, err := a.vendors.VendorsByScope(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load vendors: %w", err)
		}
		for _, v := range vendors {
			names[v.ID] = v.Name
		}
	}

	return ComputeTotals(txns, groupBy, names), nil
}

// ComputeTotals is the pure derivation behind Totals.
func ComputeTotals(txns []core.Transaction, groupBy GroupBy, names map[int64]string) []core.NameTotal {
	buckets := make(map[int64]*core.NameTotal)
	for _, tx := range txns {
		key := tx.CategoryID
		if groupBy == GroupByVendor {
			key = tx.VendorID
		}

		b, ok := buckets[key]
		if !ok {
			name := names[key]
			if key == 0 {
				name = core.UncategorizedBucket
			} else if name == "" {
				// A dangling id still gets a stable, visible bucket.
				name = fmt.Sprintf("#%d", key)
			}
			b = &core.NameTotal{ID: key, Name: name}
			buckets[key] = b
		}
		b.Total = b.Total.Add(tx.Amount)
		b.Count++
	}

	totals := make([]core.NameTotal, 0, len(buckets))
	for _, b := range buckets {
		totals = append(totals, *b)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total.Cents != totals[j].Total.Cents {
			return totals[i].Total.Cents > totals[j].Total.Cents
		}
		return totals[i].Name < totals[j].Name
	})
	return totals
}

// CashFlow sums income against expense per month of the given year and
// rolls the months up into a year-to-date summary.
func (a *Aggregator) CashFlow(ctx context.Context, userID int64, year int) ([]core.MonthCashFlow, core.YearSummary, error) {
	from := core.NewDate(year, 1, 1)
	to := core.NewDate(year, 12, 31)
	txns, err := a.transactions.TransactionsInRange(ctx, userID, from, to)
	if err != nil {
		return nil, core.YearSummary{}, fmt.Errorf("load transactions: %w", err)
	}
	if err := checkSingleCurrency(txns); err != nil {
		return nil, core.YearSummary{}, err
	}

	months, summary := ComputeCashFlow(txns, year)
	return months, summary, nil
}

// ComputeCashFlow is the pure derivation behind CashFlow. All twelve
// months are reported. The average savings rate is the mean of monthly
// (income-expense)/income over months that saw any activity; a month
// with zero income contributes a rate of 0 rather than NaN.
func ComputeCashFlow(txns []core.Transaction, year int) ([]core.MonthCashFlow, core.YearSummary) {
	months := make([]core.MonthCashFlow, 12)
	for i := range months {
		months[i] = core.MonthCashFlow{Year: year, Month: i + 1}
	}

	for _, tx := range txns {
		if tx.Date.Year() != year {
			continue
		}
		m := &months[tx.Date.Month()-1]
		switch tx.Type {
		case core.Income:
			m.Income = m.Income.Add(tx.Amount)
		case core.Expense:
			m.Expense = m.Expense.Add(tx.Amount)
		}
	}

	var summary core.YearSummary
	activeMonths := 0
	rateSum := 0.0
	for i := range months {
		m := &months[i]
		m.Net = m.Income.Sub(m.Expense)
		summary.TotalIncome = summary.TotalIncome.Add(m.Income)
		summary.TotalExpense = summary.TotalExpense.Add(m.Expense)

		if m.Income.Cents == 0 && m.Expense.Cents == 0 {
			continue
		}
		activeMonths++
		if m.Income.Cents != 0 {
			rateSum += float64(m.Net.Cents) / float64(m.Income.Cents)
		}
	}

	summary.NetSavings = summary.TotalIncome.Sub(summary.TotalExpense)
	if activeMonths > 0 {
		summary.AvgSavingsRate = rateSum / float64(activeMonths)
	}
	return months, summary
}

// checkSingleCurrency rejects a snapshot that mixes currencies; summing
// across currencies would silently produce nonsense.
func checkSingleCurrency(txns []core.Transaction) error {
	reference := ""
	for _, tx := range txns {
		if tx.Currency == "" {
			continue
		}
		if reference == "" {
			reference = tx.Currency
			continue
		}
		if tx.Currency != reference {
			return fmt.Errorf("transaction %d is %s, snapshot is %s: %w",
				tx.ID, tx.Currency, reference, core.ErrCurrencyMismatch)
		}
	}
	return nil
}
