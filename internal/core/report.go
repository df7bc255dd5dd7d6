package core

// UncategorizedBucket names the totals bucket that collects
// transactions with no category or vendor assignment. They are always
// reported, never dropped.
const UncategorizedBucket = "Uncategorized"

type (
	// BudgetStatus compares budgeted and actual spend for one category
	// in one month. It is derived on every query and never persisted.
	BudgetStatus struct {
		CategoryID     int64
		CategoryName   string
		Budgeted       Money
		Spent          Money
		Remaining      Money   // Budgeted - Spent, negative on overspend
		PercentageUsed float64 // 0 when Budgeted is zero
	}

	// NameTotal is an amount aggregated under a category or vendor name.
	NameTotal struct {
		ID     int64 // 0 for the uncategorized bucket
		Name   string
		Total  Money
		Count  int
	}

	// MonthCashFlow sums income against expense for one calendar month.
	MonthCashFlow struct {
		Year    int
		Month   int // 1-12
		Income  Money
		Expense Money
		Net     Money
	}

	// YearSummary is the year-to-date rollup over a cash-flow trend.
	YearSummary struct {
		TotalIncome    Money
		TotalExpense   Money
		NetSavings     Money
		AvgSavingsRate float64 // mean of monthly (income-expense)/income
	}

	// RecurringUpdate reports one schedule change produced by a
	// recurring refresh pass.
	RecurringUpdate struct {
		ID       int64
		VendorID int64
		LastDate Date
		NextDate Date
		Active   bool
		Advanced bool // a matching transaction moved the schedule
		Overdue  bool // nextDate is more than one period in the past
	}
)
