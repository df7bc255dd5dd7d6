// Package services holds the business logic layered over the record
// store: batch classification, reporting aggregates and recurring
// schedule maintenance.
package services

import (
	"context"

	"ledger/internal/core"
)

// Ports to the record store. The SQLite repository implements all of
// them; tests substitute in-memory fakes.
type (
	RuleStore interface {
		// RulesByScope returns the user's own rules plus global ones,
		// for one rule kind.
		RulesByScope(ctx context.Context, userID int64, kind core.RuleKind) ([]core.KeywordRule, error)
		VendorsByScope(ctx context.Context, userID int64) ([]core.Vendor, error)
		CreateVendor(ctx context.Context, v core.Vendor) (int64, error)
		AddVendorAlias(ctx context.Context, vendorID int64, alias string) error
	}

	TransactionStore interface {
		TransactionsInRange(ctx context.Context, userID int64, from, to core.Date) ([]core.Transaction, error)
		TransactionsByIDs(ctx context.Context, userID int64, ids []int64) ([]core.Transaction, error)
		UnclassifiedTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error)
		SetTransactionClassification(ctx context.Context, txID, vendorID, categoryID int64) error
	}

	BudgetStore interface {
		BudgetsForMonth(ctx context.Context, userID int64, month, year int) ([]core.Budget, error)
		CategoriesByUser(ctx context.Context, userID int64) ([]core.Category, error)
	}

	RecurringStore interface {
		ActiveRecurring(ctx context.Context, userID int64) ([]core.RecurringTransaction, error)
		UpdateRecurringSchedule(ctx context.Context, id int64, lastDate, nextDate core.Date, active bool) error
		SetRecurringActive(ctx context.Context, userID, id int64, active bool) error
	}

	VendorReader interface {
		VendorsByScope(ctx context.Context, userID int64) ([]core.Vendor, error)
	}
)
