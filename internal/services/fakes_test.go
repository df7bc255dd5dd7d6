package services

import (
	"context"
	"sort"

	"ledger/internal/core"
)

// fakeStore is an in-memory record store shared by the service tests.
type fakeStore struct {
	rules        []core.KeywordRule
	vendors      []core.Vendor
	categories   []core.Category
	budgets      []core.Budget
	transactions []core.Transaction
	recurring    []core.RecurringTransaction

	nextVendorID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextVendorID: 1000}
}

func (f *fakeStore) RulesByScope(_ context.Context, userID int64, kind core.RuleKind) ([]core.KeywordRule, error) {
	var out []core.KeywordRule
	for _, r := range f.rules {
		if r.Kind != kind {
			continue
		}
		if r.UserID == core.GlobalScope || r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) VendorsByScope(_ context.Context, userID int64) ([]core.Vendor, error) {
	var out []core.Vendor
	for _, v := range f.vendors {
		if v.UserID == core.GlobalScope || v.UserID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateVendor(_ context.Context, v core.Vendor) (int64, error) {
	f.nextVendorID++
	v.ID = f.nextVendorID
	f.vendors = append(f.vendors, v)
	return v.ID, nil
}

func (f *fakeStore) AddVendorAlias(_ context.Context, vendorID int64, alias string) error {
	for i := range f.vendors {
		if f.vendors[i].ID == vendorID {
			f.vendors[i].Aliases = append(f.vendors[i].Aliases, alias)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeStore) TransactionsInRange(_ context.Context, userID int64, from, to core.Date) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range f.transactions {
		if tx.UserID == userID && tx.Date.InRange(from, to) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) TransactionsByIDs(_ context.Context, userID int64, ids []int64) ([]core.Transaction, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []core.Transaction
	for _, tx := range f.transactions {
		if tx.UserID == userID && want[tx.ID] {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) UnclassifiedTransactions(_ context.Context, userID int64, limit int) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range f.transactions {
		if tx.UserID == userID && tx.VendorID == 0 && tx.CategoryID == 0 {
			out = append(out, tx)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SetTransactionClassification(_ context.Context, txID, vendorID, categoryID int64) error {
	for i := range f.transactions {
		if f.transactions[i].ID == txID {
			f.transactions[i].VendorID = vendorID
			f.transactions[i].CategoryID = categoryID
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeStore) BudgetsForMonth(_ context.Context, userID int64, month, year int) ([]core.Budget, error) {
	var out []core.Budget
	for _, b := range f.budgets {
		if b.UserID == userID && b.Month == month && b.Year == year {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) CategoriesByUser(_ context.Context, userID int64) ([]core.Category, error) {
	var out []core.Category
	for _, c := range f.categories {
		if c.UserID == core.GlobalScope || c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveRecurring(_ context.Context, userID int64) ([]core.RecurringTransaction, error) {
	var out []core.RecurringTransaction
	for _, r := range f.recurring {
		if r.UserID == userID && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRecurringSchedule(_ context.Context, id int64, lastDate, nextDate core.Date, active bool) error {
	for i := range f.recurring {
		if f.recurring[i].ID == id {
			f.recurring[i].LastDate = lastDate
			f.recurring[i].NextDate = nextDate
			f.recurring[i].Active = active
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeStore) SetRecurringActive(_ context.Context, userID, id int64, active bool) error {
	for i := range f.recurring {
		if f.recurring[i].ID == id && f.recurring[i].UserID == userID {
			f.recurring[i].Active = active
			return nil
		}
	}
	return core.ErrNotFound
}
