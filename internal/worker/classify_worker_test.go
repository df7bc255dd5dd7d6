package worker

import (
	"context"
	"testing"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/services"
)

type fakeStore struct {
	rules        []core.KeywordRule
	vendors      []core.Vendor
	transactions []core.Transaction
}

func (f *fakeStore) RulesByScope(_ context.Context, userID int64, kind core.RuleKind) ([]core.KeywordRule, error) {
	var out []core.KeywordRule
	for _, r := range f.rules {
		if r.Kind == kind && (r.UserID == core.GlobalScope || r.UserID == userID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) VendorsByScope(_ context.Context, userID int64) ([]core.Vendor, error) {
	return f.vendors, nil
}

func (f *fakeStore) CreateVendor(_ context.Context, v core.Vendor) (int64, error) {
	v.ID = int64(len(f.vendors) + 1)
	f.vendors = append(f.vendors, v)
	return v.ID, nil
}

func (f *fakeStore) AddVendorAlias(_ context.Context, vendorID int64, alias string) error {
	return nil
}

func (f *fakeStore) TransactionsInRange(_ context.Context, userID int64, from, to core.Date) ([]core.Transaction, error) {
	return nil, nil
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

func (f *fakeStore) UsersWithUnclassified(_ context.Context) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, tx := range f.transactions {
		if tx.VendorID == 0 && tx.CategoryID == 0 && !seen[tx.UserID] {
			seen[tx.UserID] = true
			out = append(out, tx.UserID)
		}
	}
	return out, nil
}

func seededStore() *fakeStore {
	return &fakeStore{
		rules: []core.KeywordRule{
			{ID: 1, UserID: core.GlobalScope, Kind: core.VendorRule, Keyword: "netflix", TargetID: 100},
			{ID: 2, UserID: core.GlobalScope, Kind: core.CategoryRule, Keyword: "netflix", TargetID: 200},
		},
		transactions: []core.Transaction{
			{ID: 10, UserID: 1, Description: "NETFLIX.COM", Amount: core.Money{Cents: 1299}, Date: core.NewDate(2024, 3, 1), Type: core.Expense},
			{ID: 11, UserID: 2, Description: "NETFLIX.COM 77", Amount: core.Money{Cents: 1299}, Date: core.NewDate(2024, 3, 2), Type: core.Expense},
		},
	}
}

func TestHandleImportMessage(t *testing.T) {
	store := seededStore()
	w := NewClassifyWorker(services.NewClassificationService(store, store, nil, 0), store)

	msg := &amqp.TransactionsImportedMessage{UserID: 1, TransactionIDs: []int64{10}}
	if err := w.HandleImportMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleImportMessage: %v", err)
	}

	if store.transactions[0].VendorID != 100 || store.transactions[0].CategoryID != 200 {
		t.Errorf("user 1 tx: %+v", store.transactions[0])
	}
	// The other user's transaction is untouched.
	if store.transactions[1].VendorID != 0 {
		t.Errorf("user 2 tx should stay unclassified: %+v", store.transactions[1])
	}
}

func TestSweepBacklog_CoversAllUsers(t *testing.T) {
	store := seededStore()
	w := NewClassifyWorker(services.NewClassificationService(store, store, nil, 0), store)

	if err := w.SweepBacklog(context.Background()); err != nil {
		t.Fatalf("SweepBacklog: %v", err)
	}

	for _, tx := range store.transactions {
		if tx.VendorID != 100 || tx.CategoryID != 200 {
			t.Errorf("transaction %d not classified: %+v", tx.ID, tx)
		}
	}
}
