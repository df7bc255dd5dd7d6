package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ledger/internal/core"
	"ledger/internal/services"
)

type recordedPublish struct {
	userID int64
	ids    []int64
}

type fakePublisher struct {
	published []recordedPublish
}

func (p *fakePublisher) PublishTransactionsImported(_ context.Context, userID int64, ids []int64) error {
	p.published = append(p.published, recordedPublish{userID: userID, ids: ids})
	return nil
}

func newTestServer(store *fakeStore) (*Server, *fakePublisher) {
	pub := &fakePublisher{}
	srv := NewServer(":0", Deps{
		Store:      store,
		Classifier: services.NewClassificationService(store, store, nil, 0),
		Aggregator: services.NewAggregator(store, store, store),
		Tracker:    services.NewRecurrenceTracker(store, store, 100),
		Publisher:  pub,
	})
	return srv, pub
}

func doJSON(t *testing.T, srv *Server, method, path string, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHandlers_RequireUserHeader(t *testing.T) {
	srv, _ := newTestServer(newFakeStore())
	defer srv.Shutdown(context.Background())

	paths := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/classify"},
		{http.MethodGet, "/api/rules?kind=vendor"},
		{http.MethodGet, "/api/reports/budget-status"},
		{http.MethodPost, "/api/recurring/refresh"},
	}
	for _, p := range paths {
		rec := doJSON(t, srv, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without user header: status %d, want 401", p.method, p.path, rec.Code)
		}
	}
}

func TestHandleImportTransactions_PublishesAndStores(t *testing.T) {
	store := newFakeStore()
	srv, pub := newTestServer(store)
	defer srv.Shutdown(context.Background())

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", "1", map[string]any{
		"transactions": []map[string]any{
			{"description": "NETFLIX.COM", "amount": "12.99", "date": "2024-03-01", "type": "expense"},
			{"description": "SALARY MARCH", "amount": "2500,00", "date": "2024-03-01", "type": "income"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TransactionIDs []int64 `json:"transaction_ids"`
		Imported       int     `json:"imported"`
	}
	decodeResponse(t, rec, &resp)
	if resp.Imported != 2 || len(resp.TransactionIDs) != 2 {
		t.Fatalf("resp = %+v", resp)
	}

	if store.transactions[0].Amount.Cents != 1299 {
		t.Errorf("first amount = %d cents", store.transactions[0].Amount.Cents)
	}
	if store.transactions[1].Amount.Cents != 250000 {
		t.Errorf("second amount = %d cents", store.transactions[1].Amount.Cents)
	}
	if store.transactions[0].Currency != "EUR" {
		t.Errorf("default currency = %q", store.transactions[0].Currency)
	}

	if len(pub.published) != 1 || pub.published[0].userID != 1 || len(pub.published[0].ids) != 2 {
		t.Errorf("published = %+v", pub.published)
	}
}

func TestHandleClassify_Preview(t *testing.T) {
	store := newFakeStore()
	store.rules = []core.KeywordRule{
		{ID: 1, UserID: core.GlobalScope, Kind: core.VendorRule, Keyword: "netflix", TargetID: 100},
		{ID: 2, UserID: core.GlobalScope, Kind: core.CategoryRule, Keyword: "netflix", TargetID: 200},
	}
	srv, _ := newTestServer(store)
	defer srv.Shutdown(context.Background())

	rec := doJSON(t, srv, http.MethodPost, "/api/classify", "1", map[string]string{
		"description": "NETFLIX.COM 123456",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		VendorID   int64 `json:"vendor_id"`
		CategoryID int64 `json:"category_id"`
	}
	decodeResponse(t, rec, &resp)
	if resp.VendorID != 100 || resp.CategoryID != 200 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRuleLifecycle(t *testing.T) {
	store := newFakeStore()
	srv, _ := newTestServer(store)
	defer srv.Shutdown(context.Background())

	rec := doJSON(t, srv, http.MethodPost, "/api/rules", "1", map[string]any{
		"kind": "vendor", "keyword": "spotify", "target_id": 42, "priority": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeResponse(t, rec, &created)

	rec = doJSON(t, srv, http.MethodGet, "/api/rules?kind=vendor", "1", nil)
	var listed []ruleResponse
	decodeResponse(t, rec, &listed)
	if len(listed) != 1 || listed[0].Keyword != "spotify" {
		t.Fatalf("listed = %+v", listed)
	}

	// Invalid rule payloads are rejected.
	rec = doJSON(t, srv, http.MethodPost, "/api/rules", "1", map[string]any{
		"kind": "vendor", "keyword": "   ", "target_id": 42,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank keyword status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/rules/1001", "1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/api/rules/1001", "1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHandleCreateBudget_DuplicateConflict(t *testing.T) {
	store := newFakeStore()
	srv, _ := newTestServer(store)
	defer srv.Shutdown(context.Background())

	body := map[string]any{"category_id": 7, "amount": "500.00", "month": 3, "year": 2024}
	if rec := doJSON(t, srv, http.MethodPost, "/api/budgets", "1", body); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, srv, http.MethodPost, "/api/budgets", "1", body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestHandleBudgetStatus_Report(t *testing.T) {
	store := newFakeStore()
	store.categories = []core.Category{{ID: 7, UserID: 1, Name: "Groceries", Type: core.Expense}}
	store.budgets = []core.Budget{{ID: 1, UserID: 1, CategoryID: 7, Amount: core.Money{Cents: 50000}, Month: 3, Year: 2024}}
	store.transactions = []core.Transaction{
		{ID: 1, UserID: 1, Description: "MARKET", Amount: core.Money{Cents: 32000}, Currency: "EUR", Date: core.NewDate(2024, 3, 10), Type: core.Expense, CategoryID: 7},
	}
	srv, _ := newTestServer(store)
	defer srv.Shutdown(context.Background())

	rec := doJSON(t, srv, http.MethodGet, "/api/reports/budget-status?year=2024&month=3", "1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Budgets []budgetStatusResponse `json:"budgets"`
	}
	decodeResponse(t, rec, &resp)
	if len(resp.Budgets) != 1 {
		t.Fatalf("budgets = %+v", resp.Budgets)
	}
	b := resp.Budgets[0]
	if b.SpentCents != 32000 || b.RemainingCents != 18000 || b.PercentageUsed != 64.0 {
		t.Errorf("budget status = %+v", b)
	}

	// Second call hits the cache and must agree.
	rec = doJSON(t, srv, http.MethodGet, "/api/reports/budget-status?year=2024&month=3", "1", nil)
	var again struct {
		Budgets []budgetStatusResponse `json:"budgets"`
	}
	decodeResponse(t, rec, &again)
	if len(again.Budgets) != 1 || again.Budgets[0] != b {
		t.Errorf("cached status diverges: %+v vs %+v", again.Budgets, b)
	}
}

func TestHandleCashFlow_CachedSummaryAgrees(t *testing.T) {
	store := newFakeStore()
	store.transactions = []core.Transaction{
		{ID: 1, UserID: 1, Description: "SALARY", Amount: core.Money{Cents: 200000}, Currency: "EUR", Date: core.NewDate(2024, 1, 25), Type: core.Income},
		{ID: 2, UserID: 1, Description: "RENT", Amount: core.Money{Cents: 80000}, Currency: "EUR", Date: core.NewDate(2024, 1, 1), Type: core.Expense},
		// A zero-income month with spend still counts toward the average.
		{ID: 3, UserID: 1, Description: "RENT", Amount: core.Money{Cents: 80000}, Currency: "EUR", Date: core.NewDate(2024, 2, 1), Type: core.Expense},
	}
	srv, _ := newTestServer(store)
	defer srv.Shutdown(context.Background())

	type summaryResponse struct {
		TotalIncomeCents  int64   `json:"total_income_cents"`
		TotalExpenseCents int64   `json:"total_expense_cents"`
		NetSavingsCents   int64   `json:"net_savings_cents"`
		AvgSavingsRate    float64 `json:"avg_savings_rate"`
	}
	var first, second struct {
		Summary summaryResponse `json:"summary"`
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/reports/cashflow?year=2024", "1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	decodeResponse(t, rec, &first)
	if first.Summary.NetSavingsCents != 40000 {
		t.Errorf("net savings = %d, want 40000", first.Summary.NetSavingsCents)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/reports/cashflow?year=2024", "1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cached status = %d, body %s", rec.Code, rec.Body.String())
	}
	decodeResponse(t, rec, &second)
	if second.Summary != first.Summary {
		t.Errorf("cached summary diverges: %+v vs %+v", second.Summary, first.Summary)
	}
}

func TestHandleTotals_RejectsUnknownGroupBy(t *testing.T) {
	srv, _ := newTestServer(newFakeStore())
	defer srv.Shutdown(context.Background())

	rec := doJSON(t, srv, http.MethodGet, "/api/reports/totals?from=2024-01-01&to=2024-12-31&group_by=account", "1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRecurringRefreshEndpoint(t *testing.T) {
	store := newFakeStore()
	store.recurring = []core.RecurringTransaction{
		{ID: 1, UserID: 1, VendorID: 100, Amount: core.Money{Cents: 1299}, Frequency: core.Monthly,
			LastDate: core.NewDate(2024, 2, 15), NextDate: core.NewDate(2024, 3, 15), Active: true},
	}
	store.transactions = []core.Transaction{
		{ID: 1, UserID: 1, Description: "NETFLIX.COM", Amount: core.Money{Cents: 1299}, Currency: "EUR",
			Date: core.NewDate(2024, 3, 15), Type: core.Expense, VendorID: 100},
	}
	srv, _ := newTestServer(store)
	defer srv.Shutdown(context.Background())

	rec := doJSON(t, srv, http.MethodPost, "/api/recurring/refresh?as_of=2024-03-20", "1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Updates []recurringUpdateResponse `json:"updates"`
	}
	decodeResponse(t, rec, &resp)
	if len(resp.Updates) != 1 {
		t.Fatalf("updates = %+v", resp.Updates)
	}
	u := resp.Updates[0]
	if !u.Advanced || u.NextDate != "2024-04-15" {
		t.Errorf("update = %+v", u)
	}
	if store.recurring[0].NextDate.String() != "2024-04-15" {
		t.Errorf("schedule not persisted: %+v", store.recurring[0])
	}
}

func TestCreateRecurring_DerivesNextDate(t *testing.T) {
	store := newFakeStore()
	srv, _ := newTestServer(store)
	defer srv.Shutdown(context.Background())

	rec := doJSON(t, srv, http.MethodPost, "/api/recurring", "1", map[string]any{
		"vendor_id": 100, "amount": "12.99", "frequency": "monthly", "last_date": "2024-01-31",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	// Day clamped to the shorter month.
	if store.recurring[0].NextDate.String() != "2024-02-29" {
		t.Errorf("next date = %s", store.recurring[0].NextDate)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/recurring", "1", map[string]any{
		"vendor_id": 100, "amount": "12.99", "frequency": "fortnightly", "last_date": "2024-01-31",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown frequency status = %d, want 400", rec.Code)
	}
}

func TestCreateRule_GlobalRequiresOperator(t *testing.T) {
	store := newFakeStore()
	srv, _ := newTestServer(store)
	defer srv.Shutdown(context.Background())

	body := map[string]any{
		"kind": "vendor", "keyword": "netflix", "target_id": 100, "priority": 5, "global": true,
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/rules", "1", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(store.rules) != 0 {
		t.Fatalf("rule created without operator access: %+v", store.rules)
	}

	// The gateway marks operator requests with X-Admin.
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/rules", &buf)
	req.Header.Set("X-User-ID", "1")
	req.Header.Set("X-Admin", "true")
	w := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("operator status = %d, body %s", w.Code, w.Body.String())
	}
	if len(store.rules) != 1 || store.rules[0].UserID != core.GlobalScope {
		t.Errorf("rules = %+v, want one global rule", store.rules)
	}
}

func TestDeactivateRecurring_ScopedToOwner(t *testing.T) {
	store := newFakeStore()
	store.recurring = []core.RecurringTransaction{
		{ID: 7, UserID: 2, VendorID: 100, Amount: core.Money{Cents: 1299}, Frequency: core.Monthly,
			LastDate: core.NewDate(2024, 2, 15), NextDate: core.NewDate(2024, 3, 15), Active: true},
	}
	srv, _ := newTestServer(store)
	defer srv.Shutdown(context.Background())

	// User 1 must not be able to flip user 2's schedule.
	rec := doJSON(t, srv, http.MethodPost, "/api/recurring/7/deactivate", "1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !store.recurring[0].Active {
		t.Fatalf("schedule deactivated by non-owner")
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/recurring/7/deactivate", "2", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("owner status = %d, want 204", rec.Code)
	}
	if store.recurring[0].Active {
		t.Errorf("schedule still active after owner deactivation")
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(newFakeStore())
	defer srv.Shutdown(context.Background())

	if rec := doJSON(t, srv, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, body %s", rec.Code, rec.Body.String())
	}
}
