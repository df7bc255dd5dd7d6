package http

import (
	"fmt"
	"net/http"

	"ledger/internal/core"
)

type budgetResponse struct {
	ID          int64  `json:"id"`
	CategoryID  int64  `json:"category_id"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Month       int    `json:"month"`
	Year        int    `json:"year"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	year, month := parseYearMonth(r)

	budgets, err := s.store.BudgetsForMonth(r.Context(), uid, month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, budgetResponse{
			ID:          b.ID,
			CategoryID:  b.CategoryID,
			AmountCents: b.Amount.Cents,
			Amount:      core.FormatCents(b.Amount.Cents),
			Month:       b.Month,
			Year:        b.Year,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createBudgetRequest struct {
	CategoryID int64  `json:"category_id"`
	Amount     string `json:"amount"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
}

// handleCreateBudget creates a budget line. A second live budget for
// the same category and month comes back as 409.
func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req createBudgetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		badRequest(w, "invalid amount: "+req.Amount)
		return
	}

	id, err := s.store.CreateBudget(r.Context(), core.Budget{
		UserID:     uid,
		CategoryID: req.CategoryID,
		Amount:     core.Money{Cents: cents},
		Month:      req.Month,
		Year:       req.Year,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.budgetStatusCache.Delete(budgetStatusKey(uid, req.Month, req.Year))
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid budget id")
		return
	}

	if err := s.store.SoftDeleteBudget(r.Context(), uid, id); err != nil {
		writeError(w, r, err)
		return
	}

	// Callers pass the budget's month/year as query params so the right
	// cached status can be dropped; stale entries also age out via TTL.
	year, month := parseYearMonth(r)
	s.budgetStatusCache.Delete(budgetStatusKey(uid, month, year))

	w.WriteHeader(http.StatusNoContent)
}

func budgetStatusKey(userID int64, month, year int) string {
	return fmt.Sprintf("budget-status:%d:%d-%02d", userID, year, month)
}
