package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
	"ledger/internal/services"
)

type budgetStatusResponse struct {
	CategoryID     int64   `json:"category_id"`
	CategoryName   string  `json:"category_name"`
	BudgetedCents  int64   `json:"budgeted_cents"`
	SpentCents     int64   `json:"spent_cents"`
	RemainingCents int64   `json:"remaining_cents"`
	PercentageUsed float64 `json:"percentage_used"`
}

func toBudgetStatusResponses(statuses []core.BudgetStatus) []budgetStatusResponse {
	out := make([]budgetStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, budgetStatusResponse{
			CategoryID:     st.CategoryID,
			CategoryName:   st.CategoryName,
			BudgetedCents:  st.Budgeted.Cents,
			SpentCents:     st.Spent.Cents,
			RemainingCents: st.Remaining.Cents,
			PercentageUsed: st.PercentageUsed,
		})
	}
	return out
}

func (s *Server) budgetStatuses(r *http.Request, uid int64, month, year int) ([]core.BudgetStatus, error) {
	key := budgetStatusKey(uid, month, year)
	if cached, ok := s.budgetStatusCache.Get(key); ok {
		return cached, nil
	}

	statuses, err := s.aggregator.BudgetStatus(r.Context(), uid, month, year)
	if err != nil {
		return nil, err
	}
	s.budgetStatusCache.Set(key, statuses)
	return statuses, nil
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	year, month := parseYearMonth(r)

	statuses, err := s.budgetStatuses(r, uid, month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"year":    year,
		"month":   month,
		"budgets": toBudgetStatusResponses(statuses),
	})
}

type nameTotalResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	TotalCents int64  `json:"total_cents"`
	Count      int    `json:"count"`
}

// handleTotals groups expense totals by category or vendor over an
// inclusive date range.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	from, err := core.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		badRequest(w, "from must be YYYY-MM-DD")
		return
	}
	to, err := core.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		badRequest(w, "to must be YYYY-MM-DD")
		return
	}

	groupBy := services.GroupBy(strings.TrimSpace(r.URL.Query().Get("group_by")))
	if groupBy == "" {
		groupBy = services.GroupByCategory
	}
	if groupBy != services.GroupByCategory && groupBy != services.GroupByVendor {
		badRequest(w, "group_by must be 'category' or 'vendor'")
		return
	}

	totals, err := s.aggregator.Totals(r.Context(), uid, from, to, groupBy)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]nameTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, nameTotalResponse{
			ID:         t.ID,
			Name:       t.Name,
			TotalCents: t.Total.Cents,
			Count:      t.Count,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":     from.String(),
		"to":       to.String(),
		"group_by": string(groupBy),
		"totals":   out,
	})
}

// cashFlowReport is the cached unit for the cashflow endpoint. The
// summary is computed by the aggregator once and stored with the
// months, so a cache hit serves the identical figures.
type cashFlowReport struct {
	Months  []core.MonthCashFlow
	Summary core.YearSummary
}

type monthCashFlowResponse struct {
	Year         int   `json:"year"`
	Month        int   `json:"month"`
	IncomeCents  int64 `json:"income_cents"`
	ExpenseCents int64 `json:"expense_cents"`
	NetCents     int64 `json:"net_cents"`
}

func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	year := time.Now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "year must be a number")
			return
		}
		year = y
	}

	key := fmt.Sprintf("cashflow:%d:%d", uid, year)
	report, ok := s.cashFlowCache.Get(key)
	if !ok {
		months, summary, err := s.aggregator.CashFlow(r.Context(), uid, year)
		if err != nil {
			writeError(w, r, err)
			return
		}
		report = cashFlowReport{Months: months, Summary: summary}
		s.cashFlowCache.Set(key, report)
	}
	summary := report.Summary

	out := make([]monthCashFlowResponse, 0, len(report.Months))
	for _, m := range report.Months {
		out = append(out, monthCashFlowResponse{
			Year:         m.Year,
			Month:        m.Month,
			IncomeCents:  m.Income.Cents,
			ExpenseCents: m.Expense.Cents,
			NetCents:     m.Net.Cents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":   year,
		"months": out,
		"summary": map[string]any{
			"total_income_cents":  summary.TotalIncome.Cents,
			"total_expense_cents": summary.TotalExpense.Cents,
			"net_savings_cents":   summary.NetSavings.Cents,
			"avg_savings_rate":    summary.AvgSavingsRate,
		},
	})
}

// handleExportBudgetStatus pushes the month's budget report to the
// configured export backend.
func (s *Server) handleExportBudgetStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	if s.budgetExporter == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no export backend configured"})
		return
	}
	year, month := parseYearMonth(r)

	statuses, err := s.budgetStatuses(r, uid, month, year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ref, err := s.budgetExporter.AppendBudgetReport(r.Context(), uid, month, year, statuses)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ref": ref})
}

func (s *Server) handleExportCashFlow(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	if s.cashFlowExporter == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no export backend configured"})
		return
	}

	year := time.Now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}

	months, _, err := s.aggregator.CashFlow(r.Context(), uid, year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ref, err := s.cashFlowExporter.AppendCashFlow(r.Context(), uid, year, months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ref": ref})
}
