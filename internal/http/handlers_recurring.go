package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/services"
)

type createRecurringRequest struct {
	VendorID  int64  `json:"vendor_id"`
	Amount    string `json:"amount"`
	Frequency string `json:"frequency"`
	LastDate  string `json:"last_date"`
}

// handleCreateRecurring registers a recurring obligation. The next
// expected date is derived from the last observed one.
func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req createRecurringRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		badRequest(w, "invalid amount: "+req.Amount)
		return
	}
	lastDate, err := core.ParseDate(req.LastDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	frequency := core.Frequency(req.Frequency)
	advancer, err := services.GetDateAdvancer(frequency)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.store.CreateRecurring(r.Context(), core.RecurringTransaction{
		UserID:    uid,
		VendorID:  req.VendorID,
		Amount:    core.Money{Cents: cents},
		Frequency: frequency,
		LastDate:  lastDate,
		NextDate:  advancer.Advance(lastDate),
		Active:    true,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type recurringResponse struct {
	ID          int64  `json:"id"`
	VendorID    int64  `json:"vendor_id"`
	AmountCents int64  `json:"amount_cents"`
	Frequency   string `json:"frequency"`
	LastDate    string `json:"last_date"`
	NextDate    string `json:"next_date"`
	Active      bool   `json:"active"`
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	records, err := s.store.ActiveRecurring(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]recurringResponse, 0, len(records))
	for _, rt := range records {
		out = append(out, recurringResponse{
			ID:          rt.ID,
			VendorID:    rt.VendorID,
			AmountCents: rt.Amount.Cents,
			Frequency:   string(rt.Frequency),
			LastDate:    rt.LastDate.String(),
			NextDate:    rt.NextDate.String(),
			Active:      rt.Active,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type recurringUpdateResponse struct {
	ID       int64  `json:"id"`
	VendorID int64  `json:"vendor_id"`
	LastDate string `json:"last_date"`
	NextDate string `json:"next_date"`
	Active   bool   `json:"active"`
	Advanced bool   `json:"advanced"`
	Overdue  bool   `json:"overdue"`
}

// handleRefreshRecurring walks active schedules against observed
// transactions and advances the ones that were paid.
func (s *Server) handleRefreshRecurring(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	now := core.Today()
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := core.ParseDate(v)
		if err != nil {
			badRequest(w, "as_of must be YYYY-MM-DD")
			return
		}
		now = parsed
	}

	updates, err := s.tracker.Refresh(r.Context(), uid, now)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]recurringUpdateResponse, 0, len(updates))
	for _, u := range updates {
		out = append(out, recurringUpdateResponse{
			ID:       u.ID,
			VendorID: u.VendorID,
			LastDate: u.LastDate.String(),
			NextDate: u.NextDate.String(),
			Active:   u.Active,
			Advanced: u.Advanced,
			Overdue:  u.Overdue,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"as_of":   now.String(),
		"updates": out,
	})
}

func (s *Server) handleDeactivateRecurring(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid recurring id")
		return
	}

	if err := s.tracker.Deactivate(r.Context(), uid, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
