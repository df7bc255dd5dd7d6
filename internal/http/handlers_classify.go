package http

import (
	"log/slog"
	"net/http"
	"strings"

	"ledger/internal/core"
)

type importTransactionRequest struct {
	AccountID   int64  `json:"account_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Date        string `json:"date"`
	Type        string `json:"type"`
}

type importRequest struct {
	Transactions []importTransactionRequest `json:"transactions"`
}

// handleImportTransactions inserts a batch of transactions and notifies
// the classification worker. Amounts arrive as decimal strings and are
// stored as exact cents.
func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req importRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Transactions) == 0 {
		badRequest(w, "no transactions provided")
		return
	}

	ids := make([]int64, 0, len(req.Transactions))
	for _, in := range req.Transactions {
		cents, err := core.ParseDecimalToCents(in.Amount)
		if err != nil {
			badRequest(w, "transaction "+in.Description+": invalid amount")
			return
		}
		date, err := core.ParseDate(in.Date)
		if err != nil {
			writeError(w, r, err)
			return
		}
		currency := strings.TrimSpace(in.Currency)
		if currency == "" {
			currency = "EUR"
		}

		tx := core.Transaction{
			AccountID:   in.AccountID,
			UserID:      uid,
			Description: in.Description,
			Amount:      core.Money{Cents: cents},
			Currency:    currency,
			Date:        date,
			Type:        core.TransactionType(in.Type),
		}
		id, err := s.store.CreateTransaction(r.Context(), tx)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ids = append(ids, id)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionsImported(r.Context(), uid, ids); err != nil {
			// Import already committed; the worker's periodic sweep will
			// pick these up.
			slog.WarnContext(r.Context(), "Failed to publish import message",
				"user_id", uid, "count", len(ids), "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction_ids": ids,
		"imported":        len(ids),
	})
}

type classifyRequest struct {
	Description string `json:"description"`
}

// handleClassify previews how a description would classify without
// touching any stored transaction.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req classifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		badRequest(w, "description is required")
		return
	}

	c, err := s.classifier.Classify(r.Context(), uid, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"vendor_id":        c.VendorID,
		"category_id":      c.CategoryID,
		"vendor_matched":   c.VendorMatched,
		"category_matched": c.CategoryMatched,
		"via_alias":        c.ViaAlias,
	})
}

type classifyBatchRequest struct {
	TransactionIDs []int64 `json:"transaction_ids"`
}

// handleClassifyBatch classifies the given transactions, or sweeps the
// user's unclassified backlog when no IDs are sent.
func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req classifyBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	classified, err := s.classifier.ClassifyBatch(r.Context(), uid, req.TransactionIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"classified": classified})
}

type ensureVendorRequest struct {
	Description string `json:"description"`
}

// handleEnsureVendor resolves a raw description to a vendor, creating
// one under the cleaned merchant name when nothing matches.
func (s *Server) handleEnsureVendor(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req ensureVendorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		badRequest(w, "description is required")
		return
	}

	id, created, err := s.classifier.EnsureVendor(r.Context(), uid, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"vendor_id": id,
		"created":   created,
	})
}
