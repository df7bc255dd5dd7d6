package http

import (
	"net/http"

	"ledger/internal/core"
)

type ruleResponse struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Kind     string `json:"kind"`
	Keyword  string `json:"keyword"`
	TargetID int64  `json:"target_id"`
	Priority int    `json:"priority"`
}

// handleListRules returns the user's rules plus the global ones for a
// kind, in match order.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	kind := core.RuleKind(r.URL.Query().Get("kind"))
	if kind != core.VendorRule && kind != core.CategoryRule {
		badRequest(w, "kind must be 'vendor' or 'category'")
		return
	}

	rules, err := s.store.RulesByScope(r.Context(), uid, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleResponse{
			ID:       rule.ID,
			UserID:   rule.UserID,
			Kind:     string(rule.Kind),
			Keyword:  rule.Keyword,
			TargetID: rule.TargetID,
			Priority: rule.Priority,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createRuleRequest struct {
	Kind     string `json:"kind"`
	Keyword  string `json:"keyword"`
	TargetID int64  `json:"target_id"`
	Priority int    `json:"priority"`
	Global   bool   `json:"global"`
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req createRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	owner := uid
	if req.Global {
		if !isAdmin(r) {
			forbidden(w, "global rules require operator access")
			return
		}
		owner = core.GlobalScope
	}
	rule := core.KeywordRule{
		UserID:   owner,
		Kind:     core.RuleKind(req.Kind),
		Keyword:  req.Keyword,
		TargetID: req.TargetID,
		Priority: req.Priority,
	}

	id, err := s.store.CreateRule(r.Context(), rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid rule id")
		return
	}

	if err := s.store.SoftDeleteRule(r.Context(), uid, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryResponse struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID int64  `json:"parent_id"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	categories, err := s.store.CategoriesByUser(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{
			ID:       c.ID,
			UserID:   c.UserID,
			Name:     c.Name,
			Type:     string(c.Type),
			ParentID: c.ParentID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createCategoryRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID int64  `json:"parent_id"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req createCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.store.CreateCategory(r.Context(), core.Category{
		UserID:   uid,
		Name:     req.Name,
		Type:     core.TransactionType(req.Type),
		ParentID: req.ParentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}
