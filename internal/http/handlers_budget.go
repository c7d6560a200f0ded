package http

import (
	"net/http"
	"strings"
)

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid budget request", err)
		return
	}

	budget, err := s.ledger.UpsertBudget(r.Context(), userFrom(r.Context()).ID, req.Amount)
	if err != nil {
		s.fail(w, r, "Failed to save budget", err)
		return
	}
	OK(budget).Write(w)
}

// handleGetBudget returns the budget with this month's expenses on the
// requested account, or the default account when none is given.
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.URL.Query().Get("accountId"))
	status, err := s.ledger.GetBudgetStatus(r.Context(), userFrom(r.Context()).ID, accountID)
	if err != nil {
		s.fail(w, r, "Failed to load budget", err)
		return
	}
	OK(status).Write(w)
}
