package http

import (
	"net/http"
	"strings"
	"time"

	"savvycent/internal/core"
	applog "savvycent/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid transaction request", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.fail(w, r, "Invalid transaction request", err)
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), user.ID, in)
	if err != nil {
		s.fail(w, r, "Failed to create transaction", err)
		return
	}
	s.invalidateInsights(user.ID)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithTransaction(tx.ID, tx.AccountID, string(tx.Type), tx.Amount.String()).
			ToSlice()...)
	Created(tx).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid transaction request", err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.fail(w, r, "Invalid transaction request", err)
		return
	}

	tx, err := s.ledger.UpdateTransaction(r.Context(), user.ID, r.PathValue("id"), in)
	if err != nil {
		s.fail(w, r, "Failed to update transaction", err)
		return
	}
	s.invalidateInsights(user.ID)
	OK(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id := r.PathValue("id")
	if err := s.ledger.DeleteTransaction(r.Context(), user.ID, id); err != nil {
		s.fail(w, r, "Failed to delete transaction", err)
		return
	}
	s.invalidateInsights(user.ID)
	OK(map[string]string{"id": id}).Write(w)
}

func (s *Server) handleBulkDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req bulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid bulk delete request", err)
		return
	}

	deleted, err := s.ledger.BulkDeleteTransactions(r.Context(), user.ID, req.IDs)
	if err != nil {
		s.fail(w, r, "Failed to delete transactions", err)
		return
	}
	s.invalidateInsights(user.ID)
	OK(map[string]int{"deleted": deleted}).Write(w)
}

// handleListTransactions returns the dashboard list. Without from/to it
// covers the current month; either bound may be given alone.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	from, to := core.MonthBounds(s.now())

	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			s.fail(w, r, "Invalid from date", err)
			return
		}
		from = t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			s.fail(w, r, "Invalid to date", err)
			return
		}
		to = t
		if len(v) == len("2006-01-02") {
			to = to.Add(24 * time.Hour) // inclusive day
		}
	}
	if !from.Before(to) {
		BadRequestError("from must be before to").Write(w)
		return
	}

	txs, err := s.ledger.ListTransactions(r.Context(), user.ID, from, to)
	if err != nil {
		s.fail(w, r, "Failed to list transactions", err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	OK(txs).Write(w)
}
