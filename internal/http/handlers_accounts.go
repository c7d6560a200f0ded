package http

import "net/http"

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, "Invalid account request", err)
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), user.ID, req.toInput())
	if err != nil {
		s.fail(w, r, "Failed to create account", err)
		return
	}
	Created(account).Write(w)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.fail(w, r, "Failed to list accounts", err)
		return
	}
	OK(accounts).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	view, err := s.ledger.GetAccountWithTransactions(r.Context(), userFrom(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "Failed to load account", err)
		return
	}
	OK(view).Write(w)
}

func (s *Server) handleSetDefaultAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledger.SetDefaultAccount(r.Context(), userFrom(r.Context()).ID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, "Failed to set default account", err)
		return
	}
	OK(account).Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := s.ledger.DeleteAccount(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.fail(w, r, "Failed to delete account", err)
		return
	}
	s.invalidateInsights(user.ID)
	OK(map[string]string{"id": r.PathValue("id")}).Write(w)
}
