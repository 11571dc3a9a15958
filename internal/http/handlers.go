package http

import "net/http"

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := s.ledger.Transactions(r.Context(), ParseFilter(r.URL.Query()))
	if err != nil {
		s.fail(w, r, "list_transactions", err)
		return
	}
	NewResponse().JSON(page).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := s.ledger.Transaction(r.Context(), id)
	if err != nil {
		s.fail(w, r, "get_transaction", err)
		return
	}
	NewResponse().JSON(t).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := s.ledger.AddTransaction(r.Context(), req.Draft())
	if err != nil {
		s.fail(w, r, "create_transaction", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(t).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req TransactionRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := s.ledger.UpdateTransaction(r.Context(), id, req.Draft())
	if err != nil {
		s.fail(w, r, "update_transaction", err)
		return
	}
	NewResponse().JSON(t).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id, Confirmation(r.URL.Query())); err != nil {
		s.fail(w, r, "delete_transaction", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleClearTransactions(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.ClearAll(r.Context(), Confirmation(r.URL.Query()))
	if err != nil {
		s.fail(w, r, "clear_transactions", err)
		return
	}
	NewResponse().JSON(map[string]int{"removed": n}).Write(w)
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := s.ledger.PayBill(r.Context(), string(req.Amount))
	if err != nil {
		s.fail(w, r, "pay_bill", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(t).Write(w)
}
