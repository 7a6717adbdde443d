package api

import (
	"net/http"

	domainerrors "library-circulation/internal/errors"
)

type issueRequest struct {
	MemberID int64 `json:"member_id" validate:"required,gt=0"`
	BookID   int64 `json:"book_id" validate:"required,gt=0"`
	LoanDays int   `json:"loan_days" validate:"gte=0,lte=365"`
}

type returnRequest struct {
	LoanID int64 `json:"loan_id" validate:"required,gt=0"`
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.lm.Loans.ListLoans(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, loans, s.log)
}

func (s *Server) handleActiveLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.lm.Loans.GetActiveLoans(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, loans, s.log)
}

func (s *Server) handleOverdueLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.lm.Loans.GetOverdueLoans(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, loans, s.log)
}

func (s *Server) handleMemberLoans(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.requireSelfOrStaff(r.Context(), id); err != nil {
		handleError(w, err, s.log)
		return
	}
	loans, err := s.lm.Loans.GetMemberLoans(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, loans, s.log)
}

func (s *Server) handleIssueLoan(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		handleError(w, err, s.log)
		return
	}
	actor, err := currentUser(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	loan, err := s.lm.IssueAs(r.Context(), actor, req.MemberID, req.BookID, req.LoanDays)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	created(w, loan, s.log)
}

func (s *Server) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		handleError(w, err, s.log)
		return
	}
	ok, err := s.lm.Loans.ReturnBook(r.Context(), req.LoanID)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if !ok {
		handleError(w, domainerrors.NotFoundf("loan %d not found", req.LoanID), s.log)
		return
	}
	loan, err := s.lm.Loans.GetLoan(r.Context(), req.LoanID)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, loan, s.log)
}

func (s *Server) handleUpdateOverdue(w http.ResponseWriter, r *http.Request) {
	n, err := s.lm.Loans.UpdateOverdueLoans(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, map[string]int64{"updated": n}, s.log)
}
