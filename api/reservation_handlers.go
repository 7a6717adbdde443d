package api

import (
	"net/http"

	domainerrors "library-circulation/internal/errors"
)

type reservationRequest struct {
	MemberID int64 `json:"member_id" validate:"required,gt=0"`
	BookID   int64 `json:"book_id" validate:"required,gt=0"`
	Days     int   `json:"days" validate:"gte=0,lte=365"`
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	list, err := s.lm.Reservations.List(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, list, s.log)
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.requireSelfOrStaff(r.Context(), req.MemberID); err != nil {
		handleError(w, err, s.log)
		return
	}
	rv, err := s.lm.Reservations.Create(r.Context(), req.MemberID, req.BookID, req.Days)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	created(w, rv, s.log)
}

func (s *Server) handleMemberReservations(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.requireSelfOrStaff(r.Context(), id); err != nil {
		handleError(w, err, s.log)
		return
	}
	list, err := s.lm.Reservations.GetMemberReservations(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, list, s.log)
}

func (s *Server) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	rv, err := s.lm.Reservations.Get(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.requireSelfOrStaff(r.Context(), rv.MemberID); err != nil {
		handleError(w, err, s.log)
		return
	}
	ok, err := s.lm.Reservations.Cancel(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if !ok {
		handleError(w, domainerrors.NotFoundf("reservation %d not found", id), s.log)
		return
	}
	success(w, map[string]any{"cancelled": true, "reservation_id": id}, s.log)
}

func (s *Server) handleExpireReservations(w http.ResponseWriter, r *http.Request) {
	n, err := s.lm.Reservations.ExpireReservations(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, map[string]int64{"expired": n}, s.log)
}
