package api

import (
	"net/http"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/library"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.lm.Directory.ListMembers(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, members, s.log)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.requireSelfOrStaff(r.Context(), id); err != nil {
		handleError(w, err, s.log)
		return
	}
	m, err := s.lm.Directory.GetMember(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, m, s.log)
}

func (s *Server) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req library.Member
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	m, err := s.lm.Directory.RegisterMember(r.Context(), req)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	created(w, m, s.log)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	var req library.MemberUpdate
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	m, err := s.lm.Directory.UpdateMember(r.Context(), id, req)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, m, s.log)
}

func (s *Server) handleSuspendMember(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	ok, err := s.lm.Directory.SuspendMember(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if !ok {
		handleError(w, domainerrors.NotFoundf("member %d not found", id), s.log)
		return
	}
	m, err := s.lm.Directory.GetMember(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, m, s.log)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	ok, err := s.lm.Loans.DeleteMember(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if !ok {
		handleError(w, domainerrors.New(domainerrors.CodeDeleteBlocked, "member has active or overdue loans"), s.log)
		return
	}
	success(w, map[string]any{"deleted": true, "member_id": id}, s.log)
}
