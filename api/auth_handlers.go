package api

import (
	"net/http"
	"time"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/library"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User        *library.User `json:"user"`
	LibrarianID int64         `json:"librarian_id,omitempty"`
	Token       string        `json:"token"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.logins.Allow(clientKey(r)) {
		handleError(w, domainerrors.New(domainerrors.CodeRateLimited, "too many login attempts, try again later"), s.log)
		return
	}

	var req loginRequest
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		handleError(w, err, s.log)
		return
	}

	u, err := s.lm.Gate.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.log.Info("login failed", "email", req.Email, "remote", clientKey(r))
		handleError(w, err, s.log)
		return
	}

	resp := loginResponse{User: u}
	if lib, err := s.lm.Gate.LibrarianFor(r.Context(), u.ID); err == nil {
		resp.LibrarianID = lib.EmployeeID
	} else if !domainerrors.Is(err, domainerrors.ErrNotFound) {
		handleError(w, err, s.log)
		return
	}

	resp.Token, resp.ExpiresAt, err = s.issueToken(u)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, resp, s.log)
}
