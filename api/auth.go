package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/library"
)

const tokenIssuer = "library-circulation"

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const userKey ctxKey = "user"

// currentUser returns the authenticated user stored by requireAuth.
func currentUser(ctx context.Context) (*library.User, error) {
	u, ok := ctx.Value(userKey).(*library.User)
	if !ok || u == nil {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	return u, nil
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// issueToken signs a bearer token for u.
func (s *Server) issueToken(u *library.User) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(s.cfg.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "sign token")
	}
	return signed, expires, nil
}

// verifyToken checks signature, issuer and expiry, then loads the user so a
// deleted account or changed role takes effect immediately.
func (s *Server) verifyToken(ctx context.Context, raw string) (*library.User, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired())
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, domainerrors.New(domainerrors.CodeTokenExpired, "token expired")
	}
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid token")
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid token subject")
	}
	u, err := s.lm.Gate.GetUser(ctx, id)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.Unauthorized("account no longer exists")
	}
	return u, err
}

// authenticate resolves the caller from a bearer token or, failing that, the
// email and password query parameters. Credentials are checked on every call
// and share the per-address login budget.
func (s *Server) authenticate(r *http.Request) (*library.User, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return s.verifyToken(r.Context(), strings.TrimSpace(h[len("Bearer "):]))
	}
	q := r.URL.Query()
	email, password := q.Get("email"), q.Get("password")
	if email == "" || password == "" {
		return nil, domainerrors.Unauthorized("credentials required")
	}
	if !s.logins.Allow(clientKey(r)) {
		return nil, domainerrors.New(domainerrors.CodeRateLimited, "too many login attempts, try again later")
	}
	return s.lm.Gate.Authenticate(r.Context(), email, password)
}

// requireAuth rejects requests without valid credentials.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := s.authenticate(r)
		if err != nil {
			handleError(w, err, s.log)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// requireStaff rejects authenticated users who are not librarians or
// administrators. It must run after requireAuth.
func (s *Server) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := currentUser(r.Context())
		if err != nil {
			handleError(w, err, s.log)
			return
		}
		if err := s.lm.RequireStaff(u); err != nil {
			handleError(w, err, s.log)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireSelfOrStaff allows staff, or a member acting on their own record.
func (s *Server) requireSelfOrStaff(ctx context.Context, memberID int64) error {
	u, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if s.lm.RequireStaff(u) == nil {
		return nil
	}
	m, err := s.lm.Gate.MemberFor(ctx, u)
	if err != nil || m.ID != memberID {
		return domainerrors.Forbidden("members may only act on their own record")
	}
	return nil
}

// clientKey identifies the caller for rate limiting. RealIP has already
// rewritten RemoteAddr from forwarding headers.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
