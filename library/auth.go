package library

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// Gate authenticates principals and answers role questions. It does not
// enforce anything itself: callers check before mutating.
type Gate struct {
	st  store.Store
	cfg *settings
}

// NewGate creates a Gate over st.
func NewGate(st store.Store, opts ...Option) *Gate {
	return &Gate{st: st, cfg: newSettings(opts)}
}

// Authenticate returns the user whose email and password match. Any mismatch,
// including an unknown email, is ErrInvalidCredentials.
//
// Accounts created before bcrypt carry an unsalted SHA-256 hex digest. Those
// are still accepted and rehashed on the first successful login.
func (g *Gate) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := g.userByEmail(ctx, email)
	if errors.Is(err, domainerrors.ErrNotFound) {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if isLegacyHash(u.PasswordHash) {
		sum := sha256.Sum256([]byte(password))
		if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(strings.ToLower(u.PasswordHash))) != 1 {
			return nil, ErrInvalidCredentials
		}
		if err := g.setPassword(ctx, u.ID, password); err != nil {
			g.cfg.log.Warn("legacy password rehash failed", "user_id", u.ID, "error", err)
		} else {
			g.cfg.log.Info("legacy password rehashed", "user_id", u.ID)
		}
		return u, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("library-circulation"), bcrypt.MinCost)

func isLegacyHash(h string) bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

// HasRole reports whether u holds one of roles. A nil user holds none.
func (g *Gate) HasRole(u *User, roles ...Role) bool {
	return u != nil && slices.Contains(roles, u.Role)
}

// CanManageBooks is true for librarians and administrators.
func (g *Gate) CanManageBooks(u *User) bool {
	return g.HasRole(u, RoleLibrarian, RoleAdministrator)
}

// CanManageMembers is true for librarians and administrators.
func (g *Gate) CanManageMembers(u *User) bool {
	return g.HasRole(u, RoleLibrarian, RoleAdministrator)
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// CreateUser stores u with a bcrypt hash of password.
func (g *Gate) CreateUser(ctx context.Context, u User, password string) (*User, error) {
	u.ID = 0
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
	if role, err := ParseRole(string(u.Role)); err == nil {
		u.Role = role
	}
	if err := g.cfg.validate.Validate(u); err != nil {
		return nil, err
	}
	hash, err := g.hash(password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	row, err := g.st.Insert(ctx, store.Users, u.toRow())
	if err != nil {
		return nil, storeErr(err, "create user %q", u.Email)
	}
	created, err := userFromRow(row)
	if err != nil {
		return nil, err
	}
	g.cfg.log.Info("user created", "user_id", created.ID, "email", created.Email, "role", created.Role)
	return &created, nil
}

// ChangePassword replaces the password of userID after checking the current
// one.
func (g *Gate) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := g.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := g.Authenticate(ctx, u.Email, current); err != nil {
		return err
	}
	return g.setPassword(ctx, userID, next)
}

// GetUser fetches one user.
func (g *Gate) GetUser(ctx context.Context, userID int64) (*User, error) {
	rows, err := g.st.Select(ctx, store.Users, store.Eq("user_id", userID))
	if err != nil {
		return nil, storeErr(err, "get user %d", userID)
	}
	if len(rows) == 0 {
		return nil, domainerrors.NotFoundf("user %d not found", userID)
	}
	u, err := userFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CountUsers returns the number of accounts. The CLI uses it to allow the
// very first administrator to be created without credentials.
func (g *Gate) CountUsers(ctx context.Context) (int, error) {
	rows, err := g.st.Select(ctx, store.Users)
	if err != nil {
		return 0, storeErr(err, "count users")
	}
	return len(rows), nil
}

// RegisterLibrarian gives a librarian or administrator account an employee
// id for stamping loans.
func (g *Gate) RegisterLibrarian(ctx context.Context, userID int64) (*Librarian, error) {
	u, err := g.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !g.CanManageBooks(u) {
		return nil, domainerrors.RuleViolation("only librarian or administrator accounts can be librarians")
	}
	row, err := g.st.Insert(ctx, store.Librarians, Librarian{UserID: userID}.toRow())
	if err != nil {
		return nil, storeErr(err, "register librarian for user %d", userID)
	}
	l, err := librarianFromRow(row)
	if err != nil {
		return nil, err
	}
	g.cfg.log.Info("librarian registered", "employee_id", l.EmployeeID, "user_id", userID)
	return &l, nil
}

// LibrarianFor returns the librarian record of userID.
func (g *Gate) LibrarianFor(ctx context.Context, userID int64) (*Librarian, error) {
	rows, err := g.st.Select(ctx, store.Librarians, store.Eq("user_id", userID))
	if err != nil {
		return nil, storeErr(err, "get librarian for user %d", userID)
	}
	if len(rows) == 0 {
		return nil, domainerrors.NotFoundf("user %d is not a registered librarian", userID)
	}
	l, err := librarianFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// MemberFor returns the member whose email matches the account, which is how
// self-service requests find "their own" member record.
func (g *Gate) MemberFor(ctx context.Context, u *User) (*Member, error) {
	rows, err := g.st.Select(ctx, store.Members, store.Eq("email", strings.ToLower(u.Email)))
	if err != nil {
		return nil, storeErr(err, "get member for user %d", u.ID)
	}
	if len(rows) == 0 {
		return nil, domainerrors.NotFoundf("no member record for %s", u.Email)
	}
	m, err := memberFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (g *Gate) userByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	rows, err := g.st.Select(ctx, store.Users, store.Eq("email", email))
	if err != nil {
		return nil, storeErr(err, "get user %q", email)
	}
	if len(rows) == 0 {
		return nil, domainerrors.NotFoundf("user %q not found", email)
	}
	u, err := userFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (g *Gate) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := g.hash(password)
	if err != nil {
		return err
	}
	n, err := g.st.Update(ctx, store.Users, store.Row{"password_hash": hash}, store.Eq("user_id", userID))
	if err != nil {
		return storeErr(err, "set password of user %d", userID)
	}
	if n == 0 {
		return domainerrors.NotFoundf("user %d not found", userID)
	}
	return nil
}

func (g *Gate) hash(password string) (string, error) {
	if password == "" {
		return "", domainerrors.Validation("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cfg.passwordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", domainerrors.Validation("password is longer than 72 bytes")
	}
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "hash password")
	}
	return string(hash), nil
}
