package library

import (
	"context"
	"fmt"
	"strings"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// LibraryManager is a thin façade over the circulation services, keeping CLI
// and API code simple. All services share one store and one set of options.
type LibraryManager struct {
	st store.Store

	Ledger       *Ledger
	Loans        *LoanEngine
	Directory    *Directory
	Reservations *Reservations
	Gate         *Gate
}

// NewLibraryManager wires every service over st.
func NewLibraryManager(st store.Store, opts ...Option) *LibraryManager {
	cfg := newSettings(opts)
	ledger := &Ledger{st: st, cfg: cfg}
	return &LibraryManager{
		st:           st,
		Ledger:       ledger,
		Loans:        &LoanEngine{st: st, ledger: ledger, cfg: cfg},
		Directory:    &Directory{st: st, cfg: cfg},
		Reservations: &Reservations{st: st, cfg: cfg},
		Gate:         &Gate{st: st, cfg: cfg},
	}
}

// Close closes the underlying store.
func (lm *LibraryManager) Close() error { return lm.st.Close() }

// ------------------ Authorization ------------------

// Login authenticates and, when roles are given, requires one of them.
func (lm *LibraryManager) Login(ctx context.Context, email, password string, roles ...Role) (*User, error) {
	u, err := lm.Gate.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if len(roles) > 0 && !lm.Gate.HasRole(u, roles...) {
		return nil, domainerrors.Forbidden("insufficient role for this operation")
	}
	return u, nil
}

// RequireStaff fails with Forbidden unless u may manage books and members.
func (lm *LibraryManager) RequireStaff(u *User) error {
	if !lm.Gate.CanManageBooks(u) || !lm.Gate.CanManageMembers(u) {
		return domainerrors.Forbidden("librarian or administrator role required")
	}
	return nil
}

// ------------------ Circulation ------------------

// IssueAs issues a loan stamped with the employee id of the acting user. The
// actor must hold a librarian record, administrators included.
func (lm *LibraryManager) IssueAs(ctx context.Context, actor *User, memberID, bookID int64, loanDays int) (*Loan, error) {
	if err := lm.RequireStaff(actor); err != nil {
		return nil, err
	}
	lib, err := lm.Gate.LibrarianFor(ctx, actor.ID)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.RuleViolation("user is not a librarian")
	}
	if err != nil {
		return nil, err
	}
	return lm.Loans.IssueBook(ctx, memberID, bookID, lib.EmployeeID, loanDays)
}

// SweepResult reports what RunSweeps changed.
type SweepResult struct {
	Overdue             int64 `json:"overdue"`
	ExpiredReservations int64 `json:"expired_reservations"`
}

// RunSweeps marks overdue loans and expires old reservations. Nothing calls
// it on a timer; the CLI and API trigger it on demand.
func (lm *LibraryManager) RunSweeps(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var err error
	if res.Overdue, err = lm.Loans.UpdateOverdueLoans(ctx); err != nil {
		return res, err
	}
	if res.ExpiredReservations, err = lm.Reservations.ExpireReservations(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// ------------------ Utilities ------------------

// PrettyBook formats a book record for lists.
func PrettyBook(b BookRecord) string {
	return fmt.Sprintf("%-5d %-17s %-32s %-25s %s",
		b.ID, truncate(b.ISBN, 17), truncate(b.Title, 32),
		truncate(strings.Join(b.Authors, ", "), 25), strings.Join(b.Categories, ", "))
}

// PrettyLoan formats a loan for lists.
func PrettyLoan(l Loan) string {
	returned := "-"
	if l.ReturnDate != nil {
		returned = l.ReturnDate.String()
	}
	return fmt.Sprintf("%-6d %-7d %-7d %-10s %-10s %-10s %s",
		l.ID, l.MemberID, l.CopyID, l.IssueDate, l.DueDate, returned, l.Status)
}

// PrettyMember formats a member for lists.
func PrettyMember(m Member) string {
	return fmt.Sprintf("%-6d %-25s %-30s %-10s %s", m.ID, truncate(m.Name, 25), truncate(m.Email, 30), m.Status, m.JoinDate)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
