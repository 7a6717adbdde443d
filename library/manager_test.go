package library

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
	"library-circulation/store/sqlstore"
)

// clock is a settable "today" for tests.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(y int, m time.Month, d int) *clock {
	return &clock{now: time.Date(y, m, d, 9, 30, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, days)
}

func tempStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "lib.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newManager(t *testing.T, opts ...Option) *LibraryManager {
	t.Helper()
	opts = append([]Option{WithPasswordCost(bcrypt.MinCost)}, opts...)
	return NewLibraryManager(tempStore(t), opts...)
}

// seedBook inserts a book with a fixed id and n available copies.
func seedBook(t *testing.T, lm *LibraryManager, id int64, isbn, title string, copies int) {
	t.Helper()
	ctx := context.Background()
	_, err := lm.st.Insert(ctx, store.Books, Book{ID: id, ISBN: isbn, Title: title}.toRow())
	require.NoError(t, err)
	for i := 0; i < copies; i++ {
		_, err := lm.Ledger.AddCopy(ctx, BookCopy{BookID: id})
		require.NoError(t, err)
	}
}

// seedMember inserts an active member with a fixed id.
func seedMember(t *testing.T, lm *LibraryManager, id int64, email string) {
	t.Helper()
	m := Member{ID: id, Name: "Member " + email, Email: email, Status: MemberActive, JoinDate: NewDate(2024, 1, 1)}
	_, err := lm.st.Insert(context.Background(), store.Members, m.toRow())
	require.NoError(t, err)
}

func TestLogin_RoleCheck(t *testing.T) {
	lm := newManager(t)
	ctx := context.Background()

	_, err := lm.Gate.CreateUser(ctx, User{Name: "Pat", Email: "pat@example.com", Role: RoleMember}, "secret")
	require.NoError(t, err)

	u, err := lm.Login(ctx, "pat@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, u.Role)

	_, err = lm.Login(ctx, "pat@example.com", "secret", RoleLibrarian, RoleAdministrator)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))

	_, err = lm.Login(ctx, "pat@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIssueAs_StampsEmployeeID(t *testing.T) {
	lm := newManager(t)
	ctx := context.Background()
	seedBook(t, lm, 101, "1234567890", "The Alchemist", 2)
	seedMember(t, lm, 202, "reader@example.com")

	librarian, err := lm.Gate.CreateUser(ctx, User{Name: "Lee", Email: "lee@example.com", Role: RoleLibrarian}, "pw")
	require.NoError(t, err)
	rec, err := lm.Gate.RegisterLibrarian(ctx, librarian.ID)
	require.NoError(t, err)

	loan, err := lm.IssueAs(ctx, librarian, 202, 101, 0)
	require.NoError(t, err)
	assert.Equal(t, rec.EmployeeID, loan.LibrarianID)

	admin, err := lm.Gate.CreateUser(ctx, User{Name: "Root", Email: "root@example.com", Role: RoleAdministrator}, "pw")
	require.NoError(t, err)
	_, err = lm.IssueAs(ctx, admin, 202, 101, 0)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrRuleViolation), "administrator without a librarian record")

	adminRec, err := lm.Gate.RegisterLibrarian(ctx, admin.ID)
	require.NoError(t, err)
	loan, err = lm.IssueAs(ctx, admin, 202, 101, 0)
	require.NoError(t, err)
	assert.Equal(t, adminRec.EmployeeID, loan.LibrarianID)
	assert.NotZero(t, loan.LibrarianID)

	member, err := lm.Gate.CreateUser(ctx, User{Name: "Mo", Email: "mo@example.com", Role: RoleMember}, "pw")
	require.NoError(t, err)
	_, err = lm.IssueAs(ctx, member, 202, 101, 0)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))
}

func TestIssueAs_UnregisteredLibrarian(t *testing.T) {
	lm := newManager(t)
	ctx := context.Background()
	seedBook(t, lm, 1, "isbn", "Title", 1)
	seedMember(t, lm, 1, "m@example.com")

	u, err := lm.Gate.CreateUser(ctx, User{Name: "New", Email: "new@example.com", Role: RoleLibrarian}, "pw")
	require.NoError(t, err)

	_, err = lm.IssueAs(ctx, u, 1, 1, 0)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrRuleViolation))

	loans, err := lm.Loans.ListLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestRunSweeps(t *testing.T) {
	clk := newClock(2024, time.March, 1)
	lm := newManager(t, WithClock(clk.Now))
	ctx := context.Background()
	seedBook(t, lm, 1, "isbn", "Title", 1)
	seedMember(t, lm, 1, "m@example.com")

	_, err := lm.Loans.IssueBook(ctx, 1, 1, 0, 3)
	require.NoError(t, err)
	_, err = lm.Reservations.Create(ctx, 1, 1, 2)
	require.NoError(t, err)

	clk.advance(5)
	res, err := lm.RunSweeps(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Overdue: 1, ExpiredReservations: 1}, res)
}

func TestPrettyHelpers(t *testing.T) {
	line := PrettyBook(BookRecord{
		Book:       Book{ID: 7, ISBN: "978", Title: "A Very Long Title That Keeps Going And Going"},
		Authors:    []string{"A. Author"},
		Categories: []string{"Fiction", "Classics"},
	})
	assert.Contains(t, line, "A Very Long Title That Keeps ...")
	assert.Contains(t, line, "Fiction, Classics")

	ret := NewDate(2024, 5, 2)
	loanLine := PrettyLoan(Loan{ID: 3, IssueDate: NewDate(2024, 5, 1), DueDate: NewDate(2024, 5, 15), ReturnDate: &ret, Status: LoanReturned})
	assert.Contains(t, loanLine, "2024-05-02")
	assert.Contains(t, loanLine, "returned")
}
