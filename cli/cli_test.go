package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library-circulation/library"
)

type harness struct {
	dsn     string
	envFile string
	// typed is what the password prompt returns; empty means no terminal
	typed string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		dsn:     filepath.Join(dir, "cli.db"),
		envFile: filepath.Join(dir, "missing.env"),
	}
}

// run executes one command against the harness database and returns stdout.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	a.options = []library.Option{library.WithPasswordCost(bcrypt.MinCost)}
	a.readPassword = func(io.Writer, string) (string, error) {
		if h.typed == "" {
			return "", errors.New("no terminal")
		}
		return h.typed, nil
	}

	root := a.rootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--dsn", h.dsn, "--env-file", h.envFile, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	a.close()
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err, out)
	return out
}

var staffAuth = []string{"--email-auth", "lib@example.com", "--password-auth", "libpass"}

func staff(args ...string) []string {
	return append(args, staffAuth...)
}

// bootstrap creates an administrator and a librarian.
func (h *harness) bootstrap(t *testing.T) {
	t.Helper()
	out := h.mustRun(t, "create-user", "--name", "Admin", "--email", "admin@example.com",
		"--role", "admin", "--password", "adminpass")
	require.Contains(t, out, "Created administrator 'admin@example.com'")

	out = h.mustRun(t, "create-user", "--name", "Lib", "--email", "lib@example.com",
		"--role", "librarian", "--password", "libpass",
		"--email-auth", "admin@example.com", "--password-auth", "adminpass")
	require.Contains(t, out, "Employee ID")
}

func TestCreateUser_Bootstrap(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	_, err := h.run(t, "create-user", "--name", "X", "--email", "x@example.com", "--password", "pw")
	assert.Error(t, err, "a second account needs an authorizing administrator")

	out := h.mustRun(t, staff("create-user", "--name", "X", "--email", "x@example.com", "--password", "pw")...)
	assert.Contains(t, out, "Authentication failed")

	_, err = h.run(t, "create-user", "--name", "X", "--email", "x@example.com", "--role", "janitor", "--password", "pw")
	assert.Error(t, err)
}

func TestCirculationFlow(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	out := h.mustRun(t, staff("create-author", "--name", "Ursula K. Le Guin")...)
	assert.Contains(t, out, "Created author ID 1")

	out = h.mustRun(t, staff("create-book", "--isbn", "978-0-441-47812-5", "--title", "The Left Hand of Darkness",
		"--authors", "1", "--copies", "1")...)
	assert.Contains(t, out, "Created book ID 1")

	out = h.mustRun(t, "search-books", "--author", "guin")
	assert.Contains(t, out, "Found 1 book(s)")
	assert.Contains(t, out, "The Left Hand of Darkness")

	out = h.mustRun(t, staff("register-member", "--name", "Pat", "--email", "pat@example.com")...)
	assert.Contains(t, out, "Registered member 'Pat' with ID 1")

	out = h.mustRun(t, staff("issue-book", "--member-id", "1", "--book-id", "1")...)
	assert.Contains(t, out, "Issued loan 1: copy 1 to member 1")

	out = h.mustRun(t, staff("issue-book", "--member-id", "1", "--book-id", "1")...)
	assert.Contains(t, out, "No available copies of book 1")

	out = h.mustRun(t, staff("delete-book", "--book-id", "1")...)
	assert.Contains(t, out, "Cannot delete book 1")

	out = h.mustRun(t, staff("delete-member", "--member-id", "1")...)
	assert.Contains(t, out, "Cannot delete member 1")

	out = h.mustRun(t, staff("update-overdue")...)
	assert.Contains(t, out, "Marked 0 loan(s) overdue")

	out = h.mustRun(t, "list-overdue")
	assert.Contains(t, out, "No overdue loans.")

	out = h.mustRun(t, staff("return-book", "--loan-id", "1")...)
	assert.Contains(t, out, "Loan 1 returned")

	out = h.mustRun(t, staff("return-book", "--loan-id", "99")...)
	assert.Contains(t, out, "Loan 99 not found")

	out = h.mustRun(t, staff("delete-book", "--book-id", "1")...)
	assert.Contains(t, out, "Deleted book 1")
}

func TestMemberCommands(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	h.mustRun(t, staff("register-member", "--name", "Pat", "--email", "pat@example.com")...)

	out := h.mustRun(t, staff("update-member", "--member-id", "1", "--phone", "555-0100")...)
	assert.Contains(t, out, "Updated member 1")

	out = h.mustRun(t, staff("suspend-member", "--member-id", "1")...)
	assert.Contains(t, out, "Suspended member 1")

	out = h.mustRun(t, staff("suspend-member", "--member-id", "7")...)
	assert.Contains(t, out, "Member 7 not found")

	h.mustRun(t, staff("create-book", "--isbn", "111", "--title", "T", "--copies", "1")...)
	out = h.mustRun(t, staff("issue-book", "--member-id", "1", "--book-id", "1")...)
	assert.Contains(t, out, "Error issuing book")

	_, err := h.run(t, staff("update-member", "--member-id", "1", "--status", "banished")...)
	assert.Error(t, err)

	out = h.mustRun(t, staff("register-member", "--name", "Dup", "--email", "pat@example.com")...)
	assert.Contains(t, out, "Error registering member")
}

func TestReservations_SelfService(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)
	h.mustRun(t, staff("create-book", "--isbn", "111", "--title", "T")...)
	h.mustRun(t, staff("register-member", "--name", "Pat", "--email", "pat@example.com")...)
	h.mustRun(t, staff("register-member", "--name", "Sam", "--email", "sam@example.com")...)
	h.mustRun(t, "create-user", "--name", "Pat", "--email", "pat@example.com", "--role", "member",
		"--password", "patpass", "--email-auth", "admin@example.com", "--password-auth", "adminpass")

	pat := []string{"--email-auth", "pat@example.com", "--password-auth", "patpass"}

	out := h.mustRun(t, append([]string{"reserve", "--member-id", "1", "--book-id", "1"}, pat...)...)
	assert.Contains(t, out, "Reservation 1: book 1 held for member 1")

	out = h.mustRun(t, append([]string{"reserve", "--member-id", "2", "--book-id", "1"}, pat...)...)
	assert.Contains(t, out, "members may only act on their own record")

	out = h.mustRun(t, staff("reserve", "--member-id", "2", "--book-id", "1")...)
	assert.Contains(t, out, "Reservation 2")

	out = h.mustRun(t, append([]string{"cancel-reservation", "--reservation-id", "2"}, pat...)...)
	assert.Contains(t, out, "members may only act on their own record")

	out = h.mustRun(t, append([]string{"cancel-reservation", "--reservation-id", "1"}, pat...)...)
	assert.Contains(t, out, "Cancelled reservation 1")
}

func TestArgumentErrors(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing required flag", staff("issue-book", "--member-id", "1")},
		{"missing auth", []string{"delete-book", "--book-id", "1"}},
		{"bad id list", staff("create-book", "--isbn", "1", "--title", "T", "--authors", "1,x")},
		{"negative days", staff("issue-book", "--member-id", "1", "--book-id", "1", "--days", "-3")},
		{"no password and no terminal", []string{"delete-book", "--book-id", "1", "--email-auth", "lib@example.com"}},
		{"unexpected argument", []string{"list-overdue", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestBusinessFailuresExitZero(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	out, err := h.run(t, "delete-book", "--book-id", "1", "--email-auth", "lib@example.com", "--password-auth", "wrong")
	require.NoError(t, err)
	assert.Contains(t, out, "Authentication failed")

	out, err = h.run(t, staff("delete-book", "--book-id", "42")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Error deleting book")
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	h.bootstrap(t)

	out := h.mustRun(t, staff("change-password", "--new-password", "newpass")...)
	assert.Contains(t, out, "Password changed for lib@example.com")

	out = h.mustRun(t, staff("update-overdue")...)
	assert.Contains(t, out, "Authentication failed")

	out = h.mustRun(t, "update-overdue", "--email-auth", "lib@example.com", "--password-auth", "newpass")
	assert.Contains(t, out, "Marked 0 loan(s) overdue")
}

func TestPasswordWhitespace_SameForFlagAndPrompt(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "create-user", "--name", "Admin", "--email", "admin@example.com",
		"--role", "admin", "--password", "  padded pass ")

	out := h.mustRun(t, "update-overdue", "--email-auth", "admin@example.com", "--password-auth", "  padded pass ")
	assert.Contains(t, out, "Marked 0 loan(s) overdue")

	out = h.mustRun(t, "update-overdue", "--email-auth", "admin@example.com", "--password-auth", "padded pass")
	assert.Contains(t, out, "Authentication failed")

	h.typed = "  padded pass "
	out = h.mustRun(t, "update-overdue", "--email-auth", "admin@example.com")
	assert.Contains(t, out, "Marked 0 loan(s) overdue")

	h.typed = "padded pass"
	out = h.mustRun(t, "update-overdue", "--email-auth", "admin@example.com")
	assert.Contains(t, out, "Authentication failed")
}

func TestReadSecret_KeepsWhitespace(t *testing.T) {
	var prompt bytes.Buffer
	got, err := readSecret(&prompt, "Password: ", func() ([]byte, error) { return []byte(" pw \t"), nil })
	require.NoError(t, err)
	assert.Equal(t, " pw \t", got)
	assert.Equal(t, "Password: \n", prompt.String())

	_, err = readSecret(&prompt, "Password: ", func() ([]byte, error) { return nil, io.ErrUnexpectedEOF })
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
