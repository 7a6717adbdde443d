package library

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2024-02-29", "2024-02-29", false},
		{" 2024-03-01 ", "2024-03-01", false},
		{"2024-03-01T23:59:59Z", "2024-03-01", false},
		{"2024-03-01 10:00:00", "2024-03-01", false},
		{"01/03/2024", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.February, 20)
	due := d.AddDays(14)
	assert.Equal(t, "2024-03-05", due.String())
	assert.Equal(t, 14, d.DaysUntil(due))
	assert.True(t, d.Before(due))
	assert.False(t, due.Before(d))
	assert.True(t, DateOf(time.Date(2024, 2, 20, 23, 59, 0, 0, time.UTC)).Equal(d))
	assert.Empty(t, Date{}.String())
}

func TestDateJSON(t *testing.T) {
	ret := NewDate(2024, 1, 20)
	b, err := json.Marshal(Loan{ID: 1, IssueDate: NewDate(2024, 1, 1), DueDate: NewDate(2024, 1, 15), ReturnDate: &ret, Status: LoanReturned})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"issue_date":"2024-01-01"`)
	assert.Contains(t, string(b), `"return_date":"2024-01-20"`)

	var back Loan
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.DueDate.Equal(NewDate(2024, 1, 15)))
	require.NotNil(t, back.ReturnDate)

	b, err = json.Marshal(Loan{Status: LoanActive})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "return_date")
}

func TestParseEnums(t *testing.T) {
	cs, err := ParseCopyStatus("LOANED")
	require.NoError(t, err)
	assert.Equal(t, CopyLoaned, cs)
	_, err = ParseCopyStatus("lost")
	assert.Error(t, err)

	ls, err := ParseLoanStatus(" Overdue ")
	require.NoError(t, err)
	assert.Equal(t, LoanOverdue, ls)
	assert.True(t, ls.Open())
	assert.True(t, LoanActive.Open())
	assert.False(t, LoanReturned.Open())

	ms, err := ParseMemberStatus("Suspended")
	require.NoError(t, err)
	assert.Equal(t, MemberSuspended, ms)
	_, err = ParseMemberStatus("banned")
	assert.Error(t, err)

	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdministrator, r)
	_, err = ParseRole("janitor")
	assert.Error(t, err)
}

func TestRowDecoding(t *testing.T) {
	t.Run("copy with time and bytes", func(t *testing.T) {
		c, err := copyFromRow(store.Row{
			"copy_id": int64(3), "book_id": int64(1), "barcode": []byte("BC-1"),
			"status": "Available", "acquired_on": time.Date(2023, 5, 6, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, CopyAvailable, c.Status)
		assert.Equal(t, "BC-1", c.Barcode)
		assert.Equal(t, "2023-05-06", c.AcquiredOn.String())
	})

	t.Run("reservation active as integer", func(t *testing.T) {
		rv, err := reservationFromRow(store.Row{
			"reservation_id": int64(1), "member_id": int64(2), "book_id": int64(3),
			"created_at": "2024-01-01", "expires_at": "2024-01-15", "active": int64(1),
		})
		require.NoError(t, err)
		assert.True(t, rv.Active)
	})

	tests := []struct {
		name string
		row  store.Row
	}{
		{"unknown status", store.Row{"copy_id": int64(1), "book_id": int64(1), "barcode": "x", "status": "lost"}},
		{"missing key", store.Row{"book_id": int64(1), "barcode": "x", "status": "available"}},
		{"bad key type", store.Row{"copy_id": true, "book_id": int64(1), "barcode": "x", "status": "available"}},
		{"bad date", store.Row{"copy_id": int64(1), "book_id": int64(1), "barcode": "x", "status": "available", "acquired_on": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := copyFromRow(tt.row)
			require.Error(t, err)
			assert.Equal(t, domainerrors.CodeStoreFailure, domainerrors.CodeOf(err))
			assert.Contains(t, err.Error(), "corrupt book_copy row")
		})
	}
}

func TestLoanRowReturnDateInvariant(t *testing.T) {
	base := store.Row{
		"loan_id": int64(1), "member_id": int64(1), "copy_id": int64(1), "librarian_id": int64(1),
		"issue_date": "2024-01-01", "due_date": "2024-01-15",
	}
	with := func(extra store.Row) store.Row {
		row := store.Row{}
		for k, v := range base {
			row[k] = v
		}
		for k, v := range extra {
			row[k] = v
		}
		return row
	}

	_, err := loanFromRow(with(store.Row{"status": "returned"}))
	assert.Error(t, err, "returned without return_date")

	_, err = loanFromRow(with(store.Row{"status": "active", "return_date": "2024-01-10"}))
	assert.Error(t, err, "active with return_date")

	l, err := loanFromRow(with(store.Row{"status": "returned", "return_date": "2024-01-10"}))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", l.ReturnDate.String())
}
