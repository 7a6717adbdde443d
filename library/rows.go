package library

import (
	"fmt"
	"strconv"
	"time"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// All string-typed enum parsing happens here. A row that does not decode is
// corrupt data and surfaces as a store failure.

// rowReader pulls typed columns out of a store.Row, remembering the first
// failure so decoders can read every field and check once.
type rowReader struct {
	table string
	row   store.Row
	err   error
}

func newReader(table string, row store.Row) *rowReader {
	return &rowReader{table: table, row: row}
}

func (r *rowReader) fail(col string, format string, args ...any) {
	if r.err == nil {
		r.err = domainerrors.StoreFailuref(nil, "corrupt %s row: column %s: %s", r.table, col, fmt.Sprintf(format, args...))
	}
}

func (r *rowReader) int64(col string) int64 {
	v, ok := r.row[col]
	if !ok || v == nil {
		r.fail(col, "missing")
		return 0
	}
	return r.toInt(col, v)
}

func (r *rowReader) optInt(col string) int64 {
	v, ok := r.row[col]
	if !ok || v == nil {
		return 0
	}
	return r.toInt(col, v)
}

func (r *rowReader) toInt(col string, v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			r.fail(col, "not an integer: %q", n)
		}
		return i
	default:
		r.fail(col, "unexpected type %T", v)
		return 0
	}
}

func (r *rowReader) str(col string) string {
	v, ok := r.row[col]
	if !ok || v == nil {
		r.fail(col, "missing")
		return ""
	}
	return r.toStr(col, v)
}

func (r *rowReader) optStr(col string) string {
	v, ok := r.row[col]
	if !ok || v == nil {
		return ""
	}
	return r.toStr(col, v)
}

func (r *rowReader) toStr(col string, v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		r.fail(col, "unexpected type %T", v)
		return ""
	}
}

func (r *rowReader) date(col string) Date {
	d := r.optDate(col)
	if d == nil {
		r.fail(col, "missing")
		return Date{}
	}
	return *d
}

func (r *rowReader) optDate(col string) *Date {
	v, ok := r.row[col]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case time.Time:
		d := DateOf(t)
		return &d
	case string, []byte:
		d, err := ParseDate(r.toStr(col, t))
		if err != nil {
			r.fail(col, "%v", err)
			return nil
		}
		return &d
	default:
		r.fail(col, "unexpected type %T", v)
		return nil
	}
}

func (r *rowReader) boolean(col string) bool {
	v, ok := r.row[col]
	if !ok || v == nil {
		r.fail(col, "missing")
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			r.fail(col, "not a boolean: %q", b)
		}
		return parsed
	default:
		r.fail(col, "unexpected type %T", v)
		return false
	}
}

// parseEnum applies an enum parser, recording a failure on error.
func parseEnum[T any](r *rowReader, col string, fn func(string) (T, error)) T {
	raw := r.str(col)
	v, err := fn(raw)
	if err != nil && r.err == nil {
		r.fail(col, "%v", err)
	}
	return v
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func dateValue(d *Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

// withKey adds the identity column when the record already has one.
func withKey(row store.Row, col string, id int64) store.Row {
	if id != 0 {
		row[col] = id
	}
	return row
}

// ---------------------------------------------------------------------------
// Entity <-> row
// ---------------------------------------------------------------------------

func (b Book) toRow() store.Row {
	return withKey(store.Row{
		"isbn":           b.ISBN,
		"title":          b.Title,
		"publisher":      nullable(b.Publisher),
		"published_year": nullableInt(b.PublishedYear),
		"description":    nullable(b.Description),
	}, "book_id", b.ID)
}

func bookFromRow(row store.Row) (Book, error) {
	r := newReader(store.Books.Name, row)
	b := Book{
		ID:            r.int64("book_id"),
		ISBN:          r.str("isbn"),
		Title:         r.str("title"),
		Publisher:     r.optStr("publisher"),
		PublishedYear: int(r.optInt("published_year")),
		Description:   r.optStr("description"),
	}
	return b, r.err
}

func (c BookCopy) toRow() store.Row {
	return withKey(store.Row{
		"book_id":     c.BookID,
		"barcode":     c.Barcode,
		"status":      string(c.Status),
		"acquired_on": dateValue(c.AcquiredOn),
	}, "copy_id", c.ID)
}

func copyFromRow(row store.Row) (BookCopy, error) {
	r := newReader(store.Copies.Name, row)
	c := BookCopy{
		ID:         r.int64("copy_id"),
		BookID:     r.int64("book_id"),
		Barcode:    r.str("barcode"),
		Status:     parseEnum(r, "status", ParseCopyStatus),
		AcquiredOn: r.optDate("acquired_on"),
	}
	return c, r.err
}

func (a Author) toRow() store.Row {
	return withKey(store.Row{"full_name": a.FullName}, "author_id", a.ID)
}

func authorFromRow(row store.Row) (Author, error) {
	r := newReader(store.Authors.Name, row)
	a := Author{ID: r.int64("author_id"), FullName: r.str("full_name")}
	return a, r.err
}

func (c Category) toRow() store.Row {
	return withKey(store.Row{"name": c.Name}, "category_id", c.ID)
}

func categoryFromRow(row store.Row) (Category, error) {
	r := newReader(store.Categories.Name, row)
	c := Category{ID: r.int64("category_id"), Name: r.str("name")}
	return c, r.err
}

func (m Member) toRow() store.Row {
	return withKey(store.Row{
		"name":      m.Name,
		"email":     m.Email,
		"phone":     nullable(m.Phone),
		"status":    string(m.Status),
		"join_date": m.JoinDate.String(),
	}, "member_id", m.ID)
}

func memberFromRow(row store.Row) (Member, error) {
	r := newReader(store.Members.Name, row)
	m := Member{
		ID:       r.int64("member_id"),
		Name:     r.str("name"),
		Email:    r.str("email"),
		Phone:    r.optStr("phone"),
		Status:   parseEnum(r, "status", ParseMemberStatus),
		JoinDate: r.date("join_date"),
	}
	return m, r.err
}

func (l Loan) toRow() store.Row {
	return withKey(store.Row{
		"member_id":    l.MemberID,
		"copy_id":      l.CopyID,
		"librarian_id": l.LibrarianID,
		"issue_date":   l.IssueDate.String(),
		"due_date":     l.DueDate.String(),
		"return_date":  dateValue(l.ReturnDate),
		"status":       string(l.Status),
	}, "loan_id", l.ID)
}

func loanFromRow(row store.Row) (Loan, error) {
	r := newReader(store.Loans.Name, row)
	l := Loan{
		ID:          r.int64("loan_id"),
		MemberID:    r.int64("member_id"),
		CopyID:      r.int64("copy_id"),
		LibrarianID: r.int64("librarian_id"),
		IssueDate:   r.date("issue_date"),
		DueDate:     r.date("due_date"),
		ReturnDate:  r.optDate("return_date"),
		Status:      parseEnum(r, "status", ParseLoanStatus),
	}
	if r.err != nil {
		return l, r.err
	}
	if (l.ReturnDate != nil) != (l.Status == LoanReturned) {
		r.fail("return_date", "loan %d has status %s with return_date %v", l.ID, l.Status, dateValue(l.ReturnDate))
	}
	return l, r.err
}

func (rv Reservation) toRow() store.Row {
	return withKey(store.Row{
		"member_id":  rv.MemberID,
		"book_id":    rv.BookID,
		"created_at": rv.CreatedAt.String(),
		"expires_at": rv.ExpiresAt.String(),
		"active":     rv.Active,
	}, "reservation_id", rv.ID)
}

func reservationFromRow(row store.Row) (Reservation, error) {
	r := newReader(store.Reservations.Name, row)
	rv := Reservation{
		ID:        r.int64("reservation_id"),
		MemberID:  r.int64("member_id"),
		BookID:    r.int64("book_id"),
		CreatedAt: r.date("created_at"),
		ExpiresAt: r.date("expires_at"),
		Active:    r.boolean("active"),
	}
	return rv, r.err
}

func (u User) toRow() store.Row {
	return withKey(store.Row{
		"name":          u.Name,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"role":          string(u.Role),
	}, "user_id", u.ID)
}

func userFromRow(row store.Row) (User, error) {
	r := newReader(store.Users.Name, row)
	u := User{
		ID:           r.int64("user_id"),
		Name:         r.str("name"),
		Email:        r.str("email"),
		PasswordHash: r.str("password_hash"),
		Role:         parseEnum(r, "role", ParseRole),
	}
	return u, r.err
}

func (l Librarian) toRow() store.Row {
	return withKey(store.Row{"user_id": l.UserID}, "employee_id", l.EmployeeID)
}

func librarianFromRow(row store.Row) (Librarian, error) {
	r := newReader(store.Librarians.Name, row)
	l := Librarian{EmployeeID: r.int64("employee_id"), UserID: r.int64("user_id")}
	return l, r.err
}

// decodeAll maps rows through fn, stopping at the first corrupt row.
func decodeAll[T any](rows []store.Row, fn func(store.Row) (T, error)) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := fn(row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
