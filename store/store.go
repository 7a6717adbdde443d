// Package store defines the row-oriented persistence contract the circulation
// core is written against. Implementations live in subpackages.
package store

import (
	"context"
	"errors"
)

// Row is one record keyed by column name.
type Row map[string]any

// Table names a collection and its identity column.
type Table struct {
	Name string
	Key  string
}

// Collections used by the circulation core.
var (
	Books        = Table{Name: "book", Key: "book_id"}
	Copies       = Table{Name: "book_copy", Key: "copy_id"}
	Authors      = Table{Name: "author", Key: "author_id"}
	Categories   = Table{Name: "category", Key: "category_id"}
	BookAuthors  = Table{Name: "book_author", Key: "book_id"}
	BookCategory = Table{Name: "book_category", Key: "book_id"}
	Members      = Table{Name: "member", Key: "member_id"}
	Loans        = Table{Name: "loan", Key: "loan_id"}
	Reservations = Table{Name: "reservation", Key: "reservation_id"}
	Users        = Table{Name: "user", Key: "user_id"}
	Librarians   = Table{Name: "librarian", Key: "employee_id"}
)

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota
	OpContains
	OpIn
	OpLt
	OpIsNull
)

// Filter restricts a Select, Update or Delete to matching rows. Filters passed
// together are ANDed.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq matches column = value.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// Contains matches a case-insensitive substring.
func Contains(column, substr string) Filter {
	return Filter{Column: column, Op: OpContains, Value: substr}
}

// In matches column against a set. An empty set matches nothing.
func In[T any](column string, values []T) Filter {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: vals}
}

// Lt matches column < value.
func Lt(column string, value any) Filter { return Filter{Column: column, Op: OpLt, Value: value} }

// IsNull matches rows where column is NULL.
func IsNull(column string) Filter { return Filter{Column: column, Op: OpIsNull} }

// Store is the persistence contract. Select results are ordered by the table
// key ascending so callers get a deterministic order.
type Store interface {
	Insert(ctx context.Context, t Table, row Row) (Row, error)
	Select(ctx context.Context, t Table, filters ...Filter) ([]Row, error)
	// SelectForUpdate is Select that also locks the matched rows until the
	// surrounding transaction ends, where the backend supports row locks.
	SelectForUpdate(ctx context.Context, t Table, filters ...Filter) ([]Row, error)
	Update(ctx context.Context, t Table, set Row, filters ...Filter) (int64, error)
	Delete(ctx context.Context, t Table, filters ...Filter) (int64, error)
	// WithTx runs fn in one transaction. A Store already inside a
	// transaction runs fn in the same one.
	WithTx(ctx context.Context, fn func(Store) error) error
	Close() error
}

var (
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrReference reports a foreign key violation.
	ErrReference = errors.New("store: referenced row missing or still referenced")
	// ErrUnfiltered guards Update and Delete against touching every row.
	ErrUnfiltered = errors.New("store: update and delete require a filter")
)
