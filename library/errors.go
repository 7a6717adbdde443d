package library

import (
	"errors"
	"fmt"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// Expected business outcomes. Callers test for them with errors.Is.
var (
	// ErrNoAvailableCopy means every copy of the title is loaned, reserved
	// or in maintenance.
	ErrNoAvailableCopy = domainerrors.New(domainerrors.CodeNoAvailableCopy, "no available copies")
	// ErrCopyUnavailable means a conditional loan of a specific copy lost to
	// another writer or the copy was not available to begin with.
	ErrCopyUnavailable = domainerrors.New(domainerrors.CodeCopyUnavailable, "copy is not available")
	// ErrMemberNotActive means a suspended or inactive member tried to borrow.
	ErrMemberNotActive = domainerrors.New(domainerrors.CodeMemberNotActive, "member is not active")
	// ErrInvalidCredentials is returned by Authenticate for any mismatch.
	ErrInvalidCredentials = domainerrors.InvalidCredentials("invalid email or password")
)

// storeErr classifies an error coming back from the store. Domain errors pass
// through untouched; constraint violations become client errors; anything
// else is a store failure.
func storeErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var de *domainerrors.Error
	if errors.As(err, &de) {
		return err
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return domainerrors.Wrap(err, domainerrors.CodeAlreadyExists, msg+": already exists")
	case errors.Is(err, store.ErrReference):
		return domainerrors.Wrap(err, domainerrors.CodeValidation, msg+": references a missing record")
	default:
		return domainerrors.StoreFailuref(err, "%s", msg)
	}
}

// expectOne turns a zero-row write into a store failure. It is used where a
// row was just read under lock and must still be there.
func expectOne(n int64, format string, args ...any) error {
	if n == 1 {
		return nil
	}
	return domainerrors.StoreFailuref(nil, "%s: expected 1 row affected, got %d", fmt.Sprintf(format, args...), n)
}
