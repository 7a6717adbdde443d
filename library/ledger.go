package library

import (
	"context"
	"strings"

	"github.com/google/uuid"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// Ledger is the single source of truth for whether a copy can be lent.
type Ledger struct {
	st  store.Store
	cfg *settings
}

// NewLedger creates a Ledger over st.
func NewLedger(st store.Store, opts ...Option) *Ledger {
	return &Ledger{st: st, cfg: newSettings(opts)}
}

// in returns a Ledger bound to a transaction-scoped store.
func (l *Ledger) in(st store.Store) *Ledger {
	return &Ledger{st: st, cfg: l.cfg}
}

// FindAvailableCopy returns the available copy of bookID with the lowest
// copy_id. found is false when every copy is loaned, reserved or in
// maintenance, or the book has no copies.
func (l *Ledger) FindAvailableCopy(ctx context.Context, bookID int64) (c BookCopy, found bool, err error) {
	copies, err := l.AvailableCopies(ctx, bookID)
	if err != nil || len(copies) == 0 {
		return BookCopy{}, false, err
	}
	return copies[0], true, nil
}

// AvailableCopies lists the available copies of bookID by ascending copy_id.
func (l *Ledger) AvailableCopies(ctx context.Context, bookID int64) ([]BookCopy, error) {
	rows, err := l.st.Select(ctx, store.Copies, store.Eq("book_id", bookID), store.Eq("status", string(CopyAvailable)))
	if err != nil {
		return nil, storeErr(err, "list available copies of book %d", bookID)
	}
	return decodeAll(rows, copyFromRow)
}

// Copies lists every copy of bookID regardless of status.
func (l *Ledger) Copies(ctx context.Context, bookID int64) ([]BookCopy, error) {
	rows, err := l.st.Select(ctx, store.Copies, store.Eq("book_id", bookID))
	if err != nil {
		return nil, storeErr(err, "list copies of book %d", bookID)
	}
	return decodeAll(rows, copyFromRow)
}

// GetCopy fetches one copy.
func (l *Ledger) GetCopy(ctx context.Context, copyID int64) (*BookCopy, error) {
	rows, err := l.st.Select(ctx, store.Copies, store.Eq("copy_id", copyID))
	if err != nil {
		return nil, storeErr(err, "get copy %d", copyID)
	}
	if len(rows) == 0 {
		return nil, domainerrors.NotFoundf("copy %d not found", copyID)
	}
	c, err := copyFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkLoaned moves a copy from available to loaned with a conditional
// update, so two writers can never both claim it. It returns
// ErrCopyUnavailable when the copy exists but is not available.
func (l *Ledger) MarkLoaned(ctx context.Context, copyID int64) error {
	n, err := l.st.Update(ctx, store.Copies,
		store.Row{"status": string(CopyLoaned)},
		store.Eq("copy_id", copyID), store.Eq("status", string(CopyAvailable)))
	if err != nil {
		return storeErr(err, "mark copy %d loaned", copyID)
	}
	if n == 1 {
		return nil
	}
	if _, err := l.GetCopy(ctx, copyID); err != nil {
		return err
	}
	return ErrCopyUnavailable
}

// MarkAvailable puts a copy back on the shelf whatever its current status.
func (l *Ledger) MarkAvailable(ctx context.Context, copyID int64) error {
	n, err := l.st.Update(ctx, store.Copies, store.Row{"status": string(CopyAvailable)}, store.Eq("copy_id", copyID))
	if err != nil {
		return storeErr(err, "mark copy %d available", copyID)
	}
	if n == 0 {
		return domainerrors.NotFoundf("copy %d not found", copyID)
	}
	return nil
}

// SetStatus is the librarian action for shelving, holding or repairing a
// copy. Only issue and return move a copy into or out of loaned.
func (l *Ledger) SetStatus(ctx context.Context, copyID int64, status CopyStatus) error {
	if status == CopyLoaned {
		return domainerrors.RuleViolation("copies become loaned only by issuing a loan")
	}
	if _, err := ParseCopyStatus(string(status)); err != nil {
		return domainerrors.Validation(err.Error())
	}

	return l.st.WithTx(ctx, func(tx store.Store) error {
		rows, err := tx.SelectForUpdate(ctx, store.Copies, store.Eq("copy_id", copyID))
		if err != nil {
			return storeErr(err, "lock copy %d", copyID)
		}
		if len(rows) == 0 {
			return domainerrors.NotFoundf("copy %d not found", copyID)
		}
		current, err := copyFromRow(rows[0])
		if err != nil {
			return err
		}
		if current.Status == CopyLoaned {
			return domainerrors.RuleViolation("copy is on loan; return the loan first")
		}
		n, err := tx.Update(ctx, store.Copies, store.Row{"status": string(status)}, store.Eq("copy_id", copyID))
		if err != nil {
			return storeErr(err, "set copy %d status", copyID)
		}
		if err := expectOne(n, "set copy %d status", copyID); err != nil {
			return err
		}
		l.cfg.log.Info("copy status changed", "copy_id", copyID, "from", current.Status, "to", status)
		return nil
	})
}

// AddCopy registers a new copy of an existing book. A missing barcode is
// generated, status defaults to available and acquired_on to today.
func (l *Ledger) AddCopy(ctx context.Context, c BookCopy) (*BookCopy, error) {
	if err := l.cfg.validate.Validate(c); err != nil {
		return nil, err
	}
	if c.Status == "" {
		c.Status = CopyAvailable
	}
	if c.Status == CopyLoaned {
		return nil, domainerrors.RuleViolation("a new copy cannot start out loaned")
	}
	if strings.TrimSpace(c.Barcode) == "" {
		c.Barcode = "BC-" + strings.ToUpper(uuid.NewString()[:13])
	}
	if c.AcquiredOn == nil {
		today := l.cfg.today()
		c.AcquiredOn = &today
	}

	books, err := l.st.Select(ctx, store.Books, store.Eq("book_id", c.BookID))
	if err != nil {
		return nil, storeErr(err, "get book %d", c.BookID)
	}
	if len(books) == 0 {
		return nil, domainerrors.NotFoundf("book %d not found", c.BookID)
	}

	row, err := l.st.Insert(ctx, store.Copies, c.toRow())
	if err != nil {
		return nil, storeErr(err, "add copy %q", c.Barcode)
	}
	created, err := copyFromRow(row)
	if err != nil {
		return nil, err
	}
	l.cfg.log.Info("copy added", "copy_id", created.ID, "book_id", created.BookID, "barcode", created.Barcode)
	return &created, nil
}
