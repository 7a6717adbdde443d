package library

import (
	"context"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// DeleteBook removes a book together with its copies and author/category
// links. It refuses, returning false, while any copy has an active or overdue
// loan. The loan check and the delete share one transaction with the copies
// locked, so a concurrent issue either lands before the check or fails.
func (e *LoanEngine) DeleteBook(ctx context.Context, bookID int64) (bool, error) {
	deleted := false
	err := e.st.WithTx(ctx, func(tx store.Store) error {
		books, err := tx.SelectForUpdate(ctx, store.Books, store.Eq("book_id", bookID))
		if err != nil {
			return storeErr(err, "lock book %d", bookID)
		}
		if len(books) == 0 {
			return domainerrors.NotFoundf("book %d not found", bookID)
		}

		rows, err := tx.SelectForUpdate(ctx, store.Copies, store.Eq("book_id", bookID))
		if err != nil {
			return storeErr(err, "lock copies of book %d", bookID)
		}
		copyIDs := make([]int64, 0, len(rows))
		for _, row := range rows {
			c, err := copyFromRow(row)
			if err != nil {
				return err
			}
			copyIDs = append(copyIDs, c.ID)
		}

		open, err := tx.Select(ctx, store.Loans,
			store.In("copy_id", copyIDs),
			store.In("status", openLoanStatuses))
		if err != nil {
			return storeErr(err, "check open loans of book %d", bookID)
		}
		if len(open) > 0 {
			e.cfg.metrics.DeleteRefused.WithLabelValues("book").Inc()
			e.cfg.log.Warn("book delete refused", "book_id", bookID, "open_loans", len(open))
			return nil
		}

		n, err := tx.Delete(ctx, store.Books, store.Eq("book_id", bookID))
		if err != nil {
			return storeErr(err, "delete book %d", bookID)
		}
		if err := expectOne(n, "delete book %d", bookID); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		e.cfg.log.Info("book deleted", "book_id", bookID)
	}
	return deleted, nil
}

// DeleteMember removes a member unless they hold an active or overdue loan,
// in which case it returns false. Returned loans stay as history.
func (e *LoanEngine) DeleteMember(ctx context.Context, memberID int64) (bool, error) {
	deleted := false
	err := e.st.WithTx(ctx, func(tx store.Store) error {
		members, err := tx.SelectForUpdate(ctx, store.Members, store.Eq("member_id", memberID))
		if err != nil {
			return storeErr(err, "lock member %d", memberID)
		}
		if len(members) == 0 {
			return domainerrors.NotFoundf("member %d not found", memberID)
		}

		open, err := tx.Select(ctx, store.Loans,
			store.Eq("member_id", memberID),
			store.In("status", openLoanStatuses))
		if err != nil {
			return storeErr(err, "check open loans of member %d", memberID)
		}
		if len(open) > 0 {
			e.cfg.metrics.DeleteRefused.WithLabelValues("member").Inc()
			e.cfg.log.Warn("member delete refused", "member_id", memberID, "open_loans", len(open))
			return nil
		}

		n, err := tx.Delete(ctx, store.Members, store.Eq("member_id", memberID))
		if err != nil {
			return storeErr(err, "delete member %d", memberID)
		}
		if err := expectOne(n, "delete member %d", memberID); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		e.cfg.log.Info("member deleted", "member_id", memberID)
	}
	return deleted, nil
}
