package library

import (
	"context"
	"errors"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// LoanEngine issues and returns loans, sweeps overdue ones and guards
// deletions against unresolved loans. Every mutating operation except the
// sweep runs in one store transaction.
type LoanEngine struct {
	st     store.Store
	ledger *Ledger
	cfg    *settings
}

// NewLoanEngine creates a LoanEngine over st.
func NewLoanEngine(st store.Store, opts ...Option) *LoanEngine {
	cfg := newSettings(opts)
	return &LoanEngine{st: st, ledger: &Ledger{st: st, cfg: cfg}, cfg: cfg}
}

// IssueBook lends the lowest-numbered available copy of bookID to memberID.
// loanDays of zero uses the configured policy. It returns ErrNoAvailableCopy
// when nothing can be lent, leaving the store untouched.
//
// The copy is claimed with a conditional update and the loan inserted in the
// same transaction: the copy ends up loaned if and only if the loan row
// commits.
func (e *LoanEngine) IssueBook(ctx context.Context, memberID, bookID, librarianID int64, loanDays int) (*Loan, error) {
	if loanDays < 0 {
		return nil, domainerrors.Validationf("loan days must be positive, got %d", loanDays)
	}
	if loanDays == 0 {
		loanDays = e.cfg.loanDays
	}

	var issued Loan
	err := e.st.WithTx(ctx, func(tx store.Store) error {
		members, err := tx.SelectForUpdate(ctx, store.Members, store.Eq("member_id", memberID))
		if err != nil {
			return storeErr(err, "lock member %d", memberID)
		}
		if len(members) == 0 {
			return domainerrors.NotFoundf("member %d not found", memberID)
		}
		member, err := memberFromRow(members[0])
		if err != nil {
			return err
		}
		if member.Status != MemberActive {
			return ErrMemberNotActive
		}

		ledger := e.ledger.in(tx)
		candidates, err := ledger.AvailableCopies(ctx, bookID)
		if err != nil {
			return err
		}

		var chosen *BookCopy
		for i := range candidates {
			err := ledger.MarkLoaned(ctx, candidates[i].ID)
			if errors.Is(err, ErrCopyUnavailable) || errors.Is(err, domainerrors.ErrNotFound) {
				// Taken or deleted by a concurrent writer since we listed it.
				continue
			}
			if err != nil {
				return err
			}
			chosen = &candidates[i]
			break
		}
		if chosen == nil {
			return ErrNoAvailableCopy
		}

		today := e.cfg.today()
		loan := Loan{
			MemberID:    memberID,
			CopyID:      chosen.ID,
			LibrarianID: librarianID,
			IssueDate:   today,
			DueDate:     today.AddDays(loanDays),
			Status:      LoanActive,
		}
		row, err := tx.Insert(ctx, store.Loans, loan.toRow())
		if err != nil {
			return domainerrors.StoreFailuref(err, "create loan for copy %d", chosen.ID)
		}
		issued, err = loanFromRow(row)
		return err
	})
	if err != nil {
		e.recordRefusal(err)
		return nil, err
	}

	e.cfg.metrics.LoansIssued.Inc()
	e.cfg.log.Info("loan issued",
		"loan_id", issued.ID, "copy_id", issued.CopyID, "member_id", memberID,
		"book_id", bookID, "due_date", issued.DueDate.String())
	return &issued, nil
}

func (e *LoanEngine) recordRefusal(err error) {
	reason := "error"
	switch {
	case errors.Is(err, ErrNoAvailableCopy):
		reason = "no_available_copy"
	case errors.Is(err, ErrMemberNotActive):
		reason = "member_not_active"
	case errors.Is(err, domainerrors.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, domainerrors.ErrValidation):
		reason = "validation"
	}
	e.cfg.metrics.IssueRefused.WithLabelValues(reason).Inc()
}

// ReturnBook stamps the loan returned today and puts its copy back on the
// shelf. It reports false when the loan does not exist. A loan already
// returned is accepted again and re-stamped, even after its book was deleted.
func (e *LoanEngine) ReturnBook(ctx context.Context, loanID int64) (bool, error) {
	var (
		found bool
		loan  Loan
	)
	err := e.st.WithTx(ctx, func(tx store.Store) error {
		rows, err := tx.SelectForUpdate(ctx, store.Loans, store.Eq("loan_id", loanID))
		if err != nil {
			return storeErr(err, "lock loan %d", loanID)
		}
		if len(rows) == 0 {
			return nil
		}
		if loan, err = loanFromRow(rows[0]); err != nil {
			return err
		}

		today := e.cfg.today()
		n, err := tx.Update(ctx, store.Loans,
			store.Row{"return_date": today.String(), "status": string(LoanReturned)},
			store.Eq("loan_id", loanID))
		if err != nil {
			return storeErr(err, "return loan %d", loanID)
		}
		if err := expectOne(n, "return loan %d", loanID); err != nil {
			return err
		}
		// A copy deleted with its book has nothing to restore.
		err = e.ledger.in(tx).MarkAvailable(ctx, loan.CopyID)
		if err != nil && !domainerrors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	e.cfg.metrics.LoansReturned.Inc()
	e.cfg.log.Info("loan returned", "loan_id", loanID, "copy_id", loan.CopyID, "previous_status", loan.Status)
	return true, nil
}

// UpdateOverdueLoans moves every active loan whose due date is before today
// to overdue and returns how many changed. It is a single conditional update.
func (e *LoanEngine) UpdateOverdueLoans(ctx context.Context) (int64, error) {
	today := e.cfg.today()
	n, err := e.st.Update(ctx, store.Loans,
		store.Row{"status": string(LoanOverdue)},
		store.Eq("status", string(LoanActive)),
		store.Lt("due_date", today.String()),
		store.IsNull("return_date"))
	if err != nil {
		return 0, storeErr(err, "mark overdue loans")
	}
	e.cfg.metrics.LoansOverdue.Add(float64(n))
	e.cfg.log.Info("overdue sweep finished", "marked", n, "today", today.String())
	return n, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// GetLoan fetches one loan.
func (e *LoanEngine) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	loans, err := e.loans(ctx, store.Eq("loan_id", loanID))
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, domainerrors.NotFoundf("loan %d not found", loanID)
	}
	return &loans[0], nil
}

// ListLoans returns every loan.
func (e *LoanEngine) ListLoans(ctx context.Context) ([]Loan, error) { return e.loans(ctx) }

// GetMemberLoans returns every loan of memberID, returned ones included.
func (e *LoanEngine) GetMemberLoans(ctx context.Context, memberID int64) ([]Loan, error) {
	return e.loans(ctx, store.Eq("member_id", memberID))
}

// GetActiveLoans returns loans in status active.
func (e *LoanEngine) GetActiveLoans(ctx context.Context) ([]Loan, error) {
	return e.loans(ctx, store.Eq("status", string(LoanActive)))
}

// GetOverdueLoans returns loans in status overdue.
func (e *LoanEngine) GetOverdueLoans(ctx context.Context) ([]Loan, error) {
	return e.loans(ctx, store.Eq("status", string(LoanOverdue)))
}

func (e *LoanEngine) loans(ctx context.Context, filters ...store.Filter) ([]Loan, error) {
	rows, err := e.st.Select(ctx, store.Loans, filters...)
	if err != nil {
		return nil, storeErr(err, "list loans")
	}
	return decodeAll(rows, loanFromRow)
}
