package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

func (a *app) issueBookCommand() *cobra.Command {
	var (
		creds    credentials
		memberID int64
		bookID   int64
		days     int
	)
	cmd := &cobra.Command{
		Use:   "issue-book",
		Short: "Issue a book to a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return errors.New("--days must not be negative")
			}
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			loan, err := a.lm.IssueAs(cmd.Context(), u, memberID, bookID, days)
			if errors.Is(err, library.ErrNoAvailableCopy) {
				fmt.Fprintf(cmd.OutOrStdout(), "No available copies of book %d\n", bookID)
				return nil
			}
			if err != nil {
				return report(cmd, "issuing book", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Issued loan %d: copy %d to member %d, due %s\n",
				loan.ID, loan.CopyID, loan.MemberID, loan.DueDate)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	f := cmd.Flags()
	f.Int64Var(&memberID, "member-id", 0, "member ID")
	f.Int64Var(&bookID, "book-id", 0, "book ID")
	f.IntVar(&days, "days", 0, "loan duration in days (default from LOAN_DAYS)")
	_ = cmd.MarkFlagRequired("member-id")
	_ = cmd.MarkFlagRequired("book-id")
	return cmd
}

func (a *app) returnBookCommand() *cobra.Command {
	var (
		creds  credentials
		loanID int64
	)
	cmd := &cobra.Command{
		Use:   "return-book",
		Short: "Return a loaned copy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			ok, err := a.lm.Loans.ReturnBook(cmd.Context(), loanID)
			if err != nil {
				return report(cmd, "returning book", err)
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Loan %d not found\n", loanID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loan %d returned; copy is now available\n", loanID)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	cmd.Flags().Int64Var(&loanID, "loan-id", 0, "loan ID")
	_ = cmd.MarkFlagRequired("loan-id")
	return cmd
}

func (a *app) updateOverdueCommand() *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "update-overdue",
		Short: "Mark past-due loans overdue and expire old reservations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			res, err := a.lm.RunSweeps(cmd.Context())
			if err != nil {
				return report(cmd, "updating overdue loans", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d loan(s) overdue, expired %d reservation(s)\n",
				res.Overdue, res.ExpiredReservations)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	return cmd
}

func (a *app) listOverdueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-overdue",
		Short: "List overdue loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			loans, err := a.lm.Loans.GetOverdueLoans(cmd.Context())
			if err != nil {
				return report(cmd, "listing overdue loans", err)
			}
			if len(loans) == 0 {
				fmt.Fprintln(out, "No overdue loans.")
				return nil
			}
			fmt.Fprintf(out, "%-6s %-7s %-7s %-10s %-10s %-10s %s\n", "Loan", "Member", "Copy", "Issued", "Due", "Returned", "Status")
			fmt.Fprintln(out, strings.Repeat("-", 75))
			for _, l := range loans {
				fmt.Fprintln(out, library.PrettyLoan(l))
			}
			return nil
		},
	}
}

// actFor reports whether the caller is staff or the member identified by memberID.
func (a *app) actFor(cmd *cobra.Command, creds credentials, memberID int64) (bool, error) {
	u, err := a.authorize(cmd, creds)
	if err != nil || u == nil {
		return false, err
	}
	if a.lm.RequireStaff(u) == nil {
		return true, nil
	}
	m, err := a.lm.Gate.MemberFor(cmd.Context(), u)
	if err != nil || m.ID != memberID {
		fmt.Fprintln(cmd.OutOrStdout(), "Authentication failed: members may only act on their own record")
		return false, nil
	}
	return true, nil
}

func (a *app) reserveCommand() *cobra.Command {
	var (
		creds    credentials
		memberID int64
		bookID   int64
		days     int
	)
	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve a book for a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.actFor(cmd, creds, memberID)
			if err != nil || !ok {
				return err
			}
			rv, err := a.lm.Reservations.Create(cmd.Context(), memberID, bookID, days)
			if err != nil {
				return report(cmd, "reserving book", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reservation %d: book %d held for member %d until %s\n",
				rv.ID, rv.BookID, rv.MemberID, rv.ExpiresAt)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	f := cmd.Flags()
	f.Int64Var(&memberID, "member-id", 0, "member ID")
	f.Int64Var(&bookID, "book-id", 0, "book ID")
	f.IntVar(&days, "days", 0, "hold duration in days (default from RESERVATION_DAYS)")
	_ = cmd.MarkFlagRequired("member-id")
	_ = cmd.MarkFlagRequired("book-id")
	return cmd
}

func (a *app) cancelReservationCommand() *cobra.Command {
	var (
		creds         credentials
		reservationID int64
	)
	cmd := &cobra.Command{
		Use:   "cancel-reservation",
		Short: "Cancel a reservation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rv, err := a.lm.Reservations.Get(cmd.Context(), reservationID)
			if err != nil {
				return report(cmd, "cancelling reservation", err)
			}
			ok, err := a.actFor(cmd, creds, rv.MemberID)
			if err != nil || !ok {
				return err
			}
			if _, err := a.lm.Reservations.Cancel(cmd.Context(), reservationID); err != nil {
				return report(cmd, "cancelling reservation", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled reservation %d\n", reservationID)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	cmd.Flags().Int64Var(&reservationID, "reservation-id", 0, "reservation ID")
	_ = cmd.MarkFlagRequired("reservation-id")
	return cmd
}
