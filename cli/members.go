package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

func (a *app) registerMemberCommand() *cobra.Command {
	var (
		creds credentials
		m     library.Member
	)
	cmd := &cobra.Command{
		Use:   "register-member",
		Short: "Register a new member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			created, err := a.lm.Directory.RegisterMember(cmd.Context(), m)
			if err != nil {
				return report(cmd, "registering member", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered member '%s' with ID %d\n", created.Name, created.ID)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	f := cmd.Flags()
	f.StringVar(&m.Name, "name", "", "member name")
	f.StringVar(&m.Email, "email", "", "member email")
	f.StringVar(&m.Phone, "phone", "", "member phone")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) updateMemberCommand() *cobra.Command {
	var (
		creds    credentials
		memberID int64
		name     string
		email    string
		phone    string
		status   string
	)
	cmd := &cobra.Command{
		Use:   "update-member",
		Short: "Update member information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd library.MemberUpdate
			f := cmd.Flags()
			if f.Changed("name") {
				upd.Name = &name
			}
			if f.Changed("email") {
				upd.Email = &email
			}
			if f.Changed("phone") {
				upd.Phone = &phone
			}
			if f.Changed("status") {
				st, err := library.ParseMemberStatus(status)
				if err != nil {
					return err
				}
				upd.Status = &st
			}

			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			m, err := a.lm.Directory.UpdateMember(cmd.Context(), memberID, upd)
			if err != nil {
				return report(cmd, "updating member", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated member %d\n%s\n", m.ID, library.PrettyMember(*m))
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	f := cmd.Flags()
	f.Int64Var(&memberID, "member-id", 0, "member ID")
	f.StringVar(&name, "name", "", "new name")
	f.StringVar(&email, "email", "", "new email")
	f.StringVar(&phone, "phone", "", "new phone")
	f.StringVar(&status, "status", "", "new status: active, suspended or inactive")
	_ = cmd.MarkFlagRequired("member-id")
	return cmd
}

func (a *app) suspendMemberCommand() *cobra.Command {
	var (
		creds    credentials
		memberID int64
	)
	cmd := &cobra.Command{
		Use:   "suspend-member",
		Short: "Suspend a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			ok, err := a.lm.Directory.SuspendMember(cmd.Context(), memberID)
			if err != nil {
				return report(cmd, "suspending member", err)
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Member %d not found\n", memberID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Suspended member %d\n", memberID)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	cmd.Flags().Int64Var(&memberID, "member-id", 0, "member ID")
	_ = cmd.MarkFlagRequired("member-id")
	return cmd
}

func (a *app) deleteMemberCommand() *cobra.Command {
	var (
		creds    credentials
		memberID int64
	)
	cmd := &cobra.Command{
		Use:   "delete-member",
		Short: "Delete a member who has no active or overdue loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			ok, err := a.lm.Loans.DeleteMember(cmd.Context(), memberID)
			if err != nil {
				return report(cmd, "deleting member", err)
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Cannot delete member %d: they have active or overdue loans\n", memberID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted member %d\n", memberID)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	cmd.Flags().Int64Var(&memberID, "member-id", 0, "member ID")
	_ = cmd.MarkFlagRequired("member-id")
	return cmd
}
