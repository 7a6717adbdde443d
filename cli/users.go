package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

func (a *app) createUserCommand() *cobra.Command {
	var (
		creds    credentials
		name     string
		email    string
		role     string
		password string
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a login account",
		Long: "Create a login account. The first account may be created without " +
			"credentials; after that an administrator must authorize.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := library.ParseRole(role)
			if err != nil {
				return err
			}

			n, err := a.lm.Gate.CountUsers(cmd.Context())
			if err != nil {
				return report(cmd, "counting users", err)
			}
			if n > 0 {
				if creds.email == "" {
					return errors.New("--email-auth is required once an account exists")
				}
				u, err := a.authorize(cmd, creds, library.RoleAdministrator)
				if err != nil || u == nil {
					return err
				}
			}

			if password == "" {
				password, err = a.readPassword(cmd.ErrOrStderr(), fmt.Sprintf("Enter password for %s: ", email))
				if err != nil {
					return err
				}
			}

			u, err := a.lm.Gate.CreateUser(cmd.Context(), library.User{Name: name, Email: email, Role: r}, password)
			if err != nil {
				return report(cmd, "creating user", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s '%s' with user ID %d\n", u.Role, u.Email, u.ID)

			if u.Role == library.RoleLibrarian {
				lib, err := a.lm.Gate.RegisterLibrarian(cmd.Context(), u.ID)
				if err != nil {
					return report(cmd, "registering librarian", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Employee ID %d\n", lib.EmployeeID)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&creds.email, "email-auth", "", "email of the authorizing administrator")
	f.StringVar(&creds.password, "password-auth", "", "password of the authorizing administrator")
	f.StringVar(&name, "name", "", "display name")
	f.StringVar(&email, "email", "", "login email")
	f.StringVar(&role, "role", string(library.RoleLibrarian), "member, librarian or administrator")
	f.StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) changePasswordCommand() *cobra.Command {
	var (
		creds credentials
		next  string
	)
	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the password of the authenticated account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if creds.password == "" {
				creds.password, err = a.readPassword(cmd.ErrOrStderr(), "Current password: ")
				if err != nil {
					return err
				}
			}
			u, err := a.authorize(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			if next == "" {
				next, err = a.readPassword(cmd.ErrOrStderr(), "New password: ")
				if err != nil {
					return err
				}
			}
			if err := a.lm.Gate.ChangePassword(cmd.Context(), u.ID, creds.password, next); err != nil {
				return report(cmd, "changing password", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password changed for %s\n", u.Email)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	cmd.Flags().StringVar(&next, "new-password", "", "new password (prompted when omitted)")
	return cmd
}
