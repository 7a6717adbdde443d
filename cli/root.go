// Package cli implements the library command line. Every subcommand opens
// the configured store, runs one operation and exits.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-circulation/internal/config"
	"library-circulation/internal/logger"
	"library-circulation/internal/metrics"
	"library-circulation/library"
	"library-circulation/store/sqlstore"
)

type app struct {
	envFile  string
	dbDriver string
	dsn      string
	logLevel string
	port     string

	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	lm      *library.LibraryManager

	// extra options appended when building the manager
	options []library.Option
	// readPassword prompts without echo; tests replace it
	readPassword func(w io.Writer, prompt string) (string, error)
}

func newApp() *app {
	return &app{readPassword: promptPassword}
}

// Execute runs the root command and exits nonzero on argument or setup errors.
func Execute() {
	a := newApp()
	err := a.rootCommand().ExecuteContext(context.Background())
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "library",
		Short:        "Library circulation manager",
		Long:         "Manage books, copies, members, loans and reservations.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", "", "path to a .env file (default .env)")
	pf.StringVar(&a.dbDriver, "db-driver", "", "store driver: sqlite3 or postgres")
	pf.StringVar(&a.dsn, "dsn", "", "database file path or connection URL")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		a.createBookCommand(),
		a.searchBooksCommand(),
		a.addCopyCommand(),
		a.createAuthorCommand(),
		a.createCategoryCommand(),
		a.deleteBookCommand(),
		a.registerMemberCommand(),
		a.updateMemberCommand(),
		a.suspendMemberCommand(),
		a.deleteMemberCommand(),
		a.issueBookCommand(),
		a.returnBookCommand(),
		a.updateOverdueCommand(),
		a.listOverdueCommand(),
		a.reserveCommand(),
		a.cancelReservationCommand(),
		a.createUserCommand(),
		a.changePasswordCommand(),
		a.serveCommand(),
	)
	return root
}

// open loads configuration and connects the store.
func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Overrides{
		EnvFile:  a.envFile,
		LogLevel: a.logLevel,
		DBDriver: a.dbDriver,
		DSN:      a.dsn,
		Port:     a.port,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(logger.Config{
		Writer:      cmd.ErrOrStderr(),
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	})
	a.metrics = metrics.New()

	st, err := sqlstore.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN,
		sqlstore.WithObserver(a.metrics),
		sqlstore.WithLogger(a.log))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	opts := []library.Option{
		library.WithLogger(a.log),
		library.WithMetrics(a.metrics),
		library.WithLoanDays(cfg.Policy.LoanDays),
		library.WithReservationDays(cfg.Policy.ReservationDays),
	}
	a.lm = library.NewLibraryManager(st, append(opts, a.options...)...)
	return nil
}

func (a *app) close() {
	if a.lm != nil {
		if err := a.lm.Close(); err != nil && a.log != nil {
			a.log.Error("close database", "error", err)
		}
		a.lm = nil
	}
}

// credentials are the --email-auth/--password-auth pair of privileged commands.
type credentials struct {
	email    string
	password string
}

func addAuthFlags(cmd *cobra.Command, c *credentials) {
	cmd.Flags().StringVar(&c.email, "email-auth", "", "email of the acting user")
	cmd.Flags().StringVar(&c.password, "password-auth", "", "password of the acting user (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email-auth")
}

// authorize logs the acting user in, requiring one of roles when given. A
// rejected login is reported on stdout and yields a nil user with no error.
func (a *app) authorize(cmd *cobra.Command, c credentials, roles ...library.Role) (*library.User, error) {
	pw := c.password
	if pw == "" {
		var err error
		pw, err = a.readPassword(cmd.ErrOrStderr(), fmt.Sprintf("Password for %s: ", c.email))
		if err != nil {
			return nil, err
		}
	}
	u, err := a.lm.Login(cmd.Context(), c.email, pw, roles...)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Authentication failed: %v\n", err)
		return nil, nil
	}
	return u, nil
}

// staff authorizes a librarian or administrator.
func (a *app) staff(cmd *cobra.Command, c credentials) (*library.User, error) {
	return a.authorize(cmd, c, library.RoleLibrarian, library.RoleAdministrator)
}

// report prints a business failure. The command still exits zero.
func report(cmd *cobra.Command, action string, err error) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Error %s: %v\n", action, err)
	return nil
}

// promptPassword securely reads a password with masking.
func promptPassword(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password required: pass --password-auth or run from a terminal")
	}
	return readSecret(w, prompt, func() ([]byte, error) { return term.ReadPassword(fd) })
}

// readSecret prints prompt and returns what read yields, unmodified, so a
// typed password compares equal to the same value passed as a flag.
func readSecret(w io.Writer, prompt string, read func() ([]byte, error)) (string, error) {
	fmt.Fprint(w, prompt)
	b, err := read()
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
