package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

// parseIDs parses a comma separated id list such as "1,4,9".
func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *app) createBookCommand() *cobra.Command {
	var (
		creds      credentials
		book       library.Book
		authors    string
		categories string
		copies     int
	)
	cmd := &cobra.Command{
		Use:   "create-book",
		Short: "Create a new book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authorIDs, err := parseIDs(authors)
			if err != nil {
				return err
			}
			categoryIDs, err := parseIDs(categories)
			if err != nil {
				return err
			}
			if copies < 0 {
				return errors.New("--copies must not be negative")
			}

			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}

			created, err := a.lm.Directory.CreateBook(cmd.Context(), book, authorIDs, categoryIDs)
			if err != nil {
				return report(cmd, "creating book", err)
			}
			for i := 0; i < copies; i++ {
				if _, err := a.lm.Ledger.AddCopy(cmd.Context(), library.BookCopy{BookID: created.ID}); err != nil {
					return report(cmd, "adding copy", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created book ID %d: %s (%d copies)\n", created.ID, created.Title, copies)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	f := cmd.Flags()
	f.StringVar(&book.ISBN, "isbn", "", "book ISBN")
	f.StringVar(&book.Title, "title", "", "book title")
	f.StringVar(&book.Publisher, "publisher", "", "publisher name")
	f.IntVar(&book.PublishedYear, "year", 0, "published year")
	f.StringVar(&book.Description, "description", "", "book description")
	f.StringVar(&authors, "authors", "", "comma-separated author IDs")
	f.StringVar(&categories, "categories", "", "comma-separated category IDs")
	f.IntVar(&copies, "copies", 0, "number of available copies to add")
	_ = cmd.MarkFlagRequired("isbn")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (a *app) searchBooksCommand() *cobra.Command {
	var q library.SearchQuery
	cmd := &cobra.Command{
		Use:   "search-books",
		Short: "Search books by ISBN, title, author or category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			records, err := a.lm.Directory.Search(cmd.Context(), q)
			if err != nil {
				return report(cmd, "searching books", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No books found.")
				return nil
			}

			fmt.Fprintf(out, "Found %d book(s):\n", len(records))
			fmt.Fprintf(out, "%-5s %-17s %-32s %-25s %s\n", "ID", "ISBN", "Title", "Authors", "Categories")
			fmt.Fprintln(out, strings.Repeat("-", 100))
			for _, b := range records {
				fmt.Fprintln(out, library.PrettyBook(b))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.ISBN, "isbn", "", "ISBN filter")
	f.StringVar(&q.Title, "title", "", "title filter")
	f.StringVar(&q.Author, "author", "", "author name filter")
	f.StringVar(&q.Category, "category", "", "category name filter")
	return cmd
}

func (a *app) addCopyCommand() *cobra.Command {
	var (
		creds   credentials
		bookID  int64
		barcode string
		status  string
	)
	cmd := &cobra.Command{
		Use:   "add-copy",
		Short: "Add a physical copy of a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := library.ParseCopyStatus(status)
			if err != nil {
				return err
			}
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			c, err := a.lm.Ledger.AddCopy(cmd.Context(), library.BookCopy{BookID: bookID, Barcode: barcode, Status: st})
			if err != nil {
				return report(cmd, "adding copy", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added copy ID %d (barcode %s) of book %d\n", c.ID, c.Barcode, c.BookID)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	f := cmd.Flags()
	f.Int64Var(&bookID, "book-id", 0, "book ID")
	f.StringVar(&barcode, "barcode", "", "barcode (generated when omitted)")
	f.StringVar(&status, "status", string(library.CopyAvailable), "initial status")
	_ = cmd.MarkFlagRequired("book-id")
	return cmd
}

func (a *app) createAuthorCommand() *cobra.Command {
	var (
		creds credentials
		name  string
	)
	cmd := &cobra.Command{
		Use:   "create-author",
		Short: "Create an author",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			author, err := a.lm.Directory.CreateAuthor(cmd.Context(), name)
			if err != nil {
				return report(cmd, "creating author", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created author ID %d: %s\n", author.ID, author.FullName)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	cmd.Flags().StringVar(&name, "name", "", "author full name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) createCategoryCommand() *cobra.Command {
	var (
		creds credentials
		name  string
	)
	cmd := &cobra.Command{
		Use:   "create-category",
		Short: "Create a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			c, err := a.lm.Directory.CreateCategory(cmd.Context(), name)
			if err != nil {
				return report(cmd, "creating category", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created category ID %d: %s\n", c.ID, c.Name)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	cmd.Flags().StringVar(&name, "name", "", "category name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) deleteBookCommand() *cobra.Command {
	var (
		creds  credentials
		bookID int64
	)
	cmd := &cobra.Command{
		Use:   "delete-book",
		Short: "Delete a book that has no active or overdue loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.staff(cmd, creds)
			if err != nil || u == nil {
				return err
			}
			ok, err := a.lm.Loans.DeleteBook(cmd.Context(), bookID)
			if err != nil {
				return report(cmd, "deleting book", err)
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Cannot delete book %d: it has active or overdue loans\n", bookID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted book %d\n", bookID)
			return nil
		},
	}
	addAuthFlags(cmd, &creds)
	cmd.Flags().Int64Var(&bookID, "book-id", 0, "book ID")
	_ = cmd.MarkFlagRequired("book-id")
	return cmd
}
