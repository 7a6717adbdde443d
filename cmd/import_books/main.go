// Command import_books loads a YAML catalog of books, authors, categories and
// copies into the configured store.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"library-circulation/internal/config"
	"library-circulation/internal/logger"
	"library-circulation/library"
	"library-circulation/store/sqlstore"
)

// catalog is the import file layout:
//
//	books:
//	  - isbn: 978-0-452-28423-4
//	    title: "1984"
//	    authors: [George Orwell]
//	    categories: [Fiction, Dystopia]
//	    copies: 2
type catalog struct {
	Books []catalogBook `yaml:"books"`
}

type catalogBook struct {
	ISBN        string   `yaml:"isbn"`
	Title       string   `yaml:"title"`
	Publisher   string   `yaml:"publisher"`
	Year        int      `yaml:"year"`
	Description string   `yaml:"description"`
	Authors     []string `yaml:"authors"`
	Categories  []string `yaml:"categories"`
	Copies      int      `yaml:"copies"`
}

func parseCatalog(r io.Reader) (*catalog, error) {
	var c catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

func main() {
	var (
		envFile string
		dsn     string
		fresh   bool
	)
	cmd := &cobra.Command{
		Use:          "import_books <catalog.yaml>",
		Short:        "Import a YAML book catalog",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Overrides{EnvFile: envFile, DSN: dsn})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if fresh && cfg.Database.Driver == sqlstore.DriverSQLite {
				// Clean up any existing database files
				fmt.Fprintln(out, "Cleaning up existing database files...")
				for _, file := range []string{cfg.Database.DSN, cfg.Database.DSN + "-shm", cfg.Database.DSN + "-wal"} {
					if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
						fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
					}
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer f.Close()
			cat, err := parseCatalog(f)
			if err != nil {
				return err
			}

			log := logger.New(logger.Config{
				Writer:      cmd.ErrOrStderr(),
				Environment: cfg.App.Environment,
				Level:       logger.ParseLevel(cfg.Logger.Level),
			})
			st, err := sqlstore.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN, sqlstore.WithLogger(log))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			lm := library.NewLibraryManager(st, library.WithLogger(log))
			defer lm.Close()

			fmt.Fprintf(out, "Importing %d book(s) from %s...\n", len(cat.Books), args[0])
			successCount, errorCount := importCatalog(cmd.Context(), lm, cat, out)

			fmt.Fprintf(out, "\nImport complete!\n")
			fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
			fmt.Fprintf(out, "Errors: %d\n", errorCount)
			if successCount > 0 {
				printSummary(cmd.Context(), lm, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "path to a .env file (default .env)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "database file path or connection URL")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "delete an existing sqlite database first")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// importCatalog adds every catalog book with its copies. Authors and
// categories are matched by name and created when missing. A failing book is
// counted and skipped.
func importCatalog(ctx context.Context, lm *library.LibraryManager, cat *catalog, out io.Writer) (successCount, errorCount int) {
	authors, err := authorIndex(ctx, lm)
	if err != nil {
		fmt.Fprintf(out, "ERROR - %v\n", err)
		return 0, len(cat.Books)
	}
	categories, err := categoryIndex(ctx, lm)
	if err != nil {
		fmt.Fprintf(out, "ERROR - %v\n", err)
		return 0, len(cat.Books)
	}

	for _, b := range cat.Books {
		fmt.Fprintf(out, "Importing: %s (%s)... ", b.Title, b.ISBN)

		authorIDs, err := resolve(b.Authors, authors, func(name string) (int64, error) {
			a, err := lm.Directory.CreateAuthor(ctx, name)
			if err != nil {
				return 0, err
			}
			return a.ID, nil
		})
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		}
		categoryIDs, err := resolve(b.Categories, categories, func(name string) (int64, error) {
			c, err := lm.Directory.CreateCategory(ctx, name)
			if err != nil {
				return 0, err
			}
			return c.ID, nil
		})
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		}

		book, err := lm.Directory.CreateBook(ctx, library.Book{
			ISBN:          b.ISBN,
			Title:         b.Title,
			Publisher:     b.Publisher,
			PublishedYear: b.Year,
			Description:   b.Description,
		}, authorIDs, categoryIDs)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		}

		added := 0
		for i := 0; i < b.Copies; i++ {
			if _, err := lm.Ledger.AddCopy(ctx, library.BookCopy{BookID: book.ID}); err != nil {
				fmt.Fprintf(out, "Warning: copy %d of %s: %v\n", i+1, b.ISBN, err)
				continue
			}
			added++
		}

		fmt.Fprintf(out, "SUCCESS (ID: %d, copies: %d)\n", book.ID, added)
		successCount++
	}
	return successCount, errorCount
}

func authorIndex(ctx context.Context, lm *library.LibraryManager) (map[string]int64, error) {
	list, err := lm.Directory.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int64, len(list))
	for _, a := range list {
		idx[strings.ToLower(a.FullName)] = a.ID
	}
	return idx, nil
}

func categoryIndex(ctx context.Context, lm *library.LibraryManager) (map[string]int64, error) {
	list, err := lm.Directory.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int64, len(list))
	for _, c := range list {
		idx[strings.ToLower(c.Name)] = c.ID
	}
	return idx, nil
}

// resolve maps names to ids through idx, creating and remembering missing ones.
func resolve(names []string, idx map[string]int64, create func(string) (int64, error)) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		id, ok := idx[key]
		if !ok {
			var err error
			if id, err = create(name); err != nil {
				return nil, err
			}
			idx[key] = id
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printSummary(ctx context.Context, lm *library.LibraryManager, out io.Writer) {
	fmt.Fprintln(out, "\nImported books:")
	records, err := lm.Directory.Search(ctx, library.SearchQuery{})
	if err != nil {
		fmt.Fprintf(out, "Error retrieving books: %v\n", err)
		return
	}
	fmt.Fprintf(out, "%-3s %-50s %-30s\n", "ID", "Title", "Authors")
	fmt.Fprintln(out, strings.Repeat("-", 85))
	for _, b := range records {
		fmt.Fprintf(out, "%-3d %-50s %-30s\n", b.ID, truncateString(b.Title, 50), truncateString(strings.Join(b.Authors, ", "), 30))
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
