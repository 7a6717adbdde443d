package library

import (
	"context"
	"strings"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/store"
)

// Directory is the catalogue and member registry: lookups, search and the
// plain create/update operations librarians perform.
type Directory struct {
	st  store.Store
	cfg *settings
}

// NewDirectory creates a Directory over st.
func NewDirectory(st store.Store, opts ...Option) *Directory {
	return &Directory{st: st, cfg: newSettings(opts)}
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// CreateBook inserts a book and links it to existing authors and categories.
// Unknown author or category ids fail the whole call.
func (d *Directory) CreateBook(ctx context.Context, b Book, authorIDs, categoryIDs []int64) (*Book, error) {
	b.ID = 0
	b.ISBN = strings.TrimSpace(b.ISBN)
	b.Title = strings.TrimSpace(b.Title)
	if err := d.cfg.validate.Validate(b); err != nil {
		return nil, err
	}

	var created Book
	err := d.st.WithTx(ctx, func(tx store.Store) error {
		row, err := tx.Insert(ctx, store.Books, b.toRow())
		if err != nil {
			return storeErr(err, "create book %q", b.ISBN)
		}
		if created, err = bookFromRow(row); err != nil {
			return err
		}
		for _, id := range dedupe(authorIDs) {
			if _, err := tx.Insert(ctx, store.BookAuthors, store.Row{"book_id": created.ID, "author_id": id}); err != nil {
				return storeErr(err, "link author %d", id)
			}
		}
		for _, id := range dedupe(categoryIDs) {
			if _, err := tx.Insert(ctx, store.BookCategory, store.Row{"book_id": created.ID, "category_id": id}); err != nil {
				return storeErr(err, "link category %d", id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.cfg.log.Info("book created", "book_id", created.ID, "isbn", created.ISBN, "title", created.Title)
	return &created, nil
}

// GetBook fetches one book.
func (d *Directory) GetBook(ctx context.Context, bookID int64) (*Book, error) {
	rows, err := d.st.Select(ctx, store.Books, store.Eq("book_id", bookID))
	if err != nil {
		return nil, storeErr(err, "get book %d", bookID)
	}
	if len(rows) == 0 {
		return nil, domainerrors.NotFoundf("book %d not found", bookID)
	}
	b, err := bookFromRow(rows[0])
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookRecord fetches one book with its author and category names.
func (d *Directory) GetBookRecord(ctx context.Context, bookID int64) (*BookRecord, error) {
	b, err := d.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	records, err := d.enrich(ctx, []Book{*b})
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// ListBooks returns every book by ascending id.
func (d *Directory) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := d.st.Select(ctx, store.Books)
	if err != nil {
		return nil, storeErr(err, "list books")
	}
	return decodeAll(rows, bookFromRow)
}

// UpdateBook applies the non-nil fields of u.
func (d *Directory) UpdateBook(ctx context.Context, bookID int64, u BookUpdate) (*Book, error) {
	set := store.Row{}
	if u.ISBN != nil {
		set["isbn"] = strings.TrimSpace(*u.ISBN)
	}
	if u.Title != nil {
		set["title"] = strings.TrimSpace(*u.Title)
	}
	if u.Publisher != nil {
		set["publisher"] = nullable(*u.Publisher)
	}
	if u.PublishedYear != nil {
		set["published_year"] = nullableInt(*u.PublishedYear)
	}
	if u.Description != nil {
		set["description"] = nullable(*u.Description)
	}
	if set["isbn"] == "" || set["title"] == "" {
		return nil, domainerrors.Validation("isbn and title cannot be blank")
	}
	if len(set) == 0 {
		return d.GetBook(ctx, bookID)
	}

	n, err := d.st.Update(ctx, store.Books, set, store.Eq("book_id", bookID))
	if err != nil {
		return nil, storeErr(err, "update book %d", bookID)
	}
	if n == 0 {
		return nil, domainerrors.NotFoundf("book %d not found", bookID)
	}
	d.cfg.log.Info("book updated", "book_id", bookID, "fields", len(set))
	return d.GetBook(ctx, bookID)
}

// ---------------------------------------------------------------------------
// Authors and categories
// ---------------------------------------------------------------------------

func (d *Directory) CreateAuthor(ctx context.Context, fullName string) (*Author, error) {
	a := Author{FullName: strings.TrimSpace(fullName)}
	if err := d.cfg.validate.Validate(a); err != nil {
		return nil, err
	}
	row, err := d.st.Insert(ctx, store.Authors, a.toRow())
	if err != nil {
		return nil, storeErr(err, "create author %q", a.FullName)
	}
	if a, err = authorFromRow(row); err != nil {
		return nil, err
	}
	return &a, nil
}

func (d *Directory) ListAuthors(ctx context.Context) ([]Author, error) {
	rows, err := d.st.Select(ctx, store.Authors)
	if err != nil {
		return nil, storeErr(err, "list authors")
	}
	return decodeAll(rows, authorFromRow)
}

func (d *Directory) CreateCategory(ctx context.Context, name string) (*Category, error) {
	c := Category{Name: strings.TrimSpace(name)}
	if err := d.cfg.validate.Validate(c); err != nil {
		return nil, err
	}
	row, err := d.st.Insert(ctx, store.Categories, c.toRow())
	if err != nil {
		return nil, storeErr(err, "create category %q", c.Name)
	}
	if c, err = categoryFromRow(row); err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *Directory) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := d.st.Select(ctx, store.Categories)
	if err != nil {
		return nil, storeErr(err, "list categories")
	}
	return decodeAll(rows, categoryFromRow)
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

// Search matches isbn and title by case-insensitive substring, and author and
// category by substring of their names through the link tables. Filters are
// ANDed and an empty query lists everything. No match is an empty slice.
func (d *Directory) Search(ctx context.Context, q SearchQuery) ([]BookRecord, error) {
	var filters []store.Filter
	if s := strings.TrimSpace(q.ISBN); s != "" {
		filters = append(filters, store.Contains("isbn", s))
	}
	if s := strings.TrimSpace(q.Title); s != "" {
		filters = append(filters, store.Contains("title", s))
	}

	if s := strings.TrimSpace(q.Author); s != "" {
		ids, err := d.linkedBooks(ctx, store.Authors, "full_name", s, store.BookAuthors, "author_id")
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []BookRecord{}, nil
		}
		filters = append(filters, store.In("book_id", ids))
	}
	if s := strings.TrimSpace(q.Category); s != "" {
		ids, err := d.linkedBooks(ctx, store.Categories, "name", s, store.BookCategory, "category_id")
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []BookRecord{}, nil
		}
		filters = append(filters, store.In("book_id", ids))
	}

	rows, err := d.st.Select(ctx, store.Books, filters...)
	if err != nil {
		return nil, storeErr(err, "search books")
	}
	books, err := decodeAll(rows, bookFromRow)
	if err != nil {
		return nil, err
	}
	return d.enrich(ctx, books)
}

// linkedBooks resolves a name substring to entity ids, then to the ids of the
// books linked to any of them.
func (d *Directory) linkedBooks(ctx context.Context, entity store.Table, nameCol, substr string, link store.Table, linkCol string) ([]int64, error) {
	rows, err := d.st.Select(ctx, entity, store.Contains(nameCol, substr))
	if err != nil {
		return nil, storeErr(err, "search %s", entity.Name)
	}
	ids, err := column(rows, entity.Key)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	links, err := d.st.Select(ctx, link, store.In(linkCol, ids))
	if err != nil {
		return nil, storeErr(err, "search %s", link.Name)
	}
	bookIDs, err := column(links, "book_id")
	if err != nil {
		return nil, err
	}
	return dedupe(bookIDs), nil
}

// enrich attaches author and category names using one query per table rather
// than per book.
func (d *Directory) enrich(ctx context.Context, books []Book) ([]BookRecord, error) {
	out := make([]BookRecord, len(books))
	if len(books) == 0 {
		return out, nil
	}
	bookIDs := make([]int64, len(books))
	for i, b := range books {
		bookIDs[i] = b.ID
	}

	authors, err := d.names(ctx, bookIDs, store.BookAuthors, "author_id", store.Authors, "full_name")
	if err != nil {
		return nil, err
	}
	categories, err := d.names(ctx, bookIDs, store.BookCategory, "category_id", store.Categories, "name")
	if err != nil {
		return nil, err
	}
	for i, b := range books {
		out[i] = BookRecord{Book: b, Authors: authors[b.ID], Categories: categories[b.ID]}
		if out[i].Authors == nil {
			out[i].Authors = []string{}
		}
		if out[i].Categories == nil {
			out[i].Categories = []string{}
		}
	}
	return out, nil
}

// names maps each book id to the names of the entities linked to it.
func (d *Directory) names(ctx context.Context, bookIDs []int64, link store.Table, linkCol string, entity store.Table, nameCol string) (map[int64][]string, error) {
	links, err := d.st.Select(ctx, link, store.In("book_id", bookIDs))
	if err != nil {
		return nil, storeErr(err, "load %s", link.Name)
	}
	entityIDs, err := column(links, linkCol)
	if err != nil {
		return nil, err
	}
	rows, err := d.st.Select(ctx, entity, store.In(entity.Key, dedupe(entityIDs)))
	if err != nil {
		return nil, storeErr(err, "load %s", entity.Name)
	}
	byID := make(map[int64]string, len(rows))
	for _, row := range rows {
		r := newReader(entity.Name, row)
		id, name := r.int64(entity.Key), r.str(nameCol)
		if r.err != nil {
			return nil, r.err
		}
		byID[id] = name
	}

	out := make(map[int64][]string, len(bookIDs))
	for _, row := range links {
		r := newReader(link.Name, row)
		bookID, entityID := r.int64("book_id"), r.int64(linkCol)
		if r.err != nil {
			return nil, r.err
		}
		if name, ok := byID[entityID]; ok {
			out[bookID] = append(out[bookID], name)
		}
	}
	return out, nil
}

// column extracts one integer column from rows.
func column(rows []store.Row, col string) ([]int64, error) {
	out := make([]int64, 0, len(rows))
	for _, row := range rows {
		r := newReader(col, row)
		v := r.int64(col)
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, v)
	}
	return out, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
