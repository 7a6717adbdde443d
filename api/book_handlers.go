package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	domainerrors "library-circulation/internal/errors"
	"library-circulation/library"
)

// idParam parses the {name} URL parameter as a positive integer id.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domainerrors.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}

type createBookRequest struct {
	library.Book
	AuthorIDs   []int64 `json:"author_ids"`
	CategoryIDs []int64 `json:"category_ids"`
}

type addCopyRequest struct {
	Barcode    string        `json:"barcode"`
	Status     string        `json:"status"`
	AcquiredOn *library.Date `json:"acquired_on"`
}

type copyStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type nameRequest struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.lm.Directory.ListBooks(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, books, s.log)
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.lm.Directory.Search(r.Context(), library.SearchQuery{
		ISBN:     q.Get("isbn"),
		Title:    q.Get("title"),
		Author:   q.Get("author"),
		Category: q.Get("category"),
	})
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, records, s.log)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	rec, err := s.lm.Directory.GetBookRecord(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, rec, s.log)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	book, err := s.lm.Directory.CreateBook(r.Context(), req.Book, req.AuthorIDs, req.CategoryIDs)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	rec, err := s.lm.Directory.GetBookRecord(r.Context(), book.ID)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	created(w, rec, s.log)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	var req library.BookUpdate
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	book, err := s.lm.Directory.UpdateBook(r.Context(), id, req)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, book, s.log)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	ok, err := s.lm.Loans.DeleteBook(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if !ok {
		handleError(w, domainerrors.New(domainerrors.CodeDeleteBlocked, "book has active or overdue loans"), s.log)
		return
	}
	success(w, map[string]any{"deleted": true, "book_id": id}, s.log)
}

func (s *Server) handleListCopies(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	if _, err := s.lm.Directory.GetBook(r.Context(), id); err != nil {
		handleError(w, err, s.log)
		return
	}
	var copies []library.BookCopy
	if r.URL.Query().Get("available") == "true" {
		copies, err = s.lm.Ledger.AvailableCopies(r.Context(), id)
	} else {
		copies, err = s.lm.Ledger.Copies(r.Context(), id)
	}
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, copies, s.log)
}

func (s *Server) handleAddCopy(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	var req addCopyRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			handleError(w, err, s.log)
			return
		}
	}
	c := library.BookCopy{BookID: id, Barcode: req.Barcode, AcquiredOn: req.AcquiredOn}
	if req.Status != "" {
		st, err := library.ParseCopyStatus(req.Status)
		if err != nil {
			handleError(w, domainerrors.Validation(err.Error()), s.log)
			return
		}
		c.Status = st
	}
	added, err := s.lm.Ledger.AddCopy(r.Context(), c)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	created(w, added, s.log)
}

func (s *Server) handleSetCopyStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	var req copyStatusRequest
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	if err := s.validate.Validate(req); err != nil {
		handleError(w, err, s.log)
		return
	}
	st, err := library.ParseCopyStatus(req.Status)
	if err != nil {
		handleError(w, domainerrors.Validation(err.Error()), s.log)
		return
	}
	if err := s.lm.Ledger.SetStatus(r.Context(), id, st); err != nil {
		handleError(w, err, s.log)
		return
	}
	c, err := s.lm.Ledger.GetCopy(r.Context(), id)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, c, s.log)
}

// ---------------------------------------------------------------------------
// Authors and categories
// ---------------------------------------------------------------------------

func (s *Server) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := s.lm.Directory.ListAuthors(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, authors, s.log)
}

func (s *Server) handleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	name := req.FullName
	if name == "" {
		name = req.Name
	}
	a, err := s.lm.Directory.CreateAuthor(r.Context(), name)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	created(w, a, s.log)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.lm.Directory.ListCategories(r.Context())
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	success(w, cats, s.log)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		handleError(w, err, s.log)
		return
	}
	c, err := s.lm.Directory.CreateCategory(r.Context(), req.Name)
	if err != nil {
		handleError(w, err, s.log)
		return
	}
	created(w, c, s.log)
}
