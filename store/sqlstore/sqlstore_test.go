package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/store"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertBook(t *testing.T, s *Store, isbn, title string) int64 {
	t.Helper()
	row, err := s.Insert(context.Background(), store.Books, store.Row{"isbn": isbn, "title": title})
	require.NoError(t, err)
	id, ok := row["book_id"].(int64)
	require.True(t, ok, "book_id should be int64, got %T", row["book_id"])
	return id
}

func TestInsert_ReturnsGeneratedKey(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	row, err := s.Insert(ctx, store.Books, store.Row{"isbn": "1234567890", "title": "The Alchemist", "published_year": 1988})
	require.NoError(t, err)

	assert.EqualValues(t, 1, row["book_id"])
	assert.Equal(t, "The Alchemist", row["title"])
	assert.EqualValues(t, 1988, row["published_year"])
	assert.Nil(t, row["publisher"])
}

func TestInsert_ExplicitKey(t *testing.T) {
	s := tempStore(t)
	row, err := s.Insert(context.Background(), store.Books, store.Row{"book_id": 101, "isbn": "x", "title": "y"})
	require.NoError(t, err)
	assert.EqualValues(t, 101, row["book_id"])
}

func TestSelect_Filters(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	a := insertBook(t, s, "111", "Dune")
	b := insertBook(t, s, "222", "Dune Messiah")
	c := insertBook(t, s, "333", "Neuromancer")
	d := insertBook(t, s, "444", "100% Pure")
	e := insertBook(t, s, "555", "Snake_Case")

	tests := []struct {
		name    string
		filters []store.Filter
		want    []int64
	}{
		{"no filter returns all in key order", nil, []int64{a, b, c, d, e}},
		{"eq", []store.Filter{store.Eq("isbn", "222")}, []int64{b}},
		{"contains is case-insensitive", []store.Filter{store.Contains("title", "dUNE")}, []int64{a, b}},
		{"in", []store.Filter{store.In("book_id", []int64{a, c})}, []int64{a, c}},
		{"empty in matches nothing", []store.Filter{store.In("book_id", []int64{})}, nil},
		{"lt on text", []store.Filter{store.Lt("isbn", "300")}, []int64{a, b}},
		{"filters are anded", []store.Filter{store.Contains("title", "dune"), store.Eq("isbn", "111")}, []int64{a}},
		{"is null", []store.Filter{store.IsNull("publisher")}, []int64{a, b, c, d, e}},
		{"contains treats underscore literally", []store.Filter{store.Contains("title", "_")}, []int64{e}},
		{"contains treats percent literally", []store.Filter{store.Contains("title", "%")}, []int64{d}},
		{"contains treats backslash literally", []store.Filter{store.Contains("title", `\`)}, nil},
		{"contains with escaped wildcard inside", []store.Filter{store.Contains("title", "E_c")}, []int64{e}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.Select(ctx, store.Books, tt.filters...)
			require.NoError(t, err)

			var got []int64
			for _, r := range rows {
				got = append(got, r["book_id"].(int64))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdate_ReportsMatchedRows(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	id := insertBook(t, s, "111", "Dune")
	insertBook(t, s, "222", "Emma")

	n, err := s.Update(ctx, store.Books, store.Row{"publisher": "Chilton"}, store.Eq("book_id", id))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.Update(ctx, store.Books, store.Row{"publisher": "Chilton"}, store.Eq("book_id", 999))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	_, err = s.Update(ctx, store.Books, store.Row{"publisher": "x"})
	assert.ErrorIs(t, err, store.ErrUnfiltered)

	rows, err := s.Select(ctx, store.Books, store.Eq("publisher", "Chilton"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0]["book_id"])
}

func TestDelete_CascadesCopies(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	id := insertBook(t, s, "111", "Dune")
	_, err := s.Insert(ctx, store.Copies, store.Row{"book_id": id, "barcode": "B-1", "status": "available"})
	require.NoError(t, err)

	n, err := s.Delete(ctx, store.Books, store.Eq("book_id", id))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	copies, err := s.Select(ctx, store.Copies, store.Eq("book_id", id))
	require.NoError(t, err)
	assert.Empty(t, copies)
}

func TestConstraintErrors(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	insertBook(t, s, "111", "Dune")

	_, err := s.Insert(ctx, store.Books, store.Row{"isbn": "111", "title": "Again"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	_, err = s.Insert(ctx, store.Copies, store.Row{"book_id": 42, "barcode": "B-9", "status": "available"})
	assert.ErrorIs(t, err, store.ErrReference)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.Insert(ctx, store.Books, store.Row{"isbn": "111", "title": "Dune"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rows, err := s.Select(ctx, store.Books)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Store) error {
		if err := tx.WithTx(ctx, func(inner store.Store) error {
			_, err := inner.Insert(ctx, store.Books, store.Row{"isbn": "111", "title": "Dune"})
			return err
		}); err != nil {
			return err
		}
		// The inner insert is visible and its fate is tied to this tx.
		rows, err := tx.SelectForUpdate(ctx, store.Books)
		if err != nil {
			return err
		}
		require.Len(t, rows, 1)
		return errors.New("abort")
	})
	require.Error(t, err)

	rows, err := s.Select(ctx, store.Books)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	ctx := context.Background()

	s1, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	_, err = s1.Insert(ctx, store.Books, store.Row{"isbn": "111", "title": "Dune"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer s2.Close()

	rows, err := s2.Select(ctx, store.Books)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}

type countingObserver struct{ calls map[string]int }

func (o *countingObserver) ObserveQuery(op, table string, _ time.Duration) {
	o.calls[op+":"+table]++
}

func TestObserver_SeesEveryStatement(t *testing.T) {
	obs := &countingObserver{calls: map[string]int{}}
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "obs.db"), WithObserver(obs))
	require.NoError(t, err)
	defer s.Close()

	insertBook(t, s, "111", "Dune")
	_, err = s.Select(context.Background(), store.Books)
	require.NoError(t, err)

	assert.Equal(t, 1, obs.calls["insert:book"])
	assert.Equal(t, 1, obs.calls["select:book"])
}
