// Package sqlstore implements store.Store over database/sql with goqu building
// the statements and sqlx scanning generic rows. It runs against sqlite3
// (mattn/go-sqlite3) for single-node installs and PostgreSQL (pgx) for shared
// deployments.
package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"library-circulation/internal/logger"
	"library-circulation/store"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Observer receives the latency of every statement.
type Observer interface {
	ObserveQuery(operation, table string, d time.Duration)
}

// Option configures a Store.
type Option func(*Store)

// WithObserver reports statement latency to o.
func WithObserver(o Observer) Option { return func(s *Store) { s.observer = o } }

// WithLogger logs statements at debug level.
func WithLogger(l *logger.Logger) Option { return func(s *Store) { s.log = l } }

// Store is a store.Store backed by a SQL database. The zero value is not usable.
type Store struct {
	db       *sqlx.DB
	ext      sqlx.ExtContext
	tx       *sqlx.Tx
	dialect  goqu.DialectWrapper
	driver   string
	observer Observer
	log      *logger.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the database, applies schema migrations and returns a
// ready Store. For sqlite3 dsn is a file path; the directory is created when
// missing.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		// Immediate transactions take the write lock at BEGIN, so a
		// read-check-write sequence inside WithTx cannot interleave with
		// another writer.
		full := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", dsn)
		db, err = sqlx.Open("sqlite3", full)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	case DriverPostgres:
		db, err = sqlx.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{
		db:      db,
		ext:     db,
		dialect: goqu.Dialect(driver),
		driver:  driver,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := applyMigrations(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool. Closing a transaction-bound Store is a no-op.
func (s *Store) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports which backend this Store talks to.
func (s *Store) Driver() string { return s.driver }

// ---------------------------------------------------------------------------
// Rows
// ---------------------------------------------------------------------------

// Insert writes row and returns it as stored, generated key included.
func (s *Store) Insert(ctx context.Context, t store.Table, row store.Row) (store.Row, error) {
	query, args, err := s.dialect.Insert(t.Name).Rows(goqu.Record(row)).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert %s: %w", t.Name, err)
	}
	// goqu refuses RETURNING for sqlite3, which has supported it since 3.35.
	query += " RETURNING *"

	rows, err := s.query(ctx, "insert", t.Name, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("insert %s: expected 1 returned row, got %d", t.Name, len(rows))
	}
	return rows[0], nil
}

// Select returns matching rows ordered by the table key.
func (s *Store) Select(ctx context.Context, t store.Table, filters ...store.Filter) ([]store.Row, error) {
	return s.selectRows(ctx, t, false, filters)
}

// SelectForUpdate locks matching rows on PostgreSQL. On sqlite3 the immediate
// transaction already holds the database write lock, so it is a plain Select.
func (s *Store) SelectForUpdate(ctx context.Context, t store.Table, filters ...store.Filter) ([]store.Row, error) {
	return s.selectRows(ctx, t, true, filters)
}

func (s *Store) selectRows(ctx context.Context, t store.Table, lock bool, filters []store.Filter) ([]store.Row, error) {
	where, empty := s.whereClause(filters)
	if empty {
		return []store.Row{}, nil
	}

	ds := s.dialect.From(t.Name).Where(where...).Order(goqu.I(t.Key).Asc()).Prepared(true)
	if lock && s.driver == DriverPostgres {
		ds = ds.ForUpdate(exp.Wait)
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select %s: %w", t.Name, err)
	}
	return s.query(ctx, "select", t.Name, query, args)
}

// Update applies set to every matching row and reports how many matched.
func (s *Store) Update(ctx context.Context, t store.Table, set store.Row, filters ...store.Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, store.ErrUnfiltered
	}
	where, empty := s.whereClause(filters)
	if empty {
		return 0, nil
	}
	query, args, err := s.dialect.Update(t.Name).Set(goqu.Record(set)).Where(where...).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build update %s: %w", t.Name, err)
	}
	return s.exec(ctx, "update", t.Name, query, args)
}

// Delete removes every matching row and reports how many were removed.
func (s *Store) Delete(ctx context.Context, t store.Table, filters ...store.Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, store.ErrUnfiltered
	}
	where, empty := s.whereClause(filters)
	if empty {
		return 0, nil
	}
	query, args, err := s.dialect.Delete(t.Name).Where(where...).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build delete %s: %w", t.Name, err)
	}
	return s.exec(ctx, "delete", t.Name, query, args)
}

// WithTx runs fn inside one transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapError(err))
	}
	defer tx.Rollback()

	bound := *s
	bound.ext = tx
	bound.tx = tx
	if err := fn(&bound); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", mapError(err))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Execution helpers
// ---------------------------------------------------------------------------

func (s *Store) query(ctx context.Context, op, table, query string, args []any) ([]store.Row, error) {
	start := time.Now()
	defer s.observe(op, table, query, start)

	rows, err := s.ext.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, table, mapError(err))
	}
	defer rows.Close()

	out := []store.Row{}
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, normalize(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, table, mapError(err))
	}
	return out, nil
}

func (s *Store) exec(ctx context.Context, op, table, query string, args []any) (int64, error) {
	start := time.Now()
	defer s.observe(op, table, query, start)

	res, err := s.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", op, table, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s %s rows affected: %w", op, table, err)
	}
	return n, nil
}

func (s *Store) observe(op, table, query string, start time.Time) {
	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveQuery(op, table, elapsed)
	}
	s.log.Debug("sql", "op", op, "table", table, "query", query, "took", elapsed)
}

// likeEscaper makes LIKE wildcards in user text match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause translates filters. empty reports an In filter over an empty
// set, which can match nothing.
func (s *Store) whereClause(filters []store.Filter) (where []exp.Expression, empty bool) {
	where = make([]exp.Expression, 0, len(filters))
	for _, f := range filters {
		col := goqu.C(f.Column)
		switch f.Op {
		case store.OpEq:
			where = append(where, col.Eq(f.Value))
		case store.OpContains:
			// sqlite LIKE already ignores ASCII case and has no ILIKE.
			op := "ILIKE"
			if s.driver == DriverSQLite {
				op = "LIKE"
			}
			pattern := "%" + likeEscaper.Replace(fmt.Sprint(f.Value)) + "%"
			where = append(where, goqu.L("? "+op+` ? ESCAPE '\'`, col, pattern))
		case store.OpIn:
			vals, _ := f.Value.([]any)
			if len(vals) == 0 {
				return nil, true
			}
			where = append(where, col.In(vals...))
		case store.OpLt:
			where = append(where, col.Lt(f.Value))
		case store.OpIsNull:
			where = append(where, col.IsNull())
		}
	}
	return where, false
}

// normalize turns driver byte slices into strings so decoders see one type
// for text columns regardless of backend.
func normalize(m map[string]any) store.Row {
	row := make(store.Row, len(m))
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
			continue
		}
		row[k] = v
	}
	return row
}
