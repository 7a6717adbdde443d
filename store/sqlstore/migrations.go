package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

type migration struct {
	version int
	stmts   []string
}

// Dates are stored as ISO-8601 TEXT on both backends; lexical order equals
// chronological order, which the overdue and expiry sweeps rely on. Loans
// carry no foreign keys: they are history and outlive their copy and member.
var migrations = []migration{
	{version: 1, stmts: []string{
		`CREATE TABLE IF NOT EXISTS book (
            book_id {{id}},
            isbn TEXT NOT NULL UNIQUE,
            title TEXT NOT NULL,
            publisher TEXT,
            published_year INTEGER,
            description TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS author (
            author_id {{id}},
            full_name TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS category (
            category_id {{id}},
            name TEXT NOT NULL UNIQUE
        )`,
		`CREATE TABLE IF NOT EXISTS book_author (
            book_id BIGINT NOT NULL REFERENCES book(book_id) ON DELETE CASCADE,
            author_id BIGINT NOT NULL REFERENCES author(author_id) ON DELETE CASCADE,
            PRIMARY KEY (book_id, author_id)
        )`,
		`CREATE TABLE IF NOT EXISTS book_category (
            book_id BIGINT NOT NULL REFERENCES book(book_id) ON DELETE CASCADE,
            category_id BIGINT NOT NULL REFERENCES category(category_id) ON DELETE CASCADE,
            PRIMARY KEY (book_id, category_id)
        )`,
		`CREATE TABLE IF NOT EXISTS book_copy (
            copy_id {{id}},
            book_id BIGINT NOT NULL REFERENCES book(book_id) ON DELETE CASCADE,
            barcode TEXT NOT NULL UNIQUE,
            status TEXT NOT NULL DEFAULT 'available',
            acquired_on TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS member (
            member_id {{id}},
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            phone TEXT,
            status TEXT NOT NULL DEFAULT 'active',
            join_date TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS "user" (
            user_id {{id}},
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS librarian (
            employee_id {{id}},
            user_id BIGINT NOT NULL UNIQUE REFERENCES "user"(user_id) ON DELETE CASCADE
        )`,
		`CREATE TABLE IF NOT EXISTS loan (
            loan_id {{id}},
            member_id BIGINT NOT NULL,
            copy_id BIGINT NOT NULL,
            librarian_id BIGINT NOT NULL,
            issue_date TEXT NOT NULL,
            due_date TEXT NOT NULL,
            return_date TEXT,
            status TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS reservation (
            reservation_id {{id}},
            member_id BIGINT NOT NULL REFERENCES member(member_id) ON DELETE CASCADE,
            book_id BIGINT NOT NULL REFERENCES book(book_id) ON DELETE CASCADE,
            created_at TEXT NOT NULL,
            expires_at TEXT NOT NULL,
            active BOOLEAN NOT NULL DEFAULT {{true}}
        )`,
	}},
	{version: 2, stmts: []string{
		`CREATE INDEX IF NOT EXISTS idx_copy_book_status ON book_copy(book_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_loan_copy_status ON loan(copy_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_loan_member_status ON loan(member_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_loan_status_due ON loan(status, due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_member ON reservation(member_id, active)`,
	}},
}

func schemaVersion() int { return migrations[len(migrations)-1].version }

func ddlReplacer(driver string) *strings.Replacer {
	if driver == DriverPostgres {
		return strings.NewReplacer(
			"{{id}}", "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
			"{{true}}", "TRUE",
		)
	}
	return strings.NewReplacer(
		"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{true}}", "1",
	)
}

func applyMigrations(ctx context.Context, db *sqlx.DB, driver string) error {
	if driver == DriverSQLite {
		// WAL lets readers proceed while an issue or return holds the write lock.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("create meta: %w", err)
	}

	var current int
	_ = db.QueryRowxContext(ctx, `SELECT value FROM meta WHERE key='schema_version'`).Scan(&current)
	if current >= schemaVersion() {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ddl := ddlReplacer(driver)
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, ddl.Replace(stmt)); err != nil {
				return fmt.Errorf("apply migration %d: %w", m.version, err)
			}
		}
	}

	upsert := tx.Rebind(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value`)
	if _, err := tx.ExecContext(ctx, upsert, fmt.Sprint(schemaVersion())); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
