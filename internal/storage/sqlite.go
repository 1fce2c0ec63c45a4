package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/matsen/papersim/internal/reference"
	_ "modernc.org/sqlite"
)

// Errors returned by storage operations.
var (
	ErrPaperNotFound = errors.New("paper not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user with this email already exists")
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// selectPaperFields contains the standard field list for paper SELECT queries.
const selectPaperFields = `id, title, url, abstract, authors`

// maxIDsPerQuery keeps IN (...) lists under SQLite's host parameter limit.
const maxIDsPerQuery = 500

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes; one connection also
	// serializes the interest read-modify-write transactions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		-- Corpus. rowid preserves insertion order, which is the corpus order
		-- used for deterministic tie-breaking in search.
		CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL,
			interests TEXT NOT NULL DEFAULT ''
		);
	`

	_, err := db.Exec(schema)
	return err
}

// AddPaper inserts a paper, or replaces it if the ID already exists.
// A replaced paper keeps its original position in corpus order.
func (d *DB) AddPaper(ctx context.Context, p reference.Paper) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO papers (id, title, url, abstract, authors)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			abstract = excluded.abstract,
			authors = excluded.authors
	`, p.ID, p.Title, p.URL, p.Abstract, p.Authors)
	if err != nil {
		return fmt.Errorf("inserting paper %s: %w", p.ID, err)
	}
	return nil
}

// AddPapers inserts papers in a single transaction. Returns the number written.
func (d *DB) AddPapers(ctx context.Context, papers []reference.Paper) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO papers (id, title, url, abstract, authors)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			abstract = excluded.abstract,
			authors = excluded.authors
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing paper insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range papers {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Title, p.URL, p.Abstract, p.Authors); err != nil {
			return 0, fmt.Errorf("inserting paper %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing papers: %w", err)
	}
	return len(papers), nil
}

// GetPaper retrieves a paper by its ID.
// Returns ErrPaperNotFound if no such paper exists.
func (d *DB) GetPaper(ctx context.Context, id string) (*reference.Paper, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+selectPaperFields+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// ListPapers returns all papers in corpus (insertion) order.
func (d *DB) ListPapers(ctx context.Context) ([]reference.Paper, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+selectPaperFields+` FROM papers ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// PapersByIDs returns the papers whose IDs are in ids, in corpus order.
// Unknown IDs are ignored.
func (d *DB) PapersByIDs(ctx context.Context, ids []string) ([]reference.Paper, error) {
	var papers []reference.Paper
	for start := 0; start < len(ids); start += maxIDsPerQuery {
		end := min(start+maxIDsPerQuery, len(ids))
		batch := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := d.db.QueryContext(ctx,
			`SELECT `+selectPaperFields+` FROM papers WHERE id IN (`+placeholders+`) ORDER BY rowid`,
			args...)
		if err != nil {
			return nil, fmt.Errorf("querying papers by id: %w", err)
		}
		got, err := scanPapers(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		papers = append(papers, got...)
	}
	return papers, nil
}

// PapersByAuthor returns papers whose author text contains author,
// case-insensitively, in corpus order.
func (d *DB) PapersByAuthor(ctx context.Context, author string) ([]reference.Paper, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+selectPaperFields+`
		FROM papers
		WHERE instr(lower(authors), lower(?)) > 0
		ORDER BY rowid
	`, author)
	if err != nil {
		return nil, fmt.Errorf("querying papers by author: %w", err)
	}
	defer rows.Close()

	return scanPapers(rows)
}

// CountPapers returns the total number of papers.
func (d *DB) CountPapers(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM papers").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPaper(s scanner) (*reference.Paper, error) {
	var p reference.Paper
	if err := s.Scan(&p.ID, &p.Title, &p.URL, &p.Abstract, &p.Authors); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPapers(rows *sql.Rows) ([]reference.Paper, error) {
	var papers []reference.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}
