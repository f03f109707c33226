// Package sqlite persists devnet contract state in a SQLite database so the
// CLI keeps its notes between invocations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/JPrieve/web3-notes/pkg/adapters/devnet"
	"github.com/JPrieve/web3-notes/pkg/core"
)

// InMemory opens a private database that disappears on Close.
const InMemory = ":memory:"

// Store implements devnet.Store using SQLite
type Store struct {
	db *sql.DB
}

// Ensure Store implements devnet.Store
var _ devnet.Store = (*Store)(nil)

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	dsn := path
	if path != InMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	// AUTOINCREMENT keeps deleted ids from being handed out again.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			author TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			is_public INTEGER NOT NULL DEFAULT 0,
			is_pinned INTEGER NOT NULL DEFAULT 0,
			tips_received TEXT NOT NULL DEFAULT '0',
			version INTEGER NOT NULL DEFAULT 1
		);
		CREATE INDEX IF NOT EXISTS idx_notes_author ON notes(author);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, n core.Note) (uint64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notes (author, title, content, created_at, updated_at, is_public, is_pinned, tips_received, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.Author.Hex(), n.Title, n.Content, n.CreatedAt, n.UpdatedAt, n.IsPublic, n.IsPinned, tips(n), n.Version)
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	return uint64(id), nil
}

func (s *Store) Get(ctx context.Context, id uint64) (core.Note, bool, error) {
	row := s.db.QueryRowContext(ctx, selectNotes+` WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Note{}, false, nil
	}
	if err != nil {
		return core.Note{}, false, err
	}
	return n, true, nil
}

func (s *Store) Put(ctx context.Context, n core.Note) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET title = ?, content = ?, updated_at = ?, is_public = ?, is_pinned = ?, tips_received = ?, version = ?
		WHERE id = ?
	`, n.Title, n.Content, n.UpdatedAt, n.IsPublic, n.IsPinned, tips(n), n.Version, n.ID)
	if err != nil {
		return fmt.Errorf("update note %d: %w", n.ID, err)
	}
	return expectOne(res)
}

func (s *Store) Delete(ctx context.Context, id uint64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note %d: %w", id, err)
	}
	return expectOne(res)
}

func (s *Store) List(ctx context.Context) ([]core.Note, error) {
	rows, err := s.db.QueryContext(ctx, selectNotes+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []core.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

const selectNotes = `
	SELECT id, author, title, content, created_at, updated_at, is_public, is_pinned, tips_received, version
	FROM notes`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(sc scanner) (core.Note, error) {
	var (
		n      core.Note
		author string
		tipsS  string
	)
	err := sc.Scan(&n.ID, &author, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt,
		&n.IsPublic, &n.IsPinned, &tipsS, &n.Version)
	if err != nil {
		return core.Note{}, err
	}

	n.Author = common.HexToAddress(author)
	v, ok := new(big.Int).SetString(tipsS, 10)
	if !ok {
		return core.Note{}, fmt.Errorf("note %d: corrupt tips_received %q", n.ID, tipsS)
	}
	n.TipsReceived = v
	return n, nil
}

func tips(n core.Note) string {
	if n.TipsReceived == nil {
		return "0"
	}
	return n.TipsReceived.String()
}

func expectOne(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrNoteNotFound
	}
	return nil
}
