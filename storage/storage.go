package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"kanban-api/domain"
)

// Fixed identities for the single-board deployment.
const (
	DefaultUserID     = "user"
	DefaultBoardID    = "board-1"
	defaultBoardTitle = "My Board"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT UNIQUE NOT NULL,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS boards (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS columns (
  id TEXT PRIMARY KEY,
  board_id TEXT NOT NULL,
  title TEXT NOT NULL,
  position INTEGER NOT NULL,
  FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cards (
  id TEXT PRIMARY KEY,
  board_id TEXT NOT NULL,
  column_id TEXT NOT NULL,
  title TEXT NOT NULL,
  details TEXT NOT NULL,
  position INTEGER NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE,
  FOREIGN KEY (column_id) REFERENCES columns(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_boards_user_id ON boards(user_id);
CREATE INDEX IF NOT EXISTS idx_columns_board_id ON columns(board_id);
CREATE INDEX IF NOT EXISTS idx_columns_board_position ON columns(board_id, position);
CREATE INDEX IF NOT EXISTS idx_cards_board_id ON cards(board_id);
CREATE INDEX IF NOT EXISTS idx_cards_column_position ON cards(column_id, position);
`

// Demo content inserted once on first start. The frontend ships the same
// initial board.
var defaultColumns = []domain.ColumnWrite{
	{ID: "col-backlog", Title: "Backlog", Position: 0},
	{ID: "col-discovery", Title: "Discovery", Position: 1},
	{ID: "col-progress", Title: "In Progress", Position: 2},
	{ID: "col-review", Title: "Review", Position: 3},
	{ID: "col-done", Title: "Done", Position: 4},
}

var defaultCards = []domain.CardWrite{
	{ID: "card-1", ColumnID: "col-backlog", Title: "Align roadmap themes", Details: "Draft quarterly themes with impact statements and metrics.", Position: 0},
	{ID: "card-2", ColumnID: "col-backlog", Title: "Gather customer signals", Details: "Review support tags, sales notes, and churn feedback.", Position: 1},
	{ID: "card-3", ColumnID: "col-discovery", Title: "Prototype analytics view", Details: "Sketch initial dashboard layout and key drill-downs.", Position: 0},
	{ID: "card-4", ColumnID: "col-progress", Title: "Refine status language", Details: "Standardize column labels and tone across the board.", Position: 0},
	{ID: "card-5", ColumnID: "col-progress", Title: "Design card layout", Details: "Add hierarchy and spacing for scanning dense lists.", Position: 1},
	{ID: "card-6", ColumnID: "col-review", Title: "QA micro-interactions", Details: "Verify hover, focus, and loading states.", Position: 0},
	{ID: "card-7", ColumnID: "col-done", Title: "Ship marketing page", Details: "Final copy approved and asset pack delivered.", Position: 0},
	{ID: "card-8", ColumnID: "col-done", Title: "Close onboarding sprint", Details: "Document release notes and share internally.", Position: 1},
}

// Storage persists the board in SQLite.
type Storage struct {
	db      *sql.DB
	boardID string
}

// New opens (creating if necessary) the SQLite database at path, applies the
// schema and seeds the demo board on first start.
func New(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single connection: the board is a single writer and this sidesteps
	// SQLITE_BUSY under concurrent replacements (and keeps :memory: tests on
	// one database).
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Storage{db: db, boardID: DefaultBoardID}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

func utcNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Storage) init() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var existing string
	err := s.db.QueryRow("SELECT id FROM users WHERE id = ?", DefaultUserID).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check seed user: %w", err)
	}

	now := utcNow()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)", DefaultUserID, DefaultUserID, now); err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO boards (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		s.boardID, DefaultUserID, defaultBoardTitle, now, now); err != nil {
		return fmt.Errorf("seed board: %w", err)
	}
	if err := insertBoard(tx, s.boardID, defaultColumns, defaultCards, nil, now); err != nil {
		return fmt.Errorf("seed board content: %w", err)
	}
	return tx.Commit()
}

// FetchBoard loads the full board: columns ordered by position, each column's
// cardIds ordered by card position, plus the card map.
func (s *Storage) FetchBoard(ctx context.Context) (domain.Board, error) {
	board := domain.Board{Columns: []domain.Column{}, Cards: map[string]domain.Card{}}

	columnRows, err := s.db.QueryContext(ctx,
		"SELECT id, title FROM columns WHERE board_id = ? ORDER BY position", s.boardID)
	if err != nil {
		return domain.Board{}, fmt.Errorf("query columns: %w", err)
	}
	defer columnRows.Close()

	columnIndex := map[string]int{}
	for columnRows.Next() {
		var column domain.Column
		if err := columnRows.Scan(&column.ID, &column.Title); err != nil {
			return domain.Board{}, fmt.Errorf("scan column: %w", err)
		}
		column.CardIDs = []string{}
		columnIndex[column.ID] = len(board.Columns)
		board.Columns = append(board.Columns, column)
	}
	if err := columnRows.Err(); err != nil {
		return domain.Board{}, fmt.Errorf("iterate columns: %w", err)
	}

	cardRows, err := s.db.QueryContext(ctx,
		"SELECT id, column_id, title, details FROM cards WHERE board_id = ? ORDER BY column_id, position", s.boardID)
	if err != nil {
		return domain.Board{}, fmt.Errorf("query cards: %w", err)
	}
	defer cardRows.Close()

	for cardRows.Next() {
		var card domain.Card
		var columnID string
		if err := cardRows.Scan(&card.ID, &columnID, &card.Title, &card.Details); err != nil {
			return domain.Board{}, fmt.Errorf("scan card: %w", err)
		}
		board.Cards[card.ID] = card
		if i, ok := columnIndex[columnID]; ok {
			board.Columns[i].CardIDs = append(board.Columns[i].CardIDs, card.ID)
		}
	}
	if err := cardRows.Err(); err != nil {
		return domain.Board{}, fmt.Errorf("iterate cards: %w", err)
	}
	return board, nil
}

// ReplaceBoard atomically swaps the entire board content in one transaction.
// Creation timestamps of surviving cards are preserved by id match.
func (s *Storage) ReplaceBoard(ctx context.Context, columns []domain.ColumnWrite, cards []domain.CardWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	createdAt := map[string]string{}
	rows, err := tx.QueryContext(ctx, "SELECT id, created_at FROM cards WHERE board_id = ?", s.boardID)
	if err != nil {
		return fmt.Errorf("snapshot created_at: %w", err)
	}
	for rows.Next() {
		var id, created string
		if err := rows.Scan(&id, &created); err != nil {
			rows.Close()
			return fmt.Errorf("scan created_at: %w", err)
		}
		createdAt[id] = created
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate created_at: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cards WHERE board_id = ?", s.boardID); err != nil {
		return fmt.Errorf("delete cards: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM columns WHERE board_id = ?", s.boardID); err != nil {
		return fmt.Errorf("delete columns: %w", err)
	}

	now := utcNow()
	if err := insertBoard(tx, s.boardID, columns, cards, createdAt, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE boards SET updated_at = ? WHERE id = ?", now, s.boardID); err != nil {
		return fmt.Errorf("touch board: %w", err)
	}
	return tx.Commit()
}

func insertBoard(tx *sql.Tx, boardID string, columns []domain.ColumnWrite, cards []domain.CardWrite, createdAt map[string]string, now string) error {
	for _, column := range columns {
		if _, err := tx.Exec("INSERT INTO columns (id, board_id, title, position) VALUES (?, ?, ?, ?)",
			column.ID, boardID, column.Title, column.Position); err != nil {
			return fmt.Errorf("insert column: %w", err)
		}
	}
	for _, card := range cards {
		created, ok := createdAt[card.ID]
		if !ok {
			created = now
		}
		if _, err := tx.Exec(
			"INSERT INTO cards (id, board_id, column_id, title, details, position, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			card.ID, boardID, card.ColumnID, card.Title, card.Details, card.Position, created, now); err != nil {
			return fmt.Errorf("insert card: %w", err)
		}
	}
	return nil
}
