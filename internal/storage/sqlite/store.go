package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
	"github.com/tjfontaine/agent-launcher/internal/storage"
)

// Store is a SQLite implementation of TransitionStore
type Store struct {
	db *sqlx.DB
}

// transitionRow is the column layout of the transitions table.
type transitionRow struct {
	ID        string         `db:"id"`
	SessionID string         `db:"session_id"`
	From      string         `db:"from_state"`
	To        string         `db:"to_state"`
	Intent    sql.NullString `db:"intent"`
	ErrorKind sql.NullString `db:"error_kind"`
	Message   sql.NullString `db:"message"`
	RoomURL   sql.NullString `db:"room_url"`
	CreatedAt time.Time      `db:"created_at"`
}

var _ storage.TransitionStore = (*Store)(nil)

// New creates a new SQLite store. The parent directory of a file path is
// created if missing.
func New(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path required")
	}
	if !strings.HasPrefix(dbPath, "file:") && dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transitions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			intent TEXT,
			error_kind TEXT,
			message TEXT,
			room_url TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_session ON transitions(session_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_to_state ON transitions(to_state)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) AppendTransition(ctx context.Context, event *storage.TransitionEvent) error {
	if event == nil {
		return fmt.Errorf("transition event required")
	}
	if event.SessionID == "" {
		return fmt.Errorf("transition event %s has no session id", event.ID)
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	row := transitionRow{
		ID:        event.ID,
		SessionID: event.SessionID,
		From:      string(event.From),
		To:        string(event.To),
		Intent:    nullString(event.Intent),
		ErrorKind: nullString(string(event.ErrorKind)),
		Message:   nullString(event.Message),
		RoomURL:   nullString(event.RoomURL),
		CreatedAt: ts.UTC(),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO transitions (id, session_id, from_state, to_state, intent, error_kind, message, room_url, created_at)
		VALUES (:id, :session_id, :from_state, :to_state, :intent, :error_kind, :message, :room_url, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return nil
}

// ListTransitions returns a session's events in insertion order.
func (s *Store) ListTransitions(ctx context.Context, sessionID string) ([]*storage.TransitionEvent, error) {
	rows := []transitionRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, session_id, from_state, to_state, intent, error_kind, message, room_url, created_at
		FROM transitions
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}

	result := make([]*storage.TransitionEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, &storage.TransitionEvent{
			ID:        row.ID,
			SessionID: row.SessionID,
			From:      domain.State(row.From),
			To:        domain.State(row.To),
			Intent:    row.Intent.String,
			ErrorKind: domain.ErrorKind(row.ErrorKind.String),
			Message:   row.Message.String,
			RoomURL:   row.RoomURL.String,
			Timestamp: row.CreatedAt,
		})
	}

	return result, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
