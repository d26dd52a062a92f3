// Package store provides SQLite-based persistence for users, chats and their
// messages. Deleting a chat cascades to its messages.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"github.com/naviable/naviable-go/internal/conversation"
	"github.com/naviable/naviable-go/internal/logger"
)

// ErrNotFound is returned when a user or chat does not exist.
var ErrNotFound = errors.New("not found")

// DefaultTitle is shown for chats that have no title yet.
const DefaultTitle = "New Chat"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);
`

// User owns chats.
type User struct {
	ID        string
	CreatedAt time.Time
}

// Chat groups a transcript under one user.
type Chat struct {
	ID           string
	UserID       string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// DisplayTitle returns the title, or DefaultTitle when none was set.
func (c Chat) DisplayTitle() string {
	if c.Title == "" {
		return DefaultTitle
	}
	return c.Title
}

// Store is the conversation store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection serializes writers and keeps the pragmas in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	logger.L.Info("sqlite conversation store initialized", "path", path)
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser creates a user with a fresh ID.
func (s *Store) CreateUser(ctx context.Context) (User, error) {
	return s.EnsureUser(ctx, uuid.NewString())
}

// EnsureUser returns the user with id, creating it when missing.
func (s *Store) EnsureUser(ctx context.Context, id string) (User, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, created_at) VALUES (?, ?);`, id, s.now()); err != nil {
		return User{}, fmt.Errorf("ensure user %s: %w", id, err)
	}
	var u User
	err := s.db.QueryRowContext(ctx, `SELECT id, created_at FROM users WHERE id = ?;`, id).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("load user %s: %w", id, err)
	}
	return u, nil
}

// CreateChat creates an empty chat for userID.
func (s *Store) CreateChat(ctx context.Context, userID string) (Chat, error) {
	now := s.now()
	c := Chat{ID: uuid.NewString(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?);`,
		c.ID, c.UserID, c.CreatedAt, c.UpdatedAt); err != nil {
		return Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return c, nil
}

const chatColumns = `c.id, c.user_id, c.title, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.chat_id = c.id)`

func scanChat(row interface{ Scan(...any) error }) (Chat, error) {
	var c Chat
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount)
	return c, err
}

// GetChat returns the chat with id.
func (s *Store) GetChat(ctx context.Context, id string) (Chat, error) {
	c, err := scanChat(s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats c WHERE c.id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Chat{}, fmt.Errorf("get chat %s: %w", id, err)
	}
	return c, nil
}

// ListChats returns the chats of userID, most recently updated first.
func (s *Store) ListChats(ctx context.Context, userID string) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chatColumns+` FROM chats c WHERE c.user_id = ? ORDER BY c.updated_at DESC, c.rowid DESC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChat removes a chat and, by cascade, its messages.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	return requireRow(res, id)
}

// ClearMessages removes every message of a chat and resets its title.
func (s *Store) ClearMessages(ctx context.Context, chatID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.touch(ctx, tx, chatID, `title = ''`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?;`, chatID); err != nil {
			return fmt.Errorf("clear messages of %s: %w", chatID, err)
		}
		return nil
	})
}

// Append stores msgs at the end of the chat transcript in one transaction.
// Placeholder messages are skipped.
func (s *Store) Append(ctx context.Context, chatID string, msgs ...conversation.Message) error {
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.touch(ctx, tx, chatID, ""); err != nil {
			return err
		}
		for _, m := range msgs {
			if m.Placeholder {
				continue
			}
			createdAt := m.CreatedAt
			if createdAt.IsZero() {
				createdAt = s.now()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (chat_id, role, name, content, created_at) VALUES (?, ?, ?, ?, ?);`,
				chatID, string(m.Role), m.Name, m.Content, createdAt.UTC()); err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		return nil
	})
}

// Read returns the chat transcript in storage order.
func (s *Store) Read(ctx context.Context, chatID string) (conversation.Transcript, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, name, content, created_at FROM messages WHERE chat_id = ? ORDER BY id ASC;`, chatID)
	if err != nil {
		return nil, fmt.Errorf("read messages of %s: %w", chatID, err)
	}
	defer rows.Close()

	out := conversation.Transcript{}
	for rows.Next() {
		var (
			m    conversation.Message
			role string
		)
		if err := rows.Scan(&role, &m.Name, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if m.Role, err = conversation.ParseRole(role); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetTitle sets the title of a chat that has none. It reports whether the
// title was written.
func (s *Store) SetTitle(ctx context.Context, chatID, title string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE chats SET title = ? WHERE id = ? AND title = '';`, title, chatID)
	if err != nil {
		return false, fmt.Errorf("set title of %s: %w", chatID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearTitle resets a chat title so the next SetTitle applies.
func (s *Store) ClearTitle(ctx context.Context, chatID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chats SET title = '' WHERE id = ?;`, chatID)
	if err != nil {
		return fmt.Errorf("clear title of %s: %w", chatID, err)
	}
	return requireRow(res, chatID)
}

// touch bumps updated_at, applying an optional extra assignment.
func (s *Store) touch(ctx context.Context, tx *sql.Tx, chatID, extra string) error {
	query := `UPDATE chats SET updated_at = ?`
	if extra != "" {
		query += ", " + extra
	}
	res, err := tx.ExecContext(ctx, query+` WHERE id = ?;`, s.now(), chatID)
	if err != nil {
		return fmt.Errorf("touch chat %s: %w", chatID, err)
	}
	return requireRow(res, chatID)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.L.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	return nil
}
