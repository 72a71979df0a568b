package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist or the
// caller does not own it.
var ErrNotFound = errors.New("not found")

type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

// Chat operations

type Chat struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
}

type Message struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// UpsertChat creates the chat on first use and refreshes its title on
// later turns. The chat id comes from the client.
func (s *Store) UpsertChat(ctx context.Context, id, userID, title string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO chats (id, user_id, title) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`, id, userID, title)
	return err
}

func (s *Store) GetChat(ctx context.Context, id string) (Chat, error) {
	var c Chat
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at FROM chats WHERE id=$1`, id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	return c, err
}

func (s *Store) ListChats(ctx context.Context, userID string) ([]Chat, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, title, created_at FROM chats WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChat removes a chat and its messages, but only for its owner.
func (s *Store) DeleteChat(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM chats WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Message operations

func (s *Store) AppendMessage(ctx context.Context, chatID, role, content string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO messages (chat_id, role, content) VALUES ($1,$2,$3) RETURNING id`,
		chatID, role, content).Scan(&id)
	return id, err
}

func (s *Store) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id=$1 ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
