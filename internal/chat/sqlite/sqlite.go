package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lumenchat/lumenchat/internal/chat"
)

// Store implements chat.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ chat.Store = (*Store)(nil)

// New opens (or creates) a SQLite chat store at the supplied path.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	model TEXT NOT NULL,
	max_tokens INTEGER NOT NULL DEFAULT 0,
	temperature REAL NOT NULL DEFAULT 0,
	web_search INTEGER NOT NULL DEFAULT 0,
	image_generation INTEGER NOT NULL DEFAULT 0,
	prompt_id TEXT,
	title TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	file_key TEXT NOT NULL DEFAULT '',
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS prompts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS prompt_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt_id TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
CREATE INDEX IF NOT EXISTS idx_prompt_messages_prompt ON prompt_messages(prompt_id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateChat inserts a new chat row.
func (s *Store) CreateChat(ctx context.Context, c chat.Chat) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO chats (id, user_id, model, max_tokens, temperature, web_search, image_generation, prompt_id, title, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
		c.ID, c.UserID, c.Model, c.MaxTokens, c.Temperature,
		boolToInt(c.WebSearch), boolToInt(c.ImageGeneration), c.PromptID, c.Title, createdAt)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

// GetChat loads a chat owned by userID.
func (s *Store) GetChat(ctx context.Context, id, userID string) (*chat.Chat, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, user_id, model, max_tokens, temperature, web_search, image_generation, COALESCE(prompt_id, ''), title, created_at
FROM chats WHERE id = ? AND user_id = ?`, id, userID)
	var c chat.Chat
	var webSearch, imageGen int
	if err := row.Scan(&c.ID, &c.UserID, &c.Model, &c.MaxTokens, &c.Temperature,
		&webSearch, &imageGen, &c.PromptID, &c.Title, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chat.ErrNotFound
		}
		return nil, fmt.Errorf("query chat: %w", err)
	}
	c.WebSearch = webSearch != 0
	c.ImageGeneration = imageGen != 0
	return &c, nil
}

// ListChats returns the user's chats, newest first.
func (s *Store) ListChats(ctx context.Context, userID string) ([]chat.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, model, max_tokens, temperature, web_search, image_generation, COALESCE(prompt_id, ''), title, created_at
FROM chats WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()
	var out []chat.Chat
	for rows.Next() {
		var c chat.Chat
		var webSearch, imageGen int
		if err := rows.Scan(&c.ID, &c.UserID, &c.Model, &c.MaxTokens, &c.Temperature,
			&webSearch, &imageGen, &c.PromptID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		c.WebSearch = webSearch != 0
		c.ImageGeneration = imageGen != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetTitle records the chat title.
func (s *Store) SetTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chats SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// AppendMessage appends one message to a chat.
func (s *Store) AppendMessage(ctx context.Context, m chat.Message) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO messages (id, chat_id, role, content, file_key, input_tokens, output_tokens, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.Role, m.Content, m.FileKey, m.InputTokens, m.OutputTokens, createdAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns a chat's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, chat_id, role, content, file_key, input_tokens, output_tokens, created_at
FROM messages WHERE chat_id = ? ORDER BY created_at, rowid`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.FileKey,
			&m.InputTokens, &m.OutputTokens, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetPrompt loads a prompt and its seed messages.
func (s *Store) GetPrompt(ctx context.Context, id, userID string) (*chat.Prompt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, name FROM prompts WHERE id = ? AND user_id = ?`, id, userID)
	var p chat.Prompt
	if err := row.Scan(&p.ID, &p.UserID, &p.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, chat.ErrPromptNotFound
		}
		return nil, fmt.Errorf("query prompt: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT role, content FROM prompt_messages WHERE prompt_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query prompt messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pm chat.PromptMessage
		if err := rows.Scan(&pm.Role, &pm.Content); err != nil {
			return nil, fmt.Errorf("scan prompt message: %w", err)
		}
		p.Messages = append(p.Messages, pm)
	}
	return &p, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
