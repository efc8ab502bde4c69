package chat

import "context"

// Store persists chats, messages and prompts scoped by owner identity.
// All lookups are owner-checked: asking for another user's chat behaves
// exactly like asking for a chat that does not exist.
type Store interface {
	// CreateChat inserts a new chat. The caller supplies the ID.
	CreateChat(ctx context.Context, c Chat) error
	// GetChat loads a chat owned by userID, or ErrNotFound.
	GetChat(ctx context.Context, id, userID string) (*Chat, error)
	// ListChats returns the user's chats, newest first.
	ListChats(ctx context.Context, userID string) ([]Chat, error)
	// SetTitle records a chat title. Later calls overwrite; the orchestrator
	// only ever calls it once per chat.
	SetTitle(ctx context.Context, id, title string) error

	// AppendMessage appends one message to a chat.
	AppendMessage(ctx context.Context, m Message) error
	// ListMessages returns a chat's messages in insertion order.
	ListMessages(ctx context.Context, chatID string) ([]Message, error)

	// GetPrompt loads a prompt owned by userID, or ErrPromptNotFound.
	GetPrompt(ctx context.Context, id, userID string) (*Prompt, error)

	// Close releases underlying resources.
	Close() error
}
