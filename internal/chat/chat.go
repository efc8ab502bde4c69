package chat

import (
	"errors"
	"time"
)

// Roles a persisted message may carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned when a chat does not exist or is not owned by the caller.
	ErrNotFound = errors.New("chat not found")
	// ErrPromptNotFound is returned when a prompt does not exist or is not owned by the caller.
	ErrPromptNotFound = errors.New("prompt not found")
)

// Chat is a persisted conversation between a user and the assistant.
// The two feature flags are mutually exclusive; the boundary that mutates
// them enforces this, the streaming core only reads them.
type Chat struct {
	ID              string
	UserID          string
	Model           string
	MaxTokens       int
	Temperature     float64
	WebSearch       bool
	ImageGeneration bool
	PromptID        string // optional
	Title           string // set once, after the first successful turn
	CreatedAt       time.Time
}

// Message is one turn of a chat. Immutable once created.
type Message struct {
	ID           string
	ChatID       string
	Role         string
	Content      string
	FileKey      string // optional attached or generated file reference
	InputTokens  int    // set only on user messages
	OutputTokens int    // set only on assistant messages
	CreatedAt    time.Time
}

// Prompt is a reusable set of seed messages prepended to the provider
// context when a chat is created from it. Read-only for the streaming core.
type Prompt struct {
	ID       string
	UserID   string
	Name     string
	Messages []PromptMessage
}

// PromptMessage is one seed message of a Prompt.
type PromptMessage struct {
	Role    string
	Content string
}
