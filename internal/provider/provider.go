package provider

import (
	"context"
	"strings"

	"github.com/lumenchat/lumenchat/internal/chat"
)

// StreamRequest is the canonical request shape handed to an adapter for one turn.
type StreamRequest struct {
	// History is the conversation so far, in insertion order. Seed messages
	// from an attached prompt are already folded in by the orchestrator.
	History []chat.Message
	// Text is the new user message.
	Text string
	// System is the optional system prompt text.
	System string

	Model               string
	MaxTokens           int
	Temperature         float64
	SupportsTemperature bool
	Reasoning           bool
	ReasoningLevel      string

	// FileKey is an optional attached file reference for the new turn.
	FileKey string

	// Feature flags carried from the chat. Mutually exclusive.
	WebSearch       bool
	ImageGeneration bool
}

// StreamResult is what an adapter returns once the vendor stream has drained.
// Token counts default to zero when the vendor reports no usage metadata.
type StreamResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
	// ImageBase64 is the opaque generated-image payload, empty when the vendor
	// supplied none. Absence is not an error even when image generation was
	// requested.
	ImageBase64 string
}

// Provider is the capability contract every vendor adapter implements.
type Provider interface {
	// Name is the registry key for this adapter.
	Name() string
	// StreamResponse performs a single vendor call, invoking onDelta once per
	// incremental text fragment in vendor emission order, and returns the
	// accumulated text plus token counts.
	StreamResponse(ctx context.Context, req StreamRequest, onDelta func(string)) (StreamResult, error)
	// GenerateTitle asks the vendor to summarize the exchange into a short
	// title. The returned title is trimmed of surrounding whitespace.
	GenerateTitle(ctx context.Context, userText, assistantText string) (string, error)
}

// TitleContextLimit bounds how much assistant text is sent to the vendor when
// generating a title.
const TitleContextLimit = 500

// TruncateForTitle caps assistant text at TitleContextLimit characters.
func TruncateForTitle(s string) string {
	if len(s) > TitleContextLimit {
		return s[:TitleContextLimit]
	}
	return s
}

// imageExtensions is the fixed set of file-key suffixes treated as inline images.
var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// IsImageKey reports whether a file key refers to an inline-image attachment.
// The check is case-sensitive and extension-only; no content sniffing.
func IsImageKey(key string) bool {
	for _, ext := range imageExtensions {
		if strings.HasSuffix(key, ext) {
			return true
		}
	}
	return false
}

// FileURL resolves a stored file key against the public file base URL.
func FileURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + key
}
