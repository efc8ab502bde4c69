package openai

import (
	"github.com/lumenchat/lumenchat/internal/chat"
	"github.com/lumenchat/lumenchat/internal/provider"
)

// Content part types for the Responses API.
const (
	contentInputText  = "input_text"
	contentInputImage = "input_image"
	contentOutputText = "output_text"
)

// inputMessage is one message in the Responses API input array.
type inputMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// convertHistory transforms stored messages into the vendor conversation
// structure. A user message whose file key has an image extension becomes
// inline image content; when the immediately preceding message is an
// assistant message carrying an image, that image is re-attached to the user
// turn as visual context. The carry applies to the single adjacent turn only.
func convertHistory(history []chat.Message, fileBaseURL string) []inputMessage {
	out := make([]inputMessage, 0, len(history))
	for i, m := range history {
		switch m.Role {
		case chat.RoleAssistant:
			out = append(out, inputMessage{
				Role:    chat.RoleAssistant,
				Content: []contentPart{{Type: contentOutputText, Text: m.Content}},
			})
		default:
			parts := []contentPart{{Type: contentInputText, Text: m.Content}}
			if provider.IsImageKey(m.FileKey) {
				parts = append(parts, contentPart{Type: contentInputImage, ImageURL: provider.FileURL(fileBaseURL, m.FileKey)})
			}
			if key := carriedImageKey(history, i); key != "" {
				parts = append(parts, contentPart{Type: contentInputImage, ImageURL: provider.FileURL(fileBaseURL, key)})
			}
			out = append(out, inputMessage{Role: chat.RoleUser, Content: parts})
		}
	}
	return out
}

// buildUserTurn produces the vendor structure for the new user message,
// attaching its own file and any image carried over from the last assistant
// message in history.
func buildUserTurn(req provider.StreamRequest, fileBaseURL string) inputMessage {
	parts := []contentPart{{Type: contentInputText, Text: req.Text}}
	if provider.IsImageKey(req.FileKey) {
		parts = append(parts, contentPart{Type: contentInputImage, ImageURL: provider.FileURL(fileBaseURL, req.FileKey)})
	}
	if key := carriedImageKey(req.History, len(req.History)); key != "" {
		parts = append(parts, contentPart{Type: contentInputImage, ImageURL: provider.FileURL(fileBaseURL, key)})
	}
	return inputMessage{Role: chat.RoleUser, Content: parts}
}

// carriedImageKey returns the image key of the message directly before
// position i, but only when that message is an assistant message with an
// image attachment.
func carriedImageKey(history []chat.Message, i int) string {
	if i == 0 {
		return ""
	}
	prev := history[i-1]
	if prev.Role == chat.RoleAssistant && provider.IsImageKey(prev.FileKey) {
		return prev.FileKey
	}
	return ""
}
