package anthropic

import (
	"github.com/lumenchat/lumenchat/internal/chat"
	"github.com/lumenchat/lumenchat/internal/provider"
)

// Content block types for the Messages API.
const (
	contentText  = "text"
	contentImage = "image"
)

// message is one entry of the Messages API messages array.
type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// convertHistory transforms stored messages into the vendor conversation
// structure. Image attachments on user messages become url-sourced image
// blocks; an image on the directly preceding assistant message is re-attached
// to the user turn as visual context for that single adjacent turn only.
func convertHistory(history []chat.Message, fileBaseURL string) []message {
	out := make([]message, 0, len(history))
	for i, m := range history {
		switch m.Role {
		case chat.RoleAssistant:
			out = append(out, message{
				Role:    chat.RoleAssistant,
				Content: []contentBlock{{Type: contentText, Text: m.Content}},
			})
		default:
			blocks := []contentBlock{{Type: contentText, Text: m.Content}}
			if provider.IsImageKey(m.FileKey) {
				blocks = append(blocks, imageBlock(fileBaseURL, m.FileKey))
			}
			if key := carriedImageKey(history, i); key != "" {
				blocks = append(blocks, imageBlock(fileBaseURL, key))
			}
			out = append(out, message{Role: chat.RoleUser, Content: blocks})
		}
	}
	return out
}

// buildUserTurn produces the vendor structure for the new user message.
func buildUserTurn(req provider.StreamRequest, fileBaseURL string) message {
	blocks := []contentBlock{{Type: contentText, Text: req.Text}}
	if provider.IsImageKey(req.FileKey) {
		blocks = append(blocks, imageBlock(fileBaseURL, req.FileKey))
	}
	if key := carriedImageKey(req.History, len(req.History)); key != "" {
		blocks = append(blocks, imageBlock(fileBaseURL, key))
	}
	return message{Role: chat.RoleUser, Content: blocks}
}

func imageBlock(baseURL, key string) contentBlock {
	return contentBlock{
		Type:   contentImage,
		Source: &imageSource{Type: "url", URL: provider.FileURL(baseURL, key)},
	}
}

// carriedImageKey returns the image key of the message directly before
// position i when that message is an assistant message with an image.
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
