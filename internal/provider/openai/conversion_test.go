package openai

import (
	"testing"

	"github.com/lumenchat/lumenchat/internal/chat"
	"github.com/lumenchat/lumenchat/internal/provider"
)

const testFileBase = "https://cdn.example.com"

func TestConvertHistoryCarriesAssistantImageForward(t *testing.T) {
	history := []chat.Message{
		{Role: chat.RoleUser, Content: "draw a cat"},
		{Role: chat.RoleAssistant, Content: "here you go", FileKey: "cat.png"},
		{Role: chat.RoleUser, Content: "make it bigger"},
	}
	out := convertHistory(history, testFileBase)
	if len(out) != 3 {
		t.Fatalf("got %d messages, want 3", len(out))
	}

	// The user turn after the assistant image gets that image as extra context.
	follow := out[2]
	if len(follow.Content) != 2 {
		t.Fatalf("follow-up content parts = %d, want 2", len(follow.Content))
	}
	if follow.Content[0].Type != contentInputText || follow.Content[0].Text != "make it bigger" {
		t.Errorf("follow-up text part = %+v", follow.Content[0])
	}
	if follow.Content[1].Type != contentInputImage || follow.Content[1].ImageURL != testFileBase+"/cat.png" {
		t.Errorf("follow-up image part = %+v", follow.Content[1])
	}
}

func TestConvertHistoryDoesNotCarryImageTransitively(t *testing.T) {
	history := []chat.Message{
		{Role: chat.RoleAssistant, Content: "image", FileKey: "cat.png"},
		{Role: chat.RoleUser, Content: "nice"},
		{Role: chat.RoleUser, Content: "and now?"},
	}
	out := convertHistory(history, testFileBase)
	if len(out[1].Content) != 2 {
		t.Errorf("adjacent turn parts = %d, want 2", len(out[1].Content))
	}
	if len(out[2].Content) != 1 {
		t.Errorf("later turn parts = %d, want text only", len(out[2].Content))
	}
}

func TestConvertHistoryUserAttachment(t *testing.T) {
	tests := []struct {
		name      string
		fileKey   string
		wantImage bool
	}{
		{name: "png", fileKey: "photo.png", wantImage: true},
		{name: "jpg", fileKey: "photo.jpg", wantImage: true},
		{name: "jpeg", fileKey: "photo.jpeg", wantImage: true},
		{name: "uppercase extension ignored", fileKey: "photo.PNG", wantImage: false},
		{name: "pdf ignored", fileKey: "doc.pdf", wantImage: false},
		{name: "no file", fileKey: "", wantImage: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := convertHistory([]chat.Message{
				{Role: chat.RoleUser, Content: "look", FileKey: tt.fileKey},
			}, testFileBase)
			wantParts := 1
			if tt.wantImage {
				wantParts = 2
			}
			if len(out[0].Content) != wantParts {
				t.Errorf("content parts = %d, want %d", len(out[0].Content), wantParts)
			}
		})
	}
}

func TestBuildUserTurn(t *testing.T) {
	req := provider.StreamRequest{
		History: []chat.Message{
			{Role: chat.RoleUser, Content: "draw"},
			{Role: chat.RoleAssistant, Content: "done", FileKey: "gen.png"},
		},
		Text:    "one more",
		FileKey: "ref.jpg",
	}
	turn := buildUserTurn(req, testFileBase)
	if turn.Role != chat.RoleUser {
		t.Errorf("role = %q", turn.Role)
	}
	if len(turn.Content) != 3 {
		t.Fatalf("content parts = %d, want text + own image + carried image", len(turn.Content))
	}
	if turn.Content[1].ImageURL != testFileBase+"/ref.jpg" {
		t.Errorf("own attachment = %+v", turn.Content[1])
	}
	if turn.Content[2].ImageURL != testFileBase+"/gen.png" {
		t.Errorf("carried image = %+v", turn.Content[2])
	}
}
