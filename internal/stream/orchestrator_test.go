package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/lumenchat/lumenchat/internal/chat"
	"github.com/lumenchat/lumenchat/internal/modelmeta"
	"github.com/lumenchat/lumenchat/internal/provider"
	"github.com/lumenchat/lumenchat/internal/provider/registry"
)

// fakeStore is an in-memory chat.Store.
type fakeStore struct {
	mu       sync.Mutex
	chats    map[string]chat.Chat
	messages map[string][]chat.Message
	prompts  map[string]chat.Prompt
	titles   map[string]string

	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:    make(map[string]chat.Chat),
		messages: make(map[string][]chat.Message),
		prompts:  make(map[string]chat.Prompt),
		titles:   make(map[string]string),
	}
}

func (s *fakeStore) CreateChat(ctx context.Context, c chat.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[c.ID] = c
	return nil
}

func (s *fakeStore) GetChat(ctx context.Context, id, userID string) (*chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok || c.UserID != userID {
		return nil, chat.ErrNotFound
	}
	return &c, nil
}

func (s *fakeStore) ListChats(ctx context.Context, userID string) ([]chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Chat
	for _, c := range s.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) SetTitle(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[id] = title
	return nil
}

func (s *fakeStore) AppendMessage(ctx context.Context, m chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.messages[m.ChatID] = append(s.messages[m.ChatID], m)
	return nil
}

func (s *fakeStore) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.messages[chatID]...), nil
}

func (s *fakeStore) GetPrompt(ctx context.Context, id, userID string) (*chat.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prompts[id]
	if !ok || p.UserID != userID {
		return nil, chat.ErrPromptNotFound
	}
	return &p, nil
}

func (s *fakeStore) Close() error { return nil }

// fakeProvider streams scripted fragments.
type fakeProvider struct {
	name      string
	fragments []string
	result    provider.StreamResult
	streamErr error
	title     string
	titleErr  error

	lastReq provider.StreamRequest
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) StreamResponse(ctx context.Context, req provider.StreamRequest, onDelta func(string)) (provider.StreamResult, error) {
	p.lastReq = req
	if p.streamErr != nil {
		return provider.StreamResult{}, p.streamErr
	}
	var text strings.Builder
	for _, f := range p.fragments {
		onDelta(f)
		text.WriteString(f)
	}
	res := p.result
	res.Text = text.String()
	return res, nil
}

func (p *fakeProvider) GenerateTitle(ctx context.Context, userText, assistantText string) (string, error) {
	if p.titleErr != nil {
		return "", p.titleErr
	}
	return p.title, nil
}

// fakeUploader records uploads and hands back fixed keys.
type fakeUploader struct {
	key string
	err error
}

func (u *fakeUploader) Upload(ctx context.Context, payload string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	return u.key, nil
}

func newTestOrchestrator(t *testing.T, store chat.Store, p provider.Provider, files *fakeUploader) *Orchestrator {
	t.Helper()
	reg, err := registry.New(p)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	if files == nil {
		files = &fakeUploader{key: "generated.png"}
	}
	return New(store, reg, modelmeta.NewStore(), files, "https://cdn.example.com", nil)
}

func collect(t *testing.T, turn *Turn) []Event {
	t.Helper()
	ch := make(chan Event, 16)
	go turn.Run(context.Background(), ch)
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestRunStreamsDeltasInOrderAndPersists(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{
		name:      "openai",
		fragments: []string{"Hello ", "there!"},
		result:    provider.StreamResult{InputTokens: 10, OutputTokens: 20},
		title:     "Greeting",
	}
	orch := newTestOrchestrator(t, store, p, nil)

	turn, err := orch.Prepare(context.Background(), Request{
		UserID:      "u1",
		Text:        "Hello AI",
		Model:       "gpt-4",
		MaxTokens:   1000,
		Temperature: 0.7,
		Provider:    "openai",
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	events := collect(t, turn)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %#v", len(events), events)
	}
	for i, want := range []string{"Hello ", "there!"} {
		d, ok := events[i].(Delta)
		if !ok {
			t.Fatalf("event %d = %#v, want Delta", i, events[i])
		}
		if d.Text != want {
			t.Errorf("delta %d = %q, want %q", i, d.Text, want)
		}
	}
	done, ok := events[2].(Done)
	if !ok {
		t.Fatalf("terminal event = %#v, want Done", events[2])
	}
	if done.ChatID != turn.ChatID() {
		t.Errorf("done chat id = %q, want %q", done.ChatID, turn.ChatID())
	}
	if done.InputTokens != 10 || done.OutputTokens != 20 {
		t.Errorf("done tokens = %d/%d, want 10/20", done.InputTokens, done.OutputTokens)
	}
	if done.Title != "Greeting" {
		t.Errorf("done title = %q, want Greeting", done.Title)
	}
	if done.ImageURL != "" {
		t.Errorf("done image url = %q, want empty", done.ImageURL)
	}

	msgs := store.messages[turn.ChatID()]
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser || msgs[0].Content != "Hello AI" || msgs[0].InputTokens != 10 {
		t.Errorf("user message = %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleAssistant || msgs[1].Content != "Hello there!" || msgs[1].OutputTokens != 20 {
		t.Errorf("assistant message = %+v", msgs[1])
	}
	if store.titles[turn.ChatID()] != "Greeting" {
		t.Errorf("title = %q, want Greeting", store.titles[turn.ChatID()])
	}
}

func TestRunExistingChatSkipsTitle(t *testing.T) {
	store := newFakeStore()
	store.chats["c1"] = chat.Chat{ID: "c1", UserID: "u1", Model: "gpt-4"}
	store.messages["c1"] = []chat.Message{
		{ChatID: "c1", Role: chat.RoleUser, Content: "earlier"},
		{ChatID: "c1", Role: chat.RoleAssistant, Content: "reply"},
	}
	p := &fakeProvider{name: "openai", fragments: []string{"again"}, title: "should not be used"}
	orch := newTestOrchestrator(t, store, p, nil)

	turn, err := orch.Prepare(context.Background(), Request{
		UserID: "u1", ChatID: "c1", Text: "more", Provider: "openai",
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	events := collect(t, turn)
	done, ok := events[len(events)-1].(Done)
	if !ok {
		t.Fatalf("terminal = %#v, want Done", events[len(events)-1])
	}
	if done.Title != "" {
		t.Errorf("existing chat got title %q, want none", done.Title)
	}
	if _, set := store.titles["c1"]; set {
		t.Error("existing chat title was mutated")
	}
	if len(p.lastReq.History) != 2 {
		t.Errorf("adapter saw %d history messages, want 2", len(p.lastReq.History))
	}
}

func TestRunAdapterFailurePersistsNothing(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{name: "openai", streamErr: errors.New("vendor exploded")}
	orch := newTestOrchestrator(t, store, p, nil)

	turn, err := orch.Prepare(context.Background(), Request{
		UserID: "u1", Text: "hi", Model: "gpt-4", Provider: "openai",
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	events := collect(t, turn)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 Failure: %#v", len(events), events)
	}
	fail, ok := events[0].(Failure)
	if !ok {
		t.Fatalf("event = %#v, want Failure", events[0])
	}
	if !strings.Contains(fail.Err.Error(), "vendor exploded") {
		t.Errorf("failure error = %v", fail.Err)
	}
	if n := len(store.messages[turn.ChatID()]); n != 0 {
		t.Errorf("persisted %d messages after failure, want 0", n)
	}
}

func TestRunTitleFailurePropagates(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{name: "openai", fragments: []string{"x"}, titleErr: errors.New("title down")}
	orch := newTestOrchestrator(t, store, p, nil)

	turn, err := orch.Prepare(context.Background(), Request{
		UserID: "u1", Text: "hi", Model: "gpt-4", Provider: "openai",
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	events := collect(t, turn)
	if _, ok := events[len(events)-1].(Failure); !ok {
		t.Fatalf("terminal = %#v, want Failure", events[len(events)-1])
	}
}

func TestRunImageGeneration(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{
		name:      "openai",
		fragments: []string{"here is your image"},
		result:    provider.StreamResult{InputTokens: 5, OutputTokens: 1100, ImageBase64: "aGVsbG8="},
		title:     "Image chat",
	}
	files := &fakeUploader{key: "abc123.png"}
	orch := newTestOrchestrator(t, store, p, files)

	turn, err := orch.Prepare(context.Background(), Request{
		UserID: "u1", Text: "draw a cat", Model: "gpt-4", Provider: "openai", ImageGeneration: true,
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	events := collect(t, turn)
	done, ok := events[len(events)-1].(Done)
	if !ok {
		t.Fatalf("terminal = %#v, want Done", events[len(events)-1])
	}
	if done.ImageURL != "https://cdn.example.com/abc123.png" {
		t.Errorf("image url = %q", done.ImageURL)
	}
	msgs := store.messages[turn.ChatID()]
	if len(msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(msgs))
	}
	if msgs[1].FileKey != "abc123.png" {
		t.Errorf("assistant file key = %q, want abc123.png", msgs[1].FileKey)
	}
}

func TestRunUploadFailurePersistsNothing(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{
		name:      "openai",
		fragments: []string{"img"},
		result:    provider.StreamResult{ImageBase64: "aGVsbG8="},
	}
	files := &fakeUploader{err: errors.New("disk full")}
	orch := newTestOrchestrator(t, store, p, files)

	turn, err := orch.Prepare(context.Background(), Request{
		UserID: "u1", Text: "draw", Model: "gpt-4", Provider: "openai", ImageGeneration: true,
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	events := collect(t, turn)
	if _, ok := events[len(events)-1].(Failure); !ok {
		t.Fatalf("terminal = %#v, want Failure", events[len(events)-1])
	}
	if n := len(store.messages[turn.ChatID()]); n != 0 {
		t.Errorf("persisted %d messages after upload failure, want 0", n)
	}
}

func TestPrepareErrors(t *testing.T) {
	store := newFakeStore()
	store.chats["c1"] = chat.Chat{ID: "c1", UserID: "owner", Model: "gpt-4"}
	p := &fakeProvider{name: "openai"}
	orch := newTestOrchestrator(t, store, p, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "chat not found",
			req:     Request{UserID: "u1", ChatID: "missing", Provider: "openai"},
			wantErr: chat.ErrNotFound,
		},
		{
			name:    "chat owned by someone else",
			req:     Request{UserID: "intruder", ChatID: "c1", Provider: "openai"},
			wantErr: chat.ErrNotFound,
		},
		{
			name:    "prompt not found",
			req:     Request{UserID: "u1", PromptID: "missing", Model: "gpt-4", Provider: "openai"},
			wantErr: chat.ErrPromptNotFound,
		},
		{
			name:    "provider not registered",
			req:     Request{UserID: "u1", Text: "hi", Model: "gpt-4", Provider: "nope"},
			wantErr: registry.ErrNotFound,
		},
		{
			name:    "unknown model",
			req:     Request{UserID: "u1", Text: "hi", Model: "made-up-model", Provider: "openai"},
			wantErr: modelmeta.ErrUnknownModel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orch.Prepare(ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Prepare error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPreparePromptSeedsContext(t *testing.T) {
	store := newFakeStore()
	store.prompts["p1"] = chat.Prompt{
		ID:     "p1",
		UserID: "u1",
		Messages: []chat.PromptMessage{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "seed question"},
			{Role: "assistant", Content: "seed answer"},
		},
	}
	p := &fakeProvider{name: "openai", fragments: []string{"ok"}, title: "t"}
	orch := newTestOrchestrator(t, store, p, nil)

	turn, err := orch.Prepare(context.Background(), Request{
		UserID: "u1", PromptID: "p1", Text: "real question", Model: "gpt-4", Provider: "openai",
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	collect(t, turn)

	if p.lastReq.System != "You are terse." {
		t.Errorf("system = %q", p.lastReq.System)
	}
	if len(p.lastReq.History) != 2 {
		t.Fatalf("history len = %d, want 2 seed messages", len(p.lastReq.History))
	}
	if p.lastReq.History[0].Content != "seed question" || p.lastReq.History[1].Content != "seed answer" {
		t.Errorf("seed history = %+v", p.lastReq.History)
	}

	created := store.chats[turn.ChatID()]
	if created.PromptID != "p1" {
		t.Errorf("created chat prompt id = %q, want p1", created.PromptID)
	}
}
