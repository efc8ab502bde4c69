package stream

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenchat/lumenchat/internal/chat"
	"github.com/lumenchat/lumenchat/internal/modelmeta"
	"github.com/lumenchat/lumenchat/internal/provider"
	"github.com/lumenchat/lumenchat/internal/provider/registry"
	"github.com/lumenchat/lumenchat/internal/storage"
)

// Request describes one streaming turn. ChatID and PromptID are mutually
// exclusive; both empty means a fresh chat with no prompt attached.
type Request struct {
	UserID   string
	ChatID   string
	PromptID string

	Text        string
	Model       string
	MaxTokens   int
	Temperature float64
	Provider    string
	FileKey     string

	WebSearch       bool
	ImageGeneration bool
}

// Orchestrator runs streaming turns end to end: resolve the chat, drive the
// provider adapter, persist the exchange, and emit Delta/Done events.
type Orchestrator struct {
	store    chat.Store
	registry *registry.Registry
	models   *modelmeta.Store
	files    storage.Store
	fileURL  string // public base URL for stored file keys
	logger   *log.Logger
}

// New wires an Orchestrator. logger may be nil.
func New(store chat.Store, reg *registry.Registry, models *modelmeta.Store, files storage.Store, fileBaseURL string, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: reg,
		models:   models,
		files:    files,
		fileURL:  strings.TrimSuffix(fileBaseURL, "/"),
		logger:   logger,
	}
}

// Turn is a prepared streaming turn: the chat is resolved or created, the
// adapter selected, and the prior context loaded. Errors past this point
// happen mid-stream and are reported through the event channel.
type Turn struct {
	orch    *Orchestrator
	req     Request
	chat    *chat.Chat
	prompt  *chat.Prompt
	history []chat.Message
	adapter provider.Provider
	caps    modelmeta.Capabilities
	newChat bool
	started time.Time
}

// Prepare runs the resolution phase. Every error it returns surfaces before
// any stream bytes are written: chat/prompt ownership, provider lookup, and
// model metadata are all settled here.
func (o *Orchestrator) Prepare(ctx context.Context, req Request) (*Turn, error) {
	t := &Turn{orch: o, req: req, started: time.Now()}

	switch {
	case req.ChatID != "":
		c, err := o.store.GetChat(ctx, req.ChatID, req.UserID)
		if err != nil {
			return nil, err
		}
		t.chat = c
		if c.PromptID != "" {
			p, err := o.store.GetPrompt(ctx, c.PromptID, req.UserID)
			if err != nil {
				return nil, err
			}
			t.prompt = p
		}
		history, err := o.store.ListMessages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		t.history = history
	default:
		if req.PromptID != "" {
			p, err := o.store.GetPrompt(ctx, req.PromptID, req.UserID)
			if err != nil {
				return nil, err
			}
			t.prompt = p
		}
		c := chat.Chat{
			ID:              uuid.NewString(),
			UserID:          req.UserID,
			Model:           req.Model,
			MaxTokens:       req.MaxTokens,
			Temperature:     req.Temperature,
			WebSearch:       req.WebSearch,
			ImageGeneration: req.ImageGeneration,
		}
		if t.prompt != nil {
			c.PromptID = t.prompt.ID
		}
		if err := o.store.CreateChat(ctx, c); err != nil {
			return nil, err
		}
		t.chat = &c
		t.newChat = true
	}

	adapter, err := o.registry.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	t.adapter = adapter

	caps, ok := o.models.Resolve(t.chat.Model)
	if !ok {
		return nil, fmt.Errorf("model %q: %w", t.chat.Model, modelmeta.ErrUnknownModel)
	}
	t.caps = caps

	return t, nil
}

// ChatID returns the id of the resolved or created chat.
func (t *Turn) ChatID() string { return t.chat.ID }

// Run drives the provider stream and persists the exchange. It sends every
// fragment as a Delta in emission order, then exactly one terminal Done or
// Failure, and closes the channel. Mid-stream errors become a Failure value;
// Run never speaks the transport's error format.
func (t *Turn) Run(ctx context.Context, ch chan<- Event) {
	defer close(ch)

	o := t.orch
	preq := t.buildProviderRequest()

	var acc strings.Builder
	var firstDelta time.Time
	onDelta := func(fragment string) {
		if firstDelta.IsZero() {
			firstDelta = time.Now()
		}
		acc.WriteString(fragment)
		select {
		case ch <- Delta{Text: fragment}:
		case <-ctx.Done():
		}
	}

	result, err := t.adapter.StreamResponse(ctx, preq, onDelta)
	if err != nil {
		t.fail(ctx, ch, fmt.Errorf("stream response: %w", err))
		return
	}

	// Upload a generated image before touching the store so a storage
	// failure leaves zero messages behind for this turn.
	var imageKey string
	if t.chat.ImageGeneration && result.ImageBase64 != "" {
		imageKey, err = o.files.Upload(ctx, result.ImageBase64)
		if err != nil {
			t.fail(ctx, ch, fmt.Errorf("upload generated image: %w", err))
			return
		}
	}

	text := acc.String()
	userMsg := chat.Message{
		ID:          uuid.NewString(),
		ChatID:      t.chat.ID,
		Role:        chat.RoleUser,
		Content:     t.req.Text,
		FileKey:     t.req.FileKey,
		InputTokens: result.InputTokens,
	}
	assistantMsg := chat.Message{
		ID:           uuid.NewString(),
		ChatID:       t.chat.ID,
		Role:         chat.RoleAssistant,
		Content:      text,
		FileKey:      imageKey,
		OutputTokens: result.OutputTokens,
	}
	if err := o.store.AppendMessage(ctx, userMsg); err != nil {
		t.fail(ctx, ch, fmt.Errorf("persist user message: %w", err))
		return
	}
	if err := o.store.AppendMessage(ctx, assistantMsg); err != nil {
		t.fail(ctx, ch, fmt.Errorf("persist assistant message: %w", err))
		return
	}

	var title string
	if t.newChat {
		title, err = t.adapter.GenerateTitle(ctx, t.req.Text, text)
		if err != nil {
			t.fail(ctx, ch, fmt.Errorf("generate title: %w", err))
			return
		}
		if err := o.store.SetTitle(ctx, t.chat.ID, title); err != nil {
			t.fail(ctx, ch, fmt.Errorf("persist title: %w", err))
			return
		}
	}

	done := Done{
		ChatID:       t.chat.ID,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		Title:        title,
	}
	if imageKey != "" {
		done.ImageURL = provider.FileURL(o.fileURL, imageKey)
	}
	select {
	case ch <- done:
	case <-ctx.Done():
	}

	if o.logger != nil {
		total := time.Since(t.started)
		var ttfb time.Duration
		if !firstDelta.IsZero() {
			ttfb = firstDelta.Sub(t.started)
		}
		o.logger.Printf("turn done chat=%s provider=%s model=%s total_ms=%d ttfb_ms=%d in=%d out=%d",
			t.chat.ID, t.adapter.Name(), t.chat.Model, total.Milliseconds(), ttfb.Milliseconds(),
			result.InputTokens, result.OutputTokens)
	}
}

// buildProviderRequest assembles the canonical adapter request: prompt seed
// messages first (system-role seeds folded into the system text), then the
// chat's prior messages, then the new turn.
func (t *Turn) buildProviderRequest() provider.StreamRequest {
	var system []string
	history := make([]chat.Message, 0, len(t.history)+4)
	if t.prompt != nil {
		for _, pm := range t.prompt.Messages {
			if pm.Role == "system" {
				system = append(system, pm.Content)
				continue
			}
			history = append(history, chat.Message{Role: pm.Role, Content: pm.Content})
		}
	}
	history = append(history, t.history...)

	return provider.StreamRequest{
		History:             history,
		Text:                t.req.Text,
		System:              strings.Join(system, "\n\n"),
		Model:               t.chat.Model,
		MaxTokens:           t.chat.MaxTokens,
		Temperature:         t.chat.Temperature,
		SupportsTemperature: t.caps.SupportsTemperature,
		Reasoning:           t.caps.IsReasoning,
		ReasoningLevel:      t.caps.ReasoningLevel,
		FileKey:             t.req.FileKey,
		WebSearch:           t.chat.WebSearch,
		ImageGeneration:     t.chat.ImageGeneration,
	}
}

func (t *Turn) fail(ctx context.Context, ch chan<- Event, err error) {
	if t.orch.logger != nil {
		t.orch.logger.Printf("turn failed chat=%s provider=%s: %v", t.chat.ID, t.adapter.Name(), err)
	}
	select {
	case ch <- Failure{Err: err}:
	case <-ctx.Done():
	}
}
