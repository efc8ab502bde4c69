package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumenchat/lumenchat/internal/provider"
	"github.com/lumenchat/lumenchat/internal/version"
)

// Ensure Adapter implements the provider contract.
var _ provider.Provider = (*Adapter)(nil)

const providerName = "anthropic"

// fallbackTitle is returned when title generation fails. This adapter
// swallows title errors so a cosmetic failure never fails the whole turn.
const fallbackTitle = "New chat"

// defaultMaxTokens is used when the request carries no max-token budget;
// the Messages API requires max_tokens.
const defaultMaxTokens = 4096

// titleModel is the small model used for one-shot title generation.
const titleModel = "claude-3-5-haiku-latest"

// Adapter sends requests to the Anthropic Messages API.
type Adapter struct {
	apiKey      string
	baseURL     string
	fileBaseURL string
	version     string
	httpClient  *http.Client
}

// Config holds configuration for the Anthropic adapter.
type Config struct {
	APIKey         string
	BaseURL        string // optional, defaults to https://api.anthropic.com
	Version        string // optional, defaults to 2023-06-01
	FileBaseURL    string // public base URL for resolving stored file keys
	RequestTimeout time.Duration
}

// New creates an Adapter instance.
func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = "2023-06-01"
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Adapter{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		fileBaseURL: strings.TrimSuffix(cfg.FileBaseURL, "/"),
		version:     version,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the registry key for this adapter.
func (a *Adapter) Name() string { return providerName }

// messagesPayload is the request body for the Messages API.
type messagesPayload struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	Tools       []tool    `json:"tools,omitempty"`
}

// streamEvent is the subset of Messages API SSE events this adapter consumes.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
	Message struct {
		Usage usage `json:"usage"`
	} `json:"message,omitempty"`
	Usage usage `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamResponse performs one streaming Messages API call, forwarding text
// deltas to onDelta in emission order. Anthropic has no image-generation
// capability, so the result never carries an image payload.
func (a *Adapter) StreamResponse(ctx context.Context, req provider.StreamRequest, onDelta func(string)) (provider.StreamResult, error) {
	payload := a.buildPayload(req)
	payload.Stream = true

	body, err := json.Marshal(payload)
	if err != nil {
		return provider.StreamResult{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return provider.StreamResult{}, fmt.Errorf("anthropic: create request: %w", err)
	}
	a.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return provider.StreamResult{}, fmt.Errorf("anthropic: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return provider.StreamResult{}, a.apiError(resp)
	}

	var result provider.StreamResult
	var text strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "{}" {
			continue
		}
		var evt streamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return provider.StreamResult{}, fmt.Errorf("anthropic: parse stream event: %w", err)
		}
		switch evt.Type {
		case "content_block_delta":
			if evt.Delta.Type == "text_delta" && evt.Delta.Text != "" {
				onDelta(evt.Delta.Text)
				text.WriteString(evt.Delta.Text)
			}
		case "message_start":
			result.InputTokens = evt.Message.Usage.InputTokens
		case "message_delta":
			// Cumulative output count; the last one wins.
			if evt.Usage.OutputTokens > 0 {
				result.OutputTokens = evt.Usage.OutputTokens
			}
		case "error":
			msg := "stream error"
			if evt.Error != nil && evt.Error.Message != "" {
				msg = evt.Error.Message
			}
			return provider.StreamResult{}, fmt.Errorf("anthropic: %s", msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return provider.StreamResult{}, fmt.Errorf("anthropic: read stream: %w", err)
	}

	result.Text = text.String()
	return result, nil
}

// messagesResult is the non-streaming Messages API body, pared down to what
// title generation needs.
type messagesResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
}

// GenerateTitle asks the vendor to summarize the first exchange into a short
// chat title. Failures are swallowed and replaced by a fixed fallback so a
// title hiccup never surfaces to the user.
func (a *Adapter) GenerateTitle(ctx context.Context, userText, assistantText string) (string, error) {
	prompt := fmt.Sprintf(
		"Generate a concise title (at most six words, no quotes) for this conversation.\n\nUser: %s\n\nAssistant: %s",
		userText, provider.TruncateForTitle(assistantText))

	payload := messagesPayload{
		Model: titleModel,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: contentText, Text: prompt}},
		}},
		MaxTokens: 32,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fallbackTitle, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return fallbackTitle, nil
	}
	a.setHeaders(httpReq)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return fallbackTitle, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fallbackTitle, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fallbackTitle, nil
	}
	var out messagesResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fallbackTitle, nil
	}
	for _, block := range out.Content {
		if block.Type == contentText && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return fallbackTitle, nil
}

// buildPayload assembles the Messages API body from the canonical request.
func (a *Adapter) buildPayload(req provider.StreamRequest) messagesPayload {
	messages := convertHistory(req.History, a.fileBaseURL)
	messages = append(messages, buildUserTurn(req, a.fileBaseURL))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := messagesPayload{
		Model:     req.Model,
		Messages:  messages,
		System:    req.System,
		MaxTokens: maxTokens,
		Tools:     buildTools(req.WebSearch, req.ImageGeneration),
	}
	if req.SupportsTemperature {
		t := req.Temperature
		payload.Temperature = &t
	}
	return payload
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", a.version)
	req.Header.Set("User-Agent", version.UserAgent())
}

// apiError decodes an error response body into a descriptive error.
func (a *Adapter) apiError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Type  string `json:"type"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("anthropic: %s (type=%s)", errResp.Error.Message, errResp.Error.Type)
	}
	return fmt.Errorf("anthropic: http %d: %s", resp.StatusCode, string(respBody))
}
