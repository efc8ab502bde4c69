package openai

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

// providerName is the registry key for this adapter.
const providerName = "openai"

// imageCapableModel is substituted when image generation is requested with a
// model that cannot drive the image_generation tool. The substitution is
// internal to the adapter; callers never see it.
const imageCapableModel = "gpt-4.1"

// Adapter sends requests to the OpenAI Responses API.
type Adapter struct {
	apiKey      string
	baseURL     string
	fileBaseURL string
	org         string
	httpClient  *http.Client
}

// Config holds configuration for the OpenAI adapter.
type Config struct {
	APIKey         string
	BaseURL        string // optional, defaults to https://api.openai.com/v1
	Organization   string // optional
	FileBaseURL    string // public base URL for resolving stored file keys
	RequestTimeout time.Duration
}

// New creates an Adapter instance.
func New(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Adapter{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		fileBaseURL: strings.TrimSuffix(cfg.FileBaseURL, "/"),
		org:         cfg.Organization,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the registry key for this adapter.
func (a *Adapter) Name() string { return providerName }

// responsesPayload is the request body for the Responses API.
type responsesPayload struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	Instructions    string         `json:"instructions,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	Stream          bool           `json:"stream,omitempty"`
	Tools           []tool         `json:"tools,omitempty"`
	Reasoning       *reasoningOpts `json:"reasoning,omitempty"`
}

type reasoningOpts struct {
	Effort string `json:"effort"`
}

// streamEvent is the subset of Responses API SSE events this adapter consumes.
type streamEvent struct {
	Type     string `json:"type"`
	Delta    string `json:"delta,omitempty"`
	Response struct {
		Status string `json:"status"`
		Usage  struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
		Output []struct {
			Type   string `json:"type"`
			Result string `json:"result,omitempty"`
		} `json:"output"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"response"`
	Message string `json:"message,omitempty"`
}

// StreamResponse performs one streaming Responses API call, forwarding text
// deltas to onDelta in emission order.
func (a *Adapter) StreamResponse(ctx context.Context, req provider.StreamRequest, onDelta func(string)) (provider.StreamResult, error) {
	payload := a.buildPayload(req)
	payload.Stream = true

	body, err := json.Marshal(payload)
	if err != nil {
		return provider.StreamResult{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return provider.StreamResult{}, fmt.Errorf("openai: create request: %w", err)
	}
	a.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return provider.StreamResult{}, fmt.Errorf("openai: send request: %w", err)
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
		if data == "" || data == "[DONE]" {
			continue
		}
		var evt streamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return provider.StreamResult{}, fmt.Errorf("openai: parse stream event: %w", err)
		}
		switch evt.Type {
		case "response.output_text.delta":
			if evt.Delta != "" {
				onDelta(evt.Delta)
				text.WriteString(evt.Delta)
			}
		case "response.completed":
			result.InputTokens = evt.Response.Usage.InputTokens
			result.OutputTokens = evt.Response.Usage.OutputTokens
			if req.ImageGeneration {
				for _, item := range evt.Response.Output {
					if item.Type == "image_generation_call" && item.Result != "" {
						result.ImageBase64 = item.Result
					}
				}
				// Vendor usage covers text tokens only. A generated image is
				// billed from the fixed table, partial previews included.
				if result.ImageBase64 != "" {
					if cost, err := ImageTokensWithPartials(defaultImageSize, defaultImageQuality, defaultPartialImages); err == nil {
						result.OutputTokens += cost
					}
				}
			}
		case "response.failed":
			msg := "response failed"
			if evt.Response.Error != nil && evt.Response.Error.Message != "" {
				msg = evt.Response.Error.Message
			}
			return provider.StreamResult{}, fmt.Errorf("openai: %s", msg)
		case "error":
			return provider.StreamResult{}, fmt.Errorf("openai: %s", evt.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return provider.StreamResult{}, fmt.Errorf("openai: read stream: %w", err)
	}

	result.Text = text.String()
	return result, nil
}

// responsesResult is the non-streaming Responses API body, pared down to what
// title generation needs.
type responsesResult struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// GenerateTitle asks the vendor to summarize the first exchange into a short
// chat title. Errors propagate to the caller; this adapter has no fallback.
func (a *Adapter) GenerateTitle(ctx context.Context, userText, assistantText string) (string, error) {
	prompt := fmt.Sprintf(
		"Generate a concise title (at most six words, no quotes) for this conversation.\n\nUser: %s\n\nAssistant: %s",
		userText, provider.TruncateForTitle(assistantText))

	payload := responsesPayload{
		Model: "gpt-4.1-mini",
		Input: []inputMessage{{
			Role:    "user",
			Content: []contentPart{{Type: contentInputText, Text: prompt}},
		}},
		MaxOutputTokens: 32,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("openai: marshal title request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: create title request: %w", err)
	}
	a.setHeaders(httpReq)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: send title request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", a.apiError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read title response: %w", err)
	}
	var out responsesResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("openai: unmarshal title response: %w", err)
	}
	for _, item := range out.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				return strings.TrimSpace(part.Text), nil
			}
		}
	}
	return "", errors.New("openai: empty title response")
}

// buildPayload assembles the Responses API body from the canonical request.
func (a *Adapter) buildPayload(req provider.StreamRequest) responsesPayload {
	model := req.Model
	reasoning := req.Reasoning
	if req.ImageGeneration && reasoning {
		// Reasoning model variants cannot drive the image_generation tool.
		// The substitute is not a reasoning model, so the effort option
		// is dropped with it.
		model = imageCapableModel
		reasoning = false
	}

	input := convertHistory(req.History, a.fileBaseURL)
	input = append(input, buildUserTurn(req, a.fileBaseURL))

	payload := responsesPayload{
		Model:           model,
		Input:           input,
		Instructions:    req.System,
		MaxOutputTokens: req.MaxTokens,
		Tools:           buildTools(req.WebSearch, req.ImageGeneration),
	}
	if req.SupportsTemperature {
		t := req.Temperature
		payload.Temperature = &t
	}
	if reasoning && req.ReasoningLevel != "" {
		payload.Reasoning = &reasoningOpts{Effort: req.ReasoningLevel}
	}
	return payload
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("User-Agent", version.UserAgent())
	if a.org != "" {
		req.Header.Set("OpenAI-Organization", a.org)
	}
}

// apiError decodes an error response body into a descriptive error.
func (a *Adapter) apiError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("openai: %s (type=%s, code=%s)", errResp.Error.Message, errResp.Error.Type, errResp.Error.Code)
	}
	return fmt.Errorf("openai: http %d: %s", resp.StatusCode, string(respBody))
}
