package modelmeta

import (
	"encoding/json"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownModel is returned by callers that require metadata for a model
// the store has never heard of.
var ErrUnknownModel = errors.New("unknown model")

// Capabilities describes what the streaming core needs to know about a model.
type Capabilities struct {
	Model               string `json:"model"`
	Provider            string `json:"provider,omitempty"`
	SupportsTemperature bool   `json:"supports_temperature"`
	IsReasoning         bool   `json:"is_reasoning"`
	ReasoningLevel      string `json:"reasoning_level,omitempty"`
}

// Store holds model capability metadata with simple lookups. Safe for
// concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Capabilities
}

// NewStore returns a store seeded with built-in defaults for common models.
func NewStore() *Store {
	s := &Store{entries: make(map[string]Capabilities)}
	s.apply(defaults)
	return s
}

// defaults cover the models the two bundled adapters are normally pointed at.
var defaults = []Capabilities{
	{Model: "gpt-4", Provider: "openai", SupportsTemperature: true},
	{Model: "gpt-4o", Provider: "openai", SupportsTemperature: true},
	{Model: "gpt-4o-mini", Provider: "openai", SupportsTemperature: true},
	{Model: "gpt-4.1", Provider: "openai", SupportsTemperature: true},
	{Model: "gpt-4.1-mini", Provider: "openai", SupportsTemperature: true},
	{Model: "gpt-5", Provider: "openai", IsReasoning: true, ReasoningLevel: "medium"},
	{Model: "o3", Provider: "openai", IsReasoning: true, ReasoningLevel: "medium"},
	{Model: "o4-mini", Provider: "openai", IsReasoning: true, ReasoningLevel: "low"},
	{Model: "claude-3-5-haiku-latest", Provider: "anthropic", SupportsTemperature: true},
	{Model: "claude-sonnet-4-20250514", Provider: "anthropic", SupportsTemperature: true},
	{Model: "claude-opus-4-20250514", Provider: "anthropic", SupportsTemperature: true},
}

// Resolve returns capability metadata for a model. Lookup is trimmed and
// case-insensitive, matching how model ids arrive from clients.
func (s *Store) Resolve(model string) (Capabilities, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.entries[strings.ToLower(strings.TrimSpace(model))]
	return c, ok
}

// List returns all known models sorted by id.
func (s *Store) List() []Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Capabilities, 0, len(s.entries))
	for _, c := range s.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Load merges metadata from a JSON file (array of Capabilities) over the
// built-in defaults; returns the number of entries loaded.
func (s *Store) Load(path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("modelmeta: empty path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var entries []Capabilities
	if err := json.Unmarshal(b, &entries); err != nil {
		return 0, err
	}
	s.apply(entries)
	return len(entries), nil
}

// apply merges entries into the store, keyed by lowercased model id.
func (s *Store) apply(entries []Capabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		model := strings.ToLower(strings.TrimSpace(e.Model))
		if model == "" {
			continue
		}
		s.entries[model] = e
	}
}
