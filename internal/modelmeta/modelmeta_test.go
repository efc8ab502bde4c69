package modelmeta

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestResolve(t *testing.T) {
	s := NewStore()

	tests := []struct {
		model  string
		wantOK bool
	}{
		{"gpt-4", true},
		{"GPT-4", true},
		{"  gpt-4  ", true},
		{"claude-sonnet-4-20250514", true},
		{"gpt-99", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, ok := s.Resolve(tt.model); ok != tt.wantOK {
			t.Errorf("Resolve(%q) ok = %v, want %v", tt.model, ok, tt.wantOK)
		}
	}

	caps, ok := s.Resolve("gpt-5")
	if !ok {
		t.Fatal("Resolve(gpt-5) not found")
	}
	if !caps.IsReasoning || caps.SupportsTemperature {
		t.Errorf("gpt-5 caps = %+v", caps)
	}
	if caps.ReasoningLevel != "medium" {
		t.Errorf("gpt-5 reasoning level = %q", caps.ReasoningLevel)
	}
}

func TestListSorted(t *testing.T) {
	s := NewStore()
	models := s.List()
	if len(models) == 0 {
		t.Fatal("List() empty")
	}
	if !sort.SliceIsSorted(models, func(i, j int) bool { return models[i].Model < models[j].Model }) {
		t.Error("List() not sorted by model id")
	}
}

func TestLoad(t *testing.T) {
	s := NewStore()
	path := filepath.Join(t.TempDir(), "models.json")
	content := `[
		{"model": "my-fine-tune", "provider": "openai", "supports_temperature": true},
		{"model": "gpt-4", "provider": "openai", "supports_temperature": false}
	]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	n, err := s.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded = %d, want 2", n)
	}

	caps, ok := s.Resolve("my-fine-tune")
	if !ok || !caps.SupportsTemperature {
		t.Errorf("my-fine-tune caps = %+v ok = %v", caps, ok)
	}

	// File entries override defaults.
	caps, ok = s.Resolve("gpt-4")
	if !ok || caps.SupportsTemperature {
		t.Errorf("overridden gpt-4 caps = %+v", caps)
	}
}

func TestLoadErrors(t *testing.T) {
	s := NewStore()
	if _, err := s.Load(""); err == nil {
		t.Error("Load(\"\") expected error")
	}
	if _, err := s.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Load(missing) expected error")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := s.Load(path); err == nil {
		t.Error("Load(bad json) expected error")
	}
}
