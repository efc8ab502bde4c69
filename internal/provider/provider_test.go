package provider

import (
	"strings"
	"testing"
)

func TestIsImageKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"photo.png", true},
		{"photo.jpg", true},
		{"photo.jpeg", true},
		{"photo.PNG", false},
		{"photo.JPG", false},
		{"photo.gif", false},
		{"notes.pdf", false},
		{"archive.png.zip", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsImageKey(tt.key); got != tt.want {
			t.Errorf("IsImageKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestTruncateForTitle(t *testing.T) {
	short := "a short answer"
	if got := TruncateForTitle(short); got != short {
		t.Errorf("short input changed: %q", got)
	}

	long := strings.Repeat("x", TitleContextLimit+100)
	got := TruncateForTitle(long)
	if len(got) != TitleContextLimit {
		t.Errorf("len = %d, want %d", len(got), TitleContextLimit)
	}

	exact := strings.Repeat("x", TitleContextLimit)
	if got := TruncateForTitle(exact); got != exact {
		t.Error("input at the limit should pass through unchanged")
	}
}

func TestFileURL(t *testing.T) {
	tests := []struct {
		base string
		key  string
		want string
	}{
		{"https://cdn.example.com", "abc.png", "https://cdn.example.com/abc.png"},
		{"https://cdn.example.com/", "abc.png", "https://cdn.example.com/abc.png"},
		{"http://localhost:8080/files", "abc.png", "http://localhost:8080/files/abc.png"},
	}
	for _, tt := range tests {
		if got := FileURL(tt.base, tt.key); got != tt.want {
			t.Errorf("FileURL(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}
