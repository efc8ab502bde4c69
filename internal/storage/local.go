package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local implements Store on a local directory. A CDN or the file-serving
// route fronts this directory to make keys publicly resolvable.
type Local struct {
	dir string
}

var _ Store = (*Local)(nil)

// NewLocal creates the storage directory if needed and returns a Local store.
func NewLocal(dir string) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Upload decodes the payload and writes it under a fresh uuid key. Generated
// images arrive as PNG, so keys carry the .png extension.
func (l *Local) Upload(ctx context.Context, base64Payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := base64.StdEncoding.DecodeString(base64Payload)
	if err != nil {
		return "", fmt.Errorf("storage: decode payload: %w", err)
	}
	key := uuid.NewString() + ".png"
	if err := os.WriteFile(filepath.Join(l.dir, key), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return key, nil
}

// Dir returns the backing directory, for the file-serving route.
func (l *Local) Dir() string { return l.dir }
