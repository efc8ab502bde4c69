package storage

import "context"

// Store is the object-storage capability the streaming core consumes:
// store bytes, get back a reference key.
type Store interface {
	// Upload decodes a base64 payload, persists it, and returns the file key.
	Upload(ctx context.Context, base64Payload string) (string, error)
}
