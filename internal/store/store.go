package store

import (
	"context"
	"errors"
)

// ErrNotFound reports an absent name during Find or an unknown id.
var ErrNotFound = errors.New("not found")

// Store is the narrow file-store contract the core consumes: a key-value
// blob/folder store. No core logic depends on a specific vendor's semantics
// beyond these five operations. An empty parent id means the store root.
type Store interface {
	Find(ctx context.Context, name, parentID string) (string, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, parentID, filename string, data []byte, mimeType string) (string, error)
	Move(ctx context.Context, id, newParentID, newName string) error
	ReadText(ctx context.Context, id string) (string, error)
}
