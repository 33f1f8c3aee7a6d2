package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirStore implements Store on a local directory. Blob ids are root-relative
// paths. It is the default backend and the test double for the Drive store.
type DirStore struct {
	root string
}

func NewDirStore(root string) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("dir store root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &DirStore{root: root}, nil
}

func (s *DirStore) abs(id string) (string, error) {
	clean := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(id)))
	if clean != s.root && !strings.HasPrefix(clean, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("id %q escapes store root", id)
	}
	return clean, nil
}

func (s *DirStore) Find(ctx context.Context, name, parentID string) (string, error) {
	id := name
	if parentID != "" {
		id = parentID + "/" + name
	}
	path, err := s.abs(id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat %s: %w", id, err)
	}
	return id, nil
}

func (s *DirStore) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	id := name
	if parentID != "" {
		id = parentID + "/" + name
	}
	path, err := s.abs(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", id, err)
	}
	return id, nil
}

func (s *DirStore) Upload(ctx context.Context, parentID, filename string, data []byte, mimeType string) (string, error) {
	id := filename
	if parentID != "" {
		id = parentID + "/" + filename
	}
	path, err := s.abs(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create parent of %s: %w", id, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", id, err)
	}
	return id, nil
}

func (s *DirStore) Move(ctx context.Context, id, newParentID, newName string) error {
	oldPath, err := s.abs(id)
	if err != nil {
		return err
	}
	if newName == "" {
		newName = filepath.Base(id)
	}
	newID := newName
	if newParentID != "" {
		newID = newParentID + "/" + newName
	}
	newPath, err := s.abs(newID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newPath), 0755); err != nil {
		return fmt.Errorf("create parent of %s: %w", newID, err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("move %s to %s: %w", id, newID, err)
	}
	return nil
}

func (s *DirStore) ReadText(ctx context.Context, id string) (string, error) {
	path, err := s.abs(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read %s: %w", id, err)
	}
	return string(data), nil
}
