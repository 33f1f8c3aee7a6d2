package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveStore implements Store on Google Drive. The root folder id scopes
// every operation with an empty parent.
type DriveStore struct {
	svc  *drive.Service
	root string
}

func NewDriveStore(ctx context.Context, credentialsFile, rootFolderID string) (*DriveStore, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	if rootFolderID == "" {
		rootFolderID = "root"
	}
	return &DriveStore{svc: svc, root: rootFolderID}, nil
}

func (s *DriveStore) parent(parentID string) string {
	if parentID == "" {
		return s.root
	}
	return parentID
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

func (s *DriveStore) Find(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), escapeQuery(s.parent(parentID)))
	list, err := s.svc.Files.List().
		Q(query).
		Fields("files(id)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive find %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", ErrNotFound
	}
	return list.Files[0].Id, nil
}

func (s *DriveStore) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	f, err := s.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{s.parent(parentID)},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive create folder %q: %w", name, err)
	}
	return f.Id, nil
}

func (s *DriveStore) Upload(ctx context.Context, parentID, filename string, data []byte, mimeType string) (string, error) {
	f, err := s.svc.Files.Create(&drive.File{
		Name:    filename,
		Parents: []string{s.parent(parentID)},
	}).Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive upload %q: %w", filename, err)
	}
	return f.Id, nil
}

func (s *DriveStore) Move(ctx context.Context, id, newParentID, newName string) error {
	current, err := s.svc.Files.Get(id).Fields("parents").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive get %s: %w", id, err)
	}

	call := s.svc.Files.Update(id, &drive.File{Name: newName}).
		AddParents(s.parent(newParentID)).
		Context(ctx)
	if len(current.Parents) > 0 {
		call = call.RemoveParents(strings.Join(current.Parents, ","))
	}
	if _, err := call.Do(); err != nil {
		return fmt.Errorf("drive move %s: %w", id, err)
	}
	return nil
}

func (s *DriveStore) ReadText(ctx context.Context, id string) (string, error) {
	resp, err := s.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("drive download %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("drive read %s: %w", id, err)
	}
	return string(data), nil
}
