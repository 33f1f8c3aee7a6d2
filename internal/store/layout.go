package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	rawFolder        = "raw"
	classifiedFolder = "classified"
	reportsFolder    = "reports"
	contextFile      = "context.md"
)

// Archive applies the persisted-state layout policy on top of a Store:
// raw submissions by date, classified submissions by date/continent/type,
// generated reports by date. Blobs are keyed by generated identifiers.
type Archive struct {
	store Store
}

func NewArchive(s Store) *Archive {
	return &Archive{store: s}
}

// ensurePath walks segments under the root, creating folders as needed, and
// returns the id of the last one.
func (a *Archive) ensurePath(ctx context.Context, segments ...string) (string, error) {
	parent := ""
	for _, seg := range segments {
		id, err := a.store.Find(ctx, seg, parent)
		if errors.Is(err, ErrNotFound) {
			id, err = a.store.CreateFolder(ctx, seg, parent)
		}
		if err != nil {
			return "", fmt.Errorf("ensure folder %s: %w", seg, err)
		}
		parent = id
	}
	return parent, nil
}

func blobName(name, ext string) string {
	if name != "" {
		return name
	}
	return uuid.NewString() + ext
}

// SaveRaw archives an original submission under raw/<day>.
func (a *Archive) SaveRaw(ctx context.Context, day string, name string, data []byte, mimeType string) (string, error) {
	folder, err := a.ensurePath(ctx, rawFolder, day)
	if err != nil {
		return "", err
	}
	return a.store.Upload(ctx, folder, blobName(name, ".txt"), data, mimeType)
}

// SaveClassified archives a classified event under
// classified/<day>/<continent>/<type>.
func (a *Archive) SaveClassified(ctx context.Context, day, continent, eventType string, data []byte) (string, error) {
	if continent == "" {
		continent = "unclassified"
	}
	if eventType == "" {
		eventType = "other"
	}
	folder, err := a.ensurePath(ctx, classifiedFolder, day, sanitize(continent), sanitize(eventType))
	if err != nil {
		return "", err
	}
	return a.store.Upload(ctx, folder, blobName("", ".json"), data, "application/json")
}

// SaveReport stores a generated report artifact under reports/<day>.
func (a *Archive) SaveReport(ctx context.Context, day, filename string, data []byte, mimeType string) (string, error) {
	folder, err := a.ensurePath(ctx, reportsFolder, day)
	if err != nil {
		return "", err
	}
	return a.store.Upload(ctx, folder, filename, data, mimeType)
}

// HistoricalContext loads the free-text context block from the store root.
// Absence is not an error; the report simply renders without the section.
func (a *Archive) HistoricalContext(ctx context.Context) (string, error) {
	id, err := a.store.Find(ctx, contextFile, "")
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return a.store.ReadText(ctx, id)
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" {
		return "other"
	}
	return s
}
