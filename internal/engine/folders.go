package engine

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/voxreport/voxreport/internal/errors"
	"github.com/voxreport/voxreport/internal/models"
)

// folderPalette is the set of colors new folders draw from.
var folderPalette = []string{
	"#2563eb", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6", "#06b6d4", "#ec4899",
}

// CreateFolder adds a folder with a random palette color. Folders are a
// paid feature; names are unique per account, case-insensitively.
func (e *Engine) CreateFolder(ctx context.Context, name string) (models.Folder, error) {
	user, err := e.session.CurrentUser()
	if err != nil {
		return models.Folder{}, err
	}

	if !user.IsPro() {
		return models.Folder{}, apperrors.ErrProRequired
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return models.Folder{}, apperrors.ErrEmptyFolderName
	}

	folder := models.Folder{
		ID:        "folder_" + uuid.NewString(),
		Name:      name,
		Color:     folderPalette[rand.Intn(len(folderPalette))],
		CreatedAt: time.Now().UTC(),
	}

	err = e.mutate(func(snap *snapshot) error {
		if folderNameTaken(snap, name, "") {
			return apperrors.ErrFolderExists
		}

		snap.Folders = append(snap.Folders, folder)

		return nil
	})
	if err != nil {
		return models.Folder{}, err
	}

	e.push("folder creation", func(ctx context.Context) error {
		return e.gateway.InsertFolder(ctx, user.ID, folder)
	})

	return folder, nil
}

// RenameFolder changes a folder's name under the same validation rules
// as creation.
func (e *Engine) RenameFolder(ctx context.Context, folderID, name string) (models.Folder, error) {
	userID, err := e.userID()
	if err != nil {
		return models.Folder{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return models.Folder{}, apperrors.ErrEmptyFolderName
	}

	var updated models.Folder

	err = e.mutate(func(snap *snapshot) error {
		f := findFolder(snap, folderID)
		if f == nil {
			return apperrors.ErrFolderNotFound
		}

		if folderNameTaken(snap, name, folderID) {
			return apperrors.ErrFolderExists
		}

		f.Name = name
		updated = *f

		return nil
	})
	if err != nil {
		return models.Folder{}, err
	}

	e.push("folder rename", func(ctx context.Context) error {
		return e.gateway.UpdateFolder(ctx, userID, updated)
	})

	return updated, nil
}

// DeleteFolder removes a folder, unfiling its reports first. The reports
// survive. Remotely the cascade is two independent calls: bulk reassign,
// then folder delete; a failure between them leaves dangling assignments
// that read as unfiled.
func (e *Engine) DeleteFolder(ctx context.Context, folderID string) error {
	userID, err := e.userID()
	if err != nil {
		return err
	}

	err = e.mutate(func(snap *snapshot) error {
		kept := snap.Folders[:0:0]
		found := false

		for _, f := range snap.Folders {
			if f.ID == folderID {
				found = true
				continue
			}

			kept = append(kept, f)
		}

		if !found {
			return apperrors.ErrFolderNotFound
		}

		// Unfile before removing so no snapshot ever holds a report
		// pointing at a folder that is already gone.
		for i := range snap.Reports {
			if snap.Reports[i].FolderID == folderID {
				snap.Reports[i].FolderID = ""
			}
		}

		snap.Folders = kept

		return nil
	})
	if err != nil {
		return err
	}

	e.push("folder deletion", func(ctx context.Context) error {
		if err := e.gateway.ClearFolderAssignments(ctx, userID, folderID); err != nil {
			e.logger.Warn("clearing folder assignments failed", "folder_id", folderID, "error", err)
		}

		return e.gateway.DeleteFolder(ctx, folderID)
	})

	return nil
}

// Folder looks a folder up by id.
func (e *Engine) Folder(folderID string) (models.Folder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if f := findFolder(&e.snap, folderID); f != nil {
		return *f, nil
	}

	return models.Folder{}, apperrors.ErrFolderNotFound
}

// Folders returns all folders.
func (e *Engine) Folders() []models.Folder {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]models.Folder(nil), e.snap.Folders...)
}

// FolderReports returns the reports filed in a folder, newest first.
func (e *Engine) FolderReports(folderID string) []models.Report {
	var out []models.Report

	for _, r := range e.Reports() {
		if r.FolderID == folderID {
			out = append(out, r)
		}
	}

	return out
}

func findFolder(snap *snapshot, folderID string) *models.Folder {
	for i := range snap.Folders {
		if snap.Folders[i].ID == folderID {
			return &snap.Folders[i]
		}
	}

	return nil
}

func folderNameTaken(snap *snapshot, name, excludeID string) bool {
	for _, f := range snap.Folders {
		if f.ID != excludeID && strings.EqualFold(f.Name, name) {
			return true
		}
	}

	return false
}
