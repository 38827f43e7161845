package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/voxreport/voxreport/internal/errors"
	"github.com/voxreport/voxreport/internal/models"
)

func TestCreateFolder_RequiresPro(t *testing.T) {
	h := newHarness(t, models.PlanFree)

	_, err := h.engine.CreateFolder(context.Background(), "Clients")
	assert.ErrorIs(t, err, apperrors.ErrProRequired)
	assert.Empty(t, h.engine.Folders())
}

func TestCreateFolder(t *testing.T) {
	h := newHarness(t, models.PlanPro)

	folder, err := h.engine.CreateFolder(context.Background(), "  Clients  ")
	require.NoError(t, err)

	assert.Equal(t, "Clients", folder.Name)
	assert.Contains(t, folderPalette, folder.Color)

	h.flush()

	h.gateway.mu.Lock()
	defer h.gateway.mu.Unlock()
	require.Len(t, h.gateway.insertedFolders, 1)
}

func TestCreateFolder_Validation(t *testing.T) {
	h := newHarness(t, models.PlanPro)

	_, err := h.engine.CreateFolder(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrEmptyFolderName)

	_, err = h.engine.CreateFolder(context.Background(), "Chantiers")
	require.NoError(t, err)

	_, err = h.engine.CreateFolder(context.Background(), "CHANTIERS")
	assert.ErrorIs(t, err, apperrors.ErrFolderExists)

	assert.Len(t, h.engine.Folders(), 1)
}

func TestRenameFolder(t *testing.T) {
	h := newHarness(t, models.PlanPro)

	a, err := h.engine.CreateFolder(context.Background(), "Alpha")
	require.NoError(t, err)

	_, err = h.engine.CreateFolder(context.Background(), "Beta")
	require.NoError(t, err)

	// Renaming onto another folder's name is refused, onto itself is not.
	_, err = h.engine.RenameFolder(context.Background(), a.ID, "beta")
	assert.ErrorIs(t, err, apperrors.ErrFolderExists)

	renamed, err := h.engine.RenameFolder(context.Background(), a.ID, "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, "ALPHA", renamed.Name)
}

func TestDeleteFolder_CascadeUnfilesReports(t *testing.T) {
	h := newHarness(t, models.PlanPro)

	folder, err := h.engine.CreateFolder(context.Background(), "Chantiers")
	require.NoError(t, err)

	d := readyDraft(t, h, "Filed report")
	report, err := h.engine.ValidateDraft(context.Background(), d.ID, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, folder.ID, report.FolderID)

	require.NoError(t, h.engine.DeleteFolder(context.Background(), folder.ID))

	assert.Empty(t, h.engine.Folders())

	reports := h.engine.Reports()
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].FolderID, "report survives unfiled")

	h.flush()

	h.gateway.mu.Lock()
	defer h.gateway.mu.Unlock()
	assert.Equal(t, []string{folder.ID}, h.gateway.clearedFolders)
	assert.Equal(t, []string{folder.ID}, h.gateway.deletedFolders)
}

func TestDeleteFolder_Unknown(t *testing.T) {
	h := newHarness(t, models.PlanPro)

	err := h.engine.DeleteFolder(context.Background(), "folder_ghost")
	assert.ErrorIs(t, err, apperrors.ErrFolderNotFound)
}

func TestMoveReport(t *testing.T) {
	h := newHarness(t, models.PlanPro)

	folder, err := h.engine.CreateFolder(context.Background(), "Clients")
	require.NoError(t, err)

	d := readyDraft(t, h, "Unfiled")
	report, err := h.engine.ValidateDraft(context.Background(), d.ID, "")
	require.NoError(t, err)

	require.NoError(t, h.engine.MoveReport(context.Background(), report.ID, folder.ID))

	filed := h.engine.FolderReports(folder.ID)
	require.Len(t, filed, 1)
	assert.Equal(t, report.ID, filed[0].ID)

	// Moving to "" unfiles.
	require.NoError(t, h.engine.MoveReport(context.Background(), report.ID, ""))
	assert.Empty(t, h.engine.FolderReports(folder.ID))
}

func TestMoveReport_UnknownFolder(t *testing.T) {
	h := newHarness(t, models.PlanPro)

	d := readyDraft(t, h, "Homeless")
	report, err := h.engine.ValidateDraft(context.Background(), d.ID, "")
	require.NoError(t, err)

	err = h.engine.MoveReport(context.Background(), report.ID, "folder_ghost")
	assert.ErrorIs(t, err, apperrors.ErrFolderNotFound)
}

func TestReports_DanglingFolderReadsUnfiled(t *testing.T) {
	h := newHarness(t, models.PlanPro)

	// A pull can deliver a report pointing at a folder deleted elsewhere.
	h.gateway.cols.Reports = []models.Report{
		{ID: "r1", Title: "Orphan", FolderID: "folder_gone", SharedWith: []string{}},
	}

	_, err := h.engine.Sync(context.Background())
	require.NoError(t, err)

	reports := h.engine.Reports()
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].FolderID)
}

// PRO folder lifecycle end to end: create, file, rename, cascade delete.
func TestFolderLifecycle(t *testing.T) {
	h := newHarness(t, models.PlanPro)

	folder, err := h.engine.CreateFolder(context.Background(), "Q3 Chantiers")
	require.NoError(t, err)

	d := readyDraft(t, h, "Inspection")
	report, err := h.engine.ValidateDraft(context.Background(), d.ID, folder.ID)
	require.NoError(t, err)

	renamed, err := h.engine.RenameFolder(context.Background(), folder.ID, "Q4 Chantiers")
	require.NoError(t, err)
	assert.Equal(t, folder.Color, renamed.Color, "rename keeps the color")

	require.Len(t, h.engine.FolderReports(folder.ID), 1)

	require.NoError(t, h.engine.DeleteFolder(context.Background(), folder.ID))

	got, err := h.engine.Report(report.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FolderID)
}
