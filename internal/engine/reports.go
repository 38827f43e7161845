package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/voxreport/voxreport/internal/errors"
	"github.com/voxreport/voxreport/internal/models"
	"github.com/voxreport/voxreport/internal/storage"
)

// ValidateDraft promotes a ready draft into a validated report. The draft
// disappears, a fresh-id report takes its place (optionally filed into a
// folder), a PDF is rendered, and on the free tier the monthly counter is
// bumped. Remote propagation is two independent pushes: report insert and
// draft delete; partial success is reconciled by the next pull.
func (e *Engine) ValidateDraft(ctx context.Context, draftID, folderID string) (models.Report, error) {
	user, err := e.session.CurrentUser()
	if err != nil {
		return models.Report{}, err
	}

	draft, err := e.Draft(draftID)
	if err != nil {
		return models.Report{}, err
	}

	if draft.Status != models.DraftReady || draft.GeneratedReport == "" {
		return models.Report{}, apperrors.ErrDraftNotReady
	}

	// Folder existence is checked before the PDF is rendered and
	// uploaded, so a refused validation leaves no orphaned object in the
	// bucket. The mutate below re-checks under the lock.
	if folderID != "" {
		if _, err := e.Folder(folderID); err != nil {
			return models.Report{}, err
		}
	}

	now := time.Now().UTC()

	report := models.Report{
		ID:          "report_" + uuid.NewString(),
		Title:       draft.Title,
		Content:     draft.GeneratedReport,
		ValidatedAt: now,
		CreatedAt:   now,
		FolderID:    folderID,
		Status:      models.ReportStatusValidated,
		SourceType:  draft.SourceType,
		SourceInfo:  draft.SourceInfo,
		IsModified:  draft.IsModified,
		SharedWith:  []string{},
	}

	report.PDFURL, report.PDFData = e.renderPDF(ctx, user.ID, report.Title, report.Content)
	report.HasPDF = true
	report.PDFGenerated = true

	err = e.mutate(func(snap *snapshot) error {
		if folderID != "" && findFolder(snap, folderID) == nil {
			return apperrors.ErrFolderNotFound
		}

		kept := snap.Drafts[:0:0]

		for _, d := range snap.Drafts {
			if d.ID != draftID {
				kept = append(kept, d)
			}
		}

		if len(kept) == len(snap.Drafts) {
			return apperrors.ErrDraftNotFound
		}

		snap.Drafts = kept
		snap.Reports = append([]models.Report{report}, snap.Reports...)

		return nil
	})
	if err != nil {
		return models.Report{}, err
	}

	e.push("report validation", func(ctx context.Context) error {
		return e.gateway.InsertReport(ctx, user.ID, report)
	})
	e.push("draft cleanup", func(ctx context.Context) error {
		return e.gateway.DeleteDraft(ctx, draftID)
	})

	if !user.IsPro() {
		if _, err := e.session.IncrementMonthlyReports(ctx); err != nil {
			e.logger.Warn("monthly counter increment failed", "error", err)
		}
	}

	e.logger.Info("draft validated", "draft_id", draftID, "report_id", report.ID)

	return report, nil
}

// renderPDF produces the export artifacts for a report: a signed object
// URL when uploads are configured and reachable, otherwise an inline
// data URI. It never fails; the worst case is a bigger snapshot.
func (e *Engine) renderPDF(ctx context.Context, userID, title, content string) (pdfURL, pdfData string) {
	data := e.pdf(title, content)

	if e.store != nil {
		key := storage.ObjectKey(userID, title, time.Now())

		url, err := e.store.Upload(ctx, key, data)
		if err == nil {
			return url, ""
		}

		e.logger.Warn("pdf upload failed, keeping inline copy", "key", key, "error", err)
	}

	return "", "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data)
}

// Report looks a report up by id.
func (e *Engine) Report(reportID string) (models.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.snap.Reports {
		if r.ID == reportID {
			return r, nil
		}
	}

	return models.Report{}, apperrors.ErrReportNotFound
}

// Reports returns the reports, newest first. A report whose folder no
// longer exists reads as unfiled.
func (e *Engine) Reports() []models.Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := append([]models.Report(nil), e.snap.Reports...)

	for i := range out {
		if out[i].FolderID != "" && findFolder(&e.snap, out[i].FolderID) == nil {
			out[i].FolderID = ""
		}
	}

	return out
}

// SearchReports returns reports whose title or content contains the
// query, case-insensitively.
func (e *Engine) SearchReports(query string) []models.Report {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return e.Reports()
	}

	var out []models.Report

	for _, r := range e.Reports() {
		if strings.Contains(strings.ToLower(r.Title), q) || strings.Contains(strings.ToLower(r.Content), q) {
			out = append(out, r)
		}
	}

	return out
}

// MoveReport files a report into a folder, or unfiles it when folderID
// is empty.
func (e *Engine) MoveReport(ctx context.Context, reportID, folderID string) error {
	userID, err := e.userID()
	if err != nil {
		return err
	}

	var updated models.Report

	err = e.mutate(func(snap *snapshot) error {
		if folderID != "" && findFolder(snap, folderID) == nil {
			return apperrors.ErrFolderNotFound
		}

		r := findReport(snap, reportID)
		if r == nil {
			return apperrors.ErrReportNotFound
		}

		r.FolderID = folderID
		updated = *r

		return nil
	})
	if err != nil {
		return err
	}

	e.push("report move", func(ctx context.Context) error {
		return e.gateway.UpdateReport(ctx, userID, updated)
	})

	return nil
}

// DeleteReport removes a report locally, remotely, and (best-effort) its
// stored PDF object.
func (e *Engine) DeleteReport(ctx context.Context, reportID string) error {
	if _, err := e.userID(); err != nil {
		return err
	}

	var removed models.Report

	err := e.mutate(func(snap *snapshot) error {
		kept := snap.Reports[:0:0]
		found := false

		for _, r := range snap.Reports {
			if r.ID == reportID {
				removed = r
				found = true

				continue
			}

			kept = append(kept, r)
		}

		if !found {
			return apperrors.ErrReportNotFound
		}

		snap.Reports = kept

		return nil
	})
	if err != nil {
		return err
	}

	e.push("report deletion", func(ctx context.Context) error {
		if e.store != nil && removed.PDFURL != "" {
			e.store.Remove(ctx, removed.PDFURL)
		}

		return e.gateway.DeleteReport(ctx, reportID)
	})

	return nil
}

// ExportPDF hands back what the UI needs to offer a download: a signed
// URL when one exists, otherwise raw PDF bytes. Reports that predate the
// export pipeline get a PDF rendered on the fly and kept.
func (e *Engine) ExportPDF(ctx context.Context, reportID string) (url string, data []byte, err error) {
	user, err := e.session.CurrentUser()
	if err != nil {
		return "", nil, err
	}

	report, err := e.Report(reportID)
	if err != nil {
		return "", nil, err
	}

	if report.PDFURL != "" {
		return report.PDFURL, nil, nil
	}

	if report.PDFData != "" {
		decoded, decErr := decodeDataURI(report.PDFData)
		if decErr == nil {
			return "", decoded, nil
		}

		e.logger.Warn("stored pdf data unreadable, regenerating", "report_id", reportID, "error", decErr)
	}

	pdfURL, pdfData := e.renderPDF(ctx, user.ID, report.Title, report.Content)

	var updated models.Report

	err = e.mutate(func(snap *snapshot) error {
		r := findReport(snap, reportID)
		if r == nil {
			return apperrors.ErrReportNotFound
		}

		r.PDFURL = pdfURL
		r.PDFData = pdfData
		r.HasPDF = true
		r.PDFGenerated = true
		updated = *r

		return nil
	})
	if err != nil {
		return "", nil, err
	}

	e.push("report update", func(ctx context.Context) error {
		return e.gateway.UpdateReport(ctx, user.ID, updated)
	})

	if pdfURL != "" {
		return pdfURL, nil, nil
	}

	decoded, decErr := decodeDataURI(pdfData)
	if decErr != nil {
		return "", nil, decErr
	}

	return "", decoded, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, errors.New("malformed pdf data URI")
	}

	return base64.StdEncoding.DecodeString(payload)
}

func findReport(snap *snapshot, reportID string) *models.Report {
	for i := range snap.Reports {
		if snap.Reports[i].ID == reportID {
			return &snap.Reports[i]
		}
	}

	return nil
}
