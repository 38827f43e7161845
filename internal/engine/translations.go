package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/voxreport/voxreport/internal/errors"
	"github.com/voxreport/voxreport/internal/models"
	"github.com/voxreport/voxreport/internal/translate"
)

// TranslateReport produces an independent report in the target language.
// Translating a translation targets its original, so translation chains
// never form; at most one translation per original and language exists.
func (e *Engine) TranslateReport(ctx context.Context, reportID, targetLanguage string) (models.Report, error) {
	user, err := e.session.CurrentUser()
	if err != nil {
		return models.Report{}, err
	}

	if !user.IsPro() {
		return models.Report{}, apperrors.ErrProRequired
	}

	if e.translator == nil {
		return models.Report{}, fmt.Errorf("%w: no translation webhook configured", apperrors.ErrTranslateFail)
	}

	if !translate.Supported(targetLanguage) {
		return models.Report{}, fmt.Errorf("%w: %q (%s)", apperrors.ErrUnsupportedLanguage,
			targetLanguage, translate.LanguageName(targetLanguage))
	}

	origin, err := e.Report(reportID)
	if err != nil {
		return models.Report{}, err
	}

	if origin.IsTranslation {
		origin, err = e.Report(origin.OriginalReportID)
		if err != nil {
			return models.Report{}, fmt.Errorf("resolving translation source: %w", err)
		}
	}

	for _, existing := range e.ListTranslations(origin.ID) {
		if existing.TranslatedTo == targetLanguage {
			return models.Report{}, apperrors.ErrTranslationExists
		}
	}

	result, err := e.translator.Translate(ctx, translate.Request{
		ReportID:       origin.ID,
		UserID:         user.ID,
		TargetLanguage: targetLanguage,
		Title:          origin.Title,
		Content:        origin.Content,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return models.Report{}, err
	}

	title := result.Title
	if title == "" {
		title = "[" + strings.ToUpper(targetLanguage) + "] " + origin.Title
	}

	now := time.Now().UTC()

	report := models.Report{
		ID:               "report_" + uuid.NewString(),
		Title:            title,
		Content:          result.Content,
		ValidatedAt:      now,
		CreatedAt:        now,
		FolderID:         origin.FolderID,
		Status:           models.ReportStatusValidated,
		SourceType:       models.SourceTranslation,
		SourceInfo:       "translated from " + origin.ID,
		IsTranslation:    true,
		OriginalReportID: origin.ID,
		TranslatedTo:     targetLanguage,
		DetectedLanguage: result.DetectedLanguage,
		TranslatedAt:     now,
		SharedWith:       []string{},
	}

	report.PDFURL, report.PDFData = e.renderPDF(ctx, user.ID, report.Title, report.Content)
	report.HasPDF = true
	report.PDFGenerated = true

	err = e.mutate(func(snap *snapshot) error {
		snap.Reports = append([]models.Report{report}, snap.Reports...)
		return nil
	})
	if err != nil {
		return models.Report{}, err
	}

	e.push("translation", func(ctx context.Context) error {
		return e.gateway.InsertReport(ctx, user.ID, report)
	})

	e.logger.Info("report translated",
		"original_id", origin.ID,
		"report_id", report.ID,
		"language", targetLanguage,
		"language_name", translate.LanguageName(targetLanguage))

	return report, nil
}

// ListTranslations returns the translations of an original report.
func (e *Engine) ListTranslations(originalID string) []models.Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []models.Report

	for _, r := range e.snap.Reports {
		if r.IsTranslation && r.OriginalReportID == originalID {
			out = append(out, r)
		}
	}

	return out
}
