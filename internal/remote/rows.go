package remote

import (
	"time"

	"github.com/voxreport/voxreport/internal/models"
)

// defaultFolderColor is assigned when a folder row arrives without one.
const defaultFolderColor = "#8B1538"

// Row shapes mirror the backend's snake_case columns. Conversion between
// rows and domain entities is total in both directions: every local field
// maps to exactly one column, and missing remote values take fixed
// defaults here rather than leaking zero values into the domain.

type draftRow struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	GeneratedReport string    `json:"generated_report,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	SourceType      string    `json:"source_type,omitempty"`
	SourceInfo      string    `json:"source_info,omitempty"`
	AudioURL        string    `json:"audio_url,omitempty"`
	Status          string    `json:"status,omitempty"`
	IsModified      bool      `json:"is_modified"`
}

type reportRow struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	ValidatedAt      time.Time  `json:"validated_at"`
	CreatedAt        time.Time  `json:"created_at"`
	FolderID         string     `json:"folder_id,omitempty"`
	Status           string     `json:"status"`
	SourceType       string     `json:"source_type,omitempty"`
	SourceInfo       string     `json:"source_info,omitempty"`
	IsModified       bool       `json:"is_modified"`
	HasPDF           bool       `json:"has_pdf"`
	PDFGenerated     bool       `json:"pdf_generated"`
	PDFURL           string     `json:"pdf_url,omitempty"`
	PDFData          string     `json:"pdf_data,omitempty"`
	IsTranslation    bool       `json:"is_translation"`
	OriginalReportID string     `json:"original_report_id,omitempty"`
	TranslatedTo     string     `json:"translated_to,omitempty"`
	DetectedLanguage string     `json:"detected_language,omitempty"`
	TranslatedAt     *time.Time `json:"translated_at,omitempty"`
	SharedWith       []string   `json:"shared_with,omitempty"`
}

type folderRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type profileRow struct {
	ID                 string          `json:"id"`
	Email              string          `json:"email"`
	FirstName          string          `json:"first_name,omitempty"`
	LastName           string          `json:"last_name,omitempty"`
	SubscriptionPlan   string          `json:"subscription_plan,omitempty"`
	SubscriptionStatus string          `json:"subscription_status,omitempty"`
	ReportsThisMonth   int             `json:"reports_this_month"`
	DeviceIDs          []models.Device `json:"device_ids,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func fromDraftRow(row draftRow) models.Draft {
	status := models.DraftStatus(row.Status)
	if !status.Valid() {
		status = models.DraftGenerating
	}

	source := models.SourceType(row.SourceType)
	if source == "" {
		source = models.SourceRecording
	}

	return models.Draft{
		ID:              row.ID,
		Title:           row.Title,
		GeneratedReport: row.GeneratedReport,
		CreatedAt:       row.CreatedAt,
		SourceType:      source,
		SourceInfo:      row.SourceInfo,
		AudioURL:        row.AudioURL,
		Status:          status,
		IsModified:      row.IsModified,
	}
}

func toDraftRow(userID string, d models.Draft) draftRow {
	return draftRow{
		ID:              d.ID,
		UserID:          userID,
		Title:           d.Title,
		GeneratedReport: d.GeneratedReport,
		CreatedAt:       d.CreatedAt,
		SourceType:      string(d.SourceType),
		SourceInfo:      d.SourceInfo,
		AudioURL:        d.AudioURL,
		Status:          string(d.Status),
		IsModified:      d.IsModified,
	}
}

func fromReportRow(row reportRow) models.Report {
	validatedAt := row.ValidatedAt
	if validatedAt.IsZero() {
		validatedAt = row.CreatedAt
	}

	source := models.SourceType(row.SourceType)
	if source == "" {
		source = models.SourceRecording
	}

	shared := row.SharedWith
	if shared == nil {
		shared = []string{}
	}

	var translatedAt time.Time
	if row.TranslatedAt != nil {
		translatedAt = *row.TranslatedAt
	}

	return models.Report{
		ID:               row.ID,
		Title:            row.Title,
		Content:          row.Content,
		ValidatedAt:      validatedAt,
		CreatedAt:        row.CreatedAt,
		FolderID:         row.FolderID,
		Status:           row.Status,
		SourceType:       source,
		SourceInfo:       row.SourceInfo,
		IsModified:       row.IsModified,
		HasPDF:           row.HasPDF,
		PDFGenerated:     row.PDFGenerated,
		PDFURL:           row.PDFURL,
		PDFData:          row.PDFData,
		IsTranslation:    row.IsTranslation,
		OriginalReportID: row.OriginalReportID,
		TranslatedTo:     row.TranslatedTo,
		DetectedLanguage: row.DetectedLanguage,
		TranslatedAt:     translatedAt,
		SharedWith:       shared,
	}
}

func toReportRow(userID string, r models.Report) reportRow {
	var translatedAt *time.Time
	if !r.TranslatedAt.IsZero() {
		t := r.TranslatedAt
		translatedAt = &t
	}

	return reportRow{
		ID:               r.ID,
		UserID:           userID,
		Title:            r.Title,
		Content:          r.Content,
		ValidatedAt:      r.ValidatedAt,
		CreatedAt:        r.CreatedAt,
		FolderID:         r.FolderID,
		Status:           models.ReportStatusValidated,
		SourceType:       string(r.SourceType),
		SourceInfo:       r.SourceInfo,
		IsModified:       r.IsModified,
		HasPDF:           r.HasPDF,
		PDFGenerated:     r.PDFGenerated,
		PDFURL:           r.PDFURL,
		PDFData:          r.PDFData,
		IsTranslation:    r.IsTranslation,
		OriginalReportID: r.OriginalReportID,
		TranslatedTo:     r.TranslatedTo,
		DetectedLanguage: r.DetectedLanguage,
		TranslatedAt:     translatedAt,
		SharedWith:       r.SharedWith,
	}
}

func fromFolderRow(row folderRow) models.Folder {
	color := row.Color
	if color == "" {
		color = defaultFolderColor
	}

	return models.Folder{
		ID:        row.ID,
		Name:      row.Name,
		Color:     color,
		CreatedAt: row.CreatedAt,
	}
}

func toFolderRow(userID string, f models.Folder) folderRow {
	return folderRow{
		ID:        f.ID,
		UserID:    userID,
		Name:      f.Name,
		Color:     f.Color,
		CreatedAt: f.CreatedAt,
	}
}

// Profile is the remote view of an account, owned by the session layer.
type Profile struct {
	ID                 string
	Email              string
	FirstName          string
	LastName           string
	SubscriptionPlan   models.Plan
	SubscriptionStatus string
	ReportsThisMonth   int
	Devices            []models.Device
	CreatedAt          time.Time
}

func fromProfileRow(row profileRow) Profile {
	plan := models.Plan(row.SubscriptionPlan)
	if plan != models.PlanPro {
		plan = models.PlanFree
	}

	status := row.SubscriptionStatus
	if status == "" {
		status = "active"
	}

	devices := row.DeviceIDs
	if devices == nil {
		devices = []models.Device{}
	}

	return Profile{
		ID:                 row.ID,
		Email:              row.Email,
		FirstName:          row.FirstName,
		LastName:           row.LastName,
		SubscriptionPlan:   plan,
		SubscriptionStatus: status,
		ReportsThisMonth:   row.ReportsThisMonth,
		Devices:            devices,
		CreatedAt:          row.CreatedAt,
	}
}
