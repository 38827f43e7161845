// Package models defines the domain entities shared across internal packages.
package models

import "time"

// DraftStatus is the lifecycle state of a draft awaiting generation or
// user confirmation.
type DraftStatus string

const (
	DraftGenerating DraftStatus = "generating"
	DraftReady      DraftStatus = "ready"
	DraftError      DraftStatus = "error"
)

// Valid reports whether s is one of the known draft states.
func (s DraftStatus) Valid() bool {
	switch s {
	case DraftGenerating, DraftReady, DraftError:
		return true
	}

	return false
}

// SourceType describes how a draft or report entered the system.
type SourceType string

const (
	SourceRecording   SourceType = "recording"
	SourceUpload      SourceType = "upload"
	SourceTranslation SourceType = "translation"
)

// Plan is the subscription tier of an account.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// ReportStatusValidated is the only status a report ever carries. Reports
// are immutable in state once promoted from a draft.
const ReportStatusValidated = "validated"

// Draft is an in-progress report. It is created when a recording or upload
// is submitted, fills in GeneratedReport asynchronously, and disappears
// either on explicit delete or on validation (promotion to a Report).
type Draft struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	GeneratedReport string      `json:"generatedReport,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	SourceType      SourceType  `json:"sourceType"`
	SourceInfo      string      `json:"sourceInfo,omitempty"`
	AudioURL        string      `json:"audioUrl,omitempty"`
	Status          DraftStatus `json:"status"`
	IsModified      bool        `json:"isModified"`
}

// Report is a validated, finalized draft. A report with IsTranslation set
// always references a non-translation original via OriginalReportID;
// translations never chain.
type Report struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	ValidatedAt time.Time  `json:"validatedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	FolderID    string     `json:"folderId,omitempty"`
	Status      string     `json:"status"`
	SourceType  SourceType `json:"sourceType"`
	SourceInfo  string     `json:"sourceInfo,omitempty"`
	IsModified  bool       `json:"isModified"`

	// PDF export state. PDFURL (a signed object reference) takes
	// precedence over PDFData (an inline data-URI fallback used when the
	// object upload was unavailable).
	HasPDF       bool   `json:"hasPdf"`
	PDFGenerated bool   `json:"pdfGenerated"`
	PDFURL       string `json:"pdfUrl,omitempty"`
	PDFData      string `json:"pdfData,omitempty"`

	IsTranslation    bool      `json:"isTranslation"`
	OriginalReportID string    `json:"originalReportId,omitempty"`
	TranslatedTo     string    `json:"translatedTo,omitempty"`
	DetectedLanguage string    `json:"detectedLanguage,omitempty"`
	TranslatedAt     time.Time `json:"translatedAt,omitzero"`

	SharedWith []string `json:"sharedWith"`
}

// Folder is a named grouping of reports. Folder names are unique per user,
// case-insensitively.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// Device is one registered browser/install for an account. At most two
// devices may be live per user, regardless of plan.
type Device struct {
	DeviceID    string    `json:"device_id"`
	DeviceName  string    `json:"device_name"`
	Browser     string    `json:"browser,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	LastUsed    time.Time `json:"last_used"`
}

// User is the session-scoped view of an account profile.
type User struct {
	ID                 string
	Email              string
	FirstName          string
	LastName           string
	SubscriptionPlan   Plan
	SubscriptionStatus string
	ReportsThisMonth   int
	Devices            []Device
	CreatedAt          time.Time
}

// DisplayName returns the user's full name, falling back to the email.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName + " " + u.LastName
	}

	return u.Email
}

// IsPro reports whether the account is on the paid tier.
func (u *User) IsPro() bool {
	return u.SubscriptionPlan == PlanPro
}
