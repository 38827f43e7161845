package errors

import "errors"

// Session errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrProfileUnavailable = errors.New("profile could not be loaded")
	ErrDeviceLimit        = errors.New("device limit reached: two devices are already registered")
	ErrNotLoggedIn        = errors.New("no active session")
)

// Validation errors. Rejected before any state mutation.
var (
	ErrEmptyTitle          = errors.New("title cannot be empty")
	ErrEmptyContent        = errors.New("content cannot be empty")
	ErrEmptyFolderName     = errors.New("folder name cannot be empty")
	ErrFolderExists        = errors.New("a folder with this name already exists")
	ErrFolderNotFound      = errors.New("folder not found")
	ErrDraftNotFound       = errors.New("draft not found")
	ErrDraftNotReady       = errors.New("draft has no generated report yet")
	ErrReportNotFound      = errors.New("report not found")
	ErrProRequired         = errors.New("this feature requires the PRO plan")
	ErrTranslationExists   = errors.New("a translation into this language already exists")
	ErrUnsupportedLanguage = errors.New("unsupported target language")
)

// Gateway/transport errors.
var (
	ErrAPIRequest    = errors.New("API request failed")
	ErrAPIResponse   = errors.New("unexpected API response")
	ErrTranslateFail = errors.New("translation service reported failure")
)
