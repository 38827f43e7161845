// Package translate calls the external translation webhook and parses its
// loosely-specified JSON responses. The webhook is an automation pipeline,
// not a stable API: field names vary between deployments, so the response
// is probed with gjson rather than unmarshalled into a struct.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	apperrors "github.com/voxreport/voxreport/internal/errors"
)

// SupportedLanguages are the target language codes the webhook accepts.
var SupportedLanguages = []string{"de", "en", "es", "fr", "ja", "zh"}

// Supported reports whether code is a valid translation target.
func Supported(code string) bool {
	i := sort.SearchStrings(SupportedLanguages, code)
	return i < len(SupportedLanguages) && SupportedLanguages[i] == code
}

// LanguageName returns the native display name of a supported language
// code ("fr" -> "français"). Unknown codes come back unchanged.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}

	if name := display.Self.Name(tag); name != "" {
		return name
	}

	return code
}

const (
	// webhookTimeout bounds a single translation round trip. Machine
	// translation of a long report routinely takes tens of seconds.
	webhookTimeout = 2 * time.Minute

	maxWebhookResponseBytes = 4 * 1024 * 1024
)

// Request carries one report to translate.
type Request struct {
	ReportID       string `json:"report_id"`
	UserID         string `json:"user_id"`
	TargetLanguage string `json:"target_language"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
}

// Result is the parsed webhook response.
type Result struct {
	Title            string
	Content          string
	DetectedLanguage string
}

// Client posts translation requests to a webhook URL.
type Client struct {
	httpClient *http.Client
	webhookURL string
}

// NewClient builds a webhook client. A nil httpClient gets a default with
// a generous timeout.
func NewClient(webhookURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: webhookTimeout}
	}

	return &Client{
		httpClient: httpClient,
		webhookURL: webhookURL,
	}
}

// Translate sends the report to the webhook and parses the response.
// A missing translated title is acceptable (the caller synthesizes one);
// missing translated content fails the call.
func (c *Client) Translate(ctx context.Context, req Request) (Result, error) {
	if !Supported(req.TargetLanguage) {
		return Result{}, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedLanguage, req.TargetLanguage)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshalling translation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("creating translation request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("calling translation webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("reading translation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: webhook returned status %d", apperrors.ErrTranslateFail, resp.StatusCode)
	}

	return parseResponse(body)
}

// parseResponse extracts the translation from the webhook's JSON. The
// pipeline has shipped several field spellings over time; all are probed
// in order of preference.
func parseResponse(body []byte) (Result, error) {
	if !gjson.GetBytes(body, "success").Bool() {
		if msg := gjson.GetBytes(body, "error").Str; msg != "" {
			return Result{}, fmt.Errorf("%w: %s", apperrors.ErrTranslateFail, msg)
		}

		return Result{}, apperrors.ErrTranslateFail
	}

	content := firstString(body, "translatedContent", "translated_content", "content")
	if content == "" {
		return Result{}, fmt.Errorf("%w: response carries no translated content", apperrors.ErrTranslateFail)
	}

	detected := firstString(body, "detectedSourceLanguage", "detected_source_language")
	if detected == "" {
		detected = "unknown"
	}

	return Result{
		Title:            firstString(body, "translatedTitle", "translated_title"),
		Content:          content,
		DetectedLanguage: detected,
	}, nil
}

func firstString(body []byte, paths ...string) string {
	for _, path := range paths {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Str != "" {
			return v.Str
		}
	}

	return ""
}
