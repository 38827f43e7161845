package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/voxreport/voxreport/internal/errors"
	"github.com/voxreport/voxreport/internal/models"
)

// Collections is the result of a full pull: every owner-scoped row of the
// three synced collections, each ordered newest-first.
type Collections struct {
	Drafts  []models.Draft
	Reports []models.Report
	Folders []models.Folder
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// SignIn authenticates with email and password, installing the returned
// bearer token on the client. A 401 maps to ErrInvalidCredentials.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var resp signinResponse

	err := c.do(ctx, http.MethodPost, "/auth/signin", signinRequest{Email: email, Password: password}, &resp)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return "", apperrors.ErrInvalidCredentials
		}

		return "", fmt.Errorf("signing in: %w", err)
	}

	c.token = resp.Token

	return resp.UserID, nil
}

// SignOut invalidates the current token. The token is cleared locally even
// when the remote call fails.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/signout", nil, nil)
	c.token = ""

	if err != nil {
		return fmt.Errorf("signing out: %w", err)
	}

	return nil
}

// PullAll fetches the three collections in parallel, each filtered by
// owner and ordered newest-first. Any single failure fails the whole pull;
// the caller falls back to its local snapshot.
func (c *Client) PullAll(ctx context.Context, userID string) (Collections, error) {
	var (
		draftRows  []draftRow
		reportRows []reportRow
		folderRows []folderRow
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.list(gctx, "drafts", userID, &draftRows)
	})

	g.Go(func() error {
		return c.list(gctx, "reports", userID, &reportRows)
	})

	g.Go(func() error {
		return c.list(gctx, "folders", userID, &folderRows)
	})

	if err := g.Wait(); err != nil {
		return Collections{}, fmt.Errorf("pulling collections: %w", err)
	}

	out := Collections{
		Drafts:  make([]models.Draft, 0, len(draftRows)),
		Reports: make([]models.Report, 0, len(reportRows)),
		Folders: make([]models.Folder, 0, len(folderRows)),
	}

	for _, row := range draftRows {
		out.Drafts = append(out.Drafts, fromDraftRow(row))
	}

	for _, row := range reportRows {
		out.Reports = append(out.Reports, fromReportRow(row))
	}

	for _, row := range folderRows {
		out.Folders = append(out.Folders, fromFolderRow(row))
	}

	return out, nil
}

func (c *Client) list(ctx context.Context, collection, userID string, result interface{}) error {
	endpoint := fmt.Sprintf("/collections/%s?owner=%s&order=created_at.desc",
		collection, url.QueryEscape(userID))

	return c.do(ctx, http.MethodGet, endpoint, nil, result)
}

// --- Draft pushes ---

func (c *Client) InsertDraft(ctx context.Context, userID string, d models.Draft) error {
	return c.do(ctx, http.MethodPost, "/collections/drafts", toDraftRow(userID, d), nil)
}

func (c *Client) UpdateDraft(ctx context.Context, userID string, d models.Draft) error {
	endpoint := "/collections/drafts/" + url.PathEscape(d.ID)
	return c.do(ctx, http.MethodPatch, endpoint, toDraftRow(userID, d), nil)
}

func (c *Client) DeleteDraft(ctx context.Context, draftID string) error {
	endpoint := "/collections/drafts/" + url.PathEscape(draftID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// --- Report pushes ---

func (c *Client) InsertReport(ctx context.Context, userID string, r models.Report) error {
	return c.do(ctx, http.MethodPost, "/collections/reports", toReportRow(userID, r), nil)
}

func (c *Client) UpdateReport(ctx context.Context, userID string, r models.Report) error {
	endpoint := "/collections/reports/" + url.PathEscape(r.ID)
	return c.do(ctx, http.MethodPatch, endpoint, toReportRow(userID, r), nil)
}

func (c *Client) DeleteReport(ctx context.Context, reportID string) error {
	endpoint := "/collections/reports/" + url.PathEscape(reportID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// --- Folder pushes ---

func (c *Client) InsertFolder(ctx context.Context, userID string, f models.Folder) error {
	return c.do(ctx, http.MethodPost, "/collections/folders", toFolderRow(userID, f), nil)
}

func (c *Client) UpdateFolder(ctx context.Context, userID string, f models.Folder) error {
	endpoint := "/collections/folders/" + url.PathEscape(f.ID)
	return c.do(ctx, http.MethodPatch, endpoint, toFolderRow(userID, f), nil)
}

func (c *Client) DeleteFolder(ctx context.Context, folderID string) error {
	endpoint := "/collections/folders/" + url.PathEscape(folderID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// ClearFolderAssignments bulk-reassigns every report of the owner pointing
// at folderID back to "no folder". Issued before the folder delete; the
// two calls are independent, not a transaction.
func (c *Client) ClearFolderAssignments(ctx context.Context, userID, folderID string) error {
	body := map[string]string{
		"owner":     userID,
		"folder_id": folderID,
	}

	return c.do(ctx, http.MethodPost, "/collections/reports/clear-folder", body, nil)
}

// DeleteAllRows removes every row of a collection owned by userID.
// Used by account deletion.
func (c *Client) DeleteAllRows(ctx context.Context, collection, userID string) error {
	endpoint := fmt.Sprintf("/collections/%s?owner=%s", collection, url.QueryEscape(userID))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// --- Profile ---

// FetchProfile returns the full profile row for a user.
func (c *Client) FetchProfile(ctx context.Context, userID string) (Profile, error) {
	var row profileRow

	endpoint := "/profiles/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &row); err != nil {
		return Profile{}, fmt.Errorf("fetching profile: %w", err)
	}

	return fromProfileRow(row), nil
}

// UpdateProfile applies a partial update to the profile row. Fields maps
// column names to new values (e.g. "reports_this_month", "device_ids").
func (c *Client) UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) error {
	endpoint := "/profiles/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodPatch, endpoint, fields, nil)
}

// DeleteProfile removes the profile row entirely.
func (c *Client) DeleteProfile(ctx context.Context, userID string) error {
	endpoint := "/profiles/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// --- Serverless functions ---

// CheckoutRequest is the input of the create-checkout-session function.
type CheckoutRequest struct {
	UserID     string `json:"user_id"`
	PriceID    string `json:"price_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// CreateCheckoutSession asks the backend for a payment-checkout redirect URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	var resp checkoutResponse

	if err := c.do(ctx, http.MethodPost, "/functions/create-checkout-session", req, &resp); err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}

	if resp.URL == "" {
		return "", fmt.Errorf("creating checkout session: %w", apperrors.ErrAPIResponse)
	}

	return resp.URL, nil
}

type cancelRequest struct {
	UserID string `json:"user_id"`
}

type cancelResponse struct {
	CancelAt int64 `json:"cancel_at"`
}

// CancelSubscription cancels the subscription, returning the effective
// cancellation time reported by the payment provider.
func (c *Client) CancelSubscription(ctx context.Context, userID string) (time.Time, error) {
	var resp cancelResponse

	if err := c.do(ctx, http.MethodPost, "/functions/cancel-subscription", cancelRequest{UserID: userID}, &resp); err != nil {
		return time.Time{}, fmt.Errorf("cancelling subscription: %w", err)
	}

	return time.Unix(resp.CancelAt, 0).UTC(), nil
}
