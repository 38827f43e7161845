// Package session owns the account: authentication, the two-device cap,
// the monthly report counter, profile management and the UI language
// preference. The reconciliation engine reads the session but never
// mutates it except through IncrementMonthlyReports.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	apperrors "github.com/voxreport/voxreport/internal/errors"
	"github.com/voxreport/voxreport/internal/models"
	"github.com/voxreport/voxreport/internal/remote"
)

// maxDevices is the per-account cap on concurrently registered devices.
// It applies to every tier.
const maxDevices = 2

// Gateway is the slice of the remote API the session controller needs.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (string, error)
	SignOut(ctx context.Context) error
	FetchProfile(ctx context.Context, userID string) (remote.Profile, error)
	UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) error
	DeleteProfile(ctx context.Context, userID string) error
	DeleteAllRows(ctx context.Context, collection, userID string) error
	CreateCheckoutSession(ctx context.Context, req remote.CheckoutRequest) (string, error)
	CancelSubscription(ctx context.Context, userID string) (time.Time, error)
}

// LocalState is the slice of the cache the session controller needs.
type LocalState interface {
	DeviceID() (string, error)
	Language() string
	SetLanguage(code string) error
}

// CheckoutConfig carries the billing redirect parameters handed to the
// checkout-session function.
type CheckoutConfig struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Controller is the session state machine. All methods are safe for
// concurrent use.
type Controller struct {
	gateway    Gateway
	state      LocalState
	logger     *slog.Logger
	deviceName string
	checkout   CheckoutConfig

	mu   sync.Mutex
	user *models.User

	localeMu   sync.Mutex
	localeSubs []chan string
}

// NewController wires a session controller. deviceName identifies this
// install in the account's device list.
func NewController(gateway Gateway, state LocalState, deviceName string, checkout CheckoutConfig, logger *slog.Logger) *Controller {
	return &Controller{
		gateway:    gateway,
		state:      state,
		logger:     logger,
		deviceName: deviceName,
		checkout:   checkout,
	}
}

// Login authenticates, loads the profile and registers this device.
// A profile that cannot be loaded forces a remote sign-out so no
// half-authenticated session survives. A full device list does the same
// and returns ErrDeviceLimit.
func (c *Controller) Login(ctx context.Context, email, password string) (*models.User, error) {
	userID, err := c.gateway.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	profile, err := c.gateway.FetchProfile(ctx, userID)
	if err != nil {
		c.logger.Error("profile fetch after sign-in failed", "user_id", userID, "error", err)

		if soErr := c.gateway.SignOut(ctx); soErr != nil {
			c.logger.Warn("forced sign-out failed", "error", soErr)
		}

		return nil, fmt.Errorf("%w: %w", apperrors.ErrProfileUnavailable, err)
	}

	user := &models.User{
		ID:                 profile.ID,
		Email:              profile.Email,
		FirstName:          profile.FirstName,
		LastName:           profile.LastName,
		SubscriptionPlan:   profile.SubscriptionPlan,
		SubscriptionStatus: profile.SubscriptionStatus,
		ReportsThisMonth:   profile.ReportsThisMonth,
		Devices:            profile.Devices,
		CreatedAt:          profile.CreatedAt,
	}

	if err := c.registerDevice(ctx, user); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.user = user
	c.mu.Unlock()

	c.logger.Info("logged in", "user_id", user.ID, "plan", user.SubscriptionPlan)

	return c.snapshotUser(), nil
}

// registerDevice enforces the device cap. A known device id is touched in
// place; an unknown one is appended unless the list is full, in which
// case the session is torn down remotely before the error returns.
func (c *Controller) registerDevice(ctx context.Context, user *models.User) error {
	deviceID, err := c.state.DeviceID()
	if err != nil {
		return fmt.Errorf("resolving device id: %w", err)
	}

	now := time.Now().UTC()

	for i := range user.Devices {
		if user.Devices[i].DeviceID != deviceID {
			continue
		}

		user.Devices[i].LastUsed = now
		c.pushDevices(ctx, user.ID, user.Devices)

		return nil
	}

	if len(user.Devices) >= maxDevices {
		c.logger.Warn("device limit reached", "user_id", user.ID, "devices", len(user.Devices))

		if err := c.gateway.SignOut(ctx); err != nil {
			c.logger.Warn("forced sign-out failed", "error", err)
		}

		return apperrors.ErrDeviceLimit
	}

	user.Devices = append(user.Devices, models.Device{
		DeviceID:    deviceID,
		DeviceName:  c.deviceName,
		Browser:     runtime.GOOS + "/" + runtime.GOARCH,
		ConnectedAt: now,
		LastUsed:    now,
	})
	c.pushDevices(ctx, user.ID, user.Devices)

	c.logger.Info("device registered", "device_id", deviceID, "device_name", c.deviceName)

	return nil
}

// pushDevices persists the device list. Failures are soft: the cap is
// enforced against the remote list on the next login anyway.
func (c *Controller) pushDevices(ctx context.Context, userID string, devices []models.Device) {
	err := c.gateway.UpdateProfile(ctx, userID, map[string]interface{}{"device_ids": devices})
	if err != nil {
		c.logger.Warn("persisting device list failed", "error", err)
	}
}

// Logout signs out remotely and drops the in-memory session. The local
// cache is left alone so the next login starts warm.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()

	if err := c.gateway.SignOut(ctx); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}

	c.logger.Info("logged out")

	return nil
}

// CurrentUser returns a copy of the logged-in user.
func (c *Controller) CurrentUser() (*models.User, error) {
	u := c.snapshotUser()
	if u == nil {
		return nil, apperrors.ErrNotLoggedIn
	}

	return u, nil
}

func (c *Controller) snapshotUser() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return nil
	}

	u := *c.user
	u.Devices = append([]models.Device(nil), c.user.Devices...)

	return &u
}

// IncrementMonthlyReports bumps the free-tier monthly counter and pushes
// it best-effort. A failed push keeps the in-memory value; the counter is
// reconciled server-side at month rollover, so no retry is scheduled.
func (c *Controller) IncrementMonthlyReports(ctx context.Context) (int, error) {
	c.mu.Lock()

	if c.user == nil {
		c.mu.Unlock()
		return 0, apperrors.ErrNotLoggedIn
	}

	c.user.ReportsThisMonth++
	count := c.user.ReportsThisMonth
	userID := c.user.ID

	c.mu.Unlock()

	err := c.gateway.UpdateProfile(ctx, userID, map[string]interface{}{"reports_this_month": count})
	if err != nil {
		c.logger.Warn("monthly counter push failed", "count", count, "error", err)
	}

	return count, nil
}

// UpdateNames changes the profile's name fields locally and remotely.
func (c *Controller) UpdateNames(ctx context.Context, firstName, lastName string) error {
	c.mu.Lock()

	if c.user == nil {
		c.mu.Unlock()
		return apperrors.ErrNotLoggedIn
	}

	userID := c.user.ID
	c.user.FirstName = firstName
	c.user.LastName = lastName

	c.mu.Unlock()

	err := c.gateway.UpdateProfile(ctx, userID, map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	})
	if err != nil {
		return fmt.Errorf("updating profile names: %w", err)
	}

	return nil
}

// Upgrade creates a checkout session and returns the payment redirect URL.
func (c *Controller) Upgrade(ctx context.Context) (string, error) {
	u, err := c.CurrentUser()
	if err != nil {
		return "", err
	}

	url, err := c.gateway.CreateCheckoutSession(ctx, remote.CheckoutRequest{
		UserID:     u.ID,
		PriceID:    c.checkout.PriceID,
		SuccessURL: c.checkout.SuccessURL,
		CancelURL:  c.checkout.CancelURL,
	})
	if err != nil {
		return "", err
	}

	return url, nil
}

// CancelSubscription cancels the paid plan. The plan stays pro until the
// returned effective time; only the status flips to canceling.
func (c *Controller) CancelSubscription(ctx context.Context) (time.Time, error) {
	c.mu.Lock()

	if c.user == nil {
		c.mu.Unlock()
		return time.Time{}, apperrors.ErrNotLoggedIn
	}

	userID := c.user.ID
	c.mu.Unlock()

	at, err := c.gateway.CancelSubscription(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}

	c.mu.Lock()
	if c.user != nil {
		c.user.SubscriptionStatus = "canceling"
	}
	c.mu.Unlock()

	return at, nil
}

// DisconnectDevice removes a device from the account's list and persists
// the change. Removing the current device is allowed; the next login
// simply re-registers it.
func (c *Controller) DisconnectDevice(ctx context.Context, deviceID string) error {
	c.mu.Lock()

	if c.user == nil {
		c.mu.Unlock()
		return apperrors.ErrNotLoggedIn
	}

	devices := c.user.Devices
	kept := devices[:0:0]

	for _, d := range devices {
		if d.DeviceID != deviceID {
			kept = append(kept, d)
		}
	}

	if len(kept) == len(devices) {
		c.mu.Unlock()
		return fmt.Errorf("device %q is not registered", deviceID)
	}

	c.user.Devices = kept
	userID := c.user.ID

	c.mu.Unlock()

	err := c.gateway.UpdateProfile(ctx, userID, map[string]interface{}{"device_ids": kept})
	if err != nil {
		return fmt.Errorf("persisting device removal: %w", err)
	}

	c.logger.Info("device disconnected", "device_id", deviceID)

	return nil
}

// DeleteAccount removes every remote row the user owns, the profile, and
// the session. Collection deletes run first so a partial failure leaves
// the account itself intact.
func (c *Controller) DeleteAccount(ctx context.Context) error {
	c.mu.Lock()

	if c.user == nil {
		c.mu.Unlock()
		return apperrors.ErrNotLoggedIn
	}

	userID := c.user.ID
	c.mu.Unlock()

	for _, collection := range []string{"drafts", "reports", "folders"} {
		if err := c.gateway.DeleteAllRows(ctx, collection, userID); err != nil {
			return fmt.Errorf("deleting %s: %w", collection, err)
		}
	}

	if err := c.gateway.DeleteProfile(ctx, userID); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}

	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()

	if err := c.gateway.SignOut(ctx); err != nil {
		c.logger.Warn("sign-out after account deletion failed", "error", err)
	}

	c.logger.Info("account deleted", "user_id", userID)

	return nil
}
