package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/voxreport/voxreport/internal/errors"
	"github.com/voxreport/voxreport/internal/models"
	"github.com/voxreport/voxreport/internal/remote"
)

type fakeGateway struct {
	profile    remote.Profile
	profileErr error
	signInErr  error
	updateErr  error

	signOuts       int
	updates        []map[string]interface{}
	deletedRows    []string
	profileDeleted bool
	checkoutURL    string
	cancelAt       time.Time
}

func (f *fakeGateway) SignIn(ctx context.Context, email, password string) (string, error) {
	if f.signInErr != nil {
		return "", f.signInErr
	}

	return f.profile.ID, nil
}

func (f *fakeGateway) SignOut(ctx context.Context) error {
	f.signOuts++
	return nil
}

func (f *fakeGateway) FetchProfile(ctx context.Context, userID string) (remote.Profile, error) {
	if f.profileErr != nil {
		return remote.Profile{}, f.profileErr
	}

	return f.profile, nil
}

func (f *fakeGateway) UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}

	f.updates = append(f.updates, fields)

	return nil
}

func (f *fakeGateway) DeleteProfile(ctx context.Context, userID string) error {
	f.profileDeleted = true
	return nil
}

func (f *fakeGateway) DeleteAllRows(ctx context.Context, collection, userID string) error {
	f.deletedRows = append(f.deletedRows, collection)
	return nil
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, req remote.CheckoutRequest) (string, error) {
	return f.checkoutURL, nil
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, userID string) (time.Time, error) {
	return f.cancelAt, nil
}

type fakeState struct {
	deviceID string
	language string
}

func (f *fakeState) DeviceID() (string, error)    { return f.deviceID, nil }
func (f *fakeState) Language() string             { return f.language }
func (f *fakeState) SetLanguage(code string) error { f.language = code; return nil }

func testController(gw *fakeGateway, st *fakeState) *Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewController(gw, st, "test-laptop", CheckoutConfig{PriceID: "price_1"}, logger)
}

func testProfile(devices ...models.Device) remote.Profile {
	return remote.Profile{
		ID:               "u1",
		Email:            "a@b.c",
		SubscriptionPlan: models.PlanFree,
		Devices:          devices,
	}
}

func TestLogin_RegistersNewDevice(t *testing.T) {
	gw := &fakeGateway{profile: testProfile()}
	c := testController(gw, &fakeState{deviceID: "device_a"})

	user, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	require.Len(t, user.Devices, 1)
	assert.Equal(t, "device_a", user.Devices[0].DeviceID)
	assert.Equal(t, "test-laptop", user.Devices[0].DeviceName)

	require.Len(t, gw.updates, 1)
	assert.Contains(t, gw.updates[0], "device_ids")
}

func TestLogin_KnownDeviceIsTouchedNotDuplicated(t *testing.T) {
	old := time.Now().Add(-24 * time.Hour).UTC()
	gw := &fakeGateway{profile: testProfile(models.Device{DeviceID: "device_a", LastUsed: old})}
	c := testController(gw, &fakeState{deviceID: "device_a"})

	user, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	require.Len(t, user.Devices, 1)
	assert.True(t, user.Devices[0].LastUsed.After(old))
}

func TestLogin_DeviceCapForcesSignOut(t *testing.T) {
	gw := &fakeGateway{profile: testProfile(
		models.Device{DeviceID: "device_x"},
		models.Device{DeviceID: "device_y"},
	)}
	c := testController(gw, &fakeState{deviceID: "device_z"})

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, apperrors.ErrDeviceLimit)
	assert.Equal(t, 1, gw.signOuts)

	_, err = c.CurrentUser()
	assert.ErrorIs(t, err, apperrors.ErrNotLoggedIn)
}

func TestLogin_SecondDeviceFits(t *testing.T) {
	gw := &fakeGateway{profile: testProfile(models.Device{DeviceID: "device_x"})}
	c := testController(gw, &fakeState{deviceID: "device_z"})

	user, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Len(t, user.Devices, 2)
}

func TestLogin_ProfileFetchFailureForcesSignOut(t *testing.T) {
	gw := &fakeGateway{
		profile:    testProfile(),
		profileErr: errors.New("boom"),
	}
	c := testController(gw, &fakeState{deviceID: "device_a"})

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, apperrors.ErrProfileUnavailable)
	assert.Equal(t, 1, gw.signOuts)
}

func TestLogin_DeviceListPushFailureIsSoft(t *testing.T) {
	gw := &fakeGateway{profile: testProfile(), updateErr: errors.New("offline")}
	c := testController(gw, &fakeState{deviceID: "device_a"})

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	assert.NoError(t, err)
}

func loggedIn(t *testing.T, gw *fakeGateway) *Controller {
	t.Helper()

	c := testController(gw, &fakeState{deviceID: "device_a"})
	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	return c
}

func TestIncrementMonthlyReports_SurvivesPushFailures(t *testing.T) {
	gw := &fakeGateway{profile: testProfile()}
	c := loggedIn(t, gw)

	gw.updateErr = errors.New("offline")

	for i := 1; i <= 3; i++ {
		count, err := c.IncrementMonthlyReports(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	user, err := c.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, 3, user.ReportsThisMonth)
}

func TestLogout_DropsSession(t *testing.T) {
	gw := &fakeGateway{profile: testProfile()}
	c := loggedIn(t, gw)

	require.NoError(t, c.Logout(context.Background()))

	_, err := c.CurrentUser()
	assert.ErrorIs(t, err, apperrors.ErrNotLoggedIn)
}

func TestDisconnectDevice(t *testing.T) {
	gw := &fakeGateway{profile: testProfile(models.Device{DeviceID: "device_old"})}
	c := loggedIn(t, gw)

	require.NoError(t, c.DisconnectDevice(context.Background(), "device_old"))

	user, err := c.CurrentUser()
	require.NoError(t, err)
	require.Len(t, user.Devices, 1)
	assert.Equal(t, "device_a", user.Devices[0].DeviceID)
}

func TestDisconnectDevice_UnknownID(t *testing.T) {
	gw := &fakeGateway{profile: testProfile()}
	c := loggedIn(t, gw)

	assert.Error(t, c.DisconnectDevice(context.Background(), "device_ghost"))
}

func TestCancelSubscription_FlipsStatus(t *testing.T) {
	at := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	gw := &fakeGateway{profile: testProfile(), cancelAt: at}
	c := loggedIn(t, gw)

	got, err := c.CancelSubscription(context.Background())
	require.NoError(t, err)
	assert.Equal(t, at, got)

	user, err := c.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "canceling", user.SubscriptionStatus)
}

func TestUpgrade_ReturnsCheckoutURL(t *testing.T) {
	gw := &fakeGateway{profile: testProfile(), checkoutURL: "https://pay.example.com/cs_1"}
	c := loggedIn(t, gw)

	url, err := c.Upgrade(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/cs_1", url)
}

func TestDeleteAccount_RemovesEverythingThenSignsOut(t *testing.T) {
	gw := &fakeGateway{profile: testProfile()}
	c := loggedIn(t, gw)

	require.NoError(t, c.DeleteAccount(context.Background()))

	assert.Equal(t, []string{"drafts", "reports", "folders"}, gw.deletedRows)
	assert.True(t, gw.profileDeleted)
	assert.Equal(t, 1, gw.signOuts)

	_, err := c.CurrentUser()
	assert.ErrorIs(t, err, apperrors.ErrNotLoggedIn)
}

func TestLocale_PubSub(t *testing.T) {
	gw := &fakeGateway{profile: testProfile()}
	st := &fakeState{deviceID: "device_a", language: "fr"}
	c := testController(gw, st)

	assert.Equal(t, "fr", c.Language())

	ch, cancel := c.SubscribeLocale()
	defer cancel()

	require.NoError(t, c.SetLanguage("en"))
	assert.Equal(t, "en", st.language)

	select {
	case got := <-ch:
		assert.Equal(t, "en", got)
	default:
		t.Fatal("no locale notification received")
	}
}

func TestLocale_CancelClosesChannel(t *testing.T) {
	gw := &fakeGateway{profile: testProfile()}
	c := testController(gw, &fakeState{})

	ch, cancel := c.SubscribeLocale()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// A change after cancel must not panic on the closed channel.
	require.NoError(t, c.SetLanguage("de"))
}

func TestLocale_ConcurrentCancelDuringPublish(t *testing.T) {
	gw := &fakeGateway{profile: testProfile()}
	c := testController(gw, &fakeState{})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		for i := 0; i < 1000; i++ {
			require.NoError(t, c.SetLanguage("en"))
		}
	}()

	// Churn subscriptions while publishes are in flight. A cancel that
	// closes its channel mid-send would panic here.
	go func() {
		defer wg.Done()

		for i := 0; i < 1000; i++ {
			ch, cancel := c.SubscribeLocale()

			select {
			case <-ch:
			default:
			}

			cancel()
		}
	}()

	wg.Wait()
}
