package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nc-warden.io/warden/internal/controller"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
	"nc-warden.io/warden/internal/pkg/logger"
	"nc-warden.io/warden/internal/storage"
	"nc-warden.io/warden/internal/testutil"
)

func init() {
	_ = logger.Init("error", "json")
}

func newManager(t *testing.T, fake *testutil.FakeUniFi) (*controller.Manager, *storage.BlobStore) {
	t.Helper()
	store := storage.New(t.TempDir())
	mgr := controller.NewManager(controller.Config{
		URL:      fake.URL(),
		Site:     "default",
		Username: "admin",
		Password: "secret",
		Timeout:  5 * time.Second,
	}, store)
	return mgr, store
}

func TestLoginUDM(t *testing.T) {
	fake := testutil.NewFakeUniFi(true)
	defer fake.Close()
	mgr, store := newManager(t, fake)

	sess, err := mgr.Login(context.Background())
	require.NoError(t, err)

	assert.Equal(t, controller.FamilyUDM, sess.Family)
	assert.Equal(t, fake.URL(), sess.ControllerURL)
	assert.Equal(t, "default", sess.Site)
	assert.NotEmpty(t, sess.Auth.Cookies["TOKEN"])
	assert.Equal(t, "fake-csrf-token", sess.Auth.CSRFToken)
	assert.Equal(t, controller.StateAuthenticated, mgr.State())
	assert.Equal(t, 1, fake.LoginCount())

	// The persisted blob carries the stable wire format.
	var raw map[string]interface{}
	require.NoError(t, store.Get(storage.SessionBlob, &raw))
	assert.Equal(t, fake.URL(), raw["controller_url"])
	assert.Equal(t, "UDM_STYLE", raw["controller_family"])
	assert.Equal(t, "default", raw["site"])
	assert.Contains(t, raw, "token_or_cookie")
	assert.Contains(t, raw, "created_at")
}

func TestLoginLegacy(t *testing.T) {
	fake := testutil.NewFakeUniFi(false)
	defer fake.Close()
	mgr, _ := newManager(t, fake)

	sess, err := mgr.Login(context.Background())
	require.NoError(t, err)

	assert.Equal(t, controller.FamilyLegacy, sess.Family)
	assert.NotEmpty(t, sess.Auth.Cookies["unifises"])
	assert.Empty(t, sess.Auth.CSRFToken)
	assert.Equal(t, controller.StateAuthenticated, mgr.State())
}

func TestLoginRejectedCredentials(t *testing.T) {
	for _, udm := range []bool{true, false} {
		name := "legacy"
		if udm {
			name = "udm"
		}
		t.Run(name, func(t *testing.T) {
			fake := testutil.NewFakeUniFi(udm)
			defer fake.Close()
			fake.Password = "something-else"
			mgr, store := newManager(t, fake)

			_, err := mgr.Login(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeAuthFailed))

			// A rejected first login is recoverable, not terminal.
			assert.Equal(t, controller.StateUnauthenticated, mgr.State())
			assert.Equal(t, 0, fake.LoginCount())

			var raw map[string]interface{}
			err = store.Get(storage.SessionBlob, &raw)
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	}
}

func TestLoginUnreachable(t *testing.T) {
	fake := testutil.NewFakeUniFi(true)
	url := fake.URL()
	fake.Close()

	store := storage.New(t.TempDir())
	mgr := controller.NewManager(controller.Config{
		URL:      url,
		Site:     "default",
		Username: "admin",
		Password: "secret",
		Timeout:  2 * time.Second,
	}, store)

	_, err := mgr.Login(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeControllerUnreachable))
	assert.Equal(t, controller.StateUnauthenticated, mgr.State())
}

func TestCurrentReusesPersistedSession(t *testing.T) {
	fake := testutil.NewFakeUniFi(true)
	defer fake.Close()
	mgr, store := newManager(t, fake)

	_, err := mgr.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, fake.LoginCount())

	// A new manager over the same store picks up the persisted session
	// without spending another login.
	mgr2 := controller.NewManager(controller.Config{
		URL:      fake.URL(),
		Site:     "default",
		Username: "admin",
		Password: "secret",
	}, store)

	sess, err := mgr2.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, controller.FamilyUDM, sess.Family)
	assert.Equal(t, 1, fake.LoginCount())
	assert.Equal(t, controller.StateAuthenticated, mgr2.State())
}

func TestCurrentIgnoresForeignSession(t *testing.T) {
	fake := testutil.NewFakeUniFi(true)
	defer fake.Close()

	store := storage.New(t.TempDir())
	foreign := &controller.Session{
		ControllerURL: "https://10.0.0.99",
		Family:        controller.FamilyUDM,
		Site:          "default",
		Auth:          controller.AuthMaterial{Cookies: map[string]string{"TOKEN": "stale"}},
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.Set(storage.SessionBlob, foreign))

	mgr := controller.NewManager(controller.Config{
		URL:      fake.URL(),
		Site:     "default",
		Username: "admin",
		Password: "secret",
	}, store)

	sess, err := mgr.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fake.URL(), sess.ControllerURL)
	assert.Equal(t, 1, fake.LoginCount())
}

func TestCurrentFailedStateFailsFast(t *testing.T) {
	fake := testutil.NewFakeUniFi(true)
	defer fake.Close()
	mgr, _ := newManager(t, fake)

	_, err := mgr.Login(context.Background())
	require.NoError(t, err)

	mgr.MarkFailed()
	assert.Equal(t, controller.StateFailed, mgr.State())

	_, err = mgr.Current(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAuthFailed))
	assert.Equal(t, 1, fake.LoginCount(), "FAILED state must not touch the network")

	// Reset opens the path to a fresh login.
	mgr.Reset()
	_, err = mgr.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fake.LoginCount())
}

func TestLogout(t *testing.T) {
	fake := testutil.NewFakeUniFi(true)
	defer fake.Close()
	mgr, store := newManager(t, fake)

	_, err := mgr.Login(context.Background())
	require.NoError(t, err)

	require.NoError(t, mgr.Logout(context.Background()))
	assert.Equal(t, controller.StateUnauthenticated, mgr.State())

	var raw map[string]interface{}
	err = store.Get(storage.SessionBlob, &raw)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Logging out twice is harmless.
	require.NoError(t, mgr.Logout(context.Background()))
}

func TestSessionRoundTrip(t *testing.T) {
	fake := testutil.NewFakeUniFi(false)
	defer fake.Close()
	mgr, store := newManager(t, fake)

	sess, err := mgr.Login(context.Background())
	require.NoError(t, err)

	var restored controller.Session
	require.NoError(t, store.Get(storage.SessionBlob, &restored))
	assert.Equal(t, sess.ControllerURL, restored.ControllerURL)
	assert.Equal(t, sess.Family, restored.Family)
	assert.Equal(t, sess.Site, restored.Site)
	assert.Equal(t, sess.Auth.Cookies, restored.Auth.Cookies)
	assert.True(t, restored.Complete())
}
