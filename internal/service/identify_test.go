package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nc-warden.io/warden/internal/controller"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
	"nc-warden.io/warden/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func seededMock() *controller.Mock {
	mock := controller.NewMock()
	mock.Seed([]controller.Client{
		{MAC: "aa:bb:cc:dd:ee:01", Name: "Kids iPad", Online: true},
		{MAC: "aa:bb:cc:dd:ee:02", Name: "Kitchen Tablet", Online: true},
		{MAC: "aa:bb:cc:dd:ee:03", Hostname: "printer-upstairs"},
		{MAC: "aa:bb:cc:dd:ee:04", Name: "Tablet Charger"},
	})
	return mock
}

func TestResolveByMAC(t *testing.T) {
	r := NewIdentifier(seededMock())

	c, err := r.Resolve(context.Background(), "AA-BB-CC-DD-EE-01")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:01", c.MAC)

	_, err = r.Resolve(context.Background(), "aa:bb:cc:dd:ee:99")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeClientNotFound))
}

func TestResolveByName(t *testing.T) {
	r := NewIdentifier(seededMock())

	// Exact name, case-insensitive.
	c, err := r.Resolve(context.Background(), "kids ipad")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:01", c.MAC)

	// Hostname stands in when no name is set.
	c, err = r.Resolve(context.Background(), "printer-upstairs")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:03", c.MAC)

	// Unique substring.
	c, err = r.Resolve(context.Background(), "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:02", c.MAC)
}

func TestResolveAmbiguous(t *testing.T) {
	r := NewIdentifier(seededMock())

	// "tablet" substring-matches two clients.
	_, err := r.Resolve(context.Background(), "tablet")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeClientAmbiguous))

	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	candidates, ok := appErr.Params["candidates"].([]string)
	require.True(t, ok)
	assert.Len(t, candidates, 2)
}

func TestResolveExactBeatsSubstring(t *testing.T) {
	mock := controller.NewMock()
	mock.Seed([]controller.Client{
		{MAC: "aa:bb:cc:dd:ee:01", Name: "TV"},
		{MAC: "aa:bb:cc:dd:ee:02", Name: "TV Bedroom"},
	})
	r := NewIdentifier(mock)

	c, err := r.Resolve(context.Background(), "tv")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:01", c.MAC)
}

func TestResolveNotFound(t *testing.T) {
	r := NewIdentifier(seededMock())

	_, err := r.Resolve(context.Background(), "toaster")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeClientNotFound))
}

func TestResolveDuplicateExactIsAmbiguous(t *testing.T) {
	mock := controller.NewMock()
	mock.Seed([]controller.Client{
		{MAC: "aa:bb:cc:dd:ee:01", Name: "Phone"},
		{MAC: "aa:bb:cc:dd:ee:02", Name: "phone"},
	})
	r := NewIdentifier(mock)

	_, err := r.Resolve(context.Background(), "Phone")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeClientAmbiguous))
}
