package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTimezoneRegionConsistency(t *testing.T) {
	settings := NewAccountSettings("acc-1", "eu")

	_, err := settings.UpdateTimezone("eu", "America/New_York")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "UTC", settings.Timezone)
	assert.Equal(t, int64(1), settings.Version)

	events, err := settings.UpdateTimezone("eu", "Europe/Paris")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Europe/Paris", settings.Timezone)
	assert.Equal(t, int64(2), settings.Version)
}

func TestUpdateTimezoneAllowsAmericaOutsideEU(t *testing.T) {
	settings := NewAccountSettings("acc-1", "us")

	events, err := settings.UpdateTimezone("us", "America/New_York")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "America/New_York", settings.Timezone)
}

func TestAddPushTokenRotatesOldestAtCap(t *testing.T) {
	settings := NewAccountSettings("acc-1", "eu")

	for i := 0; i < maxPushTokens; i++ {
		_, err := settings.AddPushToken("eu", fmt.Sprintf("token-%d", i))
		require.NoError(t, err)
	}
	require.Len(t, settings.PushTokens, maxPushTokens)

	events, err := settings.AddPushToken("eu", "token-new")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Len(t, settings.PushTokens, maxPushTokens)
	assert.NotContains(t, settings.PushTokens, "token-0")
	assert.Equal(t, "token-new", settings.PushTokens[maxPushTokens-1])
}

func TestAddPushTokenDuplicateIsNoOp(t *testing.T) {
	settings := NewAccountSettings("acc-1", "eu")

	_, err := settings.AddPushToken("eu", "token-a")
	require.NoError(t, err)

	events, err := settings.AddPushToken("eu", "token-a")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(2), settings.Version)
}

func TestRemovePushToken(t *testing.T) {
	settings := NewAccountSettings("acc-1", "eu")
	_, err := settings.AddPushToken("eu", "token-a")
	require.NoError(t, err)

	events, err := settings.RemovePushToken("eu", "token-a")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, settings.PushTokens)

	again, err := settings.RemovePushToken("eu", "token-a")
	require.NoError(t, err)
	assert.Empty(t, again, "removing an absent token changes nothing")
}

func TestUpdatePreferencesPartialChange(t *testing.T) {
	settings := NewAccountSettings("acc-1", "eu")

	appearance := settings.Appearance
	appearance.Theme = ThemeDark

	events, err := settings.UpdatePreferences("eu", nil, nil, &appearance)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "PreferencesUpdated", events[0].Type)
	assert.Equal(t, ThemeDark, settings.Appearance.Theme)
	assert.Equal(t, int64(2), settings.Version)
}

func TestUpdatePreferencesIdenticalValuesAreNoOp(t *testing.T) {
	settings := NewAccountSettings("acc-1", "eu")

	privacy := settings.Privacy
	notifications := settings.Notifications

	events, err := settings.UpdatePreferences("eu", &privacy, &notifications, nil)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(1), settings.Version)
}

func TestSettingsRegionGuard(t *testing.T) {
	settings := NewAccountSettings("acc-1", "eu")

	_, err := settings.AddPushToken("us", "token-a")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, settings.PushTokens)
}
