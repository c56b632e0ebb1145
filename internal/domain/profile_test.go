package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateHandleEmitsOldAndNew(t *testing.T) {
	profile := NewProfile("acc-1", "eu", "Alice", "alice")

	events, err := profile.UpdateHandle("eu", "alice_v2")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "HandleChanged", events[0].Type)
	assert.Equal(t, "alice", events[0].Payload["old_handle"])
	assert.Equal(t, "alice_v2", events[0].Payload["new_handle"])
	assert.Equal(t, int64(2), profile.Version)

	noop, err := profile.UpdateHandle("eu", "alice_v2")
	require.NoError(t, err)
	assert.Empty(t, noop)
	assert.Equal(t, int64(2), profile.Version)
}

func TestProfileRegionGuard(t *testing.T) {
	profile := NewProfile("acc-1", "eu", "Alice", "alice")

	_, err := profile.UpdateBio("us", "hi")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "", profile.Bio)
	assert.Equal(t, int64(1), profile.Version)
}

func TestDecrementPostCountStopsAtZero(t *testing.T) {
	profile := NewProfile("acc-1", "eu", "Alice", "alice")

	events, err := profile.DecrementPostCount("eu", "post-1")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(0), profile.PostCount)
	assert.Equal(t, int64(1), profile.Version)
}

func TestIncrementPostCountSnapshotsEveryTenth(t *testing.T) {
	profile := NewProfile("acc-1", "eu", "Alice", "alice")
	profile.RestoreStats(ProfileStats{FollowerCount: 7, FollowingCount: 3})

	for i := 1; i <= 9; i++ {
		events, err := profile.IncrementPostCount("eu", fmt.Sprintf("post-%d", i))
		require.NoError(t, err)
		require.Len(t, events, 1)
	}

	events, err := profile.IncrementPostCount("eu", "post-10")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "StatsSnapshotUpdated", events[1].Type)
	assert.Equal(t, int64(7), events[1].Payload["follower_count"])
	assert.Equal(t, int64(10), events[1].Payload["post_count"])
	assert.Equal(t, int64(11), profile.Version, "ten mutating calls, ten bumps")
}

func TestRestoreStatsDoesNotTouchVersion(t *testing.T) {
	profile := NewProfile("acc-1", "eu", "Alice", "alice")
	updatedAt := profile.UpdatedAt

	profile.RestoreStats(ProfileStats{FollowerCount: 100, FollowingCount: 50})

	assert.Equal(t, int64(1), profile.Version)
	assert.Equal(t, updatedAt, profile.UpdatedAt)
	assert.Equal(t, int64(100), profile.Stats.FollowerCount)
}

func TestUpdateSocialLinksComparesByContent(t *testing.T) {
	profile := NewProfile("acc-1", "eu", "Alice", "alice")

	links := map[string]string{"github": "https://github.com/alice"}
	events, err := profile.UpdateSocialLinks("eu", links)
	require.NoError(t, err)
	require.Len(t, events, 1)

	same := map[string]string{"github": "https://github.com/alice"}
	noop, err := profile.UpdateSocialLinks("eu", same)
	require.NoError(t, err)
	assert.Empty(t, noop)
	assert.Equal(t, int64(2), profile.Version)
}

func TestRemoveAvatarWhenEmptyIsNoOp(t *testing.T) {
	profile := NewProfile("acc-1", "eu", "Alice", "alice")

	noop, err := profile.RemoveAvatar("eu")
	require.NoError(t, err)
	assert.Empty(t, noop)

	_, err = profile.UpdateAvatar("eu", "https://cdn.example.com/a.png")
	require.NoError(t, err)

	events, err := profile.RemoveAvatar("eu")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "https://cdn.example.com/a.png", events[0].Payload["old_avatar_url"])
	assert.Equal(t, "", profile.AvatarURL)
}

func TestUpdatePrivacyToggles(t *testing.T) {
	profile := NewProfile("acc-1", "eu", "Alice", "alice")

	events, err := profile.UpdatePrivacy("eu", true)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, profile.IsPrivate)

	noop, err := profile.UpdatePrivacy("eu", true)
	require.NoError(t, err)
	assert.Empty(t, noop)
}
