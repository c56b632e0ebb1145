package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecreaseTrustScoreToFloorShadowbans(t *testing.T) {
	meta := NewAccountMetadata("acc-1", "eu", 50)

	events, err := meta.DecreaseTrustScore("eu", 60, "spam reports")
	require.NoError(t, err)

	// One mutating call: one version bump, two events.
	require.Len(t, events, 2)
	assert.Equal(t, "TrustScoreAdjusted", events[0].Type)
	assert.Equal(t, int64(-50), events[0].Payload["delta"])
	assert.Equal(t, int64(0), events[0].Payload["new_score"])
	assert.Equal(t, "ShadowbanStatusChanged", events[1].Type)
	assert.Equal(t, true, events[1].Payload["is_shadowbanned"])

	assert.Equal(t, int64(0), meta.TrustScore)
	assert.True(t, meta.IsShadowbanned)
	assert.Equal(t, int64(2), meta.Version)
}

func TestDecreaseTrustScoreAboveFloorStaysSingleEvent(t *testing.T) {
	meta := NewAccountMetadata("acc-1", "eu", 50)

	events, err := meta.DecreaseTrustScore("eu", 10, "minor infraction")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(40), meta.TrustScore)
	assert.False(t, meta.IsShadowbanned)
}

func TestDecreaseTrustScoreAtFloorIsNoOp(t *testing.T) {
	meta := NewAccountMetadata("acc-1", "eu", 0)

	events, err := meta.DecreaseTrustScore("eu", 5, "already at floor")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(1), meta.Version)
	assert.False(t, meta.IsShadowbanned, "no decrease happened, no shadowban")
}

func TestDecreaseToFloorWhenAlreadyShadowbanned(t *testing.T) {
	meta := NewAccountMetadata("acc-1", "eu", 30)
	_, err := meta.Shadowban("eu", "manual action")
	require.NoError(t, err)

	events, err := meta.DecreaseTrustScore("eu", 100, "more reports")
	require.NoError(t, err)
	require.Len(t, events, 1, "shadowban is not re-emitted")
	assert.Equal(t, "TrustScoreAdjusted", events[0].Type)
}

func TestShadowbanIdempotence(t *testing.T) {
	meta := NewAccountMetadata("acc-1", "eu", 10)

	events, err := meta.Shadowban("eu", "spam")
	require.NoError(t, err)
	require.Len(t, events, 1)

	again, err := meta.Shadowban("eu", "spam again")
	require.NoError(t, err)
	assert.Empty(t, again)

	lifted, err := meta.LiftShadowban("eu", "appeal accepted")
	require.NoError(t, err)
	require.Len(t, lifted, 1)
	assert.Equal(t, false, lifted[0].Payload["is_shadowbanned"])
}

func TestTrustScoreRejectsNonPositiveAmounts(t *testing.T) {
	meta := NewAccountMetadata("acc-1", "eu", 10)

	_, err := meta.IncreaseTrustScore("eu", 0, "nothing")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = meta.DecreaseTrustScore("eu", -3, "nothing")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMetadataRegionGuard(t *testing.T) {
	meta := NewAccountMetadata("acc-1", "eu", 10)

	_, err := meta.Shadowban("us", "wrong shard")
	require.ErrorIs(t, err, ErrForbidden)
	assert.False(t, meta.IsShadowbanned)
	assert.Equal(t, int64(1), meta.Version)
}

func TestUpgradeRoleRecordsModerationTrail(t *testing.T) {
	meta := NewAccountMetadata("acc-1", "eu", 10)

	events, err := meta.UpgradeRole("eu", RoleStaff, "new hire")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, meta.IsStaff())
	assert.Contains(t, meta.ModerationNotes, "Role changed to staff: new hire")
	require.NotNil(t, meta.LastModerationAt)

	noop, err := meta.UpgradeRole("eu", RoleStaff, "again")
	require.NoError(t, err)
	assert.Empty(t, noop)
}
