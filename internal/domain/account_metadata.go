package domain

import (
	"fmt"
	"time"
)

type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleStaff AccountRole = "staff"
	RoleAdmin AccountRole = "admin"
)

func (r AccountRole) rank() int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleStaff:
		return 1
	default:
		return 0
	}
}

func (r AccountRole) HasPermissionOf(other AccountRole) bool {
	return r.rank() >= other.rank()
}

// trustScoreFloor is the lowest a trust score can go; a decrease that lands
// on the floor triggers an automatic shadowban in the same call.
const trustScoreFloor = 0

// AccountMetadata carries moderation and trust state, kept apart from the
// public Account aggregate.
type AccountMetadata struct {
	AccountID        string      `db:"account_id"`
	Region           string      `db:"region_code"`
	Role             AccountRole `db:"role"`
	IsBetaTester     bool        `db:"is_beta_tester"`
	IsShadowbanned   bool        `db:"is_shadowbanned"`
	TrustScore       int64       `db:"trust_score"`
	LastModerationAt *time.Time  `db:"last_moderation_at"`
	ModerationNotes  string      `db:"moderation_notes"`
	UpdatedAt        time.Time   `db:"updated_at"`
	Version          int64       `db:"version"`
}

func NewAccountMetadata(accountID, region string, initialScore int64) *AccountMetadata {
	return &AccountMetadata{
		AccountID:  accountID,
		Region:     region,
		Role:       RoleUser,
		TrustScore: initialScore,
		UpdatedAt:  time.Now().UTC(),
		Version:    1,
	}
}

func (m *AccountMetadata) AggregateType() string   { return AggregateTypeAccountMetadata }
func (m *AccountMetadata) AggregateID() string     { return m.AccountID }
func (m *AccountMetadata) AggregateRegion() string { return m.Region }
func (m *AccountMetadata) AggregateVersion() int64 { return m.Version }

func (m *AccountMetadata) IsHighTrust() bool {
	return m.TrustScore > 100 && !m.IsShadowbanned
}

func (m *AccountMetadata) IsStaff() bool {
	return m.Role.HasPermissionOf(RoleStaff)
}

func (m *AccountMetadata) touch() {
	m.Version++
	m.UpdatedAt = time.Now().UTC()
}

func (m *AccountMetadata) event(eventType string, payload map[string]any) Event {
	return newEvent(AggregateTypeAccountMetadata, m.AccountID, m.Region, eventType, m.UpdatedAt, payload)
}

// recordModeration appends to the audit trail kept on the row itself.
func (m *AccountMetadata) recordModeration(entry string) {
	now := time.Now().UTC()
	line := fmt.Sprintf("[%s] %s", now.Format("2006-01-02 15:04:05"), entry)
	if m.ModerationNotes == "" {
		m.ModerationNotes = line
	} else {
		m.ModerationNotes += "\n" + line
	}
	m.LastModerationAt = &now
}

func (m *AccountMetadata) SetBetaStatus(region string, enabled bool, reason string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountMetadata, m.Region, region); err != nil {
		return nil, err
	}
	if m.IsBetaTester == enabled {
		return nil, nil
	}

	m.IsBetaTester = enabled
	action := "disabled"
	if enabled {
		action = "enabled"
	}
	m.recordModeration(fmt.Sprintf("Beta tester mode %s: %s", action, reason))
	m.touch()
	return []Event{m.event("BetaStatusChanged", map[string]any{
		"is_beta_tester": enabled,
	})}, nil
}

func (m *AccountMetadata) IncreaseTrustScore(region string, amount int64, reason string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountMetadata, m.Region, region); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, NewValidationError("amount", "trust score adjustment must be positive")
	}

	m.TrustScore += amount
	m.recordModeration(fmt.Sprintf("Score increased by %d: %s", amount, reason))
	m.touch()
	return []Event{m.event("TrustScoreAdjusted", map[string]any{
		"delta":     amount,
		"new_score": m.TrustScore,
		"reason":    reason,
	})}, nil
}

// DecreaseTrustScore clamps at the floor. Hitting the floor shadowbans the
// account as a compound effect of the same call: one version bump, two events.
func (m *AccountMetadata) DecreaseTrustScore(region string, amount int64, reason string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountMetadata, m.Region, region); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, NewValidationError("amount", "trust score adjustment must be positive")
	}

	newScore := m.TrustScore - amount
	if newScore < trustScoreFloor {
		newScore = trustScoreFloor
	}
	if newScore == m.TrustScore {
		return nil, nil
	}

	delta := newScore - m.TrustScore
	m.TrustScore = newScore
	m.recordModeration(fmt.Sprintf("Score decreased by %d: %s", -delta, reason))
	m.touch()

	events := []Event{m.event("TrustScoreAdjusted", map[string]any{
		"delta":     delta,
		"new_score": m.TrustScore,
		"reason":    reason,
	})}

	if m.TrustScore == trustScoreFloor && !m.IsShadowbanned {
		autoReason := fmt.Sprintf("automated: trust score critical (%d)", m.TrustScore)
		m.IsShadowbanned = true
		m.recordModeration("Shadowbanned: " + autoReason)
		events = append(events, m.event("ShadowbanStatusChanged", map[string]any{
			"is_shadowbanned": true,
			"reason":          autoReason,
		}))
	}

	return events, nil
}

func (m *AccountMetadata) Shadowban(region, reason string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountMetadata, m.Region, region); err != nil {
		return nil, err
	}
	if m.IsShadowbanned {
		return nil, nil
	}

	m.IsShadowbanned = true
	m.recordModeration("Shadowbanned: " + reason)
	m.touch()
	return []Event{m.event("ShadowbanStatusChanged", map[string]any{
		"is_shadowbanned": true,
		"reason":          reason,
	})}, nil
}

func (m *AccountMetadata) LiftShadowban(region, reason string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountMetadata, m.Region, region); err != nil {
		return nil, err
	}
	if !m.IsShadowbanned {
		return nil, nil
	}

	m.IsShadowbanned = false
	m.recordModeration("Shadowban lifted: " + reason)
	m.touch()
	return []Event{m.event("ShadowbanStatusChanged", map[string]any{
		"is_shadowbanned": false,
		"reason":          reason,
	})}, nil
}

func (m *AccountMetadata) UpgradeRole(region string, newRole AccountRole, reason string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountMetadata, m.Region, region); err != nil {
		return nil, err
	}
	if m.Role == newRole {
		return nil, nil
	}

	oldRole := m.Role
	m.Role = newRole
	m.recordModeration(fmt.Sprintf("Role changed to %s: %s", newRole, reason))
	m.touch()
	return []Event{m.event("AccountRoleChanged", map[string]any{
		"old_role": string(oldRole),
		"new_role": string(newRole),
		"reason":   reason,
	})}, nil
}

func (m *AccountMetadata) ChangeRegion(newRegion string) ([]Event, error) {
	if m.Region == newRegion {
		return nil, nil
	}

	oldRegion := m.Region
	m.Region = newRegion
	m.touch()
	return []Event{m.event("AccountRegionChanged", map[string]any{
		"old_region": oldRegion,
		"new_region": newRegion,
	})}, nil
}
