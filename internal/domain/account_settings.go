package domain

import (
	"slices"
	"strings"
	"time"
)

type ThemeMode string

const (
	ThemeSystem ThemeMode = "system"
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
)

type PrivacySettings struct {
	ProfileVisibleToPublic bool `json:"profile_visible_to_public"`
	ShowLastActive         bool `json:"show_last_active"`
	AllowIndexing          bool `json:"allow_indexing"`
}

type NotificationSettings struct {
	EmailEnabled       bool `json:"email_enabled"`
	PushEnabled        bool `json:"push_enabled"`
	MarketingOptIn     bool `json:"marketing_opt_in"`
	SecurityAlertsOnly bool `json:"security_alerts_only"`
}

type AppearanceSettings struct {
	Theme        ThemeMode `json:"theme"`
	HighContrast bool      `json:"high_contrast"`
}

// maxPushTokens caps the token list per account; adding beyond the cap
// rotates the oldest token out (FIFO).
const maxPushTokens = 10

type AccountSettings struct {
	AccountID     string               `db:"account_id"`
	Region        string               `db:"region_code"`
	Privacy       PrivacySettings      `db:"privacy"`
	Notifications NotificationSettings `db:"notifications"`
	Appearance    AppearanceSettings   `db:"appearance"`
	Timezone      string               `db:"timezone"`
	PushTokens    []string             `db:"push_tokens"`
	UpdatedAt     time.Time            `db:"updated_at"`
	Version       int64                `db:"version"`
}

func NewAccountSettings(accountID, region string) *AccountSettings {
	return &AccountSettings{
		AccountID: accountID,
		Region:    region,
		Privacy: PrivacySettings{
			ProfileVisibleToPublic: true,
			ShowLastActive:         true,
			AllowIndexing:          true,
		},
		Notifications: NotificationSettings{
			EmailEnabled: true,
			PushEnabled:  true,
		},
		Appearance: AppearanceSettings{Theme: ThemeSystem},
		Timezone:   "UTC",
		UpdatedAt:  time.Now().UTC(),
		Version:    1,
	}
}

func (s *AccountSettings) AggregateType() string   { return AggregateTypeAccountSettings }
func (s *AccountSettings) AggregateID() string     { return s.AccountID }
func (s *AccountSettings) AggregateRegion() string { return s.Region }
func (s *AccountSettings) AggregateVersion() int64 { return s.Version }

func (s *AccountSettings) touch() {
	s.Version++
	s.UpdatedAt = time.Now().UTC()
}

func (s *AccountSettings) event(eventType string, payload map[string]any) Event {
	return newEvent(AggregateTypeAccountSettings, s.AccountID, s.Region, eventType, s.UpdatedAt, payload)
}

// UpdateTimezone rejects timezones inconsistent with the account's shard,
// e.g. an America/* timezone on a European region.
func (s *AccountSettings) UpdateTimezone(region, newTimezone string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountSettings, s.Region, region); err != nil {
		return nil, err
	}
	if s.Timezone == newTimezone {
		return nil, nil
	}
	if s.Region == "eu" && strings.HasPrefix(newTimezone, "America/") {
		return nil, NewValidationError("timezone", "inconsistent timezone for European region")
	}

	s.Timezone = newTimezone
	s.touch()
	return []Event{s.event("TimezoneChanged", map[string]any{
		"new_timezone": newTimezone,
	})}, nil
}

func (s *AccountSettings) UpdatePreferences(region string, privacy *PrivacySettings, notifications *NotificationSettings, appearance *AppearanceSettings) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountSettings, s.Region, region); err != nil {
		return nil, err
	}

	changed := false
	if privacy != nil && *privacy != s.Privacy {
		s.Privacy = *privacy
		changed = true
	}
	if notifications != nil && *notifications != s.Notifications {
		s.Notifications = *notifications
		changed = true
	}
	if appearance != nil && *appearance != s.Appearance {
		s.Appearance = *appearance
		changed = true
	}
	if !changed {
		return nil, nil
	}

	s.touch()
	return []Event{s.event("PreferencesUpdated", map[string]any{
		"privacy":       s.Privacy,
		"notifications": s.Notifications,
		"appearance":    s.Appearance,
	})}, nil
}

func (s *AccountSettings) AddPushToken(region, token string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountSettings, s.Region, region); err != nil {
		return nil, err
	}
	if slices.Contains(s.PushTokens, token) {
		return nil, nil
	}

	if len(s.PushTokens) >= maxPushTokens {
		s.PushTokens = s.PushTokens[1:]
	}
	s.PushTokens = append(s.PushTokens, token)
	s.touch()
	return []Event{s.event("PushTokenAdded", map[string]any{
		"token": token,
	})}, nil
}

func (s *AccountSettings) RemovePushToken(region, token string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccountSettings, s.Region, region); err != nil {
		return nil, err
	}

	before := len(s.PushTokens)
	s.PushTokens = slices.DeleteFunc(s.PushTokens, func(t string) bool { return t == token })
	if len(s.PushTokens) == before {
		return nil, nil
	}

	s.touch()
	return []Event{s.event("PushTokenRemoved", map[string]any{
		"token": token,
	})}, nil
}

func (s *AccountSettings) ChangeRegion(newRegion string) ([]Event, error) {
	if s.Region == newRegion {
		return nil, nil
	}

	oldRegion := s.Region
	s.Region = newRegion
	s.touch()
	return []Event{s.event("AccountRegionChanged", map[string]any{
		"old_region": oldRegion,
		"new_region": newRegion,
	})}, nil
}
