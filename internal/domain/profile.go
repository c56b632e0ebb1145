package domain

import (
	"maps"
	"time"
)

// ProfileStats are the high-churn counters kept in the counter store and
// merged into the profile view on read. They carry no version: the identity
// row is the source of truth for existence, stats are best-effort enrichment.
type ProfileStats struct {
	FollowerCount  int64 `json:"follower_count"`
	FollowingCount int64 `json:"following_count"`
}

// Profile is the public-facing aggregate of one account, keyed by the same
// id and pinned to the same region.
type Profile struct {
	AccountID     string            `db:"account_id"`
	Region        string            `db:"region_code"`
	DisplayName   string            `db:"display_name"`
	Handle        string            `db:"handle"`
	Bio           string            `db:"bio"`
	AvatarURL     string            `db:"avatar_url"`
	BannerURL     string            `db:"banner_url"`
	LocationLabel string            `db:"location_label"`
	SocialLinks   map[string]string `db:"social_links"`
	Stats         ProfileStats      `db:"-"`
	PostCount     int64             `db:"post_count"`
	IsPrivate     bool              `db:"is_private"`
	CreatedAt     time.Time         `db:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at"`
	Version       int64             `db:"version"`
}

func NewProfile(accountID, region, displayName, handle string) *Profile {
	now := time.Now().UTC()
	return &Profile{
		AccountID:   accountID,
		Region:      region,
		DisplayName: displayName,
		Handle:      handle,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
}

func (p *Profile) AggregateType() string   { return AggregateTypeProfile }
func (p *Profile) AggregateID() string     { return p.AccountID }
func (p *Profile) AggregateRegion() string { return p.Region }
func (p *Profile) AggregateVersion() int64 { return p.Version }

// RestoreStats injects counters fetched from the counter store. It touches
// neither version nor updated_at: stats are not part of the identity row.
func (p *Profile) RestoreStats(stats ProfileStats) {
	p.Stats = stats
}

func (p *Profile) touch() {
	p.Version++
	p.UpdatedAt = time.Now().UTC()
}

func (p *Profile) event(eventType string, payload map[string]any) Event {
	return newEvent(AggregateTypeProfile, p.AccountID, p.Region, eventType, p.UpdatedAt, payload)
}

func (p *Profile) Created() []Event {
	return []Event{p.event("ProfileCreated", map[string]any{
		"display_name": p.DisplayName,
		"handle":       p.Handle,
	})}
}

func (p *Profile) UpdateDisplayName(region, newName string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.DisplayName == newName {
		return nil, nil
	}

	oldName := p.DisplayName
	p.DisplayName = newName
	p.touch()
	return []Event{p.event("DisplayNameChanged", map[string]any{
		"old_display_name": oldName,
		"new_display_name": newName,
	})}, nil
}

// UpdateHandle changes the identity key other users resolve this profile by.
// The repository invalidates the old handle index as part of the same write.
func (p *Profile) UpdateHandle(region, newHandle string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.Handle == newHandle {
		return nil, nil
	}

	oldHandle := p.Handle
	p.Handle = newHandle
	p.touch()
	return []Event{p.event("HandleChanged", map[string]any{
		"old_handle": oldHandle,
		"new_handle": newHandle,
	})}, nil
}

func (p *Profile) UpdateBio(region, newBio string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.Bio == newBio {
		return nil, nil
	}

	oldBio := p.Bio
	p.Bio = newBio
	p.touch()
	return []Event{p.event("BioUpdated", map[string]any{
		"old_bio": oldBio,
		"new_bio": newBio,
	})}, nil
}

func (p *Profile) UpdateAvatar(region, newURL string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.AvatarURL == newURL {
		return nil, nil
	}

	oldURL := p.AvatarURL
	p.AvatarURL = newURL
	p.touch()
	return []Event{p.event("AvatarUpdated", map[string]any{
		"old_avatar_url": oldURL,
		"new_avatar_url": newURL,
	})}, nil
}

func (p *Profile) RemoveAvatar(region string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.AvatarURL == "" {
		return nil, nil
	}

	oldURL := p.AvatarURL
	p.AvatarURL = ""
	p.touch()
	return []Event{p.event("AvatarRemoved", map[string]any{
		"old_avatar_url": oldURL,
	})}, nil
}

func (p *Profile) UpdateBanner(region, newURL string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.BannerURL == newURL {
		return nil, nil
	}

	oldURL := p.BannerURL
	p.BannerURL = newURL
	p.touch()
	return []Event{p.event("BannerUpdated", map[string]any{
		"old_banner_url": oldURL,
		"new_banner_url": newURL,
	})}, nil
}

func (p *Profile) RemoveBanner(region string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.BannerURL == "" {
		return nil, nil
	}

	oldURL := p.BannerURL
	p.BannerURL = ""
	p.touch()
	return []Event{p.event("BannerRemoved", map[string]any{
		"old_banner_url": oldURL,
	})}, nil
}

func (p *Profile) UpdateSocialLinks(region string, newLinks map[string]string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if maps.Equal(p.SocialLinks, newLinks) {
		return nil, nil
	}

	oldLinks := p.SocialLinks
	p.SocialLinks = newLinks
	p.touch()
	return []Event{p.event("SocialLinksUpdated", map[string]any{
		"old_links": oldLinks,
		"new_links": newLinks,
	})}, nil
}

func (p *Profile) UpdateLocationLabel(region, newLabel string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.LocationLabel == newLabel {
		return nil, nil
	}

	oldLabel := p.LocationLabel
	p.LocationLabel = newLabel
	p.touch()
	return []Event{p.event("LocationLabelUpdated", map[string]any{
		"old_location": oldLabel,
		"new_location": newLabel,
	})}, nil
}

func (p *Profile) UpdatePrivacy(region string, isPrivate bool) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.IsPrivate == isPrivate {
		return nil, nil
	}

	p.IsPrivate = isPrivate
	p.touch()
	return []Event{p.event("PrivacySettingsChanged", map[string]any{
		"is_private": isPrivate,
	})}, nil
}

// IncrementPostCount records one published post. Every tenth post also emits
// a stats snapshot so downstream projections can resync cheaply.
func (p *Profile) IncrementPostCount(region, postID string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}

	p.PostCount++
	p.touch()
	events := []Event{p.event("PostCountIncremented", map[string]any{
		"post_id":   postID,
		"new_count": p.PostCount,
	})}
	if p.PostCount%10 == 0 {
		events = append(events, p.statsSnapshot())
	}
	return events, nil
}

// DecrementPostCount is a no-op at zero so replayed deletions cannot drive
// the counter negative.
func (p *Profile) DecrementPostCount(region, postID string) ([]Event, error) {
	if err := guardRegion(AggregateTypeProfile, p.Region, region); err != nil {
		return nil, err
	}
	if p.PostCount == 0 {
		return nil, nil
	}

	p.PostCount--
	p.touch()
	events := []Event{p.event("PostCountDecremented", map[string]any{
		"post_id":   postID,
		"new_count": p.PostCount,
	})}
	if p.PostCount%10 == 0 {
		events = append(events, p.statsSnapshot())
	}
	return events, nil
}

func (p *Profile) statsSnapshot() Event {
	return p.event("StatsSnapshotUpdated", map[string]any{
		"follower_count":  p.Stats.FollowerCount,
		"following_count": p.Stats.FollowingCount,
		"post_count":      p.PostCount,
	})
}
