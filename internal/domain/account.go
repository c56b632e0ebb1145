package domain

import (
	"time"
)

type AccountState string

const (
	AccountStatePending     AccountState = "pending"
	AccountStateActive      AccountState = "active"
	AccountStateDeactivated AccountState = "deactivated"
	AccountStateSuspended   AccountState = "suspended"
	AccountStateBanned      AccountState = "banned"
)

// Account owns identity, security and lifecycle of one user account,
// pinned to the region that stores it.
type Account struct {
	ID            string       `db:"id"`
	Region        string       `db:"region_code"`
	ExternalID    string       `db:"external_id"`
	Username      string       `db:"username"`
	Email         string       `db:"email"`
	EmailVerified bool         `db:"email_verified"`
	PhoneNumber   string       `db:"phone_number"`
	PhoneVerified bool         `db:"phone_verified"`
	State         AccountState `db:"state"`
	BirthDate     *time.Time   `db:"birth_date"`
	Locale        string       `db:"locale"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
	LastActiveAt  *time.Time   `db:"last_active_at"`
	Version       int64        `db:"version"`
}

func NewAccount(id, region, username, email, externalID string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:         id,
		Region:     region,
		ExternalID: externalID,
		Username:   username,
		Email:      email,
		State:      AccountStatePending,
		Locale:     "en-US",
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
}

func (a *Account) AggregateType() string   { return AggregateTypeAccount }
func (a *Account) AggregateID() string     { return a.ID }
func (a *Account) AggregateRegion() string { return a.Region }
func (a *Account) AggregateVersion() int64 { return a.Version }

func (a *Account) IsBlocked() bool {
	switch a.State {
	case AccountStateBanned, AccountStateSuspended, AccountStateDeactivated:
		return true
	}
	return false
}

func (a *Account) IsActive() bool   { return a.State == AccountStateActive }
func (a *Account) IsVerified() bool { return a.EmailVerified || a.PhoneVerified }

// touch applies the bookkeeping shared by every real state change: exactly
// one version bump per successful mutating call, however many events it emits.
func (a *Account) touch() {
	a.Version++
	a.UpdatedAt = time.Now().UTC()
}

func (a *Account) event(eventType string, payload map[string]any) Event {
	return newEvent(AggregateTypeAccount, a.ID, a.Region, eventType, a.UpdatedAt, payload)
}

// Created emits the creation event for a freshly built account. The initial
// version stays at 1; the first save takes the unconditional insert path.
func (a *Account) Created() []Event {
	return []Event{a.event("AccountCreated", map[string]any{
		"username": a.Username,
		"email":    a.Email,
	})}
}

// Deleted emits the terminal event for an account being removed across all
// stores.
func (a *Account) Deleted() []Event {
	return []Event{a.event("AccountDeleted", map[string]any{
		"username": a.Username,
	})}
}

// LinkExternalIdentity binds the external provider subject to this account.
// Re-linking an already bound account is refused.
func (a *Account) LinkExternalIdentity(region, externalID string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.ExternalID == externalID {
		return nil, nil
	}
	if a.ExternalID != "" {
		return nil, NewForbiddenError("account is already linked to an external provider")
	}

	a.ExternalID = externalID
	a.touch()
	return []Event{a.event("ExternalIdentityLinked", map[string]any{
		"external_id": externalID,
	})}, nil
}

func (a *Account) ChangeEmail(region, newEmail string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.Email == newEmail {
		return nil, nil
	}
	if a.IsBlocked() {
		return nil, NewForbiddenError("cannot change email of a restricted account")
	}

	oldEmail := a.Email
	a.Email = newEmail
	a.EmailVerified = false
	a.touch()
	return []Event{a.event("EmailChanged", map[string]any{
		"old_email": oldEmail,
		"new_email": newEmail,
	})}, nil
}

// VerifyEmail also promotes a pending account to active.
func (a *Account) VerifyEmail(region string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.EmailVerified {
		return nil, nil
	}

	a.EmailVerified = true
	if a.State == AccountStatePending {
		a.State = AccountStateActive
	}
	a.touch()
	return []Event{a.event("EmailVerified", nil)}, nil
}

func (a *Account) ChangePhoneNumber(region, newPhone string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.PhoneNumber == newPhone {
		return nil, nil
	}

	oldPhone := a.PhoneNumber
	a.PhoneNumber = newPhone
	a.PhoneVerified = false
	a.touch()
	return []Event{a.event("PhoneNumberChanged", map[string]any{
		"old_phone_number": oldPhone,
		"new_phone_number": newPhone,
	})}, nil
}

func (a *Account) VerifyPhone(region string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.PhoneVerified {
		return nil, nil
	}

	a.PhoneVerified = true
	a.touch()
	return []Event{a.event("PhoneVerified", nil)}, nil
}

func (a *Account) ChangeUsername(region, newUsername string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.Username == newUsername {
		return nil, nil
	}
	if a.IsBlocked() {
		return nil, NewForbiddenError("cannot change username of a restricted account")
	}

	oldUsername := a.Username
	a.Username = newUsername
	a.touch()
	return []Event{a.event("UsernameChanged", map[string]any{
		"old_username": oldUsername,
		"new_username": newUsername,
	})}, nil
}

func (a *Account) ChangeBirthDate(region string, newDate time.Time) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.BirthDate != nil && a.BirthDate.Equal(newDate) {
		return nil, nil
	}
	if a.IsBlocked() {
		return nil, NewForbiddenError("cannot update restricted account profile")
	}

	a.BirthDate = &newDate
	a.touch()
	return []Event{a.event("BirthDateChanged", nil)}, nil
}

func (a *Account) UpdateLocale(region, newLocale string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.Locale == newLocale {
		return nil, nil
	}

	a.Locale = newLocale
	a.touch()
	return []Event{a.event("LocaleChanged", map[string]any{
		"new_locale": newLocale,
	})}, nil
}

// ChangeRegion is the single mutation allowed to cross the residency
// boundary, so it takes no region guard.
func (a *Account) ChangeRegion(newRegion string) ([]Event, error) {
	if a.Region == newRegion {
		return nil, nil
	}

	oldRegion := a.Region
	a.Region = newRegion
	a.touch()
	return []Event{a.event("AccountRegionChanged", map[string]any{
		"old_region": oldRegion,
		"new_region": newRegion,
	})}, nil
}

func (a *Account) Deactivate(region string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.State == AccountStateDeactivated {
		return nil, nil
	}

	a.State = AccountStateDeactivated
	a.touch()
	return []Event{a.event("AccountDeactivated", nil)}, nil
}

// Reactivate only applies to accounts the user deactivated themselves;
// moderation states need their own lift operations.
func (a *Account) Reactivate(region string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.IsActive() {
		return nil, nil
	}
	if a.State != AccountStateDeactivated {
		return nil, NewForbiddenError("only deactivated accounts can be reactivated manually")
	}

	a.State = AccountStateActive
	a.touch()
	return []Event{a.event("AccountReactivated", nil)}, nil
}

func (a *Account) Suspend(region, reason string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.State == AccountStateSuspended {
		return nil, nil
	}

	a.State = AccountStateSuspended
	a.touch()
	return []Event{a.event("AccountSuspended", map[string]any{
		"reason": reason,
	})}, nil
}

func (a *Account) Unsuspend(region string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.State != AccountStateSuspended {
		return nil, nil
	}

	a.State = AccountStateActive
	a.touch()
	return []Event{a.event("AccountUnsuspended", nil)}, nil
}

func (a *Account) Ban(region, reason string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.State == AccountStateBanned {
		return nil, nil
	}

	a.State = AccountStateBanned
	a.touch()
	return []Event{a.event("AccountBanned", map[string]any{
		"reason": reason,
	})}, nil
}

func (a *Account) Unban(region string) ([]Event, error) {
	if err := guardRegion(AggregateTypeAccount, a.Region, region); err != nil {
		return nil, err
	}
	if a.State != AccountStateBanned {
		return nil, nil
	}

	a.State = AccountStateActive
	a.touch()
	return []Event{a.event("AccountUnbanned", nil)}, nil
}

// RecordActivity throttles last-active writes to once per five minutes and
// reports whether the row actually changed.
func (a *Account) RecordActivity() bool {
	now := time.Now().UTC()
	if a.LastActiveAt != nil && now.Sub(*a.LastActiveAt) <= 5*time.Minute {
		return false
	}
	a.LastActiveAt = &now
	return true
}
