package domain

import "fmt"

const (
	AggregateTypeAccount         = "Account"
	AggregateTypeAccountMetadata = "AccountMetadata"
	AggregateTypeAccountSettings = "AccountSettings"
	AggregateTypeProfile         = "Profile"
)

// Aggregate is the capability shared by every versioned, region-scoped,
// event-producing entity of the platform.
type Aggregate interface {
	AggregateType() string
	AggregateID() string
	AggregateRegion() string
	AggregateVersion() int64
}

// guardRegion is the data-residency boundary: a command whose region differs
// from the aggregate's assigned region must never proceed, independent of any
// other business rule.
func guardRegion(aggregateType, stored, requested string) error {
	if stored != requested {
		return NewForbiddenError(fmt.Sprintf("cross-region operation on %s (aggregate in %q, command for %q)", aggregateType, stored, requested))
	}
	return nil
}
