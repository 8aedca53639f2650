package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is. Stores return the typed errors below,
// which carry entity context and unwrap to these sentinels.
var (
	ErrDuplicateEntity  = errors.New("duplicate entity")
	ErrEntityNotFound   = errors.New("entity not found")
	ErrContactNotFound  = errors.New("contact not found")
	ErrPolicyNotFound   = errors.New("policy not found")
	ErrPendingReference = errors.New("pending reference")
	ErrInvalidPeriod    = errors.New("invalid contract period")
)

// DuplicateEntityError reports an identity collision, or a field collision for
// policies during bulk import.
type DuplicateEntityError struct {
	Entity EntityType
	Key    string
	// Fields is set when the collision is on content rather than identity.
	Fields bool
}

func (e DuplicateEntityError) Error() string {
	if e.Fields {
		return fmt.Sprintf("%s with the same fields as %q already exists", e.Entity, e.Key)
	}
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Key)
}

// Is matches ErrDuplicateEntity.
func (e DuplicateEntityError) Is(target error) bool { return target == ErrDuplicateEntity }

// NotFoundError reports a key that does not resolve.
type NotFoundError struct {
	Entity EntityType
	Key    string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// Is matches ErrEntityNotFound, and ErrContactNotFound or ErrPolicyNotFound for
// the corresponding entity.
func (e NotFoundError) Is(target error) bool {
	switch target {
	case ErrEntityNotFound:
		return true
	case ErrContactNotFound:
		return e.Entity == EntityContact
	case ErrPolicyNotFound:
		return e.Entity == EntityPolicy
	}
	return false
}

// PendingReferenceError reports a deletion or re-key blocked by records that
// still reference the target.
type PendingReferenceError struct {
	Entity     EntityType
	Key        string
	Referrer   EntityType
	ReferrerID string
	Count      int
}

func (e PendingReferenceError) Error() string {
	return fmt.Sprintf("%s %q has %d pending %s reference(s) (e.g. %q)", e.Entity, e.Key, e.Count, e.Referrer, e.ReferrerID)
}

// Is matches ErrPendingReference.
func (e PendingReferenceError) Is(target error) bool { return target == ErrPendingReference }

// InvalidPeriodError reports a contract whose signing date is not before its expiry date.
type InvalidPeriodError struct {
	Signed Date
	Expiry Date
}

func (e InvalidPeriodError) Error() string {
	return fmt.Sprintf("date signed %s must be before expiry date %s", e.Signed, e.Expiry)
}

// Is matches ErrInvalidPeriod.
func (e InvalidPeriodError) Is(target error) bool { return target == ErrInvalidPeriod }
