// Package domainerr defines the error kinds shared by the allocation and
// reconciliation engine. Specific errors wrap exactly one kind so callers can
// match either the precise failure or its category with errors.Is.
package domainerr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Not found errors
var (
	ErrPropertyNotFound = fmt.Errorf("%w: property", ErrNotFound)
	ErrUnitNotFound     = fmt.Errorf("%w: unit", ErrNotFound)
	ErrTenantNotFound   = fmt.Errorf("%w: tenant", ErrNotFound)
)

// Conflict errors
var (
	ErrNoAvailableUnits      = fmt.Errorf("%w: no available units of the requested type", ErrConflict)
	ErrUnitNotAvailable      = fmt.Errorf("%w: unit is occupied or does not exist", ErrConflict)
	ErrOverlappingUnitRanges = fmt.Errorf("%w: unit ranges overlap", ErrConflict)
	ErrDuplicateBillingRef   = fmt.Errorf("%w: billing reference already in use", ErrConflict)
	ErrPropertyOccupied      = fmt.Errorf("%w: property has occupied units", ErrConflict)
	ErrOccupiedUnitRemoved   = fmt.Errorf("%w: update would remove an occupied unit", ErrConflict)
	ErrTenantMovedOut        = fmt.Errorf("%w: tenant has moved out", ErrConflict)
	ErrTenantAlreadyBound    = fmt.Errorf("%w: tenant already occupies a unit", ErrConflict)
	ErrUnitHeldByTenant      = fmt.Errorf("%w: unit is held by an active tenant, move the tenant out instead", ErrConflict)
	ErrDuplicatePayment      = fmt.Errorf("%w: payment transaction already reconciled", ErrConflict)
	ErrBillingMismatch       = fmt.Errorf("%w: paybill number does not match property", ErrConflict)
	ErrAlreadyBilled         = fmt.Errorf("%w: tenant already billed for this month", ErrConflict)
)

// Validation returns a validation error carrying a human-readable reason.
func Validation(format string, args ...interface{}) error {
	return Wrapf(ErrValidation, format, args...)
}

// Wrapf annotates err with a formatted detail while keeping it matchable.
func Wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}

// Kind reports which error kind err belongs to, or nil if it is none of them.
func Kind(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict
	default:
		return nil
	}
}
