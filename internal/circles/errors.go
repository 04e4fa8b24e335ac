package circles

import "errors"

var (
	// ErrNotFound is returned when a resource or code does not resolve, and
	// in place of ErrForbidden when the caller may not learn a circle exists
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a participant attempts an owner action
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")

	// ErrDisabled is returned when the general invite link is turned off
	ErrDisabled = errors.New("invite link disabled")

	// ErrExhausted is returned when a limited invite link has no uses left
	ErrExhausted = errors.New("invite link exhausted")

	// ErrConflict is returned for duplicate-state violations
	ErrConflict = errors.New("conflict")

	// ErrInvalidState is returned when a membership transition is not allowed from its current status
	ErrInvalidState = errors.New("invalid membership state")
)
