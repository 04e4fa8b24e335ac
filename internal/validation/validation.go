package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxCircleNameLength        = 100
	MaxCircleDescriptionLength = 500

	MaxEventTitleLength    = 100
	MaxEventLocationLength = 200

	// MaxLimitedLinkUses bounds a single limited invite link.
	MaxLimitedLinkUses = 10000
)

var (
	// ErrNameRequired is returned when a circle name is blank
	ErrNameRequired = errors.New("circle name is required")

	// ErrNameTooLong is returned when a circle name exceeds MaxCircleNameLength
	ErrNameTooLong = fmt.Errorf("circle name must be at most %d characters", MaxCircleNameLength)

	// ErrDescriptionTooLong is returned when a description exceeds MaxCircleDescriptionLength
	ErrDescriptionTooLong = fmt.Errorf("description must be at most %d characters", MaxCircleDescriptionLength)

	// ErrEventTitleRequired is returned when an event title is blank
	ErrEventTitleRequired = errors.New("event title is required")

	// ErrEventTitleTooLong is returned when an event title exceeds MaxEventTitleLength
	ErrEventTitleTooLong = fmt.Errorf("event title must be at most %d characters", MaxEventTitleLength)

	// ErrEventLocationTooLong is returned when a location exceeds MaxEventLocationLength
	ErrEventLocationTooLong = fmt.Errorf("event location must be at most %d characters", MaxEventLocationLength)

	// ErrEventStartRequired is returned when an event has no start time
	ErrEventStartRequired = errors.New("event start time is required")

	// ErrMaxUsesNotPositive is returned when max uses is zero or negative
	ErrMaxUsesNotPositive = errors.New("max uses must be a positive integer")

	// ErrMaxUsesTooLarge is returned when max uses exceeds MaxLimitedLinkUses
	ErrMaxUsesTooLarge = fmt.Errorf("max uses must be at most %d", MaxLimitedLinkUses)
)

// NormalizeCircleName trims surrounding whitespace and collapses inner runs of whitespace
func NormalizeCircleName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// ValidateCircleName validates a normalized circle name:
// - Must not be empty
// - Must be at most MaxCircleNameLength characters (runes, not bytes)
func ValidateCircleName(name string) error {
	if name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(name) > MaxCircleNameLength {
		return ErrNameTooLong
	}
	return nil
}

// NormalizeDescription trims surrounding whitespace
func NormalizeDescription(description string) string {
	return strings.TrimSpace(description)
}

// ValidateDescription validates an optional circle description
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxCircleDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// ValidateMaxUses validates the capacity of a limited invite link
func ValidateMaxUses(maxUses int) error {
	if maxUses < 1 {
		return ErrMaxUsesNotPositive
	}
	if maxUses > MaxLimitedLinkUses {
		return ErrMaxUsesTooLarge
	}
	return nil
}

// ValidateEvent validates a normalized event title, its optional location and start time
func ValidateEvent(title, location string, startsAt time.Time) error {
	if title == "" {
		return ErrEventTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxEventTitleLength {
		return ErrEventTitleTooLong
	}
	if utf8.RuneCountInString(location) > MaxEventLocationLength {
		return ErrEventLocationTooLong
	}
	if startsAt.IsZero() {
		return ErrEventStartRequired
	}
	return nil
}
