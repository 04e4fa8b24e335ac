package circles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/aliuyar1234/circles/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CreateEvent schedules a gathering in the circle. Only the owner may do this.
func (s *Service) CreateEvent(ctx context.Context, p auth.Principal, circleID uuid.UUID, title, location string, startsAt time.Time) (*Event, error) {
	if _, err := s.requireOwner(ctx, p, circleID); err != nil {
		return nil, err
	}

	title = validation.NormalizeCircleName(title)
	location = strings.TrimSpace(location)
	if err := validation.ValidateEvent(title, location, startsAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	e := &Event{
		ID:          uuid.New(),
		CircleID:    circleID,
		Title:       title,
		Location:    location,
		StartsAt:    startsAt.UTC(),
		CreatedByID: p.ID,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	log.Info().
		Str("circle_id", circleID.String()).
		Str("event_id", e.ID.String()).
		Msg("Circle event created")
	return e, nil
}

// countUpcoming returns how many events start after now
func countUpcoming(events []Event, now time.Time) int {
	n := 0
	for _, e := range events {
		if e.StartsAt.After(now) {
			n++
		}
	}
	return n
}
