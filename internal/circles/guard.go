package circles

import (
	"context"
	"errors"

	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// requireParticipant returns the principal's membership in the circle.
// A missing membership is reported as ErrNotFound so the circle's existence
// is never disclosed to outsiders.
func (s *Service) requireParticipant(ctx context.Context, p auth.Principal, circleID uuid.UUID) (*Membership, error) {
	if p.IsZero() {
		return nil, ErrNotFound
	}

	m, err := s.store.GetMembership(ctx, circleID, p.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Debug().
				Str("user_id", p.ID.String()).
				Str("circle_id", circleID.String()).
				Msg("RBAC: User is not a participant of circle")
		}
		return nil, err
	}
	return m, nil
}

// requireOwner loads the circle and verifies the principal owns it.
// Called at the point of every owner mutation; nothing is cached between calls.
func (s *Service) requireOwner(ctx context.Context, p auth.Principal, circleID uuid.UUID) (*Circle, error) {
	if p.IsZero() {
		return nil, ErrNotFound
	}

	circle, err := s.store.GetCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if circle.OwnerID == p.ID {
		return circle, nil
	}

	if _, err := s.requireParticipant(ctx, p, circleID); err != nil {
		return nil, err
	}

	log.Warn().
		Str("user_id", p.ID.String()).
		Str("circle_id", circleID.String()).
		Msg("RBAC: Owner permission required")
	return nil, ErrForbidden
}

// RequireOwner returns ErrNotFound or ErrForbidden unless p owns the circle
func (s *Service) RequireOwner(ctx context.Context, p auth.Principal, circleID uuid.UUID) error {
	_, err := s.requireOwner(ctx, p, circleID)
	return err
}
