package circles

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// redeemGeneral redeems a circle's general invite code.
// The resulting membership is always PENDING: this channel grows a circle
// only through owner review.
func (s *Service) redeemGeneral(ctx context.Context, p auth.Principal, code string) (*JoinResult, error) {
	stored, created, err := s.store.RedeemInviteCode(ctx, code, s.requestJoin(p.ID))
	if err != nil {
		return nil, err
	}

	if created {
		log.Info().
			Str("circle_id", stored.CircleID.String()).
			Str("user_id", p.ID.String()).
			Msg("Join requested via invite code")
	}

	return &JoinResult{
		CircleID:   stored.CircleID,
		Membership: *stored,
		Channel:    ChannelGeneral,
		Created:    created,
	}, nil
}

// RegenerateInviteCode replaces the circle's general invite code.
// The previous code stops resolving as soon as this returns.
func (s *Service) RegenerateInviteCode(ctx context.Context, p auth.Principal, circleID uuid.UUID) (string, error) {
	if _, err := s.requireOwner(ctx, p, circleID); err != nil {
		return "", err
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.newCode(ctx)
		if err != nil {
			return "", err
		}

		err = s.store.SetInviteCode(ctx, circleID, code)
		if err == nil {
			log.Info().Str("circle_id", circleID.String()).Msg("Invite code regenerated")
			return code, nil
		}
		if errors.Is(err, ErrConflict) {
			continue
		}
		return "", err
	}

	return "", fmt.Errorf("failed to regenerate invite code: code collision retry exhausted")
}

// SettingsUpdate carries the mutable circle settings; nil fields are left unchanged
type SettingsUpdate struct {
	IsInviteLinkEnabled *bool
}

// UpdateCircleSettings applies owner settings to a circle.
// Disabling the invite link blocks new redemptions only; existing
// memberships, pending ones included, are left untouched.
func (s *Service) UpdateCircleSettings(ctx context.Context, p auth.Principal, circleID uuid.UUID, update SettingsUpdate) error {
	if update.IsInviteLinkEnabled == nil {
		return fmt.Errorf("%w: no settings to update", ErrValidation)
	}

	if _, err := s.requireOwner(ctx, p, circleID); err != nil {
		return err
	}

	if err := s.store.SetInviteLinkEnabled(ctx, circleID, *update.IsInviteLinkEnabled); err != nil {
		return err
	}

	log.Info().
		Str("circle_id", circleID.String()).
		Bool("invite_link_enabled", *update.IsInviteLinkEnabled).
		Msg("Circle settings updated")
	return nil
}
