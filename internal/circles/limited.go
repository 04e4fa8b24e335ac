package circles

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/aliuyar1234/circles/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CreateLimitedInviteLink issues a new capped-use link for the circle
func (s *Service) CreateLimitedInviteLink(ctx context.Context, p auth.Principal, circleID uuid.UUID, maxUses int) (*LimitedInviteLink, error) {
	if _, err := s.requireOwner(ctx, p, circleID); err != nil {
		return nil, err
	}
	if err := validation.ValidateMaxUses(maxUses); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.newCode(ctx)
		if err != nil {
			return nil, err
		}

		link := &LimitedInviteLink{
			ID:          uuid.New(),
			CircleID:    circleID,
			Code:        code,
			MaxUses:     maxUses,
			UsedCount:   0,
			CreatedByID: p.ID,
			CreatedAt:   s.now(),
		}

		err = s.store.CreateLimitedLink(ctx, link)
		if err == nil {
			log.Info().
				Str("circle_id", circleID.String()).
				Str("link_id", link.ID.String()).
				Int("max_uses", maxUses).
				Msg("Limited invite link created")
			return link, nil
		}
		if errors.Is(err, ErrConflict) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to create limited invite link: code collision retry exhausted")
}

// GetLimitedInviteLinks lists the circle's non-revoked links, exhausted ones included
func (s *Service) GetLimitedInviteLinks(ctx context.Context, p auth.Principal, circleID uuid.UUID) ([]LimitedInviteLink, error) {
	if _, err := s.requireOwner(ctx, p, circleID); err != nil {
		return nil, err
	}

	links, err := s.store.ListLimitedLinks(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list limited invite links: %w", err)
	}
	return links, nil
}

// RevokeLimitedInviteLink makes a link unresolvable regardless of remaining uses.
// Memberships already granted through it are kept.
func (s *Service) RevokeLimitedInviteLink(ctx context.Context, p auth.Principal, linkID uuid.UUID) (*LimitedInviteLink, error) {
	link, err := s.store.GetLimitedLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, p, link.CircleID); err != nil {
		return nil, err
	}

	if err := s.store.RevokeLimitedLink(ctx, linkID); err != nil {
		return nil, err
	}

	log.Info().
		Str("circle_id", link.CircleID.String()).
		Str("link_id", link.ID.String()).
		Int("used_count", link.UsedCount).
		Msg("Limited invite link revoked")
	return link, nil
}

// redeemLimited redeems a limited link. The resulting membership is ACTIVE
// immediately: the cap itself is the admission control.
func (s *Service) redeemLimited(ctx context.Context, p auth.Principal, code string) (*JoinResult, error) {
	stored, created, err := s.store.RedeemLimitedLink(ctx, code, s.autoJoin(p.ID))
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			log.Debug().Str("user_id", p.ID.String()).Msg("Limited invite link exhausted")
		}
		return nil, err
	}

	if created {
		log.Info().
			Str("circle_id", stored.CircleID.String()).
			Str("user_id", p.ID.String()).
			Msg("Joined via limited invite link")
	}

	return &JoinResult{
		CircleID:   stored.CircleID,
		Membership: *stored,
		Channel:    ChannelLimited,
		Created:    created,
	}, nil
}
