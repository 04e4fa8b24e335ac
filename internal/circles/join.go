package circles

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/aliuyar1234/circles/internal/codegen"
)

// General and limited codes share the /invite/{code} namespace. Lookups try
// the general code first and fall back to limited links.

// GetCircleByInviteCode returns the public preview for an invite code.
// It needs no principal and never exposes membership details.
func (s *Service) GetCircleByInviteCode(ctx context.Context, code string) (*CirclePreview, error) {
	if !codegen.Valid(code) {
		return nil, ErrNotFound
	}

	circle, err := s.store.GetCircleByInviteCode(ctx, code)
	if err == nil {
		if !circle.IsInviteLinkEnabled {
			return nil, ErrDisabled
		}
		return s.preview(ctx, circle, ChannelGeneral, nil)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	link, err := s.store.GetLimitedLinkByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	circle, err = s.store.GetCircle(ctx, link.CircleID)
	if err != nil {
		return nil, err
	}
	remaining := link.RemainingUses()
	return s.preview(ctx, circle, ChannelLimited, &remaining)
}

// JoinCircleByCode redeems a general or limited code for the principal.
// Redeeming while already a member returns the existing membership with Created=false.
func (s *Service) JoinCircleByCode(ctx context.Context, p auth.Principal, code string) (*JoinResult, error) {
	if p.IsZero() {
		return nil, fmt.Errorf("%w: principal required", ErrValidation)
	}
	if !codegen.Valid(code) {
		return nil, ErrNotFound
	}

	if err := s.touchUser(ctx, p); err != nil {
		return nil, err
	}

	result, err := s.redeemGeneral(ctx, p, code)
	if !errors.Is(err, ErrNotFound) {
		return result, err
	}
	return s.redeemLimited(ctx, p, code)
}

func (s *Service) preview(ctx context.Context, c *Circle, channel Channel, remaining *int) (*CirclePreview, error) {
	owner, err := s.userRef(ctx, c.OwnerID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.CountMembers(ctx, c.ID, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	return &CirclePreview{
		ID:            c.ID,
		Name:          c.Name,
		Description:   c.Description,
		Owner:         owner,
		MemberCount:   count,
		Channel:       channel,
		RemainingUses: remaining,
	}, nil
}
