package circles

import (
	"context"
	"fmt"

	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Membership transitions:
//
//	NONE ──requestJoin──▶ PENDING ──approve──▶ ACTIVE
//	NONE ──autoJoin─────────────────────────▶ ACTIVE
//	PENDING|ACTIVE ──reject/remove──▶ NONE
//
// The OWNER row is created ACTIVE with its circle and never leaves.

func (s *Service) newMembership(circleID, userID uuid.UUID, role Role, status Status) *Membership {
	now := s.now()
	return &Membership{
		ID:        uuid.New(),
		CircleID:  circleID,
		UserID:    userID,
		Role:      role,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// createOwnerMembership builds the ACTIVE/OWNER row inserted with a new circle
func (s *Service) createOwnerMembership(c *Circle, userID uuid.UUID) *Membership {
	return s.newMembership(c.ID, userID, RoleOwner, StatusActive)
}

// requestJoin builds the PENDING/MEMBER row inserted on general code redemption.
// The circle id is filled in by the store once the code resolves.
func (s *Service) requestJoin(userID uuid.UUID) *Membership {
	return s.newMembership(uuid.Nil, userID, RoleMember, StatusPending)
}

// autoJoin builds the ACTIVE/MEMBER row inserted on limited link redemption
func (s *Service) autoJoin(userID uuid.UUID) *Membership {
	return s.newMembership(uuid.Nil, userID, RoleMember, StatusActive)
}

// GetPendingMembers lists members awaiting approval
func (s *Service) GetPendingMembers(ctx context.Context, p auth.Principal, circleID uuid.UUID) ([]MemberInfo, error) {
	if _, err := s.requireOwner(ctx, p, circleID); err != nil {
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, circleID, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending members: %w", err)
	}
	return members, nil
}

// ApproveMembership moves a PENDING membership to ACTIVE
func (s *Service) ApproveMembership(ctx context.Context, p auth.Principal, membershipID uuid.UUID) (*Membership, error) {
	m, err := s.store.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, p, m.CircleID); err != nil {
		return nil, err
	}
	return s.approve(ctx, m)
}

// ApproveMember approves the pending request of userID in circleID
func (s *Service) ApproveMember(ctx context.Context, p auth.Principal, circleID, userID uuid.UUID) (*Membership, error) {
	m, err := s.ownedMembership(ctx, p, circleID, userID)
	if err != nil {
		return nil, err
	}
	return s.approve(ctx, m)
}

func (s *Service) approve(ctx context.Context, m *Membership) (*Membership, error) {
	if m.Status != StatusPending {
		return nil, ErrInvalidState
	}

	approved, err := s.store.ActivateMembership(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("circle_id", approved.CircleID.String()).
		Str("user_id", approved.UserID.String()).
		Msg("Membership approved")
	return approved, nil
}

// RejectMembership deletes a PENDING membership
func (s *Service) RejectMembership(ctx context.Context, p auth.Principal, membershipID uuid.UUID) (*Membership, error) {
	m, err := s.store.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, p, m.CircleID); err != nil {
		return nil, err
	}
	if err := s.delete(ctx, m, true); err != nil {
		return nil, err
	}
	return m, nil
}

// RejectMember rejects the pending request of userID in circleID
func (s *Service) RejectMember(ctx context.Context, p auth.Principal, circleID, userID uuid.UUID) (*Membership, error) {
	m, err := s.ownedMembership(ctx, p, circleID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.delete(ctx, m, true); err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveMember deletes the membership of userID in circleID, pending or active
func (s *Service) RemoveMember(ctx context.Context, p auth.Principal, circleID, userID uuid.UUID) (*Membership, error) {
	m, err := s.ownedMembership(ctx, p, circleID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.delete(ctx, m, false); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) delete(ctx context.Context, m *Membership, pendingOnly bool) error {
	if m.Role == RoleOwner {
		return ErrForbidden
	}
	if pendingOnly && m.Status != StatusPending {
		return ErrInvalidState
	}

	if err := s.store.DeleteMembership(ctx, m.ID, pendingOnly); err != nil {
		return err
	}

	log.Info().
		Str("circle_id", m.CircleID.String()).
		Str("user_id", m.UserID.String()).
		Str("previous_status", string(m.Status)).
		Msg("Membership deleted")
	return nil
}

// ownedMembership checks ownership of circleID and loads the target membership
func (s *Service) ownedMembership(ctx context.Context, p auth.Principal, circleID, userID uuid.UUID) (*Membership, error) {
	if _, err := s.requireOwner(ctx, p, circleID); err != nil {
		return nil, err
	}
	return s.store.GetMembership(ctx, circleID, userID)
}
