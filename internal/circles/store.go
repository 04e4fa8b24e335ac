package circles

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract of the circles service.
// Implementations must be safe for concurrent use, and every method that
// mutates more than one row must do so atomically.
type Store interface {
	// UpsertUser records the latest profile of a principal.
	UpsertUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// CreateCircle inserts the circle and its owner membership together.
	// Returns ErrConflict if the invite code or the owner membership already exists.
	CreateCircle(ctx context.Context, c *Circle, owner *Membership) error
	GetCircle(ctx context.Context, id uuid.UUID) (*Circle, error)
	GetCircleByInviteCode(ctx context.Context, code string) (*Circle, error)
	ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]CircleSummary, error)
	SetInviteCode(ctx context.Context, circleID uuid.UUID, code string) error
	SetInviteLinkEnabled(ctx context.Context, circleID uuid.UUID, enabled bool) error
	// DeleteCircle removes the circle with its memberships, limited links and events.
	DeleteCircle(ctx context.Context, circleID uuid.UUID) error

	// CodeInUse reports whether code is taken in either invite namespace,
	// revoked limited links included.
	CodeInUse(ctx context.Context, code string) (bool, error)

	GetMembership(ctx context.Context, circleID, userID uuid.UUID) (*Membership, error)
	GetMembershipByID(ctx context.Context, id uuid.UUID) (*Membership, error)
	// InsertMembership inserts m unless a membership already exists for the
	// same (circle, user), in which case the existing row is returned with created=false.
	InsertMembership(ctx context.Context, m *Membership) (stored *Membership, created bool, err error)
	// ActivateMembership moves a PENDING membership to ACTIVE.
	// Returns ErrNotFound if absent and ErrInvalidState if it is not PENDING.
	ActivateMembership(ctx context.Context, id uuid.UUID) (*Membership, error)
	// DeleteMembership removes a non-owner membership.
	// Returns ErrNotFound if absent, ErrForbidden for the owner row, and
	// ErrInvalidState when pendingOnly is set and the row is ACTIVE.
	DeleteMembership(ctx context.Context, id uuid.UUID, pendingOnly bool) error
	ListMembers(ctx context.Context, circleID uuid.UUID, status Status) ([]MemberInfo, error)
	CountMembers(ctx context.Context, circleID uuid.UUID, status Status) (int, error)

	// RedeemInviteCode resolves a general invite code and inserts m into its
	// circle in one transaction that excludes concurrent regeneration.
	// Returns ErrNotFound if the code does not resolve and ErrDisabled if the
	// circle's invite link is off. An existing membership is returned unchanged.
	RedeemInviteCode(ctx context.Context, code string, m *Membership) (stored *Membership, created bool, err error)

	CreateLimitedLink(ctx context.Context, l *LimitedInviteLink) error
	GetLimitedLink(ctx context.Context, id uuid.UUID) (*LimitedInviteLink, error)
	// GetLimitedLinkByCode resolves non-revoked links only.
	GetLimitedLinkByCode(ctx context.Context, code string) (*LimitedInviteLink, error)
	// ListLimitedLinks returns non-revoked links, newest first.
	ListLimitedLinks(ctx context.Context, circleID uuid.UUID) ([]LimitedInviteLink, error)
	// RevokeLimitedLink returns ErrNotFound if the link is absent or already revoked.
	RevokeLimitedLink(ctx context.Context, id uuid.UUID) error
	// RedeemLimitedLink consumes one use of the link and inserts m into its
	// circle atomically. An existing membership is returned unchanged and
	// consumes nothing. Returns ErrNotFound for unknown or revoked codes and
	// ErrExhausted when no use is left.
	RedeemLimitedLink(ctx context.Context, code string, m *Membership) (stored *Membership, created bool, err error)

	CreateEvent(ctx context.Context, e *Event) error
	// ListEvents returns the circle's events by start time, earliest first.
	ListEvents(ctx context.Context, circleID uuid.UUID) ([]Event, error)

	Ping(ctx context.Context) error
	Close()
}
