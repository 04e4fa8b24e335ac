package circles

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's role within a circle
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleMember
}

// Status represents where a membership is in its lifecycle
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusActive
}

// Channel identifies which invite namespace resolved a code
type Channel string

const (
	ChannelGeneral Channel = "GENERAL"
	ChannelLimited Channel = "LIMITED"
)

// Circle represents a private group owned by a single user
type Circle struct {
	ID                  uuid.UUID
	Name                string
	Description         string
	OwnerID             uuid.UUID
	InviteCode          string
	IsInviteLinkEnabled bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Membership binds a user to a circle with a role and status
type Membership struct {
	ID        uuid.UUID `json:"id"`
	CircleID  uuid.UUID `json:"circle_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LimitedInviteLink is a capped-use, auto-approving invite code
type LimitedInviteLink struct {
	ID          uuid.UUID  `json:"id"`
	CircleID    uuid.UUID  `json:"circle_id"`
	Code        string     `json:"code"`
	MaxUses     int        `json:"max_uses"`
	UsedCount   int        `json:"used_count"`
	CreatedByID uuid.UUID  `json:"created_by_user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Exhausted reports whether every use of the link has been consumed
func (l *LimitedInviteLink) Exhausted() bool {
	return l.UsedCount >= l.MaxUses
}

// Revoked reports whether the owner revoked the link
func (l *LimitedInviteLink) Revoked() bool {
	return l.RevokedAt != nil
}

// RemainingUses returns how many redemptions the link still accepts
func (l *LimitedInviteLink) RemainingUses() int {
	if l.Revoked() || l.Exhausted() {
		return 0
	}
	return l.MaxUses - l.UsedCount
}

// Event is a gathering scheduled inside a circle
type Event struct {
	ID          uuid.UUID `json:"id"`
	CircleID    uuid.UUID `json:"circle_id"`
	Title       string    `json:"title"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	CreatedByID uuid.UUID `json:"created_by_user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is the cached profile of a principal
type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Image     string
	UpdatedAt time.Time
}

// UserRef is the public identity of a user shown alongside circles
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Image string    `json:"image,omitempty"`
}

// MemberInfo represents a member of a circle with their profile
type MemberInfo struct {
	MembershipID uuid.UUID `json:"membership_id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Image        string    `json:"image,omitempty"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// CircleSummary is a circle as seen from a member's dashboard
type CircleSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Role        Role      `json:"role"`
	Status      Status    `json:"status"`
	MemberCount int       `json:"member_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CircleSettings is only ever attached to the owner's view
type CircleSettings struct {
	InviteCode          string `json:"invite_code"`
	IsInviteLinkEnabled bool   `json:"is_invite_link_enabled"`
	PendingCount        int    `json:"pending_count"`
}

// CircleView is what getCircle returns. Pending members get a reduced
// projection with Members, MemberCount, Events and Settings left empty.
type CircleView struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Owner             UserRef         `json:"owner"`
	CreatedAt         time.Time       `json:"created_at"`
	CurrentUserRole   Role            `json:"current_user_role"`
	CurrentUserStatus Status          `json:"current_user_status"`
	MemberCount       int             `json:"member_count,omitempty"`
	Members           []MemberInfo    `json:"members,omitempty"`
	Events            []Event         `json:"events,omitempty"`
	UpcomingEvents    int             `json:"upcoming_event_count,omitempty"`
	Settings          *CircleSettings `json:"settings,omitempty"`
}

// IsReduced reports whether the view withholds member data
func (v *CircleView) IsReduced() bool {
	return v.CurrentUserStatus == StatusPending
}

// CirclePreview is the public-safe projection shown on an invite page
type CirclePreview struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Owner         UserRef   `json:"owner"`
	MemberCount   int       `json:"member_count"`
	Channel       Channel   `json:"channel"`
	RemainingUses *int      `json:"remaining_uses,omitempty"`
}

// JoinResult reports the outcome of redeeming a code
type JoinResult struct {
	CircleID   uuid.UUID  `json:"circle_id"`
	Membership Membership `json:"membership"`
	Channel    Channel    `json:"channel"`
	// Created is false when the user already had a membership and nothing changed
	Created bool `json:"created"`
}
