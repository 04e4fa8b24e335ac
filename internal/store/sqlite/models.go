package sqlite

import (
	"time"

	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
)

// Row types mirror the PostgreSQL schema. Cascades are done by hand in
// DeleteCircle so no foreign keys are declared.

type userRow struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	Name      string    `gorm:"not null;default:''"`
	Email     string    `gorm:"not null;default:''"`
	Image     string    `gorm:"not null;default:''"`
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type circleRow struct {
	ID                  uuid.UUID `gorm:"type:text;primaryKey"`
	Name                string    `gorm:"size:100;not null"`
	Description         string    `gorm:"size:500;not null"`
	OwnerID             uuid.UUID `gorm:"type:text;not null;index"`
	InviteCode          string    `gorm:"not null;uniqueIndex"`
	IsInviteLinkEnabled bool      `gorm:"not null"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (circleRow) TableName() string { return "circles" }

type membershipRow struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CircleID  uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_memberships_circle_user;index:idx_memberships_circle_status"`
	UserID    uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_memberships_circle_user;index"`
	Role      string    `gorm:"not null"`
	Status    string    `gorm:"not null;index:idx_memberships_circle_status"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (membershipRow) TableName() string { return "memberships" }

type linkRow struct {
	ID          uuid.UUID  `gorm:"type:text;primaryKey"`
	CircleID    uuid.UUID  `gorm:"type:text;not null;index"`
	Code        string     `gorm:"not null;uniqueIndex"`
	MaxUses     int        `gorm:"not null"`
	UsedCount   int        `gorm:"not null"`
	CreatedByID uuid.UUID  `gorm:"column:created_by_user_id;type:text;not null"`
	CreatedAt   time.Time
	RevokedAt   *time.Time `gorm:"index"`
}

func (linkRow) TableName() string { return "limited_invite_links" }

type eventRow struct {
	ID          uuid.UUID `gorm:"type:text;primaryKey"`
	CircleID    uuid.UUID `gorm:"type:text;not null;index:idx_circle_events_circle_starts"`
	Title       string    `gorm:"not null"`
	Location    string    `gorm:"not null;default:''"`
	StartsAt    time.Time `gorm:"not null;index:idx_circle_events_circle_starts"`
	CreatedByID uuid.UUID `gorm:"column:created_by_user_id;type:text;not null"`
	CreatedAt   time.Time
}

func (eventRow) TableName() string { return "circle_events" }

func (r eventRow) toEvent() circles.Event {
	return circles.Event{
		ID:          r.ID,
		CircleID:    r.CircleID,
		Title:       r.Title,
		Location:    r.Location,
		StartsAt:    r.StartsAt,
		CreatedByID: r.CreatedByID,
		CreatedAt:   r.CreatedAt,
	}
}

type auditRow struct {
	ID          uuid.UUID  `gorm:"type:text;primaryKey"`
	CircleID    uuid.UUID  `gorm:"type:text;not null;index:idx_audit_log_circle_created"`
	ActorUserID *uuid.UUID `gorm:"type:text"`
	Action      string     `gorm:"not null"`
	Meta        string     `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"index:idx_audit_log_circle_created;index"`
}

func (auditRow) TableName() string { return "audit_log" }

func toCircleRow(c *circles.Circle) circleRow {
	return circleRow{
		ID:                  c.ID,
		Name:                c.Name,
		Description:         c.Description,
		OwnerID:             c.OwnerID,
		InviteCode:          c.InviteCode,
		IsInviteLinkEnabled: c.IsInviteLinkEnabled,
		CreatedAt:           c.CreatedAt.UTC(),
		UpdatedAt:           c.UpdatedAt.UTC(),
	}
}

func (r circleRow) toCircle() *circles.Circle {
	return &circles.Circle{
		ID:                  r.ID,
		Name:                r.Name,
		Description:         r.Description,
		OwnerID:             r.OwnerID,
		InviteCode:          r.InviteCode,
		IsInviteLinkEnabled: r.IsInviteLinkEnabled,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func toMembershipRow(m *circles.Membership) membershipRow {
	return membershipRow{
		ID:        m.ID,
		CircleID:  m.CircleID,
		UserID:    m.UserID,
		Role:      string(m.Role),
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func (r membershipRow) toMembership() *circles.Membership {
	return &circles.Membership{
		ID:        r.ID,
		CircleID:  r.CircleID,
		UserID:    r.UserID,
		Role:      circles.Role(r.Role),
		Status:    circles.Status(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toLinkRow(l *circles.LimitedInviteLink) linkRow {
	row := linkRow{
		ID:          l.ID,
		CircleID:    l.CircleID,
		Code:        l.Code,
		MaxUses:     l.MaxUses,
		UsedCount:   l.UsedCount,
		CreatedByID: l.CreatedByID,
		CreatedAt:   l.CreatedAt.UTC(),
	}
	if l.RevokedAt != nil {
		t := l.RevokedAt.UTC()
		row.RevokedAt = &t
	}
	return row
}

func (r linkRow) toLink() *circles.LimitedInviteLink {
	return &circles.LimitedInviteLink{
		ID:          r.ID,
		CircleID:    r.CircleID,
		Code:        r.Code,
		MaxUses:     r.MaxUses,
		UsedCount:   r.UsedCount,
		CreatedByID: r.CreatedByID,
		CreatedAt:   r.CreatedAt,
		RevokedAt:   r.RevokedAt,
	}
}
