package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	EventCircleCreated              = "circle.created"
	EventCircleDeleted              = "circle.deleted"
	EventCircleJoinRequested        = "circle.join_requested"
	EventCircleJoinedViaLimitedLink = "circle.joined_via_limited_link"
	EventCircleMemberApproved       = "circle.member_approved"
	EventCircleMemberRejected       = "circle.member_rejected"
	EventCircleMemberRemoved        = "circle.member_removed"
	EventCircleInviteRegenerated    = "circle.invite_code_regenerated"
	EventCircleSettingsUpdated      = "circle.settings_updated"
	EventCircleLimitedLinkCreated   = "circle.limited_link_created"
	EventCircleLimitedLinkRevoked   = "circle.limited_link_revoked"
	EventCircleEventCreated         = "circle.event_created"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Event represents an audit log entry.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	CircleID    uuid.UUID      `json:"circle_id"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ActorName   string         `json:"actor_name,omitempty"`
	Action      string         `json:"action"`
	Meta        map[string]any `json:"meta"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Store persists audit events. Deleting a circle does not delete its events.
type Store interface {
	AppendAuditEvent(ctx context.Context, e Event) error
	// ListAuditEvents returns the newest events of a circle first, joined
	// with the actor's cached name when known.
	ListAuditEvents(ctx context.Context, circleID uuid.UUID, limit int) ([]Event, error)
}

// Writer provides methods to write audit log entries.
type Writer struct {
	store Store
	now   func() time.Time
}

func NewWriter(store Store) *Writer {
	return &Writer{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	CircleID    uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]any
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	meta := params.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	err := w.store.AppendAuditEvent(ctx, Event{
		ID:          uuid.New(),
		CircleID:    params.CircleID,
		ActorUserID: params.ActorUserID,
		Action:      params.Action,
		Meta:        meta,
		CreatedAt:   w.now(),
	})
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	log.Info().
		Str("action", params.Action).
		Str("circle_id", params.CircleID.String()).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")

	return nil
}

func (w *Writer) LogCircleCreated(ctx context.Context, circleID, actorUserID uuid.UUID, name string) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleCreated,
		Meta:        map[string]any{"name": name},
	})
}

func (w *Writer) LogEventCreated(ctx context.Context, circleID, actorUserID, eventID uuid.UUID, startsAt time.Time) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleEventCreated,
		Meta: map[string]any{
			"event_id":  eventID.String(),
			"starts_at": startsAt.UTC().Format(time.RFC3339),
		},
	})
}

func (w *Writer) LogCircleDeleted(ctx context.Context, circleID, actorUserID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleDeleted,
	})
}

func (w *Writer) LogJoinRequested(ctx context.Context, circleID, actorUserID, membershipID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleJoinRequested,
		Meta:        map[string]any{"membership_id": membershipID.String()},
	})
}

func (w *Writer) LogJoinedViaLimitedLink(ctx context.Context, circleID, actorUserID, membershipID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleJoinedViaLimitedLink,
		Meta:        map[string]any{"membership_id": membershipID.String()},
	})
}

func (w *Writer) LogMemberApproved(ctx context.Context, circleID, actorUserID, targetUserID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleMemberApproved,
		Meta:        map[string]any{"target_user_id": targetUserID.String()},
	})
}

func (w *Writer) LogMemberRejected(ctx context.Context, circleID, actorUserID, targetUserID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleMemberRejected,
		Meta:        map[string]any{"target_user_id": targetUserID.String()},
	})
}

func (w *Writer) LogMemberRemoved(ctx context.Context, circleID, actorUserID, targetUserID uuid.UUID, previousStatus string) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleMemberRemoved,
		Meta: map[string]any{
			"target_user_id":  targetUserID.String(),
			"previous_status": previousStatus,
		},
	})
}

func (w *Writer) LogInviteCodeRegenerated(ctx context.Context, circleID, actorUserID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleInviteRegenerated,
	})
}

func (w *Writer) LogSettingsUpdated(ctx context.Context, circleID, actorUserID uuid.UUID, inviteLinkEnabled bool) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleSettingsUpdated,
		Meta:        map[string]any{"is_invite_link_enabled": inviteLinkEnabled},
	})
}

func (w *Writer) LogLimitedLinkCreated(ctx context.Context, circleID, actorUserID, linkID uuid.UUID, maxUses int) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleLimitedLinkCreated,
		Meta: map[string]any{
			"link_id":  linkID.String(),
			"max_uses": maxUses,
		},
	})
}

func (w *Writer) LogLimitedLinkRevoked(ctx context.Context, circleID, actorUserID, linkID uuid.UUID, usedCount int) error {
	return w.Log(ctx, LogParams{
		CircleID:    circleID,
		ActorUserID: &actorUserID,
		Action:      EventCircleLimitedLinkRevoked,
		Meta: map[string]any{
			"link_id":    linkID.String(),
			"used_count": usedCount,
		},
	})
}

// Reader lists audit events for display.
type Reader struct {
	store Store
}

func NewReader(store Store) *Reader {
	return &Reader{store: store}
}

func (r *Reader) ListByCircle(ctx context.Context, circleID uuid.UUID, limit int) ([]Event, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	events, err := r.store.ListAuditEvents(ctx, circleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	return events, nil
}
