package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aliuyar1234/circles/internal/audit"
	"github.com/google/uuid"
)

func (s *Store) AppendAuditEvent(ctx context.Context, e audit.Event) error {
	metaJSON := []byte("{}")
	if e.Meta != nil {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal audit meta: %w", err)
		}
		metaJSON = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, circle_id, actor_user_id, action, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.CircleID, toNullUUID(e.ActorUserID), e.Action, metaJSON, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListAuditEvents(ctx context.Context, circleID uuid.UUID, limit int) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT al.id, al.circle_id, al.actor_user_id, u.name, al.action, al.meta, al.created_at
		FROM audit_log al
		LEFT JOIN users u ON u.id = al.actor_user_id
		WHERE al.circle_id = $1
		ORDER BY al.created_at DESC, al.id
		LIMIT $2
	`, circleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var e audit.Event
		var actorUserID uuid.NullUUID
		var actorName *string
		var metaRaw []byte

		if err := rows.Scan(&e.ID, &e.CircleID, &actorUserID, &actorName, &e.Action, &metaRaw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}

		if actorUserID.Valid {
			id := actorUserID.UUID
			e.ActorUserID = &id
		}
		if actorName != nil {
			e.ActorName = *actorName
		}

		e.Meta = map[string]any{}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &e.Meta)
		}

		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return out, nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (s *Store) PurgeRevokedLinks(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM limited_invite_links WHERE revoked_at IS NOT NULL AND revoked_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked limited invite links: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", err)
	}
	return tag.RowsAffected(), nil
}
