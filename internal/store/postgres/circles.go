package postgres

import (
	"context"
	"fmt"

	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
)

const circleColumns = `id, name, description, owner_id, invite_code, is_invite_link_enabled, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCircle(row rowScanner) (*circles.Circle, error) {
	var c circles.Circle
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.InviteCode, &c.IsInviteLinkEnabled, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) CreateCircle(ctx context.Context, c *circles.Circle, owner *circles.Membership) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := limitedCodeTaken(ctx, tx, c.InviteCode); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO circles (`+circleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Description, c.OwnerID, c.InviteCode, c.IsInviteLinkEnabled, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return circles.ErrConflict
		}
		return fmt.Errorf("failed to insert circle: %w", err)
	}

	if _, created, err := insertMembership(ctx, tx, owner); err != nil {
		return err
	} else if !created {
		return circles.ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetCircle(ctx context.Context, id uuid.UUID) (*circles.Circle, error) {
	return scanCircle(s.pool.QueryRow(ctx, `SELECT `+circleColumns+` FROM circles WHERE id = $1`, id))
}

func (s *Store) GetCircleByInviteCode(ctx context.Context, code string) (*circles.Circle, error) {
	return scanCircle(s.pool.QueryRow(ctx, `SELECT `+circleColumns+` FROM circles WHERE invite_code = $1`, code))
}

func (s *Store) ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]circles.CircleSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.description, m.role, m.status, c.created_at,
		       (SELECT COUNT(*) FROM memberships a WHERE a.circle_id = c.id AND a.status = 'ACTIVE')
		FROM memberships m
		JOIN circles c ON c.id = m.circle_id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC, c.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query circles: %w", err)
	}
	defer rows.Close()

	var out []circles.CircleSummary
	for rows.Next() {
		var c circles.CircleSummary
		var role, status string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &role, &status, &c.CreatedAt, &c.MemberCount); err != nil {
			return nil, fmt.Errorf("failed to scan circle: %w", err)
		}
		c.Role = circles.Role(role)
		c.Status = circles.Status(status)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating circles: %w", err)
	}
	return out, nil
}

// SetInviteCode takes the circle row lock, so it waits for in-flight
// redemptions of the old code and later ones see the new code only.
func (s *Store) SetInviteCode(ctx context.Context, circleID uuid.UUID, code string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := limitedCodeTaken(ctx, tx, code); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE circles SET invite_code = $2, updated_at = NOW() WHERE id = $1
	`, circleID, code)
	if err != nil {
		if isUniqueViolation(err) {
			return circles.ErrConflict
		}
		return fmt.Errorf("failed to update invite code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return circles.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) SetInviteLinkEnabled(ctx context.Context, circleID uuid.UUID, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE circles SET is_invite_link_enabled = $2, updated_at = NOW() WHERE id = $1
	`, circleID, enabled)
	if err != nil {
		return fmt.Errorf("failed to update invite link setting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return circles.ErrNotFound
	}
	return nil
}

// DeleteCircle relies on ON DELETE CASCADE for memberships, links and events
func (s *Store) DeleteCircle(ctx context.Context, circleID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM circles WHERE id = $1`, circleID)
	if err != nil {
		return fmt.Errorf("failed to delete circle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return circles.ErrNotFound
	}
	return nil
}

// RedeemInviteCode holds a share lock on the circle row while inserting,
// which orders it against SetInviteCode and SetInviteLinkEnabled.
func (s *Store) RedeemInviteCode(ctx context.Context, code string, m *circles.Membership) (*circles.Membership, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var circleID uuid.UUID
	var enabled bool
	err = tx.QueryRow(ctx, `
		SELECT id, is_invite_link_enabled FROM circles WHERE invite_code = $1 FOR SHARE
	`, code).Scan(&circleID, &enabled)
	if err != nil {
		return nil, false, notFound(err)
	}
	if !enabled {
		return nil, false, circles.ErrDisabled
	}

	row := *m
	row.CircleID = circleID
	stored, created, err := insertMembership(ctx, tx, &row)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, created, nil
}
