package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const membershipColumns = `id, circle_id, user_id, role, status, created_at, updated_at`

func scanMembership(row rowScanner) (*circles.Membership, error) {
	var m circles.Membership
	var role, status string
	if err := row.Scan(&m.ID, &m.CircleID, &m.UserID, &role, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	m.Role = circles.Role(role)
	m.Status = circles.Status(status)
	return &m, nil
}

// insertMembership inserts m or returns the row already held by (circle, user)
func insertMembership(ctx context.Context, q querier, m *circles.Membership) (*circles.Membership, bool, error) {
	stored, err := scanMembership(q.QueryRow(ctx, `
		INSERT INTO memberships (`+membershipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (circle_id, user_id) DO NOTHING
		RETURNING `+membershipColumns,
		m.ID, m.CircleID, m.UserID, string(m.Role), string(m.Status), m.CreatedAt, m.UpdatedAt))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, circles.ErrNotFound) {
		if isUniqueViolation(err) {
			return nil, false, circles.ErrConflict
		}
		return nil, false, fmt.Errorf("failed to insert membership: %w", err)
	}

	existing, err := scanMembership(q.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM memberships WHERE circle_id = $1 AND user_id = $2
	`, m.CircleID, m.UserID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing membership: %w", err)
	}
	return existing, false, nil
}

func (s *Store) GetMembership(ctx context.Context, circleID, userID uuid.UUID) (*circles.Membership, error) {
	return scanMembership(s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM memberships WHERE circle_id = $1 AND user_id = $2
	`, circleID, userID))
}

func (s *Store) GetMembershipByID(ctx context.Context, id uuid.UUID) (*circles.Membership, error) {
	return scanMembership(s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM memberships WHERE id = $1
	`, id))
}

func (s *Store) InsertMembership(ctx context.Context, m *circles.Membership) (*circles.Membership, bool, error) {
	stored, created, err := insertMembership(ctx, s.pool, m)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, false, circles.ErrNotFound
		}
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Store) ActivateMembership(ctx context.Context, id uuid.UUID) (*circles.Membership, error) {
	m, err := scanMembership(s.pool.QueryRow(ctx, `
		UPDATE memberships SET status = 'ACTIVE', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+membershipColumns,
		id))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, circles.ErrNotFound) {
		return nil, fmt.Errorf("failed to activate membership: %w", err)
	}

	if _, err := s.GetMembershipByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, circles.ErrInvalidState
}

func (s *Store) DeleteMembership(ctx context.Context, id uuid.UUID, pendingOnly bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var role, status string
	err = tx.QueryRow(ctx, `SELECT role, status FROM memberships WHERE id = $1 FOR UPDATE`, id).Scan(&role, &status)
	if err != nil {
		return notFound(err)
	}
	if circles.Role(role) == circles.RoleOwner {
		return circles.ErrForbidden
	}
	if pendingOnly && circles.Status(status) != circles.StatusPending {
		return circles.ErrInvalidState
	}

	if _, err := tx.Exec(ctx, `DELETE FROM memberships WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) ListMembers(ctx context.Context, circleID uuid.UUID, status circles.Status) ([]circles.MemberInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.user_id, COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.image, ''),
		       m.role, m.status, m.created_at
		FROM memberships m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.circle_id = $1 AND m.status = $2
		ORDER BY (m.role = 'OWNER') DESC, m.created_at ASC, m.id
	`, circleID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (circles.MemberInfo, error) {
		var mi circles.MemberInfo
		var role, st string
		err := row.Scan(&mi.MembershipID, &mi.UserID, &mi.Name, &mi.Email, &mi.Image, &role, &st, &mi.CreatedAt)
		mi.Role = circles.Role(role)
		mi.Status = circles.Status(st)
		return mi, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan members: %w", err)
	}
	return members, nil
}

func (s *Store) CountMembers(ctx context.Context, circleID uuid.UUID, status circles.Status) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM memberships WHERE circle_id = $1 AND status = $2
	`, circleID, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}
