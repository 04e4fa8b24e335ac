package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const linkColumns = `id, circle_id, code, max_uses, used_count, created_by_user_id, created_at, revoked_at`

func scanLink(row rowScanner) (*circles.LimitedInviteLink, error) {
	var l circles.LimitedInviteLink
	if err := row.Scan(&l.ID, &l.CircleID, &l.Code, &l.MaxUses, &l.UsedCount, &l.CreatedByID, &l.CreatedAt, &l.RevokedAt); err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (s *Store) CreateLimitedLink(ctx context.Context, l *circles.LimitedInviteLink) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var taken bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM circles WHERE invite_code = $1)`, l.Code).Scan(&taken); err != nil {
		return fmt.Errorf("failed to check invite code: %w", err)
	}
	if taken {
		return circles.ErrConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO limited_invite_links (`+linkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.CircleID, l.Code, l.MaxUses, l.UsedCount, l.CreatedByID, l.CreatedAt, l.RevokedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return circles.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return circles.ErrNotFound
		}
		return fmt.Errorf("failed to insert limited invite link: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetLimitedLink(ctx context.Context, id uuid.UUID) (*circles.LimitedInviteLink, error) {
	return scanLink(s.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM limited_invite_links WHERE id = $1`, id))
}

func (s *Store) GetLimitedLinkByCode(ctx context.Context, code string) (*circles.LimitedInviteLink, error) {
	return scanLink(s.pool.QueryRow(ctx, `
		SELECT `+linkColumns+` FROM limited_invite_links WHERE code = $1 AND revoked_at IS NULL
	`, code))
}

func (s *Store) ListLimitedLinks(ctx context.Context, circleID uuid.UUID) ([]circles.LimitedInviteLink, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+linkColumns+`
		FROM limited_invite_links
		WHERE circle_id = $1 AND revoked_at IS NULL
		ORDER BY created_at DESC, id
	`, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query limited invite links: %w", err)
	}

	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (circles.LimitedInviteLink, error) {
		l, err := scanLink(row)
		if err != nil {
			return circles.LimitedInviteLink{}, err
		}
		return *l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan limited invite links: %w", err)
	}
	return links, nil
}

func (s *Store) RevokeLimitedLink(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE limited_invite_links SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke limited invite link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return circles.ErrNotFound
	}
	return nil
}

// RedeemLimitedLink consumes a use with a conditional increment and inserts
// the membership in the same transaction. If the insert finds an existing
// membership the transaction rolls back and the use is returned.
func (s *Store) RedeemLimitedLink(ctx context.Context, code string, m *circles.Membership) (*circles.Membership, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var linkID, circleID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id, circle_id FROM limited_invite_links WHERE code = $1 AND revoked_at IS NULL
	`, code).Scan(&linkID, &circleID)
	if err != nil {
		return nil, false, notFound(err)
	}

	existing, err := scanMembership(tx.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM memberships WHERE circle_id = $1 AND user_id = $2
	`, circleID, m.UserID))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, circles.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to load membership: %w", err)
	}

	// Under READ COMMITTED the row lock taken here serialises concurrent
	// redeemers; each re-evaluates the predicate after the previous commit.
	tag, err := tx.Exec(ctx, `
		UPDATE limited_invite_links
		SET used_count = used_count + 1
		WHERE id = $1 AND used_count < max_uses AND revoked_at IS NULL
	`, linkID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to consume limited invite link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var revoked bool
		if err := tx.QueryRow(ctx, `SELECT revoked_at IS NOT NULL FROM limited_invite_links WHERE id = $1`, linkID).Scan(&revoked); err != nil {
			return nil, false, notFound(err)
		}
		if revoked {
			return nil, false, circles.ErrNotFound
		}
		return nil, false, circles.ErrExhausted
	}

	row := *m
	row.CircleID = circleID
	stored, created, err := insertMembership(ctx, tx, &row)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return stored, false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, true, nil
}
