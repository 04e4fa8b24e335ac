package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Store) CreateLimitedLink(ctx context.Context, l *circles.LimitedInviteLink) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&circleRow{}).Where("id = ?", l.CircleID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return circles.ErrNotFound
		}

		inUse, err := codeInUse(tx, l.Code)
		if err != nil {
			return fmt.Errorf("failed to check invite code: %w", err)
		}
		if inUse {
			return circles.ErrConflict
		}

		row := toLinkRow(l)
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return circles.ErrConflict
			}
			return fmt.Errorf("failed to insert limited invite link: %w", err)
		}
		return nil
	})
}

func (s *Store) GetLimitedLink(ctx context.Context, id uuid.UUID) (*circles.LimitedInviteLink, error) {
	var row linkRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toLink(), nil
}

func (s *Store) GetLimitedLinkByCode(ctx context.Context, code string) (*circles.LimitedInviteLink, error) {
	var row linkRow
	if err := s.db.WithContext(ctx).First(&row, "code = ? AND revoked_at IS NULL", code).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toLink(), nil
}

func (s *Store) ListLimitedLinks(ctx context.Context, circleID uuid.UUID) ([]circles.LimitedInviteLink, error) {
	var rows []linkRow
	err := s.db.WithContext(ctx).
		Where("circle_id = ? AND revoked_at IS NULL", circleID).
		Order("created_at DESC").Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query limited invite links: %w", err)
	}

	out := make([]circles.LimitedInviteLink, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toLink())
	}
	return out, nil
}

func (s *Store) RevokeLimitedLink(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&linkRow{}).
		Where("id = ? AND revoked_at IS NULL", id).
		UpdateColumn("revoked_at", now())
	if res.Error != nil {
		return fmt.Errorf("failed to revoke limited invite link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return circles.ErrNotFound
	}
	return nil
}

func (s *Store) RedeemLimitedLink(ctx context.Context, code string, m *circles.Membership) (*circles.Membership, bool, error) {
	var stored *circles.Membership
	var created bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link linkRow
		if err := tx.First(&link, "code = ? AND revoked_at IS NULL", code).Error; err != nil {
			return notFound(err)
		}

		var existing membershipRow
		err := tx.First(&existing, "circle_id = ? AND user_id = ?", link.CircleID, m.UserID).Error
		if err == nil {
			stored = existing.toMembership()
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load membership: %w", err)
		}

		res := tx.Model(&linkRow{}).
			Where("id = ? AND used_count < max_uses AND revoked_at IS NULL", link.ID).
			UpdateColumn("used_count", gorm.Expr("used_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to consume limited invite link: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return circles.ErrExhausted
		}

		row := *m
		row.CircleID = link.CircleID
		stored, created, err = insertMembership(tx, &row)
		if err != nil {
			return err
		}
		if !created {
			return errAlreadyMember
		}
		return nil
	})
	if errors.Is(err, errAlreadyMember) {
		return stored, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// errAlreadyMember rolls back the consumed use when the insert found a row
var errAlreadyMember = errors.New("already a member")
