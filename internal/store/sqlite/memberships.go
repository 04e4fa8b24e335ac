package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// insertMembership inserts m or returns the row already held by (circle, user)
func insertMembership(tx *gorm.DB, m *circles.Membership) (*circles.Membership, bool, error) {
	row := toMembershipRow(m)
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "circle_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, false, circles.ErrConflict
		}
		return nil, false, fmt.Errorf("failed to insert membership: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return row.toMembership(), true, nil
	}

	var existing membershipRow
	if err := tx.First(&existing, "circle_id = ? AND user_id = ?", m.CircleID, m.UserID).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load existing membership: %w", err)
	}
	return existing.toMembership(), false, nil
}

func (s *Store) GetMembership(ctx context.Context, circleID, userID uuid.UUID) (*circles.Membership, error) {
	var row membershipRow
	if err := s.db.WithContext(ctx).First(&row, "circle_id = ? AND user_id = ?", circleID, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toMembership(), nil
}

func (s *Store) GetMembershipByID(ctx context.Context, id uuid.UUID) (*circles.Membership, error) {
	var row membershipRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toMembership(), nil
}

func (s *Store) InsertMembership(ctx context.Context, m *circles.Membership) (*circles.Membership, bool, error) {
	var stored *circles.Membership
	var created bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&circleRow{}).Where("id = ?", m.CircleID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return circles.ErrNotFound
		}

		var err error
		stored, created, err = insertMembership(tx, m)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Store) ActivateMembership(ctx context.Context, id uuid.UUID) (*circles.Membership, error) {
	var out *circles.Membership

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&membershipRow{}).
			Where("id = ? AND status = ?", id, string(circles.StatusPending)).
			UpdateColumns(map[string]any{"status": string(circles.StatusActive), "updated_at": now()})
		if res.Error != nil {
			return fmt.Errorf("failed to activate membership: %w", res.Error)
		}

		var row membershipRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if res.RowsAffected == 0 {
			return circles.ErrInvalidState
		}
		out = row.toMembership()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteMembership(ctx context.Context, id uuid.UUID, pendingOnly bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row membershipRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if circles.Role(row.Role) == circles.RoleOwner {
			return circles.ErrForbidden
		}
		if pendingOnly && circles.Status(row.Status) != circles.StatusPending {
			return circles.ErrInvalidState
		}

		if err := tx.Delete(&membershipRow{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete membership: %w", err)
		}
		return nil
	})
}

type memberInfoRow struct {
	MembershipID uuid.UUID
	UserID       uuid.UUID
	Name         string
	Email        string
	Image        string
	Role         string
	Status       string
	CreatedAt    time.Time
}

func (s *Store) ListMembers(ctx context.Context, circleID uuid.UUID, status circles.Status) ([]circles.MemberInfo, error) {
	var rows []memberInfoRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT m.id AS membership_id, m.user_id AS user_id,
		       COALESCE(u.name, '') AS name, COALESCE(u.email, '') AS email, COALESCE(u.image, '') AS image,
		       m.role AS role, m.status AS status, m.created_at AS created_at
		FROM memberships m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.circle_id = ? AND m.status = ?
		ORDER BY (m.role = 'OWNER') DESC, m.created_at ASC, m.id
	`, circleID, string(status)).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}

	out := make([]circles.MemberInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, circles.MemberInfo{
			MembershipID: r.MembershipID,
			UserID:       r.UserID,
			Name:         r.Name,
			Email:        r.Email,
			Image:        r.Image,
			Role:         circles.Role(r.Role),
			Status:       circles.Status(r.Status),
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) CountMembers(ctx context.Context, circleID uuid.UUID, status circles.Status) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&membershipRow{}).
		Where("circle_id = ? AND status = ?", circleID, string(status)).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return int(n), nil
}
