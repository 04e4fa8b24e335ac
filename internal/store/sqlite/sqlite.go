// Package sqlite implements the circles stores on SQLite using GORM.
// A single connection serialises writers, which makes every transaction
// here exclusive.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aliuyar1234/circles/internal/audit"
	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store implements circles.Store, audit.Store and retention.Store
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at path and migrates it
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsnFor(path)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&userRow{},
		&circleRow{},
		&membershipRow{},
		&linkRow{},
		&eventRow{},
		&auditRow{},
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

const connParams = "_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

// dsnFor appends the connection parameters to path, which may be a plain
// file name or a file: URI that already carries a query.
func dsnFor(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + connParams
	}
	return path + "?" + connParams
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func now() time.Time {
	return time.Now().UTC()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return circles.ErrNotFound
	}
	return err
}

func (s *Store) UpsertUser(ctx context.Context, u circles.User) error {
	row := userRow{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image, UpdatedAt: u.UpdatedAt.UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "image", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*circles.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &circles.User{ID: row.ID, Name: row.Name, Email: row.Email, Image: row.Image, UpdatedAt: row.UpdatedAt}, nil
}

func (s *Store) CodeInUse(ctx context.Context, code string) (bool, error) {
	inUse, err := codeInUse(s.db.WithContext(ctx), code)
	if err != nil {
		return false, fmt.Errorf("failed to check invite code: %w", err)
	}
	return inUse, nil
}

func codeInUse(tx *gorm.DB, code string) (bool, error) {
	var n int64
	if err := tx.Model(&circleRow{}).Where("invite_code = ?", code).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := tx.Model(&linkRow{}).Where("code = ?", code).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) CreateCircle(ctx context.Context, c *circles.Circle, owner *circles.Membership) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inUse, err := codeInUse(tx, c.InviteCode)
		if err != nil {
			return fmt.Errorf("failed to check invite code: %w", err)
		}
		if inUse {
			return circles.ErrConflict
		}

		row := toCircleRow(c)
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return circles.ErrConflict
			}
			return fmt.Errorf("failed to insert circle: %w", err)
		}

		m := toMembershipRow(owner)
		if err := tx.Create(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return circles.ErrConflict
			}
			return fmt.Errorf("failed to insert owner membership: %w", err)
		}
		return nil
	})
}

func (s *Store) GetCircle(ctx context.Context, id uuid.UUID) (*circles.Circle, error) {
	var row circleRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toCircle(), nil
}

func (s *Store) GetCircleByInviteCode(ctx context.Context, code string) (*circles.Circle, error) {
	var row circleRow
	if err := s.db.WithContext(ctx).First(&row, "invite_code = ?", code).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toCircle(), nil
}

type summaryRow struct {
	ID          uuid.UUID
	Name        string
	Description string
	Role        string
	Status      string
	CreatedAt   time.Time
	MemberCount int
}

func (s *Store) ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]circles.CircleSummary, error) {
	var rows []summaryRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT c.id AS id, c.name AS name, c.description AS description,
		       m.role AS role, m.status AS status, c.created_at AS created_at,
		       (SELECT COUNT(*) FROM memberships a WHERE a.circle_id = c.id AND a.status = 'ACTIVE') AS member_count
		FROM memberships m
		JOIN circles c ON c.id = m.circle_id
		WHERE m.user_id = ?
		ORDER BY c.created_at DESC, c.id
	`, userID).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query circles: %w", err)
	}

	out := make([]circles.CircleSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, circles.CircleSummary{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Role:        circles.Role(r.Role),
			Status:      circles.Status(r.Status),
			MemberCount: r.MemberCount,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) SetInviteCode(ctx context.Context, circleID uuid.UUID, code string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inUse, err := codeInUse(tx, code)
		if err != nil {
			return fmt.Errorf("failed to check invite code: %w", err)
		}
		if inUse {
			return circles.ErrConflict
		}

		res := tx.Model(&circleRow{}).Where("id = ?", circleID).
			UpdateColumns(map[string]any{"invite_code": code, "updated_at": now()})
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return circles.ErrConflict
			}
			return fmt.Errorf("failed to update invite code: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return circles.ErrNotFound
		}
		return nil
	})
}

func (s *Store) SetInviteLinkEnabled(ctx context.Context, circleID uuid.UUID, enabled bool) error {
	res := s.db.WithContext(ctx).Model(&circleRow{}).Where("id = ?", circleID).
		UpdateColumns(map[string]any{"is_invite_link_enabled": enabled, "updated_at": now()})
	if res.Error != nil {
		return fmt.Errorf("failed to update invite link setting: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return circles.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCircle(ctx context.Context, circleID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&circleRow{}, "id = ?", circleID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete circle: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return circles.ErrNotFound
		}
		if err := tx.Delete(&membershipRow{}, "circle_id = ?", circleID).Error; err != nil {
			return fmt.Errorf("failed to delete memberships: %w", err)
		}
		if err := tx.Delete(&linkRow{}, "circle_id = ?", circleID).Error; err != nil {
			return fmt.Errorf("failed to delete limited invite links: %w", err)
		}
		if err := tx.Delete(&eventRow{}, "circle_id = ?", circleID).Error; err != nil {
			return fmt.Errorf("failed to delete circle events: %w", err)
		}
		return nil
	})
}

func (s *Store) RedeemInviteCode(ctx context.Context, code string, m *circles.Membership) (*circles.Membership, bool, error) {
	var stored *circles.Membership
	var created bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c circleRow
		if err := tx.First(&c, "invite_code = ?", code).Error; err != nil {
			return notFound(err)
		}
		if !c.IsInviteLinkEnabled {
			return circles.ErrDisabled
		}

		row := *m
		row.CircleID = c.ID
		var err error
		stored, created, err = insertMembership(tx, &row)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Store) CreateEvent(ctx context.Context, e *circles.Event) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&circleRow{}).Where("id = ?", e.CircleID).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to load circle: %w", err)
		}
		if n == 0 {
			return circles.ErrNotFound
		}

		row := eventRow{
			ID:          e.ID,
			CircleID:    e.CircleID,
			Title:       e.Title,
			Location:    e.Location,
			StartsAt:    e.StartsAt.UTC(),
			CreatedByID: e.CreatedByID,
			CreatedAt:   e.CreatedAt.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert circle event: %w", err)
		}
		return nil
	})
}

func (s *Store) ListEvents(ctx context.Context, circleID uuid.UUID) ([]circles.Event, error) {
	var rows []eventRow
	err := s.db.WithContext(ctx).
		Where("circle_id = ?", circleID).
		Order("starts_at, created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query circle events: %w", err)
	}

	out := make([]circles.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEvent())
	}
	return out, nil
}

func (s *Store) AppendAuditEvent(ctx context.Context, e audit.Event) error {
	meta := []byte("{}")
	if e.Meta != nil {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal audit meta: %w", err)
		}
		meta = b
	}

	row := auditRow{
		ID:          e.ID,
		CircleID:    e.CircleID,
		ActorUserID: e.ActorUserID,
		Action:      e.Action,
		Meta:        string(meta),
		CreatedAt:   e.CreatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

type auditListRow struct {
	ID          uuid.UUID
	CircleID    uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        string
	CreatedAt   time.Time
	ActorName   *string
}

func (s *Store) ListAuditEvents(ctx context.Context, circleID uuid.UUID, limit int) ([]audit.Event, error) {
	var rows []auditListRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT al.id AS id, al.circle_id AS circle_id, al.actor_user_id AS actor_user_id,
		       al.action AS action, al.meta AS meta, al.created_at AS created_at, u.name AS actor_name
		FROM audit_log al
		LEFT JOIN users u ON u.id = al.actor_user_id
		WHERE al.circle_id = ?
		ORDER BY al.created_at DESC, al.id
		LIMIT ?
	`, circleID, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	out := make([]audit.Event, 0, len(rows))
	for _, r := range rows {
		e := audit.Event{
			ID:          r.ID,
			CircleID:    r.CircleID,
			ActorUserID: r.ActorUserID,
			Action:      r.Action,
			Meta:        map[string]any{},
			CreatedAt:   r.CreatedAt,
		}
		if r.ActorName != nil {
			e.ActorName = *r.ActorName
		}
		_ = json.Unmarshal([]byte(r.Meta), &e.Meta)
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) PurgeRevokedLinks(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&linkRow{}, "revoked_at IS NOT NULL AND revoked_at < ?", before.UTC())
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge revoked limited invite links: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&auditRow{}, "created_at < ?", before.UTC())
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge audit events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
