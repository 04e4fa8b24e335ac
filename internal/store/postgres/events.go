package postgres

import (
	"context"
	"fmt"

	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const eventColumns = `id, circle_id, title, location, starts_at, created_by_user_id, created_at`

func (s *Store) CreateEvent(ctx context.Context, e *circles.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO circle_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.CircleID, e.Title, e.Location, e.StartsAt, e.CreatedByID, e.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return circles.ErrNotFound
		}
		return fmt.Errorf("failed to insert circle event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, circleID uuid.UUID) ([]circles.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM circle_events
		WHERE circle_id = $1
		ORDER BY starts_at, created_at, id
	`, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query circle events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (circles.Event, error) {
		var e circles.Event
		err := row.Scan(&e.ID, &e.CircleID, &e.Title, &e.Location, &e.StartsAt, &e.CreatedByID, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan circle events: %w", err)
	}
	return events, nil
}
