// Package postgres implements the circles stores on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store implements circles.Store, audit.Store and retention.Store
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool. Close releases it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return circles.ErrNotFound
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) UpsertUser(ctx context.Context, u circles.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, image, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    image = EXCLUDED.image,
		    updated_at = EXCLUDED.updated_at
	`, u.ID, u.Name, u.Email, u.Image, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*circles.User, error) {
	var u circles.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, image, updated_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) CodeInUse(ctx context.Context, code string) (bool, error) {
	return codeInUse(ctx, s.pool, code)
}

func codeInUse(ctx context.Context, q querier, code string) (bool, error) {
	var inUse bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM circles WHERE invite_code = $1)
		    OR EXISTS (SELECT 1 FROM limited_invite_links WHERE code = $1)
	`, code).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("failed to check invite code: %w", err)
	}
	return inUse, nil
}

// limitedCodeTaken guards the general namespace against limited codes.
// The unique constraints only cover each table on its own.
func limitedCodeTaken(ctx context.Context, q querier, code string) error {
	var taken bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM limited_invite_links WHERE code = $1)`, code).Scan(&taken); err != nil {
		return fmt.Errorf("failed to check invite code: %w", err)
	}
	if taken {
		return circles.ErrConflict
	}
	return nil
}
