package circles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/aliuyar1234/circles/internal/codegen"
	"github.com/aliuyar1234/circles/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// codeAttempts bounds retries when a generated code is already taken
const codeAttempts = 3

// Service provides circle membership and invitation operations.
// The principal is always passed explicitly; the service never reads it from context.
type Service struct {
	store        Store
	now          func() time.Time
	generateCode func() (string, error)
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator overrides invite code generation
func WithCodeGenerator(generate func() (string, error)) Option {
	return func(s *Service) { s.generateCode = generate }
}

// NewService creates a new circles service
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		now:          func() time.Time { return time.Now().UTC() },
		generateCode: codegen.Generate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the backing store
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateCircle creates a new circle and makes the principal its OWNER
func (s *Service) CreateCircle(ctx context.Context, p auth.Principal, name, description string) (*Circle, error) {
	if p.IsZero() {
		return nil, fmt.Errorf("%w: principal required", ErrValidation)
	}

	name = validation.NormalizeCircleName(name)
	if err := validation.ValidateCircleName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	description = validation.NormalizeDescription(description)
	if err := validation.ValidateDescription(description); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := s.touchUser(ctx, p); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.newCode(ctx)
		if err != nil {
			return nil, err
		}

		now := s.now()
		circle := &Circle{
			ID:                  uuid.New(),
			Name:                name,
			Description:         description,
			OwnerID:             p.ID,
			InviteCode:          code,
			IsInviteLinkEnabled: true,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		err = s.store.CreateCircle(ctx, circle, s.createOwnerMembership(circle, p.ID))
		if err == nil {
			log.Info().
				Str("circle_id", circle.ID.String()).
				Str("owner_id", p.ID.String()).
				Msg("Circle created")
			return circle, nil
		}
		if errors.Is(err, ErrConflict) {
			// Invite code taken between the check and the insert; retry.
			continue
		}
		return nil, fmt.Errorf("failed to create circle: %w", err)
	}

	return nil, fmt.Errorf("failed to create circle: code collision retry exhausted")
}

// GetCircle returns the principal's view of a circle.
// Non-participants get ErrNotFound; pending members get a reduced view.
func (s *Service) GetCircle(ctx context.Context, p auth.Principal, circleID uuid.UUID) (*CircleView, error) {
	m, err := s.requireParticipant(ctx, p, circleID)
	if err != nil {
		return nil, err
	}

	circle, err := s.store.GetCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}

	owner, err := s.userRef(ctx, circle.OwnerID)
	if err != nil {
		return nil, err
	}

	view := &CircleView{
		ID:                circle.ID,
		Name:              circle.Name,
		Description:       circle.Description,
		Owner:             owner,
		CreatedAt:         circle.CreatedAt,
		CurrentUserRole:   m.Role,
		CurrentUserStatus: m.Status,
	}

	switch m.Status {
	case StatusPending:
		return view, nil
	case StatusActive:
	default:
		return nil, fmt.Errorf("membership %s has unknown status %q", m.ID, m.Status)
	}

	members, err := s.store.ListMembers(ctx, circleID, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	view.Members = members
	view.MemberCount = len(members)

	events, err := s.store.ListEvents(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	view.Events = events
	view.UpcomingEvents = countUpcoming(events, s.now())

	if m.Role == RoleOwner {
		pending, err := s.store.CountMembers(ctx, circleID, StatusPending)
		if err != nil {
			return nil, fmt.Errorf("failed to count pending members: %w", err)
		}
		view.Settings = &CircleSettings{
			InviteCode:          circle.InviteCode,
			IsInviteLinkEnabled: circle.IsInviteLinkEnabled,
			PendingCount:        pending,
		}
	}

	return view, nil
}

// ListMyCircles returns every circle the principal holds a membership in
func (s *Service) ListMyCircles(ctx context.Context, p auth.Principal) ([]CircleSummary, error) {
	if p.IsZero() {
		return nil, nil
	}
	circles, err := s.store.ListCirclesForUser(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list circles: %w", err)
	}
	for i := range circles {
		if circles[i].Status == StatusPending {
			circles[i].MemberCount = 0
		}
	}
	return circles, nil
}

// DeleteCircle deletes a circle with all memberships, limited links and events
func (s *Service) DeleteCircle(ctx context.Context, p auth.Principal, circleID uuid.UUID) error {
	if _, err := s.requireOwner(ctx, p, circleID); err != nil {
		return err
	}
	if err := s.store.DeleteCircle(ctx, circleID); err != nil {
		return err
	}

	log.Info().
		Str("circle_id", circleID.String()).
		Str("owner_id", p.ID.String()).
		Msg("Circle deleted")
	return nil
}

// newCode returns a code unused in both invite namespaces
func (s *Service) newCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return "", err
		}

		inUse, err := s.store.CodeInUse(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate invite code: collision retry exhausted")
}

// touchUser refreshes the cached profile of the principal
func (s *Service) touchUser(ctx context.Context, p auth.Principal) error {
	err := s.store.UpsertUser(ctx, User{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Image:     p.Image,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (s *Service) userRef(ctx context.Context, userID uuid.UUID) (UserRef, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return UserRef{ID: userID}, nil
		}
		return UserRef{}, fmt.Errorf("failed to load user: %w", err)
	}
	return UserRef{ID: u.ID, Name: u.Name, Image: u.Image}, nil
}
