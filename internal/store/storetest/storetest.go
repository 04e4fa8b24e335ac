// Package storetest holds the behavioural suite every store backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aliuyar1234/circles/internal/audit"
	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/aliuyar1234/circles/internal/retention"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Store is the full surface a backend provides
type Store interface {
	circles.Store
	audit.Store
	retention.Store
}

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) Store

// Run executes the suite against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s Store)
	}{
		{"CreateCircle", testCreateCircle},
		{"CreateCircleCodeConflict", testCreateCircleCodeConflict},
		{"CodeInUse", testCodeInUse},
		{"UpsertUser", testUpsertUser},
		{"InsertMembershipIdempotent", testInsertMembershipIdempotent},
		{"ActivateMembership", testActivateMembership},
		{"DeleteMembership", testDeleteMembership},
		{"ListMembers", testListMembers},
		{"ListCirclesForUser", testListCirclesForUser},
		{"RedeemInviteCode", testRedeemInviteCode},
		{"SetInviteCode", testSetInviteCode},
		{"LimitedLinkLifecycle", testLimitedLinkLifecycle},
		{"RedeemLimitedLink", testRedeemLimitedLink},
		{"ConcurrentLimitedRedemption", testConcurrentLimitedRedemption},
		{"ConcurrentGeneralRedemption", testConcurrentGeneralRedemption},
		{"Events", testEvents},
		{"DeleteCircleCascades", testDeleteCircleCascades},
		{"AuditEvents", testAuditEvents},
		{"Purge", testPurge},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(s.Close)
			tt.fn(t, s)
		})
	}
}

var codeCounter struct {
	sync.Mutex
	n int
}

// code returns a unique well-formed invite code
func code() string {
	codeCounter.Lock()
	defer codeCounter.Unlock()
	codeCounter.n++
	return fmt.Sprintf("testcode%08d", codeCounter.n)
}

func baseTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func seedUser(t *testing.T, s Store, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, s.UpsertUser(context.Background(), circles.User{
		ID:        id,
		Name:      name,
		Email:     name + "@example.com",
		UpdatedAt: baseTime(),
	}))
	return id
}

func seedCircle(t *testing.T, s Store, ownerID uuid.UUID) *circles.Circle {
	t.Helper()
	now := baseTime()
	c := &circles.Circle{
		ID:                  uuid.New(),
		Name:                "Book club",
		Description:         "Monthly reads",
		OwnerID:             ownerID,
		InviteCode:          code(),
		IsInviteLinkEnabled: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, s.CreateCircle(context.Background(), c, membership(c.ID, ownerID, circles.RoleOwner, circles.StatusActive, now)))
	return c
}

func membership(circleID, userID uuid.UUID, role circles.Role, status circles.Status, at time.Time) *circles.Membership {
	return &circles.Membership{
		ID:        uuid.New(),
		CircleID:  circleID,
		UserID:    userID,
		Role:      role,
		Status:    status,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func seedMember(t *testing.T, s Store, circleID uuid.UUID, name string, status circles.Status, at time.Time) (uuid.UUID, *circles.Membership) {
	t.Helper()
	userID := seedUser(t, s, name)
	stored, created, err := s.InsertMembership(context.Background(), membership(circleID, userID, circles.RoleMember, status, at))
	require.NoError(t, err)
	require.True(t, created)
	return userID, stored
}

func seedLink(t *testing.T, s Store, c *circles.Circle, maxUses int, at time.Time) *circles.LimitedInviteLink {
	t.Helper()
	l := &circles.LimitedInviteLink{
		ID:          uuid.New(),
		CircleID:    c.ID,
		Code:        code(),
		MaxUses:     maxUses,
		CreatedByID: c.OwnerID,
		CreatedAt:   at,
	}
	require.NoError(t, s.CreateLimitedLink(context.Background(), l))
	return l
}

func testCreateCircle(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)

	got, err := s.GetCircle(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.Name, got.Name)
	require.Equal(t, c.Description, got.Description)
	require.Equal(t, owner, got.OwnerID)
	require.Equal(t, c.InviteCode, got.InviteCode)
	require.True(t, got.IsInviteLinkEnabled)

	byCode, err := s.GetCircleByInviteCode(ctx, c.InviteCode)
	require.NoError(t, err)
	require.Equal(t, c.ID, byCode.ID)

	m, err := s.GetMembership(ctx, c.ID, owner)
	require.NoError(t, err)
	require.Equal(t, circles.RoleOwner, m.Role)
	require.Equal(t, circles.StatusActive, m.Status)

	_, err = s.GetCircle(ctx, uuid.New())
	require.ErrorIs(t, err, circles.ErrNotFound)
	_, err = s.GetCircleByInviteCode(ctx, "missingcode0000")
	require.ErrorIs(t, err, circles.ErrNotFound)
}

func testCreateCircleCodeConflict(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)

	dup := &circles.Circle{
		ID:                  uuid.New(),
		Name:                "Other",
		OwnerID:             owner,
		InviteCode:          c.InviteCode,
		IsInviteLinkEnabled: true,
		CreatedAt:           baseTime(),
		UpdatedAt:           baseTime(),
	}
	err := s.CreateCircle(ctx, dup, membership(dup.ID, owner, circles.RoleOwner, circles.StatusActive, baseTime()))
	require.ErrorIs(t, err, circles.ErrConflict)

	_, err = s.GetCircle(ctx, dup.ID)
	require.ErrorIs(t, err, circles.ErrNotFound)
}

func testCodeInUse(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	link := seedLink(t, s, c, 2, baseTime())

	inUse, err := s.CodeInUse(ctx, c.InviteCode)
	require.NoError(t, err)
	require.True(t, inUse)

	inUse, err = s.CodeInUse(ctx, link.Code)
	require.NoError(t, err)
	require.True(t, inUse)

	require.NoError(t, s.RevokeLimitedLink(ctx, link.ID))
	inUse, err = s.CodeInUse(ctx, link.Code)
	require.NoError(t, err)
	require.True(t, inUse, "revoked codes are never reissued")

	inUse, err = s.CodeInUse(ctx, code())
	require.NoError(t, err)
	require.False(t, inUse)

	other := &circles.LimitedInviteLink{
		ID:          uuid.New(),
		CircleID:    c.ID,
		Code:        c.InviteCode,
		MaxUses:     1,
		CreatedByID: owner,
		CreatedAt:   baseTime(),
	}
	require.ErrorIs(t, s.CreateLimitedLink(ctx, other), circles.ErrConflict)
}

func testUpsertUser(t *testing.T, s Store) {
	ctx := context.Background()
	id := seedUser(t, s, "alice")

	require.NoError(t, s.UpsertUser(ctx, circles.User{ID: id, Name: "Alice B", Email: "alice@example.com", Image: "https://img/a.png", UpdatedAt: baseTime()}))

	u, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Alice B", u.Name)
	require.Equal(t, "https://img/a.png", u.Image)

	_, err = s.GetUser(ctx, uuid.New())
	require.ErrorIs(t, err, circles.ErrNotFound)
}

func testInsertMembershipIdempotent(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	userID, first := seedMember(t, s, c.ID, "bob", circles.StatusPending, baseTime())

	again, created, err := s.InsertMembership(ctx, membership(c.ID, userID, circles.RoleMember, circles.StatusActive, baseTime()))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, circles.StatusPending, again.Status)

	n, err := s.CountMembers(ctx, c.ID, circles.StatusPending)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func testActivateMembership(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	_, m := seedMember(t, s, c.ID, "bob", circles.StatusPending, baseTime())

	activated, err := s.ActivateMembership(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, circles.StatusActive, activated.Status)
	require.Equal(t, m.ID, activated.ID)
	require.Equal(t, c.ID, activated.CircleID)

	_, err = s.ActivateMembership(ctx, m.ID)
	require.ErrorIs(t, err, circles.ErrInvalidState)

	_, err = s.ActivateMembership(ctx, uuid.New())
	require.ErrorIs(t, err, circles.ErrNotFound)

	got, err := s.GetMembershipByID(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, circles.StatusActive, got.Status)
}

func testDeleteMembership(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	ownerRow, err := s.GetMembership(ctx, c.ID, owner)
	require.NoError(t, err)

	_, pending := seedMember(t, s, c.ID, "pending", circles.StatusPending, baseTime())
	_, active := seedMember(t, s, c.ID, "active", circles.StatusActive, baseTime())

	require.ErrorIs(t, s.DeleteMembership(ctx, ownerRow.ID, false), circles.ErrForbidden)
	require.ErrorIs(t, s.DeleteMembership(ctx, active.ID, true), circles.ErrInvalidState)

	require.NoError(t, s.DeleteMembership(ctx, pending.ID, true))
	require.NoError(t, s.DeleteMembership(ctx, active.ID, false))

	require.ErrorIs(t, s.DeleteMembership(ctx, pending.ID, true), circles.ErrNotFound)
	_, err = s.GetMembershipByID(ctx, active.ID)
	require.ErrorIs(t, err, circles.ErrNotFound)

	_, err = s.GetMembership(ctx, c.ID, owner)
	require.NoError(t, err)
}

func testListMembers(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	base := baseTime()

	seedMember(t, s, c.ID, "carol", circles.StatusActive, base.Add(2*time.Second))
	seedMember(t, s, c.ID, "bob", circles.StatusActive, base.Add(time.Second))
	seedMember(t, s, c.ID, "dave", circles.StatusPending, base.Add(3*time.Second))

	active, err := s.ListMembers(ctx, c.ID, circles.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 3)
	require.Equal(t, owner, active[0].UserID)
	require.Equal(t, circles.RoleOwner, active[0].Role)
	require.Equal(t, "bob", active[1].Name)
	require.Equal(t, "bob@example.com", active[1].Email)
	require.Equal(t, "carol", active[2].Name)

	pending, err := s.ListMembers(ctx, c.ID, circles.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "dave", pending[0].Name)
	require.Equal(t, circles.StatusPending, pending[0].Status)

	n, err := s.CountMembers(ctx, c.ID, circles.StatusActive)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func testListCirclesForUser(t *testing.T, s Store) {
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	owned := seedCircle(t, s, alice)
	joined := seedCircle(t, s, bob)

	_, _, err := s.InsertMembership(ctx, membership(joined.ID, alice, circles.RoleMember, circles.StatusPending, baseTime()))
	require.NoError(t, err)

	list, err := s.ListCirclesForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[uuid.UUID]circles.CircleSummary{}
	for _, c := range list {
		byID[c.ID] = c
	}
	require.Equal(t, circles.RoleOwner, byID[owned.ID].Role)
	require.Equal(t, 1, byID[owned.ID].MemberCount)
	require.Equal(t, circles.StatusPending, byID[joined.ID].Status)

	empty, err := s.ListCirclesForUser(ctx, uuid.New())
	require.NoError(t, err)
	require.Empty(t, empty)
}

func testRedeemInviteCode(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	bob := seedUser(t, s, "bob")

	_, _, err := s.RedeemInviteCode(ctx, "unknowncode0000", membership(uuid.Nil, bob, circles.RoleMember, circles.StatusPending, baseTime()))
	require.ErrorIs(t, err, circles.ErrNotFound)

	stored, created, err := s.RedeemInviteCode(ctx, c.InviteCode, membership(uuid.Nil, bob, circles.RoleMember, circles.StatusPending, baseTime()))
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, c.ID, stored.CircleID)
	require.Equal(t, circles.StatusPending, stored.Status)

	again, created, err := s.RedeemInviteCode(ctx, c.InviteCode, membership(uuid.Nil, bob, circles.RoleMember, circles.StatusPending, baseTime()))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, stored.ID, again.ID)

	require.NoError(t, s.SetInviteLinkEnabled(ctx, c.ID, false))
	carol := seedUser(t, s, "carol")
	_, _, err = s.RedeemInviteCode(ctx, c.InviteCode, membership(uuid.Nil, carol, circles.RoleMember, circles.StatusPending, baseTime()))
	require.ErrorIs(t, err, circles.ErrDisabled)

	got, err := s.GetCircle(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, got.IsInviteLinkEnabled)

	n, err := s.CountMembers(ctx, c.ID, circles.StatusPending)
	require.NoError(t, err)
	require.Equal(t, 1, n, "disabling the link keeps pending requests")

	require.ErrorIs(t, s.SetInviteLinkEnabled(ctx, uuid.New(), true), circles.ErrNotFound)
}

func testSetInviteCode(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	other := seedCircle(t, s, owner)
	bob := seedUser(t, s, "bob")

	fresh := code()
	require.NoError(t, s.SetInviteCode(ctx, c.ID, fresh))

	_, err := s.GetCircleByInviteCode(ctx, c.InviteCode)
	require.ErrorIs(t, err, circles.ErrNotFound)
	_, _, err = s.RedeemInviteCode(ctx, c.InviteCode, membership(uuid.Nil, bob, circles.RoleMember, circles.StatusPending, baseTime()))
	require.ErrorIs(t, err, circles.ErrNotFound)

	got, err := s.GetCircleByInviteCode(ctx, fresh)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)

	require.ErrorIs(t, s.SetInviteCode(ctx, c.ID, other.InviteCode), circles.ErrConflict)
	require.ErrorIs(t, s.SetInviteCode(ctx, uuid.New(), code()), circles.ErrNotFound)
}

func testLimitedLinkLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	base := baseTime()

	older := seedLink(t, s, c, 3, base)
	newer := seedLink(t, s, c, 1, base.Add(time.Minute))

	got, err := s.GetLimitedLinkByCode(ctx, older.Code)
	require.NoError(t, err)
	require.Equal(t, older.ID, got.ID)
	require.Equal(t, 3, got.MaxUses)
	require.Equal(t, 0, got.UsedCount)
	require.Nil(t, got.RevokedAt)

	list, err := s.ListLimitedLinks(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)
	require.Equal(t, older.ID, list[1].ID)

	require.NoError(t, s.RevokeLimitedLink(ctx, older.ID))
	require.ErrorIs(t, s.RevokeLimitedLink(ctx, older.ID), circles.ErrNotFound)
	require.ErrorIs(t, s.RevokeLimitedLink(ctx, uuid.New()), circles.ErrNotFound)

	_, err = s.GetLimitedLinkByCode(ctx, older.Code)
	require.ErrorIs(t, err, circles.ErrNotFound)

	revoked, err := s.GetLimitedLink(ctx, older.ID)
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)

	list, err = s.ListLimitedLinks(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, newer.ID, list[0].ID)
}

func testRedeemLimitedLink(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	link := seedLink(t, s, c, 1, baseTime())

	bob := seedUser(t, s, "bob")
	stored, created, err := s.RedeemLimitedLink(ctx, link.Code, membership(uuid.Nil, bob, circles.RoleMember, circles.StatusActive, baseTime()))
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, c.ID, stored.CircleID)
	require.Equal(t, circles.StatusActive, stored.Status)

	// Existing members consume nothing, even on an exhausted link.
	again, created, err := s.RedeemLimitedLink(ctx, link.Code, membership(uuid.Nil, bob, circles.RoleMember, circles.StatusActive, baseTime()))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, stored.ID, again.ID)

	carol := seedUser(t, s, "carol")
	_, _, err = s.RedeemLimitedLink(ctx, link.Code, membership(uuid.Nil, carol, circles.RoleMember, circles.StatusActive, baseTime()))
	require.ErrorIs(t, err, circles.ErrExhausted)

	got, err := s.GetLimitedLink(ctx, link.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.UsedCount)

	_, err = s.GetMembership(ctx, c.ID, carol)
	require.ErrorIs(t, err, circles.ErrNotFound)

	fresh := seedLink(t, s, c, 5, baseTime())
	require.NoError(t, s.RevokeLimitedLink(ctx, fresh.ID))
	_, _, err = s.RedeemLimitedLink(ctx, fresh.Code, membership(uuid.Nil, carol, circles.RoleMember, circles.StatusActive, baseTime()))
	require.ErrorIs(t, err, circles.ErrNotFound)

	_, _, err = s.RedeemLimitedLink(ctx, "unknowncode0000", membership(uuid.Nil, carol, circles.RoleMember, circles.StatusActive, baseTime()))
	require.ErrorIs(t, err, circles.ErrNotFound)
}

func testConcurrentLimitedRedemption(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)

	const capacity, extra = 3, 5
	link := seedLink(t, s, c, capacity, baseTime())

	users := make([]uuid.UUID, capacity+extra)
	for i := range users {
		users[i] = seedUser(t, s, fmt.Sprintf("user%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
		other     []error
	)
	for _, userID := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, _, err := s.RedeemLimitedLink(ctx, link.Code, membership(uuid.Nil, userID, circles.RoleMember, circles.StatusActive, baseTime()))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, circles.ErrExhausted):
				exhausted++
			default:
				other = append(other, err)
			}
		}(userID)
	}
	wg.Wait()

	require.Empty(t, other)
	require.Equal(t, capacity, succeeded)
	require.Equal(t, extra, exhausted)

	got, err := s.GetLimitedLink(ctx, link.ID)
	require.NoError(t, err)
	require.Equal(t, capacity, got.UsedCount)

	n, err := s.CountMembers(ctx, c.ID, circles.StatusActive)
	require.NoError(t, err)
	require.Equal(t, capacity+1, n)
}

func testConcurrentGeneralRedemption(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	bob := seedUser(t, s, "bob")

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[uuid.UUID]bool{}
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, ok, err := s.RedeemInviteCode(ctx, c.InviteCode, membership(uuid.Nil, bob, circles.RoleMember, circles.StatusPending, baseTime()))
			if !assertNoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[stored.ID] = true
		}()
	}
	wg.Wait()

	require.Equal(t, 1, created)
	require.Len(t, ids, 1)
}

func assertNoError(t *testing.T, err error) bool {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
		return false
	}
	return true
}

func event(circleID, createdBy uuid.UUID, title string, startsAt time.Time) *circles.Event {
	return &circles.Event{
		ID:          uuid.New(),
		CircleID:    circleID,
		Title:       title,
		Location:    "Riverside",
		StartsAt:    startsAt,
		CreatedByID: createdBy,
		CreatedAt:   baseTime(),
	}
}

func testEvents(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	other := seedCircle(t, s, owner)
	base := baseTime()

	empty, err := s.ListEvents(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, empty)

	late := event(c.ID, owner, "Late", base.Add(48*time.Hour))
	early := event(c.ID, owner, "Early", base.Add(time.Hour))
	require.NoError(t, s.CreateEvent(ctx, late))
	require.NoError(t, s.CreateEvent(ctx, early))
	require.NoError(t, s.CreateEvent(ctx, event(other.ID, owner, "Elsewhere", base)))

	err = s.CreateEvent(ctx, event(uuid.New(), owner, "Orphan", base))
	require.ErrorIs(t, err, circles.ErrNotFound)

	events, err := s.ListEvents(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, early.ID, events[0].ID)
	require.Equal(t, late.ID, events[1].ID)
	require.Equal(t, c.ID, events[0].CircleID)
	require.Equal(t, "Early", events[0].Title)
	require.Equal(t, "Riverside", events[0].Location)
	require.Equal(t, owner, events[0].CreatedByID)
	require.True(t, early.StartsAt.Equal(events[0].StartsAt))
}

func testDeleteCircleCascades(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	_, m := seedMember(t, s, c.ID, "bob", circles.StatusActive, baseTime())
	link := seedLink(t, s, c, 2, baseTime())
	require.NoError(t, s.CreateEvent(ctx, event(c.ID, owner, "Picnic", baseTime().Add(time.Hour))))

	require.NoError(t, s.DeleteCircle(ctx, c.ID))
	require.ErrorIs(t, s.DeleteCircle(ctx, c.ID), circles.ErrNotFound)

	_, err := s.GetCircle(ctx, c.ID)
	require.ErrorIs(t, err, circles.ErrNotFound)
	_, err = s.GetMembershipByID(ctx, m.ID)
	require.ErrorIs(t, err, circles.ErrNotFound)
	_, err = s.GetLimitedLink(ctx, link.ID)
	require.ErrorIs(t, err, circles.ErrNotFound)

	list, err := s.ListCirclesForUser(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, list)

	events, err := s.ListEvents(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, events)
}

func testAuditEvents(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)
	base := baseTime()

	for i, action := range []string{audit.EventCircleCreated, audit.EventCircleJoinRequested, audit.EventCircleMemberApproved} {
		require.NoError(t, s.AppendAuditEvent(ctx, audit.Event{
			ID:          uuid.New(),
			CircleID:    c.ID,
			ActorUserID: &owner,
			Action:      action,
			Meta:        map[string]any{"step": "x"},
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.AppendAuditEvent(ctx, audit.Event{
		ID:        uuid.New(),
		CircleID:  uuid.New(),
		Action:    audit.EventCircleCreated,
		Meta:      map[string]any{},
		CreatedAt: base,
	}))

	events, err := s.ListAuditEvents(ctx, c.ID, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NotEqual(t, uuid.Nil, events[0].ID)
	require.Equal(t, c.ID, events[0].CircleID)
	require.True(t, base.Add(2*time.Second).Equal(events[0].CreatedAt))
	require.Equal(t, audit.EventCircleMemberApproved, events[0].Action)
	require.Equal(t, audit.EventCircleJoinRequested, events[1].Action)
	require.Equal(t, "owner", events[0].ActorName)
	require.Equal(t, "x", events[0].Meta["step"])
	require.NotNil(t, events[0].ActorUserID)
	require.Equal(t, owner, *events[0].ActorUserID)

	all, err := s.ListAuditEvents(ctx, c.ID, 50)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func testPurge(t *testing.T, s Store) {
	ctx := context.Background()
	owner := seedUser(t, s, "owner")
	c := seedCircle(t, s, owner)

	revoked := seedLink(t, s, c, 1, baseTime())
	live := seedLink(t, s, c, 1, baseTime())
	require.NoError(t, s.RevokeLimitedLink(ctx, revoked.ID))

	old := baseTime().Add(-200 * 24 * time.Hour)
	require.NoError(t, s.AppendAuditEvent(ctx, audit.Event{ID: uuid.New(), CircleID: c.ID, Action: audit.EventCircleCreated, Meta: map[string]any{}, CreatedAt: old}))
	require.NoError(t, s.AppendAuditEvent(ctx, audit.Event{ID: uuid.New(), CircleID: c.ID, Action: audit.EventCircleSettingsUpdated, Meta: map[string]any{}, CreatedAt: baseTime()}))

	future := time.Now().UTC().Add(time.Hour)

	n, err := s.PurgeRevokedLinks(ctx, future)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.GetLimitedLink(ctx, revoked.ID)
	require.ErrorIs(t, err, circles.ErrNotFound)
	_, err = s.GetLimitedLink(ctx, live.ID)
	require.NoError(t, err)

	n, err = s.PurgeAuditEvents(ctx, baseTime().Add(-180*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	events, err := s.ListAuditEvents(ctx, c.ID, 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, audit.EventCircleSettingsUpdated, events[0].Action)

	n, err = s.PurgeRevokedLinks(ctx, future)
	require.NoError(t, err)
	require.Zero(t, n)
}
