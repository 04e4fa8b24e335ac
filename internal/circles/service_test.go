package circles_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/aliuyar1234/circles/internal/codegen"
	"github.com/aliuyar1234/circles/internal/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(name string) auth.Principal {
	return auth.Principal{
		ID:    uuid.New(),
		Name:  name,
		Email: name + "@example.com",
	}
}

// sequence hands out the given codes first, then random ones
func sequence(codes ...string) func() (string, error) {
	var mu sync.Mutex
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return codegen.Generate()
		}
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}
}

func newService(t *testing.T, opts ...circles.Option) (*circles.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	t.Cleanup(store.Close)
	return circles.NewService(store, opts...), store
}

func createCircle(t *testing.T, svc *circles.Service, owner auth.Principal) *circles.Circle {
	t.Helper()
	c, err := svc.CreateCircle(context.Background(), owner, "Book club", "Monthly reads")
	require.NoError(t, err)
	return c
}

func TestCreateCircle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")

	c, err := svc.CreateCircle(ctx, owner, "  Book   club ", " Monthly reads ")
	require.NoError(t, err)
	assert.Equal(t, "Book club", c.Name)
	assert.Equal(t, "Monthly reads", c.Description)
	assert.Equal(t, owner.ID, c.OwnerID)
	assert.True(t, c.IsInviteLinkEnabled)
	assert.Len(t, c.InviteCode, codegen.CodeLength)

	view, err := svc.GetCircle(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, circles.RoleOwner, view.CurrentUserRole)
	assert.Equal(t, circles.StatusActive, view.CurrentUserStatus)
	require.Len(t, view.Members, 1)
	assert.Equal(t, owner.ID, view.Members[0].UserID)
	require.NotNil(t, view.Settings)
	assert.Equal(t, c.InviteCode, view.Settings.InviteCode)
	assert.Equal(t, "olivia", view.Owner.Name)
}

func TestCreateCircle_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")

	tests := []struct {
		name        string
		p           auth.Principal
		circleName  string
		description string
	}{
		{"no principal", auth.Principal{}, "Book club", ""},
		{"empty name", owner, "   ", ""},
		{"long name", owner, strings.Repeat("n", 101), ""},
		{"long description", owner, "Book club", strings.Repeat("d", 501)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCircle(ctx, tt.p, tt.circleName, tt.description)
			assert.ErrorIs(t, err, circles.ErrValidation)
		})
	}
}

func TestCreateCircle_RetriesTakenCode(t *testing.T) {
	svc, _ := newService(t, circles.WithCodeGenerator(sequence("takencode0001", "takencode0001", "freshcode0002")))

	first := createCircle(t, svc, newUser("a"))
	second := createCircle(t, svc, newUser("b"))

	assert.Equal(t, "takencode0001", first.InviteCode)
	assert.Equal(t, "freshcode0002", second.InviteCode)
}

func TestExactlyOneOwner(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	_, err := svc.JoinCircleByCode(ctx, newUser("u1"), c.InviteCode)
	require.NoError(t, err)
	link, err := svc.CreateLimitedInviteLink(ctx, owner, c.ID, 2)
	require.NoError(t, err)
	_, err = svc.JoinCircleByCode(ctx, newUser("u2"), link.Code)
	require.NoError(t, err)

	ownerRow, err := store.GetMembership(ctx, c.ID, owner.ID)
	require.NoError(t, err)
	_, err = svc.RemoveMember(ctx, owner, c.ID, owner.ID)
	assert.ErrorIs(t, err, circles.ErrForbidden)
	_, err = svc.ApproveMembership(ctx, owner, ownerRow.ID)
	assert.ErrorIs(t, err, circles.ErrInvalidState)

	owners := 0
	for _, status := range []circles.Status{circles.StatusActive, circles.StatusPending} {
		members, err := store.ListMembers(ctx, c.ID, status)
		require.NoError(t, err)
		for _, m := range members {
			if m.Role == circles.RoleOwner {
				owners++
			}
		}
	}
	assert.Equal(t, 1, owners)
}

func TestGeneralCode_RequestJoinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)
	u := newUser("ulysses")

	first, err := svc.JoinCircleByCode(ctx, u, c.InviteCode)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, circles.ChannelGeneral, first.Channel)
	assert.Equal(t, circles.StatusPending, first.Membership.Status)
	assert.Equal(t, circles.RoleMember, first.Membership.Role)

	again, err := svc.JoinCircleByCode(ctx, u, c.InviteCode)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Membership.ID, again.Membership.ID)
	assert.Equal(t, circles.StatusPending, again.Membership.Status)

	pending, err := svc.GetPendingMembers(ctx, owner, c.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, u.ID, pending[0].UserID)
}

func TestGeneralCode_OwnerRedeemingOwnCode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	res, err := svc.JoinCircleByCode(ctx, owner, c.InviteCode)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, circles.RoleOwner, res.Membership.Role)
	assert.Equal(t, circles.StatusActive, res.Membership.Status)
}

func TestGeneralCode_Disabled(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	pendingUser := newUser("pat")
	activeUser := newUser("ann")
	_, err := svc.JoinCircleByCode(ctx, pendingUser, c.InviteCode)
	require.NoError(t, err)
	_, err = svc.JoinCircleByCode(ctx, activeUser, c.InviteCode)
	require.NoError(t, err)
	_, err = svc.ApproveMember(ctx, owner, c.ID, activeUser.ID)
	require.NoError(t, err)

	off := false
	require.NoError(t, svc.UpdateCircleSettings(ctx, owner, c.ID, circles.SettingsUpdate{IsInviteLinkEnabled: &off}))

	for _, p := range []auth.Principal{newUser("new"), pendingUser, activeUser, owner} {
		_, err := svc.JoinCircleByCode(ctx, p, c.InviteCode)
		assert.ErrorIs(t, err, circles.ErrDisabled, p.Name)
	}
	_, err = svc.GetCircleByInviteCode(ctx, c.InviteCode)
	assert.ErrorIs(t, err, circles.ErrDisabled)

	// Existing pending requests survive the toggle.
	pending, err := svc.GetPendingMembers(ctx, owner, c.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, pendingUser.ID, pending[0].UserID)

	on := true
	require.NoError(t, svc.UpdateCircleSettings(ctx, owner, c.ID, circles.SettingsUpdate{IsInviteLinkEnabled: &on}))
	_, err = svc.JoinCircleByCode(ctx, newUser("late"), c.InviteCode)
	assert.NoError(t, err)
}

func TestUpdateCircleSettings_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	err := svc.UpdateCircleSettings(ctx, owner, c.ID, circles.SettingsUpdate{})
	assert.ErrorIs(t, err, circles.ErrValidation)

	off := false
	err = svc.UpdateCircleSettings(ctx, newUser("stranger"), c.ID, circles.SettingsUpdate{IsInviteLinkEnabled: &off})
	assert.ErrorIs(t, err, circles.ErrNotFound)
}

func TestRegenerateInviteCode_InvalidatesOldCode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)
	old := c.InviteCode

	code, err := svc.RegenerateInviteCode(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.NotEqual(t, old, code)

	_, err = svc.JoinCircleByCode(ctx, newUser("u"), old)
	assert.ErrorIs(t, err, circles.ErrNotFound)
	_, err = svc.GetCircleByInviteCode(ctx, old)
	assert.ErrorIs(t, err, circles.ErrNotFound)

	res, err := svc.JoinCircleByCode(ctx, newUser("v"), code)
	require.NoError(t, err)
	assert.Equal(t, c.ID, res.CircleID)
}

func TestRegenerateInviteCode_RequiresOwner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)
	member := newUser("m")
	_, err := svc.JoinCircleByCode(ctx, member, c.InviteCode)
	require.NoError(t, err)
	_, err = svc.ApproveMember(ctx, owner, c.ID, member.ID)
	require.NoError(t, err)

	_, err = svc.RegenerateInviteCode(ctx, member, c.ID)
	assert.ErrorIs(t, err, circles.ErrForbidden)
	_, err = svc.RegenerateInviteCode(ctx, newUser("stranger"), c.ID)
	assert.ErrorIs(t, err, circles.ErrNotFound)
}

func TestGetCircle_Visibility(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	_, err := svc.GetCircle(ctx, newUser("stranger"), c.ID)
	assert.ErrorIs(t, err, circles.ErrNotFound)
	assert.NotErrorIs(t, err, circles.ErrForbidden)

	_, err = svc.GetCircle(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, circles.ErrNotFound)

	pending := newUser("pat")
	_, err = svc.JoinCircleByCode(ctx, pending, c.InviteCode)
	require.NoError(t, err)

	reduced, err := svc.GetCircle(ctx, pending, c.ID)
	require.NoError(t, err)
	assert.True(t, reduced.IsReduced())
	assert.Equal(t, c.Name, reduced.Name)
	assert.Empty(t, reduced.Members)
	assert.Zero(t, reduced.MemberCount)
	assert.Nil(t, reduced.Settings)

	_, err = svc.ApproveMember(ctx, owner, c.ID, pending.ID)
	require.NoError(t, err)

	full, err := svc.GetCircle(ctx, pending, c.ID)
	require.NoError(t, err)
	assert.False(t, full.IsReduced())
	assert.Equal(t, 2, full.MemberCount)
	assert.Len(t, full.Members, 2)
	assert.Nil(t, full.Settings, "members never see owner settings")
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t, circles.WithClock(func() time.Time { return now }))
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	member := newUser("mia")
	_, err := svc.JoinCircleByCode(ctx, member, c.InviteCode)
	require.NoError(t, err)
	_, err = svc.ApproveMember(ctx, owner, c.ID, member.ID)
	require.NoError(t, err)

	e, err := svc.CreateEvent(ctx, owner, c.ID, "  Autumn   hike ", " Ridge trail ", now.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Autumn hike", e.Title)
	assert.Equal(t, "Ridge trail", e.Location)
	assert.Equal(t, owner.ID, e.CreatedByID)

	_, err = svc.CreateEvent(ctx, owner, c.ID, "Last month", "", now.Add(-30*24*time.Hour))
	require.NoError(t, err)

	_, err = svc.CreateEvent(ctx, member, c.ID, "Members cannot schedule", "", now.Add(time.Hour))
	assert.ErrorIs(t, err, circles.ErrForbidden)
	_, err = svc.CreateEvent(ctx, newUser("stranger"), c.ID, "Nope", "", now.Add(time.Hour))
	assert.ErrorIs(t, err, circles.ErrNotFound)
	_, err = svc.CreateEvent(ctx, owner, c.ID, "   ", "", now.Add(time.Hour))
	assert.ErrorIs(t, err, circles.ErrValidation)
	_, err = svc.CreateEvent(ctx, owner, c.ID, "No date", "", time.Time{})
	assert.ErrorIs(t, err, circles.ErrValidation)

	view, err := svc.GetCircle(ctx, member, c.ID)
	require.NoError(t, err)
	require.Len(t, view.Events, 2)
	assert.Equal(t, "Last month", view.Events[0].Title)
	assert.Equal(t, "Autumn hike", view.Events[1].Title)
	assert.Equal(t, 1, view.UpcomingEvents)
}

func TestGetCircle_PendingViewWithholdsEvents(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	_, err := svc.CreateEvent(ctx, owner, c.ID, "Board games", "Cafe", time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	pending := newUser("pat")
	_, err = svc.JoinCircleByCode(ctx, pending, c.InviteCode)
	require.NoError(t, err)

	reduced, err := svc.GetCircle(ctx, pending, c.ID)
	require.NoError(t, err)
	assert.True(t, reduced.IsReduced())
	assert.Empty(t, reduced.Events)
	assert.Zero(t, reduced.UpcomingEvents)

	_, err = svc.ApproveMember(ctx, owner, c.ID, pending.ID)
	require.NoError(t, err)

	full, err := svc.GetCircle(ctx, pending, c.ID)
	require.NoError(t, err)
	require.Len(t, full.Events, 1)
	assert.Equal(t, "Board games", full.Events[0].Title)
	assert.Equal(t, 1, full.UpcomingEvents)
}

func TestListMyCircles(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c1 := createCircle(t, svc, owner)
	c2 := createCircle(t, svc, newUser("other"))
	u := newUser("u")

	_, err := svc.JoinCircleByCode(ctx, u, c2.InviteCode)
	require.NoError(t, err)

	mine, err := svc.ListMyCircles(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c1.ID, mine[0].ID)
	assert.Equal(t, circles.RoleOwner, mine[0].Role)

	theirs, err := svc.ListMyCircles(ctx, u)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, circles.StatusPending, theirs[0].Status)
	assert.Zero(t, theirs[0].MemberCount)

	none, err := svc.ListMyCircles(ctx, auth.Principal{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApprove_OnlyFromPending(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)
	u := newUser("u")

	res, err := svc.JoinCircleByCode(ctx, u, c.InviteCode)
	require.NoError(t, err)

	approved, err := svc.ApproveMembership(ctx, owner, res.Membership.ID)
	require.NoError(t, err)
	assert.Equal(t, circles.StatusActive, approved.Status)

	_, err = svc.ApproveMembership(ctx, owner, res.Membership.ID)
	assert.ErrorIs(t, err, circles.ErrInvalidState)
	_, err = svc.ApproveMember(ctx, owner, c.ID, u.ID)
	assert.ErrorIs(t, err, circles.ErrInvalidState)

	_, err = svc.ApproveMember(ctx, owner, c.ID, uuid.New())
	assert.ErrorIs(t, err, circles.ErrNotFound)
	_, err = svc.ApproveMembership(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, circles.ErrNotFound)
}

func TestApprove_RequiresOwner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)
	u := newUser("u")
	res, err := svc.JoinCircleByCode(ctx, u, c.InviteCode)
	require.NoError(t, err)

	_, err = svc.ApproveMembership(ctx, u, res.Membership.ID)
	assert.ErrorIs(t, err, circles.ErrForbidden)
	_, err = svc.ApproveMember(ctx, newUser("stranger"), c.ID, u.ID)
	assert.ErrorIs(t, err, circles.ErrNotFound)
}

func TestRejectAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)
	pending := newUser("pat")
	active := newUser("ann")

	_, err := svc.JoinCircleByCode(ctx, pending, c.InviteCode)
	require.NoError(t, err)
	_, err = svc.JoinCircleByCode(ctx, active, c.InviteCode)
	require.NoError(t, err)
	_, err = svc.ApproveMember(ctx, owner, c.ID, active.ID)
	require.NoError(t, err)

	_, err = svc.RejectMember(ctx, owner, c.ID, active.ID)
	assert.ErrorIs(t, err, circles.ErrInvalidState)
	_, err = svc.RejectMember(ctx, owner, c.ID, owner.ID)
	assert.ErrorIs(t, err, circles.ErrForbidden)

	rejected, err := svc.RejectMember(ctx, owner, c.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, circles.StatusPending, rejected.Status)
	_, err = svc.GetCircle(ctx, pending, c.ID)
	assert.ErrorIs(t, err, circles.ErrNotFound)

	// A rejected user may ask again.
	again, err := svc.JoinCircleByCode(ctx, pending, c.InviteCode)
	require.NoError(t, err)
	assert.True(t, again.Created)

	removed, err := svc.RemoveMember(ctx, owner, c.ID, active.ID)
	require.NoError(t, err)
	assert.Equal(t, circles.StatusActive, removed.Status)
	_, err = svc.GetCircle(ctx, active, c.ID)
	assert.ErrorIs(t, err, circles.ErrNotFound)

	_, err = svc.RemoveMember(ctx, owner, c.ID, active.ID)
	assert.ErrorIs(t, err, circles.ErrNotFound)
}

func TestRejectMembership_ByID(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)
	u := newUser("u")
	res, err := svc.JoinCircleByCode(ctx, u, c.InviteCode)
	require.NoError(t, err)

	_, err = svc.RejectMembership(ctx, u, res.Membership.ID)
	assert.ErrorIs(t, err, circles.ErrForbidden)

	rejected, err := svc.RejectMembership(ctx, owner, res.Membership.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, rejected.UserID)

	pending, err := svc.GetPendingMembers(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLimitedLink_AutoApprovesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	link, err := svc.CreateLimitedInviteLink(ctx, owner, c.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, link.UsedCount)
	assert.NotEqual(t, c.InviteCode, link.Code)

	preview, err := svc.GetCircleByInviteCode(ctx, link.Code)
	require.NoError(t, err)
	assert.Equal(t, circles.ChannelLimited, preview.Channel)
	require.NotNil(t, preview.RemainingUses)
	assert.Equal(t, 2, *preview.RemainingUses)

	u1 := newUser("u1")
	res, err := svc.JoinCircleByCode(ctx, u1, link.Code)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, circles.ChannelLimited, res.Channel)
	assert.Equal(t, circles.StatusActive, res.Membership.Status)

	// Redeeming again as a member consumes nothing.
	again, err := svc.JoinCircleByCode(ctx, u1, link.Code)
	require.NoError(t, err)
	assert.False(t, again.Created)

	_, err = svc.JoinCircleByCode(ctx, newUser("u2"), link.Code)
	require.NoError(t, err)
	_, err = svc.JoinCircleByCode(ctx, newUser("u3"), link.Code)
	assert.ErrorIs(t, err, circles.ErrExhausted)

	stored, err := store.GetLimitedLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsedCount)

	// Exhausted links are still listed.
	links, err := svc.GetLimitedInviteLinks(ctx, owner, c.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.True(t, links[0].Exhausted())
}

func TestLimitedLink_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	for _, maxUses := range []int{0, -1, 10001} {
		_, err := svc.CreateLimitedInviteLink(ctx, owner, c.ID, maxUses)
		assert.ErrorIs(t, err, circles.ErrValidation, maxUses)
	}

	_, err := svc.CreateLimitedInviteLink(ctx, newUser("stranger"), c.ID, 5)
	assert.ErrorIs(t, err, circles.ErrNotFound)
}

func TestLimitedLink_RevokeStopsRedemption(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	link, err := svc.CreateLimitedInviteLink(ctx, owner, c.ID, 5)
	require.NoError(t, err)
	joined := newUser("early")
	_, err = svc.JoinCircleByCode(ctx, joined, link.Code)
	require.NoError(t, err)

	_, err = svc.RevokeLimitedInviteLink(ctx, newUser("stranger"), link.ID)
	assert.ErrorIs(t, err, circles.ErrNotFound)

	revoked, err := svc.RevokeLimitedInviteLink(ctx, owner, link.ID)
	require.NoError(t, err)
	assert.Equal(t, link.ID, revoked.ID)

	_, err = svc.JoinCircleByCode(ctx, newUser("late"), link.Code)
	assert.ErrorIs(t, err, circles.ErrNotFound)
	_, err = svc.GetCircleByInviteCode(ctx, link.Code)
	assert.ErrorIs(t, err, circles.ErrNotFound)

	_, err = svc.RevokeLimitedInviteLink(ctx, owner, link.ID)
	assert.ErrorIs(t, err, circles.ErrNotFound)

	// Memberships granted before the revoke are kept.
	view, err := svc.GetCircle(ctx, joined, c.ID)
	require.NoError(t, err)
	assert.Equal(t, circles.StatusActive, view.CurrentUserStatus)

	links, err := svc.GetLimitedInviteLinks(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestLimitedLink_ConcurrentRedemption(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)

	const capacity, extra = 4, 6
	link, err := svc.CreateLimitedInviteLink(ctx, owner, c.ID, capacity)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		joined    int
		exhausted int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < capacity+extra; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.JoinCircleByCode(ctx, newUser(fmt.Sprintf("racer%d", i)), link.Code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, circles.ErrExhausted):
				exhausted++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, capacity, joined)
	assert.Equal(t, extra, exhausted)

	stored, err := store.GetLimitedLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, stored.UsedCount)

	count, err := store.CountMembers(ctx, c.ID, circles.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, capacity+1, count)
}

func TestInviteCodes_UnknownAndMalformed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	u := newUser("u")

	for _, code := range []string{"", "a", "no spaces allowed", "unknownButValid"} {
		_, err := svc.GetCircleByInviteCode(ctx, code)
		assert.ErrorIs(t, err, circles.ErrNotFound, code)
		_, err = svc.JoinCircleByCode(ctx, u, code)
		assert.ErrorIs(t, err, circles.ErrNotFound, code)
	}

	_, err := svc.JoinCircleByCode(ctx, auth.Principal{}, "unknownButValid")
	assert.ErrorIs(t, err, circles.ErrValidation)
}

func TestGetCircleByInviteCode_Preview(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)
	_, err := svc.JoinCircleByCode(ctx, newUser("pending"), c.InviteCode)
	require.NoError(t, err)

	preview, err := svc.GetCircleByInviteCode(ctx, c.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, c.ID, preview.ID)
	assert.Equal(t, circles.ChannelGeneral, preview.Channel)
	assert.Equal(t, 1, preview.MemberCount, "pending requests are not counted")
	assert.Equal(t, "olivia", preview.Owner.Name)
	assert.Nil(t, preview.RemainingUses)
}

func TestDeleteCircle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	owner := newUser("olivia")
	c := createCircle(t, svc, owner)
	member := newUser("m")
	link, err := svc.CreateLimitedInviteLink(ctx, owner, c.ID, 3)
	require.NoError(t, err)
	_, err = svc.JoinCircleByCode(ctx, member, link.Code)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteCircle(ctx, member, c.ID), circles.ErrForbidden)
	require.NoError(t, svc.DeleteCircle(ctx, owner, c.ID))

	_, err = svc.GetCircle(ctx, owner, c.ID)
	assert.ErrorIs(t, err, circles.ErrNotFound)
	_, err = svc.GetCircleByInviteCode(ctx, c.InviteCode)
	assert.ErrorIs(t, err, circles.ErrNotFound)
	_, err = svc.GetCircleByInviteCode(ctx, link.Code)
	assert.ErrorIs(t, err, circles.ErrNotFound)

	mine, err := svc.ListMyCircles(ctx, member)
	require.NoError(t, err)
	assert.Empty(t, mine)

	assert.ErrorIs(t, svc.DeleteCircle(ctx, owner, c.ID), circles.ErrNotFound)
}

// Circle C holds code ABC123. U requests to join, the owner approves, then
// two users race for a single-use limited link.
func TestScenario_ApproveThenLimitedRace(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newService(t,
		circles.WithCodeGenerator(sequence("ABC123")),
		circles.WithClock(func() time.Time { return clock }),
	)
	owner := newUser("olivia")

	c := createCircle(t, svc, owner)
	require.Equal(t, "ABC123", c.InviteCode)
	require.True(t, c.IsInviteLinkEnabled)

	u := newUser("u")
	res, err := svc.JoinCircleByCode(ctx, u, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, circles.StatusPending, res.Membership.Status)

	approved, err := svc.ApproveMember(ctx, owner, c.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, circles.StatusActive, approved.Status)

	link, err := svc.CreateLimitedInviteLink(ctx, owner, c.ID, 1)
	require.NoError(t, err)

	u2, u3 := newUser("u2"), newUser("u3")
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, p := range []auth.Principal{u2, u3} {
		wg.Add(1)
		go func(i int, p auth.Principal) {
			defer wg.Done()
			_, errs[i] = svc.JoinCircleByCode(ctx, p, link.Code)
		}(i, p)
	}
	wg.Wait()

	var ok, exhausted int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if errors.Is(err, circles.ErrExhausted) {
			exhausted++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, exhausted)

	view, err := svc.GetCircle(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.MemberCount)
	assert.Equal(t, clock, view.CreatedAt)
}
