// Package memory implements the circles stores in process memory.
// All state is lost on restart; it backs tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aliuyar1234/circles/internal/audit"
	"github.com/aliuyar1234/circles/internal/circles"
	"github.com/google/uuid"
)

type membershipRow struct {
	circles.Membership
	seq uint64
}

type linkRow struct {
	circles.LimitedInviteLink
	seq uint64
}

type auditRow struct {
	audit.Event
	seq uint64
}

// Store is a mutex-guarded implementation of circles.Store, audit.Store and retention.Store.
// A single lock makes every multi-row mutation atomic.
type Store struct {
	mu  sync.RWMutex
	seq uint64
	now func() time.Time

	users        map[uuid.UUID]circles.User
	circles      map[uuid.UUID]circles.Circle
	byInviteCode map[string]uuid.UUID
	memberships  map[uuid.UUID]*membershipRow
	byMember     map[memberKey]uuid.UUID
	links        map[uuid.UUID]*linkRow
	byLinkCode   map[string]uuid.UUID
	schedule     map[uuid.UUID][]circles.Event
	events       []auditRow
}

type memberKey struct {
	circleID uuid.UUID
	userID   uuid.UUID
}

func New() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		users:        make(map[uuid.UUID]circles.User),
		circles:      make(map[uuid.UUID]circles.Circle),
		byInviteCode: make(map[string]uuid.UUID),
		memberships:  make(map[uuid.UUID]*membershipRow),
		byMember:     make(map[memberKey]uuid.UUID),
		links:        make(map[uuid.UUID]*linkRow),
		byLinkCode:   make(map[string]uuid.UUID),
		schedule:     make(map[uuid.UUID][]circles.Event),
	}
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) UpsertUser(ctx context.Context, u circles.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*circles.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, circles.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateCircle(ctx context.Context, c *circles.Circle, owner *circles.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.circles[c.ID]; ok {
		return circles.ErrConflict
	}
	if s.codeInUse(c.InviteCode) {
		return circles.ErrConflict
	}
	if _, ok := s.memberships[owner.ID]; ok {
		return circles.ErrConflict
	}

	s.circles[c.ID] = *c
	s.byInviteCode[c.InviteCode] = c.ID
	s.insertMembership(*owner)
	return nil
}

func (s *Store) GetCircle(ctx context.Context, id uuid.UUID) (*circles.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.circles[id]
	if !ok {
		return nil, circles.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetCircleByInviteCode(ctx context.Context, code string) (*circles.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byInviteCode[code]
	if !ok {
		return nil, circles.ErrNotFound
	}
	c := s.circles[id]
	return &c, nil
}

func (s *Store) ListCirclesForUser(ctx context.Context, userID uuid.UUID) ([]circles.CircleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []circles.CircleSummary
	for _, row := range s.memberships {
		if row.UserID != userID {
			continue
		}
		c := s.circles[row.CircleID]
		out = append(out, circles.CircleSummary{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Role:        row.Role,
			Status:      row.Status,
			MemberCount: s.countMembers(c.ID, circles.StatusActive),
			CreatedAt:   c.CreatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) SetInviteCode(ctx context.Context, circleID uuid.UUID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circles[circleID]
	if !ok {
		return circles.ErrNotFound
	}
	if s.codeInUse(code) {
		return circles.ErrConflict
	}

	delete(s.byInviteCode, c.InviteCode)
	c.InviteCode = code
	c.UpdatedAt = s.now()
	s.circles[circleID] = c
	s.byInviteCode[code] = circleID
	return nil
}

func (s *Store) SetInviteLinkEnabled(ctx context.Context, circleID uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circles[circleID]
	if !ok {
		return circles.ErrNotFound
	}
	c.IsInviteLinkEnabled = enabled
	c.UpdatedAt = s.now()
	s.circles[circleID] = c
	return nil
}

func (s *Store) DeleteCircle(ctx context.Context, circleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circles[circleID]
	if !ok {
		return circles.ErrNotFound
	}

	for id, row := range s.memberships {
		if row.CircleID == circleID {
			delete(s.byMember, memberKey{row.CircleID, row.UserID})
			delete(s.memberships, id)
		}
	}
	for id, row := range s.links {
		if row.CircleID == circleID {
			delete(s.byLinkCode, row.Code)
			delete(s.links, id)
		}
	}
	delete(s.schedule, circleID)
	delete(s.byInviteCode, c.InviteCode)
	delete(s.circles, circleID)
	return nil
}

func (s *Store) CodeInUse(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.codeInUse(code), nil
}

func (s *Store) codeInUse(code string) bool {
	if _, ok := s.byInviteCode[code]; ok {
		return true
	}
	_, ok := s.byLinkCode[code]
	return ok
}

func (s *Store) GetMembership(ctx context.Context, circleID, userID uuid.UUID) (*circles.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byMember[memberKey{circleID, userID}]
	if !ok {
		return nil, circles.ErrNotFound
	}
	m := s.memberships[id].Membership
	return &m, nil
}

func (s *Store) GetMembershipByID(ctx context.Context, id uuid.UUID) (*circles.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.memberships[id]
	if !ok {
		return nil, circles.ErrNotFound
	}
	m := row.Membership
	return &m, nil
}

func (s *Store) InsertMembership(ctx context.Context, m *circles.Membership) (*circles.Membership, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.circles[m.CircleID]; !ok {
		return nil, false, circles.ErrNotFound
	}
	return s.insertOrGet(*m)
}

// insertOrGet inserts m unless (circle, user) is taken. Caller holds the lock.
func (s *Store) insertOrGet(m circles.Membership) (*circles.Membership, bool, error) {
	if id, ok := s.byMember[memberKey{m.CircleID, m.UserID}]; ok {
		existing := s.memberships[id].Membership
		return &existing, false, nil
	}
	if _, ok := s.memberships[m.ID]; ok {
		return nil, false, circles.ErrConflict
	}
	s.insertMembership(m)
	return &m, true, nil
}

func (s *Store) insertMembership(m circles.Membership) {
	s.memberships[m.ID] = &membershipRow{Membership: m, seq: s.nextSeq()}
	s.byMember[memberKey{m.CircleID, m.UserID}] = m.ID
}

func (s *Store) ActivateMembership(ctx context.Context, id uuid.UUID) (*circles.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.memberships[id]
	if !ok {
		return nil, circles.ErrNotFound
	}
	if row.Status != circles.StatusPending {
		return nil, circles.ErrInvalidState
	}

	row.Status = circles.StatusActive
	row.UpdatedAt = s.now()
	m := row.Membership
	return &m, nil
}

func (s *Store) DeleteMembership(ctx context.Context, id uuid.UUID, pendingOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.memberships[id]
	if !ok {
		return circles.ErrNotFound
	}
	if row.Role == circles.RoleOwner {
		return circles.ErrForbidden
	}
	if pendingOnly && row.Status != circles.StatusPending {
		return circles.ErrInvalidState
	}

	delete(s.byMember, memberKey{row.CircleID, row.UserID})
	delete(s.memberships, id)
	return nil
}

func (s *Store) ListMembers(ctx context.Context, circleID uuid.UUID, status circles.Status) ([]circles.MemberInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*membershipRow
	for _, row := range s.memberships {
		if row.CircleID == circleID && row.Status == status {
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		oi, oj := rows[i].Role == circles.RoleOwner, rows[j].Role == circles.RoleOwner
		if oi != oj {
			return oi
		}
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].seq < rows[j].seq
	})

	out := make([]circles.MemberInfo, 0, len(rows))
	for _, row := range rows {
		u := s.users[row.UserID]
		out = append(out, circles.MemberInfo{
			MembershipID: row.ID,
			UserID:       row.UserID,
			Name:         u.Name,
			Email:        u.Email,
			Image:        u.Image,
			Role:         row.Role,
			Status:       row.Status,
			CreatedAt:    row.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) CountMembers(ctx context.Context, circleID uuid.UUID, status circles.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.countMembers(circleID, status), nil
}

func (s *Store) countMembers(circleID uuid.UUID, status circles.Status) int {
	n := 0
	for _, row := range s.memberships {
		if row.CircleID == circleID && row.Status == status {
			n++
		}
	}
	return n
}

func (s *Store) RedeemInviteCode(ctx context.Context, code string, m *circles.Membership) (*circles.Membership, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	circleID, ok := s.byInviteCode[code]
	if !ok {
		return nil, false, circles.ErrNotFound
	}
	if !s.circles[circleID].IsInviteLinkEnabled {
		return nil, false, circles.ErrDisabled
	}

	row := *m
	row.CircleID = circleID
	return s.insertOrGet(row)
}

func (s *Store) CreateLimitedLink(ctx context.Context, l *circles.LimitedInviteLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.circles[l.CircleID]; !ok {
		return circles.ErrNotFound
	}
	if _, ok := s.links[l.ID]; ok {
		return circles.ErrConflict
	}
	if s.codeInUse(l.Code) {
		return circles.ErrConflict
	}

	s.links[l.ID] = &linkRow{LimitedInviteLink: *l, seq: s.nextSeq()}
	s.byLinkCode[l.Code] = l.ID
	return nil
}

func (s *Store) GetLimitedLink(ctx context.Context, id uuid.UUID) (*circles.LimitedInviteLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.links[id]
	if !ok {
		return nil, circles.ErrNotFound
	}
	return copyLink(row.LimitedInviteLink), nil
}

func (s *Store) GetLimitedLinkByCode(ctx context.Context, code string) (*circles.LimitedInviteLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.activeLink(code)
	if !ok {
		return nil, circles.ErrNotFound
	}
	return copyLink(row.LimitedInviteLink), nil
}

func (s *Store) activeLink(code string) (*linkRow, bool) {
	id, ok := s.byLinkCode[code]
	if !ok {
		return nil, false
	}
	row := s.links[id]
	if row.Revoked() {
		return nil, false
	}
	return row, true
}

func (s *Store) ListLimitedLinks(ctx context.Context, circleID uuid.UUID) ([]circles.LimitedInviteLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*linkRow
	for _, row := range s.links {
		if row.CircleID == circleID && !row.Revoked() {
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	out := make([]circles.LimitedInviteLink, 0, len(rows))
	for _, row := range rows {
		out = append(out, *copyLink(row.LimitedInviteLink))
	}
	return out, nil
}

func (s *Store) RevokeLimitedLink(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.links[id]
	if !ok || row.Revoked() {
		return circles.ErrNotFound
	}
	now := s.now()
	row.RevokedAt = &now
	return nil
}

func (s *Store) RedeemLimitedLink(ctx context.Context, code string, m *circles.Membership) (*circles.Membership, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.activeLink(code)
	if !ok {
		return nil, false, circles.ErrNotFound
	}

	if id, ok := s.byMember[memberKey{link.CircleID, m.UserID}]; ok {
		existing := s.memberships[id].Membership
		return &existing, false, nil
	}
	if link.Exhausted() {
		return nil, false, circles.ErrExhausted
	}

	row := *m
	row.CircleID = link.CircleID
	stored, created, err := s.insertOrGet(row)
	if err != nil {
		return nil, false, err
	}
	link.UsedCount++
	return stored, created, nil
}

func copyLink(l circles.LimitedInviteLink) *circles.LimitedInviteLink {
	if l.RevokedAt != nil {
		t := *l.RevokedAt
		l.RevokedAt = &t
	}
	return &l
}

func (s *Store) CreateEvent(ctx context.Context, e *circles.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.circles[e.CircleID]; !ok {
		return circles.ErrNotFound
	}
	s.schedule[e.CircleID] = append(s.schedule[e.CircleID], *e)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, circleID uuid.UUID) ([]circles.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]circles.Event(nil), s.schedule[circleID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

func (s *Store) AppendAuditEvent(ctx context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := make(map[string]any, len(e.Meta))
	for k, v := range e.Meta {
		meta[k] = v
	}
	e.Meta = meta
	s.events = append(s.events, auditRow{Event: e, seq: s.nextSeq()})
	return nil
}

func (s *Store) ListAuditEvents(ctx context.Context, circleID uuid.UUID, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []auditRow
	for _, row := range s.events {
		if row.CircleID == circleID {
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]audit.Event, 0, len(rows))
	for _, row := range rows {
		e := row.Event
		if e.ActorUserID != nil {
			e.ActorName = s.users[*e.ActorUserID].Name
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) PurgeRevokedLinks(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, row := range s.links {
		if row.RevokedAt != nil && row.RevokedAt.Before(before) {
			delete(s.byLinkCode, row.Code)
			delete(s.links, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var n int64
	for _, row := range s.events {
		if row.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	s.events = kept
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() {}
