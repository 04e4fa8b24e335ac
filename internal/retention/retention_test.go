package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	linksBefore  time.Time
	auditBefore  time.Time
	linksErr     error
	auditCalled  bool
	linksDeleted int64
}

func (f *fakeStore) PurgeRevokedLinks(_ context.Context, before time.Time) (int64, error) {
	f.linksBefore = before
	return f.linksDeleted, f.linksErr
}

func (f *fakeStore) PurgeAuditEvents(_ context.Context, before time.Time) (int64, error) {
	f.auditCalled = true
	f.auditBefore = before
	return 0, nil
}

func TestRunRetentionJob_Cutoffs(t *testing.T) {
	now := time.Date(2026, 3, 31, 3, 0, 0, 0, time.UTC)
	store := &fakeStore{linksDeleted: 2}

	err := RunRetentionJob(context.Background(), store, Policy{RevokedLinkDays: 30, AuditDays: 180}, now)
	require.NoError(t, err)

	require.Equal(t, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), store.linksBefore)
	require.Equal(t, now.Add(-180*24*time.Hour), store.auditBefore)
}

func TestRunRetentionJob_StopsOnError(t *testing.T) {
	store := &fakeStore{linksErr: errors.New("boom")}

	err := RunRetentionJob(context.Background(), store, Policy{RevokedLinkDays: 30, AuditDays: 180}, time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "revoked link cleanup failed")
	require.False(t, store.auditCalled)
}
