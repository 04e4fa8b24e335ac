package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Store deletes rows that have aged out. Implementations must be idempotent.
type Store interface {
	// PurgeRevokedLinks deletes limited invite links revoked before the cutoff.
	// Memberships granted through them are untouched.
	PurgeRevokedLinks(ctx context.Context, before time.Time) (int64, error)
	// PurgeAuditEvents deletes audit events created before the cutoff.
	PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error)
}

// Policy holds retention windows in days
type Policy struct {
	RevokedLinkDays int
	AuditDays       int
}

// cutoff returns the instant before which rows older than days are purged
func cutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// RunRetentionJob executes both retention operations and logs the results.
// This is the main entry point called by the cron scheduler.
func RunRetentionJob(ctx context.Context, store Store, policy Policy, now time.Time) error {
	log.Info().
		Int("revoked_link_retention_days", policy.RevokedLinkDays).
		Int("audit_retention_days", policy.AuditDays).
		Msg("Starting retention job")

	startTime := time.Now()

	linksDeleted, err := store.PurgeRevokedLinks(ctx, cutoff(now, policy.RevokedLinkDays))
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge revoked limited links")
		return fmt.Errorf("revoked link cleanup failed: %w", err)
	}

	eventsDeleted, err := store.PurgeAuditEvents(ctx, cutoff(now, policy.AuditDays))
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge old audit events")
		return fmt.Errorf("audit event cleanup failed: %w", err)
	}

	log.Info().
		Int64("revoked_links_deleted", linksDeleted).
		Int64("audit_events_deleted", eventsDeleted).
		Dur("duration", time.Since(startTime)).
		Msg("Retention job completed")

	return nil
}
