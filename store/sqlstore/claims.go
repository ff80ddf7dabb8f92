package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/crm-engine/calendar"
)

// =============================================================================
// REMINDER CLAIMS (crm.ClaimStore interface)
// =============================================================================

// Claim records that the reminder for one occurrence is being sent. It
// returns false when another sweep already claimed it.
func (s *Store) Claim(ctx context.Context, scheduleID string, occurrence calendar.Date) (bool, error) {
	query := s.db.Rebind(`
		INSERT INTO reminder_claims (schedule_id, occurrence, claimed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (schedule_id, occurrence) DO NOTHING
	`)

	res, err := s.db.ExecContext(ctx, query, scheduleID, occurrence, time.Now().UTC())
	if err != nil {
		return false, translate("claim reminder", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n == 1, nil
}

// Release drops a claim so the next sweep can retry the reminder.
func (s *Store) Release(ctx context.Context, scheduleID string, occurrence calendar.Date) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM reminder_claims WHERE schedule_id = ? AND occurrence = ?"),
		scheduleID, occurrence,
	)
	return translate("release reminder", err)
}
