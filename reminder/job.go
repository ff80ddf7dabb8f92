/*
Package reminder runs the recurring-payment reminder sweep.

PURPOSE:
  Once a day the sweep loads every recurring payment, keeps those that need
  a reminder today and sends them as one digest to the portal manager.

MODES:
  window  a schedule is due when today is exactly WindowMonths before its
          next occurrence (recurrence.IsWithinNotificationWindow)
  due_on  a schedule is due when its next occurrence falls exactly on
          today + WindowMonths (recurrence.FindSchedulesDueOn)

  The modes differ only when month arithmetic overflows (29th to 31st).

DUPLICATES:
  Without a Claimer a second sweep on the same day sends the same reminders
  again. With one, each (schedule, occurrence) pair is claimed before the
  digest is sent; pairs already claimed are skipped and the claims of a
  failed send are released so tomorrow's sweep does not lose them.

SEE ALSO:
  - scheduler.go: cron trigger
  - claims.go:    Redis claimer
  - store/sqlstore/claims.go: SQL claimer
*/
package reminder

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/warp/crm-engine/calendar"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/notify"
	"github.com/warp/crm-engine/recurrence"
)

type Mode string

const (
	ModeWindow Mode = "window"
	ModeDueOn  Mode = "due_on"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeWindow:
		return ModeWindow, nil
	case ModeDueOn:
		return ModeDueOn, nil
	default:
		return "", fmt.Errorf("unknown reminder mode %q", s)
	}
}

// Source lists the recurring payments to sweep.
type Source interface {
	ListRecurringPayments(ctx context.Context, q crm.Query) ([]crm.RecurringPayment, error)
}

// Job is one configured sweep. Claimer is optional.
type Job struct {
	Source       Source
	Notifier     notify.Notifier
	Claimer      crm.ClaimStore
	Planner      recurrence.Planner
	Mode         Mode
	WindowMonths int
	Recipient    string
	Logger       zerolog.Logger
}

// Result summarises a sweep.
type Result struct {
	Today      calendar.Date `json:"today"`
	Target     calendar.Date `json:"target"`
	Mode       Mode          `json:"mode"`
	Candidates int           `json:"candidates"`
	Due        int           `json:"due"`
	Claimed    int           `json:"claimed"`
	Skipped    int           `json:"skipped"`
	Sent       bool          `json:"sent"`
}

type dueItem struct {
	rp   crm.RecurringPayment
	next calendar.Date
}

// Run sweeps for today. It returns an error only when the payments cannot be
// loaded, a claim cannot be taken, or the digest cannot be delivered.
func (j *Job) Run(ctx context.Context, today calendar.Date) (Result, error) {
	log := j.Logger.With().Str("component", "reminder").Stringer("today", today).Logger()
	res := Result{Today: today, Mode: j.Mode}

	payments, err := j.Source.ListRecurringPayments(ctx, crm.Query{})
	if err != nil {
		return res, fmt.Errorf("failed to load recurring payments: %w", err)
	}
	res.Candidates = len(payments)

	var due []dueItem
	if j.Mode == ModeDueOn {
		res.Target = calendar.AddMonths(today, j.WindowMonths, j.Planner.Rule)
		due = j.dueOn(payments, today, res.Target)
	} else {
		due = j.inWindow(payments, today)
	}
	res.Due = len(due)

	if j.Claimer != nil {
		due, err = j.claim(ctx, due, &res)
		if err != nil {
			return res, err
		}
	}

	if len(due) == 0 {
		log.Info().Int("candidates", res.Candidates).Int("skipped", res.Skipped).Msg("no recurring payments to remind")
		return res, nil
	}

	digest := notify.Digest{
		Today:        today,
		Target:       res.Target,
		Mode:         string(j.Mode),
		WindowMonths: j.WindowMonths,
		Recipient:    j.Recipient,
	}
	for _, it := range due {
		digest.Items = append(digest.Items, notify.Item{
			ScheduleID:      it.rp.ID,
			AccountName:     it.rp.AccountName,
			ContactName:     it.rp.ContactName,
			DealName:        it.rp.DealName,
			Amount:          it.rp.Amount,
			PeriodMonths:    it.rp.PeriodMonths,
			NextPaymentDate: it.next,
		})
	}

	if err := j.Notifier.Notify(ctx, digest); err != nil {
		if j.Claimer != nil {
			j.release(ctx, due, log)
		}
		return res, fmt.Errorf("failed to send reminder digest: %w", err)
	}

	res.Sent = true
	log.Info().Int("count", len(due)).Str("recipient", j.Recipient).Msg("sent recurring payment reminders")
	return res, nil
}

func (j *Job) inWindow(payments []crm.RecurringPayment, today calendar.Date) []dueItem {
	var due []dueItem
	for _, rp := range payments {
		s := rp.Schedule()
		if j.Planner.IsWithinNotificationWindow(s, today, j.WindowMonths) {
			due = append(due, dueItem{rp: rp, next: j.Planner.NextOccurrenceOnOrAfter(s, today)})
		}
	}
	return due
}

func (j *Job) dueOn(payments []crm.RecurringPayment, today, target calendar.Date) []dueItem {
	byID := make(map[string]crm.RecurringPayment, len(payments))
	for _, rp := range payments {
		byID[rp.ID] = rp
	}

	var due []dueItem
	for _, s := range j.Planner.FindSchedulesDueOn(crm.Schedules(payments), today, target) {
		due = append(due, dueItem{rp: byID[s.ID], next: target})
	}
	return due
}

func (j *Job) claim(ctx context.Context, due []dueItem, res *Result) ([]dueItem, error) {
	var claimed []dueItem
	for _, it := range due {
		ok, err := j.Claimer.Claim(ctx, it.rp.ID, it.next)
		if err != nil {
			j.release(ctx, claimed, j.Logger)
			return nil, fmt.Errorf("failed to claim reminder for %s: %w", it.rp.ID, err)
		}
		if !ok {
			res.Skipped++
			continue
		}
		claimed = append(claimed, it)
	}
	res.Claimed = len(claimed)
	return claimed, nil
}

func (j *Job) release(ctx context.Context, items []dueItem, log zerolog.Logger) {
	for _, it := range items {
		if err := j.Claimer.Release(ctx, it.rp.ID, it.next); err != nil {
			log.Error().Err(err).Str("schedule_id", it.rp.ID).Msg("failed to release reminder claim")
		}
	}
}
