/*
Package recurrence projects the due dates of recurring payments.

PURPOSE:
  A PaymentSchedule is a definition: an amount that falls due every N months
  starting on a first occurrence date. Due dates are never stored; every
  "next payment" column, report and reminder derives them on read from the
  schedule and a reference day supplied by the caller.

KEY CONCEPTS:
  PaymentSchedule: validated definition (period >= 1 month, amount >= 0)
  Occurrence:      a single derived due date (first date + k periods)
  Planner:         the projection functions, parameterised by a MonthRule

OCCURRENCE RULE:
  Occurrence k is FirstOccurrence + k*PeriodMonths months, always computed
  from the first occurrence (never from the previous occurrence), so a
  schedule starting on the 31st does not drift after a short month.

  NextOccurrenceOnOrAfter(s, R):
    F >  R  -> F
    F <= R  -> the first occurrence strictly after R

USAGE:
  s, err := recurrence.NewPaymentSchedule("rp-1", "acc", "con", "deal",
      decimal.NewFromInt(500), 3, calendar.MustParse("2023-01-15"))
  next := recurrence.NextOccurrenceOnOrAfter(s, calendar.MustParse("2024-01-15"))
  // 2024-04-15

SEE ALSO:
  - planner.go: projection functions
  - reminder/job.go: nightly sweep using the notification window
*/
package recurrence

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/crm-engine/calendar"
)

// ErrInvalidSchedule is returned when a schedule definition is rejected.
var ErrInvalidSchedule = errors.New("invalid payment schedule")

// InvalidScheduleError names the offending field.
type InvalidScheduleError struct {
	ScheduleID string
	Field      string
	Reason     string
}

func (e *InvalidScheduleError) Error() string {
	if e.ScheduleID == "" {
		return fmt.Sprintf("invalid payment schedule: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid payment schedule %s: %s %s", e.ScheduleID, e.Field, e.Reason)
}

func (e *InvalidScheduleError) Unwrap() error { return ErrInvalidSchedule }

// PaymentSchedule is a recurring obligation.
type PaymentSchedule struct {
	ID              string
	AccountID       string
	ContactID       string
	DealID          string
	Amount          decimal.Decimal
	PeriodMonths    int
	FirstOccurrence calendar.Date
}

// NewPaymentSchedule builds and validates a schedule.
func NewPaymentSchedule(id, accountID, contactID, dealID string, amount decimal.Decimal, periodMonths int, first calendar.Date) (PaymentSchedule, error) {
	s := PaymentSchedule{
		ID:              id,
		AccountID:       accountID,
		ContactID:       contactID,
		DealID:          dealID,
		Amount:          amount,
		PeriodMonths:    periodMonths,
		FirstOccurrence: first,
	}
	if err := s.Validate(); err != nil {
		return PaymentSchedule{}, err
	}
	return s, nil
}

// Validate checks the schedule invariants.
func (s PaymentSchedule) Validate() error {
	switch {
	case s.PeriodMonths < 1:
		return &InvalidScheduleError{ScheduleID: s.ID, Field: "period_months", Reason: "must be at least 1"}
	case s.Amount.IsNegative():
		return &InvalidScheduleError{ScheduleID: s.ID, Field: "amount", Reason: "must not be negative"}
	case s.FirstOccurrence.IsZero():
		return &InvalidScheduleError{ScheduleID: s.ID, Field: "first_payment_date", Reason: "is required"}
	}
	return nil
}

// Occurrence is one derived due date of a schedule.
type Occurrence struct {
	Schedule PaymentSchedule
	Index    int // 0 is the first occurrence
	Date     calendar.Date
}
