package recurrence

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/crm-engine/calendar"
)

// Planner projects occurrences under a month arithmetic rule.
// The zero value uses calendar.RollOver.
type Planner struct {
	Rule calendar.MonthRule
}

// Default is the planner used by the package-level functions.
var Default = Planner{Rule: calendar.RollOver}

func NextOccurrenceOnOrAfter(s PaymentSchedule, reference calendar.Date) calendar.Date {
	return Default.NextOccurrenceOnOrAfter(s, reference)
}

func IsWithinNotificationWindow(s PaymentSchedule, today calendar.Date, windowMonths int) bool {
	return Default.IsWithinNotificationWindow(s, today, windowMonths)
}

func FindSchedulesDueOn(schedules []PaymentSchedule, today, target calendar.Date) []PaymentSchedule {
	return Default.FindSchedulesDueOn(schedules, today, target)
}

// =============================================================================
// NEXT OCCURRENCE
// =============================================================================

// OccurrenceAt returns occurrence k of s.
func (p Planner) OccurrenceAt(s PaymentSchedule, k int) calendar.Date {
	return calendar.AddMonths(s.FirstOccurrence, k*period(s), p.Rule)
}

// NextOccurrenceOnOrAfter returns FirstOccurrence when it lies after the
// reference day, otherwise the first occurrence strictly after it.
func (p Planner) NextOccurrenceOnOrAfter(s PaymentSchedule, reference calendar.Date) calendar.Date {
	_, next := p.next(s, reference)
	return next
}

func (p Planner) next(s PaymentSchedule, reference calendar.Date) (int, calendar.Date) {
	first := s.FirstOccurrence
	if first.After(reference) {
		return 0, first
	}

	// Start from the month-difference estimate. With RollOver the previous
	// occurrence can spill into the reference month past the reference day,
	// so step back first.
	k := calendar.MonthsBetween(first, reference) / period(s)
	if k < 1 {
		k = 1
	}
	for k > 1 && p.OccurrenceAt(s, k-1).After(reference) {
		k--
	}
	for {
		next := p.OccurrenceAt(s, k)
		if next.After(reference) {
			return k, next
		}
		k++
	}
}

// =============================================================================
// NOTIFICATION WINDOW
// =============================================================================

// IsWithinNotificationWindow reports whether today is exactly windowMonths
// before the next occurrence. There is no tolerance: the day must match.
func (p Planner) IsWithinNotificationWindow(s PaymentSchedule, today calendar.Date, windowMonths int) bool {
	next := p.NextOccurrenceOnOrAfter(s, today)
	trigger := calendar.AddMonths(next, -windowMonths, p.Rule)
	return trigger.Equal(today)
}

// FindSchedulesDueOn keeps the schedules whose next occurrence after today
// falls on target. Input order is preserved.
func (p Planner) FindSchedulesDueOn(schedules []PaymentSchedule, today, target calendar.Date) []PaymentSchedule {
	var due []PaymentSchedule
	for _, s := range schedules {
		if p.NextOccurrenceOnOrAfter(s, today).Equal(target) {
			due = append(due, s)
		}
	}
	return due
}

// =============================================================================
// UPCOMING REPORT
// =============================================================================

// Upcoming lists every occurrence after today and up to horizonMonths ahead
// (inclusive), ordered by date then schedule ID.
func (p Planner) Upcoming(schedules []PaymentSchedule, today calendar.Date, horizonMonths int) []Occurrence {
	end := calendar.AddMonths(today, horizonMonths, p.Rule)

	var out []Occurrence
	for _, s := range schedules {
		k, date := p.next(s, today)
		for !date.After(end) {
			out = append(out, Occurrence{Schedule: s, Index: k, Date: date})
			k++
			date = p.OccurrenceAt(s, k)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c < 0
		}
		return out[i].Schedule.ID < out[j].Schedule.ID
	})
	return out
}

// MonthBucket is one column of the month-by-month payments board.
type MonthBucket struct {
	Month       calendar.Period
	Occurrences []Occurrence
	Total       decimal.Decimal
}

// GroupByMonth buckets date-ordered occurrences by calendar month.
func GroupByMonth(occurrences []Occurrence) []MonthBucket {
	var buckets []MonthBucket
	for _, o := range occurrences {
		month := calendar.MonthOf(o.Date)
		if n := len(buckets); n == 0 || !buckets[n-1].Month.Start.Equal(month.Start) {
			buckets = append(buckets, MonthBucket{Month: month, Total: decimal.Zero})
		}
		b := &buckets[len(buckets)-1]
		b.Occurrences = append(b.Occurrences, o)
		b.Total = b.Total.Add(o.Schedule.Amount)
	}
	return buckets
}

// period guards the loops against unvalidated input; validation rejects
// periods below one month before a schedule reaches the planner.
func period(s PaymentSchedule) int {
	if s.PeriodMonths < 1 {
		return 1
	}
	return s.PeriodMonths
}
