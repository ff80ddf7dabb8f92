package calendar

// =============================================================================
// PERIOD - Half-open day range [Start, End)
// =============================================================================

// Period is the day range [Start, End). Reports use whole calendar months.
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if d is in [Start, End).
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.Before(p.End)
}

// MonthOf returns the calendar month containing d.
func MonthOf(d Date) Period {
	start := NewDate(d.Year(), d.Month(), 1)
	return Period{Start: start, End: AddMonths(start, 1, RollOver)}
}

// Next returns the month following p. p must be a month period.
func (p Period) Next() Period {
	return Period{Start: p.End, End: AddMonths(p.End, 1, RollOver)}
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}
