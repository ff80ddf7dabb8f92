package calendar_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crm-engine/calendar"
)

func d(s string) calendar.Date { return calendar.MustParse(s) }

// =============================================================================
// NORMALISATION
// =============================================================================

func TestFromTime_DropsTimeOfDayInReferenceLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)

	// 2024-03-10 22:00 UTC is already March 11 in IST
	instant := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)

	assert.Equal(t, d("2024-03-10"), calendar.FromTime(instant, time.UTC))
	assert.Equal(t, d("2024-03-11"), calendar.FromTime(instant, kolkata))
	assert.Equal(t, d("2024-03-10"), calendar.FromTime(instant, nil))
}

func TestToday_UsesInjectedClock(t *testing.T) {
	clock := calendar.NewFixedClock(time.Date(2024, 9, 10, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, d("2024-09-10"), calendar.Today(clock, time.UTC))

	clock.Set(time.Date(2024, 9, 11, 0, 0, 1, 0, time.UTC))
	assert.Equal(t, d("2024-09-11"), calendar.Today(clock, time.UTC))
}

func TestParse(t *testing.T) {
	got, err := calendar.Parse("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.February, got.Month())
	assert.Equal(t, 29, got.Day())

	got, err = calendar.Parse("2024-02-29T18:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, d("2024-02-29"), got)

	_, err = calendar.Parse("29/02/2024")
	assert.Error(t, err)
}

// =============================================================================
// MONTH ARITHMETIC
// =============================================================================

func TestAddMonths_RollOver(t *testing.T) {
	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2024-01-15", 1, "2024-02-15"},
		{"2024-01-31", 1, "2024-03-02"}, // Feb 31 spills two days into a leap March
		{"2023-01-31", 1, "2023-03-03"},
		{"2024-03-31", 1, "2024-05-01"},
		{"2024-12-15", 1, "2025-01-15"},
		{"2024-04-30", -2, "2024-03-01"}, // Feb 30 -> Mar 1
		{"2024-05-15", -5, "2023-12-15"},
	}
	for _, tc := range tests {
		t.Run(tc.from, func(t *testing.T) {
			assert.Equal(t, d(tc.want), calendar.AddMonths(d(tc.from), tc.n, calendar.RollOver))
		})
	}
}

func TestAddMonths_ClampToMonthEnd(t *testing.T) {
	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-03-31", 1, "2024-04-30"},
		{"2024-01-31", 2, "2024-03-31"},
		{"2024-12-31", 2, "2025-02-28"},
		{"2024-04-30", -2, "2024-02-29"},
		{"2024-01-15", -1, "2023-12-15"},
		{"2024-01-15", -13, "2022-12-15"},
	}
	for _, tc := range tests {
		t.Run(tc.from, func(t *testing.T) {
			assert.Equal(t, d(tc.want), calendar.AddMonths(d(tc.from), tc.n, calendar.ClampToMonthEnd))
		})
	}
}

func TestParseMonthRule(t *testing.T) {
	rule, err := calendar.ParseMonthRule("")
	require.NoError(t, err)
	assert.Equal(t, calendar.RollOver, rule)

	rule, err = calendar.ParseMonthRule("clamp")
	require.NoError(t, err)
	assert.Equal(t, calendar.ClampToMonthEnd, rule)

	_, err = calendar.ParseMonthRule("nearest")
	assert.Error(t, err)
}

func TestMonthsBetween(t *testing.T) {
	assert.Equal(t, 12, calendar.MonthsBetween(d("2023-01-15"), d("2024-01-01")))
	assert.Equal(t, 0, calendar.MonthsBetween(d("2024-01-01"), d("2024-01-31")))
	assert.Equal(t, -3, calendar.MonthsBetween(d("2024-04-01"), d("2024-01-31")))
}

func TestMonthOf_NextMonth(t *testing.T) {
	p := calendar.MonthOf(d("2024-01-20"))
	assert.Equal(t, d("2024-01-01"), p.Start)
	assert.Equal(t, d("2024-02-01"), p.End)
	assert.True(t, p.Contains(d("2024-01-31")))
	assert.False(t, p.Contains(d("2024-02-01")))

	next := p.Next()
	assert.Equal(t, "[2024-02-01, 2024-03-01)", next.String())
}

// =============================================================================
// ENCODING
// =============================================================================

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Due calendar.Date `json:"due"`
	}

	b, err := json.Marshal(payload{Due: d("2024-07-04")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-07-04"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2025-01-31"}`), &p))
	assert.Equal(t, d("2025-01-31"), p.Due)

	require.NoError(t, json.Unmarshal([]byte(`{"due":null}`), &p))
	assert.True(t, p.Due.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"due":"soon"}`), &p))
}

func TestDate_SQL(t *testing.T) {
	var got calendar.Date

	require.NoError(t, got.Scan("2024-03-10"))
	assert.Equal(t, d("2024-03-10"), got)

	require.NoError(t, got.Scan([]byte("2024-03-11 00:00:00")))
	assert.Equal(t, d("2024-03-11"), got)

	require.NoError(t, got.Scan(time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, d("2024-03-12"), got)

	require.NoError(t, got.Scan(nil))
	assert.True(t, got.IsZero())

	assert.Error(t, got.Scan(42))

	v, err := d("2024-03-10").Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", v)

	v, err = calendar.Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
