package reminder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crm-engine/calendar"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/notify"
	"github.com/warp/crm-engine/recurrence"
	"github.com/warp/crm-engine/reminder"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) calendar.Date { return calendar.MustParse(s) }

func payment(id, first string, period int) crm.RecurringPayment {
	return crm.RecurringPayment{
		ID:               id,
		AccountID:        "acc-" + id,
		ContactID:        "con-" + id,
		DealID:           "deal-" + id,
		Amount:           decimal.NewFromInt(100),
		PeriodMonths:     period,
		FirstPaymentDate: d(first),
		AccountName:      "Account " + id,
	}
}

type source struct {
	payments []crm.RecurringPayment
	err      error
}

func (s source) ListRecurringPayments(context.Context, crm.Query) ([]crm.RecurringPayment, error) {
	return s.payments, s.err
}

type recorder struct {
	digests []notify.Digest
	err     error
}

func (r *recorder) Notify(_ context.Context, d notify.Digest) error {
	if r.err != nil {
		return r.err
	}
	r.digests = append(r.digests, d)
	return nil
}

type memoryClaims struct {
	mu     sync.Mutex
	claims map[string]bool
}

func newMemoryClaims() *memoryClaims { return &memoryClaims{claims: map[string]bool{}} }

func (m *memoryClaims) Claim(_ context.Context, id string, occ calendar.Date) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id + "@" + occ.String()
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

func (m *memoryClaims) Release(_ context.Context, id string, occ calendar.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, id+"@"+occ.String())
	return nil
}

func newJob(mode reminder.Mode, payments ...crm.RecurringPayment) (*reminder.Job, *recorder) {
	rec := &recorder{}
	return &reminder.Job{
		Source:       source{payments: payments},
		Notifier:     rec,
		Planner:      recurrence.Default,
		Mode:         mode,
		WindowMonths: 2,
		Recipient:    "manager@example.com",
		Logger:       zerolog.Nop(),
	}, rec
}

// =============================================================================
// JOB
// =============================================================================

func TestJob_WindowMode(t *testing.T) {
	// GIVEN: A is due 2024-04-15, exactly two months after today; B is not
	job, rec := newJob(reminder.ModeWindow,
		payment("A", "2024-01-15", 3),
		payment("B", "2024-01-20", 1),
	)

	// WHEN
	res, err := job.Run(context.Background(), d("2024-02-15"))

	// THEN
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Due)
	assert.True(t, res.Target.IsZero())

	require.Len(t, rec.digests, 1)
	digest := rec.digests[0]
	assert.Equal(t, "manager@example.com", digest.Recipient)
	require.Len(t, digest.Items, 1)
	assert.Equal(t, "A", digest.Items[0].ScheduleID)
	assert.Equal(t, "Account A", digest.Items[0].AccountName)
	assert.Equal(t, d("2024-04-15"), digest.Items[0].NextPaymentDate)
}

func TestJob_DueOnMode(t *testing.T) {
	job, rec := newJob(reminder.ModeDueOn,
		payment("D", "2024-03-10", 1),
		payment("A", "2023-03-10", 12),
		payment("C", "2024-03-11", 1),
	)

	res, err := job.Run(context.Background(), d("2024-01-10"))

	require.NoError(t, err)
	assert.Equal(t, d("2024-03-10"), res.Target)
	require.Len(t, rec.digests, 1)
	items := rec.digests[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, "D", items[0].ScheduleID)
	assert.Equal(t, "A", items[1].ScheduleID)
	assert.Equal(t, d("2024-03-10"), items[1].NextPaymentDate)
	assert.Equal(t, d("2024-03-10"), rec.digests[0].Target)
}

func TestJob_NothingDueSendsNothing(t *testing.T) {
	job, rec := newJob(reminder.ModeWindow, payment("A", "2024-01-15", 3))

	res, err := job.Run(context.Background(), d("2024-02-16"))

	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Empty(t, rec.digests)
}

func TestJob_RepeatedSweepWithoutClaimsResends(t *testing.T) {
	job, rec := newJob(reminder.ModeWindow, payment("A", "2024-01-15", 3))

	for i := 0; i < 2; i++ {
		_, err := job.Run(context.Background(), d("2024-02-15"))
		require.NoError(t, err)
	}

	assert.Len(t, rec.digests, 2)
}

func TestJob_ClaimsPreventDuplicates(t *testing.T) {
	job, rec := newJob(reminder.ModeWindow, payment("A", "2024-01-15", 3))
	job.Claimer = newMemoryClaims()

	first, err := job.Run(context.Background(), d("2024-02-15"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Claimed)

	second, err := job.Run(context.Background(), d("2024-02-15"))
	require.NoError(t, err)
	assert.False(t, second.Sent)
	assert.Equal(t, 1, second.Skipped)

	assert.Len(t, rec.digests, 1)
}

func TestJob_FailedSendReleasesClaims(t *testing.T) {
	// GIVEN: a notifier that fails once
	job, rec := newJob(reminder.ModeWindow, payment("A", "2024-01-15", 3))
	claims := newMemoryClaims()
	job.Claimer = claims
	rec.err = errors.New("broker down")

	// WHEN
	_, err := job.Run(context.Background(), d("2024-02-15"))

	// THEN: the error surfaces and the retry goes through
	require.Error(t, err)
	assert.ErrorContains(t, err, "broker down")
	assert.Empty(t, claims.claims)

	rec.err = nil
	res, err := job.Run(context.Background(), d("2024-02-15"))
	require.NoError(t, err)
	assert.True(t, res.Sent)
}

func TestJob_SourceError(t *testing.T) {
	job, _ := newJob(reminder.ModeWindow)
	job.Source = source{err: errors.New("db gone")}

	_, err := job.Run(context.Background(), d("2024-02-15"))

	assert.ErrorContains(t, err, "db gone")
}

func TestParseMode(t *testing.T) {
	m, err := reminder.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, reminder.ModeWindow, m)

	m, err = reminder.ParseMode("due_on")
	require.NoError(t, err)
	assert.Equal(t, reminder.ModeDueOn, m)

	_, err = reminder.ParseMode("weekly")
	assert.Error(t, err)
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestScheduler_RunNowUsesClock(t *testing.T) {
	job, rec := newJob(reminder.ModeWindow, payment("A", "2024-01-15", 3))
	clock := calendar.NewFixedClock(time.Date(2024, 2, 15, 23, 30, 0, 0, time.UTC))

	s := reminder.NewScheduler(job, clock, time.UTC, "")
	_, ok := s.LastRun()
	assert.False(t, ok)

	res, err := s.RunNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, d("2024-02-15"), res.Today)
	assert.Len(t, rec.digests, 1)

	last, ok := s.LastRun()
	require.True(t, ok)
	assert.True(t, last.Result.Sent)
	assert.Empty(t, last.Error)
}

func TestScheduler_TodayInReferenceLocation(t *testing.T) {
	// 23:30 UTC on Feb 14 is already Feb 15 in Tokyo
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	job, rec := newJob(reminder.ModeWindow, payment("A", "2024-01-15", 3))
	clock := calendar.NewFixedClock(time.Date(2024, 2, 14, 23, 30, 0, 0, time.UTC))

	res, err := reminder.NewScheduler(job, clock, loc, "").RunNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, d("2024-02-15"), res.Today)
	assert.Len(t, rec.digests, 1)
}

func TestScheduler_StartStop(t *testing.T) {
	job, _ := newJob(reminder.ModeWindow)
	s := reminder.NewScheduler(job, calendar.SystemClock{}, time.UTC, "")

	require.NoError(t, s.Start())
	next, ok := s.NextRun()
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))
	s.Stop()

	_, ok = s.NextRun()
	assert.False(t, ok)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	job, _ := newJob(reminder.ModeWindow)
	s := reminder.NewScheduler(job, calendar.SystemClock{}, time.UTC, "every tuesday")

	assert.Error(t, s.Start())
}

func TestScheduler_Disabled(t *testing.T) {
	job, _ := newJob(reminder.ModeWindow)
	s := reminder.NewScheduler(job, calendar.SystemClock{}, time.UTC, "")
	s.Enabled = false

	require.NoError(t, s.Start())
	_, ok := s.NextRun()
	assert.False(t, ok)
}

// =============================================================================
// REDIS CLAIMER
// =============================================================================

type fakeRedis struct {
	keys map[string]time.Duration
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisClaimer(t *testing.T) {
	client := &fakeRedis{keys: map[string]time.Duration{}}
	c := reminder.NewRedisClaimer(client, 2)
	ctx := context.Background()

	ok, err := c.Claim(ctx, "rp-1", d("2024-04-15"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3*31*24*time.Hour, client.keys["crm:reminder:rp-1:2024-04-15"])

	ok, err = c.Claim(ctx, "rp-1", d("2024-04-15"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Release(ctx, "rp-1", d("2024-04-15")))
	assert.Empty(t, client.keys)
}
