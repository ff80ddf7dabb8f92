package reminder

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crm-engine/calendar"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/notify"
)

type countingSource struct {
	calls atomic.Int32
}

func (c *countingSource) ListRecurringPayments(context.Context, crm.Query) ([]crm.RecurringPayment, error) {
	c.calls.Add(1)
	return nil, nil
}

func TestScheduler_TickAfterStopIsDropped(t *testing.T) {
	src := &countingSource{}
	job := &Job{
		Source:       src,
		Notifier:     notify.NewLogNotifier(zerolog.Nop()),
		Mode:         ModeWindow,
		WindowMonths: 1,
		Logger:       zerolog.Nop(),
	}
	s := NewScheduler(job, calendar.SystemClock{}, time.UTC, "")

	// GIVEN: a scheduler that was started and stopped
	require.NoError(t, s.Start())
	s.Stop()

	// WHEN: a cron tick fires late
	s.tick()

	// THEN: no sweep runs and Stop has nothing left to wait for
	assert.Equal(t, int32(0), src.calls.Load())
	_, ok := s.LastRun()
	assert.False(t, ok)
	s.ticks.Wait()
}

func TestScheduler_TickWhileRunningSweeps(t *testing.T) {
	src := &countingSource{}
	job := &Job{
		Source:       src,
		Notifier:     notify.NewLogNotifier(zerolog.Nop()),
		Mode:         ModeWindow,
		WindowMonths: 1,
		Logger:       zerolog.Nop(),
	}
	s := NewScheduler(job, calendar.SystemClock{}, time.UTC, "")
	require.NoError(t, s.Start())
	defer s.Stop()

	s.tick()

	assert.Equal(t, int32(1), src.calls.Load())
	_, ok := s.LastRun()
	assert.True(t, ok)
}
