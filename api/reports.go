package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/recurrence"
	"github.com/warp/crm-engine/visibility"
)

const (
	defaultUpcomingMonths = 3
	maxUpcomingMonths     = 24
)

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard aggregates the leads and deals in the caller's scope.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := CurrentUser(ctx)

	scope, err := h.scopeFor(ctx, actor)
	if err != nil {
		h.writeStoreError(w, r, "dashboard", err)
		return
	}
	q := visibility.ApplyScope(crm.Query{}, scope)

	leads, err := h.Store.ListLeads(ctx, q)
	if err != nil {
		h.writeStoreError(w, r, "dashboard", err)
		return
	}
	deals, err := h.Store.ListDeals(ctx, q)
	if err != nil {
		h.writeStoreError(w, r, "dashboard", err)
		return
	}
	users, err := h.Store.ListUsers(ctx, crm.Query{})
	if err != nil {
		h.writeStoreError(w, r, "dashboard", err)
		return
	}

	today := h.today()
	dash := crm.ComputeDashboard(leads, deals, users, today)
	writeJSON(w, http.StatusOK, DashboardResponse{
		Dashboard:      dash,
		Today:          today,
		Scope:          scope.String(),
		NextMonthStart: dash.NextMonth.Start,
		NextMonthEnd:   dash.NextMonth.End,
	})
}

// =============================================================================
// UPCOMING PAYMENTS
// =============================================================================

// UpcomingPayments lists every occurrence after today and up to ?months=
// ahead, grouped by calendar month.
func (h *Handler) UpcomingPayments(w http.ResponseWriter, r *http.Request) {
	months := defaultUpcomingMonths
	if s := r.URL.Query().Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxUpcomingMonths {
			writeError(w, http.StatusBadRequest, "Invalid query",
				fmt.Errorf("months must be between 1 and %d", maxUpcomingMonths))
			return
		}
		months = n
	}

	payments, err := h.Store.ListRecurringPayments(r.Context(), crm.Query{})
	if err != nil {
		h.writeStoreError(w, r, "recurring payment", err)
		return
	}
	byID := make(map[string]crm.RecurringPayment, len(payments))
	for _, rp := range payments {
		byID[rp.ID] = rp
	}

	today := h.today()
	buckets := recurrence.GroupByMonth(h.Planner.Upcoming(crm.Schedules(payments), today, months))

	resp := UpcomingResponse{Today: today, Months: months, Board: make([]UpcomingMonth, 0, len(buckets))}
	for _, b := range buckets {
		col := UpcomingMonth{
			Month:    fmt.Sprintf("%04d-%02d", b.Month.Start.Year(), int(b.Month.Start.Month())),
			Start:    b.Month.Start,
			End:      b.Month.End,
			Total:    b.Total,
			Payments: make([]UpcomingPayment, 0, len(b.Occurrences)),
		}
		for _, o := range b.Occurrences {
			rp := byID[o.Schedule.ID]
			col.Payments = append(col.Payments, UpcomingPayment{
				ScheduleID:   o.Schedule.ID,
				AccountName:  rp.AccountName,
				ContactName:  rp.ContactName,
				DealName:     rp.DealName,
				Amount:       o.Schedule.Amount,
				PeriodMonths: o.Schedule.PeriodMonths,
				Date:         o.Date,
				Index:        o.Index,
			})
		}
		resp.Board = append(resp.Board, col)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// REMINDERS (admin)
// =============================================================================

// RunReminders runs the reminder sweep for today and returns its result.
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	if h.Reminders == nil {
		writeError(w, http.StatusServiceUnavailable, "Reminders are not configured", nil)
		return
	}
	actor, _ := CurrentUser(r.Context())
	h.Logger.Info().Str("actor", actor.ID).Msg("manual reminder run")

	res, err := h.Reminders.RunNow(r.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("manual reminder run failed")
		writeError(w, http.StatusBadGateway, "Reminder run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LastReminderRun returns the record of the most recent sweep.
func (h *Handler) LastReminderRun(w http.ResponseWriter, r *http.Request) {
	if h.Reminders == nil {
		writeError(w, http.StatusServiceUnavailable, "Reminders are not configured", nil)
		return
	}
	run, ok := h.Reminders.LastRun()
	if !ok {
		writeError(w, http.StatusNotFound, "No reminder run yet", nil)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// CreateUser is open to anonymous callers only while the store has no
// users; the first user defaults to unrestricted access. Afterwards it needs
// an admin.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	res := h.users()
	if _, ok := CurrentUser(r.Context()); ok {
		requireAccess(visibility.Admin)(createRecord(h, res)).ServeHTTP(w, r)
		return
	}

	existing, err := h.Store.ListUsers(r.Context(), crm.Query{})
	if err != nil {
		h.writeStoreError(w, r, "user", err)
		return
	}
	if len(existing) > 0 {
		writeError(w, http.StatusUnauthorized, "Missing "+UserHeader+" header", nil)
		return
	}

	stamp := res.stamp
	res.stamp = func(u *crm.User, id string, now time.Time, actor crm.User, prev *crm.User) {
		if u.Role == "" {
			u.Role = visibility.Unrestricted.String()
		}
		stamp(u, id, now, actor, prev)
	}
	res.allow = nil
	// A concurrent bootstrap that lost the race gets 409 from the store.
	res.create = h.Store.CreateFirstUser
	h.Logger.Info().Msg("creating first user")
	createRecord(h, res).ServeHTTP(w, r)
}
