/*
handlers.go - HTTP API handlers for the CRM engine

PURPOSE:
  Exposes the CRM records, the recurring-payment planner and the reminder
  sweep over REST. Handles HTTP request/response, JSON serialization, the
  visibility scope of the acting user, and delegates to the domain packages.

ENDPOINTS:
  Public:
    GET    /api/health                      Liveness and store ping
    POST   /api/users                       Create user (open only while no users exist)

  Records (every route needs X-User-ID):
    GET|POST        /api/{kind}             List / create
    GET|PUT|DELETE  /api/{kind}/{id}        Read / replace / delete
    kinds: users, accounts, contacts, leads, deals, recurring-payments, tasks

  Reports:
    GET    /api/dashboard                   Totals and reps for the caller's scope
    GET    /api/recurring-payments/upcoming Month-by-month payments board

  Admin:
    POST   /api/admin/reminders/run         Run the reminder sweep now
    GET    /api/admin/reminders/last        Outcome of the last sweep

VISIBILITY:
  Accounts, contacts, leads and deals are owned. Lists are narrowed to the
  caller's owner scope; reading, replacing or deleting a record outside it
  answers 404, and assigning a record to an owner outside it answers 403.
  Recurring payments and tasks are visible to every user.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown references
  - 401: Missing or unknown X-User-ID
  - 403: Access level too low, owner outside scope
  - 404: Record not found or not visible
  - 409: Duplicate email/emp code, delete of a still-referenced record
  - 500: Internal errors

SEE ALSO:
  - records.go: Generic CRUD over the record kinds
  - reports.go: Dashboard, upcoming payments, reminder admin
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/crm-engine/calendar"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/recurrence"
	"github.com/warp/crm-engine/reminder"
	"github.com/warp/crm-engine/visibility"
)

// ReminderRunner is the part of the reminder scheduler the admin routes use.
type ReminderRunner interface {
	RunNow(ctx context.Context) (reminder.Result, error)
	LastRun() (reminder.Run, bool)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store     crm.Store
	Clock     calendar.Clock
	Location  *time.Location
	Planner   recurrence.Planner
	Reminders ReminderRunner // nil disables the reminder admin routes
	Logger    zerolog.Logger
}

// NewHandler creates a handler that reads "today" from clock in loc.
func NewHandler(store crm.Store, clock calendar.Clock, loc *time.Location, planner recurrence.Planner, logger zerolog.Logger) *Handler {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		Store:    store,
		Clock:    clock,
		Location: loc,
		Planner:  planner,
		Logger:   logger.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) today() calendar.Date {
	return calendar.Today(h.Clock, h.Location)
}

func (h *Handler) now() time.Time {
	return h.Clock.Now().UTC()
}

// scopeFor resolves the owners whose records u may see. A broken manager
// link is logged and resolves to u's own records.
func (h *Handler) scopeFor(ctx context.Context, u crm.User) (visibility.Scope, error) {
	if u.Access() == visibility.Unrestricted {
		return visibility.AllOwners(), nil
	}

	users, err := h.Store.ListUsers(ctx, crm.Query{})
	if err != nil {
		return visibility.Scope{}, err
	}
	dir := crm.Users(users)
	org := u.OrgUser()
	if err := visibility.CheckHierarchy(org, dir); err != nil {
		h.Logger.Warn().Err(err).
			Str("user_id", u.ID).
			Str("manager_emp_code", u.ManagerEmpCode).
			Msg("broken reporting hierarchy, scoping to own records")
	}
	return visibility.ResolveOwnerScope(org, dir), nil
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Today: h.today()})
}

// =============================================================================
// QUERY PARAMETERS
// =============================================================================

// parseQuery reads ?sort=&order=&from=&to= into a crm.Query.
func parseQuery(r *http.Request) (crm.Query, error) {
	v := r.URL.Query()
	q := crm.Query{
		Sort:  v.Get("sort"),
		Order: strings.ToLower(strings.TrimSpace(v.Get("order"))),
	}
	if q.Order != "" && q.Order != "asc" && q.Order != "desc" {
		return q, &paramError{name: "order", reason: "must be asc or desc"}
	}

	var err error
	if s := v.Get("from"); s != "" {
		if q.From, err = calendar.Parse(s); err != nil {
			return q, &paramError{name: "from", reason: err.Error()}
		}
	}
	if s := v.Get("to"); s != "" {
		if q.To, err = calendar.Parse(s); err != nil {
			return q, &paramError{name: "to", reason: err.Error()}
		}
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, &paramError{name: "to", reason: "is before from"}
	}
	return q, nil
}

type paramError struct {
	name   string
	reason string
}

func (e *paramError) Error() string { return "query parameter " + e.name + " " + e.reason }
