package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/visibility"
)

type record interface {
	Validate() error
}

// resource wires one record kind to the generic CRUD handlers.
type resource[T record] struct {
	name string

	create func(context.Context, T) error
	get    func(context.Context, string) (T, error)
	update func(context.Context, T) error
	remove func(context.Context, string) error
	list   func(context.Context, crm.Query) ([]T, error)

	// stamp sets the server-owned fields. prev is the stored record when
	// replacing, nil when creating.
	stamp func(rec *T, id string, now time.Time, actor crm.User, prev *T)
	// owner is nil for kinds every user can see.
	owner func(T) string
	// view shapes a record for the response; nil writes it as stored.
	view func(h *Handler, rec T) any
	// allow vetoes a write by actor. prev is the stored record when
	// replacing or deleting, nil when creating. nil allows every write.
	allow func(actor crm.User, rec T, prev *T) bool
}

func (res resource[T]) show(h *Handler, rec T) any {
	if res.view == nil {
		return rec
	}
	return res.view(h, rec)
}

// visible loads id and hides records outside the caller's scope.
func (res resource[T]) visible(ctx context.Context, h *Handler, actor crm.User, id string) (T, error) {
	rec, err := res.get(ctx, id)
	if err != nil || res.owner == nil {
		return rec, err
	}
	scope, err := h.scopeFor(ctx, actor)
	if err != nil {
		return rec, err
	}
	if !scope.Includes(res.owner(rec)) {
		var zero T
		return zero, crm.ErrNotFound
	}
	return rec, nil
}

// assignable reports whether actor may write rec over prev, including
// giving it to its owner.
func (res resource[T]) assignable(ctx context.Context, h *Handler, actor crm.User, rec T, prev *T) (bool, error) {
	if res.allow != nil && !res.allow(actor, rec, prev) {
		return false, nil
	}
	if res.owner == nil {
		return true, nil
	}
	scope, err := h.scopeFor(ctx, actor)
	if err != nil {
		return false, err
	}
	return scope.Includes(res.owner(rec)), nil
}

// =============================================================================
// GENERIC HANDLERS
// =============================================================================

func listRecords[T record](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, _ := CurrentUser(ctx)

		q, err := parseQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid query", err)
			return
		}
		if res.owner != nil {
			scope, err := h.scopeFor(ctx, actor)
			if err != nil {
				h.writeStoreError(w, r, res.name, err)
				return
			}
			q = visibility.ApplyScope(q, scope)
		}

		recs, err := res.list(ctx, q)
		if err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		out := make([]any, len(recs))
		for i, rec := range recs {
			out[i] = res.show(h, rec)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getRecord[T record](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentUser(r.Context())
		rec, err := res.visible(r.Context(), h, actor, chi.URLParam(r, "id"))
		if err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		writeJSON(w, http.StatusOK, res.show(h, rec))
	}
}

func createRecord[T record](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, _ := CurrentUser(ctx)

		var rec T
		if err := decodeJSON(r, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		id := uuid.NewString()
		res.stamp(&rec, id, h.now(), actor, nil)
		if err := rec.Validate(); err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		ok, err := res.assignable(ctx, h, actor, rec, nil)
		if err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "Not allowed to write this "+res.name, nil)
			return
		}

		if err := res.create(ctx, rec); err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		h.Logger.Info().Str("kind", res.name).Str("id", id).Str("actor", actor.ID).Msg("record created")

		created, err := res.get(ctx, id)
		if err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		writeJSON(w, http.StatusCreated, res.show(h, created))
	}
}

func updateRecord[T record](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, _ := CurrentUser(ctx)
		id := chi.URLParam(r, "id")

		prev, err := res.visible(ctx, h, actor, id)
		if err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}

		var rec T
		if err := decodeJSON(r, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		res.stamp(&rec, id, h.now(), actor, &prev)
		if err := rec.Validate(); err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		ok, err := res.assignable(ctx, h, actor, rec, &prev)
		if err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "Not allowed to write this "+res.name, nil)
			return
		}

		if err := res.update(ctx, rec); err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		updated, err := res.get(ctx, id)
		if err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		writeJSON(w, http.StatusOK, res.show(h, updated))
	}
}

func deleteRecord[T record](h *Handler, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, _ := CurrentUser(ctx)
		id := chi.URLParam(r, "id")

		stored, err := res.visible(ctx, h, actor, id)
		if err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		if res.allow != nil && !res.allow(actor, stored, &stored) {
			writeError(w, http.StatusForbidden, "Not allowed to delete this "+res.name, nil)
			return
		}
		err = res.remove(ctx, id)
		if errors.Is(err, crm.ErrUnknownReference) {
			writeError(w, http.StatusConflict, res.name+" is still referenced", err)
			return
		}
		if err != nil {
			h.writeStoreError(w, r, res.name, err)
			return
		}
		h.Logger.Info().Str("kind", res.name).Str("id", id).Str("actor", actor.ID).Msg("record deleted")
		w.WriteHeader(http.StatusNoContent)
	}
}

// =============================================================================
// RECORD KINDS
// =============================================================================

// ownedStamp fills id, created_at and a missing owner. Replacing keeps the
// original creation time and, when the body names none, the owner.
func ownedStamp(owner *string, id *string, createdAt *time.Time, newID string, now time.Time, actor crm.User, prevOwner string, prevCreated *time.Time) {
	*id = newID
	if prevCreated != nil {
		*createdAt = *prevCreated
		if *owner == "" {
			*owner = prevOwner
		}
		return
	}
	*createdAt = now
	if *owner == "" {
		*owner = actor.ID
	}
}

func (h *Handler) accounts() resource[crm.Account] {
	return resource[crm.Account]{
		name:   "account",
		create: h.Store.CreateAccount,
		get:    h.Store.GetAccount,
		update: h.Store.UpdateAccount,
		remove: h.Store.DeleteAccount,
		list:   h.Store.ListAccounts,
		stamp: func(a *crm.Account, id string, now time.Time, actor crm.User, prev *crm.Account) {
			if prev == nil {
				ownedStamp(&a.OwnerID, &a.ID, &a.CreatedAt, id, now, actor, "", nil)
				return
			}
			ownedStamp(&a.OwnerID, &a.ID, &a.CreatedAt, id, now, actor, prev.OwnerID, &prev.CreatedAt)
		},
		owner: func(a crm.Account) string { return a.OwnerID },
	}
}

func (h *Handler) contacts() resource[crm.Contact] {
	return resource[crm.Contact]{
		name:   "contact",
		create: h.Store.CreateContact,
		get:    h.Store.GetContact,
		update: h.Store.UpdateContact,
		remove: h.Store.DeleteContact,
		list:   h.Store.ListContacts,
		stamp: func(c *crm.Contact, id string, now time.Time, actor crm.User, prev *crm.Contact) {
			if prev == nil {
				ownedStamp(&c.OwnerID, &c.ID, &c.CreatedAt, id, now, actor, "", nil)
				return
			}
			ownedStamp(&c.OwnerID, &c.ID, &c.CreatedAt, id, now, actor, prev.OwnerID, &prev.CreatedAt)
		},
		owner: func(c crm.Contact) string { return c.OwnerID },
	}
}

func (h *Handler) leads() resource[crm.Lead] {
	return resource[crm.Lead]{
		name:   "lead",
		create: h.Store.CreateLead,
		get:    h.Store.GetLead,
		update: h.Store.UpdateLead,
		remove: h.Store.DeleteLead,
		list:   h.Store.ListLeads,
		stamp: func(l *crm.Lead, id string, now time.Time, actor crm.User, prev *crm.Lead) {
			if l.Status == "" {
				l.Status = crm.LeadOpen
			}
			if prev == nil {
				ownedStamp(&l.OwnerID, &l.ID, &l.CreatedAt, id, now, actor, "", nil)
				return
			}
			ownedStamp(&l.OwnerID, &l.ID, &l.CreatedAt, id, now, actor, prev.OwnerID, &prev.CreatedAt)
		},
		owner: func(l crm.Lead) string { return l.OwnerID },
	}
}

func (h *Handler) deals() resource[crm.Deal] {
	return resource[crm.Deal]{
		name:   "deal",
		create: h.Store.CreateDeal,
		get:    h.Store.GetDeal,
		update: h.Store.UpdateDeal,
		remove: h.Store.DeleteDeal,
		list:   h.Store.ListDeals,
		stamp: func(d *crm.Deal, id string, now time.Time, actor crm.User, prev *crm.Deal) {
			if prev == nil {
				ownedStamp(&d.OwnerID, &d.ID, &d.CreatedAt, id, now, actor, "", nil)
				return
			}
			ownedStamp(&d.OwnerID, &d.ID, &d.CreatedAt, id, now, actor, prev.OwnerID, &prev.CreatedAt)
		},
		owner: func(d crm.Deal) string { return d.OwnerID },
	}
}

func (h *Handler) recurringPayments() resource[crm.RecurringPayment] {
	return resource[crm.RecurringPayment]{
		name:   "recurring payment",
		create: h.Store.CreateRecurringPayment,
		get:    h.Store.GetRecurringPayment,
		update: h.Store.UpdateRecurringPayment,
		remove: h.Store.DeleteRecurringPayment,
		list:   h.Store.ListRecurringPayments,
		stamp: func(rp *crm.RecurringPayment, id string, now time.Time, _ crm.User, prev *crm.RecurringPayment) {
			rp.ID = id
			rp.CreatedAt = now
			if prev != nil {
				rp.CreatedAt = prev.CreatedAt
			}
			rp.AccountName, rp.ContactName, rp.DealName = "", "", ""
		},
		view: func(h *Handler, rp crm.RecurringPayment) any {
			return RecurringPaymentView{
				RecurringPayment: rp,
				NextPaymentDate:  h.Planner.NextOccurrenceOnOrAfter(rp.Schedule(), h.today()),
			}
		},
	}
}

func (h *Handler) tasks() resource[crm.Task] {
	return resource[crm.Task]{
		name:   "task",
		create: h.Store.CreateTask,
		get:    h.Store.GetTask,
		update: h.Store.UpdateTask,
		remove: h.Store.DeleteTask,
		list:   h.Store.ListTasks,
		stamp: func(t *crm.Task, id string, now time.Time, actor crm.User, prev *crm.Task) {
			t.ID = id
			if prev != nil {
				t.CreatedAt = prev.CreatedAt
				if t.AssignedBy == "" {
					t.AssignedBy = prev.AssignedBy
				}
				return
			}
			t.CreatedAt = now
			if t.AssignedBy == "" {
				t.AssignedBy = actor.ID
			}
		},
	}
}

// users are a directory: listed in full, managed by admins.
func (h *Handler) users() resource[crm.User] {
	return resource[crm.User]{
		name:   "user",
		create: h.Store.CreateUser,
		get:    h.Store.GetUser,
		update: h.Store.UpdateUser,
		remove: h.Store.DeleteUser,
		list:   h.Store.ListUsers,
		stamp: func(u *crm.User, id string, now time.Time, _ crm.User, prev *crm.User) {
			u.ID = id
			u.CreatedAt = now
			if prev != nil {
				u.CreatedAt = prev.CreatedAt
			}
			u.Normalize()
		},
		// Nobody grants, or acts on a user holding, more access than their own.
		allow: func(actor crm.User, u crm.User, prev *crm.User) bool {
			if prev != nil && !actor.Access().AtLeast(prev.Access()) {
				return false
			}
			return actor.Access().AtLeast(u.Access())
		},
	}
}
