package crm

import (
	"context"

	"github.com/warp/crm-engine/calendar"
)

// Create methods expect the ID and CreatedAt to be set by the caller.
// Update methods return ErrNotFound when the ID does not exist.
// List methods honour Query; owner filtering applies to records that have an
// owner and is ignored by the others.

type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, q Query) ([]User, error)
	// CreateFirstUser creates u only if no user exists yet, atomically;
	// otherwise it returns ErrConflict.
	CreateFirstUser(ctx context.Context, u User) error
}

type AccountStore interface {
	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	UpdateAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, q Query) ([]Account, error)
}

type ContactStore interface {
	CreateContact(ctx context.Context, c Contact) error
	GetContact(ctx context.Context, id string) (Contact, error)
	UpdateContact(ctx context.Context, c Contact) error
	DeleteContact(ctx context.Context, id string) error
	ListContacts(ctx context.Context, q Query) ([]Contact, error)
}

type LeadStore interface {
	CreateLead(ctx context.Context, l Lead) error
	GetLead(ctx context.Context, id string) (Lead, error)
	UpdateLead(ctx context.Context, l Lead) error
	DeleteLead(ctx context.Context, id string) error
	ListLeads(ctx context.Context, q Query) ([]Lead, error)
}

type DealStore interface {
	CreateDeal(ctx context.Context, d Deal) error
	GetDeal(ctx context.Context, id string) (Deal, error)
	UpdateDeal(ctx context.Context, d Deal) error
	DeleteDeal(ctx context.Context, id string) error
	ListDeals(ctx context.Context, q Query) ([]Deal, error)
}

type RecurringPaymentStore interface {
	CreateRecurringPayment(ctx context.Context, rp RecurringPayment) error
	GetRecurringPayment(ctx context.Context, id string) (RecurringPayment, error)
	UpdateRecurringPayment(ctx context.Context, rp RecurringPayment) error
	DeleteRecurringPayment(ctx context.Context, id string) error
	ListRecurringPayments(ctx context.Context, q Query) ([]RecurringPayment, error)
}

type TaskStore interface {
	CreateTask(ctx context.Context, t Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	UpdateTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, q Query) ([]Task, error)
}

// Store is everything the HTTP layer needs.
type Store interface {
	UserStore
	AccountStore
	ContactStore
	LeadStore
	DealStore
	RecurringPaymentStore
	TaskStore
	Close() error
}

// ClaimStore persists reminder claims: a (schedule, occurrence) pair can be
// claimed once. Claim returns false when the pair was already claimed.
type ClaimStore interface {
	Claim(ctx context.Context, scheduleID string, occurrence calendar.Date) (bool, error)
	Release(ctx context.Context, scheduleID string, occurrence calendar.Date) error
}
