/*
Package crm defines the records of the CRM and the contracts between the
record store, the HTTP layer and the background jobs.

KEY CONCEPTS:
  - Records: User, Account, Contact, Lead, Deal, RecurringPayment, Task
  - Owner:   every sales record except Task and RecurringPayment carries the
             ID of the user who owns it; visibility is decided on that column
  - Query:   listing options (owner filter, sort, due-date range)
  - Store:   persistence interfaces implemented by store/sqlstore

VALIDATION:
  Records are validated at the boundary (Validate) before they are stored.
  Nothing downstream re-checks them.

SEE ALSO:
  - query.go:     listing options and owner narrowing
  - dashboard.go: aggregate sales metrics
  - store.go:     persistence interfaces
*/
package crm

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/crm-engine/calendar"
	"github.com/warp/crm-engine/recurrence"
	"github.com/warp/crm-engine/visibility"
)

// =============================================================================
// USER
// =============================================================================

// User is a person who can log in and own records.
type User struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Role           string    `db:"role" json:"role"`
	EmpCode        string    `db:"emp_code" json:"emp_code"`
	ManagerEmpCode string    `db:"manager_emp_code" json:"manager_emp_code"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Access returns the user's access level; unknown roles get the least access.
func (u User) Access() visibility.AccessLevel {
	level, _ := visibility.ParseAccessLevel(u.Role)
	return level
}

// OrgUser projects the user onto the reporting hierarchy.
func (u User) OrgUser() visibility.OrgUser {
	return visibility.OrgUser{
		ID:             u.ID,
		EmpCode:        u.EmpCode,
		ManagerEmpCode: u.ManagerEmpCode,
		Access:         u.Access(),
	}
}

// Normalize fills defaults: no manager means the user manages themselves.
func (u *User) Normalize() {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Role == "" {
		u.Role = visibility.Standard.String()
	}
	if u.ManagerEmpCode == "" {
		u.ManagerEmpCode = u.EmpCode
	}
}

func (u User) Validate() error {
	switch {
	case strings.TrimSpace(u.Name) == "":
		return invalid("user", "name", "is required")
	case !validEmail(u.Email):
		return invalid("user", "email", "is not a valid address")
	case strings.TrimSpace(u.EmpCode) == "":
		return invalid("user", "emp_code", "is required")
	case strings.TrimSpace(u.ManagerEmpCode) == "":
		return invalid("user", "manager_emp_code", "is required")
	}
	if _, err := visibility.ParseAccessLevel(u.Role); err != nil {
		return invalid("user", "role", "must be standard, admin or unrestricted")
	}
	return nil
}

// Users converts a user list into a visibility directory.
func Users(users []User) visibility.Users {
	dir := make(visibility.Users, len(users))
	for i, u := range users {
		dir[i] = u.OrgUser()
	}
	return dir
}

// =============================================================================
// ACCOUNT & CONTACT
// =============================================================================

type Account struct {
	ID             string    `db:"id" json:"id"`
	OwnerID        string    `db:"owner_id" json:"owner_id"`
	Name           string    `db:"name" json:"name"`
	Type           string    `db:"type" json:"type"`
	Industry       string    `db:"industry" json:"industry"`
	BillingStreet  string    `db:"billing_street" json:"billing_street"`
	BillingCity    string    `db:"billing_city" json:"billing_city"`
	BillingState   string    `db:"billing_state" json:"billing_state"`
	BillingCode    string    `db:"billing_code" json:"billing_code"`
	BillingCountry string    `db:"billing_country" json:"billing_country"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func (a Account) Validate() error {
	return required("account", map[string]string{
		"owner_id":        a.OwnerID,
		"name":            a.Name,
		"type":            a.Type,
		"industry":        a.Industry,
		"billing_street":  a.BillingStreet,
		"billing_city":    a.BillingCity,
		"billing_state":   a.BillingState,
		"billing_code":    a.BillingCode,
		"billing_country": a.BillingCountry,
	})
}

type Contact struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	Company   string    `db:"company" json:"company"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (c Contact) Validate() error {
	if err := required("contact", map[string]string{
		"owner_id": c.OwnerID,
		"name":     c.Name,
		"company":  c.Company,
		"phone":    c.Phone,
	}); err != nil {
		return err
	}
	if !validEmail(c.Email) {
		return invalid("contact", "email", "is not a valid address")
	}
	return nil
}

// =============================================================================
// LEAD
// =============================================================================

type LeadStatus string

const (
	LeadOpen LeadStatus = "open"
	LeadWon  LeadStatus = "won"
	LeadLost LeadStatus = "lost"
)

func (s LeadStatus) Valid() bool {
	return s == LeadOpen || s == LeadWon || s == LeadLost
}

type Lead struct {
	ID          string     `db:"id" json:"id"`
	OwnerID     string     `db:"owner_id" json:"owner_id"`
	Name        string     `db:"name" json:"name"`
	Company     string     `db:"company" json:"company"`
	Email       string     `db:"email" json:"email"`
	Phone       string     `db:"phone" json:"phone"`
	Status      LeadStatus `db:"status" json:"status"`
	Description string     `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (l Lead) Validate() error {
	if err := required("lead", map[string]string{
		"owner_id": l.OwnerID,
		"name":     l.Name,
		"company":  l.Company,
		"phone":    l.Phone,
	}); err != nil {
		return err
	}
	if !validEmail(l.Email) {
		return invalid("lead", "email", "is not a valid address")
	}
	if !l.Status.Valid() {
		return invalid("lead", "status", "must be open, won or lost")
	}
	return nil
}

// =============================================================================
// DEAL
// =============================================================================

// Probabilities are the win probabilities a deal may be given, in percent.
var Probabilities = []int{0, 10, 20, 40, 60, 75, 90, 100}

type Deal struct {
	ID          string          `db:"id" json:"id"`
	OwnerID     string          `db:"owner_id" json:"owner_id"`
	Name        string          `db:"name" json:"name"`
	AccountID   string          `db:"account_id" json:"account_id"`
	ContactID   string          `db:"contact_id" json:"contact_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	DueDate     calendar.Date   `db:"due_date" json:"due_date"`
	Probability int             `db:"probability" json:"probability"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

func (d Deal) Validate() error {
	if err := required("deal", map[string]string{
		"owner_id":   d.OwnerID,
		"name":       d.Name,
		"account_id": d.AccountID,
		"contact_id": d.ContactID,
	}); err != nil {
		return err
	}
	if d.Amount.IsNegative() {
		return invalid("deal", "amount", "must not be negative")
	}
	if d.DueDate.IsZero() {
		return invalid("deal", "due_date", "is required")
	}
	for _, p := range Probabilities {
		if d.Probability == p {
			return nil
		}
	}
	return invalid("deal", "probability", "must be one of 0, 10, 20, 40, 60, 75, 90, 100")
}

// =============================================================================
// RECURRING PAYMENT
// =============================================================================

// RecurringPayment is a stored payment schedule. The *Name fields are filled
// by listings and are never written.
type RecurringPayment struct {
	ID               string          `db:"id" json:"id"`
	AccountID        string          `db:"account_id" json:"account_id"`
	ContactID        string          `db:"contact_id" json:"contact_id"`
	DealID           string          `db:"deal_id" json:"deal_id"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	PeriodMonths     int             `db:"period_months" json:"period_months"`
	FirstPaymentDate calendar.Date   `db:"first_payment_date" json:"first_payment_date"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`

	AccountName string `db:"account_name" json:"account_name,omitempty"`
	ContactName string `db:"contact_name" json:"contact_name,omitempty"`
	DealName    string `db:"deal_name" json:"deal_name,omitempty"`
}

// Schedule returns the planner's view of the record.
func (rp RecurringPayment) Schedule() recurrence.PaymentSchedule {
	return recurrence.PaymentSchedule{
		ID:              rp.ID,
		AccountID:       rp.AccountID,
		ContactID:       rp.ContactID,
		DealID:          rp.DealID,
		Amount:          rp.Amount,
		PeriodMonths:    rp.PeriodMonths,
		FirstOccurrence: rp.FirstPaymentDate,
	}
}

// Validate reports failures as recurrence.InvalidScheduleError.
func (rp RecurringPayment) Validate() error {
	if err := required("recurring payment", map[string]string{
		"account_id": rp.AccountID,
		"contact_id": rp.ContactID,
		"deal_id":    rp.DealID,
	}); err != nil {
		return err
	}
	return rp.Schedule().Validate()
}

// Schedules projects recurring payments onto the planner.
func Schedules(rps []RecurringPayment) []recurrence.PaymentSchedule {
	out := make([]recurrence.PaymentSchedule, len(rps))
	for i, rp := range rps {
		out[i] = rp.Schedule()
	}
	return out
}

// =============================================================================
// TASK
// =============================================================================

type TaskPriority string

const (
	PriorityLow  TaskPriority = "Low"
	PriorityMed  TaskPriority = "Med"
	PriorityHigh TaskPriority = "High"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "In-Progress"
	TaskCompleted  TaskStatus = "Completed"
)

type Task struct {
	ID          string        `db:"id" json:"id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description,omitempty"`
	DueDate     calendar.Date `db:"due_date" json:"due_date"`
	Priority    TaskPriority  `db:"priority" json:"priority"`
	Status      TaskStatus    `db:"status" json:"status"`
	AssignedBy  string        `db:"assigned_by" json:"assigned_by,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("task", "title", "is required")
	}
	switch t.Priority {
	case PriorityLow, PriorityMed, PriorityHigh:
	default:
		return invalid("task", "priority", "must be Low, Med or High")
	}
	switch t.Status {
	case TaskPending, TaskInProgress, TaskCompleted:
	default:
		return invalid("task", "status", "must be Pending, In-Progress or Completed")
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// required checks fields in a fixed order so the reported field is stable.
func required(kind string, fields map[string]string) error {
	for _, name := range requiredOrder {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			return invalid(kind, name, "is required")
		}
	}
	return nil
}

var requiredOrder = []string{
	"owner_id", "name", "title", "type", "industry",
	"billing_street", "billing_city", "billing_state", "billing_code", "billing_country",
	"company", "account_id", "contact_id", "deal_id", "phone",
}

func validEmail(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}
