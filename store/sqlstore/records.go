package sqlstore

import (
	"context"
	"fmt"

	"github.com/warp/crm-engine/crm"
)

// =============================================================================
// TABLE DEFINITIONS
// =============================================================================

var (
	usersTable = table{
		name:      "users",
		columns:   []string{"id", "name", "email", "role", "emp_code", "manager_emp_code", "created_at"},
		selectSQL: "SELECT x.id, x.name, x.email, x.role, x.emp_code, x.manager_emp_code, x.created_at FROM users x",
		sorts: map[string]string{
			"name":       "x.name",
			"email":      "x.email",
			"role":       "x.role",
			"created_at": "x.created_at",
		},
		sortBy: "name",
	}

	accountsTable = table{
		name: "accounts",
		columns: []string{"id", "owner_id", "name", "type", "industry",
			"billing_street", "billing_city", "billing_state", "billing_code", "billing_country", "created_at"},
		selectSQL: `SELECT x.id, x.owner_id, x.name, x.type, x.industry, x.billing_street, x.billing_city,
			x.billing_state, x.billing_code, x.billing_country, x.created_at FROM accounts x`,
		owned: true,
		sorts: map[string]string{
			"name":       "x.name",
			"type":       "x.type",
			"industry":   "x.industry",
			"created_at": "x.created_at",
		},
		sortBy: "created_at",
	}

	contactsTable = table{
		name:      "contacts",
		columns:   []string{"id", "owner_id", "name", "company", "email", "phone", "created_at"},
		selectSQL: "SELECT x.id, x.owner_id, x.name, x.company, x.email, x.phone, x.created_at FROM contacts x",
		owned:     true,
		sorts: map[string]string{
			"name":       "x.name",
			"company":    "x.company",
			"email":      "x.email",
			"created_at": "x.created_at",
		},
		sortBy: "created_at",
	}

	leadsTable = table{
		name:    "leads",
		columns: []string{"id", "owner_id", "name", "company", "email", "phone", "status", "description", "created_at"},
		selectSQL: `SELECT x.id, x.owner_id, x.name, x.company, x.email, x.phone, x.status,
			x.description, x.created_at FROM leads x`,
		owned: true,
		sorts: map[string]string{
			"name":       "x.name",
			"company":    "x.company",
			"status":     "x.status",
			"created_at": "x.created_at",
		},
		sortBy: "created_at",
	}

	dealsTable = table{
		name:    "deals",
		columns: []string{"id", "owner_id", "name", "account_id", "contact_id", "amount", "due_date", "probability", "created_at"},
		selectSQL: `SELECT x.id, x.owner_id, x.name, x.account_id, x.contact_id, x.amount, x.due_date,
			x.probability, x.created_at FROM deals x`,
		owned:      true,
		dateColumn: "due_date",
		sorts: map[string]string{
			"name":        "x.name",
			"amount":      "CAST(x.amount AS NUMERIC)",
			"due_date":    "x.due_date",
			"probability": "x.probability",
			"created_at":  "x.created_at",
		},
		sortBy: "created_at",
	}

	recurringPaymentsTable = table{
		name:    "recurring_payments",
		columns: []string{"id", "account_id", "contact_id", "deal_id", "amount", "period_months", "first_payment_date", "created_at"},
		selectSQL: `SELECT x.id, x.account_id, x.contact_id, x.deal_id, x.amount, x.period_months,
			x.first_payment_date, x.created_at,
			COALESCE(a.name, '') AS account_name,
			COALESCE(c.name, '') AS contact_name,
			COALESCE(d.name, '') AS deal_name
		FROM recurring_payments x
		LEFT JOIN accounts a ON a.id = x.account_id
		LEFT JOIN contacts c ON c.id = x.contact_id
		LEFT JOIN deals d ON d.id = x.deal_id`,
		dateColumn: "first_payment_date",
		sorts: map[string]string{
			"amount":             "CAST(x.amount AS NUMERIC)",
			"period_months":      "x.period_months",
			"first_payment_date": "x.first_payment_date",
			"account_name":       "a.name",
			"created_at":         "x.created_at",
		},
		sortBy: "created_at",
	}

	tasksTable = table{
		name:    "tasks",
		columns: []string{"id", "title", "description", "due_date", "priority", "status", "assigned_by", "created_at"},
		selectSQL: `SELECT x.id, x.title, x.description, x.due_date, x.priority, x.status,
			x.assigned_by, x.created_at FROM tasks x`,
		dateColumn: "due_date",
		sorts: map[string]string{
			"title":      "x.title",
			"due_date":   "x.due_date",
			"priority":   "x.priority",
			"status":     "x.status",
			"created_at": "x.created_at",
		},
		sortBy: "created_at",
	}
)

// =============================================================================
// USER STORE
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u crm.User) error {
	return insert(ctx, s.db, usersTable, u)
}

func (s *Store) GetUser(ctx context.Context, id string) (crm.User, error) {
	return get[crm.User](ctx, s.db, usersTable, id)
}

func (s *Store) UpdateUser(ctx context.Context, u crm.User) error {
	return update(ctx, s.db, usersTable, u)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return remove(ctx, s.db, usersTable, id)
}

// ListUsers ignores the owner filter: the directory is never scoped.
func (s *Store) ListUsers(ctx context.Context, q crm.Query) ([]crm.User, error) {
	return list[crm.User](ctx, s.db, usersTable, q)
}

// CreateFirstUser inserts u only while the users table is empty, and returns
// ErrConflict otherwise. The count and the insert share one transaction; on
// PostgreSQL the table is locked so two bootstraps cannot both see it empty.
func (s *Store) CreateFirstUser(ctx context.Context, u crm.User) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin first user: %w", err)
	}
	defer tx.Rollback()

	if s.db.DriverName() == "postgres" {
		if _, err := tx.ExecContext(ctx, "LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE"); err != nil {
			return fmt.Errorf("lock users: %w", err)
		}
	}

	var n int
	if err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM users"); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("insert first user: %w", crm.ErrConflict)
	}
	if _, err := tx.NamedExecContext(ctx, usersTable.insertSQL(), u); err != nil {
		return translate("insert into users", err)
	}
	return tx.Commit()
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a crm.Account) error {
	return insert(ctx, s.db, accountsTable, a)
}

func (s *Store) GetAccount(ctx context.Context, id string) (crm.Account, error) {
	return get[crm.Account](ctx, s.db, accountsTable, id)
}

func (s *Store) UpdateAccount(ctx context.Context, a crm.Account) error {
	return update(ctx, s.db, accountsTable, a)
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return remove(ctx, s.db, accountsTable, id)
}

func (s *Store) ListAccounts(ctx context.Context, q crm.Query) ([]crm.Account, error) {
	return list[crm.Account](ctx, s.db, accountsTable, q)
}

// =============================================================================
// CONTACT STORE
// =============================================================================

func (s *Store) CreateContact(ctx context.Context, c crm.Contact) error {
	return insert(ctx, s.db, contactsTable, c)
}

func (s *Store) GetContact(ctx context.Context, id string) (crm.Contact, error) {
	return get[crm.Contact](ctx, s.db, contactsTable, id)
}

func (s *Store) UpdateContact(ctx context.Context, c crm.Contact) error {
	return update(ctx, s.db, contactsTable, c)
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	return remove(ctx, s.db, contactsTable, id)
}

func (s *Store) ListContacts(ctx context.Context, q crm.Query) ([]crm.Contact, error) {
	return list[crm.Contact](ctx, s.db, contactsTable, q)
}

// =============================================================================
// LEAD STORE
// =============================================================================

func (s *Store) CreateLead(ctx context.Context, l crm.Lead) error {
	return insert(ctx, s.db, leadsTable, l)
}

func (s *Store) GetLead(ctx context.Context, id string) (crm.Lead, error) {
	return get[crm.Lead](ctx, s.db, leadsTable, id)
}

func (s *Store) UpdateLead(ctx context.Context, l crm.Lead) error {
	return update(ctx, s.db, leadsTable, l)
}

func (s *Store) DeleteLead(ctx context.Context, id string) error {
	return remove(ctx, s.db, leadsTable, id)
}

func (s *Store) ListLeads(ctx context.Context, q crm.Query) ([]crm.Lead, error) {
	return list[crm.Lead](ctx, s.db, leadsTable, q)
}

// =============================================================================
// DEAL STORE
// =============================================================================

func (s *Store) CreateDeal(ctx context.Context, d crm.Deal) error {
	return insert(ctx, s.db, dealsTable, d)
}

func (s *Store) GetDeal(ctx context.Context, id string) (crm.Deal, error) {
	return get[crm.Deal](ctx, s.db, dealsTable, id)
}

func (s *Store) UpdateDeal(ctx context.Context, d crm.Deal) error {
	return update(ctx, s.db, dealsTable, d)
}

func (s *Store) DeleteDeal(ctx context.Context, id string) error {
	return remove(ctx, s.db, dealsTable, id)
}

func (s *Store) ListDeals(ctx context.Context, q crm.Query) ([]crm.Deal, error) {
	return list[crm.Deal](ctx, s.db, dealsTable, q)
}

// =============================================================================
// RECURRING PAYMENT STORE
// =============================================================================

func (s *Store) CreateRecurringPayment(ctx context.Context, rp crm.RecurringPayment) error {
	return insert(ctx, s.db, recurringPaymentsTable, rp)
}

func (s *Store) GetRecurringPayment(ctx context.Context, id string) (crm.RecurringPayment, error) {
	return get[crm.RecurringPayment](ctx, s.db, recurringPaymentsTable, id)
}

func (s *Store) UpdateRecurringPayment(ctx context.Context, rp crm.RecurringPayment) error {
	return update(ctx, s.db, recurringPaymentsTable, rp)
}

func (s *Store) DeleteRecurringPayment(ctx context.Context, id string) error {
	return remove(ctx, s.db, recurringPaymentsTable, id)
}

func (s *Store) ListRecurringPayments(ctx context.Context, q crm.Query) ([]crm.RecurringPayment, error) {
	return list[crm.RecurringPayment](ctx, s.db, recurringPaymentsTable, q)
}

// =============================================================================
// TASK STORE
// =============================================================================

func (s *Store) CreateTask(ctx context.Context, t crm.Task) error {
	return insert(ctx, s.db, tasksTable, t)
}

func (s *Store) GetTask(ctx context.Context, id string) (crm.Task, error) {
	return get[crm.Task](ctx, s.db, tasksTable, id)
}

func (s *Store) UpdateTask(ctx context.Context, t crm.Task) error {
	return update(ctx, s.db, tasksTable, t)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return remove(ctx, s.db, tasksTable, id)
}

func (s *Store) ListTasks(ctx context.Context, q crm.Query) ([]crm.Task, error) {
	return list[crm.Task](ctx, s.db, tasksTable, q)
}
