/*
dto.go - Response shapes that are not stored records

Records are read from and written as their crm types; the server owns id,
created_at and the joined *_name fields, whatever a request body says.
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/crm-engine/calendar"
	"github.com/warp/crm-engine/crm"
)

type HealthResponse struct {
	Status string        `json:"status"`
	Today  calendar.Date `json:"today"`
}

// RecurringPaymentView adds the next due date, computed for today.
type RecurringPaymentView struct {
	crm.RecurringPayment
	NextPaymentDate calendar.Date `json:"next_payment_date"`
}

// DashboardResponse is the dashboard plus the month its next-month figures
// cover.
type DashboardResponse struct {
	crm.Dashboard
	Today          calendar.Date `json:"today"`
	Scope          string        `json:"scope"`
	NextMonthStart calendar.Date `json:"next_month_start"`
	NextMonthEnd   calendar.Date `json:"next_month_end"` // exclusive
}

// UpcomingPayment is one occurrence on the payments board.
type UpcomingPayment struct {
	ScheduleID   string          `json:"recurring_payment_id"`
	AccountName  string          `json:"account_name"`
	ContactName  string          `json:"contact_name"`
	DealName     string          `json:"deal_name"`
	Amount       decimal.Decimal `json:"amount"`
	PeriodMonths int             `json:"period_months"`
	Date         calendar.Date   `json:"date"`
	Index        int             `json:"index"`
}

// UpcomingMonth is one column of the payments board.
type UpcomingMonth struct {
	Month    string            `json:"month"` // YYYY-MM
	Start    calendar.Date     `json:"start"`
	End      calendar.Date     `json:"end"` // exclusive
	Total    decimal.Decimal   `json:"total"`
	Payments []UpcomingPayment `json:"payments"`
}

type UpcomingResponse struct {
	Today  calendar.Date   `json:"today"`
	Months int             `json:"months"`
	Board  []UpcomingMonth `json:"board"`
}
