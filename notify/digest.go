/*
Package notify delivers reminder digests.

PURPOSE:
  The reminder sweep collects every recurring payment that needs a reminder
  today into one Digest and hands it to a Notifier. Delivery is pluggable:
  the log notifier writes the digest through zerolog, the AMQP notifier
  publishes it as JSON for a mail worker downstream.

SEE ALSO:
  - reminder/job.go: builds digests
*/
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/crm-engine/calendar"
)

// Notifier sends one digest. Implementations must be safe for use by a
// single sweep at a time; the scheduler never overlaps sweeps.
type Notifier interface {
	Notify(ctx context.Context, d Digest) error
}

// Item is one payment in a digest.
type Item struct {
	ScheduleID      string          `json:"schedule_id"`
	AccountName     string          `json:"account_name"`
	ContactName     string          `json:"contact_name"`
	DealName        string          `json:"deal_name"`
	Amount          decimal.Decimal `json:"amount"`
	PeriodMonths    int             `json:"period_months"`
	NextPaymentDate calendar.Date   `json:"next_payment_date"`
}

// Digest is the reminder for one sweep. Target is set in due-on mode only;
// in window mode each item carries its own date.
type Digest struct {
	Today        calendar.Date `json:"today"`
	Target       calendar.Date `json:"target"`
	Mode         string        `json:"mode"`
	WindowMonths int           `json:"window_months"`
	Recipient    string        `json:"recipient"`
	Items        []Item        `json:"items"`
}

// Subject is the one-line summary used as mail subject and log message.
func (d Digest) Subject() string {
	return fmt.Sprintf("Reminder: %d recurring payment(s) due in %d month(s)", len(d.Items), d.WindowMonths)
}

// Text renders the digest as a plain-text table.
func (d Digest) Text() string {
	var b strings.Builder
	if d.Target.IsZero() {
		fmt.Fprintf(&b, "You have %d recurring payment(s) coming up.\n\n", len(d.Items))
	} else {
		fmt.Fprintf(&b, "You have %d recurring payment(s) coming up on %s.\n\n", len(d.Items), d.Target)
	}
	for _, it := range d.Items {
		fmt.Fprintf(&b, "- %s / %s / %s: %s every %d month(s), next on %s\n",
			it.AccountName, it.ContactName, it.DealName,
			it.Amount.StringFixed(2), it.PeriodMonths, it.NextPaymentDate)
	}
	return b.String()
}
