package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes digests to the log. It is the default when no broker
// is configured.
type LogNotifier struct {
	Logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, d Digest) error {
	ev := n.Logger.Info().
		Str("recipient", d.Recipient).
		Str("mode", d.Mode).
		Stringer("today", d.Today).
		Int("count", len(d.Items))
	if !d.Target.IsZero() {
		ev = ev.Stringer("target", d.Target)
	}
	ev.Msg(d.Subject())

	for _, it := range d.Items {
		n.Logger.Info().
			Str("schedule_id", it.ScheduleID).
			Str("account", it.AccountName).
			Str("contact", it.ContactName).
			Str("deal", it.DealName).
			Str("amount", it.Amount.StringFixed(2)).
			Int("period_months", it.PeriodMonths).
			Stringer("next_payment_date", it.NextPaymentDate).
			Msg("recurring payment due")
	}
	return nil
}
