package crm

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/crm-engine/calendar"
)

// UnknownRep names owners that are not in the user list.
const UnknownRep = "Unknown"

// RepActivity is one row of the leads-vs-deals chart.
type RepActivity struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Leads   int    `json:"leads"`
	Deals   int    `json:"deals"`
}

// Dashboard aggregates the records visible to one user.
type Dashboard struct {
	TotalLeads  int             `json:"total_leads"`
	TotalDeals  int             `json:"total_deals"`
	AvgDealSize decimal.Decimal `json:"avg_deal_size"`
	ActiveReps  int             `json:"active_reps"`

	NextMonth            calendar.Period `json:"-"`
	NextMonthDealsCount  int             `json:"next_month_deals_count"`
	NextMonthDealsAmount decimal.Decimal `json:"next_month_deals_amount"`

	Reps []RepActivity `json:"reps"`
}

// ComputeDashboard expects leads and deals already narrowed to the caller's
// scope. users is only used to name the reps.
func ComputeDashboard(leads []Lead, deals []Deal, users []User, today calendar.Date) Dashboard {
	next := calendar.MonthOf(today).Next()
	dash := Dashboard{
		TotalLeads:           len(leads),
		TotalDeals:           len(deals),
		AvgDealSize:          decimal.Zero,
		NextMonth:            next,
		NextMonthDealsAmount: decimal.Zero,
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	reps := map[string]*RepActivity{}
	rep := func(owner string) *RepActivity {
		r, ok := reps[owner]
		if !ok {
			name, known := names[owner]
			if !known {
				name = UnknownRep
			}
			r = &RepActivity{OwnerID: owner, Name: name}
			reps[owner] = r
		}
		return r
	}

	for _, l := range leads {
		rep(l.OwnerID).Leads++
	}

	total := decimal.Zero
	dealOwners := map[string]bool{}
	for _, d := range deals {
		total = total.Add(d.Amount)
		dealOwners[d.OwnerID] = true
		rep(d.OwnerID).Deals++
		if next.Contains(d.DueDate) {
			dash.NextMonthDealsCount++
			dash.NextMonthDealsAmount = dash.NextMonthDealsAmount.Add(d.Amount)
		}
	}
	if len(deals) > 0 {
		dash.AvgDealSize = total.Div(decimal.NewFromInt(int64(len(deals)))).Round(2)
	}
	dash.ActiveReps = len(dealOwners)

	dash.Reps = make([]RepActivity, 0, len(reps))
	for _, r := range reps {
		dash.Reps = append(dash.Reps, *r)
	}
	sort.Slice(dash.Reps, func(i, j int) bool {
		if dash.Reps[i].Name != dash.Reps[j].Name {
			return dash.Reps[i].Name < dash.Reps[j].Name
		}
		return dash.Reps[i].OwnerID < dash.Reps[j].OwnerID
	})
	return dash
}
