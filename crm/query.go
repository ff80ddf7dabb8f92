package crm

import (
	"sort"
	"strings"

	"github.com/warp/crm-engine/calendar"
)

// Query holds listing options. The zero value lists everything in the
// store's default order.
type Query struct {
	// Owners is honoured only when OwnersSet is true. An empty set with
	// OwnersSet matches nothing.
	Owners    []string
	OwnersSet bool

	Sort  string // column name, checked by the store against a whitelist
	Order string // "asc" or "desc"

	// From and To bound the due date (deals, tasks) or the first payment date
	// (recurring payments), both inclusive. Zero means unbounded.
	From calendar.Date
	To   calendar.Date
}

// WithOwners narrows q to owners. When q already has an owner filter the
// result is the intersection of both.
func (q Query) WithOwners(owners []string) Query {
	next := q
	next.OwnersSet = true
	if !q.OwnersSet {
		next.Owners = dedupe(owners)
		return next
	}

	allowed := make(map[string]bool, len(owners))
	for _, o := range owners {
		allowed[o] = true
	}
	next.Owners = nil
	for _, o := range q.Owners {
		if allowed[o] {
			next.Owners = append(next.Owners, o)
		}
	}
	next.Owners = dedupe(next.Owners)
	return next
}

// MatchesNothing is true when the owner filter is set but empty.
func (q Query) MatchesNothing() bool {
	return q.OwnersSet && len(q.Owners) == 0
}

// Descending normalises Order; anything but "desc" sorts ascending.
func (q Query) Descending() bool {
	return strings.EqualFold(strings.TrimSpace(q.Order), "desc")
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
