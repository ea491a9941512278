package repository

import (
	"fmt"
	"sort"
)

// tenantTables maps every hall-scoped table to the tables its foreign keys
// reference.  Deleting a hall walks this graph children first.
var tenantTables = map[string][]string{
	"halls":          nil,
	"hall_blocks":    {"halls"},
	"users":          {"halls"},
	"admins":         {"users"},
	"refresh_tokens": {"users"},
	"peak_hours":     {"halls"},
	"bookings":       {"halls"},
	"billings":       {"bookings"},
	"charges":        {"bookings"},
	"cancels":        {"bookings"},
	"expenses":       {"halls"},
	"incomes":        {"halls"},
	"app_payments":   {"halls"},
}

var cascadePlan = mustDeleteOrder(tenantTables)

// CascadePlan returns the order in which tenant tables are emptied when a
// hall is deleted.  Every table comes after all tables that reference it, so
// "halls" is always last.
func CascadePlan() []string {
	out := make([]string, len(cascadePlan))
	copy(out, cascadePlan)
	return out
}

// deleteOrder topologically sorts deps so referencing tables precede the
// tables they reference.  Ties break alphabetically to keep the plan stable.
func deleteOrder(deps map[string][]string) ([]string, error) {
	refs := make(map[string]int, len(deps))
	for t, parents := range deps {
		if _, ok := refs[t]; !ok {
			refs[t] = 0
		}
		for _, p := range parents {
			if _, ok := deps[p]; !ok {
				return nil, fmt.Errorf("table %s references unknown table %s", t, p)
			}
			refs[p]++
		}
	}

	var ready []string
	for t, n := range refs {
		if n == 0 {
			ready = append(ready, t)
		}
	}
	sort.Strings(ready)

	out := make([]string, 0, len(refs))
	for len(ready) > 0 {
		t := ready[0]
		ready = ready[1:]
		out = append(out, t)
		for _, p := range deps[t] {
			refs[p]--
			if refs[p] == 0 {
				ready = append(ready, p)
			}
		}
		sort.Strings(ready)
	}
	if len(out) != len(refs) {
		return nil, fmt.Errorf("table dependencies contain a cycle")
	}
	return out, nil
}

func mustDeleteOrder(deps map[string][]string) []string {
	order, err := deleteOrder(deps)
	if err != nil {
		panic(err)
	}
	return order
}
