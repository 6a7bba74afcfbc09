package job

import (
	"scrapeflow/model"
)

// EffectivePlan is the master plan reduced to the task identifiers a caller
// actually enqueued, in caller-determined intra-group order.
type EffectivePlan []model.Group

// filterPlan derives the effective plan. Master plan groups are visited in
// their given order; within each group the enqueued identifiers are matched
// in enqueue order, so the caller's order wins over the group's internal
// order. Duplicate enqueues duplicate the matched spec. Groups left with no
// surviving spec are dropped entirely, never kept as empty placeholders.
// Identifiers absent from the master plan contribute nothing.
func filterPlan(master *model.Plan, enqueued []string) EffectivePlan {
	var out EffectivePlan
	if master == nil {
		return out
	}
	for _, group := range master.Groups {
		var filtered model.Group
		for _, id := range enqueued {
			if spec := group.Lookup(id); spec != nil {
				filtered = append(filtered, spec)
			}
		}
		if len(filtered) > 0 {
			out = append(out, filtered)
		}
	}
	return out
}
