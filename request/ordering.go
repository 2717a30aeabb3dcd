package request

import "sort"

// Rank orders a snapshot for the live operational view. Non-completed
// emergency requests are pinned to the front, most recent first; everything
// else follows by createdAt descending. Completed requests are dropped.
// Identical createdAt values break ties by id so the order is total and
// reproducible regardless of input order.
func Rank(reqs []Request) []Request {
	out := make([]Request, 0, len(reqs))
	for _, r := range reqs {
		if r.Status == StatusCompleted {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ei := out[i].Urgency == UrgencyEmergency
		ej := out[j].Urgency == UrgencyEmergency
		if ei != ej {
			return ei
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	return out
}

// History filters a snapshot to the completed requests the actor accepted,
// ordered by completedAt descending.
func History(reqs []Request, actorID string) []Request {
	out := make([]Request, 0, len(reqs))
	for _, r := range reqs {
		if r.Status != StatusCompleted {
			continue
		}
		if !r.AcceptedByActor(actorID) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].CompletedAt, out[j].CompletedAt
		switch {
		case ci == nil:
			return false
		case cj == nil:
			return true
		case !ci.Equal(*cj):
			return ci.After(*cj)
		default:
			return out[i].ID > out[j].ID
		}
	})

	return out
}
