// Package routing decides which requests each viewing actor sees and who
// currently bears operational responsibility. It is a pure function over a
// request snapshot and the presence records; it never writes.
package routing

import (
	"careflow/presence"
	"careflow/request"
)

// Role is the kind of actor a view is computed for.
type Role string

const (
	RoleResponder Role = "responder"
	RoleOverseer  Role = "overseer"
)

// View is the per-actor split of the live snapshot.
//
// Active holds ranked non-completed requests that are unclaimed or claimed
// by the viewing actor. Pending holds ranked non-completed requests claimed
// by someone else. FallbackActive is set when the viewing responder is off
// shift and their lists have been forced empty. AnyResponderOnShift tells an
// overseer whether they are currently the sole effective responder.
type View struct {
	Active              []request.Request
	Pending             []request.Request
	FallbackActive      bool
	AnyResponderOnShift bool
}

// VisibleTo computes the view for one actor. Off-shift responders see
// nothing; overseers are never gated by shift.
func VisibleTo(role Role, actorID string, reqs []request.Request, records []presence.Record) View {
	view := View{
		AnyResponderOnShift: anyOnShift(records),
	}

	if role == RoleResponder && !onShift(records, actorID) {
		view.FallbackActive = true
		view.Active = []request.Request{}
		view.Pending = []request.Request{}
		return view
	}

	ranked := request.Rank(reqs)
	view.Active = make([]request.Request, 0, len(ranked))
	view.Pending = make([]request.Request, 0, len(ranked))
	for _, r := range ranked {
		if r.Status == request.StatusPending || r.AcceptedByActor(actorID) {
			view.Active = append(view.Active, r)
		} else {
			view.Pending = append(view.Pending, r)
		}
	}
	return view
}

func onShift(records []presence.Record, responderID string) bool {
	for _, rec := range records {
		if rec.ResponderID == responderID {
			return rec.OnShift
		}
	}
	return false
}

func anyOnShift(records []presence.Record) bool {
	for _, rec := range records {
		if rec.OnShift {
			return true
		}
	}
	return false
}
