package routing

import (
	"testing"
	"time"

	"careflow/presence"
	"careflow/request"
)

func strPtr(s string) *string { return &s }

func snapshot(base time.Time) []request.Request {
	return []request.Request{
		{ID: "unclaimed", Category: request.CategoryWater, Urgency: request.UrgencyNormal, Status: request.StatusPending, CreatedAt: base},
		{ID: "mine", Category: request.CategoryFood, Urgency: request.UrgencyHigh, Status: request.StatusAccepted, AcceptedBy: strPtr("c1"), CreatedAt: base.Add(time.Minute)},
		{ID: "theirs", Category: request.CategoryHelp, Urgency: request.UrgencyHigh, Status: request.StatusAccepted, AcceptedBy: strPtr("c2"), CreatedAt: base.Add(2 * time.Minute)},
		{ID: "done", Category: request.CategoryBathroom, Urgency: request.UrgencyHigh, Status: request.StatusCompleted, AcceptedBy: strPtr("c1"), CompletedBy: strPtr("c1"), CreatedAt: base.Add(3 * time.Minute)},
	}
}

func TestVisibleTo_ResponderOnShift(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	records := []presence.Record{
		{ResponderID: "c1", OnShift: true},
		{ResponderID: "c2", OnShift: false},
	}

	view := VisibleTo(RoleResponder, "c1", snapshot(base), records)

	if view.FallbackActive {
		t.Fatal("on-shift responder must not trip fallback")
	}
	wantActive := []string{"mine", "unclaimed"}
	if len(view.Active) != len(wantActive) {
		t.Fatalf("active: expected %d got %d", len(wantActive), len(view.Active))
	}
	for i, id := range wantActive {
		if view.Active[i].ID != id {
			t.Errorf("active[%d]: expected %s got %s", i, id, view.Active[i].ID)
		}
	}
	if len(view.Pending) != 1 || view.Pending[0].ID != "theirs" {
		t.Fatalf("pending: expected [theirs], got %+v", view.Pending)
	}
}

func TestVisibleTo_OffShiftResponderSeesNothing(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	records := []presence.Record{{ResponderID: "c1", OnShift: false}}

	view := VisibleTo(RoleResponder, "c1", snapshot(base), records)

	if len(view.Active) != 0 || len(view.Pending) != 0 {
		t.Fatalf("off-shift views must be empty, got %d/%d", len(view.Active), len(view.Pending))
	}
	if !view.FallbackActive {
		t.Fatal("expected fallback flag for off-shift responder")
	}

	// No presence record at all behaves like off shift.
	view = VisibleTo(RoleResponder, "ghost", snapshot(base), records)
	if len(view.Active) != 0 || !view.FallbackActive {
		t.Fatal("unknown responder must be treated as off shift")
	}
}

func TestVisibleTo_OverseerNeverGated(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	view := VisibleTo(RoleOverseer, "g1", snapshot(base), nil)

	if view.FallbackActive {
		t.Fatal("overseer must never trip fallback")
	}
	if view.AnyResponderOnShift {
		t.Fatal("no records means nobody on shift")
	}
	if len(view.Active) != 1 || view.Active[0].ID != "unclaimed" {
		t.Fatalf("overseer active: expected [unclaimed], got %+v", view.Active)
	}
	if len(view.Pending) != 2 {
		t.Fatalf("overseer pending: expected 2, got %d", len(view.Pending))
	}

	records := []presence.Record{{ResponderID: "c1", OnShift: true}}
	view = VisibleTo(RoleOverseer, "g1", snapshot(base), records)
	if !view.AnyResponderOnShift {
		t.Fatal("expected AnyResponderOnShift with c1 on shift")
	}
}

func TestVisibleTo_EmergencyPinnedAcrossViews(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	reqs := append(snapshot(base), request.Request{
		ID:       "em",
		Category: request.CategoryEmergency,
		Urgency:  request.UrgencyEmergency,
		Status:   request.StatusPending,
		// Oldest row in the snapshot; still pinned first.
		CreatedAt: base.Add(-time.Hour),
	})
	records := []presence.Record{{ResponderID: "c1", OnShift: true}}

	view := VisibleTo(RoleResponder, "c1", reqs, records)
	if len(view.Active) == 0 || view.Active[0].ID != "em" {
		t.Fatalf("expected emergency first in active, got %+v", view.Active)
	}
}
