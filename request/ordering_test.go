package request

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestRank_EmergencyPinnedNewestFirst(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	reqs := []Request{
		{ID: "water-1", Category: CategoryWater, Urgency: UrgencyNormal, Status: StatusPending, CreatedAt: base.Add(3 * time.Minute)},
		{ID: "em-old", Category: CategoryEmergency, Urgency: UrgencyEmergency, Status: StatusPending, CreatedAt: base},
		{ID: "food-1", Category: CategoryFood, Urgency: UrgencyHigh, Status: StatusAccepted, CreatedAt: base.Add(5 * time.Minute), AcceptedBy: strPtr("c1")},
		{ID: "done-1", Category: CategoryHelp, Urgency: UrgencyHigh, Status: StatusCompleted, CreatedAt: base.Add(1 * time.Minute), AcceptedBy: strPtr("c1"), CompletedBy: strPtr("c1"), CompletedAt: timePtr(base.Add(2 * time.Minute))},
	}

	got := Rank(reqs)

	wantOrder := []string{"em-old", "food-1", "water-1"}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d requests, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s got %s", i, id, got[i].ID)
		}
	}
}

func TestRank_MultipleEmergenciesMostRecentFirst(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	reqs := []Request{
		{ID: "em-a", Urgency: UrgencyEmergency, Status: StatusPending, CreatedAt: base},
		{ID: "em-b", Urgency: UrgencyEmergency, Status: StatusAccepted, CreatedAt: base.Add(time.Minute), AcceptedBy: strPtr("c1")},
	}

	got := Rank(reqs)
	if got[0].ID != "em-b" || got[1].ID != "em-a" {
		t.Fatalf("expected em-b before em-a, got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestRank_DeterministicAndIdempotent(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// Identical timestamps: order must fall back to id and stay total.
	reqs := []Request{
		{ID: "b", Urgency: UrgencyHigh, Status: StatusPending, CreatedAt: base},
		{ID: "a", Urgency: UrgencyHigh, Status: StatusPending, CreatedAt: base},
		{ID: "c", Urgency: UrgencyHigh, Status: StatusPending, CreatedAt: base},
	}
	reversed := []Request{reqs[2], reqs[1], reqs[0]}

	first := Rank(reqs)
	second := Rank(first)
	other := Rank(reversed)

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("rank not idempotent at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if first[i].ID != other[i].ID {
			t.Fatalf("rank depends on input order at %d: %s vs %s", i, first[i].ID, other[i].ID)
		}
	}
	if first[0].ID != "c" || first[1].ID != "b" || first[2].ID != "a" {
		t.Fatalf("expected id-descending tie-break, got %s %s %s", first[0].ID, first[1].ID, first[2].ID)
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	reqs := []Request{
		{ID: "a", Urgency: UrgencyNormal, Status: StatusPending, CreatedAt: base},
		{ID: "em", Urgency: UrgencyEmergency, Status: StatusPending, CreatedAt: base},
	}

	Rank(reqs)

	if reqs[0].ID != "a" || reqs[1].ID != "em" {
		t.Fatal("rank mutated its input slice")
	}
}

func TestHistory_FiltersToActorCompletedAtDesc(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	reqs := []Request{
		{ID: "mine-old", Status: StatusCompleted, AcceptedBy: strPtr("c1"), CompletedBy: strPtr("c1"), CompletedAt: timePtr(base)},
		{ID: "mine-new", Status: StatusCompleted, AcceptedBy: strPtr("c1"), CompletedBy: strPtr("g1"), CompletedAt: timePtr(base.Add(time.Hour))},
		{ID: "theirs", Status: StatusCompleted, AcceptedBy: strPtr("c2"), CompletedBy: strPtr("c2"), CompletedAt: timePtr(base.Add(2 * time.Hour))},
		{ID: "open", Status: StatusPending},
	}

	got := History(reqs, "c1")
	if len(got) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(got))
	}
	if got[0].ID != "mine-new" || got[1].ID != "mine-old" {
		t.Fatalf("expected mine-new, mine-old; got %s, %s", got[0].ID, got[1].ID)
	}
}
