package request

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestService_CreateDerivesUrgency(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil).
		WithIDGenerator(func() string { return "req-1" }).
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) })

	cases := []struct {
		category Category
		want     Urgency
	}{
		{CategoryWater, UrgencyNormal},
		{CategoryFood, UrgencyHigh},
		{CategoryBathroom, UrgencyHigh},
		{CategoryHelp, UrgencyHigh},
		{CategoryEmergency, UrgencyEmergency},
	}

	for _, tc := range cases {
		repo.reset()
		created, err := svc.Create(context.Background(), CreateParams{Category: tc.category, CreatedBy: "r1"})
		if err != nil {
			t.Fatalf("create %s: %v", tc.category, err)
		}
		if created.Urgency != tc.want {
			t.Errorf("category %s: expected urgency %s got %s", tc.category, tc.want, created.Urgency)
		}
		if created.Status != StatusPending {
			t.Errorf("category %s: expected pending, got %s", tc.category, created.Status)
		}
	}
}

func TestService_CreateUnknownCategory(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateParams{Category: Category("massage"), CreatedBy: "r1"})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("expected no write for unknown category")
	}
}

func TestService_CreateDuplicateActive(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, notifier)

	if _, err := svc.Create(context.Background(), CreateParams{Category: CategoryFood, CreatedBy: "r1"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected 1 dispatch, got %d", notifier.calls)
	}

	_, err := svc.Create(context.Background(), CreateParams{Category: CategoryFood, CreatedBy: "r1"})
	if !errors.Is(err, ErrDuplicateActive) {
		t.Fatalf("expected ErrDuplicateActive, got %v", err)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected no dispatch for rejected create, got %d", notifier.calls)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected store unchanged, got %d rows", len(repo.created))
	}
}

func TestService_CreateSurvivesDispatchFailure(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{err: errors.New("push gateway down")}
	svc := NewService(repo, notifier)

	created, err := svc.Create(context.Background(), CreateParams{Category: CategoryWater, CreatedBy: "r1"})
	if err != nil {
		t.Fatalf("create must succeed despite dispatch failure, got %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected created request")
	}
}

func TestService_AcceptConflicts(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	created, err := svc.Create(context.Background(), CreateParams{Category: CategoryHelp, CreatedBy: "r1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	accepted, err := svc.Accept(context.Background(), created.ID, "c1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusAccepted || !accepted.AcceptedByActor("c1") {
		t.Fatalf("unexpected accepted state: %+v", accepted)
	}

	if _, err := svc.Accept(context.Background(), created.ID, "c2"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed for loser, got %v", err)
	}
	if got, _ := repo.GetByID(context.Background(), created.ID); !got.AcceptedByActor("c1") {
		t.Fatalf("loser overwrote winner: %+v", got.AcceptedBy)
	}

	if _, err := svc.Accept(context.Background(), "missing", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_CompleteRules(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, _ := svc.Create(ctx, CreateParams{Category: CategoryBathroom, CreatedBy: "r1"})

	if _, err := svc.Complete(ctx, created.ID, "c1"); !errors.Is(err, ErrNotAccepted) {
		t.Fatalf("expected ErrNotAccepted while pending, got %v", err)
	}

	if _, err := svc.Accept(ctx, created.ID, "c1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Overseer closing a responder's claim is legal.
	completed, err := svc.Complete(ctx, created.ID, "g1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.CompletedBy == nil || *completed.CompletedBy != "g1" {
		t.Fatalf("expected completed_by g1, got %v", completed.CompletedBy)
	}
	if completed.AcceptedBy == nil || *completed.AcceptedBy != "c1" {
		t.Fatalf("accepted_by must survive completion, got %v", completed.AcceptedBy)
	}

	if _, err := svc.Complete(ctx, created.ID, "g1"); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if _, err := svc.Accept(ctx, created.ID, "c2"); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted on accept after completion, got %v", err)
	}
}

func TestService_SurfaceEmergencies(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	em, _ := svc.Create(ctx, CreateParams{Category: CategoryEmergency, CreatedBy: "r1"})
	water, _ := svc.Create(ctx, CreateParams{Category: CategoryWater, CreatedBy: "r1"})

	visible := []Request{em, water}
	claimed, err := svc.SurfaceEmergencies(ctx, "c1", visible)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != em.ID {
		t.Fatalf("expected only the emergency claimed, got %+v", claimed)
	}
	if !claimed[0].AcceptedByActor("c1") {
		t.Fatalf("expected claim by c1, got %v", claimed[0].AcceptedBy)
	}

	// A second viewer loses the race silently.
	again, err := svc.SurfaceEmergencies(ctx, "c2", []Request{em})
	if err != nil {
		t.Fatalf("surface after claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no claims for second viewer, got %d", len(again))
	}
	if got, _ := repo.GetByID(ctx, em.ID); !got.AcceptedByActor("c1") {
		t.Fatalf("second viewer overwrote claim: %v", got.AcceptedBy)
	}

	if got, _ := repo.GetByID(ctx, water.ID); got.Status != StatusPending {
		t.Fatalf("non-emergency must stay pending, got %s", got.Status)
	}
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Dispatch(_ context.Context, _ Request) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

// fakeRepo mimics the conditional-update semantics of the Postgres
// repository against an in-memory map.
type fakeRepo struct {
	created map[string]*Request
	seq     int
	now     time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		created: make(map[string]*Request),
		now:     time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepo) reset() {
	f.created = make(map[string]*Request)
}

func (f *fakeRepo) tick() time.Time {
	f.seq++
	return f.now.Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeRepo) Create(_ context.Context, req Request) (Request, error) {
	for _, existing := range f.created {
		if existing.Category == req.Category && existing.Active() {
			return Request{}, ErrDuplicateActive
		}
	}
	req.CreatedAt = f.tick()
	f.created[req.ID] = &req
	return req, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (Request, error) {
	req, ok := f.created[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *req, nil
}

func (f *fakeRepo) ListSnapshot(_ context.Context) ([]Request, error) {
	out := make([]Request, 0, len(f.created))
	for _, req := range f.created {
		out = append(out, *req)
	}
	return out, nil
}

func (f *fakeRepo) ListHistory(_ context.Context, actorID string) ([]Request, error) {
	snap, _ := f.ListSnapshot(context.Background())
	return History(snap, actorID), nil
}

func (f *fakeRepo) Accept(_ context.Context, id, actorID string) (Request, error) {
	req, ok := f.created[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	switch req.Status {
	case StatusCompleted:
		return Request{}, ErrAlreadyCompleted
	case StatusAccepted:
		return Request{}, ErrAlreadyClaimed
	}
	at := f.tick()
	req.Status = StatusAccepted
	req.AcceptedBy = &actorID
	req.AcceptedAt = &at
	return *req, nil
}

func (f *fakeRepo) Complete(_ context.Context, id, actorID string) (Request, error) {
	req, ok := f.created[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	switch req.Status {
	case StatusCompleted:
		return Request{}, ErrAlreadyCompleted
	case StatusPending:
		return Request{}, ErrNotAccepted
	}
	at := f.tick()
	req.Status = StatusCompleted
	req.CompletedBy = &actorID
	req.CompletedAt = &at
	return *req, nil
}

func (f *fakeRepo) ActiveExists(_ context.Context, category Category) (bool, error) {
	for _, req := range f.created {
		if req.Category == category && req.Active() {
			return true, nil
		}
	}
	return false, nil
}
