package request

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownCategory rejects creation outside the fixed category set.
var ErrUnknownCategory = errors.New("request: unknown category")

// Notifier fans a newly created request out to eligible responders. Delivery
// is best effort; the returned error aggregates per-recipient failures and is
// logged, never surfaced to the creator.
type Notifier interface {
	Dispatch(ctx context.Context, req Request) (notified int, err error)
}

// Service enforces the request lifecycle: creation behind the duplicate
// guard, claim arbitration, and completion rules.
type Service struct {
	repo     Repository
	notifier Notifier
	idGen    func() string
	now      func() time.Time
}

type CreateParams struct {
	Category  Category
	CreatedBy string
}

func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		idGen:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create raises a new pending request. Urgency is derived from the category
// and fixed for the lifetime of the request. A second active request of the
// same category is rejected before any write. Notification dispatch runs
// after the insert; its failures do not undo the create.
func (s *Service) Create(ctx context.Context, params CreateParams) (Request, error) {
	if params.CreatedBy == "" {
		return Request{}, fmt.Errorf("request: missing creator id")
	}
	urgency, ok := UrgencyFor(params.Category)
	if !ok {
		return Request{}, ErrUnknownCategory
	}

	created, err := s.repo.Create(ctx, Request{
		ID:        s.idGen(),
		Category:  params.Category,
		Urgency:   urgency,
		Status:    StatusPending,
		CreatedBy: params.CreatedBy,
	})
	if err != nil {
		return Request{}, err
	}

	if s.notifier != nil {
		notified, err := s.notifier.Dispatch(ctx, created)
		if err != nil {
			log.Printf("request %s: dispatch errors (notified %d): %v", created.ID, notified, err)
		}
		if notified == 0 {
			log.Printf("request %s: no responders notified, overseer fallback via live feed", created.ID)
		}
	}

	return created, nil
}

// Accept claims a pending request for actorID. Exactly one of two racing
// acceptors succeeds; the other observes ErrAlreadyClaimed.
func (s *Service) Accept(ctx context.Context, requestID, actorID string) (Request, error) {
	if requestID == "" || actorID == "" {
		return Request{}, fmt.Errorf("request: accept missing ids")
	}
	return s.repo.Accept(ctx, requestID, actorID)
}

// Complete closes an accepted request. Completion is open to any actor, not
// only the claimant.
func (s *Service) Complete(ctx context.Context, requestID, actorID string) (Request, error) {
	if requestID == "" || actorID == "" {
		return Request{}, fmt.Errorf("request: complete missing ids")
	}
	return s.repo.Complete(ctx, requestID, actorID)
}

// Snapshot returns the current full collection, newest first.
func (s *Service) Snapshot(ctx context.Context) ([]Request, error) {
	return s.repo.ListSnapshot(ctx)
}

// HistoryFor returns the completed requests the actor accepted, most
// recently completed first.
func (s *Service) HistoryFor(ctx context.Context, actorID string) ([]Request, error) {
	return s.repo.ListHistory(ctx, actorID)
}

// SurfaceEmergencies claims every pending emergency in the given view on
// behalf of actorID. The caller passes the requests already routed to an
// eligible actor, so surfacing stays separate from rendering. Races between
// viewers resolve through the same conditional accept; losing a claim is not
// an error here.
func (s *Service) SurfaceEmergencies(ctx context.Context, actorID string, visible []Request) ([]Request, error) {
	if actorID == "" {
		return nil, fmt.Errorf("request: surface missing actor id")
	}

	claimed := make([]Request, 0, 1)
	for _, r := range visible {
		if r.Urgency != UrgencyEmergency || r.Status != StatusPending {
			continue
		}
		accepted, err := s.repo.Accept(ctx, r.ID, actorID)
		if err != nil {
			if errors.Is(err, ErrAlreadyClaimed) || errors.Is(err, ErrAlreadyCompleted) || errors.Is(err, ErrNotFound) {
				continue
			}
			return claimed, err
		}
		claimed = append(claimed, accepted)
	}
	return claimed, nil
}
