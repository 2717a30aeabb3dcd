package presence

import (
	"context"
	"errors"
	"fmt"
)

// ErrForbidden rejects mutation of a presence record by anyone other than
// its owner.
var ErrForbidden = errors.New("presence: record owned by another responder")

// Store abstracts repository operations for the service.
type Store interface {
	SetShift(ctx context.Context, responderID string, onShift bool) (Record, error)
	RegisterAddress(ctx context.Context, responderID, address string) (Record, error)
	GetByID(ctx context.Context, responderID string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	AnyOnShift(ctx context.Context) (bool, error)
}

// Service guards presence writes: each responder may toggle only their own
// shift and register only their own address.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// SetShift toggles the shift flag for actorID's own record.
func (s *Service) SetShift(ctx context.Context, actorID, responderID string, onShift bool) (Record, error) {
	if responderID == "" {
		return Record{}, fmt.Errorf("presence: missing responder id")
	}
	if actorID != responderID {
		return Record{}, ErrForbidden
	}
	return s.store.SetShift(ctx, responderID, onShift)
}

// RegisterAddress records where actorID's notifications should be sent.
func (s *Service) RegisterAddress(ctx context.Context, actorID, responderID, address string) (Record, error) {
	if responderID == "" {
		return Record{}, fmt.Errorf("presence: missing responder id")
	}
	if address == "" {
		return Record{}, fmt.Errorf("presence: missing notify address")
	}
	if actorID != responderID {
		return Record{}, ErrForbidden
	}
	return s.store.RegisterAddress(ctx, responderID, address)
}

func (s *Service) GetByID(ctx context.Context, responderID string) (Record, error) {
	return s.store.GetByID(ctx, responderID)
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.store.List(ctx)
}

func (s *Service) AnyOnShift(ctx context.Context) (bool, error) {
	return s.store.AnyOnShift(ctx)
}
