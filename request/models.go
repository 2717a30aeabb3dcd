package request

import "time"

// Category identifies what kind of assistance the recipient asked for. The
// set is fixed; it doubles as the duplicate-suppression key.
type Category string

const (
	CategoryWater     Category = "water"
	CategoryFood      Category = "food"
	CategoryBathroom  Category = "bathroom"
	CategoryHelp      Category = "help"
	CategoryEmergency Category = "emergency"
)

// Urgency orders requests for display. Derived from category at creation and
// immutable afterwards.
type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyHigh      Urgency = "high"
	UrgencyEmergency Urgency = "emergency"
)

// Status is the three-state lifecycle: pending -> accepted -> completed.
// Completed is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
)

// Request mirrors the requests table.
type Request struct {
	ID          string
	Category    Category
	Urgency     Urgency
	Status      Status
	CreatedBy   string
	CreatedAt   time.Time
	AcceptedBy  *string
	AcceptedAt  *time.Time
	CompletedBy *string
	CompletedAt *time.Time
}

// Active reports whether the request still needs attention. Active requests
// block new requests of the same category.
func (r Request) Active() bool {
	return r.Status == StatusPending || r.Status == StatusAccepted
}

// AcceptedByActor reports whether actorID currently holds the claim.
func (r Request) AcceptedByActor(actorID string) bool {
	return r.AcceptedBy != nil && *r.AcceptedBy == actorID
}

// UrgencyFor maps a category to its default urgency. The second return is
// false for categories outside the fixed set.
func UrgencyFor(category Category) (Urgency, bool) {
	switch category {
	case CategoryWater:
		return UrgencyNormal, true
	case CategoryFood, CategoryBathroom, CategoryHelp:
		return UrgencyHigh, true
	case CategoryEmergency:
		return UrgencyEmergency, true
	default:
		return "", false
	}
}
