package presence

import "time"

// Record mirrors the responder_presence table: one row per responder holding
// the self-reported shift flag and an optional notification address.
type Record struct {
	ResponderID   string
	OnShift       bool
	NotifyAddress *string
	LastUpdated   time.Time
}

// Notifiable reports whether the responder can receive a push right now.
func (r Record) Notifiable() bool {
	return r.OnShift && r.NotifyAddress != nil && *r.NotifyAddress != ""
}
