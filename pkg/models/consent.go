package models

import "time"

// Consent records an opt-in for a (phone number, business) pair. At most one
// consent row exists per pair.
type Consent struct {
	PhoneNumber string    `json:"phone_number" validate:"required"`
	BusinessID  string    `json:"business_id"  validate:"required"`
	OptedInAt   time.Time `json:"opted_in_at"`
	Source      string    `json:"source,omitempty"`
}

// OptOut is the authoritative "do not contact" record for a (phone number,
// business) pair. Presence of a row blocks all workflow execution for that
// contact; the per-message IsOptedOut field is only a snapshot taken at
// receipt time.
type OptOut struct {
	PhoneNumber string    `json:"phone_number" validate:"required"`
	BusinessID  string    `json:"business_id"  validate:"required"`
	OptedOutAt  time.Time `json:"opted_out_at"`
	Reason      string    `json:"reason,omitempty"`
}
