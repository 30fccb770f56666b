package audit

import "time"

// Event is an immutable, append-only record of a session-engine transition.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; session flows must not block on audit failures.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the engine transition being recorded.
	Type EventType `json:"type" db:"type"`

	// SubjectID and Email identify the authenticated identity (if any).
	SubjectID string `json:"subject_id,omitempty" db:"subject_id"`
	Email     string `json:"email,omitempty" db:"email"`

	// TenantID is set for selection-related events.
	TenantID string `json:"tenant_id,omitempty" db:"tenant_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeFreshLogin       EventType = "fresh_login"
	EventTypeTokenRenewed     EventType = "token_renewed"
	EventTypeForcedLogin      EventType = "forced_login"
	EventTypeProfileCreated   EventType = "profile_created"
	EventTypeSelectionChanged EventType = "selection_changed"
)
