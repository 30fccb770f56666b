package directory

import "time"

// Profile is the per-identity record in the remote catalogue store. The
// engine only ever reads it by email and creates it once; all other profile
// operations belong to the CRUD layer.
type Profile struct {
	ID         string    `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	GivenName  string    `json:"given_name" db:"given_name"`
	FamilyName string    `json:"family_name" db:"family_name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	// TenantIDs are the tenants linked to this profile. They bound what a
	// non-admin identity may select.
	TenantIDs []string `json:"tenant_ids,omitempty"`
}
