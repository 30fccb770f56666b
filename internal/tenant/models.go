package tenant

// Tenant is an organizational scope partitioning the catalogue. Read-only
// from this engine's perspective; ownership lives in the CRUD layer.
type Tenant struct {
	ID       string            `json:"id" db:"id"`
	Name     string            `json:"name" db:"name"`
	Branding map[string]string `json:"branding,omitempty" db:"branding"`
}
