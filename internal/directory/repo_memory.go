package directory

import (
	"context"
	"strings"
	"sync"
	"time"

	"catalog-platform/internal/tenant"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory directory useful for tests and local runs.
// It is not intended for production use.

type MemoryRepo struct {
	mu       sync.Mutex
	profiles map[string]Profile // keyed by lowercased email
	tenants  []tenant.Tenant
	clock    func() time.Time
}

func NewMemoryRepo(tenants []tenant.Tenant) *MemoryRepo {
	return &MemoryRepo{
		profiles: make(map[string]Profile),
		tenants:  tenants,
		clock:    time.Now,
	}
}

func (r *MemoryRepo) FindByEmail(_ context.Context, email string) (Profile, bool, error) {
	if email == "" {
		return Profile{}, false, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[strings.ToLower(email)]
	return p, ok, nil
}

func (r *MemoryRepo) Create(_ context.Context, p Profile) (Profile, error) {
	if p.Email == "" {
		return Profile{}, ErrInvalidArgument
	}
	key := strings.ToLower(p.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[key]; exists {
		return Profile{}, ErrAlreadyExists
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.clock().UTC()
	}
	r.profiles[key] = p
	return p, nil
}

func (r *MemoryRepo) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tenant.Tenant, len(r.tenants))
	copy(out, r.tenants)
	return out, nil
}

func (r *MemoryRepo) ListTenantsForEmail(_ context.Context, email string) ([]tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	linked := make(map[string]bool, len(p.TenantIDs))
	for _, id := range p.TenantIDs {
		linked[id] = true
	}
	var out []tenant.Tenant
	for _, t := range r.tenants {
		if linked[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

// SetTenants replaces the tenant list, simulating CRUD-layer changes in tests.
func (r *MemoryRepo) SetTenants(tenants []tenant.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = tenants
}
