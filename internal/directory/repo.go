package directory

import (
	"context"
	"errors"

	"catalog-platform/internal/tenant"
)

var (
	ErrNotFound        = errors.New("directory: not found")
	ErrInvalidArgument = errors.New("directory: invalid argument")
	ErrAlreadyExists   = errors.New("directory: profile already exists")
)

// Repo is the persistence contract for the catalogue directory: profiles,
// tenants, and the links between them.
type Repo interface {
	// FindByEmail looks a profile up by email, case-insensitively.
	// The second result is false when no profile exists.
	FindByEmail(ctx context.Context, email string) (Profile, bool, error)

	// Create inserts a profile together with its tenant links.
	Create(ctx context.Context, p Profile) (Profile, error)

	// ListTenants returns every tenant (administrator scope).
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)

	// ListTenantsForEmail returns only the tenants linked to the profile
	// with the given email. An unknown email yields an empty list.
	ListTenantsForEmail(ctx context.Context, email string) ([]tenant.Tenant, error)
}

// ScopedLister adapts a Repo to the tenant.Lister contract for a concrete
// identity: administrators see every tenant, everyone else only the tenants
// linked to their own profile.
type ScopedLister struct {
	Repo  Repo
	Email string
	Admin bool
}

func (l ScopedLister) AccessibleTenants(ctx context.Context) ([]tenant.Tenant, error) {
	if l.Admin {
		return l.Repo.ListTenants(ctx)
	}
	return l.Repo.ListTenantsForEmail(ctx, l.Email)
}
