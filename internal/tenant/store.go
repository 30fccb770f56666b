package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"catalog-platform/internal/kvstore"
)

// SelectionKey is the durable storage key holding the selected tenant id.
const SelectionKey = "tenant:selected"

// ErrListUnavailable marks a failed accessible-tenant fetch. The current
// selection is deliberately left untouched when it occurs: a network blip
// must not destroy a valid selection.
var ErrListUnavailable = errors.New("tenant: accessible-tenant list unavailable")

// Lister supplies the accessible-tenant set, already scoped to the current
// identity (see directory.ScopedLister).
type Lister interface {
	AccessibleTenants(ctx context.Context) ([]Tenant, error)
}

// ContextStore keeps the selected tenant consistent for one engine instance
// and converges with other instances through the shared medium.
//
// Reconciliation never runs before both the persisted selection has been read
// and the first list load has completed; a transient empty list would
// otherwise wrongly clear a valid stored selection.
type ContextStore struct {
	store  kvstore.Store
	lister Lister
	log    *slog.Logger

	mu            sync.Mutex
	selectedID    string
	tenants       []Tenant
	selectionRead bool
	tenantsLoaded bool
	subs          map[int]func(string)
	nextSub       int

	unsubscribe func()
}

func NewContextStore(store kvstore.Store, lister Lister, log *slog.Logger) *ContextStore {
	if log == nil {
		log = slog.Default()
	}
	return &ContextStore{
		store:  store,
		lister: lister,
		log:    log,
		subs:   make(map[int]func(string)),
	}
}

// Init reads the persisted selection, subscribes to cross-instance changes,
// performs the first list load, and reconciles.
func (s *ContextStore) Init(ctx context.Context) error {
	v, ok, err := s.store.Get(ctx, SelectionKey)
	if err != nil {
		return fmt.Errorf("tenant: selection read: %w", err)
	}
	s.mu.Lock()
	if ok {
		s.selectedID = v
	}
	s.selectionRead = true
	s.mu.Unlock()

	cancel, err := s.store.Subscribe(ctx, func(e kvstore.Event) {
		s.onStoreEvent(e)
	})
	if err != nil {
		return fmt.Errorf("tenant: subscribe: %w", err)
	}
	s.unsubscribe = cancel

	return s.ReloadTenants(ctx)
}

// Close cancels the cross-instance subscription.
func (s *ContextStore) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// ReloadTenants refetches the accessible-tenant set and reconciles.
// On fetch failure the selection is kept as-is.
func (s *ContextStore) ReloadTenants(ctx context.Context) error {
	tenants, err := s.lister.AccessibleTenants(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListUnavailable, err)
	}
	s.mu.Lock()
	s.tenants = tenants
	s.tenantsLoaded = true
	s.mu.Unlock()

	s.reconcile(ctx)
	return nil
}

// SelectedTenantID returns the current selection, or "" when none.
func (s *ContextStore) SelectedTenantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// SelectedTenant resolves the selection against the accessible list.
func (s *ContextStore) SelectedTenant() (Tenant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.ID == s.selectedID {
			return t, true
		}
	}
	return Tenant{}, false
}

// Tenants returns the accessible-tenant set as of the last load.
func (s *ContextStore) Tenants() []Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tenant, len(s.tenants))
	copy(out, s.tenants)
	return out
}

// OnChange registers fn for selection changes. fn receives the new id
// ("" when cleared).
func (s *ContextStore) OnChange(fn func(string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// SetSelectedTenantID changes the selection: in-memory first, then the
// persisted record, then reconciliation against the accessible set.
// Selection locks gate UI affordances only and are not enforced here.
func (s *ContextStore) SetSelectedTenantID(ctx context.Context, id string) error {
	if err := s.adopt(ctx, id); err != nil {
		return err
	}
	s.reconcile(ctx)
	return nil
}

// Refresh re-reads the persisted selection and adopts it when it differs.
// Called when the instance regains focus or becomes visible; it covers
// change notifications the instance missed while inactive.
func (s *ContextStore) Refresh(ctx context.Context) error {
	v, ok, err := s.store.Get(ctx, SelectionKey)
	if err != nil {
		return fmt.Errorf("tenant: selection read: %w", err)
	}
	if !ok {
		v = ""
	}

	s.mu.Lock()
	same := v == s.selectedID
	s.selectedID = v
	s.mu.Unlock()

	if !same {
		s.notify(v)
	}
	s.reconcile(ctx)
	return nil
}

func (s *ContextStore) onStoreEvent(e kvstore.Event) {
	if e.Key != SelectionKey {
		return
	}
	v := e.Value
	if e.Deleted {
		v = ""
	}

	s.mu.Lock()
	if v == s.selectedID {
		s.mu.Unlock()
		return
	}
	s.selectedID = v
	s.mu.Unlock()

	s.notify(v)
	s.reconcile(context.Background())
}

// adopt updates in-memory state then the persisted record, in that order.
func (s *ContextStore) adopt(ctx context.Context, id string) error {
	s.mu.Lock()
	same := id == s.selectedID
	s.selectedID = id
	s.mu.Unlock()

	if err := s.persist(ctx, id); err != nil {
		return err
	}
	if !same {
		s.notify(id)
	}
	return nil
}

func (s *ContextStore) persist(ctx context.Context, id string) error {
	if id == "" {
		return s.store.Delete(ctx, SelectionKey)
	}
	return s.store.Set(ctx, SelectionKey, id)
}

// reconcile corrects the selection against the accessible set:
//   - empty set: clear
//   - singleton set: force the one tenant, overwriting any stored value
//   - selection present in the set: keep
//   - otherwise: fall back to the first tenant
func (s *ContextStore) reconcile(ctx context.Context) {
	s.mu.Lock()
	if !s.selectionRead || !s.tenantsLoaded {
		s.mu.Unlock()
		return
	}
	cur := s.selectedID
	var next string
	switch {
	case len(s.tenants) == 0:
		next = ""
	case len(s.tenants) == 1:
		next = s.tenants[0].ID
	case cur != "" && s.contains(cur):
		next = cur
	default:
		next = s.tenants[0].ID
	}
	s.mu.Unlock()

	if next == cur {
		return
	}
	s.log.Debug("tenant: selection reconciled", "from", cur, "to", next)
	if err := s.adopt(ctx, next); err != nil {
		s.log.Warn("tenant: reconciled selection persist failed", "err", err)
	}
}

// contains must be called with the lock held.
func (s *ContextStore) contains(id string) bool {
	for _, t := range s.tenants {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *ContextStore) notify(id string) {
	s.mu.Lock()
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(id)
	}
}
