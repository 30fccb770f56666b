package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"catalog-platform/internal/directory"
	"catalog-platform/internal/kvstore"
)

// State of the profile bootstrap for one identity within this instance.
// Legal transitions: unchecked → checking → {creating → done | done | failed}.
type State string

const (
	StateUnchecked State = "unchecked"
	StateChecking  State = "checking"
	StateCreating  State = "creating"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Durable per-email flag values. The flag exists so an instance restarted
// mid-create does not issue a second create.
const (
	flagCreating = "creating"
	flagDone     = "done"
)

var (
	ErrLookupFailed = errors.New("bootstrap: profile lookup failed")
	ErrCreateFailed = errors.New("bootstrap: profile create failed")
)

// Directory is the subset of the catalogue store the workflow needs.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (directory.Profile, bool, error)
	Create(ctx context.Context, p directory.Profile) (directory.Profile, error)
}

// Workflow ensures a profile record exists for an identity: one existence
// read per fresh session and at most one create, ever, across instances and
// restarts.
//
// The in-flight guard is checked synchronously before any network call is
// issued; it is the only race-prevention mechanism available, since the
// shared medium offers no cross-operation transaction.
type Workflow struct {
	store kvstore.Store
	dir   Directory
	log   *slog.Logger

	mu       sync.Mutex
	state    State
	inFlight bool
}

func NewWorkflow(store kvstore.Store, dir Directory, log *slog.Logger) *Workflow {
	if log == nil {
		log = slog.Default()
	}
	return &Workflow{store: store, dir: dir, log: log, state: StateUnchecked}
}

// FlagKey is the durable registration flag key for an email.
func FlagKey(email string) string {
	return "registration:" + strings.ToLower(email)
}

// State returns the current in-memory state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Run executes the bootstrap protocol for the given identity claims.
// A second call while one is in flight returns the current state without
// issuing any operation. Terminal states short-circuit.
//
// created is true only when this call issued the create; a profile that was
// merely found reports created=false, so callers can tell registration from
// a routine existence check.
func (w *Workflow) Run(ctx context.Context, email, givenName, familyName string) (st State, created bool, err error) {
	if email == "" {
		return w.State(), false, fmt.Errorf("%w: identity has no email claim", ErrLookupFailed)
	}

	w.mu.Lock()
	if w.inFlight || w.state == StateDone {
		st := w.state
		w.mu.Unlock()
		return st, false, nil
	}
	w.inFlight = true
	w.state = StateChecking
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.inFlight = false
		w.mu.Unlock()
	}()

	flag, ok, err := w.store.Get(ctx, FlagKey(email))
	if err != nil {
		w.setState(StateFailed)
		return StateFailed, false, fmt.Errorf("%w: flag read: %v", ErrLookupFailed, err)
	}
	if ok {
		switch flag {
		case flagCreating:
			// Another instance (or a previous life of this one) is mid-create.
			// Surface the creating state and let that flow flip the flag.
			w.setState(StateCreating)
			return StateCreating, false, nil
		case flagDone:
			w.setState(StateDone)
			return StateDone, false, nil
		}
	}

	_, found, err := w.dir.FindByEmail(ctx, email)
	if err != nil {
		w.setState(StateFailed)
		return StateFailed, false, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if found {
		// Existing users terminate without a durable flag: the flag only
		// suppresses duplicate creates, and the existence read is a cheap
		// idempotent check worth repeating next fresh session.
		w.setState(StateDone)
		return StateDone, false, nil
	}

	if err := w.store.Set(ctx, FlagKey(email), flagCreating); err != nil {
		w.setState(StateFailed)
		return StateFailed, false, fmt.Errorf("%w: flag write: %v", ErrCreateFailed, err)
	}
	w.setState(StateCreating)

	_, err = w.dir.Create(ctx, directory.Profile{
		Email:      email,
		GivenName:  givenName,
		FamilyName: familyName,
	})
	switch {
	case err == nil:
		created = true
	case errors.Is(err, directory.ErrAlreadyExists):
		// Another instance won the create race; the profile exists.
		err = nil
	default:
		// Unblock a future session's attempt; no automatic retry here.
		if derr := w.store.Delete(ctx, FlagKey(email)); derr != nil {
			w.log.Warn("bootstrap: flag cleanup failed", "email", email, "err", derr)
		}
		w.setState(StateFailed)
		return StateFailed, false, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	if err := w.store.Set(ctx, FlagKey(email), flagDone); err != nil {
		w.log.Warn("bootstrap: done flag write failed", "email", email, "err", err)
	}
	w.setState(StateDone)
	return StateDone, created, nil
}

// Reset clears the durable flag and local state. This is the explicit
// cache-clear action recovering from a stuck "creating" flag.
func (w *Workflow) Reset(ctx context.Context, email string) error {
	if err := w.store.Delete(ctx, FlagKey(email)); err != nil {
		return err
	}
	w.setState(StateUnchecked)
	return nil
}

func (w *Workflow) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}
