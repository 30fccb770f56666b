package sessionmark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-platform/internal/kvstore"
)

// Key is the durable storage key holding the login marker.
const Key = "session:marker"

// DefaultWindow is the staleness window: a successful authentication more
// than this long after the previous one counts as a fresh login.
const DefaultWindow = 24 * time.Hour

type record struct {
	LoggedIn             bool      `json:"logged_in"`
	LastSessionStartedAt time.Time `json:"last_session_started_at"`
}

// Marker persists whether this installation has previously completed a login,
// and when. It exists only to classify a successful authentication as a fresh
// login (worth one-time side effects) or a silent re-validation.
type Marker struct {
	store  kvstore.Store
	window time.Duration
	clock  func() time.Time
}

func New(store kvstore.Store, window time.Duration) *Marker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Marker{store: store, window: window, clock: time.Now}
}

// MarkSessionActive records a successful authentication and reports whether
// it was a fresh login. Classification reads the value present before this
// call: the marker is snapshotted, then overwritten with the current time.
// The persisted timestamp never moves backwards while logged in.
func (m *Marker) MarkSessionActive(ctx context.Context) (bool, error) {
	now := m.clock().UTC()

	prev, ok, err := m.read(ctx)
	if err != nil {
		return false, err
	}
	fresh := !ok || !prev.LoggedIn || now.Sub(prev.LastSessionStartedAt) > m.window

	next := record{LoggedIn: true, LastSessionStartedAt: now}
	if ok && prev.LoggedIn && prev.LastSessionStartedAt.After(now) {
		next.LastSessionStartedAt = prev.LastSessionStartedAt
	}
	if err := m.write(ctx, next); err != nil {
		return false, err
	}
	return fresh, nil
}

// IsFreshLogin classifies without updating the marker.
func (m *Marker) IsFreshLogin(ctx context.Context) (bool, error) {
	prev, ok, err := m.read(ctx)
	if err != nil {
		return false, err
	}
	return !ok || !prev.LoggedIn || m.clock().UTC().Sub(prev.LastSessionStartedAt) > m.window, nil
}

// Clear removes the marker. Called only on explicit logout.
func (m *Marker) Clear(ctx context.Context) error {
	return m.store.Delete(ctx, Key)
}

func (m *Marker) read(ctx context.Context) (record, bool, error) {
	raw, ok, err := m.store.Get(ctx, Key)
	if err != nil {
		return record{}, false, fmt.Errorf("sessionmark: read: %w", err)
	}
	if !ok {
		return record{}, false, nil
	}
	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		// A corrupt marker is treated as absent; the next write repairs it.
		return record{}, false, nil
	}
	return r, true, nil
}

func (m *Marker) write(ctx context.Context, r record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("sessionmark: encode: %w", err)
	}
	if err := m.store.Set(ctx, Key, string(raw)); err != nil {
		return fmt.Errorf("sessionmark: write: %w", err)
	}
	return nil
}
