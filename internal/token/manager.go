package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Provider is the identity-provider boundary: the engine never authenticates
// by itself, it asks the provider for a bearer credential and inspects it.
type Provider interface {
	// Authenticate performs the initial handshake. ok=false without error
	// means no session exists and an interactive login has been started
	// elsewhere (redirect); the engine stays unauthenticated.
	Authenticate(ctx context.Context) (raw string, ok bool, err error)

	// Renew returns a credential valid for at least minValidity. Providers
	// may return the current credential when it still satisfies the bound.
	Renew(ctx context.Context, minValidity time.Duration) (string, error)

	Logout(ctx context.Context) error
}

// SessionMarker classifies a successful authentication as fresh vs. repeat
// and is cleared on logout. See sessionmark.Marker.
type SessionMarker interface {
	MarkSessionActive(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
}

// Config carries the renewal policy.
//
// Three triggers converge on one idempotent renewal primitive:
//   - reactive: a timer fires when remaining validity reaches
//     ReactiveMinValidity; failure here forces re-authentication.
//   - preventive: every PreventivePeriod, renew when remaining validity is
//     below PreventiveThreshold; failure here is retried next tick.
//   - error-triggered: NotifyAuthFailure forces an unconditional renewal.
type Config struct {
	ReactiveMinValidity time.Duration
	PreventiveThreshold time.Duration
	PreventivePeriod    time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.ReactiveMinValidity <= 0 {
		out.ReactiveMinValidity = 30 * time.Second
	}
	if out.PreventiveThreshold <= 0 {
		out.PreventiveThreshold = 5 * time.Minute
	}
	if out.PreventivePeriod <= 0 {
		out.PreventivePeriod = time.Minute
	}
	return out
}

// ErrAuthExpired marks a renewal failure that cannot be retried silently;
// the only recovery is a full re-authentication.
var ErrAuthExpired = errors.New("token: re-authentication required")

// Manager owns the identity token for one engine instance.
//
// All state is guarded by a single mutex; renewal is funneled through a
// singleflight group so overlapping triggers produce at most one network
// call. The manager never persists the token.
type Manager struct {
	provider Provider
	marker   SessionMarker
	cfg      Config
	log      *slog.Logger
	clock    func() time.Time

	onFreshLogin  func(context.Context, Claims)
	onForcedLogin func()

	initOnce sync.Once
	initOK   bool
	initErr  error

	renewals singleflight.Group

	mu      sync.Mutex
	current *Token
	subs    map[int]func(Token)
	nextSub int

	tokenCh  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func NewManager(provider Provider, marker SessionMarker, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		provider: provider,
		marker:   marker,
		cfg:      cfg.withDefaults(),
		log:      log,
		clock:    time.Now,
		subs:     make(map[int]func(Token)),
		tokenCh:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// OnFreshLogin registers the one-time side effects of a fresh login
// (profile bootstrap, landing navigation). Must be set before Initialize.
func (m *Manager) OnFreshLogin(fn func(context.Context, Claims)) { m.onFreshLogin = fn }

// OnForcedLogin registers the full re-authentication action (redirect).
func (m *Manager) OnForcedLogin(fn func()) { m.onForcedLogin = fn }

// OnTokenChanged registers fn for every successful renewal, so dependent
// request layers can re-issue in-flight calls with the new credential.
func (m *Manager) OnTokenChanged(fn func(Token)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Initialize performs the authentication handshake exactly once per process.
// Concurrent and subsequent calls share the first call's outcome.
func (m *Manager) Initialize(ctx context.Context) (bool, error) {
	m.initOnce.Do(func() {
		m.initOK, m.initErr = m.initialize(ctx)
	})
	return m.initOK, m.initErr
}

func (m *Manager) initialize(ctx context.Context) (bool, error) {
	raw, ok, err := m.provider.Authenticate(ctx)
	if err != nil {
		return false, fmt.Errorf("token: authenticate: %w", err)
	}
	if !ok {
		return false, nil
	}
	t, err := Parse(raw)
	if err != nil {
		return false, err
	}
	m.setToken(t)

	fresh := false
	if m.marker != nil {
		fresh, err = m.marker.MarkSessionActive(ctx)
		if err != nil {
			// Classification failed; skip fresh-login side effects rather
			// than risk running them twice.
			m.log.Warn("token: session marker update failed", "err", err)
			fresh = false
		}
	}
	if fresh && m.onFreshLogin != nil {
		m.onFreshLogin(ctx, t.Claims)
	}
	return true, nil
}

// CurrentToken returns the most recently renewed token, or nil.
func (m *Manager) CurrentToken() *Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsAuthenticated reports whether a token with remaining validity is held.
func (m *Manager) IsAuthenticated() bool {
	return m.CurrentToken().RemainingValidity(m.clock()) > 0
}

// RenewOptions parameterize one renewal request.
type RenewOptions struct {
	// MinValidity is the remaining validity below which a network renewal is
	// actually issued. A token fresher than this makes the call a no-op.
	MinValidity time.Duration

	// Force skips the MinValidity short-circuit.
	Force bool
}

// Renew is the idempotent renewal primitive shared by all triggers.
// Overlapping calls with the same shape coalesce into a single network
// renewal. Flights are keyed by the request shape so a forced renewal never
// joins a threshold-satisfied no-op and returns without actually renewing.
func (m *Manager) Renew(ctx context.Context, opts RenewOptions) error {
	key := fmt.Sprintf("force=%t min=%s", opts.Force, opts.MinValidity)
	_, err, _ := m.renewals.Do(key, func() (any, error) {
		return nil, m.renew(ctx, opts)
	})
	return err
}

func (m *Manager) renew(ctx context.Context, opts RenewOptions) error {
	if !opts.Force {
		if m.CurrentToken().RemainingValidity(m.clock()) > opts.MinValidity {
			return nil
		}
	}
	raw, err := m.provider.Renew(ctx, opts.MinValidity)
	if err != nil {
		return fmt.Errorf("token: renew: %w", err)
	}
	t, err := Parse(raw)
	if err != nil {
		return err
	}
	m.setToken(t)
	if m.marker != nil {
		if _, err := m.marker.MarkSessionActive(ctx); err != nil {
			m.log.Warn("token: session marker update failed", "err", err)
		}
	}
	return nil
}

// NotifyAuthFailure reacts to an authorization failure observed by any
// consumer: an unconditional renewal, falling back to re-authentication.
func (m *Manager) NotifyAuthFailure(ctx context.Context) error {
	if err := m.Renew(ctx, RenewOptions{Force: true}); err != nil {
		m.log.Error("token: forced renewal failed", "err", err)
		m.forceLogin()
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	return nil
}

// Logout ends the session: remote logout, marker cleared, token dropped,
// timers stopped.
func (m *Manager) Logout(ctx context.Context) error {
	m.Close()

	var errs []error
	if m.marker != nil {
		if err := m.marker.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.provider.Logout(ctx); err != nil {
		errs = append(errs, err)
	}

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	return errors.Join(errs...)
}

// Start launches the reactive and preventive renewal timers.
func (m *Manager) Start(ctx context.Context) {
	go m.run(ctx)
}

// Close stops the renewal timers. Idempotent.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PreventivePeriod)
	defer ticker.Stop()

	expiry := time.NewTimer(m.reactiveDelay())
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return

		case <-m.tokenCh:
			// Token replaced; reschedule the reactive timer for the new expiry.
			resetTimer(expiry, m.reactiveDelay())

		case <-ticker.C:
			t := m.CurrentToken()
			if t == nil {
				continue
			}
			if t.RemainingValidity(m.clock()) < m.cfg.PreventiveThreshold {
				if err := m.Renew(ctx, RenewOptions{MinValidity: m.cfg.PreventiveThreshold}); err != nil {
					// Transient: the next tick retries.
					m.log.Warn("token: preventive renewal failed, will retry", "err", err)
				}
			}

		case <-expiry.C:
			if m.CurrentToken() == nil {
				expiry.Reset(m.cfg.PreventivePeriod)
				continue
			}
			if err := m.Renew(ctx, RenewOptions{MinValidity: m.cfg.ReactiveMinValidity}); err != nil {
				m.log.Error("token: renewal at expiry failed", "err", err)
				m.forceLogin()
			}
			expiry.Reset(m.reactiveDelay())
		}
	}
}

// reactiveDelay computes how long until the reactive trigger should fire:
// when remaining validity drops to ReactiveMinValidity.
func (m *Manager) reactiveDelay() time.Duration {
	t := m.CurrentToken()
	if t == nil {
		return m.cfg.PreventivePeriod
	}
	d := t.RemainingValidity(m.clock()) - m.cfg.ReactiveMinValidity
	if d < 0 {
		d = 0
	}
	return d
}

func (m *Manager) setToken(t *Token) {
	m.mu.Lock()
	m.current = t
	subs := make([]func(Token), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	select {
	case m.tokenCh <- struct{}{}:
	default:
	}
	for _, fn := range subs {
		fn(*t)
	}
}

func (m *Manager) forceLogin() {
	if m.onForcedLogin != nil {
		m.onForcedLogin()
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
