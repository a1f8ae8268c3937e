package signer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/facebookgo/clock"

	"github.com/joeblew999/plat-geofence/internal/auth"
	"github.com/joeblew999/plat-geofence/internal/metrics"
)

const (
	// RefreshMargin is how long before expiration a refresh is scheduled.
	RefreshMargin = 10 * time.Second

	// MinRefreshDelay floors the delay after a successful refresh, so a
	// provider returning already-expiring credentials cannot spin.
	MinRefreshDelay = time.Second

	// DefaultRetryCooldown is the wait before a new refresh cycle once the
	// retry budget of the previous cycle is spent.
	DefaultRetryCooldown = time.Minute

	// DefaultMaxRetries bounds the retries within one refresh cycle.
	DefaultMaxRetries = 5
)

// State is the refresh state of a Refresher.
type State int

const (
	StateIdle State = iota
	StateScheduled
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// DefaultBackOff is the retry policy used when Options.NewBackOff is nil:
// exponential from one second up to thirty, DefaultMaxRetries retries.
func DefaultBackOff(clk clock.Clock) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Clock = clk
	b.Reset()
	return backoff.WithMaxRetries(b, DefaultMaxRetries)
}

// Refresher holds the current credentials and replaces them before they
// expire. Each retry and each scheduled refresh is one timer event on the
// configured clock; at most one provider call is in flight.
type Refresher struct {
	provider  auth.Provider
	clock     clock.Clock
	log       *slog.Logger
	backoff   backoff.BackOff
	cooldown  time.Duration
	onFailure func(error)

	ctx         context.Context
	cancel      context.CancelFunc
	current     atomic.Pointer[auth.Credentials]
	unsubscribe func()

	mu          sync.Mutex
	state       State
	timer       *clock.Timer
	gen         uint64 // bumped whenever the armed timer becomes stale
	attempts    int
	pending     bool // a sign-out arrived while refreshing
	lastSignOut uint64
	closed      bool
}

// NewRefresher starts the refresh lifecycle for initial. The first refresh is
// scheduled RefreshMargin before initial expires, or immediately when that
// moment has passed. Credentials without an expiration are never refreshed
// on a schedule, only on sign-out.
func NewRefresher(initial auth.Credentials, provider auth.Provider, opts Options) *Refresher {
	opts = opts.withDefaults()

	r := &Refresher{
		provider:  provider,
		clock:     opts.Clock,
		log:       opts.Logger,
		backoff:   opts.NewBackOff(),
		cooldown:  opts.RetryCooldown,
		onFailure: opts.OnRefreshFailure,
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.store(initial)

	r.mu.Lock()
	r.scheduleLocked(initial, 0)
	r.mu.Unlock()

	if opts.SignOut != nil {
		r.unsubscribe = opts.SignOut.Listen(r.onSignOut)
	}
	return r
}

// Current returns the credentials in use. Replacement is atomic, so callers
// always see a complete snapshot.
func (r *Refresher) Current() auth.Credentials {
	return *r.current.Load()
}

// State returns the current refresh state.
func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Refresh starts an out-of-schedule refresh. If one is already running, a
// single follow-up refresh is queued instead.
func (r *Refresher) Refresh() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.state == StateRefreshing {
		r.pending = true
		r.mu.Unlock()
		return
	}
	r.stopTimerLocked()
	r.gen++
	r.state = StateRefreshing
	r.mu.Unlock()

	r.run("requested")
}

// Close cancels the scheduled refresh and any provider call in flight.
func (r *Refresher) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.stopTimerLocked()
	r.gen++
	r.state = StateIdle
	unsubscribe := r.unsubscribe
	r.mu.Unlock()

	r.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (r *Refresher) onSignOut(ev auth.SignOutEvent) {
	r.mu.Lock()
	if ev.Seq <= r.lastSignOut {
		r.mu.Unlock()
		return
	}
	r.lastSignOut = ev.Seq
	r.mu.Unlock()

	r.log.Info("sign-out received, refreshing credentials", "seq", ev.Seq)
	go r.Refresh()
}

// fire is the timer callback for generation gen.
func (r *Refresher) fire(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.gen || r.state != StateScheduled {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.state = StateRefreshing
	r.mu.Unlock()

	r.run("scheduled")
}

// run performs one provider call. The caller has moved the state to
// StateRefreshing.
func (r *Refresher) run(reason string) {
	creds, err := r.provider.Credentials(r.ctx)
	if err == nil {
		err = creds.Validate()
	}

	var failure error

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if err != nil {
		failure = r.failLocked(err)
	} else {
		r.store(creds)
		r.attempts = 0
		r.backoff.Reset()
		r.state = StateIdle
		metrics.CredentialRefreshes.WithLabelValues("success").Inc()
		r.log.Info("credentials refreshed",
			"reason", reason,
			"identity_id", creds.IdentityID,
			"expiration", creds.Expiration,
		)

		if r.pending {
			r.pending = false
			r.armLocked(0)
		} else {
			r.scheduleLocked(creds, MinRefreshDelay)
		}
	}
	r.mu.Unlock()

	if failure != nil && r.onFailure != nil {
		r.onFailure(failure)
	}
}

// failLocked schedules the next retry, or the cool-down once the retry
// budget is spent, in which case it returns the CredentialRefreshError.
func (r *Refresher) failLocked(err error) error {
	r.attempts++
	r.pending = false

	next := r.backoff.NextBackOff()
	if next != backoff.Stop {
		metrics.CredentialRefreshes.WithLabelValues("retry").Inc()
		r.log.Warn("credential refresh failed, retrying",
			"attempt", r.attempts,
			"retry_in", next,
			"error", err,
		)
		r.armLocked(next)
		return nil
	}

	failure := &CredentialRefreshError{Attempts: r.attempts, Err: err}
	r.attempts = 0
	r.backoff.Reset()
	metrics.CredentialRefreshes.WithLabelValues("exhausted").Inc()
	r.log.Error("credential refresh gave up, keeping current credentials",
		"error", failure,
		"next_cycle_in", r.cooldown,
	)
	r.armLocked(r.cooldown)
	return failure
}

// scheduleLocked arms the refresh for creds, RefreshMargin before they
// expire but never sooner than floor.
func (r *Refresher) scheduleLocked(creds auth.Credentials, floor time.Duration) {
	if !creds.CanExpire() {
		r.stopTimerLocked()
		r.state = StateIdle
		return
	}
	delay := creds.Expiration.Sub(r.clock.Now()) - RefreshMargin
	if delay < floor {
		delay = floor
	}
	r.armLocked(delay)
}

func (r *Refresher) armLocked(d time.Duration) {
	r.stopTimerLocked()
	r.gen++
	gen := r.gen
	r.state = StateScheduled
	r.timer = r.clock.AfterFunc(d, func() { r.fire(gen) })
	r.log.Debug("credential refresh scheduled", "in", d)
}

func (r *Refresher) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Refresher) store(creds auth.Credentials) {
	r.current.Store(&creds)
	if creds.CanExpire() {
		metrics.CredentialExpiry.Set(float64(creds.Expiration.Unix()))
	}
}
