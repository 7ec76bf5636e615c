// Package bootstrap coordinates the one-time client activation across every
// coordinator instance sharing a storage origin.
//
// The store offers no compare-and-swap, so instances race on a lease token:
// each writes a random token, waits one window and re-reads it. The writer
// whose token survived, with no state set meanwhile, performs the activation.
// Everyone else polls for the Active state and then issues one more
// (idempotent) activation call. Coordination is best effort; duplicates are
// reduced, not eliminated.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/clientboot/internal/activation"
	"git.home.luguber.info/inful/clientboot/internal/clientstate"
	"git.home.luguber.info/inful/clientboot/internal/config"
	"git.home.luguber.info/inful/clientboot/internal/kvstore"
	"git.home.luguber.info/inful/clientboot/internal/logfields"
	"git.home.luguber.info/inful/clientboot/internal/metrics"
	"git.home.luguber.info/inful/clientboot/internal/retry"
)

// Options tune a Coordinator. Zero values take the defaults.
type Options struct {
	// Window is the lease wait and the degraded-path delay (default 5s).
	Window time.Duration
	// PollAttempts bounds the poll loop (default 5). Ignored when Policy is set.
	PollAttempts int
	// Policy overrides the poll schedule; the default polls once per Window.
	Policy   *retry.Policy
	Clock    clockwork.Clock
	NewToken func() string
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// OptionsFromConfig maps the coordinator section onto Options.
func OptionsFromConfig(c config.CoordinatorConfig) Options {
	p := retry.FromCoordinator(c)
	return Options{Window: c.Window, PollAttempts: c.PollAttempts, Policy: &p}
}

// Coordinator runs the bootstrap routine for one instance. It is safe to
// call Run concurrently; each call is an independent attempt.
type Coordinator struct {
	store     kvstore.Store
	activator activation.Activator
	window    time.Duration
	policy    retry.Policy
	clock     clockwork.Clock
	newToken  func() string
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// New builds a Coordinator over store and activator.
func New(store kvstore.Store, activator activation.Activator, opts Options) *Coordinator {
	c := &Coordinator{
		store:     store,
		activator: activator,
		window:    opts.Window,
		clock:     opts.Clock,
		newToken:  opts.NewToken,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
	}
	if c.window <= 0 {
		c.window = config.DefaultWindow
	}
	if opts.Policy != nil {
		c.policy = *opts.Policy
	} else {
		attempts := opts.PollAttempts
		if attempts <= 0 {
			attempts = config.DefaultPollAttempts
		}
		c.policy = retry.NewPolicy(config.RetryBackoffFixed, c.window, c.window, attempts)
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.newToken == nil {
		c.newToken = clientstate.NewLeaseToken
	}
	if c.recorder == nil {
		c.recorder = metrics.NoopRecorder{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Init runs the routine and discards the report. It never fails and never
// panics; failures are logged.
func (c *Coordinator) Init(ctx context.Context) {
	_ = c.Run(ctx)
}

// Start runs the routine in the background. The channel yields the report
// once and is then closed.
func (c *Coordinator) Start(ctx context.Context) <-chan Report {
	out := make(chan Report, 1)
	go func() {
		defer close(out)
		out <- c.Run(ctx)
	}()
	return out
}

// Run performs one bootstrap attempt and reports what happened.
func (c *Coordinator) Run(ctx context.Context) (report Report) {
	start := c.clock.Now()
	r := &run{Coordinator: c, report: Report{Outcome: OutcomeIndeterminate}}

	defer func() {
		if p := recover(); p != nil {
			c.logger.ErrorContext(ctx, "Client bootstrap panicked", logfields.Error(fmt.Errorf("panic: %v", p)))
		}
		r.report.FinalState = r.cs
		r.report.Duration = c.clock.Since(start)
		c.recorder.IncRaceOutcome(string(r.report.Outcome))
		c.recorder.ObserveRunDuration(r.report.Duration)
		c.logger.InfoContext(ctx, "Client bootstrap finished",
			logfields.Outcome(string(r.report.Outcome)),
			logfields.State(r.cs.String()),
			logfields.Activations(r.report.Activations),
			logfields.Duration(r.report.Duration),
			slog.Bool("degraded", r.report.Degraded))
		report = r.report
	}()

	r.execute(ctx)
	return r.report
}

// run holds the state of one Run call.
type run struct {
	*Coordinator
	report Report
	// cs is the last state observed or written by this run.
	cs clientstate.State
}

func (r *run) execute(ctx context.Context) {
	cs, err := r.readState(ctx)
	if err != nil {
		r.degrade(ctx, kvstore.OpGet, err)
		return
	}
	r.cs = cs

	if !r.cs.IsSet() {
		won, err := r.race(ctx)
		if err != nil {
			return
		}
		if won {
			r.win(ctx)
			return
		}
	}

	if !r.cs.IsActive() && !r.poll(ctx) {
		return
	}

	// Losers and late arrivals still call the endpoint once; it is idempotent.
	ok, err := r.activate(ctx)
	if err != nil {
		r.fallback(ctx)
		return
	}
	if ok && !r.cs.IsActive() {
		if err := r.store.Set(ctx, clientstate.StateKey, clientstate.Active.Value()); err != nil {
			r.degrade(ctx, kvstore.OpSet, err)
			return
		}
		r.cs = clientstate.Active
	}
}

// race writes a lease token, waits one window and reports whether the token
// survived with no state set. A non-nil error means the run already ended
// (abandoned or degraded).
func (r *run) race(ctx context.Context) (bool, error) {
	token := r.newToken()
	if err := r.store.Set(ctx, clientstate.LeaseKey, token); err != nil {
		r.degrade(ctx, kvstore.OpSet, err)
		return false, err
	}
	r.report.LeaseToken = token
	r.logger.DebugContext(ctx, "Lease written", logfields.LeaseToken(token))

	if err := r.sleep(ctx, r.window); err != nil {
		r.abandon(ctx, err)
		return false, err
	}

	current, ok, err := r.store.Get(ctx, clientstate.LeaseKey)
	if err != nil {
		r.degrade(ctx, kvstore.OpGet, err)
		return false, err
	}
	cs, err := r.readState(ctx)
	if err != nil {
		r.degrade(ctx, kvstore.OpGet, err)
		return false, err
	}
	r.cs = cs

	if ok && current == token && !cs.IsSet() {
		r.report.Outcome = OutcomeWon
		return true, nil
	}
	r.report.Outcome = OutcomeLost
	r.logger.DebugContext(ctx, "Lease race lost", logfields.LeaseToken(token), logfields.State(cs.String()))
	return false, nil
}

// win performs the guarded activation. On failure the lease is dropped and
// the state is reverted so a later run starts from Unset again.
func (r *run) win(ctx context.Context) {
	r.cs = clientstate.Initializing
	if err := r.store.Set(ctx, clientstate.StateKey, clientstate.Initializing.Value()); err != nil {
		r.degrade(ctx, kvstore.OpSet, err)
		return
	}
	r.scheduleLeaseCleanup()

	if ok, _ := r.activate(ctx); ok {
		if err := r.store.Set(ctx, clientstate.StateKey, clientstate.Active.Value()); err != nil {
			r.degrade(ctx, kvstore.OpSet, err)
			return
		}
		r.cs = clientstate.Active
		return
	}

	if err := r.store.Remove(ctx, clientstate.LeaseKey); err != nil {
		r.degrade(ctx, kvstore.OpRemove, err)
		return
	}
	cs, err := r.readState(ctx)
	if err != nil {
		r.degrade(ctx, kvstore.OpGet, err)
		return
	}
	if cs == clientstate.Initializing {
		if err := r.store.Remove(ctx, clientstate.StateKey); err != nil {
			r.degrade(ctx, kvstore.OpRemove, err)
			return
		}
		cs = clientstate.Unset
	}
	r.cs = cs
}

// scheduleLeaseCleanup removes the lease one window from now. It is not tied
// to the run's context and is never awaited.
func (r *run) scheduleLeaseCleanup() {
	store, logger := r.store, r.logger
	r.clock.AfterFunc(r.window, func() {
		if err := store.Remove(context.Background(), clientstate.LeaseKey); err != nil {
			logger.Warn("Failed to remove lease", logfields.Key(clientstate.LeaseKey), logfields.Error(err))
		}
	})
}

// poll waits for another instance to reach Active. It returns false when the
// run ended while polling.
func (r *run) poll(ctx context.Context) bool {
	for attempt := 1; attempt <= r.policy.MaxRetries; attempt++ {
		if err := r.policy.Wait(ctx, r.clock, attempt); err != nil {
			r.abandon(ctx, err)
			return false
		}
		r.report.PollCycles++
		r.recorder.IncPollCycle()

		cs, err := r.readState(ctx)
		if err != nil {
			r.degrade(ctx, kvstore.OpGet, err)
			return false
		}
		if cs.IsActive() {
			r.cs = clientstate.Active
			r.logger.DebugContext(ctx, "Observed active state", logfields.Attempt(attempt))
			break
		}
	}
	return true
}

// activate issues one activation call. A false result is a plain rejection;
// a non-nil error means the call itself failed. Both are logged here.
func (r *run) activate(ctx context.Context) (bool, error) {
	r.report.Activations++
	ok, err := r.activator.Activate(ctx)
	switch {
	case err != nil:
		r.recorder.IncActivation(metrics.ActivationError)
		r.logger.WarnContext(ctx, "Client activation failed", logfields.Error(err))
		return false, err
	case !ok:
		r.recorder.IncActivation(metrics.ActivationRejected)
		r.logger.WarnContext(ctx, "Client activation returned false")
		return false, nil
	default:
		r.recorder.IncActivation(metrics.ActivationSuccess)
		r.report.Succeeded++
		return true, nil
	}
}

// degrade handles a storage failure and then takes the fallback path.
func (r *run) degrade(ctx context.Context, op kvstore.Op, err error) {
	r.report.Degraded = true
	r.recorder.IncStorageFailure(string(op))
	r.logger.WarnContext(ctx, "Client state storage unavailable", slog.String("op", string(op)), logfields.Error(err))
	r.fallback(ctx)
}

// fallback ends a run that failed on storage or on the final activation
// call. If no state had been observed it waits one window and fires a
// single activation without coordination, ignoring its outcome.
func (r *run) fallback(ctx context.Context) {
	if r.cs.IsSet() {
		return
	}
	if err := r.sleep(ctx, r.window); err != nil {
		r.abandon(ctx, err)
		return
	}
	r.report.FallbackFired = true
	r.recorder.IncFallbackActivation()
	_, _ = r.activate(ctx)
}

func (r *run) abandon(ctx context.Context, err error) {
	r.report.Outcome = OutcomeAbandoned
	r.logger.InfoContext(ctx, "Client bootstrap abandoned", logfields.Error(err))
}

func (r *run) readState(ctx context.Context) (clientstate.State, error) {
	v, ok, err := r.store.Get(ctx, clientstate.StateKey)
	if err != nil {
		return clientstate.Unset, err
	}
	return clientstate.Parse(v, ok), nil
}

func (r *run) sleep(ctx context.Context, d time.Duration) error {
	timer := r.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
