package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/clientboot/internal/apierrors"
	"git.home.luguber.info/inful/clientboot/internal/clientstate"
	"git.home.luguber.info/inful/clientboot/internal/config"
	"git.home.luguber.info/inful/clientboot/internal/kvstore"
	"git.home.luguber.info/inful/clientboot/internal/metrics"
)

var ignoreDuration = cmpopts.IgnoreFields(Report{}, "Duration")

var errPrivateMode = errors.New("SecurityError: storage disabled")

func newFakeCoordinator(store kvstore.Store, act *fakeActivator, clk *clockwork.FakeClock, rec metrics.Recorder) *Coordinator {
	return New(store, act, Options{
		Window:       testWindow,
		PollAttempts: 5,
		Clock:        clk,
		NewToken:     fixedToken("0.5"),
		Recorder:     rec,
		Logger:       discardLogger,
	})
}

func TestRun_StorageUnavailable_ActivatesOnceAfterWindow(t *testing.T) {
	results := map[string]activationResult{
		"success":  {ok: true},
		"false":    {ok: false},
		"error":    {err: apierrors.ErrInternal},
		"canceled": {err: context.Canceled},
	}
	for name, res := range results {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			clk := clockwork.NewFakeClock()
			act := &fakeActivator{result: res}
			rec := newCountingRecorder()
			c := newFakeCoordinator(kvstore.UnavailableStore{Cause: errPrivateMode}, act, clk, rec)

			done := c.Start(ctx)
			require.NoError(t, clk.BlockUntilContext(ctx, 1))
			assert.Equal(t, 0, act.Calls(), "no activation before the window elapses")
			clk.Advance(testWindow)
			rep := <-done

			succeeded := 0
			if res.ok {
				succeeded = 1
			}
			want := Report{
				Outcome:       OutcomeIndeterminate,
				Degraded:      true,
				FallbackFired: true,
				Activations:   1,
				Succeeded:     succeeded,
				FinalState:    clientstate.Unset,
			}
			if diff := cmp.Diff(want, rep, ignoreDuration); diff != "" {
				t.Fatalf("report mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, 1, act.Calls())
			assert.Equal(t, 1, rec.fallbacks)
			assert.Equal(t, 1, rec.storageFailures["get"])
		})
	}
}

func TestRun_AlreadyActive_NoLeaseButStillActivates(t *testing.T) {
	ctx := testContext(t)
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, clientstate.StateKey, clientstate.Active.Value()))
	act := &fakeActivator{result: activationResult{ok: true}}

	rep := newFakeCoordinator(store, act, clockwork.NewFakeClock(), nil).Run(ctx)

	want := Report{Outcome: OutcomeIndeterminate, Activations: 1, Succeeded: 1, FinalState: clientstate.Active}
	if diff := cmp.Diff(want, rep, ignoreDuration); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[string]string{clientstate.StateKey: "2"}, store.Snapshot(), "no lease may be created")
	assert.Equal(t, 1, store.Calls().Set, "only the seed write")
}

func TestRun_SingleInstanceWins(t *testing.T) {
	ctx := testContext(t)
	clk := clockwork.NewFakeClock()
	store := kvstore.NewMemoryStore()
	act := &fakeActivator{result: activationResult{ok: true}}
	rec := newCountingRecorder()
	c := newFakeCoordinator(store, act, clk, rec)

	done := c.Start(ctx)
	advance(t, ctx, clk, 1)
	rep := <-done

	want := Report{Outcome: OutcomeWon, LeaseToken: "0.5", Activations: 1, Succeeded: 1, FinalState: clientstate.Active}
	if diff := cmp.Diff(want, rep, ignoreDuration); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[string]string{clientstate.StateKey: "2", clientstate.LeaseKey: "0.5"}, store.Snapshot())
	assert.Equal(t, 1, rec.outcomes["won"])

	// The lease is removed one window after the win.
	advance(t, ctx, clk, 1)
	require.Eventually(t, func() bool {
		_, ok := store.Snapshot()[clientstate.LeaseKey]
		return !ok
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, "2", store.Snapshot()[clientstate.StateKey])
}

func TestRun_WinnerRejected_RevertsToUnset(t *testing.T) {
	results := map[string]activationResult{
		"false":             {ok: false},
		"application error": {err: apierrors.New(apierrors.InvalidOperation, "")},
		"bad request":       {err: apierrors.ErrBadRequest},
	}
	for name, res := range results {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			clk := clockwork.NewFakeClock()
			store := kvstore.NewMemoryStore()
			act := &fakeActivator{result: res}

			done := newFakeCoordinator(store, act, clk, nil).Start(ctx)
			advance(t, ctx, clk, 1)
			rep := <-done

			want := Report{Outcome: OutcomeWon, LeaseToken: "0.5", Activations: 1, FinalState: clientstate.Unset}
			if diff := cmp.Diff(want, rep, ignoreDuration); diff != "" {
				t.Fatalf("report mismatch (-want +got):\n%s", diff)
			}
			assert.Empty(t, store.Snapshot(), "lease dropped and state reverted; Active never written")
		})
	}
}

func TestRun_DeadLease_FallsThroughToPolling(t *testing.T) {
	results := map[string]struct {
		res         activationResult
		wantState   clientstate.State
		waits       int // sleeps after the race window
		activations int
		succeeded   int
		fallback    bool
	}{
		"activation succeeds": {activationResult{ok: true}, clientstate.Active, 5, 1, 1, false},
		"activation false":    {activationResult{ok: false}, clientstate.Unset, 5, 1, 0, false},
		// A failed call ends the run like a storage failure: one more window,
		// then one uncoordinated activation.
		"activation error": {activationResult{err: apierrors.ErrPermissionDenied}, clientstate.Unset, 6, 2, 0, true},
	}
	for name, tc := range results {
		t.Run(name, func(t *testing.T) {
			ctx := testContext(t)
			clk := clockwork.NewFakeClock()
			store := kvstore.NewMemoryStore()
			require.NoError(t, store.Set(ctx, clientstate.LeaseKey, "0.dead"))
			act := &fakeActivator{result: tc.res}
			rec := newCountingRecorder()

			done := newFakeCoordinator(store, act, clk, rec).Start(ctx)

			// The lease this run wrote is clobbered by the dead instance's token.
			require.NoError(t, clk.BlockUntilContext(ctx, 1))
			require.NoError(t, store.Set(ctx, clientstate.LeaseKey, "0.dead"))
			clk.Advance(testWindow)

			advance(t, ctx, clk, tc.waits)
			rep := <-done

			want := Report{
				Outcome:       OutcomeLost,
				FallbackFired: tc.fallback,
				LeaseToken:    "0.5",
				Activations:   tc.activations,
				Succeeded:     tc.succeeded,
				PollCycles:    5,
				FinalState:    tc.wantState,
			}
			if diff := cmp.Diff(want, rep, ignoreDuration); diff != "" {
				t.Fatalf("report mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, 5, rec.pollCycles, "never more than the configured sleeps")
			assert.Equal(t, tc.activations, act.Calls())
			if tc.fallback {
				assert.Equal(t, 1, rec.fallbacks)
				assert.Empty(t, rec.storageFailures, "an activation failure is not a storage failure")
			}
			if tc.wantState == clientstate.Active {
				assert.Equal(t, "2", store.Snapshot()[clientstate.StateKey])
			} else {
				assert.NotContains(t, store.Snapshot(), clientstate.StateKey)
			}
		})
	}
}

func TestRun_FinalActivationError_NoFallbackOnceStateObserved(t *testing.T) {
	ctx := testContext(t)
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, clientstate.StateKey, clientstate.Active.Value()))
	act := &fakeActivator{result: activationResult{err: apierrors.ErrInternal}}
	rec := newCountingRecorder()

	rep := newFakeCoordinator(store, act, clockwork.NewFakeClock(), rec).Run(ctx)

	want := Report{Outcome: OutcomeIndeterminate, Activations: 1, FinalState: clientstate.Active}
	if diff := cmp.Diff(want, rep, ignoreDuration); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, rec.fallbacks)
}

func TestRun_PollStopsWhenActiveObserved(t *testing.T) {
	ctx := testContext(t)
	clk := clockwork.NewFakeClock()
	store := kvstore.NewMemoryStore()
	act := &fakeActivator{result: activationResult{ok: true}}

	done := newFakeCoordinator(store, act, clk, nil).Start(ctx)

	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	require.NoError(t, store.Set(ctx, clientstate.LeaseKey, "0.other"))
	clk.Advance(testWindow)

	advance(t, ctx, clk, 1)
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	require.NoError(t, store.Set(ctx, clientstate.StateKey, clientstate.Active.Value()))
	setsBefore := store.Calls().Set
	clk.Advance(testWindow)
	rep := <-done

	assert.Equal(t, OutcomeLost, rep.Outcome)
	assert.Equal(t, 2, rep.PollCycles)
	assert.Equal(t, 1, rep.Activations, "losers still call the endpoint once")
	assert.Equal(t, clientstate.Active, rep.FinalState)
	assert.Equal(t, setsBefore, store.Calls().Set, "Active already observed, nothing rewritten")
}

func TestRun_LostWithStateObserved_SkipsPolling(t *testing.T) {
	ctx := testContext(t)
	clk := clockwork.NewFakeClock()
	store := kvstore.NewMemoryStore()
	act := &fakeActivator{result: activationResult{ok: true}}

	done := newFakeCoordinator(store, act, clk, nil).Start(ctx)
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	require.NoError(t, store.Set(ctx, clientstate.StateKey, clientstate.Active.Value()))
	clk.Advance(testWindow)
	rep := <-done

	assert.Equal(t, OutcomeLost, rep.Outcome)
	assert.Zero(t, rep.PollCycles)
	assert.Equal(t, 1, rep.Activations)
}

func TestRun_StorageFailsMidRace_Degrades(t *testing.T) {
	ctx := testContext(t)
	clk := clockwork.NewFakeClock()
	store := kvstore.NewMemoryStore()
	act := &fakeActivator{result: activationResult{ok: true}}

	done := newFakeCoordinator(store, act, clk, nil).Start(ctx)
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	store.FailOn(kvstore.OpGet, errPrivateMode)
	clk.Advance(testWindow)
	advance(t, ctx, clk, 1)
	rep := <-done

	want := Report{
		Outcome:       OutcomeIndeterminate,
		Degraded:      true,
		FallbackFired: true,
		LeaseToken:    "0.5",
		Activations:   1,
		Succeeded:     1,
		FinalState:    clientstate.Unset,
	}
	if diff := cmp.Diff(want, rep, ignoreDuration); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	assert.NotContains(t, store.Snapshot(), clientstate.StateKey, "degraded path never writes state")
}

func TestRun_StorageFailsAfterStateObserved_NoFallback(t *testing.T) {
	ctx := testContext(t)
	clk := clockwork.NewFakeClock()
	store := kvstore.NewMemoryStore()
	act := &fakeActivator{result: activationResult{ok: true}}

	done := newFakeCoordinator(store, act, clk, nil).Start(ctx)
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	store.FailOn(kvstore.OpSet, errPrivateMode)
	clk.Advance(testWindow)
	rep := <-done

	assert.Equal(t, OutcomeWon, rep.Outcome)
	assert.True(t, rep.Degraded)
	assert.False(t, rep.FallbackFired)
	assert.Zero(t, act.Calls())
	// FinalState holds the state the run tried to write; nothing was persisted.
	assert.Equal(t, clientstate.Initializing, rep.FinalState)
	assert.NotContains(t, store.Snapshot(), clientstate.StateKey)
}

func TestRun_ContextCanceled_Abandons(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	clk := clockwork.NewFakeClock()
	store := kvstore.NewMemoryStore()
	act := &fakeActivator{result: activationResult{ok: true}}

	done := newFakeCoordinator(store, act, clk, nil).Start(ctx)
	require.NoError(t, clk.BlockUntilContext(context.Background(), 1))
	cancel()
	rep := <-done

	assert.Equal(t, OutcomeAbandoned, rep.Outcome)
	assert.Zero(t, act.Calls())
	assert.Equal(t, "0.5", store.Snapshot()[clientstate.LeaseKey], "abandoned runs leave their lease behind")
}

func TestInit_NeverPanics(t *testing.T) {
	ctx := testContext(t)
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, clientstate.StateKey, clientstate.Active.Value()))
	act := &fakeActivator{panics: true}
	c := newFakeCoordinator(store, act, clockwork.NewFakeClock(), nil)

	assert.NotPanics(t, func() { c.Init(ctx) })
	assert.Equal(t, 1, act.Calls())
}

func TestStart_ClosesChannel(t *testing.T) {
	ctx := testContext(t)
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, clientstate.StateKey, clientstate.Active.Value()))
	c := newFakeCoordinator(store, &fakeActivator{result: activationResult{ok: true}}, clockwork.NewFakeClock(), nil)

	ch := c.Start(ctx)
	_, ok := <-ch
	assert.True(t, ok)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestRun_ConcurrentInstancesReachActive(t *testing.T) {
	const instances = 10
	ctx := testContext(t)
	store := kvstore.NewMemoryStore()
	act := &fakeActivator{result: activationResult{ok: true}}

	reports := make([]Report, instances)
	var wg sync.WaitGroup
	for i := range instances {
		c := New(store, act, Options{Window: 5 * time.Millisecond, PollAttempts: 5, Logger: discardLogger})
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = c.Run(ctx)
		}()
	}
	wg.Wait()

	won := 0
	for i, rep := range reports {
		assert.Contains(t, []RaceOutcome{OutcomeWon, OutcomeLost, OutcomeIndeterminate}, rep.Outcome, "instance %d", i)
		assert.Equal(t, 1, rep.Activations, "instance %d", i)
		assert.False(t, rep.Degraded)
		if rep.Outcome == OutcomeWon {
			won++
		}
	}
	assert.GreaterOrEqual(t, won, 1)
	assert.Equal(t, instances, act.Calls(), "one call per instance in the common case")
	assert.Equal(t, "2", store.Snapshot()[clientstate.StateKey])
}

func TestOptionsDefaults(t *testing.T) {
	c := New(kvstore.NewMemoryStore(), &fakeActivator{}, Options{})
	assert.Equal(t, 5*time.Second, c.window)
	assert.Equal(t, 5, c.policy.MaxRetries)
	assert.Equal(t, 5*time.Second, c.policy.Delay(3))
	assert.NotNil(t, c.clock)
	assert.NotEmpty(t, c.newToken())
}

func TestRun_PollBackoffModesStayBounded(t *testing.T) {
	for _, mode := range []config.RetryBackoffMode{config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential} {
		t.Run(string(mode), func(t *testing.T) {
			ctx := testContext(t)
			clk := clockwork.NewFakeClock()
			store := kvstore.NewMemoryStore()
			act := &fakeActivator{result: activationResult{ok: true}}

			opts := OptionsFromConfig(config.CoordinatorConfig{Window: testWindow, PollAttempts: 3, PollBackoff: mode})
			opts.Clock, opts.NewToken, opts.Logger = clk, fixedToken("0.5"), discardLogger
			done := New(store, act, opts).Start(ctx)

			require.NoError(t, clk.BlockUntilContext(ctx, 1))
			require.NoError(t, store.Set(ctx, clientstate.LeaseKey, "0.other"))
			clk.Advance(testWindow)
			for attempt := 1; attempt <= 3; attempt++ {
				require.NoError(t, clk.BlockUntilContext(ctx, 1))
				clk.Advance(opts.Policy.Delay(attempt))
			}
			rep := <-done

			assert.Equal(t, OutcomeLost, rep.Outcome)
			assert.Equal(t, 3, rep.PollCycles)
			assert.Equal(t, clientstate.Active, rep.FinalState)
		})
	}
}
