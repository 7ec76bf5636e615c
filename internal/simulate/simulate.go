// Package simulate runs several coordinator instances against one storage
// origin, the way several browser tabs of one client would.
package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/clientboot/internal/activation"
	"git.home.luguber.info/inful/clientboot/internal/bootstrap"
	"git.home.luguber.info/inful/clientboot/internal/clientstate"
	"git.home.luguber.info/inful/clientboot/internal/kvstore"
	"git.home.luguber.info/inful/clientboot/internal/logfields"
	"git.home.luguber.info/inful/clientboot/internal/observability"
)

// Options configures a simulation.
type Options struct {
	Instances int
	// Spread staggers instance start times evenly across this duration.
	Spread    time.Duration
	Store     kvstore.Store
	Activator activation.Activator
	// Coordinator is the base configuration every instance gets.
	Coordinator bootstrap.Options
	Logger      *slog.Logger
}

// Summary aggregates the reports of all instances.
type Summary struct {
	Instances   int
	Activations int
	Succeeded   int
	Outcomes    map[bootstrap.RaceOutcome]int
	Degraded    int
	FinalState  clientstate.State
	Reports     []bootstrap.Report
	Duration    time.Duration
}

// Winners returns how many instances won the lease race.
func (s Summary) Winners() int { return s.Outcomes[bootstrap.OutcomeWon] }

// String renders a one-line human summary.
func (s Summary) String() string {
	keys := make([]string, 0, len(s.Outcomes))
	for k := range s.Outcomes {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.Outcomes[bootstrap.RaceOutcome(k)]))
	}
	return fmt.Sprintf("instances=%d activations=%d succeeded=%d degraded=%d outcomes[%s] final_state=%s duration=%s",
		s.Instances, s.Activations, s.Succeeded, s.Degraded, strings.Join(parts, " "), s.FinalState, s.Duration.Round(time.Millisecond))
}

// Run starts the instances, waits for all of them and summarizes. Each
// instance logs with its number attached to the context.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.Instances <= 0 {
		return Summary{}, fmt.Errorf("instances must be positive, got %d", opts.Instances)
	}
	if opts.Store == nil || opts.Activator == nil {
		return Summary{}, fmt.Errorf("simulation needs a store and an activator")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Coordinator.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	start := clk.Now()

	var step time.Duration
	if opts.Instances > 1 && opts.Spread > 0 {
		step = opts.Spread / time.Duration(opts.Instances-1)
	}

	reports := make([]bootstrap.Report, opts.Instances)
	g, gctx := errgroup.WithContext(ctx)
	for i := range opts.Instances {
		co := opts.Coordinator
		co.Clock = clk
		co.Logger = logger
		coord := bootstrap.New(opts.Store, opts.Activator, co)
		delay := time.Duration(i) * step
		g.Go(func() error {
			ictx := observability.WithInstance(gctx, i)
			if delay > 0 {
				select {
				case <-clk.After(delay):
				case <-ictx.Done():
					return ictx.Err()
				}
			}
			reports[i] = coord.Run(ictx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("simulation interrupted: %w", err)
	}

	sum := Summary{
		Instances: opts.Instances,
		Outcomes:  make(map[bootstrap.RaceOutcome]int),
		Reports:   reports,
		Duration:  clk.Since(start),
	}
	for _, r := range reports {
		sum.Activations += r.Activations
		sum.Succeeded += r.Succeeded
		sum.Outcomes[r.Outcome]++
		if r.Degraded {
			sum.Degraded++
		}
	}
	if v, ok, err := opts.Store.Get(ctx, clientstate.StateKey); err == nil {
		sum.FinalState = clientstate.Parse(v, ok)
	} else {
		logger.Warn("Could not read final client state", logfields.Error(err))
	}
	return sum, nil
}
