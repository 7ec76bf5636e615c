package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"git.home.luguber.info/inful/clientboot/internal/bootstrap"
	"git.home.luguber.info/inful/clientboot/internal/clientstate"
	"git.home.luguber.info/inful/clientboot/internal/foundation/errors"
	"git.home.luguber.info/inful/clientboot/internal/metrics"
)

// BootstrapCmd implements the 'bootstrap' command.
type BootstrapCmd struct {
	JSON   bool `help:"Print the report as JSON"`
	Strict bool `help:"Exit non-zero unless the client ends up active"`
}

func (b *BootstrapCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	client, err := newActivationClient(cfg.Activation)
	if err != nil {
		return err
	}
	report := newCoordinator(cfg, store, client, metrics.NoopRecorder{}).Run(ctx)

	if err := writeReport(g.out(), report, b.JSON); err != nil {
		return err
	}
	if b.Strict && report.FinalState != clientstate.Active {
		return errors.ActivationError("client did not reach the active state").
			WithContext("outcome", string(report.Outcome)).
			WithContext("state", report.FinalState.String()).
			Build()
	}
	return nil
}

type reportView struct {
	Outcome       string  `json:"outcome"`
	FinalState    string  `json:"final_state"`
	Activations   int     `json:"activations"`
	Succeeded     int     `json:"succeeded"`
	PollCycles    int     `json:"poll_cycles"`
	Degraded      bool    `json:"degraded"`
	FallbackFired bool    `json:"fallback_fired"`
	LeaseToken    string  `json:"lease_token,omitempty"`
	DurationMS    float64 `json:"duration_ms"`
}

func writeReport(w io.Writer, r bootstrap.Report, asJSON bool) error {
	v := reportView{
		Outcome:       string(r.Outcome),
		FinalState:    r.FinalState.String(),
		Activations:   r.Activations,
		Succeeded:     r.Succeeded,
		PollCycles:    r.PollCycles,
		Degraded:      r.Degraded,
		FallbackFired: r.FallbackFired,
		LeaseToken:    r.LeaseToken,
		DurationMS:    float64(r.Duration.Microseconds()) / 1000,
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "outcome:\t%s\n", v.Outcome)
	_, _ = fmt.Fprintf(tw, "final state:\t%s\n", v.FinalState)
	_, _ = fmt.Fprintf(tw, "activations:\t%d (%d succeeded)\n", v.Activations, v.Succeeded)
	_, _ = fmt.Fprintf(tw, "poll cycles:\t%d\n", v.PollCycles)
	_, _ = fmt.Fprintf(tw, "degraded:\t%t (fallback fired: %t)\n", v.Degraded, v.FallbackFired)
	_, _ = fmt.Fprintf(tw, "duration:\t%.1fms\n", v.DurationMS)
	return tw.Flush()
}
