package bootstrap

import (
	"time"

	"git.home.luguber.info/inful/clientboot/internal/clientstate"
)

// RaceOutcome tags how an instance fared in the lease race.
type RaceOutcome string

const (
	// OutcomeWon means this instance's lease survived the window and it
	// performed the guarded activation.
	OutcomeWon RaceOutcome = "won"
	// OutcomeLost means another instance overwrote the lease or set the state
	// during the window.
	OutcomeLost RaceOutcome = "lost"
	// OutcomeIndeterminate means no race was contested: the state was already
	// set on entry, or storage failed before the race resolved.
	OutcomeIndeterminate RaceOutcome = "indeterminate"
	// OutcomeAbandoned means the context ended while the run was waiting.
	OutcomeAbandoned RaceOutcome = "abandoned"
)

// Report describes one coordinator run. Init discards it.
type Report struct {
	Outcome RaceOutcome
	// Degraded is set when a storage failure forced the no-coordination path.
	Degraded bool
	// FallbackFired is set when the degraded path issued its direct activation.
	FallbackFired bool
	// LeaseToken is the token this run wrote, empty if it took no lease.
	LeaseToken string
	// Activations counts activation calls issued; Succeeded those that returned true.
	Activations int
	Succeeded   int
	// PollCycles counts poll sleeps spent waiting for another instance.
	PollCycles int
	// FinalState is the last state this run observed or wrote. When a write
	// fails it holds the value the run tried to write, not what is persisted;
	// that claimed state is also what keeps the fallback from firing.
	FinalState clientstate.State
	Duration   time.Duration
}
