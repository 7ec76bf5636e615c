package metrics

import "time"

// ActivationResult enumerates outcomes of a call to the activation endpoint.
type ActivationResult string

const (
	ActivationSuccess  ActivationResult = "success"
	ActivationRejected ActivationResult = "rejected" // endpoint answered false
	ActivationError    ActivationResult = "error"
)

// ServedResult enumerates how the activation server answered a request.
type ServedResult string

const (
	ServedIssued    ServedResult = "issued"
	ServedRefreshed ServedResult = "refreshed"
	ServedRejected  ServedResult = "rejected"
	ServedInjected  ServedResult = "injected_failure"
)

// Recorder defines observability hooks for coordinator runs and the
// activation server.
type Recorder interface {
	ObserveRunDuration(d time.Duration)
	IncRaceOutcome(outcome string)
	IncActivation(result ActivationResult)
	IncFallbackActivation()
	IncPollCycle()
	IncStorageFailure(op string)
	IncServedActivation(result ServedResult)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(time.Duration) {}
func (NoopRecorder) IncRaceOutcome(string) {}
func (NoopRecorder) IncActivation(ActivationResult) {}
func (NoopRecorder) IncFallbackActivation() {}
func (NoopRecorder) IncPollCycle() {}
func (NoopRecorder) IncStorageFailure(string) {}
func (NoopRecorder) IncServedActivation(ServedResult) {}
