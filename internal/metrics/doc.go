// Package metrics provides observability hooks for the client bootstrap
// coordinator and the reference activation server.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	coord := bootstrap.New(store, client, bootstrap.Options{
//	    Recorder: metrics.NewPrometheusRecorder(registry),
//	})
//
// HTTPHandler exposes a registry in the Prometheus text format; the serve and
// daemon commands mount it at /metrics when metrics.enabled is set.
package metrics
