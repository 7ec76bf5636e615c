package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ Recorder = (*PrometheusRecorder)(nil)
var _ Recorder = NoopRecorder{}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveRunDuration(150 * time.Millisecond)
	pr.IncRaceOutcome("won")
	pr.IncRaceOutcome("won")
	pr.IncActivation(ActivationSuccess)
	pr.IncFallbackActivation()
	pr.IncPollCycle()
	pr.IncStorageFailure("get")
	pr.IncServedActivation(ServedIssued)

	if got := testutil.ToFloat64(pr.raceOutcomes.WithLabelValues("won")); got != 2 {
		t.Fatalf("expected 2 won outcomes, got %v", got)
	}
	if got := testutil.ToFloat64(pr.storageFailures.WithLabelValues("get")); got != 1 {
		t.Fatalf("expected 1 storage failure, got %v", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 7 {
		t.Fatalf("expected 7 metric families, got %d", len(mfs))
	}
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncRaceOutcome("won")
	pr.ObserveRunDuration(time.Second)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncPollCycle()

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "clientboot_poll_cycles_total 1") {
		t.Fatalf("expected poll cycle counter in scrape, got:\n%s", body)
	}
}
