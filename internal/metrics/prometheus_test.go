package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oswaldb22/apple-intelligence-js-sdk/pkg/launcher"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.IncCompletion("base", true)
	r.IncCompletion("base", false)
	r.ObserveRequest("GET /health", 200, time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(r.completions.WithLabelValues("base", "stream")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.completions.WithLabelValues("base", "blocking")))
	require.Equal(t, 1, testutil.CollectAndCount(r.requestDuration))
}

func TestPrometheusLaunchRecorderCounts(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusLaunchRecorder(reg)

	r.IncProbe(true)
	r.IncProbe(false)
	r.IncProbe(false)
	r.IncLaunch(true)
	r.ObserveEnsure(launcher.OutcomeLaunched, 150*time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(r.probes.WithLabelValues("healthy")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.probes.WithLabelValues("unhealthy")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.launches.WithLabelValues("success")))
	require.Equal(t, 1, testutil.CollectAndCount(r.ensureDuration))
}

func TestPrometheusLaunchRecorderReusesRegisteredCollectors(t *testing.T) {
	reg := prom.NewRegistry()
	first := NewPrometheusLaunchRecorder(reg)
	second := NewPrometheusLaunchRecorder(reg)

	first.IncLaunch(true)
	second.IncLaunch(true)

	require.Equal(t, 2.0, testutil.ToFloat64(first.launches.WithLabelValues("success")))
}

func TestLaunchAndServerRecordersShareRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	srv := NewPrometheusRecorder(reg)
	lr := NewPrometheusLaunchRecorder(reg)

	srv.IncCompletion("base", false)
	lr.IncProbe(true)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusLaunchRecorder(reg)
	r.IncLaunch(false)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `apple_intelligence_launches_total{result="failure"} 1`), string(body))
}

func TestNoopRecorderSatisfiesInterfaces(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveRequest("GET /health", 200, time.Second)

	var lr launcher.Recorder = NoopRecorder{}
	lr.ObserveEnsure(launcher.OutcomeReused, time.Second)
	lr.IncProbe(true)
}
