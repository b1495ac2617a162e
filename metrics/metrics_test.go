package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/un9021/uniset2/metrics"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := metrics.New()
	m.SessionsActive.WithLabelValues("ws").Set(3)
	m.EgressDropped.WithLabelValues("ws").Add(2)
	m.Notifications.WithLabelValues("udp").Inc()
	m.HeartbeatFailures.Inc()
	m.SMCallErrors.WithLabelValues("ask").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"uniset2_sessions_active",
		"uniset2_egress_dropped_total",
		"uniset2_notifications_total",
		"uniset2_heartbeat_write_failures_total",
		"uniset2_sm_call_errors_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing metric %q in output", want)
		}
	}
}
