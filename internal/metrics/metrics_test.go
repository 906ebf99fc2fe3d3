package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveExchangeCountsByOutcome(t *testing.T) {
	m := New()
	m.ObserveExchange("GET", "/openApi/swap/v2/user/balance", "ok", 20*time.Millisecond)
	m.ObserveExchange("GET", "/openApi/swap/v2/user/balance", "ok", 30*time.Millisecond)
	m.ObserveExchange("POST", "/openApi/swap/v2/trade/order", "api_error", time.Millisecond)

	got := testutil.ToFloat64(m.exchangeRequests.WithLabelValues("GET", "/openApi/swap/v2/user/balance", "ok"))
	if got != 2 {
		t.Fatalf("exchange_requests_total{ok} = %v, want 2", got)
	}
	got = testutil.ToFloat64(m.exchangeRequests.WithLabelValues("POST", "/openApi/swap/v2/trade/order", "api_error"))
	if got != 1 {
		t.Fatalf("exchange_requests_total{api_error} = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveExchange("GET", "/x", "ok", time.Second)
	m.ObserveCommand("balance", "ok")
	m.ObserveHTTPError(500)
	m.ObserveAlert("clock_skew", "sent")
	if m.Registry() != nil {
		t.Fatalf("Registry() on nil metrics should be nil")
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveCommand("market", "validation_error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `relay_bot_commands_total{command="market",outcome="validation_error"} 1`) {
		t.Fatalf("metrics body missing bot command counter:\n%s", rec.Body.String())
	}
}

func TestObserveAlertCountsByOutcome(t *testing.T) {
	m := New()
	m.ObserveAlert("close_all_failed", "sent")
	m.ObserveAlert("close_all_failed", "dropped")
	m.ObserveAlert("close_all_failed", "dropped")

	if got := testutil.ToFloat64(m.alerts.WithLabelValues("close_all_failed", "dropped")); got != 2 {
		t.Fatalf("alerts_total{dropped} = %v, want 2", got)
	}
}
