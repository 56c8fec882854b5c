package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(clientRequests.WithLabelValues("catalog-test", "200"))
	RecordRequest("catalog-test", http.StatusOK, 20*time.Millisecond)
	after := testutil.ToFloat64(clientRequests.WithLabelValues("catalog-test", "200"))

	if after-before != 1 {
		t.Errorf("requests_total delta = %v, want 1", after-before)
	}
}

func TestRecordRequest_NoResponse(t *testing.T) {
	RecordRequest("", 0, 0)
	if got := testutil.ToFloat64(clientRequests.WithLabelValues("unknown", "error")); got < 1 {
		t.Errorf("requests_total{unknown,error} = %v, want >= 1", got)
	}
}

func TestRecordRefresh(t *testing.T) {
	success := AuthRefreshes.WithLabelValues("refresh-test", "success")
	before := testutil.ToFloat64(success)
	RecordRefresh("refresh-test", true)
	RecordRefresh("refresh-test", false)

	if got := testutil.ToFloat64(success) - before; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(AuthRefreshes.WithLabelValues("refresh-test", "failure")); got < 1 {
		t.Errorf("failure count = %v, want >= 1", got)
	}
}

func TestRecordSubquery(t *testing.T) {
	failed := FacetSubqueries.WithLabelValues("variants-test", Outcome(false))
	before := testutil.ToFloat64(failed)
	RecordSubquery("variants-test", false)
	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Errorf("failure delta = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	RecordSubquery("handler-test", true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "storefront_facets_subqueries_total") {
		t.Error("metrics output missing storefront_facets_subqueries_total")
	}
}
