package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOracle(t *testing.T) {
	before := testutil.ToFloat64(OracleCalls.WithLabelValues("unit", "error"))
	ObserveOracle("unit", time.Now(), errors.New("boom"))
	after := testutil.ToFloat64(OracleCalls.WithLabelValues("unit", "error"))
	if after != before+1 {
		t.Errorf("error counter = %v, want %v", after, before+1)
	}

	okBefore := testutil.ToFloat64(OracleCalls.WithLabelValues("unit", "ok"))
	ObserveOracle("unit", time.Now(), nil)
	if got := testutil.ToFloat64(OracleCalls.WithLabelValues("unit", "ok")); got != okBefore+1 {
		t.Errorf("ok counter = %v, want %v", got, okBefore+1)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	Extractions.WithLabelValues("table").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), "sprintfactory_plan_extractions_total") {
		t.Errorf("expected extraction counter in output, got:\n%s", body)
	}
}
