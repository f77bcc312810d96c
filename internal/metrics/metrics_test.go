package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/claimlens/claimlens/internal/claims"
	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/nlp"
)

func testConfig() config.MetricsConfig {
	return config.MetricsConfig{Enabled: true, Namespace: "test"}
}

func TestCollector_AnalysisDone(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.AnalysisDone(&claims.AnalysisResult{Severity: claims.TierHigh, FraudRisk: claims.TierLow, FraudScore: 1}, 40*time.Millisecond)
	c.AnalysisDone(&claims.AnalysisResult{Severity: claims.TierHigh, FraudRisk: claims.TierLow}, 10*time.Millisecond)
	c.AnalysisDone(&claims.AnalysisResult{Severity: claims.TierLow, FraudRisk: claims.TierHigh, FraudScore: 5}, time.Millisecond)
	c.AnalysisDone(nil, time.Second)

	if got := testutil.ToFloat64(c.analyses.WithLabelValues("High", "Low")); got != 2 {
		t.Errorf("High/Low analyses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.analyses.WithLabelValues("Low", "High")); got != 1 {
		t.Errorf("Low/High analyses = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.analysisDuration); got != 1 {
		t.Errorf("duration series = %d", got)
	}
}

func TestCollector_StageFailed(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.StageFailed(claims.StageSeverity, fmt.Errorf("onnx: %w", nlp.ErrModelUnavailable))
	c.StageFailed(claims.StageSeverity, errors.New("boom"))
	c.StageFailed(claims.StageSeverity, errors.New("boom again"))

	if got := testutil.ToFloat64(c.stageFailures.WithLabelValues("severity", "model_unavailable")); got != 1 {
		t.Errorf("model_unavailable = %v", got)
	}
	if got := testutil.ToFloat64(c.stageFailures.WithLabelValues("severity", "error")); got != 2 {
		t.Errorf("error = %v", got)
	}
}

func TestCollector_RecordHTTP(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	tests := []struct {
		code  int
		label string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{400, "4xx"},
		{503, "5xx"},
	}
	for _, tt := range tests {
		c.RecordHTTP("/v1/analyze", tt.code, 5*time.Millisecond)
	}
	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("/v1/analyze", "2xx")); got != 2 {
		t.Errorf("2xx = %v", got)
	}
	for _, tt := range tests[2:] {
		if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("/v1/analyze", tt.label)); got != 1 {
			t.Errorf("%s = %v", tt.label, got)
		}
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.AnalysisDone(&claims.AnalysisResult{Severity: claims.TierLow, FraudRisk: claims.TierLow}, time.Millisecond)
	c.RecordBatchClaim("ok")

	if got := testutil.ToFloat64(c.analyses.WithLabelValues("Low", "Low")); got != 0 {
		t.Errorf("disabled collector recorded %v analyses", got)
	}
	if got := testutil.ToFloat64(c.batchClaims.WithLabelValues("ok")); got != 0 {
		t.Errorf("disabled collector recorded %v batch claims", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.AnalysisDone(&claims.AnalysisResult{}, 0)
	c.StageFailed("x", nil)
	c.RecordHTTP("/", 200, 0)
	c.RecordBatchClaim("ok")
}

func TestHandler(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.RecordBatchClaim("ok")
	c.RecordBatchClaim("error")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{`test_batch_claims_total{status="ok"} 1`, `test_batch_claims_total{status="error"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("scrape missing %q:\n%s", want, body)
		}
	}
}
