package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pressgate/internal/sanitize"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSyncRun_IncrementsCounterWithResultLabel は同期実行カウンタが結果ラベル付きで増加することを検証する。
func TestRecordSyncRun_IncrementsCounterWithResultLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncRun("posts", true, 100*time.Millisecond)
	c.RecordSyncRun("posts", true, 200*time.Millisecond)
	c.RecordSyncRun("posts", false, 50*time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "pressgate_sync_runs_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				var result string
				for _, label := range m.GetLabel() {
					if label.GetName() == "result" {
						result = label.GetValue()
					}
				}
				val := m.GetCounter().GetValue()
				switch result {
				case "success":
					if val != 2 {
						t.Errorf("sync_runs_total{result=success} = %v, want 2", val)
					}
				case "failure":
					if val != 1 {
						t.Errorf("sync_runs_total{result=failure} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected result label: %s", result)
				}
			}
		}
	}
	if !found {
		t.Error("pressgate_sync_runs_total metric not found")
	}
}

// TestRecordSyncRun_ObservesDurationHistogram は同期処理時間のヒストグラムに値が記録されることを検証する。
func TestRecordSyncRun_ObservesDurationHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncRun("posts", true, 100*time.Millisecond)
	c.RecordSyncRun("posts", false, 2*time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "pressgate_sync_duration_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("pressgate_sync_duration_seconds metric not found")
	}
}

// TestRecordSyncRecords_AddsInsertedAndUpdated はレコード数カウンタが加算されることを検証する。
func TestRecordSyncRecords_AddsInsertedAndUpdated(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncRecords("posts", 10, 3)
	c.RecordSyncRecords("posts", 5, 2)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var inserted, updated float64
	for _, mf := range metrics {
		switch mf.GetName() {
		case "pressgate_records_inserted_total":
			inserted = mf.GetMetric()[0].GetCounter().GetValue()
		case "pressgate_records_updated_total":
			updated = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if inserted != 15 {
		t.Errorf("records_inserted_total = %v, want 15", inserted)
	}
	if updated != 5 {
		t.Errorf("records_updated_total = %v, want 5", updated)
	}
}

// TestRecordUpstreamStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordUpstreamStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamStatus(200)
	c.RecordUpstreamStatus(200)
	c.RecordUpstreamStatus(503)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "pressgate_upstream_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("upstream_status_total{status_code=200} = %v, want 2", val)
					}
				case "503":
					if val != 1 {
						t.Errorf("upstream_status_total{status_code=503} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("pressgate_upstream_status_total metric not found")
	}
}

// TestRecordSanitize_AddsReportCounts はサニタイズレポートの除去件数が加算されることを検証する。
func TestRecordSanitize_AddsReportCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSanitize("posts", sanitize.Report{DroppedElements: 3, DroppedAttrs: 5, BlockedEmbeds: 1})
	c.RecordSanitize("posts", sanitize.Report{DroppedElements: 2, DroppedAttrs: 0, BlockedEmbeds: 1})

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var elements, attrs, embeds float64
	for _, mf := range metrics {
		switch mf.GetName() {
		case "pressgate_sanitize_dropped_elements_total":
			elements = mf.GetMetric()[0].GetCounter().GetValue()
		case "pressgate_sanitize_dropped_attrs_total":
			attrs = mf.GetMetric()[0].GetCounter().GetValue()
		case "pressgate_sanitize_blocked_embeds_total":
			embeds = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if elements != 5 {
		t.Errorf("sanitize_dropped_elements_total = %v, want 5", elements)
	}
	if attrs != 5 {
		t.Errorf("sanitize_dropped_attrs_total = %v, want 5", attrs)
	}
	if embeds != 2 {
		t.Errorf("sanitize_blocked_embeds_total = %v, want 2", embeds)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordSyncRun("posts", true, 500*time.Millisecond)
	c.RecordSyncRecords("posts", 3, 1)
	c.RecordUpstreamStatus(200)
	c.RecordSanitize("posts", sanitize.Report{DroppedElements: 1})

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"pressgate_sync_runs_total",
		"pressgate_sync_duration_seconds",
		"pressgate_records_inserted_total",
		"pressgate_upstream_status_total",
		"pressgate_sanitize_dropped_elements_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordUpstreamStatus(200)
	c2.RecordUpstreamStatus(200)
	c2.RecordUpstreamStatus(200)

	metrics1, _ := reg1.Gather()
	metrics2, _ := reg2.Gather()

	var val1, val2 float64
	for _, mf := range metrics1 {
		if mf.GetName() == "pressgate_upstream_status_total" {
			val1 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	for _, mf := range metrics2 {
		if mf.GetName() == "pressgate_upstream_status_total" {
			val2 = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if val1 != 1 {
		t.Errorf("reg1 upstream_status = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 upstream_status = %v, want 2", val2)
	}
}
