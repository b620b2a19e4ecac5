package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベル値のメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name, labelValue string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == labelValue {
					return m
				}
			}
		}
	}
	t.Fatalf("%s{%s} metric not found", name, labelValue)
	return nil
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DoubleRegisterPanics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

func TestRecordAnalysis_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAnalysis(OutcomeSuccess)
	c.RecordAnalysis(OutcomeSuccess)
	c.RecordAnalysis(OutcomeFallback)

	if v := findMetric(t, reg, "snaplist_analysis_total", OutcomeSuccess).GetCounter().GetValue(); v != 2 {
		t.Errorf("analysis_total{success} = %v, want 2", v)
	}
	if v := findMetric(t, reg, "snaplist_analysis_total", OutcomeFallback).GetCounter().GetValue(); v != 1 {
		t.Errorf("analysis_total{fallback} = %v, want 1", v)
	}
}

func TestRecordGeneration_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGeneration(OutcomeFailure)

	if v := findMetric(t, reg, "snaplist_generation_total", OutcomeFailure).GetCounter().GetValue(); v != 1 {
		t.Errorf("generation_total{failure} = %v, want 1", v)
	}
}

func TestRecordAILatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAILatency("analyze", 1500*time.Millisecond)

	h := findMetric(t, reg, "snaplist_ai_latency_seconds", "analyze").GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() != 1.5 {
		t.Errorf("sample sum = %v, want 1.5", h.GetSampleSum())
	}
}

func TestRecordUploadAndBlobDelete(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpload(OutcomeSuccess)
	c.RecordBlobDelete(OutcomeFailure)

	if v := findMetric(t, reg, "snaplist_upload_total", OutcomeSuccess).GetCounter().GetValue(); v != 1 {
		t.Errorf("upload_total{success} = %v, want 1", v)
	}
	if v := findMetric(t, reg, "snaplist_blob_delete_total", OutcomeFailure).GetCounter().GetValue(); v != 1 {
		t.Errorf("blob_delete_total{failure} = %v, want 1", v)
	}
}

func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(404)
	c.RecordHTTPStatus(404)

	if v := findMetric(t, reg, "snaplist_http_status_total", "404").GetCounter().GetValue(); v != 2 {
		t.Errorf("http_status_total{404} = %v, want 2", v)
	}
}

func TestNop_ImplementsRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordAnalysis(OutcomeSuccess)
	r.RecordHTTPStatus(200)
}
