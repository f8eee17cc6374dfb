package otel

import (
	"context"
	"sync"
	"testing"

	webster "github.com/babymilooo/webster-backend"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot webster.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() webster.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := webster.MetricsSnapshot{
		Counters:   make(map[webster.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[webster.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func int64Value(t *testing.T, rm metricdata.ResourceMetrics, name string) (int64, bool) {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return data.DataPoints[0].Value, true
			case metricdata.Gauge[int64]:
				return data.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterCollectsValues(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: webster.MetricsSnapshot{
			Counters: map[webster.MetricID]uint64{
				webster.MetricLoginSuccess: 3,
				webster.MetricLogout:       0,
			},
			Histograms: map[webster.MetricID][]uint64{
				webster.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := New(provider.Meter("webster-test"), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	cases := map[string]int64{
		"webster_login_success_total":                      3,
		"webster_audit_dropped_total":                      1,
		"webster_validate_latency_seconds_bucket_le_0_005": 1,
		"webster_validate_latency_seconds_bucket_le_inf":   8,
		"webster_validate_latency_seconds_count":           8,
	}
	for name, want := range cases {
		got, ok := int64Value(t, rm, name)
		if !ok {
			t.Fatalf("%s not collected", name)
		}
		if got != want {
			t.Fatalf("%s = %d, want %d", name, got, want)
		}
	}
	if _, ok := int64Value(t, rm, "webster_refresh_success_total"); ok {
		t.Fatal("counter absent from snapshot should not be observed")
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader(t)

	if _, err := New(provider.Meter("webster-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestCloseStopsObservation(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{snapshot: webster.MetricsSnapshot{
		Counters: map[webster.MetricID]uint64{webster.MetricLoginSuccess: 5},
	}}

	exp, err := New(provider.Meter("webster-test"), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if _, ok := int64Value(t, rm, "webster_login_success_total"); ok {
		t.Fatal("unregistered callback still observed")
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{
		snapshot: webster.MetricsSnapshot{
			Counters: map[webster.MetricID]uint64{webster.MetricLoginSuccess: 1},
			Histograms: map[webster.MetricID][]uint64{
				webster.MetricValidateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := New(provider.Meter("webster-test"), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[webster.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
