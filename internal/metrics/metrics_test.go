package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"microdrop.capture.duration", m.CaptureDuration},
		{"microdrop.process.duration", m.ProcessDuration},
		{"microdrop.transcribe.duration", m.TranscribeDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.2)
		tc.h.Record(ctx, 3.5)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			if met.Unit != "s" {
				t.Errorf("unit = %q, want s", met.Unit)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestCapture(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Capture(ctx, 2*time.Second, 96000, 0, 0)
	m.Capture(ctx, time.Second, 48000, 128, 3)

	rm := collect(t, reader)

	if got := sumValue(t, rm, "microdrop.capture.samples"); got != 144000 {
		t.Errorf("samples = %d, want 144000", got)
	}
	if got := sumValue(t, rm, "microdrop.capture.dropped"); got != 128 {
		t.Errorf("dropped = %d, want 128", got)
	}
	if got := sumValue(t, rm, "microdrop.stream.errors"); got != 3 {
		t.Errorf("stream errors = %d, want 3", got)
	}

	hist := findMetric(rm, "microdrop.capture.duration").Data.(metricdata.Histogram[float64])
	if got := hist.DataPoints[0].Sum; got != 3 {
		t.Errorf("duration sum = %v, want 3", got)
	}
}

func TestSessionStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Session(ctx, StatusOK)
	m.Session(ctx, StatusOK)
	m.Session(ctx, StatusTooShort)

	rm := collect(t, reader)
	met := findMetric(rm, "microdrop.sessions")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])

	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value("status")
		got[v.AsString()] = dp.Value
	}
	if got[StatusOK] != 2 || got[StatusTooShort] != 1 {
		t.Errorf("unexpected session counts %v", got)
	}
}

func TestNop(t *testing.T) {
	m := Nop()
	m.Capture(context.Background(), time.Second, 10, 1, 1)
	m.Session(context.Background(), StatusError)
}

func TestPrometheusHandler(t *testing.T) {
	p, err := NewPrometheusProvider("test")
	if err != nil {
		t.Fatalf("NewPrometheusProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.Session(context.Background(), StatusOK)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "microdrop_sessions") {
		t.Errorf("exposition missing sessions counter:\n%s", rec.Body.String())
	}
}

func TestSeparateProviders(t *testing.T) {
	for i := 0; i < 2; i++ {
		p, err := NewPrometheusProvider("test")
		if err != nil {
			t.Fatalf("provider %d: %v", i, err)
		}
		_ = p.Shutdown(context.Background())
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok")
	})

	done := make(chan error, 1)
	go func() { done <- serveListener(ctx, ln, h, zerolog.Nop()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
