package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/internal/logging"
)

type fakeSource struct {
	snapshot adminauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() adminauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

type fakeStatusSource struct {
	fakeSource
	status adminauth.Status
}

func (f fakeStatusSource) Status() adminauth.Status { return f.status }

func emptySnapshot() adminauth.MetricsSnapshot {
	return adminauth.MetricsSnapshot{
		Counters:   map[adminauth.MetricID]uint64{},
		Histograms: map[adminauth.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{snapshot: emptySnapshot()})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderStatusGaugesWithoutCounters(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeStatusSource{
		fakeSource: fakeSource{snapshot: emptySnapshot()},
		status:     adminauth.Status{Initialized: true, Admins: 3, SuperAdmins: 1, LockedAdmins: 1, Revision: 42},
	})

	out := exp.Render()
	for _, want := range []string{
		"adminauth_store_up 1",
		"adminauth_store_admins 3",
		"adminauth_store_locked_admins 1",
		"adminauth_store_revision 42",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "adminauth_login_success_total") {
		t.Fatalf("counters must be omitted while metrics are disabled:\n%s", out)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: adminauth.MetricsSnapshot{
			Counters: map[adminauth.MetricID]uint64{
				adminauth.MetricLoginSuccess: 7,
			},
			Histograms: map[adminauth.MetricID][]uint64{
				adminauth.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "adminauth_login_success_total 7") {
		t.Fatalf("expected login_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "adminauth_login_latency_seconds_bucket{le=\"0.01\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "adminauth_login_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if strings.Contains(out, "adminauth_validate_latency_seconds") {
		t.Fatalf("histograms absent from the snapshot must be skipped:\n%s", out)
	}
	if !strings.Contains(out, "adminauth_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: adminauth.MetricsSnapshot{
			Counters:   map[adminauth.MetricID]uint64{adminauth.MetricLoginSuccess: 1},
			Histograms: map[adminauth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRenderFromEngine(t *testing.T) {
	cfg := adminauth.DefaultConfig()
	cfg.StorePath = filepath.Join(t.TempDir(), "admin-config.json")
	cfg.InitDefaults.BcryptRounds = 4
	cfg.Metrics.Enabled = true
	if err := adminauth.Initialize(cfg, adminauth.InitOptions{Username: "root", Password: "root-password"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	engine, err := adminauth.New().WithConfig(cfg).WithLogger(logging.Discard()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	_, _ = engine.Login(context.Background(), "root", "wrong-password")

	out := NewPrometheusExporter(engine).Render()
	if !strings.Contains(out, "adminauth_login_failure_total 1") || !strings.Contains(out, "adminauth_store_admins 1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: adminauth.MetricsSnapshot{
			Counters: map[adminauth.MetricID]uint64{
				adminauth.MetricLoginSuccess:     1000,
				adminauth.MetricLoginFailure:     40,
				adminauth.MetricSessionValidated: 800,
				adminauth.MetricSessionExpired:   10,
			},
			Histograms: map[adminauth.MetricID][]uint64{
				adminauth.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
