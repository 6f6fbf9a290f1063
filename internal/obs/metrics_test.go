package obs

import (
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                      "/",
		"/metrics":                              "/metrics",
		"/v1/modules":                           "/v1/modules",
		"/v1/modules/assets":                    "/v1/modules/:key",
		"/v1/permissions/staff":                 "/v1/permissions/staff",
		"/v1/permissions/staff/assets":          "/v1/permissions/staff/:module",
		"/v1/permissions/staff/assets?x=1":      "/v1/permissions/staff/:module",
		"/v1/sequences/fp-docs-2025":            "/v1/sequences/:series",
		"/v1/entities/asset/01HX/events":        "/v1/entities/asset/:id/events",
		"/v1/entities/asset/01HX/other":         "/v1/entities/asset/01HX/other",
		"/v1/audit-logs":                        "/v1/audit-logs",
		"/v1/audit-logs?module=assets&limit=10": "/v1/audit-logs",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInitBuildInfoReplacesLabels(t *testing.T) {
	InitBuildInfo("1.0.0", "abc123")
	InitBuildInfo("1.0.1", "def456")

	if n := testutil.CollectAndCount(buildInfo); n != 1 {
		t.Fatalf("expected a single build_info series, got %d", n)
	}
	if v := testutil.ToFloat64(buildInfo.WithLabelValues("1.0.1", "def456", runtime.Version())); v != 1 {
		t.Fatalf("unexpected build_info value %v", v)
	}
	if testutil.ToFloat64(startTime) <= 0 {
		t.Fatal("expected start time to be set")
	}
}
