package detectors

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"logguardd/internal/detect"
	"logguardd/internal/metrics"
	"logguardd/internal/parser"
	"logguardd/internal/types"
)

func boolPtr(b bool) *bool { return &b }

func newBruteForce(threshold, window int) *BruteForce {
	return NewBruteForce(types.BruteForceConfig{
		RequestsThreshold: threshold,
		WindowSeconds:     window,
		MaxTrackedIPs:     100,
	})
}

func accessEvent(ip, method, path string, status int, ts time.Time) *types.Event {
	return &types.Event{
		Source:     "apache",
		Kind:       types.KindAccess,
		IP:         ip,
		Method:     method,
		Path:       path,
		StatusCode: status,
		Timestamp:  ts,
	}
}

func TestBruteForce_LoginBurstFiresOnce(t *testing.T) {
	b := newBruteForce(20, 2)
	n := parser.NewNormalizer()
	line := `10.0.0.5 - - [01/Jan/2024:00:00:01 +0000] "GET /login HTTP/1.1" 401 123`

	var incidents []*types.Incident
	for i := 1; i <= 20; i++ {
		inc, err := b.Evaluate(n.Normalize("apache", line))
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if inc != nil {
			if i != 20 {
				t.Fatalf("fired on event %d, want 20", i)
			}
			incidents = append(incidents, inc)
		}
	}
	if len(incidents) != 1 {
		t.Fatalf("got %d incidents, want 1", len(incidents))
	}
	inc := incidents[0]
	if inc.AttackType != "HTTP Flood / Brute Force" || inc.Severity != types.SeverityCritical {
		t.Errorf("incident = %s/%s", inc.AttackType, inc.Severity)
	}
	if inc.IP != "10.0.0.5" || inc.Description != "20 requests in <= 2s" {
		t.Errorf("incident ip/description = %s / %q", inc.IP, inc.Description)
	}

	// History was reset: 19 more do not fire, the 20th does
	for i := 1; i <= 20; i++ {
		inc, _ := b.Evaluate(n.Normalize("apache", line))
		if i < 20 && inc != nil {
			t.Fatalf("re-fired after reset on event %d", i)
		}
		if i == 20 && inc == nil {
			t.Fatal("second full burst did not fire")
		}
	}
}

func TestBruteForce_LowSignalSuppressed(t *testing.T) {
	b := newBruteForce(5, 2)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if inc, _ := b.Evaluate(accessEvent("10.0.0.9", "GET", "/index.html", 200, ts)); inc != nil {
			t.Fatalf("low-signal burst fired on event %d", i+1)
		}
	}

	// Count is already at the threshold, so one high-signal request fires
	inc, _ := b.Evaluate(accessEvent("10.0.0.9", "GET", "/index.html", 403, ts))
	if inc == nil {
		t.Fatal("high-signal request at threshold did not fire")
	}
}

func TestBruteForce_Severity(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		method string
		path   string
		status int
		want   types.Severity
	}{
		{"auth path", "GET", "/wp-login.php", 200, types.SeverityCritical},
		{"failure status", "GET", "/api/items", 429, types.SeverityCritical},
		{"mutating verb only", "post", "/api/items", 201, types.SeverityHigh},
		{"delete", "DELETE", "/api/items/1", 204, types.SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBruteForce(3, 2)
			var inc *types.Incident
			for i := 0; i < 3; i++ {
				inc, _ = b.Evaluate(accessEvent("192.0.2.1", tt.method, tt.path, tt.status, ts))
			}
			if inc == nil {
				t.Fatal("no incident")
			}
			if inc.Severity != tt.want {
				t.Errorf("severity = %s, want %s", inc.Severity, tt.want)
			}
		})
	}
}

func TestBruteForce_WindowExpiry(t *testing.T) {
	b := newBruteForce(3, 2)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	b.Evaluate(accessEvent("10.0.0.1", "POST", "/login", 401, ts))
	b.Evaluate(accessEvent("10.0.0.1", "POST", "/login", 401, ts.Add(1*time.Second)))
	// Three seconds on, the first hit has aged out
	if inc, _ := b.Evaluate(accessEvent("10.0.0.1", "POST", "/login", 401, ts.Add(3*time.Second))); inc != nil {
		t.Error("fired with a hit outside the window")
	}
	if inc, _ := b.Evaluate(accessEvent("10.0.0.1", "POST", "/login", 401, ts.Add(3*time.Second))); inc == nil {
		t.Error("did not fire with three hits inside the window")
	}
}

func TestBruteForce_Ineligible(t *testing.T) {
	b := newBruteForce(1, 2)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	events := []*types.Event{
		{Source: "mysql", Kind: types.KindDatabase, IP: "10.0.0.1", Timestamp: ts, StatusCode: 401},
		{Source: "apache", Kind: types.KindAccess, Timestamp: ts, StatusCode: 401},
		{Source: "apache", Kind: types.KindAccess, IP: "10.0.0.1", StatusCode: 401},
	}
	for i, evt := range events {
		if inc, _ := b.Evaluate(evt); inc != nil {
			t.Errorf("event %d produced an incident", i)
		}
	}
}

func TestBruteForceFactory(t *testing.T) {
	cfg := &types.Config{}
	cfg.Detection.BruteForce = types.BruteForceConfig{RequestsThreshold: 20, WindowSeconds: 2, MaxTrackedIPs: 10}

	if _, err := bruteForceFactory(detect.Env{Config: cfg}); err != nil {
		t.Errorf("enabled by default: %v", err)
	}

	cfg.Detection.BruteForce.Enabled = boolPtr(false)
	if _, err := bruteForceFactory(detect.Env{Config: cfg}); !errors.Is(err, detect.ErrDisabled) {
		t.Errorf("disabled: got %v", err)
	}

	cfg.Detection.BruteForce.Enabled = boolPtr(true)
	cfg.Detection.BruteForce.RequestsThreshold = 0
	if _, err := bruteForceFactory(detect.Env{Config: cfg}); err == nil {
		t.Error("zero threshold accepted")
	}

	if _, err := bruteForceFactory(detect.Env{}); err == nil {
		t.Error("missing configuration accepted")
	}
}

func TestBruteForce_TrackedIPsGauge(t *testing.T) {
	b := newBruteForce(3, 60)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		b.Evaluate(accessEvent(ip, "GET", "/", 200, ts))
	}
	if got := testutil.ToFloat64(metrics.TrackedIPs); got != 3 {
		t.Errorf("tracked gauge = %v, want 3", got)
	}

	// Two more failed logins from one address fire and clear its history
	for i := 0; i < 2; i++ {
		b.Evaluate(accessEvent("10.0.0.1", "POST", "/login", 401, ts))
	}
	if got := testutil.ToFloat64(metrics.TrackedIPs); got != 2 {
		t.Errorf("tracked gauge after report = %v, want 2", got)
	}
}
