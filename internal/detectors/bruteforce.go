package detectors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"logguardd/internal/detect"
	"logguardd/internal/feature"
	"logguardd/internal/metrics"
	"logguardd/internal/types"
)

var (
	authKeywords = []string{
		"login", "signin", "sign-in", "auth", "wp-login", "admin", "xmlrpc.php", "password",
	}
	failureStatuses = map[int]bool{
		http.StatusUnauthorized:    true,
		http.StatusForbidden:       true,
		http.StatusTooManyRequests: true,
	}
	mutatingMethods = map[string]bool{
		http.MethodPost:   true,
		http.MethodPut:    true,
		http.MethodPatch:  true,
		http.MethodDelete: true,
	}
)

// BruteForce counts requests per IP in a sliding window and fires when a burst
// reaches the threshold on a request that looks like an attack.
type BruteForce struct {
	threshold     int
	windowSeconds int
	tracker       *feature.Window
}

// NewBruteForce creates the window detector from its configuration block
func NewBruteForce(cfg types.BruteForceConfig) *BruteForce {
	return &BruteForce{
		threshold:     cfg.RequestsThreshold,
		windowSeconds: cfg.WindowSeconds,
		tracker: feature.NewWindow(
			time.Duration(cfg.WindowSeconds)*time.Second,
			cfg.RequestsThreshold,
			cfg.MaxTrackedIPs,
		),
	}
}

// bruteForceFactory builds the detector from process configuration
func bruteForceFactory(env detect.Env) (detect.Evaluator, error) {
	if env.Config == nil {
		return nil, errors.New("brute-force detector needs configuration")
	}
	cfg := env.Config.Detection.BruteForce
	if !cfg.IsEnabled() {
		return nil, detect.ErrDisabled
	}
	if cfg.RequestsThreshold < 1 || cfg.WindowSeconds < 1 {
		return nil, fmt.Errorf("invalid brute-force window: threshold=%d window=%ds",
			cfg.RequestsThreshold, cfg.WindowSeconds)
	}
	return NewBruteForce(cfg), nil
}

func (b *BruteForce) Evaluate(evt *types.Event) (*types.Incident, error) {
	if evt.Kind != types.KindAccess || evt.IP == "" || evt.Timestamp.IsZero() {
		return nil, nil
	}

	count := b.tracker.Add(evt.IP, evt.Timestamp)
	metrics.TrackedIPs.Set(float64(b.tracker.Len()))
	if count < b.threshold {
		return nil, nil
	}

	authPath := containsAny(strings.ToLower(evt.Path), authKeywords...)
	failed := failureStatuses[evt.StatusCode]
	mutating := mutatingMethods[strings.ToUpper(evt.Method)]
	if !authPath && !failed && !mutating {
		// Plain bursts of reads are not reported
		return nil, nil
	}

	// A fresh burst has to build up again before the next report
	b.tracker.Reset(evt.IP)
	metrics.TrackedIPs.Set(float64(b.tracker.Len()))

	severity := types.SeverityHigh
	if authPath || failed {
		severity = types.SeverityCritical
	}

	return &types.Incident{
		AttackType:  "HTTP Flood / Brute Force",
		Description: fmt.Sprintf("%d requests in <= %ds", count, b.windowSeconds),
		Severity:    severity,
		IP:          evt.IP,
		Evidence: []types.Evidence{
			{Type: "request_count", Value: count},
			{Type: "window_seconds", Value: b.windowSeconds},
			{Type: "status_code", Value: evt.StatusCode},
			{Type: "path", Value: evt.Path},
		},
	}, nil
}
